package db

import (
	"time"

	"github.com/tapcard/internal/links"
	"github.com/tapcard/internal/theme"
)

// Profile 为用户的公开名片，ID 等于 User.ID
// LinkedIn/Website/Email 直接承载派生链接，删除链接即置空对应字段
type Profile struct {
	ID                uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Slug              string    `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Name              string    `gorm:"size:120" json:"name"`
	Headline          string    `gorm:"size:160" json:"headline"`
	Bio               string    `gorm:"type:text" json:"bio"`
	PhotoURL          string    `gorm:"size:512" json:"photo_url"`
	LinkedIn          *string   `gorm:"column:linkedin;size:255" json:"linkedin"`
	Website           *string   `gorm:"size:255" json:"website"`
	Email             *string   `gorm:"size:255" json:"email"`
	AllowNetworkSaves bool      `json:"allow_network_saves"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName 返回自定义表名
func (Profile) TableName() string {
	return "profiles"
}

// LinkFields 返回承载链接的三个字段
func (p Profile) LinkFields() links.Fields {
	return links.Fields{
		LinkedIn: stringValue(p.LinkedIn),
		Website:  stringValue(p.Website),
		Email:    stringValue(p.Email),
	}
}

// ProfileDesignSettings 每个用户一行，首次保存时才创建
type ProfileDesignSettings struct {
	ID     uint `gorm:"primaryKey" json:"-"`
	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	theme.Settings `gorm:"embedded"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 返回自定义表名
func (ProfileDesignSettings) TableName() string {
	return "profile_design_settings"
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
