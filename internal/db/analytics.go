package db

import "time"

// ProfileView 记录一次公开名片的访问及其来源渠道。
type ProfileView struct {
	ID        uint      `gorm:"primaryKey"`
	ProfileID uint      `gorm:"index:idx_profile_views_profile_time"`
	Source    string    `gorm:"size:20;index"`
	Referrer  string    `gorm:"size:255"`
	VisitorID string    `gorm:"size:64"`
	CreatedAt time.Time `gorm:"index:idx_profile_views_profile_time"`
}

// TableName 指定自定义表名。
func (ProfileView) TableName() string {
	return "profile_views"
}

// LinkClick 记录访客对派生链接的点击。
type LinkClick struct {
	ID        uint   `gorm:"primaryKey"`
	ProfileID uint   `gorm:"index"`
	LinkID    string `gorm:"size:32;index"`
	VisitorID string `gorm:"size:64"`
	CreatedAt time.Time
}

// TableName 指定自定义表名。
func (LinkClick) TableName() string {
	return "link_clicks"
}
