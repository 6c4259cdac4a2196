package db

import "time"

// Connection 记录一个用户收藏的其他名片，(user_id, connected_user_id) 唯一
type Connection struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;uniqueIndex:idx_connection_pair" json:"user_id"`
	ConnectedUserID uint      `gorm:"not null;uniqueIndex:idx_connection_pair;index" json:"connected_user_id"`
	Note            string    `gorm:"type:text" json:"note"`
	Tag             string    `gorm:"size:50" json:"tag"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName 返回自定义表名
func (Connection) TableName() string {
	return "connections"
}
