package db

import "gorm.io/gorm"

// User 定义了登录账号，ID 同时是资料行的主键
type User struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
}
