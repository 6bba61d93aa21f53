package model

import (
	"time"
)

// Chat 聊天模型
// 对应数据库表 chats，一个用户可以有多个聊天
type Chat struct {
	ID int64 `gorm:"primaryKey" json:"id"`

	// UserID 所属用户
	UserID int64 `gorm:"index;not null" json:"-"`

	// Title 标题，取自第一条消息
	Title string `gorm:"size:200;not null" json:"title"`

	// Model 创建时选择的模型
	Model string `gorm:"size:100" json:"model,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// TableName 指定表名
func (Chat) TableName() string {
	return "chats"
}
