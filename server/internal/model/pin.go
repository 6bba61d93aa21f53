package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Pin 收藏的消息
// 对应数据库表 pins，消息被删除时一并删除
type Pin struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	UserID    int64  `gorm:"index;not null" json:"-"`
	ChatID    int64  `gorm:"index;not null" json:"chat_id"`
	MessageID int64  `gorm:"index;not null" json:"message_id"`
	Text      string `gorm:"type:text;not null" json:"text"`

	// TagList 逗号分隔存储
	TagList  string `gorm:"column:tags;size:500" json:"-"`
	FolderID *int64 `json:"folder_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Tags 仅用于 JSON 输出
	Tags []string `gorm:"-" json:"tags"`
}

// TableName 指定表名
func (Pin) TableName() string {
	return "pins"
}

// SetTags 设置标签
func (p *Pin) SetTags(tags []string) {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	p.Tags = clean
	p.TagList = strings.Join(clean, ",")
}

// AfterFind 读出后展开标签
func (p *Pin) AfterFind(*gorm.DB) error {
	p.Tags = []string{}
	if p.TagList != "" {
		p.Tags = strings.Split(p.TagList, ",")
	}
	return nil
}
