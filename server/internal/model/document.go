package model

import (
	"time"
)

// Document 上传的文档
// ID 使用 shortuuid，同时作为访问路径的一部分
type Document struct {
	ID       string `gorm:"primaryKey;size:32" json:"document_id"`
	UserID   int64  `gorm:"index;not null" json:"-"`
	Name     string `gorm:"size:255;not null" json:"name"`
	MimeType string `gorm:"size:100" json:"mime_type,omitempty"`
	Size     int64  `json:"size"`

	// Path 存储路径，不对外暴露
	Path string `gorm:"size:500;not null" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}
