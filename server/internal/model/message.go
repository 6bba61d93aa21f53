package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// MessageRole 消息角色常量
const (
	MessageRoleUser      = "user"      // 用户消息
	MessageRoleAssistant = "assistant" // AI 助手响应
	MessageRoleSystem    = "system"    // 系统提示，不落库
)

// 反应取值
const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// Message 消息模型
// 对应数据库表 messages，同一聊天内按 ID 递增排序
type Message struct {
	ID int64 `gorm:"primaryKey" json:"id"`

	// ChatID 所属聊天
	ChatID int64 `gorm:"index;not null" json:"chat_id"`

	// Role user / assistant
	Role string `gorm:"size:20;not null" json:"role"`

	// Content 消息内容，AI 回复可能包含 <think> 推理块
	Content string `gorm:"type:text;not null" json:"content"`

	// ReferencedMessageID 用户消息引用的 AI 回复
	ReferencedMessageID *int64 `json:"referenced_message_id,omitempty"`

	// Metadata 见 MessageMetadata
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}

// MentionedPin 消息中引用的 Pin
type MentionedPin struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// MessageMetadata 消息附加信息，字段名与补全接口保持一致
type MessageMetadata struct {
	ModelName     string         `json:"modelName,omitempty"`
	ProviderName  string         `json:"providerName,omitempty"`
	InputTokens   int            `json:"inputTokens,omitempty"`
	OutputTokens  int            `json:"outputTokens,omitempty"`
	DocumentID    string         `json:"documentId,omitempty"`
	DocumentURL   string         `json:"documentUrl,omitempty"`
	PinIDs        []int64        `json:"pinIds,omitempty"`
	MentionedPins []MentionedPin `json:"mentionedPins,omitempty"`
	UserReaction  string         `json:"userReaction,omitempty"`
}

// Meta 解析 Metadata，空或损坏时返回零值
func (m *Message) Meta() MessageMetadata {
	var meta MessageMetadata
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &meta)
	}
	return meta
}

// SetMeta 写回 Metadata
func (m *Message) SetMeta(meta MessageMetadata) {
	data, _ := json.Marshal(meta)
	m.Metadata = datatypes.JSON(data)
}
