// Package timeline 维护聊天会话中有序的消息列表
// 所有变更都通过 Reduce 完成：输入旧快照，输出新快照，从不原地修改
package timeline

import (
	"reflect"
	"slices"

	"github.com/google/uuid"
)

// Sender 消息发送方
type Sender string

// 发送方常量
const (
	SenderUser      Sender = "user"      // 用户消息
	SenderAssistant Sender = "assistant" // AI 助手响应
)

// Key 消息在客户端的唯一标识
// 由一次 Turn 的关联 ID 加上角色组成，创建后永不改变
// 界面协调只使用 Key，后端操作只使用 ChatMessageID
type Key struct {
	TurnID string // Turn 关联 ID
	Role   Sender // 该消息在 Turn 中的角色
}

// IsZero 是否为空 Key
func (k Key) IsZero() bool {
	return k.TurnID == "" && k.Role == ""
}

// String 返回便于日志输出的形式
func (k Key) String() string {
	if k.IsZero() {
		return "<none>"
	}
	return k.TurnID + "/" + string(k.Role)
}

// Turn 一次用户消息与其 AI 占位消息的配对
// 仅用于在网络往返之前构造两条消息的 Key，不会被持久化
type Turn struct {
	ID string
}

// NewTurn 生成新的 Turn，关联 ID 使用 UUID v4
func NewTurn() Turn {
	return Turn{ID: uuid.NewString()}
}

// UserKey 用户消息的 Key
func (t Turn) UserKey() Key {
	return Key{TurnID: t.ID, Role: SenderUser}
}

// AssistantKey AI 占位消息的 Key
func (t Turn) AssistantKey() Key {
	return Key{TurnID: t.ID, Role: SenderAssistant}
}

// MentionedPin 随下一条消息发送的 Pin 引用
type MentionedPin struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Metadata 消息附加信息
type Metadata struct {
	ModelName     string         `json:"modelName,omitempty"`
	ProviderName  string         `json:"providerName,omitempty"`
	InputTokens   int            `json:"inputTokens,omitempty"`
	OutputTokens  int            `json:"outputTokens,omitempty"`
	DocumentID    string         `json:"documentId,omitempty"`
	DocumentURL   string         `json:"documentUrl,omitempty"`
	PinIDs        []string       `json:"pinIds,omitempty"`
	MentionedPins []MentionedPin `json:"mentionedPins,omitempty"`

	// UserReaction 用户对该消息的反应，至多一个，空表示没有
	UserReaction string `json:"userReaction,omitempty"`

	// Stopped 用户在响应返回前停止了生成
	Stopped bool `json:"stopped,omitempty"`
}

// Message 时间线中的一条消息
type Message struct {
	// ID 客户端分配的稳定 Key
	ID Key

	// ChatMessageID 后端分配的消息 ID
	// 首次收到服务端确认前为空，之后不可变
	ChatMessageID string

	Sender  Sender
	Content string

	// ThinkingContent 从 Content 中剥离出的推理内容，默认不展示
	ThinkingContent string

	// IsLoading 仅 AI 消息使用，等待响应期间为 true
	IsLoading bool

	// ReferencedMessageID 被引用消息的后端 ID
	ReferencedMessageID string

	Metadata Metadata
}

// HasBackendID 是否已经拿到后端 ID
func (m *Message) HasBackendID() bool {
	return m != nil && m.ChatMessageID != ""
}

// Clone 深拷贝消息，切片字段不与原消息共享
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Metadata.PinIDs = slices.Clone(m.Metadata.PinIDs)
	c.Metadata.MentionedPins = slices.Clone(m.Metadata.MentionedPins)
	return &c
}

func (m *Message) equal(o *Message) bool {
	return reflect.DeepEqual(m, o)
}
