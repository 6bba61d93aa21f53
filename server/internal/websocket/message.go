// Package websocket 提供实时事件推送
// 客户端通过 /ws 订阅自己账号下的变更，多设备之间保持同步
package websocket

import (
	"time"
)

// 消息类型
const (
	// 客户端 → 服务端
	TypeHeartbeat = "heartbeat" // 心跳
	TypePing      = "ping"

	// 服务端 → 客户端
	TypePong            = "pong"
	TypeMessagesDeleted = "messages:deleted" // 级联删除的消息
	TypePinCreated      = "pin:created"
	TypePinDeleted      = "pin:deleted"
	TypeReactionUpdated = "reaction:updated"
	TypeError           = "error"
)

// Message WebSocket 消息结构
type Message struct {
	Type      string      `json:"type"`      // 消息类型
	Payload   interface{} `json:"payload"`   // 消息内容
	Timestamp int64       `json:"timestamp"` // 时间戳（毫秒）
}

// NewMessage 创建新消息
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ==================== Payload 类型定义 ====================

// MessagesDeletedPayload 级联删除
type MessagesDeletedPayload struct {
	ChatID            int64   `json:"chat_id"`
	DeletedMessageIDs []int64 `json:"deleted_message_ids"`
}

// PinDeletedPayload Pin 被删除
type PinDeletedPayload struct {
	PinID     int64 `json:"pin_id"`
	MessageID int64 `json:"message_id"`
}

// ReactionUpdatedPayload 反应变更，Reaction 为空表示清除
type ReactionUpdatedPayload struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Reaction  string `json:"reaction"`
}

// ErrorPayload 错误消息 Payload
type ErrorPayload struct {
	Code    int    `json:"code"`    // 错误码
	Message string `json:"message"` // 错误信息
}
