package websocket

import (
	"encoding/json"
	"fmt"

	"pocket-chat/cli/internal/api"
)

// MessagesDeleted 级联删除事件
type MessagesDeleted struct {
	ChatID            api.ID   `json:"chat_id"`
	DeletedMessageIDs []api.ID `json:"deleted_message_ids"`
}

// PinDeleted Pin 删除事件
type PinDeleted struct {
	PinID     api.ID `json:"pin_id"`
	MessageID api.ID `json:"message_id"`
}

// ReactionUpdated 反应变更事件，Reaction 为空表示清除
type ReactionUpdated struct {
	ChatID    api.ID `json:"chat_id"`
	MessageID api.ID `json:"message_id"`
	Reaction  string `json:"reaction"`
}

// Handler 事件处理器
type Handler interface {
	MessagesDeleted(chatID string, messageIDs []string)
	PinCreated(p api.Pin)
	PinDeleted(pinID string)
	ReactionUpdated(chatID, messageID, reaction string)
}

// Dispatch 解析事件并交给处理器，未知类型忽略
func Dispatch(h Handler, msg *Message) error {
	if h == nil {
		return nil
	}
	switch msg.Type {
	case TypeMessagesDeleted:
		var ev MessagesDeleted
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return fmt.Errorf("解析 %s 失败: %w", msg.Type, err)
		}
		ids := make([]string, 0, len(ev.DeletedMessageIDs))
		for _, id := range ev.DeletedMessageIDs {
			ids = append(ids, id.String())
		}
		h.MessagesDeleted(ev.ChatID.String(), ids)

	case TypePinCreated:
		var p api.Pin
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("解析 %s 失败: %w", msg.Type, err)
		}
		h.PinCreated(p)

	case TypePinDeleted:
		var ev PinDeleted
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return fmt.Errorf("解析 %s 失败: %w", msg.Type, err)
		}
		h.PinDeleted(ev.PinID.String())

	case TypeReactionUpdated:
		var ev ReactionUpdated
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return fmt.Errorf("解析 %s 失败: %w", msg.Type, err)
		}
		h.ReactionUpdated(ev.ChatID.String(), ev.MessageID.String(), ev.Reaction)
	}
	return nil
}
