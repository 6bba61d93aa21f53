package websocket

import (
	"github.com/rs/zerolog"

	"pocket-chat/cli/internal/api"
	"pocket-chat/cli/internal/pin"
)

// Timeline 接收远端变更的会话，由 *chat.Session 实现
type Timeline interface {
	ApplyRemoteDeletion(chatID string, ids []string) int
	ApplyRemoteReaction(chatID, messageID, reaction string) bool
	RemoveMention(pinID string)
}

// PinCache 本地 Pin 缓存，由 *pin.RemoteStore 实现
type PinCache interface {
	Put(p pin.Pin)
	Forget(pinID string)
	Pins() []pin.Pin
}

// Bridge 把服务端事件应用到本地会话和 Pin 缓存
type Bridge struct {
	timeline Timeline
	pins     PinCache
	logger   zerolog.Logger
	notify   func(string) // 可为 nil
}

// NewBridge 创建事件桥
func NewBridge(tl Timeline, pins PinCache, logger zerolog.Logger, notify func(string)) *Bridge {
	return &Bridge{timeline: tl, pins: pins, logger: logger, notify: notify}
}

// MessagesDeleted 其他设备删除了消息，后端已经删除了这些消息上的 Pin
func (b *Bridge) MessagesDeleted(chatID string, messageIDs []string) {
	removed := b.timeline.ApplyRemoteDeletion(chatID, messageIDs)

	deleted := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		deleted[id] = struct{}{}
	}
	for _, p := range b.pins.Pins() {
		if _, ok := deleted[p.MessageID]; ok {
			b.pins.Forget(p.ID)
			b.timeline.RemoveMention(p.ID)
		}
	}

	b.logger.Info().Str("chat_id", chatID).Int("removed", removed).Msg("remote deletion applied")
	if removed > 0 && b.notify != nil {
		b.notify("messages deleted on another device")
	}
}

// PinCreated 写入缓存
func (b *Bridge) PinCreated(p api.Pin) {
	b.pins.Put(pin.FromAPI(p))
}

// PinDeleted 从缓存删除
func (b *Bridge) PinDeleted(pinID string) {
	b.pins.Forget(pinID)
	b.timeline.RemoveMention(pinID)
}

// ReactionUpdated 同步反应
func (b *Bridge) ReactionUpdated(chatID, messageID, reaction string) {
	if !b.timeline.ApplyRemoteReaction(chatID, messageID, reaction) {
		b.logger.Debug().Str("message_id", messageID).Msg("reaction for unknown message")
	}
}
