package chat

import (
	"context"

	"pocket-chat/cli/internal/api"
	"pocket-chat/cli/internal/timeline"
)

// historyTurnPrefix 历史消息 Key 的前缀，Key 由后端 ID 派生
const historyTurnPrefix = "msg-"

// OpenChat 加载聊天历史并切换为当前聊天
func (s *Session) OpenChat(ctx context.Context, chatID string) error {
	if chatID == "" {
		return invalid(ErrNoChat)
	}
	if s.Responding() {
		return s.busy()
	}

	msgs, err := s.gateway.ListMessages(ctx, chatID)
	if err != nil {
		cerr := classify("open chat", err)
		s.logger.Warn().Err(err).Str("chat_id", chatID).Msg("load history failed")
		s.notifier.Notify(Notice{Level: LevelDestructive, Title: "Could not open chat", Description: describe(cerr)})
		return cerr
	}

	history := make(timeline.Timeline, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, fromHistory(m))
	}
	s.store.SetMessages(func(timeline.Timeline) timeline.Timeline {
		return history
	}, chatID)
	s.store.SetActiveChat(chatID)
	s.ClearContext()

	s.logger.Info().Str("chat_id", chatID).Int("messages", len(history)).Msg("chat opened")
	return nil
}

// NewChat 回到“没有当前聊天”的状态，下一次 Send 会创建新聊天
func (s *Session) NewChat() {
	s.store.SetActiveChat("")
	s.ClearContext()
}

// DeleteChat 删除当前聊天及其 Pin
func (s *Session) DeleteChat(ctx context.Context) error {
	chatID := s.store.ActiveChat()
	if chatID == "" {
		s.notifier.Notify(noticeNoChat)
		return invalid(ErrNoChat)
	}
	if err := s.gateway.DeleteChat(ctx, chatID); err != nil {
		cerr := classify("delete chat", err)
		s.notifier.Notify(Notice{Level: LevelDestructive, Title: "Delete failed", Description: describe(cerr)})
		return cerr
	}

	var messageIDs []string
	for _, p := range s.pins.Pins() {
		if p.ChatID == chatID {
			messageIDs = append(messageIDs, p.MessageID)
		}
	}
	s.unpinMessages(ctx, messageIDs)

	s.store.Drop(chatID)
	s.ClearContext()
	s.logger.Info().Str("chat_id", chatID).Msg("chat deleted")
	return nil
}

func fromHistory(m api.ChatMessage) *timeline.Message {
	id := m.ID.String()
	sender := timeline.SenderUser
	if m.Role == string(timeline.SenderAssistant) {
		sender = timeline.SenderAssistant
	}

	msg := &timeline.Message{
		ID:                  timeline.Key{TurnID: historyTurnPrefix + id, Role: sender},
		ChatMessageID:       id,
		Sender:              sender,
		Content:             m.Content,
		ReferencedMessageID: m.ReferencedMessageID.String(),
		Metadata: timeline.Metadata{
			ModelName:    m.Metadata.ModelName,
			ProviderName: m.Metadata.ProviderName,
			InputTokens:  m.Metadata.InputTokens,
			OutputTokens: m.Metadata.OutputTokens,
			DocumentID:   m.Metadata.DocumentID.String(),
			DocumentURL:  m.Metadata.DocumentURL,
			PinIDs:       m.Metadata.PinIDStrings(),
			UserReaction: m.Metadata.UserReaction,
		},
	}
	for _, p := range m.Metadata.MentionedPins {
		msg.Metadata.MentionedPins = append(msg.Metadata.MentionedPins, timeline.MentionedPin{ID: p.ID.String(), Label: p.Label})
	}
	if sender == timeline.SenderAssistant {
		msg.Content, msg.ThinkingContent = SplitThinking(m.Content)
	}
	return msg
}
