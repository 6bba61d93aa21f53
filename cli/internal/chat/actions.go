package chat

import (
	"context"
	"slices"

	"pocket-chat/cli/internal/pin"
	"pocket-chat/cli/internal/timeline"
)

// 反应取值
const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// PinOptions Pin 选项
type PinOptions struct {
	Text     string // 为空时使用消息全文
	Tags     []string
	FolderID string
}

// DeleteMessage 删除消息，后端会级联删除之后的消息
// 客户端只删除后端返回的 ID，然后取消这些消息上的 Pin。该操作不受生成锁限制
func (s *Session) DeleteMessage(ctx context.Context, key timeline.Key) ([]string, error) {
	chatID, msg, err := s.addressable(key)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.DeleteMessage(ctx, chatID, msg.ChatMessageID)
	if err != nil {
		cerr := classify("delete message", err)
		s.logger.Warn().Err(err).Str("message_id", msg.ChatMessageID).Msg("delete message failed")
		s.notifier.Notify(Notice{Level: LevelDestructive, Title: "Delete failed", Description: describe(cerr)})
		return nil, cerr
	}

	ids := resp.IDs()
	removed := s.removeByBackendIDs(chatID, ids)
	s.unpinMessages(ctx, ids)

	s.logger.Info().
		Str("chat_id", chatID).
		Int("deleted", len(ids)).
		Int("removed_locally", removed).
		Msg("messages deleted")
	return ids, nil
}

// ApplyRemoteDeletion 应用服务端推送的级联删除（其他设备上的操作）
func (s *Session) ApplyRemoteDeletion(chatID string, ids []string) int {
	return s.removeByBackendIDs(chatID, ids)
}

// removeByBackendIDs 删除 ChatMessageID 在列表中的消息，未知 ID 忽略
func (s *Session) removeByBackendIDs(chatID string, ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	removed := 0
	s.store.SetMessages(func(t timeline.Timeline) timeline.Timeline {
		keys := timeline.NewKeySet()
		for _, m := range t {
			if _, ok := set[m.ChatMessageID]; ok && m.ChatMessageID != "" {
				keys[m.ID] = struct{}{}
			}
		}
		removed = len(keys)
		return timeline.Reduce(t, timeline.RemoveByIDs{IDs: keys})
	}, chatID)

	s.mu.Lock()
	if _, ok := set[s.referenceID]; ok {
		s.reference = timeline.Key{}
		s.referenceID = ""
	}
	s.mu.Unlock()
	return removed
}

// unpinMessages 取消被删除消息上的 Pin
func (s *Session) unpinMessages(ctx context.Context, ids []string) {
	deleted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		deleted[id] = struct{}{}
	}

	seen := make(map[string]struct{})
	for _, p := range s.pins.Pins() {
		if _, ok := deleted[p.MessageID]; !ok {
			continue
		}
		if _, done := seen[p.MessageID]; done {
			continue
		}
		seen[p.MessageID] = struct{}{}
		if err := s.pins.Unpin(ctx, p.MessageID); err != nil {
			s.logger.Warn().Err(err).Str("message_id", p.MessageID).Msg("unpin failed")
			s.notifier.Notify(Notice{Level: LevelWarning, Title: "Unpin failed", Description: "A pin for a deleted message could not be removed."})
		}
		s.RemoveMention(p.ID)
	}
}

// React 切换消息反应
// 与当前反应相同或为空时清除，否则设置；本地状态只在请求成功后更新
func (s *Session) React(ctx context.Context, key timeline.Key, reaction string) error {
	if reaction != "" && reaction != ReactionLike && reaction != ReactionDislike {
		return invalid(ErrInvalidReaction)
	}
	chatID, msg, err := s.addressable(key)
	if err != nil {
		return err
	}

	current := msg.Metadata.UserReaction
	next := reaction
	if reaction == "" || reaction == current {
		if current == "" {
			return nil
		}
		next = ""
		err = s.gateway.ClearReaction(ctx, chatID, msg.ChatMessageID)
	} else {
		err = s.gateway.SetReaction(ctx, chatID, msg.ChatMessageID, reaction)
	}
	if err != nil {
		cerr := classify("react", err)
		s.logger.Warn().Err(err).Str("message_id", msg.ChatMessageID).Msg("reaction failed")
		s.notifier.Notify(Notice{Level: LevelDestructive, Title: "Reaction failed", Description: describe(cerr)})
		return cerr
	}

	s.store.Dispatch(timeline.ReplaceByID{ID: key, Patch: func(m *timeline.Message) {
		m.Metadata.UserReaction = next
	}}, chatID)
	return nil
}

// ApplyRemoteReaction 应用其他设备上的反应变更，消息不在本地时返回 false
func (s *Session) ApplyRemoteReaction(chatID, messageID, reaction string) bool {
	msg := s.store.Snapshot(chatID).FindByChatMessageID(messageID)
	if msg == nil {
		return false
	}
	s.store.Dispatch(timeline.ReplaceByID{ID: msg.ID, Patch: func(m *timeline.Message) {
		m.Metadata.UserReaction = reaction
	}}, chatID)
	return true
}

// PinMessage 收藏一条消息
func (s *Session) PinMessage(ctx context.Context, key timeline.Key, opts PinOptions) (pin.Pin, error) {
	chatID, msg, err := s.addressable(key)
	if err != nil {
		return pin.Pin{}, err
	}
	text := opts.Text
	if text == "" {
		text = msg.Content
	}

	p, err := s.pins.Pin(ctx, pin.Pin{
		MessageID: msg.ChatMessageID,
		ChatID:    chatID,
		Text:      text,
		Tags:      opts.Tags,
		FolderID:  opts.FolderID,
	})
	if err != nil {
		cerr := classify("pin", err)
		s.notifier.Notify(Notice{Level: LevelDestructive, Title: "Pin failed", Description: describe(cerr)})
		return pin.Pin{}, cerr
	}
	s.notifier.Notify(Notice{Level: LevelInfo, Title: "Pinned", Description: p.Label()})
	return p, nil
}

// addressable 查找需要后端 ID 的消息
func (s *Session) addressable(key timeline.Key) (string, *timeline.Message, error) {
	chatID := s.store.ActiveChat()
	if chatID == "" {
		s.notifier.Notify(noticeNoChat)
		return "", nil, invalid(ErrNoChat)
	}
	msg := s.store.Snapshot(chatID).Find(key)
	if msg == nil {
		s.notifier.Notify(noticeUnknownMessage)
		return "", nil, invalid(ErrUnknownMessage)
	}
	if !msg.HasBackendID() {
		s.notifier.Notify(noticeStillGenerating)
		return "", nil, invalid(ErrStillGenerating)
	}
	return chatID, msg, nil
}

// SetReference 引用一条 AI 回复，随下一条消息发送
func (s *Session) SetReference(key timeline.Key) error {
	_, msg, err := s.addressable(key)
	if err != nil {
		return err
	}
	if msg.Sender != timeline.SenderAssistant {
		return invalid(ErrNotReferenceable)
	}
	s.mu.Lock()
	s.reference = key
	s.referenceID = msg.ChatMessageID
	s.mu.Unlock()
	return nil
}

// ClearReference 取消引用
func (s *Session) ClearReference() {
	s.mu.Lock()
	s.reference = timeline.Key{}
	s.referenceID = ""
	s.mu.Unlock()
}

// Reference 当前引用的消息
func (s *Session) Reference() (timeline.Key, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reference, s.referenceID
}

// AddMention 引用一个 Pin，重复添加会被忽略
func (s *Session) AddMention(pinID string) error {
	p, ok := s.pins.Get(pinID)
	if !ok {
		return invalid(ErrUnknownPin)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.mentions {
		if m.ID == pinID {
			return nil
		}
	}
	s.mentions = append(s.mentions, timeline.MentionedPin{ID: p.ID, Label: p.Label()})
	return nil
}

// RemoveMention 移除一个 Pin 引用
func (s *Session) RemoveMention(pinID string) {
	s.mu.Lock()
	s.mentions = slices.DeleteFunc(slices.Clone(s.mentions), func(m timeline.MentionedPin) bool {
		return m.ID == pinID
	})
	s.mu.Unlock()
}

// Mentions 当前的 Pin 引用
func (s *Session) Mentions() []timeline.MentionedPin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.mentions)
}

// ClearContext 清空引用和提及
func (s *Session) ClearContext() {
	s.mu.Lock()
	s.reference = timeline.Key{}
	s.referenceID = ""
	s.mentions = nil
	s.mu.Unlock()
}
