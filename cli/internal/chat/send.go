package chat

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"pocket-chat/cli/internal/api"
	"pocket-chat/cli/internal/attachment"
	"pocket-chat/cli/internal/timeline"
)

// titleMaxRunes 新聊天标题的最大长度
const titleMaxRunes = 50

// RegenerateOptions 重新生成选项
type RegenerateOptions struct {
	// Prompt 非空时先把配对的用户消息改为该内容
	Prompt *string
}

// Send 发送一条新消息
//
// 流程：校验 -> 获取生成锁 -> 首条消息时创建聊天 -> 追加 Turn -> 请求补全 -> 按 Key 回写。
// 引用和提及在请求构造完成后立即清空；附件在请求成功后才并入消息并移出待发送列表。
func (s *Session) Send(ctx context.Context, text string) error {
	model, user := s.currentModel()
	if model == "" {
		s.notifier.Notify(noticeNoModel)
		return invalid(ErrNoModel)
	}
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		s.notifier.Notify(noticeEmptyPrompt)
		return invalid(ErrEmptyPrompt)
	}
	if s.attachments != nil && s.attachments.Pending() {
		s.notifier.Notify(noticeUploadsPending)
		return invalid(ErrUploadsPending)
	}

	gen, ok := s.acquire()
	if !ok {
		return s.busy()
	}
	defer s.release(gen)

	chatID, err := s.ensureChat(ctx, prompt, model)
	if err != nil {
		return err
	}

	turn := s.newTurn()
	userMsg, req, sent := s.compose(turn, chatID, prompt, model, user)
	placeholder := newPlaceholder(turn.AssistantKey(), model)

	if !s.begin(gen, chatID, placeholder.ID, func(t timeline.Timeline) timeline.Timeline {
		return timeline.Reduce(t, timeline.Append{Messages: []*timeline.Message{userMsg, placeholder}})
	}) {
		return ErrStopped
	}
	s.ClearContext()

	s.logger.Debug().
		Str("chat_id", chatID).
		Str("turn", turn.ID).
		Int("pins", len(req.PinIDs)).
		Int("documents", len(req.DocumentIDs)).
		Msg("sending message")

	resp, err := s.gateway.Complete(ctx, req)
	if err := s.finish(gen, "send", chatID, userMsg.ID, placeholder.ID, resp, err, withDocuments(sent)); err != nil {
		return err
	}
	s.releaseAttachments(sent)
	return nil
}

// EditAndResubmit 编辑用户消息并重新提交
// 该消息之后的所有消息被截断，新的占位消息使用新的 Turn
func (s *Session) EditAndResubmit(ctx context.Context, userKey timeline.Key, text string) error {
	model, user := s.currentModel()
	if model == "" {
		s.notifier.Notify(noticeNoModel)
		return invalid(ErrNoModel)
	}
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		s.notifier.Notify(noticeEmptyPrompt)
		return invalid(ErrEmptyPrompt)
	}

	gen, ok := s.acquire()
	if !ok {
		return s.busy()
	}
	defer s.release(gen)

	chatID := s.store.ActiveChat()
	if chatID == "" {
		s.notifier.Notify(noticeNoChat)
		return invalid(ErrNoChat)
	}
	msg := s.store.Snapshot(chatID).Find(userKey)
	if msg == nil || msg.Sender != timeline.SenderUser {
		s.notifier.Notify(noticeUnknownMessage)
		return invalid(ErrUnknownMessage)
	}

	turn := s.newTurn()
	placeholder := newPlaceholder(turn.AssistantKey(), model)

	found := false
	var truncated []string
	if !s.begin(gen, chatID, placeholder.ID, func(t timeline.Timeline) timeline.Timeline {
		i := t.IndexOf(userKey)
		if i < 0 {
			return t
		}
		found = true
		for _, m := range t[i+1:] {
			if m.HasBackendID() {
				truncated = append(truncated, m.ChatMessageID)
			}
		}
		if i+1 < len(t) {
			t = timeline.Reduce(t, timeline.TruncateFrom{ID: t[i+1].ID})
		}
		t = timeline.Reduce(t, timeline.ReplaceByID{ID: userKey, Patch: func(m *timeline.Message) {
			m.Content = prompt
		}})
		return timeline.Reduce(t, timeline.Append{Messages: []*timeline.Message{placeholder}})
	}) {
		return ErrStopped
	}
	if !found {
		// 消息在校验之后被删除了
		s.settle(gen, placeholder.ID)
		s.notifier.Notify(noticeUnknownMessage)
		return invalid(ErrUnknownMessage)
	}

	req := &api.CompletionRequest{
		Prompt:              prompt,
		ChatID:              chatID,
		Model:               model,
		User:                user,
		UserMessageID:       msg.ChatMessageID,
		ReferencedMessageID: msg.ReferencedMessageID,
		PinIDs:              msg.Metadata.PinIDs,
	}
	resp, err := s.gateway.Complete(ctx, req)
	if err := s.finish(gen, "edit", chatID, userKey, placeholder.ID, resp, err, nil); err != nil {
		return err
	}
	// 服务端已删除被截断的消息及其 Pin，本地同步
	s.unpinMessages(ctx, truncated)
	return nil
}

// Regenerate 原地重新生成一条 AI 消息，不产生新的 Turn
// AI 消息和与之配对的用户消息都必须已有后端 ID
func (s *Session) Regenerate(ctx context.Context, assistantKey timeline.Key, opts RegenerateOptions) error {
	model, user := s.currentModel()
	if model == "" {
		s.notifier.Notify(noticeNoModel)
		return invalid(ErrNoModel)
	}
	chatID := s.store.ActiveChat()
	if chatID == "" {
		s.notifier.Notify(noticeNoChat)
		return invalid(ErrNoChat)
	}

	snap := s.store.Snapshot(chatID)
	i := snap.IndexOf(assistantKey)
	if i < 0 || snap[i].Sender != timeline.SenderAssistant {
		s.notifier.Notify(noticeUnknownMessage)
		return invalid(ErrUnknownMessage)
	}
	assistant := snap[i]
	userMsg := pairedUser(snap, i)
	if !assistant.HasBackendID() || !userMsg.HasBackendID() {
		s.notifier.Notify(noticeMissingIdentifiers)
		return invalid(ErrMissingIdentifiers)
	}

	prompt := userMsg.Content
	if opts.Prompt != nil {
		prompt = strings.TrimSpace(*opts.Prompt)
		if prompt == "" {
			s.notifier.Notify(noticeEmptyPrompt)
			return invalid(ErrEmptyPrompt)
		}
	}

	gen, ok := s.acquire()
	if !ok {
		return s.busy()
	}
	defer s.release(gen)

	userKey := userMsg.ID
	if !s.begin(gen, chatID, assistantKey, func(t timeline.Timeline) timeline.Timeline {
		t = timeline.Reduce(t, timeline.ReplaceByID{ID: assistantKey, Patch: func(m *timeline.Message) {
			m.IsLoading = true
			m.Content = ""
			m.ThinkingContent = ""
			m.Metadata.Stopped = false
			m.Metadata.ModelName = model
		}})
		if opts.Prompt != nil {
			t = timeline.Reduce(t, timeline.ReplaceByID{ID: userKey, Patch: func(m *timeline.Message) {
				m.Content = prompt
			}})
		}
		return t
	}) {
		return ErrStopped
	}

	req := &api.CompletionRequest{
		Prompt:              prompt,
		ChatID:              chatID,
		Model:               model,
		User:                user,
		RegenerateMessageID: assistant.ChatMessageID,
		UserMessageID:       userMsg.ChatMessageID,
		ReferencedMessageID: userMsg.ReferencedMessageID,
		PinIDs:              userMsg.Metadata.PinIDs,
	}
	resp, err := s.gateway.Complete(ctx, req)
	return s.finish(gen, "regenerate", chatID, userKey, assistantKey, resp, err, nil)
}

// finish 把补全结果写回发起请求时的聊天
// userPatch 在写入后端 ID 的同时应用到用户消息，可为 nil
func (s *Session) finish(gen uint64, op, chatID string, userKey, assistantKey timeline.Key, resp *api.CompletionResponse, err error, userPatch func(*timeline.Message)) error {
	if !s.settle(gen, assistantKey) {
		// 占位消息已被更新的一次生成认领
		s.logger.Debug().Str("op", op).Str("key", assistantKey.String()).Msg("dropping response for reclaimed placeholder")
		return classify(op, err)
	}

	if err != nil {
		cerr := classify(op, err)
		text := describe(cerr)
		s.store.Dispatch(timeline.ReplaceByID{ID: assistantKey, Patch: func(m *timeline.Message) {
			m.IsLoading = false
			m.Content = text
			m.ThinkingContent = ""
		}}, chatID)
		s.logger.Warn().Err(err).Str("op", op).Str("chat_id", chatID).Msg("completion failed")
		s.notifier.Notify(Notice{Level: LevelDestructive, Title: "Request failed", Description: text})
		return cerr
	}

	content, thinking := SplitThinking(resp.Text)
	userID := resp.UserMessageID
	if userID == "" {
		userID = resp.MessageID
	}

	orphaned := false
	s.store.SetMessages(func(t timeline.Timeline) timeline.Timeline {
		// 占位消息已被截断或删除，迟到的响应不再改动任何消息
		if t.IndexOf(assistantKey) < 0 {
			orphaned = true
			return t
		}
		t = timeline.Reduce(t, timeline.ReplaceByID{ID: assistantKey, Patch: func(m *timeline.Message) {
			m.ChatMessageID = resp.MessageID
			m.Content = content
			m.ThinkingContent = thinking
			m.IsLoading = false
			m.Metadata.Stopped = false
			mergeMetadata(&m.Metadata, resp.Metadata)
		}})
		return timeline.Reduce(t, timeline.ReplaceByID{ID: userKey, Patch: func(m *timeline.Message) {
			m.ChatMessageID = userID
			if userPatch != nil {
				userPatch(m)
			}
		}})
	}, chatID)
	if orphaned {
		s.logger.Debug().Str("op", op).Str("key", assistantKey.String()).Msg("placeholder gone, response discarded")
		return nil
	}

	s.logger.Debug().
		Str("op", op).
		Str("chat_id", chatID).
		Str("message_id", resp.MessageID).
		Int("output_tokens", resp.Metadata.OutputTokens).
		Msg("completion applied")
	return nil
}

// ensureChat 没有当前聊天时创建一个
func (s *Session) ensureChat(ctx context.Context, prompt, model string) (string, error) {
	if chatID := s.store.ActiveChat(); chatID != "" {
		return chatID, nil
	}
	chat, err := s.gateway.CreateChat(ctx, titleFrom(prompt), model)
	if err != nil {
		cerr := classify("create chat", err)
		s.logger.Warn().Err(err).Msg("create chat failed")
		s.notifier.Notify(Notice{Level: LevelDestructive, Title: "Could not start chat", Description: describe(cerr)})
		return "", cerr
	}
	chatID := chat.ID.String()
	s.store.SetActiveChat(chatID)
	s.logger.Info().Str("chat_id", chatID).Msg("chat created")
	return chatID, nil
}

// compose 根据当前引用、提及和附件构造用户消息与请求
// 附件只进入请求，返回的列表在请求成功后并入用户消息
func (s *Session) compose(turn timeline.Turn, chatID, prompt, model, user string) (*timeline.Message, *api.CompletionRequest, []attachment.Attachment) {
	s.mu.Lock()
	ref := s.referenceID
	mentions := slices.Clone(s.mentions)
	s.mu.Unlock()

	meta := timeline.Metadata{MentionedPins: mentions}
	for _, m := range mentions {
		meta.PinIDs = append(meta.PinIDs, m.ID)
	}

	var sent []attachment.Attachment
	var documentIDs []string
	if s.attachments != nil {
		sent = s.attachments.Completed()
		for _, a := range sent {
			documentIDs = append(documentIDs, a.DocumentID)
		}
	}

	msg := &timeline.Message{
		ID:                  turn.UserKey(),
		Sender:              timeline.SenderUser,
		Content:             prompt,
		ReferencedMessageID: ref,
		Metadata:            meta,
	}
	req := &api.CompletionRequest{
		Prompt:              prompt,
		ChatID:              chatID,
		Model:               model,
		User:                user,
		ReferencedMessageID: ref,
		PinIDs:              meta.PinIDs,
		DocumentIDs:         documentIDs,
	}
	return msg, req, sent
}

// withDocuments 把第一个附件记到用户消息上
func withDocuments(sent []attachment.Attachment) func(*timeline.Message) {
	if len(sent) == 0 {
		return nil
	}
	first := sent[0]
	return func(m *timeline.Message) {
		m.Metadata.DocumentID = first.DocumentID
		m.Metadata.DocumentURL = first.URL
	}
}

// releaseAttachments 移除已随消息发出的附件，请求期间新加的保留
func (s *Session) releaseAttachments(sent []attachment.Attachment) {
	if s.attachments == nil {
		return
	}
	for _, a := range sent {
		s.attachments.Remove(a.ID)
	}
}

func newPlaceholder(key timeline.Key, model string) *timeline.Message {
	return &timeline.Message{
		ID:        key,
		Sender:    timeline.SenderAssistant,
		IsLoading: true,
		Metadata:  timeline.Metadata{ModelName: model},
	}
}

// pairedUser 返回 AI 消息之前最近的一条用户消息
func pairedUser(t timeline.Timeline, i int) *timeline.Message {
	for j := i - 1; j >= 0; j-- {
		if t[j].Sender == timeline.SenderUser {
			return t[j]
		}
	}
	return nil
}

func mergeMetadata(dst *timeline.Metadata, src api.MessageMetadata) {
	if src.ModelName != "" {
		dst.ModelName = src.ModelName
	}
	if src.ProviderName != "" {
		dst.ProviderName = src.ProviderName
	}
	dst.InputTokens = src.InputTokens
	dst.OutputTokens = src.OutputTokens
	dst.UserReaction = src.UserReaction
	if src.DocumentID != "" {
		dst.DocumentID = src.DocumentID.String()
		dst.DocumentURL = src.DocumentURL
	}
}

func titleFrom(prompt string) string {
	line, _, _ := strings.Cut(prompt, "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= titleMaxRunes {
		return line
	}
	return string([]rune(line)[:titleMaxRunes]) + "…"
}
