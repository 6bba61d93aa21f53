package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pocket-chat/server/internal/cache"
	"pocket-chat/server/internal/config"
	"pocket-chat/server/internal/llm"
	"pocket-chat/server/internal/metrics"
	"pocket-chat/server/internal/model"
	"pocket-chat/server/internal/repository"
	"pocket-chat/server/internal/websocket"
	"pocket-chat/server/pkg/util"
)

// 补全模式
const (
	modeSend       = "send"
	modeEdit       = "edit"
	modeRegenerate = "regenerate"
)

// 找配对用户消息时最多往前看的条数
const pairLookback = 50

// CompletionService 处理发送、编辑重发和重新生成
// 同一聊天同一时刻只允许一个生成，锁放在缓存里以便多实例共享
type CompletionService struct {
	chatRepo    *repository.ChatRepository
	messageRepo *repository.MessageRepository
	pinRepo     *repository.PinRepository
	documents   *DocumentService
	cache       cache.Cache
	provider    llm.Provider
	catalog     *llm.Catalog
	events      EventSender
	cfg         config.AIConfig
	logger      zerolog.Logger
}

// CompletionDeps CompletionService 的依赖
type CompletionDeps struct {
	ChatRepo    *repository.ChatRepository
	MessageRepo *repository.MessageRepository
	PinRepo     *repository.PinRepository
	Documents   *DocumentService
	Cache       cache.Cache
	Provider    llm.Provider
	Catalog     *llm.Catalog
	Events      EventSender
	Config      config.AIConfig
	Logger      zerolog.Logger
}

// NewCompletionService 创建 CompletionService 实例
func NewCompletionService(d CompletionDeps) *CompletionService {
	return &CompletionService{
		chatRepo:    d.ChatRepo,
		messageRepo: d.MessageRepo,
		pinRepo:     d.PinRepo,
		documents:   d.Documents,
		cache:       d.Cache,
		provider:    d.Provider,
		catalog:     d.Catalog,
		events:      d.Events,
		cfg:         d.Config,
		logger:      d.Logger.With().Str("component", "completion").Logger(),
	}
}

// CompletionRequest 补全请求
// RegenerateMessageID 非空为重新生成；只有 UserMessageID 为编辑重发；都为空是普通发送
type CompletionRequest struct {
	Prompt              string   `json:"prompt"`
	ChatID              FlexID   `json:"chatId"`
	Model               string   `json:"model"`
	User                string   `json:"user"`
	ReferencedMessageID FlexID   `json:"referencedMessageId"`
	RegenerateMessageID FlexID   `json:"regenerateMessageId"`
	UserMessageID       FlexID   `json:"userMessageId"`
	PinIDs              []FlexID `json:"pinIds"`
	DocumentIDs         []string `json:"documentIds"`
}

func (r *CompletionRequest) mode() string {
	switch {
	case r.RegenerateMessageID != "":
		return modeRegenerate
	case r.UserMessageID != "":
		return modeEdit
	default:
		return modeSend
	}
}

// CompletionResponse 补全响应
type CompletionResponse struct {
	Response      string                `json:"response"`
	MessageID     int64                 `json:"messageId"`
	UserMessageID int64                 `json:"userMessageId"`
	ChatID        int64                 `json:"chatId"`
	Metadata      model.MessageMetadata `json:"metadata"`
}

// turnContext 随本轮请求带入的引用、Pin 和文档
type turnContext struct {
	referenced *model.Message
	pins       []model.Pin
	documents  []model.Document
}

// Complete 执行一次补全
func (s *CompletionService) Complete(ctx context.Context, userID int64, username string, req *CompletionRequest) (resp *CompletionResponse, err error) {
	mode := req.mode()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			if errors.Is(err, ErrChatBusy) {
				result = "busy"
			}
		}
		metrics.CompletionsTotal.WithLabelValues(mode, result).Inc()
	}()

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" && mode != modeRegenerate {
		return nil, ErrEmptyPrompt
	}

	modelName := req.Model
	if modelName == "" {
		modelName = s.cfg.DefaultModel
	}
	if _, ok := s.catalog.Lookup(modelName); !ok {
		return nil, ErrModelNotFound
	}

	chat, err := s.resolveChat(ctx, userID, req.ChatID, prompt, modelName)
	if err != nil {
		return nil, err
	}

	token, ok, err := s.cache.AcquireChatLock(ctx, chat.ID, s.lockTTL())
	if err != nil {
		return nil, fmt.Errorf("acquire chat lock: %w", err)
	}
	if !ok {
		return nil, ErrChatBusy
	}
	defer func() {
		if rerr := s.cache.ReleaseChatLock(context.Background(), chat.ID, token); rerr != nil {
			s.logger.Warn().Err(rerr).Int64("chat_id", chat.ID).Msg("release chat lock failed")
		}
	}()

	user := req.User
	if user == "" {
		user = username
	}

	switch mode {
	case modeRegenerate:
		resp, err = s.regenerate(ctx, userID, chat, modelName, user, prompt, req)
	case modeEdit:
		resp, err = s.edit(ctx, userID, chat, modelName, user, prompt, req)
	default:
		resp, err = s.send(ctx, userID, chat, modelName, user, prompt, req)
	}
	if err != nil {
		return nil, err
	}
	if terr := s.chatRepo.Touch(ctx, chat.ID); terr != nil {
		s.logger.Warn().Err(terr).Int64("chat_id", chat.ID).Msg("touch chat failed")
	}
	return resp, nil
}

// send 普通发送：追加一条用户消息和一条回复
func (s *CompletionService) send(ctx context.Context, userID int64, chat *model.Chat, modelName, user, prompt string, req *CompletionRequest) (*CompletionResponse, error) {
	tc, err := s.loadContext(ctx, userID, chat.ID, req.ReferencedMessageID.Int64(), flexIDs(req.PinIDs), req.DocumentIDs)
	if err != nil {
		return nil, err
	}
	history, err := s.messageRepo.ListBefore(ctx, chat.ID, math.MaxInt64, s.maxHistory())
	if err != nil {
		return nil, err
	}

	result, err := s.generate(ctx, modelName, user, s.buildMessages(history, tc, prompt))
	if err != nil {
		return nil, err
	}

	userMsg := &model.Message{ChatID: chat.ID, Role: model.MessageRoleUser, Content: prompt}
	s.applyUserContext(userMsg, tc)
	if err := s.messageRepo.Create(ctx, userMsg); err != nil {
		return nil, err
	}
	return s.appendReply(ctx, chat.ID, userMsg, modelName, result, tc)
}

// edit 编辑重发：删除用户消息之后的全部消息，替换内容后追加新回复
func (s *CompletionService) edit(ctx context.Context, userID int64, chat *model.Chat, modelName, user, prompt string, req *CompletionRequest) (*CompletionResponse, error) {
	userMsg, err := s.chatMessage(ctx, chat.ID, req.UserMessageID.Int64(), model.MessageRoleUser)
	if err != nil {
		return nil, err
	}
	tc, err := s.loadContext(ctx, userID, chat.ID, req.ReferencedMessageID.Int64(), flexIDs(req.PinIDs), req.DocumentIDs)
	if err != nil {
		return nil, err
	}
	history, err := s.messageRepo.ListBefore(ctx, chat.ID, userMsg.ID, s.maxHistory())
	if err != nil {
		return nil, err
	}

	result, err := s.generate(ctx, modelName, user, s.buildMessages(history, tc, prompt))
	if err != nil {
		return nil, err
	}

	deleted, err := s.messageRepo.DeleteAfter(ctx, chat.ID, userMsg.ID)
	if err != nil {
		return nil, err
	}
	if len(deleted) > 0 {
		metrics.MessagesDeleted.Add(float64(len(deleted)))
		s.events.SendToUser(ctx, userID, websocket.NewMessage(websocket.TypeMessagesDeleted, &websocket.MessagesDeletedPayload{
			ChatID:            chat.ID,
			DeletedMessageIDs: deleted,
		}))
	}

	userMsg.Content = prompt
	userMsg.ReferencedMessageID = nil
	s.applyUserContext(userMsg, tc)
	if err := s.messageRepo.Save(ctx, userMsg); err != nil {
		return nil, err
	}
	return s.appendReply(ctx, chat.ID, userMsg, modelName, result, tc)
}

// regenerate 重新生成：原地覆盖指定的回复，可选地同时修改配对的用户消息
func (s *CompletionService) regenerate(ctx context.Context, userID int64, chat *model.Chat, modelName, user, prompt string, req *CompletionRequest) (*CompletionResponse, error) {
	target, err := s.chatMessage(ctx, chat.ID, req.RegenerateMessageID.Int64(), model.MessageRoleAssistant)
	if err != nil {
		return nil, err
	}

	var userMsg *model.Message
	if req.UserMessageID != "" {
		userMsg, err = s.chatMessage(ctx, chat.ID, req.UserMessageID.Int64(), model.MessageRoleUser)
	} else {
		userMsg, err = s.precedingUser(ctx, chat.ID, target.ID)
	}
	if err != nil {
		return nil, err
	}
	if userMsg.ID > target.ID {
		return nil, ErrMessageNotFound
	}
	if prompt == "" {
		prompt = userMsg.Content
	}

	// 请求没带上下文时沿用原用户消息上的
	stored := userMsg.Meta()
	refID := req.ReferencedMessageID.Int64()
	if refID == 0 && userMsg.ReferencedMessageID != nil {
		refID = *userMsg.ReferencedMessageID
	}
	pinIDs := flexIDs(req.PinIDs)
	if len(pinIDs) == 0 {
		pinIDs = stored.PinIDs
	}
	docIDs := req.DocumentIDs
	if len(docIDs) == 0 && stored.DocumentID != "" {
		docIDs = []string{stored.DocumentID}
	}
	tc, err := s.loadContext(ctx, userID, chat.ID, refID, pinIDs, docIDs)
	if err != nil {
		return nil, err
	}

	history, err := s.messageRepo.ListBefore(ctx, chat.ID, userMsg.ID, s.maxHistory())
	if err != nil {
		return nil, err
	}
	result, err := s.generate(ctx, modelName, user, s.buildMessages(history, tc, prompt))
	if err != nil {
		return nil, err
	}

	if prompt != userMsg.Content {
		userMsg.Content = prompt
		if err := s.messageRepo.Save(ctx, userMsg); err != nil {
			return nil, err
		}
	}

	// 新内容不继承旧的反应
	meta := s.replyMeta(modelName, result, tc)
	target.Content = result.Content
	target.SetMeta(meta)
	if err := s.messageRepo.Save(ctx, target); err != nil {
		return nil, err
	}
	return s.response(chat.ID, target, userMsg, meta, tc), nil
}

func (s *CompletionService) appendReply(ctx context.Context, chatID int64, userMsg *model.Message, modelName string, result *llm.Result, tc *turnContext) (*CompletionResponse, error) {
	meta := s.replyMeta(modelName, result, tc)
	reply := &model.Message{ChatID: chatID, Role: model.MessageRoleAssistant, Content: result.Content}
	reply.SetMeta(meta)
	if err := s.messageRepo.Create(ctx, reply); err != nil {
		return nil, err
	}
	return s.response(chatID, reply, userMsg, meta, tc), nil
}

func (s *CompletionService) response(chatID int64, reply, userMsg *model.Message, meta model.MessageMetadata, tc *turnContext) *CompletionResponse {
	if len(tc.documents) > 0 {
		meta.DocumentID = tc.documents[0].ID
		meta.DocumentURL = s.documents.URL(tc.documents[0].ID)
	}
	return &CompletionResponse{
		Response:      reply.Content,
		MessageID:     reply.ID,
		UserMessageID: userMsg.ID,
		ChatID:        chatID,
		Metadata:      meta,
	}
}

// generate 调用模型并记录指标
func (s *CompletionService) generate(ctx context.Context, modelName, user string, messages []llm.Message) (*llm.Result, error) {
	start := time.Now()
	result, err := s.provider.Complete(ctx, &llm.Request{Model: modelName, Messages: messages, User: user})
	metrics.CompletionDuration.WithLabelValues(modelName).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn().Err(err).Str("model", modelName).Msg("model call failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	metrics.CompletionTokens.WithLabelValues(modelName, "input").Add(float64(result.InputTokens))
	metrics.CompletionTokens.WithLabelValues(modelName, "output").Add(float64(result.OutputTokens))
	return result, nil
}

func (s *CompletionService) resolveChat(ctx context.Context, userID int64, chatID FlexID, prompt, modelName string) (*model.Chat, error) {
	if chatID == "" {
		// 没有聊天时用第一条消息作为标题新建
		chat := &model.Chat{UserID: userID, Title: util.TruncateString(prompt, 50), Model: modelName}
		if chat.Title == "" {
			chat.Title = defaultChatTitle
		}
		if err := s.chatRepo.Create(ctx, chat); err != nil {
			return nil, err
		}
		return chat, nil
	}
	chat, err := s.chatRepo.GetByID(ctx, chatID.Int64())
	if err != nil {
		return nil, err
	}
	if chat == nil || chat.UserID != userID {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

// chatMessage 获取聊天内指定角色的消息
func (s *CompletionService) chatMessage(ctx context.Context, chatID, id int64, role string) (*model.Message, error) {
	if id == 0 {
		return nil, ErrMessageNotFound
	}
	msg, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.ChatID != chatID || msg.Role != role {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

// precedingUser 找回复之前最近的一条用户消息
func (s *CompletionService) precedingUser(ctx context.Context, chatID, beforeID int64) (*model.Message, error) {
	msgs, err := s.messageRepo.ListBefore(ctx, chatID, beforeID, pairLookback)
	if err != nil {
		return nil, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.MessageRoleUser {
			return &msgs[i], nil
		}
	}
	return nil, ErrMessageNotFound
}

func (s *CompletionService) loadContext(ctx context.Context, userID, chatID, refID int64, pinIDs []int64, docIDs []string) (*turnContext, error) {
	tc := &turnContext{}
	if refID > 0 {
		ref, err := s.messageRepo.GetByID(ctx, refID)
		if err != nil {
			return nil, err
		}
		if ref == nil || ref.ChatID != chatID {
			return nil, ErrMessageNotFound
		}
		tc.referenced = ref
	}
	if len(pinIDs) > 0 {
		pins, err := s.pinRepo.ListByIDs(ctx, userID, pinIDs)
		if err != nil {
			return nil, err
		}
		tc.pins = pins
	}
	if len(docIDs) > 0 {
		docs, err := s.documents.ListByIDs(ctx, userID, docIDs)
		if err != nil {
			return nil, err
		}
		tc.documents = docs
	}
	return tc, nil
}

// applyUserContext 把本轮上下文写到用户消息上
func (s *CompletionService) applyUserContext(msg *model.Message, tc *turnContext) {
	if tc.referenced != nil {
		msg.ReferencedMessageID = util.Int64Ptr(tc.referenced.ID)
	}
	meta := model.MessageMetadata{}
	for _, p := range tc.pins {
		meta.PinIDs = append(meta.PinIDs, p.ID)
		meta.MentionedPins = append(meta.MentionedPins, model.MentionedPin{ID: p.ID, Label: util.TruncateString(p.Text, 40)})
	}
	if len(tc.documents) > 0 {
		meta.DocumentID = tc.documents[0].ID
		meta.DocumentURL = s.documents.URL(tc.documents[0].ID)
	}
	msg.SetMeta(meta)
}

func (s *CompletionService) replyMeta(modelName string, result *llm.Result, tc *turnContext) model.MessageMetadata {
	meta := model.MessageMetadata{
		ModelName:    modelName,
		ProviderName: s.provider.Name(),
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
	}
	for _, p := range tc.pins {
		meta.PinIDs = append(meta.PinIDs, p.ID)
	}
	return meta
}

// buildMessages 组装发给模型的上下文
func (s *CompletionService) buildMessages(history []model.Message, tc *turnContext, prompt string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+3)
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.cfg.SystemPrompt})
	}
	for _, m := range history {
		switch m.Role {
		case model.MessageRoleUser:
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case model.MessageRoleAssistant:
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: stripThinking(m.Content)})
		}
	}
	if extra := s.contextBlock(tc); extra != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: extra})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
}

func (s *CompletionService) contextBlock(tc *turnContext) string {
	var b strings.Builder
	if tc.referenced != nil {
		b.WriteString("The user is referring to this earlier answer:\n")
		b.WriteString(stripThinking(tc.referenced.Content))
		b.WriteString("\n\n")
	}
	if len(tc.pins) > 0 {
		b.WriteString("Pinned notes:\n")
		for _, p := range tc.pins {
			b.WriteString("- ")
			b.WriteString(p.Text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	for _, d := range tc.documents {
		text, ok := s.documents.ReadText(&d)
		if !ok {
			fmt.Fprintf(&b, "Attached file %s (%s, %d bytes)\n\n", d.Name, d.MimeType, d.Size)
			continue
		}
		fmt.Fprintf(&b, "Attached file %s:\n%s\n\n", d.Name, text)
	}
	return strings.TrimSpace(b.String())
}

func (s *CompletionService) maxHistory() int {
	if s.cfg.MaxHistory <= 0 {
		return 20
	}
	return s.cfg.MaxHistory
}

// lockTTL 覆盖最慢的一次模型调用，进程崩溃时锁也会自动过期
func (s *CompletionService) lockTTL() time.Duration {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return timeout + 30*time.Second
}

// stripThinking 去掉 <think>…</think> 推理块
func stripThinking(content string) string {
	const open, closeTag = "<think>", "</think>"
	for {
		start := strings.Index(content, open)
		if start < 0 {
			break
		}
		end := strings.Index(content[start:], closeTag)
		if end < 0 {
			content = content[:start]
			break
		}
		content = content[:start] + content[start+end+len(closeTag):]
	}
	return strings.TrimSpace(content)
}
