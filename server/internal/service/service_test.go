package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocket-chat/server/internal/cache"
	"pocket-chat/server/internal/config"
	"pocket-chat/server/internal/database"
	"pocket-chat/server/internal/llm"
	"pocket-chat/server/internal/model"
	"pocket-chat/server/internal/repository"
	"pocket-chat/server/internal/websocket"
	"pocket-chat/server/pkg/jwt"
	"pocket-chat/server/pkg/util"
)

// scriptedProvider 按调用次数编号回复，并记录每次请求
type scriptedProvider struct {
	mu    sync.Mutex
	err   error
	calls []*llm.Request
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req *llm.Request) (*llm.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Result{Content: fmt.Sprintf("reply %d", len(p.calls)), InputTokens: 3, OutputTokens: 2}, nil
}

func (p *scriptedProvider) last() *llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

type sentEvent struct {
	userID int64
	msg    *websocket.Message
}

type recordingEvents struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (r *recordingEvents) SendToUser(_ context.Context, userID int64, msg *websocket.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEvent{userID: userID, msg: msg})
}

func (r *recordingEvents) ofType(t string) []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentEvent
	for _, e := range r.sent {
		if e.msg.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	cache       *cache.MemoryCache
	provider    *scriptedProvider
	events      *recordingEvents
	chatRepo    *repository.ChatRepository
	messageRepo *repository.MessageRepository
	pinRepo     *repository.PinRepository
	chats       *ChatService
	completion  *CompletionService
	messages    *MessageService
	pins        *PinService
	documents   *DocumentService
	auth        *AuthService
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)

	env := &testEnv{
		cache:       cache.NewMemoryCache(),
		provider:    &scriptedProvider{},
		events:      &recordingEvents{},
		chatRepo:    repository.NewChatRepository(db),
		messageRepo: repository.NewMessageRepository(db),
		pinRepo:     repository.NewPinRepository(db),
	}
	aiCfg := config.AIConfig{
		DefaultModel: "m1",
		Models:       []string{"m1", "m2"},
		SystemPrompt: "sys",
		MaxHistory:   10,
		Timeout:      time.Minute,
	}
	env.documents = NewDocumentService(repository.NewDocumentRepository(db), config.UploadConfig{
		Dir:           t.TempDir(),
		MaxSize:       64,
		PublicBaseURL: "http://files.test/",
	})
	env.chats = NewChatService(env.chatRepo, env.messageRepo)
	env.completion = NewCompletionService(CompletionDeps{
		ChatRepo:    env.chatRepo,
		MessageRepo: env.messageRepo,
		PinRepo:     env.pinRepo,
		Documents:   env.documents,
		Cache:       env.cache,
		Provider:    env.provider,
		Catalog:     llm.NewCatalog(aiCfg, env.provider),
		Events:      env.events,
		Config:      aiCfg,
		Logger:      zerolog.Nop(),
	})
	env.messages = NewMessageService(env.chatRepo, env.messageRepo, env.events)
	env.pins = NewPinService(env.pinRepo, env.chatRepo, env.messageRepo, env.events)
	jwtSvc := jwt.NewJWTService("test-secret-test-secret-test-secret", time.Hour, 24*time.Hour)
	env.auth = NewAuthService(repository.NewUserRepository(db), env.cache, jwtSvc)
	return env
}

func fid(id int64) FlexID { return FlexID(strconv.FormatInt(id, 10)) }

func (e *testEnv) send(t *testing.T, userID int64, chatID int64, prompt string) *CompletionResponse {
	t.Helper()
	req := &CompletionRequest{Prompt: prompt}
	if chatID > 0 {
		req.ChatID = fid(chatID)
	}
	resp, err := e.completion.Complete(context.Background(), userID, "alice", req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) history(t *testing.T, chatID int64) []model.Message {
	t.Helper()
	msgs, err := e.messageRepo.ListByChat(context.Background(), chatID)
	require.NoError(t, err)
	return msgs
}

func TestFlexIDAcceptsStringsAndNumbers(t *testing.T) {
	var req CompletionRequest
	require.NoError(t, json.Unmarshal([]byte(`{"chatId":12,"userMessageId":"7","regenerateMessageId":null,"pinIds":[1,"2"]}`), &req))
	assert.Equal(t, int64(12), req.ChatID.Int64())
	assert.Equal(t, int64(7), req.UserMessageID.Int64())
	assert.Equal(t, FlexID(""), req.RegenerateMessageID)
	assert.Equal(t, []int64{1, 2}, flexIDs(req.PinIDs))
	assert.Equal(t, int64(0), FlexID("abc").Int64())
}

func TestSendCreatesChatAndPersistsPair(t *testing.T) {
	env := newEnv(t)
	resp := env.send(t, 1, 0, "  hello there  ")

	require.NotZero(t, resp.ChatID)
	chat, err := env.chats.Get(context.Background(), 1, resp.ChatID)
	require.NoError(t, err)
	assert.Equal(t, "hello there", chat.Title)
	assert.Equal(t, "m1", chat.Model)

	msgs := env.history(t, resp.ChatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, "hello there", msgs[0].Content)
	assert.Equal(t, resp.UserMessageID, msgs[0].ID)
	assert.Equal(t, resp.MessageID, msgs[1].ID)
	assert.Equal(t, "reply 1", resp.Response)
	assert.Equal(t, "m1", resp.Metadata.ModelName)
	assert.Equal(t, "scripted", resp.Metadata.ProviderName)
	assert.Equal(t, 3, resp.Metadata.InputTokens)
	assert.Equal(t, 2, resp.Metadata.OutputTokens)

	req := env.provider.last()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "alice", req.User)
}

func TestSendIncludesHistoryWithoutThinking(t *testing.T) {
	env := newEnv(t)
	first := env.send(t, 1, 0, "one")

	reply, err := env.messageRepo.GetByID(context.Background(), first.MessageID)
	require.NoError(t, err)
	reply.Content = "<think>hmm</think>answer one"
	require.NoError(t, env.messageRepo.Save(context.Background(), reply))

	env.send(t, 1, first.ChatID, "two")
	req := env.provider.last()
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "one", req.Messages[1].Content)
	assert.Equal(t, "answer one", req.Messages[2].Content)
	assert.Equal(t, "two", req.Messages[3].Content)
}

func TestCompletionValidation(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	_, err := env.completion.Complete(ctx, 1, "alice", &CompletionRequest{Prompt: "   "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = env.completion.Complete(ctx, 1, "alice", &CompletionRequest{Prompt: "hi", Model: "nope"})
	assert.ErrorIs(t, err, ErrModelNotFound)

	resp := env.send(t, 1, 0, "mine")
	_, err = env.completion.Complete(ctx, 2, "bob", &CompletionRequest{Prompt: "hi", ChatID: fid(resp.ChatID)})
	assert.ErrorIs(t, err, ErrChatNotFound)

	assert.Len(t, env.provider.calls, 1)
}

func TestCompletionRejectedWhileChatBusy(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	chat, err := env.chats.Create(ctx, 1, &CreateChatRequest{Title: "busy"})
	require.NoError(t, err)

	token, ok, err := env.cache.AcquireChatLock(ctx, chat.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.completion.Complete(ctx, 1, "alice", &CompletionRequest{Prompt: "hi", ChatID: fid(chat.ID)})
	assert.ErrorIs(t, err, ErrChatBusy)
	assert.Empty(t, env.provider.calls)

	require.NoError(t, env.cache.ReleaseChatLock(ctx, chat.ID, token))
	env.send(t, 1, chat.ID, "hi")
}

func TestUpstreamFailurePersistsNothing(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	chat, err := env.chats.Create(ctx, 1, &CreateChatRequest{})
	require.NoError(t, err)

	env.provider.err = errors.New("boom")
	_, err = env.completion.Complete(ctx, 1, "alice", &CompletionRequest{Prompt: "hi", ChatID: fid(chat.ID)})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Empty(t, env.history(t, chat.ID))

	// 失败后锁已释放
	env.provider.err = nil
	env.send(t, 1, chat.ID, "again")
	assert.Len(t, env.history(t, chat.ID), 2)
}

func TestEditTruncatesAndReplaces(t *testing.T) {
	env := newEnv(t)
	first := env.send(t, 1, 0, "first")
	second := env.send(t, 1, first.ChatID, "second")

	resp, err := env.completion.Complete(context.Background(), 1, "alice", &CompletionRequest{
		Prompt:        "first, edited",
		ChatID:        fid(first.ChatID),
		UserMessageID: fid(first.UserMessageID),
	})
	require.NoError(t, err)
	assert.Equal(t, first.UserMessageID, resp.UserMessageID)
	assert.Greater(t, resp.MessageID, second.MessageID)

	msgs := env.history(t, first.ChatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first, edited", msgs[0].Content)
	assert.Equal(t, resp.MessageID, msgs[1].ID)

	// 编辑点之前没有历史
	req := env.provider.last()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "first, edited", req.Messages[1].Content)

	deleted := env.events.ofType(websocket.TypeMessagesDeleted)
	require.Len(t, deleted, 1)
	payload := deleted[0].msg.Payload.(*websocket.MessagesDeletedPayload)
	assert.Equal(t, []int64{first.MessageID, second.UserMessageID, second.MessageID}, payload.DeletedMessageIDs)
}

func TestEditRequiresUserMessage(t *testing.T) {
	env := newEnv(t)
	first := env.send(t, 1, 0, "first")

	_, err := env.completion.Complete(context.Background(), 1, "alice", &CompletionRequest{
		Prompt:        "x",
		ChatID:        fid(first.ChatID),
		UserMessageID: fid(first.MessageID),
	})
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.Len(t, env.history(t, first.ChatID), 2)
}

func TestRegenerateOverwritesInPlace(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	first := env.send(t, 1, 0, "hello")
	_, err := env.messages.SetReaction(ctx, 1, first.ChatID, first.MessageID, model.ReactionLike)
	require.NoError(t, err)

	resp, err := env.completion.Complete(ctx, 1, "alice", &CompletionRequest{
		ChatID:              fid(first.ChatID),
		RegenerateMessageID: fid(first.MessageID),
	})
	require.NoError(t, err)
	assert.Equal(t, first.MessageID, resp.MessageID)
	assert.Equal(t, first.UserMessageID, resp.UserMessageID)
	assert.Equal(t, "reply 2", resp.Response)

	msgs := env.history(t, first.ChatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "reply 2", msgs[1].Content)
	assert.Empty(t, msgs[1].Meta().UserReaction)
	assert.Equal(t, "hello", env.provider.last().Messages[1].Content)
}

func TestRegenerateWithEditedPrompt(t *testing.T) {
	env := newEnv(t)
	first := env.send(t, 1, 0, "hello")

	_, err := env.completion.Complete(context.Background(), 1, "alice", &CompletionRequest{
		Prompt:              "hello again",
		ChatID:              fid(first.ChatID),
		RegenerateMessageID: fid(first.MessageID),
		UserMessageID:       fid(first.UserMessageID),
	})
	require.NoError(t, err)
	msgs := env.history(t, first.ChatID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello again", msgs[0].Content)
}

func TestRegenerateRejectsUserTarget(t *testing.T) {
	env := newEnv(t)
	first := env.send(t, 1, 0, "hello")

	_, err := env.completion.Complete(context.Background(), 1, "alice", &CompletionRequest{
		ChatID:              fid(first.ChatID),
		RegenerateMessageID: fid(first.UserMessageID),
	})
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestSendWithPinsAndReference(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	first := env.send(t, 1, 0, "hello")

	pin, err := env.pins.Create(ctx, 1, &CreatePinRequest{
		MessageID: fid(first.MessageID),
		ChatID:    fid(first.ChatID),
		Text:      "remember the milk",
	})
	require.NoError(t, err)

	resp, err := env.completion.Complete(ctx, 1, "alice", &CompletionRequest{
		Prompt:              "what should I remember?",
		ChatID:              fid(first.ChatID),
		ReferencedMessageID: fid(first.MessageID),
		PinIDs:              []FlexID{fid(pin.ID), "999"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{pin.ID}, resp.Metadata.PinIDs)

	req := env.provider.last()
	ctxMsg := req.Messages[len(req.Messages)-2]
	assert.Equal(t, llm.RoleSystem, ctxMsg.Role)
	assert.Contains(t, ctxMsg.Content, "remember the milk")
	assert.Contains(t, ctxMsg.Content, "reply 1")

	userMsg, err := env.messageRepo.GetByID(ctx, resp.UserMessageID)
	require.NoError(t, err)
	require.NotNil(t, userMsg.ReferencedMessageID)
	assert.Equal(t, first.MessageID, *userMsg.ReferencedMessageID)
	meta := userMsg.Meta()
	require.Len(t, meta.MentionedPins, 1)
	assert.Equal(t, "remember the milk", meta.MentionedPins[0].Label)
}

func TestSendWithTextDocument(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	doc, err := env.documents.Upload(ctx, 1, "notes.txt", 9, "text/plain", strings.NewReader("doc body!"))
	require.NoError(t, err)

	resp, err := env.completion.Complete(ctx, 1, "alice", &CompletionRequest{
		Prompt:      "summarise",
		DocumentIDs: []string{doc.DocumentID},
	})
	require.NoError(t, err)
	assert.Equal(t, doc.DocumentID, resp.Metadata.DocumentID)
	assert.Equal(t, "http://files.test/api/v1/documents/"+doc.DocumentID, resp.Metadata.DocumentURL)

	req := env.provider.last()
	assert.Contains(t, req.Messages[len(req.Messages)-2].Content, "doc body!")
}

func TestDocumentUploadLimits(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	_, err := env.documents.Upload(ctx, 1, "big.bin", 100, "application/octet-stream", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// 声明的大小不可信
	_, err = env.documents.Upload(ctx, 1, "big.bin", 1, "", strings.NewReader(strings.Repeat("x", 65)))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	doc, err := env.documents.Upload(ctx, 1, "../../etc/passwd", 4, "", strings.NewReader("root"))
	require.NoError(t, err)
	assert.Equal(t, "passwd", doc.Name)
	assert.Equal(t, int64(4), doc.Size)

	got, err := env.documents.Get(ctx, 1, doc.DocumentID)
	require.NoError(t, err)
	_, ok := env.documents.ReadText(got)
	assert.False(t, ok)

	_, err = env.documents.Get(ctx, 2, doc.DocumentID)
	assert.ErrorIs(t, err, ErrDocumentMissing)
}

func TestDeleteMessageCascades(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	first := env.send(t, 1, 0, "one")
	second := env.send(t, 1, first.ChatID, "two")

	resp, err := env.messages.Delete(ctx, 1, first.ChatID, first.MessageID)
	require.NoError(t, err)
	want := []int64{first.MessageID, second.UserMessageID, second.MessageID}
	assert.Equal(t, want, resp.DeletedMessageIDs)
	assert.Equal(t, 3, resp.DeletedCount)
	assert.Len(t, env.history(t, first.ChatID), 1)

	events := env.events.ofType(websocket.TypeMessagesDeleted)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].userID)
	assert.Equal(t, want, events[0].msg.Payload.(*websocket.MessagesDeletedPayload).DeletedMessageIDs)

	_, err = env.messages.Delete(ctx, 2, first.ChatID, first.UserMessageID)
	assert.ErrorIs(t, err, ErrChatNotFound)
	_, err = env.messages.Delete(ctx, 1, first.ChatID, second.MessageID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestReactions(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	first := env.send(t, 1, 0, "one")

	_, err := env.messages.SetReaction(ctx, 1, first.ChatID, first.MessageID, "love")
	assert.ErrorIs(t, err, ErrInvalidReaction)
	_, err = env.messages.SetReaction(ctx, 1, first.ChatID, first.UserMessageID, model.ReactionLike)
	assert.ErrorIs(t, err, ErrInvalidReaction)

	msg, err := env.messages.SetReaction(ctx, 1, first.ChatID, first.MessageID, model.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, model.ReactionDislike, msg.Meta().UserReaction)
	assert.Equal(t, "m1", msg.Meta().ModelName)

	msg, err = env.messages.ClearReaction(ctx, 1, first.ChatID, first.MessageID)
	require.NoError(t, err)
	assert.Empty(t, msg.Meta().UserReaction)

	events := env.events.ofType(websocket.TypeReactionUpdated)
	require.Len(t, events, 2)
	assert.Equal(t, "", events[1].msg.Payload.(*websocket.ReactionUpdatedPayload).Reaction)
}

func TestPinLifecycle(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	first := env.send(t, 1, 0, "one")

	_, err := env.pins.Create(ctx, 2, &CreatePinRequest{MessageID: fid(first.MessageID), ChatID: fid(first.ChatID)})
	assert.ErrorIs(t, err, ErrChatNotFound)

	pin, err := env.pins.Create(ctx, 1, &CreatePinRequest{
		MessageID: fid(first.MessageID),
		ChatID:    fid(first.ChatID),
		Tags:      []string{" go ", ""},
		FolderID:  "3",
	})
	require.NoError(t, err)
	assert.Equal(t, "reply 1", pin.Text)
	assert.Equal(t, []string{"go"}, pin.Tags)
	require.NotNil(t, pin.FolderID)
	assert.Len(t, env.events.ofType(websocket.TypePinCreated), 1)

	list, err := env.pins.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, env.pins.Delete(ctx, 2, pin.ID), ErrPinNotFound)
	require.NoError(t, env.pins.Delete(ctx, 1, pin.ID))

	second, err := env.pins.Create(ctx, 1, &CreatePinRequest{MessageID: fid(first.MessageID), ChatID: fid(first.ChatID)})
	require.NoError(t, err)
	ids, err := env.pins.DeleteByMessage(ctx, 1, first.MessageID)
	require.NoError(t, err)
	assert.Equal(t, []int64{second.ID}, ids)
	_, err = env.pins.DeleteByMessage(ctx, 1, first.MessageID)
	assert.ErrorIs(t, err, ErrPinNotFound)

	deleted := env.events.ofType(websocket.TypePinDeleted)
	require.Len(t, deleted, 2)
	assert.Equal(t, first.MessageID, deleted[1].msg.Payload.(*websocket.PinDeletedPayload).MessageID)
}

func TestAuthRegisterLoginRefresh(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	reg, err := env.auth.Register(ctx, &RegisterRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.AccessToken)
	assert.Equal(t, int64(3600), reg.ExpiresIn)

	_, err = env.auth.Register(ctx, &RegisterRequest{Username: "alice", Password: "secret1"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = env.auth.Login(ctx, &LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrPasswordWrong)
	_, err = env.auth.Login(ctx, &LoginRequest{Username: "nobody", Password: "x"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	login, err := env.auth.Login(ctx, &LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	// access token 不能用来刷新
	_, err = env.auth.RefreshToken(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	refreshed, err := env.auth.RefreshToken(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = env.auth.RefreshToken(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, env.auth.Logout(ctx, refreshed.AccessToken, time.Now().Add(time.Hour)))
	assert.True(t, env.cache.IsTokenBlacklisted(ctx, util.HashToken(refreshed.AccessToken)))
}

func TestChatServiceOwnership(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	chat, err := env.chats.Create(ctx, 1, &CreateChatRequest{Title: "   "})
	require.NoError(t, err)
	assert.Equal(t, defaultChatTitle, chat.Title)

	_, err = env.chats.Messages(ctx, 2, chat.ID)
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.ErrorIs(t, env.chats.Delete(ctx, 2, chat.ID), ErrChatNotFound)

	list, err := env.chats.List(ctx, 2)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	require.NoError(t, env.chats.Delete(ctx, 1, chat.ID))
	_, err = env.chats.Get(ctx, 1, chat.ID)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestChangePassword(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	users := NewUserService(env.auth.userRepo)

	reg, err := env.auth.Register(ctx, &RegisterRequest{Username: "carol", Password: "secret1"})
	require.NoError(t, err)

	err = users.ChangePassword(ctx, reg.User.ID, &ChangePasswordRequest{OldPassword: "nope", NewPassword: "secret2"})
	assert.ErrorIs(t, err, ErrPasswordWrong)

	require.NoError(t, users.ChangePassword(ctx, reg.User.ID, &ChangePasswordRequest{OldPassword: "secret1", NewPassword: "secret2"}))
	_, err = env.auth.Login(ctx, &LoginRequest{Username: "carol", Password: "secret2"})
	require.NoError(t, err)

	_, err = users.GetProfile(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
