package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocket-chat/cli/internal/api"
	"pocket-chat/cli/internal/attachment"
	"pocket-chat/cli/internal/pin"
	"pocket-chat/cli/internal/timeline"
)

func TestSendWithoutModelIsRejected(t *testing.T) {
	h := newHarness(t, "", "c1")

	err := h.session.Send(context.Background(), "Hello")
	assert.ErrorIs(t, err, ErrNoModel)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.EqualError(t, err, "校验失败: 未选择模型")

	assert.Len(t, h.session.Messages(), 0)
	assert.Equal(t, 0, h.gateway.requestCount())
	assert.Contains(t, h.notices.last().Description, "select a model")
	assert.False(t, h.session.Responding())
}

func TestSendAppendsTurnAndReconciles(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	h.gateway.setBlock(true)

	done := h.sendAsync("Hello")
	call := h.gateway.next(t)

	during := h.session.Messages()
	require.Len(t, during, 2)
	assert.Equal(t, timeline.SenderUser, during[0].Sender)
	assert.Equal(t, "Hello", during[0].Content)
	assert.True(t, during[1].IsLoading)
	assert.Equal(t, during[0].ID.TurnID, during[1].ID.TurnID)
	assert.Equal(t, "c1", call.req.ChatID)
	assert.Equal(t, "gpt-4o", call.req.Model)
	assert.Equal(t, "alice", call.req.User)

	close(call.release)
	require.NoError(t, wait(t, done))

	after := h.session.Messages()
	require.Len(t, after, 2)
	assert.Equal(t, "reply to Hello", after[1].Content)
	assert.False(t, after[1].IsLoading)
	assert.Equal(t, "a1", after[1].ChatMessageID)
	assert.Equal(t, "u1", after[0].ChatMessageID)
	assert.Equal(t, "fake", after[1].Metadata.ProviderName)
	// Key 不随后端 ID 改变
	assert.Equal(t, during[0].ID, after[0].ID)
	assert.Equal(t, during[1].ID, after[1].ID)
	assert.Empty(t, h.gateway.chats)
	assert.False(t, h.session.Responding())
}

func TestFirstMessageCreatesChat(t *testing.T) {
	h := newHarness(t, "gpt-4o", "")

	require.NoError(t, h.session.Send(context.Background(), "Plan a trip\nto Kyoto"))
	assert.Equal(t, []string{"Plan a trip"}, h.gateway.chats)
	assert.Equal(t, "chat-1", h.session.ChatID())
	assert.Equal(t, "chat-1", h.gateway.lastRequest().ChatID)
	assert.Len(t, h.session.Messages(), 2)
}

func TestUserMessageFallsBackToAssistantID(t *testing.T) {
	gw := &idlessGateway{fakeGateway: newFakeGateway()}
	s := New(Options{Gateway: gw, Model: "m", ChatID: "c1"})

	require.NoError(t, s.Send(context.Background(), "hi"))
	snap := s.Messages()
	assert.Equal(t, "a1", snap[0].ChatMessageID)
	assert.Equal(t, "a1", snap[1].ChatMessageID)
}

type idlessGateway struct {
	*fakeGateway
}

func (g *idlessGateway) Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	resp, err := g.fakeGateway.Complete(ctx, req)
	if resp != nil {
		resp.UserMessageID = ""
	}
	return resp, err
}

func TestSendValidation(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")

	assert.ErrorIs(t, h.session.Send(context.Background(), "   "), ErrEmptyPrompt)

	h.attach.pending = true
	assert.ErrorIs(t, h.session.Send(context.Background(), "hi"), ErrUploadsPending)

	assert.Empty(t, h.session.Messages())
	assert.Equal(t, 0, h.gateway.requestCount())
	assert.Len(t, h.notices.all(), 2)
}

func TestSendCarriesContextThenClearsIt(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	ctx := context.Background()
	first := h.sendTurns(t, 1)

	p, err := h.pins.Pin(ctx, pin.Pin{ID: "p1", MessageID: "a1", ChatID: "c1", Text: "the capital is Paris"})
	require.NoError(t, err)
	require.NoError(t, h.session.AddMention(p.ID))
	require.NoError(t, h.session.AddMention(p.ID))
	assert.ErrorIs(t, h.session.AddMention("missing"), ErrUnknownPin)
	require.NoError(t, h.session.SetReference(first[1].ID))
	h.attach.completed = []attachment.Attachment{{ID: "x", DocumentID: "d1", URL: "/documents/d1"}}

	require.NoError(t, h.session.Send(ctx, "follow up"))

	req := h.gateway.lastRequest()
	assert.Equal(t, "a1", req.ReferencedMessageID)
	assert.Equal(t, []string{"p1"}, req.PinIDs)
	assert.Equal(t, []string{"d1"}, req.DocumentIDs)

	snap := h.session.Messages()
	user := snap[2]
	assert.Equal(t, "a1", user.ReferencedMessageID)
	assert.Equal(t, "d1", user.Metadata.DocumentID)
	require.Len(t, user.Metadata.MentionedPins, 1)
	assert.Equal(t, "the capital is Paris", user.Metadata.MentionedPins[0].Label)

	key, id := h.session.Reference()
	assert.True(t, key.IsZero())
	assert.Empty(t, id)
	assert.Empty(t, h.session.Mentions())
	assert.Empty(t, h.attach.completed)
	assert.Equal(t, []string{"x"}, h.attach.removed)
}

func TestFailedSendKeepsAttachments(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	ctx := context.Background()
	h.attach.completed = []attachment.Attachment{{ID: "x", DocumentID: "d1", URL: "/documents/d1"}}
	h.gateway.completeErr = errors.New("dial tcp: connection refused")

	require.Error(t, h.session.Send(ctx, "with file"))
	assert.Equal(t, []string{"d1"}, h.gateway.lastRequest().DocumentIDs)
	assert.Empty(t, h.session.Messages()[0].Metadata.DocumentID)
	require.Len(t, h.attach.completed, 1)
	assert.Empty(t, h.attach.removed)

	h.gateway.completeErr = nil
	require.NoError(t, h.session.Send(ctx, "with file again"))
	assert.Equal(t, []string{"d1"}, h.gateway.lastRequest().DocumentIDs)
	snap := h.session.Messages()
	require.Len(t, snap, 4)
	assert.Equal(t, "d1", snap[2].Metadata.DocumentID)
	assert.Equal(t, "/documents/d1", snap[2].Metadata.DocumentURL)
	assert.Empty(t, h.attach.completed)
	assert.Equal(t, []string{"x"}, h.attach.removed)
}

func TestBusySessionRejectsWithoutNetworkCall(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	seeded := h.sendTurns(t, 1)
	h.gateway.setBlock(true)

	done := h.sendAsync("second")
	call := h.gateway.next(t)
	before := h.session.Messages()
	requests := h.gateway.requestCount()

	ctx := context.Background()
	assert.ErrorIs(t, h.session.Send(ctx, "third"), ErrBusy)
	assert.ErrorIs(t, h.session.EditAndResubmit(ctx, seeded[0].ID, "edited"), ErrBusy)
	assert.ErrorIs(t, h.session.Regenerate(ctx, seeded[1].ID, RegenerateOptions{}), ErrBusy)
	assert.Contains(t, h.notices.last().Description, "Please wait")

	after := h.session.Messages()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Same(t, before[i], after[i])
	}
	assert.Equal(t, requests, h.gateway.requestCount())
	assert.Equal(t, 1, after.LoadingCount())

	close(call.release)
	require.NoError(t, wait(t, done))
	assert.Equal(t, 0, h.session.Messages().LoadingCount())
}

func TestEditTruncatesLaterMessages(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	store := h.session.Store()

	// user, assistant, user, assistant, user
	var msgs []*timeline.Message
	for i := 0; i < 3; i++ {
		turn := timeline.NewTurn()
		msgs = append(msgs, &timeline.Message{ID: turn.UserKey(), Sender: timeline.SenderUser, Content: "q", ChatMessageID: "u" + string(rune('0'+i))})
		if i < 2 {
			msgs = append(msgs, &timeline.Message{ID: turn.AssistantKey(), Sender: timeline.SenderAssistant, Content: "a", ChatMessageID: "a" + string(rune('0'+i))})
		}
	}
	store.Dispatch(timeline.Append{Messages: msgs})
	before := h.session.Messages()
	require.Len(t, before, 5)

	require.NoError(t, h.session.EditAndResubmit(context.Background(), before[2].ID, "edited question"))

	after := h.session.Messages()
	require.Len(t, after, 4)
	assert.Same(t, before[0], after[0])
	assert.Same(t, before[1], after[1])
	assert.Equal(t, before[2].ID, after[2].ID)
	assert.Equal(t, "edited question", after[2].Content)
	assert.NotEqual(t, before[2].ID.TurnID, after[3].ID.TurnID)
	assert.Equal(t, "reply to edited question", after[3].Content)
	assert.False(t, after[3].IsLoading)

	req := h.gateway.lastRequest()
	assert.Equal(t, "u1", req.UserMessageID)
	assert.Empty(t, req.RegenerateMessageID)
}

func TestEditUnpinsTruncatedMessages(t *testing.T) {
	ctx := context.Background()
	pinned := func(t *testing.T) (*harness, timeline.Timeline) {
		h := newHarness(t, "gpt-4o", "c1")
		seeded := h.sendTurns(t, 2)
		for _, i := range []int{1, 3} {
			_, err := h.pins.Pin(ctx, pin.Pin{MessageID: seeded[i].ChatMessageID, ChatID: "c1", Text: seeded[i].Content})
			require.NoError(t, err)
		}
		return h, seeded
	}

	h, seeded := pinned(t)
	require.NoError(t, h.session.EditAndResubmit(ctx, seeded[0].ID, "edited"))
	assert.Len(t, h.session.Messages(), 2)
	assert.ElementsMatch(t, []string{seeded[1].ChatMessageID, seeded[3].ChatMessageID}, h.pins.unpinned)
	assert.Empty(t, h.pins.Pins())

	// 编辑失败时服务端没有删除任何消息，Pin 保留
	h, seeded = pinned(t)
	h.gateway.completeErr = errors.New("dial tcp: connection refused")
	require.Error(t, h.session.EditAndResubmit(ctx, seeded[0].ID, "edited"))
	assert.Empty(t, h.pins.unpinned)
	assert.Len(t, h.pins.Pins(), 2)
}

func TestEditUnknownMessage(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	err := h.session.EditAndResubmit(context.Background(), timeline.NewTurn().UserKey(), "x")
	assert.ErrorIs(t, err, ErrUnknownMessage)
	assert.False(t, h.session.Responding())
	assert.Equal(t, 0, h.gateway.requestCount())
}

func TestRegenerateWithoutBackendIDIsRejected(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	turn := timeline.NewTurn()
	h.session.Store().Dispatch(timeline.Append{Messages: []*timeline.Message{
		{ID: turn.UserKey(), Sender: timeline.SenderUser, Content: "q", ChatMessageID: "u1"},
		{ID: turn.AssistantKey(), Sender: timeline.SenderAssistant, Content: "a"},
	}})

	err := h.session.Regenerate(context.Background(), turn.AssistantKey(), RegenerateOptions{})
	assert.ErrorIs(t, err, ErrMissingIdentifiers)
	assert.Contains(t, h.notices.last().Description, "missing message identifiers")
	assert.Equal(t, 0, h.gateway.requestCount())
	assert.False(t, h.session.Responding())
}

func TestRegenerateChangesOnlyThePlaceholder(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	seeded := h.sendTurns(t, 2)

	require.NoError(t, h.session.Regenerate(context.Background(), seeded[1].ID, RegenerateOptions{}))

	after := h.session.Messages()
	require.Len(t, after, 4)
	changed := 0
	for i := range seeded {
		if seeded[i] != after[i] {
			changed++
			assert.Equal(t, seeded[1].ID, after[i].ID)
		}
	}
	assert.Equal(t, 1, changed)
	assert.Equal(t, "a1", after[1].ChatMessageID)

	req := h.gateway.lastRequest()
	assert.Equal(t, "a1", req.RegenerateMessageID)
	assert.Equal(t, "u1", req.UserMessageID)
	assert.Equal(t, "message 0", req.Prompt)
}

func TestRegenerateWithEditedPrompt(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	seeded := h.sendTurns(t, 1)
	h.gateway.setBlock(true)

	prompt := "be brief"
	done := make(chan error, 1)
	go func() {
		done <- h.session.Regenerate(context.Background(), seeded[1].ID, RegenerateOptions{Prompt: &prompt})
	}()
	call := h.gateway.next(t)

	during := h.session.Messages()
	assert.True(t, during[1].IsLoading)
	assert.Empty(t, during[1].Content)
	assert.Equal(t, "be brief", during[0].Content)
	assert.Equal(t, "be brief", call.req.Prompt)

	close(call.release)
	require.NoError(t, wait(t, done))
	assert.Equal(t, "reply to be brief", h.session.Messages()[1].Content)
}

func TestDeleteCascadeUnpins(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	ctx := context.Background()
	seeded := h.sendTurns(t, 3)

	// 按后端返回的顺序删除 index 2 及之后的全部消息
	h.gateway.deleteIDs = func(string) []api.ID {
		var ids []api.ID
		for _, m := range seeded[2:] {
			ids = append(ids, api.ID(m.ChatMessageID))
		}
		return ids
	}
	for _, i := range []int{0, 1, 3, 4} {
		_, err := h.pins.Pin(ctx, pin.Pin{MessageID: seeded[i].ChatMessageID, ChatID: "c1", Text: seeded[i].Content})
		require.NoError(t, err)
	}

	ids, err := h.session.DeleteMessage(ctx, seeded[2].ID)
	require.NoError(t, err)
	assert.Len(t, ids, 4)

	after := h.session.Messages()
	require.Len(t, after, 2)
	assert.Same(t, seeded[0], after[0])
	assert.Same(t, seeded[1], after[1])

	assert.ElementsMatch(t, []string{seeded[3].ChatMessageID, seeded[4].ChatMessageID}, h.pins.unpinned)
	assert.Len(t, h.pins.Pins(), 2)
}

func TestDeleteTrustsBackendList(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	seeded := h.sendTurns(t, 2)
	h.gateway.deleteIDs = func(id string) []api.ID {
		return []api.ID{api.ID(id), "unknown-99"}
	}

	ids, err := h.session.DeleteMessage(context.Background(), seeded[3].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{seeded[3].ChatMessageID, "unknown-99"}, ids)
	assert.Len(t, h.session.Messages(), 3)
}

func TestDeleteNeedsBackendID(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	h.gateway.setBlock(true)
	done := h.sendAsync("hi")
	call := h.gateway.next(t)

	placeholder := h.session.Messages()[1]
	_, err := h.session.DeleteMessage(context.Background(), placeholder.ID)
	assert.ErrorIs(t, err, ErrStillGenerating)
	assert.Contains(t, h.notices.last().Description, "still generating")

	_, err = h.session.PinMessage(context.Background(), placeholder.ID, PinOptions{})
	assert.ErrorIs(t, err, ErrStillGenerating)
	assert.Empty(t, h.gateway.deleteCalls)

	close(call.release)
	require.NoError(t, wait(t, done))
}

func TestReactionToggleIsIdempotent(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	seeded := h.sendTurns(t, 1)
	key := seeded[1].ID
	ctx := context.Background()

	require.NoError(t, h.session.React(ctx, key, ReactionLike))
	assert.Equal(t, ReactionLike, h.session.Messages()[1].Metadata.UserReaction)
	require.NoError(t, h.session.React(ctx, key, ReactionLike))
	assert.Empty(t, h.session.Messages()[1].Metadata.UserReaction)

	// 没有反应时清除不发请求
	require.NoError(t, h.session.React(ctx, key, ""))
	assert.Equal(t, []string{"set:like:a1", "clear:a1"}, h.gateway.reactionCalls)

	assert.ErrorIs(t, h.session.React(ctx, key, "love"), ErrInvalidReaction)
}

func TestReactionFailureKeepsLocalState(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	seeded := h.sendTurns(t, 1)
	h.gateway.reactionErr = &api.StatusError{StatusCode: http.StatusForbidden, Message: "nope"}

	err := h.session.React(context.Background(), seeded[1].ID, ReactionDislike)
	var br *BackendRejection
	require.ErrorAs(t, err, &br)
	assert.Equal(t, http.StatusForbidden, br.Status)
	assert.Same(t, seeded[1], h.session.Messages()[1])
}

func TestStopToleratesLateResponse(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	h.gateway.setBlock(true)

	first := h.sendAsync("slow")
	call1 := h.gateway.next(t)
	stoppedKey := h.session.Messages()[1].ID

	require.True(t, h.session.Stop())
	assert.False(t, h.session.Responding())
	stopped := h.session.Messages().Find(stoppedKey)
	assert.False(t, stopped.IsLoading)
	assert.True(t, stopped.Metadata.Stopped)
	assert.False(t, h.session.Stop())

	second := h.sendAsync("fast")
	call2 := h.gateway.next(t)
	assert.Equal(t, 1, h.session.Messages().LoadingCount())

	// 旧请求迟到：写回自己的占位消息，不释放新一代的锁
	close(call1.release)
	require.NoError(t, wait(t, first))
	assert.True(t, h.session.Responding())
	late := h.session.Messages().Find(stoppedKey)
	assert.Equal(t, "reply to slow", late.Content)
	assert.False(t, late.IsLoading)
	assert.Equal(t, 1, h.session.Messages().LoadingCount())

	close(call2.release)
	require.NoError(t, wait(t, second))
	assert.False(t, h.session.Responding())
	assert.Equal(t, 0, h.session.Messages().LoadingCount())
	assert.Len(t, h.session.Messages(), 4)
}

func TestStoppedResponseDoesNotBindEditedMessage(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	h.gateway.setBlock(true)
	ctx := context.Background()

	first := h.sendAsync("hi")
	call1 := h.gateway.next(t)
	userKey := h.session.Messages()[0].ID
	require.True(t, h.session.Stop())

	edit := make(chan error, 1)
	go func() { edit <- h.session.EditAndResubmit(ctx, userKey, "bye") }()
	call2 := h.gateway.next(t)
	assert.Empty(t, call2.req.UserMessageID)

	// 旧请求的占位消息已被截断，迟到的响应不能给用户消息绑定后端 ID
	close(call1.release)
	require.NoError(t, wait(t, first))
	snap := h.session.Messages()
	require.Len(t, snap, 2)
	assert.Empty(t, snap[0].ChatMessageID)
	assert.True(t, snap[1].IsLoading)

	close(call2.release)
	require.NoError(t, wait(t, edit))
	snap = h.session.Messages()
	require.Len(t, snap, 2)
	assert.Equal(t, "bye", snap[0].Content)
	assert.Equal(t, "u2", snap[0].ChatMessageID)
	assert.Equal(t, "a2", snap[1].ChatMessageID)
	assert.Equal(t, "reply to bye", snap[1].Content)
}

func TestLateResponseLandsInOriginatingChat(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	h.gateway.setBlock(true)

	done := h.sendAsync("hello")
	call := h.gateway.next(t)
	h.session.NewChat()
	assert.Empty(t, h.session.ChatID())

	close(call.release)
	require.NoError(t, wait(t, done))

	assert.Empty(t, h.session.Messages())
	origin := h.session.Store().Snapshot("c1")
	require.Len(t, origin, 2)
	assert.Equal(t, "reply to hello", origin[1].Content)
}

func TestNetworkFailureFinalisesPlaceholder(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	h.gateway.completeErr = errors.New("dial tcp: connection refused")

	err := h.session.Send(context.Background(), "hi")
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)

	snap := h.session.Messages()
	require.Len(t, snap, 2)
	assert.False(t, snap[1].IsLoading)
	assert.Contains(t, snap[1].Content, "could not reach the server")
	assert.Empty(t, snap[1].ChatMessageID)
	assert.Equal(t, LevelDestructive, h.notices.last().Level)
	assert.False(t, h.session.Responding())
}

func TestUnreadableResponseIsNotANetworkError(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	h.gateway.completeErr = fmt.Errorf("%w: %w", api.ErrDecode, errors.New("invalid character '<'"))

	err := h.session.Send(context.Background(), "hi")
	var re *ResponseError
	require.ErrorAs(t, err, &re)
	var ne *NetworkError
	assert.False(t, errors.As(err, &ne))

	snap := h.session.Messages()
	require.Len(t, snap, 2)
	assert.False(t, snap[1].IsLoading)
	assert.Contains(t, snap[1].Content, "could not be read")
	assert.NotContains(t, snap[1].Content, "could not reach the server")
}

func TestBackendRejectionUsesServerMessage(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	h.gateway.completeErr = &api.StatusError{StatusCode: http.StatusTooManyRequests, Message: "rate limit exceeded"}

	err := h.session.Send(context.Background(), "hi")
	var br *BackendRejection
	require.ErrorAs(t, err, &br)
	assert.Equal(t, http.StatusTooManyRequests, br.Status)
	assert.Equal(t, "Error: rate limit exceeded", h.session.Messages()[1].Content)
	assert.False(t, h.session.Responding())
}

func TestOpenChatLoadsHistory(t *testing.T) {
	h := newHarness(t, "gpt-4o", "")
	h.gateway.history = []api.ChatMessage{
		{ID: "10", Role: "user", Content: "why?"},
		{ID: "11", Role: "assistant", Content: "<think>hmm</think>because", Metadata: api.MessageMetadata{UserReaction: "like"}},
	}

	require.NoError(t, h.session.OpenChat(context.Background(), "c9"))
	assert.Equal(t, "c9", h.session.ChatID())

	snap := h.session.Messages()
	require.Len(t, snap, 2)
	assert.Equal(t, "10", snap[0].ChatMessageID)
	assert.Equal(t, "because", snap[1].Content)
	assert.Equal(t, "hmm", snap[1].ThinkingContent)
	assert.Equal(t, "like", snap[1].Metadata.UserReaction)
	assert.NotEqual(t, snap[0].ID, snap[1].ID)

	require.NoError(t, h.session.Regenerate(context.Background(), snap[1].ID, RegenerateOptions{}))
	assert.Equal(t, "11", h.gateway.lastRequest().RegenerateMessageID)
	assert.Equal(t, "10", h.gateway.lastRequest().UserMessageID)
}

func TestDeleteChatDropsSnapshotAndPins(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	ctx := context.Background()
	seeded := h.sendTurns(t, 1)
	_, err := h.pins.Pin(ctx, pin.Pin{MessageID: seeded[1].ChatMessageID, ChatID: "c1", Text: "x"})
	require.NoError(t, err)
	_, err = h.pins.Pin(ctx, pin.Pin{MessageID: "other", ChatID: "c2", Text: "y"})
	require.NoError(t, err)

	require.NoError(t, h.session.DeleteChat(ctx))
	assert.Equal(t, []string{"c1"}, h.gateway.deletedChats)
	assert.Empty(t, h.session.ChatID())
	assert.Nil(t, h.session.Store().Snapshot("c1"))
	assert.Equal(t, []string{seeded[1].ChatMessageID}, h.pins.unpinned)
	assert.Len(t, h.pins.Pins(), 1)

	assert.ErrorIs(t, h.session.DeleteChat(ctx), ErrNoChat)
}

func TestApplyRemoteDeletion(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	seeded := h.sendTurns(t, 2)
	require.NoError(t, h.session.SetReference(seeded[3].ID))

	n := h.session.ApplyRemoteDeletion("c1", []string{seeded[2].ChatMessageID, seeded[3].ChatMessageID, "ghost"})
	assert.Equal(t, 2, n)
	assert.Len(t, h.session.Messages(), 2)

	_, ref := h.session.Reference()
	assert.Empty(t, ref)
}

func TestSetReferenceRules(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	seeded := h.sendTurns(t, 1)

	assert.ErrorIs(t, h.session.SetReference(seeded[0].ID), ErrNotReferenceable)
	require.NoError(t, h.session.SetReference(seeded[1].ID))
	key, id := h.session.Reference()
	assert.Equal(t, seeded[1].ID, key)
	assert.Equal(t, "a1", id)

	h.session.ClearReference()
	_, id = h.session.Reference()
	assert.Empty(t, id)
}

func TestSessionsDoNotShareTheMutex(t *testing.T) {
	a := newHarness(t, "gpt-4o", "c1")
	b := newHarness(t, "gpt-4o", "c2")
	a.gateway.setBlock(true)

	done := a.sendAsync("slow")
	call := a.gateway.next(t)

	require.NoError(t, b.session.Send(context.Background(), "independent"))
	assert.True(t, a.session.Responding())
	assert.False(t, b.session.Responding())

	close(call.release)
	require.NoError(t, wait(t, done))
}

func TestPinMessage(t *testing.T) {
	h := newHarness(t, "gpt-4o", "c1")
	seeded := h.sendTurns(t, 1)

	p, err := h.session.PinMessage(context.Background(), seeded[1].ID, PinOptions{Tags: []string{"travel"}})
	require.NoError(t, err)
	assert.Equal(t, "a1", p.MessageID)
	assert.Equal(t, "c1", p.ChatID)
	assert.Equal(t, "reply to message 0", p.Text)
	assert.Equal(t, "Pinned", h.notices.last().Title)
}

func TestSplitThinking(t *testing.T) {
	content, thinking := SplitThinking("<think>step 1</think>\nAnswer")
	assert.Equal(t, "Answer", content)
	assert.Equal(t, "step 1", thinking)

	content, thinking = SplitThinking("Partial <think>still going")
	assert.Equal(t, "Partial", content)
	assert.Equal(t, "still going", thinking)

	content, thinking = SplitThinking("plain")
	assert.Equal(t, "plain", content)
	assert.Empty(t, thinking)
}
