package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pocket-chat/cli/internal/api"
	"pocket-chat/cli/internal/attachment"
	"pocket-chat/cli/internal/pin"
	"pocket-chat/cli/internal/timeline"
)

// pendingCall 被阻塞的补全请求，关闭 release 后才返回
type pendingCall struct {
	req     api.CompletionRequest
	release chan struct{}
}

type fakeGateway struct {
	mu sync.Mutex

	block   bool
	pending chan pendingCall

	seq         int
	chats       []string
	requests    []api.CompletionRequest
	completeErr error

	deleteCalls []string
	deleteIDs   func(messageID string) []api.ID
	deleteErr   error

	reactionCalls []string
	reactionErr   error

	deletedChats []string
	history      []api.ChatMessage
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{pending: make(chan pendingCall, 8)}
}

func (f *fakeGateway) CreateChat(_ context.Context, title, _ string) (*api.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("chat-%d", len(f.chats)+1)
	f.chats = append(f.chats, title)
	return &api.Chat{ID: api.ID(id), Title: title}, nil
}

func (f *fakeGateway) Complete(_ context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	block := f.block
	f.mu.Unlock()

	if block {
		call := pendingCall{req: *req, release: make(chan struct{})}
		f.pending <- call
		<-call.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	f.seq++
	resp := &api.CompletionResponse{
		Text:          "reply to " + req.Prompt,
		MessageID:     fmt.Sprintf("a%d", f.seq),
		UserMessageID: fmt.Sprintf("u%d", f.seq),
		Metadata:      api.MessageMetadata{ModelName: req.Model, ProviderName: "fake", OutputTokens: 3},
	}
	if req.RegenerateMessageID != "" {
		resp.MessageID = req.RegenerateMessageID
	}
	if req.UserMessageID != "" {
		resp.UserMessageID = req.UserMessageID
	}
	return resp, nil
}

func (f *fakeGateway) DeleteMessage(_ context.Context, _, messageID string) (*api.DeleteMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, messageID)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	ids := []api.ID{api.ID(messageID)}
	if f.deleteIDs != nil {
		ids = f.deleteIDs(messageID)
	}
	return &api.DeleteMessageResponse{DeletedMessageIDs: ids, DeletedCount: len(ids), Message: "deleted"}, nil
}

func (f *fakeGateway) SetReaction(_ context.Context, _, messageID, reaction string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactionCalls = append(f.reactionCalls, "set:"+reaction+":"+messageID)
	return f.reactionErr
}

func (f *fakeGateway) ClearReaction(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactionCalls = append(f.reactionCalls, "clear:"+messageID)
	return f.reactionErr
}

func (f *fakeGateway) DeleteChat(_ context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedChats = append(f.deletedChats, chatID)
	return nil
}

func (f *fakeGateway) ListMessages(context.Context, string) ([]api.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, nil
}

func (f *fakeGateway) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeGateway) lastRequest() api.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeGateway) setBlock(b bool) {
	f.mu.Lock()
	f.block = b
	f.mu.Unlock()
}

// next 等待下一个被阻塞的请求
func (f *fakeGateway) next(t *testing.T) pendingCall {
	t.Helper()
	select {
	case c := <-f.pending:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion request")
		return pendingCall{}
	}
}

// recordingPins 记录 Unpin 调用
type recordingPins struct {
	*pin.MemoryStore
	mu       sync.Mutex
	unpinned []string
}

func newRecordingPins() *recordingPins {
	return &recordingPins{MemoryStore: pin.NewMemoryStore()}
}

func (r *recordingPins) Unpin(ctx context.Context, messageID string) error {
	r.mu.Lock()
	r.unpinned = append(r.unpinned, messageID)
	r.mu.Unlock()
	return r.MemoryStore.Unpin(ctx, messageID)
}

type fakeAttachments struct {
	pending   bool
	completed []attachment.Attachment
	removed   []string
}

func (f *fakeAttachments) Pending() bool                      { return f.pending }
func (f *fakeAttachments) Completed() []attachment.Attachment { return f.completed }
func (f *fakeAttachments) Remove(id string) bool {
	for i, a := range f.completed {
		if a.ID == id {
			f.completed = append(f.completed[:i:i], f.completed[i+1:]...)
			f.removed = append(f.removed, id)
			return true
		}
	}
	return false
}

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) Notify(notice Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *noticeLog) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

func (n *noticeLog) last() Notice {
	all := n.all()
	if len(all) == 0 {
		return Notice{}
	}
	return all[len(all)-1]
}

type harness struct {
	session *Session
	gateway *fakeGateway
	pins    *recordingPins
	notices *noticeLog
	attach  *fakeAttachments
}

func newHarness(t *testing.T, model, chatID string) *harness {
	t.Helper()
	h := &harness{
		gateway: newFakeGateway(),
		pins:    newRecordingPins(),
		notices: &noticeLog{},
		attach:  &fakeAttachments{},
	}
	h.session = New(Options{
		Gateway:     h.gateway,
		Pins:        h.pins,
		Attachments: h.attach,
		Notifier:    h.notices,
		Model:       model,
		User:        "alice",
		ChatID:      chatID,
	})
	return h
}

// sendTurns 依次发送 n 条消息
func (h *harness) sendTurns(t *testing.T, n int) timeline.Timeline {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, h.session.Send(context.Background(), fmt.Sprintf("message %d", i)))
	}
	snap := h.session.Messages()
	require.Len(t, snap, 2*n)
	return snap
}

// sendAsync 在后台发送，返回结果通道
func (h *harness) sendAsync(text string) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- h.session.Send(context.Background(), text)
	}()
	return done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for operation")
		return nil
	}
}
