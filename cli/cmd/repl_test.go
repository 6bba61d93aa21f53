package cmd

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocket-chat/cli/internal/api"
	"pocket-chat/cli/internal/chat"
	"pocket-chat/cli/internal/pin"
	"pocket-chat/cli/internal/timeline"
)

type replGateway struct {
	mu        sync.Mutex
	seq       int
	prompts   []string
	reactions []string
	deleted   []string
	issued    []string // 按顺序分配过的消息 ID
}

func (g *replGateway) CreateChat(context.Context, string, string) (*api.Chat, error) {
	return &api.Chat{ID: "c1", Title: "t"}, nil
}

func (g *replGateway) Complete(_ context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.prompts = append(g.prompts, req.Prompt)
	resp := &api.CompletionResponse{
		Text:          "echo: " + req.Prompt,
		MessageID:     fmt.Sprintf("a%d", g.seq),
		UserMessageID: fmt.Sprintf("u%d", g.seq),
		Metadata:      api.MessageMetadata{ModelName: req.Model},
	}
	if req.RegenerateMessageID != "" {
		resp.MessageID = req.RegenerateMessageID
		return resp, nil
	}
	g.issued = append(g.issued, resp.UserMessageID, resp.MessageID)
	return resp, nil
}

func (g *replGateway) DeleteMessage(_ context.Context, _, messageID string) (*api.DeleteMessageResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, messageID)
	// 级联删除该消息及之后的消息
	var ids []api.ID
	for i, id := range g.issued {
		if id == messageID {
			for _, rest := range g.issued[i:] {
				ids = append(ids, api.ID(rest))
			}
			g.issued = g.issued[:i]
			break
		}
	}
	return &api.DeleteMessageResponse{DeletedMessageIDs: ids, DeletedCount: len(ids)}, nil
}

func (g *replGateway) SetReaction(_ context.Context, _, messageID, reaction string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reactions = append(g.reactions, messageID+"="+reaction)
	return nil
}

func (g *replGateway) ClearReaction(_ context.Context, _, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reactions = append(g.reactions, messageID+"=")
	return nil
}

func (g *replGateway) DeleteChat(context.Context, string) error { return nil }

func (g *replGateway) ListMessages(context.Context, string) ([]api.ChatMessage, error) {
	return []api.ChatMessage{
		{ID: "7", Role: "user", Content: "old question"},
		{ID: "8", Role: "assistant", Content: "<think>hmm</think>old answer"},
	}, nil
}

func newTestREPL(t *testing.T) (*repl, *replGateway, *pin.MemoryStore, *bytes.Buffer) {
	t.Helper()
	gw := &replGateway{}
	pins := pin.NewMemoryStore()
	out := &bytes.Buffer{}
	var r *repl
	session := chat.New(chat.Options{
		Gateway: gw,
		Pins:    pins,
		Notifier: chat.NotifierFunc(func(n chat.Notice) {
			r.notify(n)
		}),
		Model: "echo-1",
	})
	r = newREPL(session, nil, pins, out)
	return r, gw, pins, out
}

func TestREPLSendAndActions(t *testing.T) {
	r, gw, pins, out := newTestREPL(t)

	script := strings.Join([]string{
		"hello",
		"/wait",
		"/react 2 like",
		"/pin 2 docs",
		"/regen 2 hello again",
		"/wait",
		"/delete 1",
		"/quit",
		"never sent",
	}, "\n")
	require.NoError(t, r.run(context.Background(), strings.NewReader(script)))

	output := out.String()
	assert.Contains(t, output, "[2] ai (echo-1): echo: hello")
	assert.Contains(t, output, "[info] Pinned")
	assert.Contains(t, output, "echo: hello again")
	assert.Contains(t, output, "deleted 2 message(s)")

	assert.Equal(t, []string{"hello", "hello again"}, gw.prompts)
	assert.Equal(t, []string{"a1=like"}, gw.reactions)
	assert.Equal(t, []string{"u1"}, gw.deleted)
	assert.Empty(t, r.session.Messages())
	// 被删除消息上的 Pin 一并移除
	assert.Empty(t, pins.Pins())
}

func TestREPLValidation(t *testing.T) {
	r, gw, _, out := newTestREPL(t)

	r.handle(context.Background(), "/edit 9 text")
	r.handle(context.Background(), "/react x like")
	r.handle(context.Background(), "/bogus")
	r.session.SetModel("")
	r.handle(context.Background(), "hi")
	r.ops.Wait()

	output := out.String()
	assert.Contains(t, output, "序号超出范围")
	assert.Contains(t, output, "无效的序号")
	assert.Contains(t, output, "未知命令 /bogus")
	assert.Contains(t, output, "[warning] No model selected: Please select a model before sending a message.")
	assert.Empty(t, gw.prompts)
}

func TestREPLMentionPicker(t *testing.T) {
	r, gw, pins, out := newTestREPL(t)
	pins.Put(pin.Pin{ID: "p1", MessageID: "m1", Text: "golang notes"})
	pins.Put(pin.Pin{ID: "p2", MessageID: "m2", Text: "rust notes"})

	ctx := context.Background()
	r.handle(ctx, "/mention rust")
	assert.True(t, r.composer.Picker().IsOpen())
	r.handle(ctx, "enter")
	assert.False(t, r.composer.Picker().IsOpen())
	assert.Contains(t, out.String(), "mentioned @rust notes")

	require.Len(t, r.session.Mentions(), 1)
	r.handle(ctx, "question")
	r.ops.Wait()

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, []string{"question"}, gw.prompts)
	assert.Empty(t, r.session.Mentions())
}

func TestREPLOpenShowsHistory(t *testing.T) {
	r, _, _, out := newTestREPL(t)
	r.handle(context.Background(), "/open c9")

	assert.Equal(t, "c9", r.session.ChatID())
	assert.Contains(t, out.String(), "[1] you: old question")
	assert.Contains(t, out.String(), "[2] ai: old answer")
	assert.NotContains(t, out.String(), "hmm")
}

func TestRender(t *testing.T) {
	m := &timeline.Message{
		Sender:  timeline.SenderAssistant,
		Content: "",
		Metadata: timeline.Metadata{
			ModelName:     "m",
			Stopped:       true,
			UserReaction:  chat.ReactionDislike,
			MentionedPins: []timeline.MentionedPin{{ID: "p", Label: "notes"}},
		},
	}
	assert.Equal(t, "[3] ai (m): (stopped)  👎  @notes", render(3, m))
}
