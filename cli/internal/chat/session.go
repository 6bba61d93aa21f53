// Package chat 实现聊天时间线控制器
//
// Session 负责在异步操作（发送、编辑重发、重新生成、级联删除、引用、提及、反应、附件）
// 与后端之间保持消息列表一致。后端是消息 ID 的唯一来源：客户端只用 Key 做界面协调，
// 所有面向后端的操作都使用 ChatMessageID。
package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"pocket-chat/cli/internal/api"
	"pocket-chat/cli/internal/attachment"
	"pocket-chat/cli/internal/pin"
	"pocket-chat/cli/internal/timeline"
)

// Gateway 后端网关，由 *api.Client 实现
type Gateway interface {
	CreateChat(ctx context.Context, title, model string) (*api.Chat, error)
	Complete(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error)
	DeleteMessage(ctx context.Context, chatID, messageID string) (*api.DeleteMessageResponse, error)
	SetReaction(ctx context.Context, chatID, messageID, reaction string) error
	ClearReaction(ctx context.Context, chatID, messageID string) error
	DeleteChat(ctx context.Context, chatID string) error
	ListMessages(ctx context.Context, chatID string) ([]api.ChatMessage, error)
}

// PinStore Pin 存储，由 pin.MemoryStore / pin.RemoteStore 实现
type PinStore interface {
	Pin(ctx context.Context, p pin.Pin) (pin.Pin, error)
	Unpin(ctx context.Context, messageID string) error
	Get(pinID string) (pin.Pin, bool)
	Pins() []pin.Pin
}

// Attachments 附件状态来源，由 *attachment.Tracker 实现
type Attachments interface {
	Pending() bool
	Completed() []attachment.Attachment
	Remove(id string) bool
}

// Options Session 配置
type Options struct {
	Gateway     Gateway
	Pins        PinStore
	Attachments Attachments // 可为 nil
	Notifier    Notifier    // 可为 nil
	Store       *timeline.Store
	Logger      *zerolog.Logger

	Model  string
	User   string
	ChatID string // 为空时第一条消息会创建聊天

	// NewTurn 生成 Turn，测试中可替换
	NewTurn func() timeline.Turn
}

// Session 一个聊天窗口的控制器
// 多个 Session 可以同时存在，各自持有自己的生成锁
type Session struct {
	gateway     Gateway
	pins        PinStore
	attachments Attachments
	notifier    Notifier
	store       *timeline.Store
	logger      zerolog.Logger
	newTurn     func() timeline.Turn

	mu         sync.Mutex
	model      string
	user       string
	responding bool
	generation uint64

	// 当前生成中的占位消息
	inflight     timeline.Key
	inflightChat string

	// 每个占位消息最近一次被哪一代生成认领
	owners map[timeline.Key]uint64

	reference   timeline.Key
	referenceID string
	mentions    []timeline.MentionedPin
}

// New 创建 Session
func New(opts Options) *Session {
	s := &Session{
		gateway:     opts.Gateway,
		pins:        opts.Pins,
		attachments: opts.Attachments,
		notifier:    opts.Notifier,
		store:       opts.Store,
		newTurn:     opts.NewTurn,
		model:       opts.Model,
		user:        opts.User,
		owners:      make(map[timeline.Key]uint64),
	}
	if opts.Logger != nil {
		s.logger = opts.Logger.With().Str("component", "chat").Logger()
	} else {
		s.logger = zerolog.Nop()
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.store == nil {
		s.store = timeline.NewStore()
	}
	if s.pins == nil {
		s.pins = pin.NewMemoryStore()
	}
	if s.newTurn == nil {
		s.newTurn = timeline.NewTurn
	}
	if opts.ChatID != "" {
		s.store.SetActiveChat(opts.ChatID)
	}
	return s
}

// Store 返回时间线存储
func (s *Session) Store() *timeline.Store {
	return s.store
}

// ChatID 当前聊天 ID
func (s *Session) ChatID() string {
	return s.store.ActiveChat()
}

// Messages 当前聊天的快照
func (s *Session) Messages() timeline.Timeline {
	return s.store.Snapshot()
}

// SetMessages 界面层的更新入口
func (s *Session) SetMessages(updater func(timeline.Timeline) timeline.Timeline, chatIDOverride ...string) timeline.Timeline {
	return s.store.SetMessages(updater, chatIDOverride...)
}

// Model 当前模型
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel 切换模型
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
}

// Responding 是否正在等待响应
func (s *Session) Responding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responding
}

// acquire 获取生成锁，已被占用时返回 false
func (s *Session) acquire() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.responding {
		return 0, false
	}
	s.responding = true
	s.generation++
	return s.generation, true
}

// release 释放生成锁
// Stop 之后新一代已经持有锁时，旧一代的释放不生效
func (s *Session) release(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.holds(gen) {
		return
	}
	s.responding = false
	s.inflight = timeline.Key{}
	s.inflightChat = ""
}

// begin 认领占位消息并写入时间线
// 在此之前已被 Stop 时返回 false，调用方应放弃本次请求；
// 写入之后才被 Stop 的，占位消息会立即标记为已停止
func (s *Session) begin(gen uint64, chatID string, key timeline.Key, updater func(timeline.Timeline) timeline.Timeline) bool {
	s.mu.Lock()
	if !s.holds(gen) {
		s.mu.Unlock()
		return false
	}
	s.owners[key] = gen
	s.inflight = key
	s.inflightChat = chatID
	s.mu.Unlock()

	s.store.SetMessages(updater, chatID)

	s.mu.Lock()
	stopped := !s.holds(gen)
	s.mu.Unlock()
	if stopped {
		s.store.Dispatch(markStopped(key), chatID)
	}
	return true
}

func (s *Session) holds(gen uint64) bool {
	return s.responding && s.generation == gen
}

// settle 响应返回时检查占位消息是否仍归这一代所有
func (s *Session) settle(gen uint64, key timeline.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[key] != gen {
		return false
	}
	delete(s.owners, key)
	return true
}

// busy 生成锁被占用时的统一处理
func (s *Session) busy() error {
	s.notifier.Notify(noticeBusy)
	return invalid(ErrBusy)
}

// Stop 停止等待当前响应
// 只在本地释放生成锁并结束占位消息的加载状态，不会取消底层请求；
// 迟到的响应仍会按 Key 写回
func (s *Session) Stop() bool {
	s.mu.Lock()
	if !s.responding {
		s.mu.Unlock()
		return false
	}
	s.responding = false
	key, chatID := s.inflight, s.inflightChat
	s.inflight = timeline.Key{}
	s.inflightChat = ""
	s.mu.Unlock()

	if !key.IsZero() {
		s.store.Dispatch(markStopped(key), chatID)
	}
	s.logger.Debug().Str("key", key.String()).Msg("generation stopped")
	s.notifier.Notify(Notice{Level: LevelInfo, Title: "Stopped", Description: "Stopped waiting for the response."})
	return true
}

func (s *Session) currentModel() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model, s.user
}

func markStopped(key timeline.Key) timeline.Action {
	return timeline.ReplaceByID{ID: key, Patch: func(m *timeline.Message) {
		if !m.IsLoading {
			return
		}
		m.IsLoading = false
		m.Metadata.Stopped = true
	}}
}
