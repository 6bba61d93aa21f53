package timeline

import (
	"sync"
)

// Listener 快照变更回调
type Listener func(chatID string, t Timeline)

// Store 保存每个聊天的当前快照
// 这是唯一的共享可变资源，所有访问都经过 SetMessages / Dispatch
type Store struct {
	mu        sync.RWMutex
	chats     map[string]Timeline // chatID -> 快照
	active    string              // 当前聊天 ID，空表示尚未创建
	listeners map[int]Listener
	nextID    int
}

// NewStore 创建 Store 实例
func NewStore() *Store {
	return &Store{
		chats:     make(map[string]Timeline),
		listeners: make(map[int]Listener),
	}
}

// ActiveChat 返回当前聊天 ID
func (s *Store) ActiveChat() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActiveChat 切换当前聊天
func (s *Store) SetActiveChat(chatID string) {
	s.mu.Lock()
	s.active = chatID
	s.mu.Unlock()
}

// Snapshot 返回聊天快照，不传 chatID 时使用当前聊天
func (s *Store) Snapshot(chatIDOverride ...string) Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chats[s.resolve(chatIDOverride)]
}

// SetMessages 函数式更新快照
// updater 接收旧快照并返回新快照，不得修改传入的切片
// chatIDOverride 用于把迟到的响应写回发起请求时的聊天，而不是当前聊天
func (s *Store) SetMessages(updater func(Timeline) Timeline, chatIDOverride ...string) Timeline {
	if updater == nil {
		return s.Snapshot(chatIDOverride...)
	}

	s.mu.Lock()
	chatID := s.resolve(chatIDOverride)
	prev := s.chats[chatID]
	next := updater(prev)
	changed := !sameSnapshot(prev, next)
	if changed {
		s.chats[chatID] = next
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if changed {
		for _, l := range listeners {
			l(chatID, next)
		}
	}
	return next
}

// Dispatch 对快照应用一个动作
func (s *Store) Dispatch(action Action, chatIDOverride ...string) Timeline {
	return s.SetMessages(func(t Timeline) Timeline {
		return Reduce(t, action)
	}, chatIDOverride...)
}

// Drop 删除整个聊天的快照
func (s *Store) Drop(chatID string) {
	s.mu.Lock()
	delete(s.chats, chatID)
	if s.active == chatID {
		s.active = ""
	}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, l := range listeners {
		l(chatID, nil)
	}
}

// Subscribe 注册变更监听，返回取消函数
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) resolve(override []string) string {
	if len(override) > 0 && override[0] != "" {
		return override[0]
	}
	return s.active
}

func (s *Store) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

// sameSnapshot 判断两个快照是否为同一切片
func sameSnapshot(a, b Timeline) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return (a == nil) == (b == nil)
	}
	return &a[0] == &b[0]
}
