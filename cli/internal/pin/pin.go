// Package pin 管理用户收藏（Pin）的消息片段
package pin

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// 错误定义
var (
	ErrPinNotFound    = errors.New("pin 不存在")
	ErrMissingMessage = errors.New("pin 必须关联一条消息")
)

// labelMaxRunes 标签的最大字符数
const labelMaxRunes = 40

// Pin 被收藏的消息片段
type Pin struct {
	ID        string
	MessageID string // 后端消息 ID
	ChatID    string
	Text      string
	Tags      []string
	FolderID  string
	Time      time.Time
}

// Label 返回用于展示的简短标签
func (p Pin) Label() string {
	text := strings.Join(strings.Fields(p.Text), " ")
	if text == "" {
		return p.ID
	}
	if utf8.RuneCountInString(text) <= labelMaxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:labelMaxRunes]) + "…"
}

// MemoryStore 进程内 Pin 存储
// RemoteStore 也用它作为本地缓存
type MemoryStore struct {
	mu   sync.RWMutex
	pins map[string]Pin
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pins: make(map[string]Pin)}
}

// Pin 保存一个 Pin，未指定 ID 时自动生成
func (s *MemoryStore) Pin(_ context.Context, p Pin) (Pin, error) {
	if p.MessageID == "" {
		return Pin{}, ErrMissingMessage
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Time.IsZero() {
		p.Time = time.Now()
	}
	p.Tags = slices.Clone(p.Tags)
	s.Put(p)
	return p, nil
}

// Unpin 删除某条消息上的所有 Pin
func (s *MemoryStore) Unpin(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.pins {
		if p.MessageID == messageID {
			delete(s.pins, id)
		}
	}
	return nil
}

// Put 写入缓存（远端事件同步时使用）
func (s *MemoryStore) Put(p Pin) {
	s.mu.Lock()
	s.pins[p.ID] = p
	s.mu.Unlock()
}

// Forget 根据 Pin ID 删除
func (s *MemoryStore) Forget(pinID string) {
	s.mu.Lock()
	delete(s.pins, pinID)
	s.mu.Unlock()
}

// Replace 用给定列表替换全部缓存
func (s *MemoryStore) Replace(pins []Pin) {
	next := make(map[string]Pin, len(pins))
	for _, p := range pins {
		next[p.ID] = p
	}
	s.mu.Lock()
	s.pins = next
	s.mu.Unlock()
}

// Get 根据 ID 获取 Pin
func (s *MemoryStore) Get(pinID string) (Pin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pins[pinID]
	return p, ok
}

// Pins 返回全部 Pin，按创建时间排序
func (s *MemoryStore) Pins() []Pin {
	s.mu.RLock()
	out := make([]Pin, 0, len(s.pins))
	for _, p := range s.pins {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// ByChat 返回某个聊天下的 Pin
func (s *MemoryStore) ByChat(chatID string) []Pin {
	var out []Pin
	for _, p := range s.Pins() {
		if p.ChatID == chatID {
			out = append(out, p)
		}
	}
	return out
}
