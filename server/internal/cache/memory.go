package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lockEntry struct {
	token    string
	expireAt time.Time
}

// MemoryCache 进程内实现，redis.host 为空时使用
type MemoryCache struct {
	mu          sync.Mutex
	blacklist   map[string]time.Time
	locks       map[int64]lockEntry
	connections map[int64]int
	subscribers map[chan UserEvent]struct{}
	now         func() time.Time
}

// NewMemoryCache 创建 MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		blacklist:   make(map[string]time.Time),
		locks:       make(map[int64]lockEntry),
		connections: make(map[int64]int),
		subscribers: make(map[chan UserEvent]struct{}),
		now:         time.Now,
	}
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

func (c *MemoryCache) Close() error { return nil }

func (c *MemoryCache) BlacklistToken(_ context.Context, tokenHash string, expireAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if expireAt.After(c.now()) {
		c.blacklist[tokenHash] = expireAt
	}
	return nil
}

func (c *MemoryCache) IsTokenBlacklisted(_ context.Context, tokenHash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.blacklist[tokenHash]
	if !ok {
		return false
	}
	if !exp.After(c.now()) {
		delete(c.blacklist, tokenHash)
		return false
	}
	return true
}

func (c *MemoryCache) AcquireChatLock(_ context.Context, chatID int64, ttl time.Duration) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.locks[chatID]; ok && l.expireAt.After(c.now()) {
		return "", false, nil
	}
	token := uuid.NewString()
	c.locks[chatID] = lockEntry{token: token, expireAt: c.now().Add(ttl)}
	return token, true, nil
}

func (c *MemoryCache) ReleaseChatLock(_ context.Context, chatID int64, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.locks[chatID]; ok && l.token == token {
		delete(c.locks, chatID)
	}
	return nil
}

func (c *MemoryCache) SetUserOnline(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connections[userID]++
	return nil
}

func (c *MemoryCache) SetUserOffline(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connections[userID] <= 1 {
		delete(c.connections, userID)
		return nil
	}
	c.connections[userID]--
	return nil
}

func (c *MemoryCache) OnlineUsers(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.connections)), nil
}

// PublishUserEvent 投递给所有订阅者，订阅者处理不过来时丢弃
func (c *MemoryCache) PublishUserEvent(_ context.Context, userID int64, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subscribers {
		select {
		case ch <- UserEvent{UserID: userID, Data: data}:
		default:
		}
	}
	return nil
}

func (c *MemoryCache) SubscribeUserEvents(ctx context.Context) (<-chan UserEvent, error) {
	ch := make(chan UserEvent, 64)
	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subscribers, ch)
		close(ch)
		c.mu.Unlock()
	}()
	return ch, nil
}
