package cache

import (
	"context"
	"time"
)

// UserEvent 一条发给某个用户的事件，Data 是序列化好的 WebSocket 消息
type UserEvent struct {
	UserID int64
	Data   []byte
}

// Cache 服务层和 WebSocket 依赖的缓存操作
// RedisCache 用于部署，MemoryCache 用于单机开发和测试
type Cache interface {
	Ping(ctx context.Context) error
	Close() error

	BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, tokenHash string) bool

	AcquireChatLock(ctx context.Context, chatID int64, ttl time.Duration) (string, bool, error)
	ReleaseChatLock(ctx context.Context, chatID int64, token string) error

	SetUserOnline(ctx context.Context, userID int64) error
	SetUserOffline(ctx context.Context, userID int64) error
	OnlineUsers(ctx context.Context) (int64, error)

	PublishUserEvent(ctx context.Context, userID int64, data []byte) error
	SubscribeUserEvents(ctx context.Context) (<-chan UserEvent, error)
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = (*MemoryCache)(nil)
)
