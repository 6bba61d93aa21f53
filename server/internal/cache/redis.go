// Package cache 提供 Redis 缓存操作的封装
// 处理 JWT 黑名单、聊天生成锁、在线状态和跨实例事件广播
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pocket-chat/server/internal/config"
)

// 键名
const (
	keyBlacklist   = "jwt:blacklist:%s"
	keyChatLock    = "chat:%d:generating"
	keyConnections = "user:%d:connections"
	keyOnlineUsers = "online:users"
	channelEvents  = "user:%d:events"
	patternEvents  = "user:*:events"
)

// releaseScript 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client // Redis 客户端实例
}

// NewRedisCache 创建 RedisCache 实例
// 参数:
//   - cfg: 应用配置（包含 Redis 连接信息）
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping 检查 Redis 连接
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ==================== JWT 黑名单 ====================

// BlacklistToken 将 Token 加入黑名单
// TTL 为 Token 的剩余有效期，过期的 Token 无需记录
func (c *RedisCache) BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error {
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, fmt.Sprintf(keyBlacklist, tokenHash), "1", ttl).Err()
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, tokenHash string) bool {
	return c.client.Exists(ctx, fmt.Sprintf(keyBlacklist, tokenHash)).Val() > 0
}

// ==================== 聊天生成锁 ====================

// AcquireChatLock 尝试获取聊天的生成锁
// 返回持有者令牌，已被占用时 ok 为 false
func (c *RedisCache) AcquireChatLock(ctx context.Context, chatID int64, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, fmt.Sprintf(keyChatLock, chatID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseChatLock 释放生成锁，令牌不匹配时不做任何事
func (c *RedisCache) ReleaseChatLock(ctx context.Context, chatID int64, token string) error {
	err := releaseScript.Run(ctx, c.client, []string{fmt.Sprintf(keyChatLock, chatID)}, token).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

// ==================== 在线状态 ====================

// SetUserOnline 记录一个新的事件连接
func (c *RedisCache) SetUserOnline(ctx context.Context, userID int64) error {
	pipe := c.client.Pipeline()
	pipe.Incr(ctx, fmt.Sprintf(keyConnections, userID))
	pipe.SAdd(ctx, keyOnlineUsers, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// SetUserOffline 移除一个事件连接，最后一个连接断开时用户离线
func (c *RedisCache) SetUserOffline(ctx context.Context, userID int64) error {
	key := fmt.Sprintf(keyConnections, userID)
	n, err := c.client.Decr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, keyOnlineUsers, userID)
	_, err = pipe.Exec(ctx)
	return err
}

// OnlineUsers 当前在线用户数
func (c *RedisCache) OnlineUsers(ctx context.Context) (int64, error) {
	return c.client.SCard(ctx, keyOnlineUsers).Result()
}

// ==================== Pub/Sub ====================
// 多实例部署时事件先发布到 Redis，再由每个实例投递给本地连接

// PublishUserEvent 发布用户事件
func (c *RedisCache) PublishUserEvent(ctx context.Context, userID int64, data []byte) error {
	return c.client.Publish(ctx, fmt.Sprintf(channelEvents, userID), data).Err()
}

// SubscribeUserEvents 订阅全部用户事件
// ctx 结束时关闭订阅和返回的通道
func (c *RedisCache) SubscribeUserEvents(ctx context.Context) (<-chan UserEvent, error) {
	ps := c.client.PSubscribe(ctx, patternEvents)
	// 等待订阅确认
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	out := make(chan UserEvent, 64)
	go func() {
		defer close(out)
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				userID, ok := userFromChannel(msg.Channel)
				if !ok {
					continue
				}
				select {
				case out <- UserEvent{UserID: userID, Data: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// userFromChannel 从 user:%d:events 中取出用户 ID
func userFromChannel(channel string) (int64, bool) {
	parts := strings.Split(channel, ":")
	if len(parts) != 3 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	return id, err == nil
}
