package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"pocket-chat/server/internal/cache"
	"pocket-chat/server/internal/metrics"
)

// Hub 是 WebSocket 连接的中心管理器
// 负责：
// 1. 管理每个用户的全部连接
// 2. 把事件经缓存广播后投递给本地连接
// 3. 同步在线状态
type Hub struct {
	// userID -> 连接集合，一个用户可能多端同时在线
	clients map[int64]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{} // Run 返回后关闭

	mu     sync.RWMutex
	cache  cache.Cache
	logger zerolog.Logger
}

// NewHub 创建 Hub 实例
func NewHub(c cache.Cache, logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		cache:      c,
		logger:     logger.With().Str("component", "ws").Logger(),
	}
}

// Run 启动 Hub 的主循环，ctx 结束时返回
// 应该在单独的 goroutine 中运行
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	events, err := h.cache.SubscribeUserEvents(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case ev, ok := <-events:
			if !ok {
				h.closeAll()
				return nil
			}
			h.deliver(ev.UserID, ev.Data)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	if err := h.cache.SetUserOnline(context.Background(), client.userID); err != nil {
		h.logger.Warn().Err(err).Int64("user_id", client.userID).Msg("set online failed")
	}
	h.logger.Debug().Int64("user_id", client.userID).Msg("client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	set, ok := h.clients[client.userID]
	if ok {
		if _, exists := set[client]; !exists {
			ok = false
		} else {
			delete(set, client)
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	client.Close()
	metrics.WSConnections.Dec()
	if err := h.cache.SetUserOffline(context.Background(), client.userID); err != nil {
		h.logger.Warn().Err(err).Int64("user_id", client.userID).Msg("set offline failed")
	}
	h.logger.Debug().Int64("user_id", client.userID).Msg("client unregistered")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.clients {
		for client := range set {
			client.Close()
		}
		delete(h.clients, userID)
	}
}

// deliver 投递给本实例上该用户的全部连接
func (h *Hub) deliver(userID int64, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		client.sendRaw(data)
	}
}

// SendToUser 向用户的所有连接推送事件
// 事件经缓存广播，其它实例上的连接同样能收到
func (h *Hub) SendToUser(ctx context.Context, userID int64, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("marshal event failed")
		return
	}
	if err := h.cache.PublishUserEvent(ctx, userID, data); err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("publish event failed")
		return
	}
	metrics.WSEventsSent.WithLabelValues(msg.Type).Inc()
}

// Register 注册客户端（供外部调用）
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister 注销客户端（供外部调用）
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ConnectedUsers 本实例上有连接的用户数
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
