// Package websocket 订阅服务端推送的聊天事件
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// 消息类型常量
const (
	TypeHeartbeat = "heartbeat"
	TypePing      = "ping"
	TypePong      = "pong"

	// 服务端 -> 客户端
	TypeMessagesDeleted = "messages:deleted" // 级联删除
	TypePinCreated      = "pin:created"
	TypePinDeleted      = "pin:deleted"
	TypeReactionUpdated = "reaction:updated"
)

// Message WebSocket 消息结构
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client WebSocket 客户端
type Client struct {
	conn     *websocket.Conn
	url      string
	dialer   *websocket.Dialer
	handler  Handler
	logger   zerolog.Logger
	sendChan chan []byte
	done     chan struct{}
	mu       sync.Mutex
	running  bool
	onClose  func() // 连接关闭回调
}

// NewClient 创建 WebSocket 客户端
// wsURL: WebSocket 服务地址（如 ws://localhost:8080）
func NewClient(wsURL, token string, handler Handler, logger zerolog.Logger) *Client {
	return &Client{
		url:      fmt.Sprintf("%s/ws?token=%s", strings.TrimRight(wsURL, "/"), url.QueryEscape(token)),
		dialer:   websocket.DefaultDialer,
		handler:  handler,
		logger:   logger,
		sendChan: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// OnClose 设置连接关闭回调
func (c *Client) OnClose(handler func()) {
	c.onClose = handler
}

// Connect 连接到服务器
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("客户端已在运行")
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("连接失败: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.running = true
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()
	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.done)
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.conn.Close()
	}
	onClose := c.onClose
	c.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}

// IsRunning 检查是否正在运行
func (c *Client) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// send 发送消息
func (c *Client) send(msgType string) error {
	data, err := json.Marshal(&Message{Type: msgType, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	select {
	case c.sendChan <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("连接已关闭")
	default:
		return fmt.Errorf("发送缓冲区已满")
	}
}

// readPump 读取消息
func (c *Client) readPump() {
	defer c.Disconnect()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("ws read failed")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("ws decode failed")
			continue
		}

		switch msg.Type {
		case TypePing:
			_ = c.send(TypePong)
		case TypePong:
		default:
			if err := Dispatch(c.handler, &msg); err != nil {
				c.logger.Warn().Err(err).Str("type", msg.Type).Msg("ws event dropped")
			}
		}
	}
}

// writePump 写入消息
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second) // 心跳间隔
	defer func() {
		ticker.Stop()
		c.Disconnect()
	}()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.sendChan:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn().Err(err).Msg("ws write failed")
				return
			}

		case <-ticker.C:
			heartbeat, _ := json.Marshal(&Message{Type: TypeHeartbeat, Timestamp: time.Now().UnixMilli()})
			if err := c.conn.WriteMessage(websocket.TextMessage, heartbeat); err != nil {
				c.logger.Warn().Err(err).Msg("ws heartbeat failed")
				return
			}
		}
	}
}
