package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pocket-chat/server/internal/cache"
	"pocket-chat/server/pkg/jwt"
	"pocket-chat/server/pkg/response"
	"pocket-chat/server/pkg/util"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 命令行客户端不带 Origin，身份由 token 保证
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler 处理 WebSocket 连接
type Handler struct {
	hub        *Hub
	jwtService *jwt.JWTService
	cache      cache.Cache
}

// NewHandler 创建 WebSocket Handler
func NewHandler(hub *Hub, jwtService *jwt.JWTService, c cache.Cache) *Handler {
	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		cache:      c,
	}
}

// HandleWS 处理事件订阅连接
// 路由: GET /ws?token=<access token>
func (h *Handler) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "需要认证 token")
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		response.Unauthorized(c, "无效的 token")
		return
	}
	if h.cache.IsTokenBlacklisted(c.Request.Context(), util.HashToken(token)) {
		response.Unauthorized(c, "Token 已失效，请重新登录")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, claims.UserID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// RegisterRoutes 注册 WebSocket 路由
// token 在 query 中验证，不走认证中间件
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWS)
}
