package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pocket-chat/server/internal/cache"
	"pocket-chat/server/internal/config"
	"pocket-chat/server/internal/middleware"
	"pocket-chat/server/pkg/jwt"
)

// Handlers 全部 HTTP 处理器
type Handlers struct {
	Auth       *AuthHandler
	User       *UserHandler
	Chat       *ChatHandler
	Completion *CompletionHandler
	Pin        *PinHandler
	Document   *DocumentHandler
	Health     *HealthHandler
}

// RegisterRoutes 注册所有 HTTP 路由，WebSocket 路由由 websocket.Handler 单独注册
func RegisterRoutes(router *gin.Engine, h *Handlers, jwtService *jwt.JWTService, tokens cache.Cache, limit config.RateLimitConfig) {
	router.GET("/health", h.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	requireAuth := middleware.AuthMiddleware(jwtService, tokens)

	// 认证相关（无需登录）
	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.RefreshToken)
		auth.POST("/logout", requireAuth, h.Auth.Logout)
	}

	authed := v1.Group("")
	authed.Use(requireAuth)

	users := authed.Group("/users")
	{
		users.GET("/me", h.User.GetProfile)
		users.PUT("/me/password", h.User.ChangePassword)
	}

	authed.GET("/models", h.Chat.ListModels)

	chats := authed.Group("/chats")
	{
		chats.POST("", h.Chat.CreateChat)
		chats.GET("", h.Chat.ListChats)
		chats.DELETE("/:chatId", h.Chat.DeleteChat)
		chats.GET("/:chatId/messages", h.Chat.ListMessages)
		chats.DELETE("/:chatId/messages/:messageId", h.Chat.DeleteMessage)
		chats.PATCH("/:chatId/messages/:messageId/reaction", h.Chat.SetReaction)
		chats.DELETE("/:chatId/messages/:messageId/reaction", h.Chat.ClearReaction)
	}

	// 补全按用户限流
	authed.POST("/chat/completion", middleware.RateLimitMiddleware(limit.RPS, limit.Burst), h.Completion.Complete)

	documents := authed.Group("/documents")
	{
		documents.POST("", h.Document.Upload)
		documents.GET("/:id", h.Document.Download)
	}

	pins := authed.Group("/pins")
	{
		pins.GET("", h.Pin.ListPins)
		pins.POST("", h.Pin.CreatePin)
		pins.DELETE("/:id", h.Pin.DeletePin)
		pins.DELETE("/by-message/:id", h.Pin.DeletePinsByMessage)
	}
}
