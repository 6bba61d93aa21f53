// Package main 是服务端的入口点
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pocket-chat/server/internal/cache"
	"pocket-chat/server/internal/config"
	"pocket-chat/server/internal/database"
	"pocket-chat/server/internal/handler"
	"pocket-chat/server/internal/llm"
	"pocket-chat/server/internal/middleware"
	"pocket-chat/server/internal/repository"
	"pocket-chat/server/internal/service"
	"pocket-chat/server/internal/websocket"
	"pocket-chat/server/pkg/jwt"
)

func main() {
	// 加载配置
	cfg, err := config.Load("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	// 初始化数据库
	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	// 初始化缓存，没有配置 Redis 时使用进程内缓存（单实例）
	var store cache.Cache
	if cfg.Redis.Host != "" {
		store, err = cache.NewRedisCache(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init redis")
		}
		logger.Info().Str("host", cfg.Redis.Host).Msg("using redis cache")
	} else {
		store = cache.NewMemoryCache()
		logger.Warn().Msg("redis not configured, using in-memory cache")
	}

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpire, cfg.JWT.RefreshExpire)

	// 模型
	provider := llm.NewProvider(cfg.AI)
	catalog := llm.NewCatalog(cfg.AI, provider)
	logger.Info().Str("provider", provider.Name()).Int("models", len(catalog.List())).Msg("model provider ready")

	// WebSocket Hub
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	hub := websocket.NewHub(store, logger)
	go func() {
		if err := hub.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("websocket hub stopped")
		}
	}()

	// Repository 层
	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	pinRepo := repository.NewPinRepository(db)
	documentRepo := repository.NewDocumentRepository(db)

	// Service 层
	documentService := service.NewDocumentService(documentRepo, cfg.Upload)
	completionService := service.NewCompletionService(service.CompletionDeps{
		ChatRepo:    chatRepo,
		MessageRepo: messageRepo,
		PinRepo:     pinRepo,
		Documents:   documentService,
		Cache:       store,
		Provider:    provider,
		Catalog:     catalog,
		Events:      hub,
		Config:      cfg.AI,
		Logger:      logger,
	})

	// Handler 层
	handlers := &handler.Handlers{
		Auth:       handler.NewAuthHandler(service.NewAuthService(userRepo, store, jwtService)),
		User:       handler.NewUserHandler(service.NewUserService(userRepo)),
		Chat:       handler.NewChatHandler(service.NewChatService(chatRepo, messageRepo), service.NewMessageService(chatRepo, messageRepo, hub), catalog),
		Completion: handler.NewCompletionHandler(completionService),
		Pin:        handler.NewPinHandler(service.NewPinService(pinRepo, chatRepo, messageRepo, hub)),
		Document:   handler.NewDocumentHandler(documentService, cfg.Upload.MaxSize),
		Health:     handler.NewHealthHandler(db, store),
	}
	wsHandler := websocket.NewHandler(hub, jwtService, store)

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.Server.CORS...)))

	handler.RegisterRoutes(router, handlers, jwtService, store, cfg.RateLimit)
	wsHandler.RegisterRoutes(router)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// 先停 Hub 再关缓存，避免订阅读到已关闭的连接
	stop()
	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close cache")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info().Msg("server exited")
}

// newLogger 调试模式输出彩色控制台日志，其余输出 JSON
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Log.Format == "console" || (!cfg.IsRelease() && cfg.Log.Format == "") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "pocket-chat").Logger()
}
