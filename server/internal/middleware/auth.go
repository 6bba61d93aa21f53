// Package middleware 提供 HTTP 请求的中间件
// 包括 JWT 认证、CORS 跨域、日志记录、限流等
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pocket-chat/server/internal/cache"
	"pocket-chat/server/pkg/jwt"
	"pocket-chat/server/pkg/response"
	"pocket-chat/server/pkg/util"
)

// 上下文中的键
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxToken    = "token"
	ctxTokenExp = "token_exp"
)

// AuthMiddleware 创建 JWT 认证中间件
// 验证请求头中的 Bearer Token，并将用户信息存入上下文
// 参数:
//   - jwtService: JWT 服务实例，用于解析和验证 Token
//   - tokens: 缓存实例，用于检查 Token 黑名单
func AuthMiddleware(jwtService *jwt.JWTService, tokens cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 格式: "Bearer <token>"
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			response.Unauthorized(c, "认证格式错误")
			c.Abort()
			return
		}
		tokenString := parts[1]

		// 2. 验证签名和过期时间
		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token 无效或已过期")
			c.Abort()
			return
		}

		// 3. 登出后的 Token 在黑名单中
		if tokens.IsTokenBlacklisted(c.Request.Context(), util.HashToken(tokenString)) {
			response.Unauthorized(c, "Token 已失效，请重新登录")
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUsername, claims.Username)
		c.Set(ctxToken, tokenString)
		if claims.ExpiresAt != nil {
			c.Set(ctxTokenExp, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID，未认证返回 0
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

// GetUsername 从上下文获取用户名
func GetUsername(c *gin.Context) string {
	return c.GetString(ctxUsername)
}

// GetToken 返回当前请求的原始 Token 及其过期时间，登出时使用
func GetToken(c *gin.Context) (string, time.Time) {
	return c.GetString(ctxToken), c.GetTime(ctxTokenExp)
}
