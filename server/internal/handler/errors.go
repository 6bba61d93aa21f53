// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pocket-chat/server/internal/middleware"
	"pocket-chat/server/internal/service"
	"pocket-chat/server/pkg/response"
	"pocket-chat/server/pkg/util"
)

// writeError 把业务错误映射为响应，未知错误记录后返回 500
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrChatNotFound):
		response.ChatNotFound(c)
	case errors.Is(err, service.ErrChatBusy):
		response.ChatBusy(c)
	case errors.Is(err, service.ErrMessageNotFound):
		response.MessageNotFound(c)
	case errors.Is(err, service.ErrModelNotFound):
		response.ErrorWithCode(c, http.StatusBadRequest, response.CodeModelNotFound, "模型不存在")
	case errors.Is(err, service.ErrEmptyPrompt):
		response.BadRequest(c, "消息内容不能为空")
	case errors.Is(err, service.ErrInvalidReaction):
		response.BadRequest(c, "反应只能是 like 或 dislike，且只能用于 AI 回复")
	case errors.Is(err, service.ErrPinNotFound):
		response.NotFound(c, "Pin 不存在")
	case errors.Is(err, service.ErrDocumentMissing):
		response.NotFound(c, "文档不存在")
	case errors.Is(err, service.ErrFileTooLarge):
		response.ErrorWithCode(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, "文件过大")
	case errors.Is(err, service.ErrUpstream):
		_ = c.Error(err)
		response.ErrorWithCode(c, http.StatusBadGateway, response.CodeUpstreamError, "模型服务暂时不可用，请稍后重试")
	case errors.Is(err, service.ErrUserExists):
		response.UserExists(c)
	case errors.Is(err, service.ErrUserNotFound):
		response.UserNotFound(c)
	case errors.Is(err, service.ErrPasswordWrong):
		response.PasswordWrong(c)
	case errors.Is(err, service.ErrUserDisabled):
		response.Forbidden(c, "账号已被禁用")
	case errors.Is(err, service.ErrInvalidToken):
		response.Unauthorized(c, "Refresh Token 无效或已过期")
	default:
		_ = c.Error(err)
		response.InternalError(c, fallback)
	}
}

// pathID 解析路径参数中的 ID，非法时直接返回 400
func pathID(c *gin.Context, name string) (int64, bool) {
	id, ok := util.ParseID(c.Param(name))
	if !ok {
		response.BadRequest(c, "无效的ID: "+c.Param(name))
		return 0, false
	}
	return id, true
}

// currentUser 当前登录用户，由 AuthMiddleware 写入
func currentUser(c *gin.Context) int64 {
	return middleware.GetUserID(c)
}
