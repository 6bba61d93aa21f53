package handler

import (
	"github.com/gin-gonic/gin"

	"pocket-chat/server/internal/middleware"
	"pocket-chat/server/internal/service"
	"pocket-chat/server/pkg/response"
)

// CompletionHandler 补全请求
type CompletionHandler struct {
	completionService *service.CompletionService
}

// NewCompletionHandler 创建 CompletionHandler 实例
func NewCompletionHandler(completionService *service.CompletionService) *CompletionHandler {
	return &CompletionHandler{completionService: completionService}
}

// Complete 发送、编辑重发或重新生成
// 同一聊天正在生成时返回 409
// @Router /api/v1/chat/completion [post]
func (h *CompletionHandler) Complete(c *gin.Context) {
	var req service.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.completionService.Complete(c.Request.Context(), currentUser(c), middleware.GetUsername(c), &req)
	if err != nil {
		writeError(c, err, "生成回复失败")
		return
	}
	response.Success(c, result)
}
