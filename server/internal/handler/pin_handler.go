package handler

import (
	"github.com/gin-gonic/gin"

	"pocket-chat/server/internal/service"
	"pocket-chat/server/pkg/response"
)

// PinHandler 收藏
type PinHandler struct {
	pinService *service.PinService
}

// NewPinHandler 创建 PinHandler 实例
func NewPinHandler(pinService *service.PinService) *PinHandler {
	return &PinHandler{pinService: pinService}
}

// ListPins @Router /api/v1/pins [get]
func (h *PinHandler) ListPins(c *gin.Context) {
	pins, err := h.pinService.List(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err, "获取 Pin 失败")
		return
	}
	response.Success(c, gin.H{"pins": pins})
}

// CreatePin @Router /api/v1/pins [post]
func (h *PinHandler) CreatePin(c *gin.Context) {
	var req service.CreatePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	pin, err := h.pinService.Create(c.Request.Context(), currentUser(c), &req)
	if err != nil {
		writeError(c, err, "创建 Pin 失败")
		return
	}
	response.Success(c, pin)
}

// DeletePin @Router /api/v1/pins/{id} [delete]
func (h *PinHandler) DeletePin(c *gin.Context) {
	pinID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.pinService.Delete(c.Request.Context(), currentUser(c), pinID); err != nil {
		writeError(c, err, "删除 Pin 失败")
		return
	}
	response.SuccessWithMessage(c, "Pin 已删除", nil)
}

// DeletePinsByMessage @Router /api/v1/pins/by-message/{id} [delete]
func (h *PinHandler) DeletePinsByMessage(c *gin.Context) {
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ids, err := h.pinService.DeleteByMessage(c.Request.Context(), currentUser(c), messageID)
	if err != nil {
		writeError(c, err, "删除 Pin 失败")
		return
	}
	response.Success(c, gin.H{"deleted_pin_ids": ids})
}
