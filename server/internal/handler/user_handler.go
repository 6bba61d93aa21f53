package handler

import (
	"github.com/gin-gonic/gin"

	"pocket-chat/server/internal/service"
	"pocket-chat/server/pkg/response"
)

// UserHandler 用户资料
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler 创建 UserHandler 实例
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile 获取当前用户资料
// @Router /api/v1/users/me [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err, "获取用户信息失败")
		return
	}
	response.Success(c, user)
}

// ChangePassword 修改密码
// @Router /api/v1/users/me/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req service.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), currentUser(c), &req); err != nil {
		writeError(c, err, "修改密码失败")
		return
	}
	response.SuccessWithMessage(c, "密码修改成功", nil)
}
