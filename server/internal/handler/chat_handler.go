package handler

import (
	"github.com/gin-gonic/gin"

	"pocket-chat/server/internal/llm"
	"pocket-chat/server/internal/service"
	"pocket-chat/server/pkg/response"
)

// ChatHandler 聊天、消息和模型列表
type ChatHandler struct {
	chatService    *service.ChatService
	messageService *service.MessageService
	catalog        *llm.Catalog
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService, messageService *service.MessageService, catalog *llm.Catalog) *ChatHandler {
	return &ChatHandler{chatService: chatService, messageService: messageService, catalog: catalog}
}

// ListModels 可用模型
// @Router /api/v1/models [get]
func (h *ChatHandler) ListModels(c *gin.Context) {
	response.Success(c, gin.H{"models": h.catalog.List()})
}

// CreateChat 创建聊天
// @Router /api/v1/chats [post]
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req service.CreateChatRequest
	// 允许空 body
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "请求参数错误: "+err.Error())
			return
		}
	}
	if req.Model != "" {
		if _, ok := h.catalog.Lookup(req.Model); !ok {
			writeError(c, service.ErrModelNotFound, "")
			return
		}
	}

	chat, err := h.chatService.Create(c.Request.Context(), currentUser(c), &req)
	if err != nil {
		writeError(c, err, "创建聊天失败")
		return
	}
	response.Success(c, chat)
}

// ListChats 聊天列表，最近活跃的在前
// @Router /api/v1/chats [get]
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chatService.List(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err, "获取聊天列表失败")
		return
	}
	response.Success(c, gin.H{"chats": chats})
}

// DeleteChat 删除聊天
// @Router /api/v1/chats/{id} [delete]
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	if err := h.chatService.Delete(c.Request.Context(), currentUser(c), chatID); err != nil {
		writeError(c, err, "删除聊天失败")
		return
	}
	response.SuccessWithMessage(c, "聊天已删除", nil)
}

// ListMessages 聊天的全部消息
// @Router /api/v1/chats/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return
	}
	messages, err := h.chatService.Messages(c.Request.Context(), currentUser(c), chatID)
	if err != nil {
		writeError(c, err, "获取消息失败")
		return
	}
	response.Success(c, gin.H{"messages": messages})
}

// DeleteMessage 删除消息及其之后的全部消息
// @Router /api/v1/chats/{chatId}/messages/{messageId} [delete]
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	chatID, messageID, ok := messagePath(c)
	if !ok {
		return
	}
	result, err := h.messageService.Delete(c.Request.Context(), currentUser(c), chatID, messageID)
	if err != nil {
		writeError(c, err, "删除消息失败")
		return
	}
	response.Success(c, result)
}

// SetReaction 点赞或点踩
// @Router /api/v1/chats/{chatId}/messages/{messageId}/reaction [patch]
func (h *ChatHandler) SetReaction(c *gin.Context) {
	chatID, messageID, ok := messagePath(c)
	if !ok {
		return
	}
	var req service.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	msg, err := h.messageService.SetReaction(c.Request.Context(), currentUser(c), chatID, messageID, req.Reaction)
	if err != nil {
		writeError(c, err, "设置反应失败")
		return
	}
	response.Success(c, msg)
}

// ClearReaction 清除反应
// @Router /api/v1/chats/{chatId}/messages/{messageId}/reaction [delete]
func (h *ChatHandler) ClearReaction(c *gin.Context) {
	chatID, messageID, ok := messagePath(c)
	if !ok {
		return
	}
	msg, err := h.messageService.ClearReaction(c.Request.Context(), currentUser(c), chatID, messageID)
	if err != nil {
		writeError(c, err, "清除反应失败")
		return
	}
	response.Success(c, msg)
}

func messagePath(c *gin.Context) (int64, int64, bool) {
	chatID, ok := pathID(c, "chatId")
	if !ok {
		return 0, 0, false
	}
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return 0, 0, false
	}
	return chatID, messageID, true
}
