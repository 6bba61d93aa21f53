package service

import (
	"context"
	"strings"

	"pocket-chat/server/internal/model"
	"pocket-chat/server/internal/repository"
	"pocket-chat/server/pkg/util"
)

const defaultChatTitle = "New Chat"

// ChatService 聊天管理
type ChatService struct {
	chatRepo    *repository.ChatRepository
	messageRepo *repository.MessageRepository
}

// NewChatService 创建 ChatService 实例
func NewChatService(chatRepo *repository.ChatRepository, messageRepo *repository.MessageRepository) *ChatService {
	return &ChatService{chatRepo: chatRepo, messageRepo: messageRepo}
}

// CreateChatRequest 创建聊天请求
type CreateChatRequest struct {
	Title string `json:"title" binding:"max=200"`
	Model string `json:"model"`
}

// Create 创建聊天，标题为空时使用默认标题
func (s *ChatService) Create(ctx context.Context, userID int64, req *CreateChatRequest) (*model.Chat, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultChatTitle
	}
	chat := &model.Chat{
		UserID: userID,
		Title:  util.TruncateString(title, 50),
		Model:  req.Model,
	}
	if err := s.chatRepo.Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// List 获取用户的全部聊天
func (s *ChatService) List(ctx context.Context, userID int64) ([]model.Chat, error) {
	chats, err := s.chatRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []model.Chat{}
	}
	return chats, nil
}

// Get 获取聊天并校验归属
func (s *ChatService) Get(ctx context.Context, userID, chatID int64) (*model.Chat, error) {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil || chat.UserID != userID {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

// Messages 获取聊天的全部消息，按时间顺序
func (s *ChatService) Messages(ctx context.Context, userID, chatID int64) ([]model.Message, error) {
	if _, err := s.Get(ctx, userID, chatID); err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// Delete 删除聊天及其消息和 Pin
func (s *ChatService) Delete(ctx context.Context, userID, chatID int64) error {
	if _, err := s.Get(ctx, userID, chatID); err != nil {
		return err
	}
	return s.chatRepo.Delete(ctx, chatID)
}
