package service

import (
	"context"
	"strings"

	"pocket-chat/server/internal/model"
	"pocket-chat/server/internal/repository"
	"pocket-chat/server/internal/websocket"
)

// PinService 收藏管理
type PinService struct {
	pinRepo     *repository.PinRepository
	chatRepo    *repository.ChatRepository
	messageRepo *repository.MessageRepository
	events      EventSender
}

// NewPinService 创建 PinService 实例
func NewPinService(pinRepo *repository.PinRepository, chatRepo *repository.ChatRepository, messageRepo *repository.MessageRepository, events EventSender) *PinService {
	return &PinService{pinRepo: pinRepo, chatRepo: chatRepo, messageRepo: messageRepo, events: events}
}

// CreatePinRequest 创建 Pin 请求
type CreatePinRequest struct {
	MessageID FlexID   `json:"message_id" binding:"required"`
	ChatID    FlexID   `json:"chat_id" binding:"required"`
	Text      string   `json:"text"`
	Tags      []string `json:"tags"`
	FolderID  FlexID   `json:"folder_id"`
}

// List 获取用户的全部 Pin
func (s *PinService) List(ctx context.Context, userID int64) ([]model.Pin, error) {
	pins, err := s.pinRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pins == nil {
		pins = []model.Pin{}
	}
	return pins, nil
}

// Create 收藏一条消息，文本为空时取消息内容
func (s *PinService) Create(ctx context.Context, userID int64, req *CreatePinRequest) (*model.Pin, error) {
	chatID, messageID := req.ChatID.Int64(), req.MessageID.Int64()
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil || chat.UserID != userID {
		return nil, ErrChatNotFound
	}
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.ChatID != chatID {
		return nil, ErrMessageNotFound
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = stripThinking(msg.Content)
	}
	pin := &model.Pin{
		UserID:    userID,
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}
	pin.SetTags(req.Tags)
	if folder := req.FolderID.Int64(); folder > 0 {
		pin.FolderID = &folder
	}
	if err := s.pinRepo.Create(ctx, pin); err != nil {
		return nil, err
	}

	s.events.SendToUser(ctx, userID, websocket.NewMessage(websocket.TypePinCreated, pin))
	return pin, nil
}

// Delete 删除 Pin
func (s *PinService) Delete(ctx context.Context, userID, pinID int64) error {
	pin, err := s.pinRepo.GetByID(ctx, pinID)
	if err != nil {
		return err
	}
	if pin == nil || pin.UserID != userID {
		return ErrPinNotFound
	}
	if err := s.pinRepo.Delete(ctx, pinID); err != nil {
		return err
	}
	s.events.SendToUser(ctx, userID, websocket.NewMessage(websocket.TypePinDeleted, &websocket.PinDeletedPayload{
		PinID:     pin.ID,
		MessageID: pin.MessageID,
	}))
	return nil
}

// DeleteByMessage 取消收藏某条消息，返回被删除的 Pin ID
func (s *PinService) DeleteByMessage(ctx context.Context, userID, messageID int64) ([]int64, error) {
	ids, err := s.pinRepo.DeleteByMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrPinNotFound
	}
	for _, id := range ids {
		s.events.SendToUser(ctx, userID, websocket.NewMessage(websocket.TypePinDeleted, &websocket.PinDeletedPayload{
			PinID:     id,
			MessageID: messageID,
		}))
	}
	return ids, nil
}
