package service

import (
	"context"
	"fmt"

	"pocket-chat/server/internal/metrics"
	"pocket-chat/server/internal/model"
	"pocket-chat/server/internal/repository"
	"pocket-chat/server/internal/websocket"
)

// MessageService 消息删除与反应
type MessageService struct {
	chatRepo    *repository.ChatRepository
	messageRepo *repository.MessageRepository
	events      EventSender
}

// NewMessageService 创建 MessageService 实例
func NewMessageService(chatRepo *repository.ChatRepository, messageRepo *repository.MessageRepository, events EventSender) *MessageService {
	return &MessageService{chatRepo: chatRepo, messageRepo: messageRepo, events: events}
}

// DeleteResponse 删除响应
type DeleteResponse struct {
	DeletedMessageIDs []int64 `json:"deleted_message_ids"`
	DeletedCount      int     `json:"deleted_count"`
	Message           string  `json:"message"`
}

// ReactionRequest 设置反应请求
type ReactionRequest struct {
	Reaction string `json:"reaction" binding:"required"`
}

// Delete 删除一条消息以及它之后的全部消息
// 其他设备通过 messages:deleted 事件同步
func (s *MessageService) Delete(ctx context.Context, userID, chatID, messageID int64) (*DeleteResponse, error) {
	if _, err := s.message(ctx, userID, chatID, messageID); err != nil {
		return nil, err
	}

	ids, err := s.messageRepo.DeleteFrom(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.chatRepo.Touch(ctx, chatID); err != nil {
		return nil, err
	}
	metrics.MessagesDeleted.Add(float64(len(ids)))

	s.events.SendToUser(ctx, userID, websocket.NewMessage(websocket.TypeMessagesDeleted, &websocket.MessagesDeletedPayload{
		ChatID:            chatID,
		DeletedMessageIDs: ids,
	}))

	return &DeleteResponse{
		DeletedMessageIDs: ids,
		DeletedCount:      len(ids),
		Message:           fmt.Sprintf("Deleted %d message(s)", len(ids)),
	}, nil
}

// SetReaction 给回复点赞或点踩
func (s *MessageService) SetReaction(ctx context.Context, userID, chatID, messageID int64, reaction string) (*model.Message, error) {
	if reaction != model.ReactionLike && reaction != model.ReactionDislike {
		return nil, ErrInvalidReaction
	}
	return s.react(ctx, userID, chatID, messageID, reaction)
}

// ClearReaction 清除反应
func (s *MessageService) ClearReaction(ctx context.Context, userID, chatID, messageID int64) (*model.Message, error) {
	return s.react(ctx, userID, chatID, messageID, "")
}

func (s *MessageService) react(ctx context.Context, userID, chatID, messageID int64, reaction string) (*model.Message, error) {
	msg, err := s.message(ctx, userID, chatID, messageID)
	if err != nil {
		return nil, err
	}
	// 只有回复可以评价
	if msg.Role != model.MessageRoleAssistant {
		return nil, ErrInvalidReaction
	}

	meta := msg.Meta()
	meta.UserReaction = reaction
	msg.SetMeta(meta)
	if err := s.messageRepo.Save(ctx, msg); err != nil {
		return nil, err
	}

	s.events.SendToUser(ctx, userID, websocket.NewMessage(websocket.TypeReactionUpdated, &websocket.ReactionUpdatedPayload{
		ChatID:    chatID,
		MessageID: messageID,
		Reaction:  reaction,
	}))
	return msg, nil
}

// message 获取聊天内的消息并校验归属
func (s *MessageService) message(ctx context.Context, userID, chatID, messageID int64) (*model.Message, error) {
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
	return msg, nil
}
