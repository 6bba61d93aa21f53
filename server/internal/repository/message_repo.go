package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"pocket-chat/server/internal/model"
)

// MessageRepository 消息数据访问层
// 同一聊天内的顺序由自增 ID 决定
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 创建新消息
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID 获取消息，未找到返回 nil
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).First(&message, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// ListByChat 获取聊天的所有消息（最早的在前）
func (r *MessageRepository) ListByChat(ctx context.Context, chatID int64) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

// ListBefore 获取某条消息之前的最近 limit 条消息（按时间正序）
// 用于构造补全请求的上下文
func (r *MessageRepository) ListBefore(ctx context.Context, chatID, beforeID int64, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND id < ?", chatID, beforeID).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// 倒序查出来的，翻转成正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Save 更新消息的全部字段
func (r *MessageRepository) Save(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Save(message).Error
}

// DeleteFrom 删除聊天中 fromID 及之后的所有消息，同时删除这些消息上的 Pin
// 返回:
//   - []int64: 被删除的消息 ID（升序）
//   - error: 数据库错误
func (r *MessageRepository) DeleteFrom(ctx context.Context, chatID, fromID int64) ([]int64, error) {
	return r.deleteWhere(ctx, "chat_id = ? AND id >= ?", chatID, fromID)
}

// DeleteAfter 删除聊天中 afterID 之后的所有消息（不含 afterID），用于编辑重发
func (r *MessageRepository) DeleteAfter(ctx context.Context, chatID, afterID int64) ([]int64, error) {
	return r.deleteWhere(ctx, "chat_id = ? AND id > ?", chatID, afterID)
}

func (r *MessageRepository) deleteWhere(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Message{}).Where(query, args...).Order("id ASC").Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("message_id IN ?", ids).Delete(&model.Pin{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&model.Message{}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
