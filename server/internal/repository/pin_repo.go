package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"pocket-chat/server/internal/model"
)

// PinRepository Pin 数据访问层
type PinRepository struct {
	db *gorm.DB
}

// NewPinRepository 创建 PinRepository 实例
func NewPinRepository(db *gorm.DB) *PinRepository {
	return &PinRepository{db: db}
}

// Create 创建 Pin
func (r *PinRepository) Create(ctx context.Context, pin *model.Pin) error {
	return r.db.WithContext(ctx).Create(pin).Error
}

// GetByID 获取 Pin，未找到返回 nil
func (r *PinRepository) GetByID(ctx context.Context, id int64) (*model.Pin, error) {
	var pin model.Pin
	err := r.db.WithContext(ctx).First(&pin, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pin, nil
}

// ListByUser 获取用户的全部 Pin（最早的在前）
func (r *PinRepository) ListByUser(ctx context.Context, userID int64) ([]model.Pin, error) {
	var pins []model.Pin
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&pins).Error
	return pins, err
}

// ListByIDs 按 ID 获取用户的 Pin，不属于该用户的会被忽略
func (r *PinRepository) ListByIDs(ctx context.Context, userID int64, ids []int64) ([]model.Pin, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var pins []model.Pin
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Order("id ASC").
		Find(&pins).Error
	return pins, err
}

// Delete 删除 Pin
func (r *PinRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Pin{}, id).Error
}

// DeleteByMessage 删除用户在某条消息上的所有 Pin
// 返回被删除的 Pin ID
func (r *PinRepository) DeleteByMessage(ctx context.Context, userID, messageID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Pin{}).Where("user_id = ? AND message_id = ?", userID, messageID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Where("id IN ?", ids).Delete(&model.Pin{}).Error
	})
	return ids, err
}
