package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"pocket-chat/server/internal/model"
)

// DocumentRepository 文档数据访问层
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建 DocumentRepository 实例
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create 保存文档记录
func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// GetByID 获取文档，未找到返回 nil
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// ListByIDs 获取用户的多个文档
func (r *DocumentRepository) ListByIDs(ctx context.Context, userID int64, ids []string) ([]model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var docs []model.Document
	err := r.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Find(&docs).Error
	return docs, err
}
