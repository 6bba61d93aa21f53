package pin

import (
	"context"
	"fmt"
	"net/http"

	"pocket-chat/cli/internal/api"
)

// Backend Pin 相关的远端接口，由 *api.Client 实现
type Backend interface {
	ListPins(ctx context.Context) ([]api.Pin, error)
	CreatePin(ctx context.Context, req *api.CreatePinRequest) (*api.Pin, error)
	DeletePin(ctx context.Context, pinID string) error
	DeletePinsByMessage(ctx context.Context, messageID string) error
}

// RemoteStore 以后端为准的 Pin 存储，本地保留一份缓存
type RemoteStore struct {
	*MemoryStore
	backend Backend
}

// NewRemoteStore 创建远端存储
func NewRemoteStore(backend Backend) *RemoteStore {
	return &RemoteStore{
		MemoryStore: NewMemoryStore(),
		backend:     backend,
	}
}

// Load 从后端拉取全部 Pin
func (s *RemoteStore) Load(ctx context.Context) error {
	pins, err := s.backend.ListPins(ctx)
	if err != nil {
		return fmt.Errorf("加载 pin 失败: %w", err)
	}
	out := make([]Pin, 0, len(pins))
	for _, p := range pins {
		out = append(out, FromAPI(p))
	}
	s.Replace(out)
	return nil
}

// Pin 在后端创建 Pin 并写入缓存
func (s *RemoteStore) Pin(ctx context.Context, p Pin) (Pin, error) {
	if p.MessageID == "" {
		return Pin{}, ErrMissingMessage
	}
	created, err := s.backend.CreatePin(ctx, &api.CreatePinRequest{
		MessageID: p.MessageID,
		ChatID:    p.ChatID,
		Text:      p.Text,
		Tags:      p.Tags,
		FolderID:  p.FolderID,
	})
	if err != nil {
		return Pin{}, fmt.Errorf("创建 pin 失败: %w", err)
	}
	saved := FromAPI(*created)
	s.Put(saved)
	return saved, nil
}

// Unpin 删除某条消息上的所有 Pin
// 后端已经没有时（例如随消息级联删除）只清理缓存
func (s *RemoteStore) Unpin(ctx context.Context, messageID string) error {
	if err := s.backend.DeletePinsByMessage(ctx, messageID); err != nil && !api.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("删除 pin 失败: %w", err)
	}
	return s.MemoryStore.Unpin(ctx, messageID)
}

// Remove 根据 Pin ID 删除
func (s *RemoteStore) Remove(ctx context.Context, pinID string) error {
	if err := s.backend.DeletePin(ctx, pinID); err != nil && !api.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("删除 pin 失败: %w", err)
	}
	s.Forget(pinID)
	return nil
}

// FromAPI 转换后端 Pin
func FromAPI(p api.Pin) Pin {
	return Pin{
		ID:        p.ID.String(),
		MessageID: p.MessageID.String(),
		ChatID:    p.ChatID.String(),
		Text:      p.Text,
		Tags:      p.Tags,
		FolderID:  p.FolderID.String(),
		Time:      p.CreatedAt,
	}
}
