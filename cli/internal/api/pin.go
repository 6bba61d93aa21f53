package api

import (
	"context"
	"net/url"
	"time"
)

// --- Pin ---
type Pin struct {
	ID        ID        `json:"id"`
	MessageID ID        `json:"message_id"`
	ChatID    ID        `json:"chat_id"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags"`
	FolderID  ID        `json:"folder_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatePinRequest 创建 Pin 请求
type CreatePinRequest struct {
	MessageID string   `json:"message_id"`
	ChatID    string   `json:"chat_id"`
	Text      string   `json:"text"`
	Tags      []string `json:"tags,omitempty"`
	FolderID  string   `json:"folder_id,omitempty"`
}

// ListPins 获取当前用户的全部 Pin
func (c *Client) ListPins(ctx context.Context) ([]Pin, error) {
	var result struct {
		Pins []Pin `json:"pins"`
	}
	if err := c.get(ctx, "/api/v1/pins", &result); err != nil {
		return nil, err
	}
	return result.Pins, nil
}

// CreatePin 创建 Pin
func (c *Client) CreatePin(ctx context.Context, req *CreatePinRequest) (*Pin, error) {
	var result Pin
	if err := c.post(ctx, "/api/v1/pins", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeletePin 删除 Pin
func (c *Client) DeletePin(ctx context.Context, pinID string) error {
	return c.delete(ctx, "/api/v1/pins/"+url.PathEscape(pinID), nil)
}

// DeletePinsByMessage 删除某条消息上的所有 Pin
func (c *Client) DeletePinsByMessage(ctx context.Context, messageID string) error {
	return c.delete(ctx, "/api/v1/pins/by-message/"+url.PathEscape(messageID), nil)
}
