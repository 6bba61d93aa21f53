package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// --- 聊天 ---
type Chat struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateChat 创建聊天
func (c *Client) CreateChat(ctx context.Context, title, model string) (*Chat, error) {
	body := map[string]string{"title": title, "model": model}
	var result Chat
	if err := c.post(ctx, "/api/v1/chats", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListChats 获取聊天列表
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var result struct {
		Chats []Chat `json:"chats"`
	}
	if err := c.get(ctx, "/api/v1/chats", &result); err != nil {
		return nil, err
	}
	return result.Chats, nil
}

// DeleteChat 删除聊天及其全部消息
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.delete(ctx, "/api/v1/chats/"+url.PathEscape(chatID), nil)
}

// MessageMetadata 消息附加信息（服务端格式）
type MessageMetadata struct {
	ModelName     string         `json:"modelName,omitempty"`
	ProviderName  string         `json:"providerName,omitempty"`
	InputTokens   int            `json:"inputTokens,omitempty"`
	OutputTokens  int            `json:"outputTokens,omitempty"`
	DocumentID    ID             `json:"documentId,omitempty"`
	DocumentURL   string         `json:"documentUrl,omitempty"`
	PinIDs        []ID           `json:"pinIds,omitempty"`
	MentionedPins []MentionedPin `json:"mentionedPins,omitempty"`
	UserReaction  string         `json:"userReaction,omitempty"`
}

// PinIDStrings 返回字符串形式的 Pin ID 列表
func (m MessageMetadata) PinIDStrings() []string {
	return idsToStrings(m.PinIDs)
}

// MentionedPin 消息中引用的 Pin
type MentionedPin struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
}

// ChatMessage 聊天历史中的一条消息
type ChatMessage struct {
	ID                  ID              `json:"id"`
	ChatID              ID              `json:"chat_id"`
	Role                string          `json:"role"`
	Content             string          `json:"content"`
	ReferencedMessageID ID              `json:"referenced_message_id,omitempty"`
	Metadata            MessageMetadata `json:"metadata"`
	CreatedAt           time.Time       `json:"created_at"`
}

// ListMessages 获取聊天的历史消息（按时间顺序）
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]ChatMessage, error) {
	var result struct {
		Messages []ChatMessage `json:"messages"`
	}
	if err := c.get(ctx, "/api/v1/chats/"+url.PathEscape(chatID)+"/messages", &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// --- 补全 ---

// CompletionRequest 补全请求
// RegenerateMessageID 非空表示原地重新生成该 AI 消息
// 仅 UserMessageID 非空表示编辑后重新提交
type CompletionRequest struct {
	Prompt              string   `json:"prompt"`
	ChatID              string   `json:"chatId"`
	Model               string   `json:"model"`
	User                string   `json:"user,omitempty"`
	ReferencedMessageID string   `json:"referencedMessageId,omitempty"`
	RegenerateMessageID string   `json:"regenerateMessageId,omitempty"`
	UserMessageID       string   `json:"userMessageId,omitempty"`
	PinIDs              []string `json:"pinIds,omitempty"`
	DocumentIDs         []string `json:"documentIds,omitempty"`
}

// CompletionResponse 补全响应
type CompletionResponse struct {
	Text          string
	MessageID     string
	UserMessageID string
	Metadata      MessageMetadata
}

// Complete 请求 AI 补全
func (c *Client) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("请求体为空")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/chat/completion", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	data, err := c.doRaw(httpReq)
	if err != nil {
		return nil, err
	}
	result, err := parseCompletion(data)
	if err != nil {
		return nil, fmt.Errorf("%w: 补全: %w", ErrDecode, err)
	}
	return result, nil
}

// --- 删除与反应 ---

// DeleteMessageResponse 级联删除结果
// DeletedMessageIDs 是后端实际删除的消息，客户端以此为准
type DeleteMessageResponse struct {
	DeletedMessageIDs []ID   `json:"deleted_message_ids"`
	DeletedCount      int    `json:"deleted_count"`
	Message           string `json:"message"`
}

// IDs 返回字符串形式的已删除 ID
func (r *DeleteMessageResponse) IDs() []string {
	return idsToStrings(r.DeletedMessageIDs)
}

// DeleteMessage 删除消息（后端会级联删除之后的消息）
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID string) (*DeleteMessageResponse, error) {
	var result DeleteMessageResponse
	if err := c.delete(ctx, messagePath(chatID, messageID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetReaction 设置消息反应
func (c *Client) SetReaction(ctx context.Context, chatID, messageID, reaction string) error {
	body := map[string]string{"reaction": reaction}
	return c.patch(ctx, messagePath(chatID, messageID)+"/reaction", body, nil)
}

// ClearReaction 清除消息反应
func (c *Client) ClearReaction(ctx context.Context, chatID, messageID string) error {
	return c.delete(ctx, messagePath(chatID, messageID)+"/reaction", nil)
}

func messagePath(chatID, messageID string) string {
	return "/api/v1/chats/" + url.PathEscape(chatID) + "/messages/" + url.PathEscape(messageID)
}
