package llm

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"pocket-chat/server/internal/config"
)

// OpenAIProvider 调用 OpenAI 兼容接口
type OpenAIProvider struct {
	client  *openai.Client
	name    string
	timeout time.Duration
}

// NewOpenAIProvider 创建 OpenAIProvider
func NewOpenAIProvider(cfg config.AIConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientConfig),
		name:    name,
		timeout: timeout,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

// Complete 发起一次非流式补全
func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: convertMessages(req.Messages),
		User:     req.User,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	result := &Result{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	// 部分兼容服务不返回 usage
	if result.InputTokens == 0 {
		result.InputTokens = CountMessages(req.Messages)
	}
	if result.OutputTokens == 0 {
		result.OutputTokens = CountTokens(result.Content)
	}
	return result, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
