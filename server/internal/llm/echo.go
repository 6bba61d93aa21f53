package llm

import (
	"context"
	"strings"
)

// EchoProvider 把最后一条用户消息原样返回
type EchoProvider struct{}

// NewEchoProvider 创建 EchoProvider
func NewEchoProvider() *EchoProvider {
	return &EchoProvider{}
}

func (p *EchoProvider) Name() string { return "echo" }

func (p *EchoProvider) Complete(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	if strings.TrimSpace(last) == "" {
		return nil, ErrEmptyResponse
	}
	content := "echo: " + last
	return &Result{
		Content:      content,
		InputTokens:  CountMessages(req.Messages),
		OutputTokens: CountTokens(content),
	}, nil
}
