// Package llm 封装模型调用
// 配置了 api_key 时走 OpenAI 兼容接口，否则使用回显模型便于本地联调
package llm

import (
	"context"
	"errors"

	"pocket-chat/server/internal/config"
)

// 角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse 模型没有返回内容
var ErrEmptyResponse = errors.New("empty response from model")

// Message 一条上下文消息
type Message struct {
	Role    string
	Content string
}

// Request 一次补全请求
type Request struct {
	Model    string
	Messages []Message
	User     string
}

// Result 补全结果
// 模型没有返回 usage 时 token 数由本地估算
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Provider 模型提供方
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Result, error)
}

// NewProvider 根据配置选择提供方
func NewProvider(cfg config.AIConfig) Provider {
	if cfg.APIKey == "" {
		return NewEchoProvider()
	}
	return NewOpenAIProvider(cfg)
}

// Model 模型目录中的一项
type Model struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Default  bool   `json:"default"`
}

// Catalog 可用模型列表
type Catalog struct {
	models []Model
	byName map[string]Model
}

// NewCatalog 从配置构建模型目录
func NewCatalog(cfg config.AIConfig, provider Provider) *Catalog {
	c := &Catalog{byName: make(map[string]Model)}
	for _, name := range cfg.Models {
		if _, dup := c.byName[name]; dup || name == "" {
			continue
		}
		m := Model{Name: name, Provider: provider.Name(), Default: name == cfg.DefaultModel}
		c.models = append(c.models, m)
		c.byName[name] = m
	}
	return c
}

// List 返回全部模型
func (c *Catalog) List() []Model {
	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

// Lookup 按名称查找模型
func (c *Catalog) Lookup(name string) (Model, bool) {
	m, ok := c.byName[name]
	return m, ok
}
