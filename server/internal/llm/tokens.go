package llm

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

// cl100k_base 对大多数模型是够用的近似
func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// CountTokens 估算文本的 token 数，出错时返回 0
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	c, err := getCodec()
	if err != nil {
		return 0
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}

// CountMessages 估算一组消息的 token 数
// 每条消息额外计入角色和分隔符的开销
func CountMessages(messages []Message) int {
	const perMessage = 4
	total := 0
	for _, m := range messages {
		total += perMessage + CountTokens(m.Content)
	}
	return total
}
