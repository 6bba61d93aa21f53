package chat

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

const thinkOpen = "<think>"

// SplitThinking 从回复中剥离 <think>…</think> 推理内容
// 没有闭合的 <think> 视为推理一直持续到结尾
func SplitThinking(text string) (content, thinking string) {
	var parts []string
	for _, m := range thinkBlock.FindAllStringSubmatch(text, -1) {
		if t := strings.TrimSpace(m[1]); t != "" {
			parts = append(parts, t)
		}
	}
	rest := thinkBlock.ReplaceAllString(text, "")

	if i := strings.Index(rest, thinkOpen); i >= 0 {
		if t := strings.TrimSpace(rest[i+len(thinkOpen):]); t != "" {
			parts = append(parts, t)
		}
		rest = rest[:i]
	}

	return strings.TrimSpace(rest), strings.Join(parts, "\n\n")
}
