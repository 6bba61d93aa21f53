package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// 原始错误文本的最大长度
const maxErrorRunes = 500

// ID 后端标识
// 服务端可能以字符串或数字返回，这里统一转换为字符串
type ID string

// UnmarshalJSON 同时接受 "123" 与 123
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String 返回字符串形式
func (id ID) String() string {
	return string(id)
}

// ParseErrorMessage 从错误响应体中提取可读信息
// 依次尝试 JSON 的 message、error、detail 字段，都没有时返回原始文本
func ParseErrorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err == nil {
		for _, key := range []string{"message", "error", "detail"} {
			raw, ok := fields[key]
			if !ok {
				continue
			}
			if s := stringValue(raw); s != "" {
				return s
			}
			// {"error": {"message": "..."}}
			var nested map[string]json.RawMessage
			if json.Unmarshal(raw, &nested) == nil {
				if s := stringValue(nested["message"]); s != "" {
					return s
				}
			}
		}
	}

	text := string(trimmed)
	if utf8.RuneCountInString(text) > maxErrorRunes {
		text = string([]rune(text)[:maxErrorRunes])
	}
	return text
}

// parseCompletion 宽松地解析补全响应
// 文本字段依次尝试 response、content、text、message、output、choices[0].message.content
func parseCompletion(data json.RawMessage) (*CompletionResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	result := &CompletionResponse{}
	for _, key := range []string{"response", "content", "text", "message", "output"} {
		if s := stringValue(fields[key]); s != "" {
			result.Text = s
			break
		}
	}
	if result.Text == "" {
		result.Text = choicesContent(fields["choices"])
	}

	result.MessageID = idValue(fields, "messageId", "message_id", "id")
	result.UserMessageID = idValue(fields, "userMessageId", "user_message_id")

	if raw, ok := fields["metadata"]; ok && len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &result.Metadata); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func choicesContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &choices); err != nil || len(choices) == 0 {
		return ""
	}
	return choices[0].Message.Content
}

func idValue(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var id ID
		if err := id.UnmarshalJSON(raw); err == nil && id != "" {
			return id.String()
		}
	}
	return ""
}

func stringValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func idsToStrings(ids []ID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id.String())
		}
	}
	return out
}
