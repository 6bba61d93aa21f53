package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"pocket-chat/server/internal/websocket"
)

// EventSender 向用户推送实时事件，由 websocket.Hub 实现
type EventSender interface {
	SendToUser(ctx context.Context, userID int64, msg *websocket.Message)
}

// FlexID 兼容字符串和数字两种写法的 ID
type FlexID string

// UnmarshalJSON 接受 "12"、12 和 null
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexID(n.String())
	return nil
}

// Int64 解析为 int64，空值或非法值返回 0
func (id FlexID) Int64() int64 {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func flexIDs(list []FlexID) []int64 {
	out := make([]int64, 0, len(list))
	for _, id := range list {
		if n := id.Int64(); n > 0 {
			out = append(out, n)
		}
	}
	return out
}
