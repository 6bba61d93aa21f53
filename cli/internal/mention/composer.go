package mention

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Sink 接收提交结果的一方，通常是聊天会话
type Sink interface {
	AddMention(pinID string) error
	RemoveMention(pinID string)
}

// Composer 输入框与选择器的组合
// 在词首输入 @ 时打开选择器，@ 之后的文字作为过滤条件；
// 提交时从输入中删除 @ 和过滤文字，并通过 Sink 添加一个可移除的引用
type Composer struct {
	picker    *Picker
	sink      Sink
	input     string
	triggerAt int // 触发字符在 input 中的字节位置，-1 表示未触发
}

// NewComposer 创建 Composer
func NewComposer(picker *Picker, sink Sink) *Composer {
	return &Composer{picker: picker, sink: sink, triggerAt: -1}
}

// Picker 返回内部的选择器
func (c *Composer) Picker() *Picker {
	return c.picker
}

// Input 当前输入
func (c *Composer) Input() string {
	return c.input
}

// SetInput 更新输入内容
func (c *Composer) SetInput(text string) {
	c.input = text

	if c.picker.IsOpen() {
		if c.triggerAt < 0 || c.triggerAt >= len(text) || text[c.triggerAt] != byte(Trigger) {
			// 触发字符被删掉了
			c.close()
			return
		}
		c.picker.Filter(text[c.triggerAt+1:])
		return
	}

	last, size := utf8.DecodeLastRuneInString(text)
	if last != Trigger {
		return
	}
	at := len(text) - size
	if at > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:at])
		if !unicode.IsSpace(prev) {
			// 邮箱之类的 @ 不触发
			return
		}
	}
	c.triggerAt = at
	c.picker.Open()
}

// Press 把按键交给选择器，Enter 提交时把引用加入会话
func (c *Composer) Press(k Key) (Candidate, bool, error) {
	if !c.picker.IsOpen() {
		return Candidate{}, false, nil
	}
	cand, ok := c.picker.Handle(k)
	if c.picker.IsOpen() {
		return Candidate{}, false, nil
	}

	at := c.triggerAt
	c.triggerAt = -1
	if !ok {
		return Candidate{}, false, nil
	}
	if at >= 0 && at <= len(c.input) {
		c.input = c.input[:at]
	}
	if err := c.sink.AddMention(cand.ID); err != nil {
		return cand, false, fmt.Errorf("添加引用失败: %w", err)
	}
	return cand, true, nil
}

// ClickOutside 点击外部关闭选择器，输入保持不变
func (c *Composer) ClickOutside() {
	c.close()
}

// Remove 移除一个已添加的引用
func (c *Composer) Remove(pinID string) {
	c.sink.RemoveMention(pinID)
}

// Reset 清空输入（消息发出后调用）
func (c *Composer) Reset() {
	c.input = ""
	c.close()
}

func (c *Composer) close() {
	c.triggerAt = -1
	c.picker.Close()
}
