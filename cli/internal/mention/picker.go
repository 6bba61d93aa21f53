// Package mention 实现 @ 引用 Pin 的选择器
package mention

import (
	"strings"
)

// Trigger 打开选择器的字符
const Trigger = '@'

// Key 选择器支持的按键
type Key int

// 按键常量
const (
	KeyUp Key = iota
	KeyDown
	KeyEnter
	KeyEscape
)

// ParseKey 解析 REPL 中输入的按键名
func ParseKey(s string) (Key, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "k":
		return KeyUp, true
	case "down", "j":
		return KeyDown, true
	case "enter", "":
		return KeyEnter, true
	case "esc", "escape", "q":
		return KeyEscape, true
	}
	return 0, false
}

// Candidate 可被引用的候选项
type Candidate struct {
	ID    string
	Label string
}

// Source 候选项来源
type Source func() []Candidate

// Picker 候选列表与高亮状态
// Up/Down 循环移动高亮，Enter 提交，Escape 或点击外部关闭且不提交
type Picker struct {
	source    Source
	open      bool
	query     string
	visible   []Candidate
	highlight int
}

// NewPicker 创建选择器
func NewPicker(source Source) *Picker {
	return &Picker{source: source}
}

// Open 打开选择器并重新加载候选项
func (p *Picker) Open() {
	p.open = true
	p.query = ""
	p.reload()
}

// Close 关闭选择器
func (p *Picker) Close() {
	p.open = false
	p.query = ""
	p.visible = nil
	p.highlight = 0
}

// IsOpen 是否处于打开状态
func (p *Picker) IsOpen() bool {
	return p.open
}

// Filter 按输入过滤候选项，高亮回到第一项
func (p *Picker) Filter(query string) {
	if !p.open {
		return
	}
	p.query = query
	p.reload()
}

// Candidates 当前可见的候选项
func (p *Picker) Candidates() []Candidate {
	return p.visible
}

// Highlighted 当前高亮的候选项
func (p *Picker) Highlighted() (Candidate, bool) {
	if !p.open || len(p.visible) == 0 {
		return Candidate{}, false
	}
	return p.visible[p.highlight], true
}

// HighlightIndex 当前高亮的位置
func (p *Picker) HighlightIndex() int {
	return p.highlight
}

// Handle 处理按键
// 只有 Enter 且有高亮项时返回 (候选项, true)，此时选择器同时关闭
func (p *Picker) Handle(k Key) (Candidate, bool) {
	if !p.open {
		return Candidate{}, false
	}
	n := len(p.visible)
	switch k {
	case KeyDown:
		if n > 0 {
			p.highlight = (p.highlight + 1) % n
		}
	case KeyUp:
		if n > 0 {
			p.highlight = (p.highlight - 1 + n) % n
		}
	case KeyEnter:
		c, ok := p.Highlighted()
		p.Close()
		return c, ok
	case KeyEscape:
		p.Close()
	}
	return Candidate{}, false
}

// ClickOutside 点击选择器外部，等同于 Escape
func (p *Picker) ClickOutside() {
	p.Close()
}

func (p *Picker) reload() {
	p.highlight = 0
	p.visible = nil
	if p.source == nil {
		return
	}
	q := strings.ToLower(p.query)
	for _, c := range p.source() {
		if q == "" || strings.Contains(strings.ToLower(c.Label), q) {
			p.visible = append(p.visible, c)
		}
	}
}
