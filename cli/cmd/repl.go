package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"pocket-chat/cli/internal/attachment"
	"pocket-chat/cli/internal/chat"
	"pocket-chat/cli/internal/mention"
	"pocket-chat/cli/internal/pin"
	"pocket-chat/cli/internal/timeline"
)

const replHelp = `命令:
  <文本>                 发送消息
  /edit N 文本           编辑第 N 条用户消息并重新提交
  /regen N [文本]        重新生成第 N 条 AI 回复，可同时修改提示
  /delete N              删除第 N 条及之后的消息
  /react N like|dislike|clear
  /ref N | /unref        引用一条 AI 回复
  /pin N [标签...]       收藏消息
  /pins                  列出 Pin
  /mention [过滤]        打开 Pin 选择器（up/down/enter/esc）
  /unmention PIN         移除一个 Pin 引用
  /attach 路径 | /detach [ID] | /files
  /stop                  停止等待当前回复
  /model 名称            切换模型
  /new | /open ID | /drop | /history
  /wait                  等待进行中的请求
  /quit`

// pinLister Pin 来源
type pinLister interface {
	Pins() []pin.Pin
}

// repl 交互式聊天循环
type repl struct {
	session  *chat.Session
	tracker  *attachment.Tracker // 可为 nil
	composer *mention.Composer
	pins     pinLister

	outMu sync.Mutex
	out   io.Writer

	ops sync.WaitGroup

	// 只打印曾经处于加载中的 AI 消息，值为上次打印时的签名
	watchMu sync.Mutex
	watched map[timeline.Key]string
}

func newREPL(session *chat.Session, tracker *attachment.Tracker, pins pinLister, out io.Writer) *repl {
	r := &repl{
		session: session,
		tracker: tracker,
		pins:    pins,
		out:     out,
		watched: make(map[timeline.Key]string),
	}
	picker := mention.NewPicker(func() []mention.Candidate {
		var cands []mention.Candidate
		for _, p := range pins.Pins() {
			cands = append(cands, mention.Candidate{ID: p.ID, Label: p.Label()})
		}
		return cands
	})
	r.composer = mention.NewComposer(picker, session)
	session.Store().Subscribe(r.onTimeline)
	return r
}

// notify 实现 chat.Notifier
func (r *repl) notify(n chat.Notice) {
	if n.Description == "" {
		r.printf("[%s] %s\n", n.Level, n.Title)
		return
	}
	r.printf("[%s] %s: %s\n", n.Level, n.Title, n.Description)
}

func (r *repl) printf(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// onTimeline 打印完成的 AI 回复
func (r *repl) onTimeline(chatID string, t timeline.Timeline) {
	if chatID != r.session.ChatID() && r.session.ChatID() != "" {
		return
	}
	r.watchMu.Lock()
	defer r.watchMu.Unlock()
	for i, m := range t {
		if m.Sender != timeline.SenderAssistant {
			continue
		}
		if m.IsLoading {
			r.watched[m.ID] = ""
			continue
		}
		last, ok := r.watched[m.ID]
		if !ok {
			continue
		}
		sig := signature(m)
		if sig == last {
			continue
		}
		r.watched[m.ID] = sig
		r.printf("%s\n", render(i+1, m))
	}
}

func signature(m *timeline.Message) string {
	return fmt.Sprintf("%s|%t|%s", m.ChatMessageID, m.Metadata.Stopped, m.Content)
}

// render 单条消息的展示
func render(n int, m *timeline.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] ", n)
	if m.Sender == timeline.SenderUser {
		b.WriteString("you: ")
	} else if m.Metadata.ModelName != "" {
		fmt.Fprintf(&b, "ai (%s): ", m.Metadata.ModelName)
	} else {
		b.WriteString("ai: ")
	}

	switch {
	case m.IsLoading:
		b.WriteString("…")
	case m.Metadata.Stopped && m.Content == "":
		b.WriteString("(stopped)")
	default:
		b.WriteString(m.Content)
	}

	switch m.Metadata.UserReaction {
	case chat.ReactionLike:
		b.WriteString("  👍")
	case chat.ReactionDislike:
		b.WriteString("  👎")
	}
	if len(m.Metadata.MentionedPins) > 0 {
		labels := make([]string, 0, len(m.Metadata.MentionedPins))
		for _, p := range m.Metadata.MentionedPins {
			labels = append(labels, "@"+p.Label)
		}
		fmt.Fprintf(&b, "  %s", strings.Join(labels, " "))
	}
	if m.Metadata.DocumentURL != "" {
		fmt.Fprintf(&b, "  📎 %s", m.Metadata.DocumentURL)
	}
	return b.String()
}

// run 逐行读取命令直到 EOF 或 /quit
func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if r.handle(ctx, scanner.Text()) {
			break
		}
	}
	r.ops.Wait()
	if r.tracker != nil {
		r.tracker.Wait()
	}
	return scanner.Err()
}

// handle 处理一行输入，返回 true 表示退出
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)

	if r.composer.Picker().IsOpen() {
		r.handlePicker(line)
		return false
	}
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.background(func() error { return r.session.Send(ctx, line) })
		return false
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		r.printf("%s\n", replHelp)
	case "/wait":
		r.ops.Wait()
	case "/history":
		r.printHistory()
	case "/model":
		if rest == "" {
			r.printf("model: %s\n", r.session.Model())
			return false
		}
		r.session.SetModel(rest)
		r.printf("model: %s\n", rest)
	case "/edit":
		idx, text, err := r.indexed(rest)
		if err != nil || text == "" {
			r.usage("/edit N 文本", err)
			return false
		}
		key := idx.ID
		r.background(func() error { return r.session.EditAndResubmit(ctx, key, text) })
	case "/regen":
		idx, text, err := r.indexed(rest)
		if err != nil {
			r.usage("/regen N [文本]", err)
			return false
		}
		opts := chat.RegenerateOptions{}
		if text != "" {
			opts.Prompt = &text
		}
		key := idx.ID
		r.background(func() error { return r.session.Regenerate(ctx, key, opts) })
	case "/delete":
		msg, _, err := r.indexed(rest)
		if err != nil {
			r.usage("/delete N", err)
			return false
		}
		if ids, err := r.session.DeleteMessage(ctx, msg.ID); err == nil {
			r.printf("deleted %d message(s)\n", len(ids))
		}
	case "/react":
		msg, reaction, err := r.indexed(rest)
		if err != nil || reaction == "" {
			r.usage("/react N like|dislike|clear", err)
			return false
		}
		if reaction == "clear" {
			reaction = ""
		}
		if err := r.session.React(ctx, msg.ID, reaction); errors.Is(err, chat.ErrInvalidReaction) {
			r.usage("/react N like|dislike|clear", nil)
		}
	case "/ref":
		msg, _, err := r.indexed(rest)
		if err != nil {
			r.usage("/ref N", err)
			return false
		}
		if err := r.session.SetReference(msg.ID); err != nil {
			if errors.Is(err, chat.ErrNotReferenceable) {
				r.printf("只能引用 AI 回复\n")
			}
			return false
		}
		r.printf("referencing [%s]\n", strings.Fields(rest)[0])
	case "/unref":
		r.session.ClearReference()
	case "/pin":
		msg, tags, err := r.indexed(rest)
		if err != nil {
			r.usage("/pin N [标签...]", err)
			return false
		}
		_, _ = r.session.PinMessage(ctx, msg.ID, chat.PinOptions{Tags: strings.Fields(tags)})
	case "/pins":
		for _, p := range r.pins.Pins() {
			r.printf("  %s  %s  %s\n", p.ID, p.Label(), strings.Join(p.Tags, ","))
		}
	case "/mention":
		r.composer.SetInput(string(mention.Trigger))
		if rest != "" {
			r.composer.SetInput(string(mention.Trigger) + rest)
		}
		r.printCandidates()
	case "/unmention":
		r.composer.Remove(rest)
	case "/attach":
		r.attach(ctx, rest)
	case "/detach":
		switch {
		case r.tracker == nil:
			r.printf("没有附件\n")
		case rest == "":
			r.tracker.Clear()
		case !r.tracker.Remove(rest):
			r.printf("没有附件 %s\n", rest)
		}
	case "/files":
		r.printFiles()
	case "/stop":
		if r.session.Stop() {
			r.printf("stopped\n")
		}
	case "/new":
		r.session.NewChat()
		r.printf("new chat\n")
	case "/open":
		if err := r.session.OpenChat(ctx, rest); err == nil {
			r.printHistory()
		}
	case "/drop":
		if err := r.session.DeleteChat(ctx); err == nil {
			r.printf("chat deleted\n")
		}
	default:
		r.printf("未知命令 %s，输入 /help 查看帮助\n", name)
	}
	return false
}

// handlePicker 选择器打开时，输入按键名或过滤文字
func (r *repl) handlePicker(line string) {
	if k, ok := mention.ParseKey(line); ok {
		cand, committed, err := r.composer.Press(k)
		switch {
		case err != nil:
			r.printf("[warning] %v\n", err)
		case committed:
			r.printf("mentioned @%s\n", cand.Label)
		case r.composer.Picker().IsOpen():
			r.printCandidates()
		}
		return
	}
	r.composer.SetInput(string(mention.Trigger) + line)
	r.printCandidates()
}

func (r *repl) printCandidates() {
	picker := r.composer.Picker()
	if !picker.IsOpen() {
		return
	}
	cands := picker.Candidates()
	if len(cands) == 0 {
		r.printf("  (没有匹配的 Pin，esc 关闭)\n")
		return
	}
	for i, c := range cands {
		mark := " "
		if i == picker.HighlightIndex() {
			mark = ">"
		}
		r.printf(" %s %s\n", mark, c.Label)
	}
}

func (r *repl) printHistory() {
	msgs := r.session.Messages()
	if len(msgs) == 0 {
		r.printf("(empty)\n")
		return
	}
	for i, m := range msgs {
		r.printf("%s\n", render(i+1, m))
	}
}

func (r *repl) printFiles() {
	if r.tracker == nil {
		return
	}
	for _, a := range r.tracker.List() {
		state := fmt.Sprintf("%d%%", a.Progress)
		switch {
		case a.Err != nil:
			state = "failed: " + a.Err.Error()
		case a.Done():
			state = "ready"
		}
		r.printf("  %s  %s  %s  %s\n", a.ID, a.Type, a.Name, state)
	}
}

func (r *repl) attach(ctx context.Context, path string) {
	if r.tracker == nil {
		r.printf("附件不可用\n")
		return
	}
	src, err := attachment.FileSource(path)
	if err != nil {
		r.printf("[warning] %v\n", err)
		return
	}
	id := r.tracker.Add(ctx, src)
	r.printf("uploading %s (%s)\n", src.Name, id)
}

// onAttachments 打印上传结束的附件，每个只打印一次
func (r *repl) onAttachments() func([]attachment.Attachment) {
	reported := make(map[string]struct{})
	return func(list []attachment.Attachment) {
		for _, a := range list {
			if _, ok := reported[a.ID]; ok || a.Uploading {
				continue
			}
			reported[a.ID] = struct{}{}
			if a.Err != nil {
				r.printf("[destructive] Upload failed: %s: %v\n", a.Name, a.Err)
			} else {
				r.printf("attached %s\n", a.Name)
			}
		}
	}
}

// background 后台执行耗时操作，错误已经通过提示输出
func (r *repl) background(fn func() error) {
	r.ops.Add(1)
	go func() {
		defer r.ops.Done()
		_ = fn()
	}()
}

// indexed 解析 "N 其余参数"
func (r *repl) indexed(args string) (*timeline.Message, string, error) {
	head, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	n, err := strconv.Atoi(head)
	if err != nil {
		return nil, "", fmt.Errorf("无效的序号 %q", head)
	}
	msgs := r.session.Messages()
	if n < 1 || n > len(msgs) {
		return nil, "", fmt.Errorf("序号超出范围 1-%d", len(msgs))
	}
	return msgs[n-1], strings.TrimSpace(rest), nil
}

func (r *repl) usage(form string, err error) {
	if err != nil {
		r.printf("%v，用法: %s\n", err, form)
		return
	}
	r.printf("用法: %s\n", form)
}
