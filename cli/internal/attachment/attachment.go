// Package attachment 跟踪待发送附件的上传状态
//
// 每个附件独立上传：移除一个附件只取消它自己的上传，
// 某个上传失败也只标记它自己。
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// 附件类型
const (
	TypeImage    = "image"
	TypeDocument = "document"
)

// defaultConcurrency 默认并发上传数
const defaultConcurrency = 3

// ErrCanceled 上传被用户移除
var ErrCanceled = errors.New("上传已取消")

// Attachment 附件状态
type Attachment struct {
	ID         string
	Type       string
	Name       string
	URL        string
	DocumentID string
	Uploading  bool
	Progress   int // 0-100，只增不减
	Err        error
}

// Done 上传已成功完成
func (a Attachment) Done() bool {
	return !a.Uploading && a.Err == nil && a.DocumentID != ""
}

// Source 待上传的内容
type Source struct {
	Name string
	Type string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FileSource 从本地文件构造 Source
func FileSource(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("读取附件失败: %w", err)
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("附件不能是目录: %s", path)
	}
	return Source{
		Name: filepath.Base(path),
		Type: detectType(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

func detectType(path string) string {
	if strings.HasPrefix(mime.TypeByExtension(filepath.Ext(path)), "image/") {
		return TypeImage
	}
	return TypeDocument
}

// Result 上传结果
type Result struct {
	DocumentID string
	URL        string
}

// Uploader 上传实现
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64, progress func(int)) (Result, error)
}

// UploaderFunc 函数适配器
type UploaderFunc func(ctx context.Context, name string, r io.Reader, size int64, progress func(int)) (Result, error)

// Upload 实现 Uploader
func (f UploaderFunc) Upload(ctx context.Context, name string, r io.Reader, size int64, progress func(int)) (Result, error) {
	return f(ctx, name, r, size, progress)
}

type entry struct {
	att    Attachment
	cancel context.CancelFunc
}

// Tracker 附件上传跟踪器
type Tracker struct {
	uploader Uploader
	sem      *semaphore.Weighted
	onChange func([]Attachment)

	notifyMu sync.Mutex

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	wg      sync.WaitGroup
}

// NewTracker 创建跟踪器
// maxConcurrent 限制同时进行的上传数，onChange 在任一附件状态变化后回调（可为 nil）
// onChange 内不能再调用 Add、Remove、Clear
func NewTracker(uploader Uploader, maxConcurrent int, onChange func([]Attachment)) *Tracker {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultConcurrency
	}
	return &Tracker{
		uploader: uploader,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		onChange: onChange,
		entries:  make(map[string]*entry),
	}
}

// Add 加入附件并立即开始上传，返回附件 ID
func (t *Tracker) Add(ctx context.Context, src Source) string {
	id := uuid.NewString()
	upCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.entries[id] = &entry{
		att: Attachment{
			ID:        id,
			Type:      src.Type,
			Name:      src.Name,
			Uploading: true,
		},
		cancel: cancel,
	}
	t.order = append(t.order, id)
	t.mu.Unlock()
	t.notify()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		t.run(upCtx, id, src)
	}()
	return id
}

func (t *Tracker) run(ctx context.Context, id string, src Source) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		t.finish(id, Result{}, err)
		return
	}
	defer t.sem.Release(1)

	rc, err := src.Open()
	if err != nil {
		t.finish(id, Result{}, err)
		return
	}
	defer rc.Close()

	res, err := t.uploader.Upload(ctx, src.Name, rc, src.Size, func(p int) {
		t.progress(id, p)
	})
	t.finish(id, res, err)
}

func (t *Tracker) progress(id string, p int) {
	if p > 100 {
		p = 100
	}
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok || !e.att.Uploading || p <= e.att.Progress {
		t.mu.Unlock()
		return
	}
	e.att.Progress = p
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) finish(id string, res Result, err error) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		// 已被移除
		t.mu.Unlock()
		return
	}
	e.att.Uploading = false
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = ErrCanceled
		}
		e.att.Err = err
	} else {
		e.att.Progress = 100
		e.att.DocumentID = res.DocumentID
		e.att.URL = res.URL
	}
	t.mu.Unlock()
	t.notify()
}

// Remove 移除附件，仍在上传时只取消它自己
func (t *Tracker) Remove(id string) bool {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
		t.order = removeID(t.order, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	e.cancel()
	t.notify()
	return true
}

// List 按添加顺序返回全部附件
func (t *Tracker) List() []Attachment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Attachment, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.entries[id].att)
	}
	return out
}

// Pending 是否有附件仍在上传
func (t *Tracker) Pending() bool {
	for _, a := range t.List() {
		if a.Uploading {
			return true
		}
	}
	return false
}

// Completed 返回上传成功的附件
func (t *Tracker) Completed() []Attachment {
	var out []Attachment
	for _, a := range t.List() {
		if a.Done() {
			out = append(out, a)
		}
	}
	return out
}

// Clear 清空全部附件（消息发出后调用）
func (t *Tracker) Clear() {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*entry)
	t.order = nil
	t.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}
	if len(entries) > 0 {
		t.notify()
	}
}

// Wait 等待所有上传协程退出
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// notify 串行回调，保证回调看到的快照按时间先后到达
func (t *Tracker) notify() {
	if t.onChange == nil {
		return
	}
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	t.onChange(t.List())
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
