package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// Document 上传后的文档
type Document struct {
	DocumentID  ID     `json:"document_id"`
	DocumentURL string `json:"document_url"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
}

// ProgressFunc 上传进度回调，percent 取值 0-100
type ProgressFunc func(percent int)

// UploadDocument 以 multipart 方式上传文档
// size 未知时传 0，此时只在完成时回调 100
func (c *Client) UploadDocument(ctx context.Context, name string, r io.Reader, size int64, progress ProgressFunc) (*Document, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		src := r
		if progress != nil && size > 0 {
			src = &progressReader{r: r, total: size, fn: progress}
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/documents", pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var doc Document
	if err := c.do(req, &doc); err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("上传文档失败: %w", err)
	}
	if progress != nil {
		progress(100)
	}
	return &doc, nil
}

// progressReader 统计已读取字节并换算成百分比
// 上传完成前最多报告 99，100 留给服务端确认之后
type progressReader struct {
	r     io.Reader
	read  int64
	total int64
	last  int
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	percent := int(p.read * 100 / p.total)
	if percent > 99 {
		percent = 99
	}
	if percent > p.last {
		p.last = percent
		p.fn(percent)
	}
	return n, err
}
