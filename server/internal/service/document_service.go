package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/shortuuid/v4"

	"pocket-chat/server/internal/config"
	"pocket-chat/server/internal/model"
	"pocket-chat/server/internal/repository"
)

// 文本文档带入上下文的最大字节数
const maxDocumentText = 32 * 1024

// DocumentService 文档上传与读取
type DocumentService struct {
	documentRepo *repository.DocumentRepository
	cfg          config.UploadConfig
}

// NewDocumentService 创建 DocumentService 实例
func NewDocumentService(documentRepo *repository.DocumentRepository, cfg config.UploadConfig) *DocumentService {
	return &DocumentService{documentRepo: documentRepo, cfg: cfg}
}

// DocumentResponse 上传响应
type DocumentResponse struct {
	DocumentID  string `json:"document_id"`
	DocumentURL string `json:"document_url"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
}

// Upload 保存上传的文件
// size 为客户端声明的大小，实际写入超过上限时同样拒绝
func (s *DocumentService) Upload(ctx context.Context, userID int64, name string, size int64, contentType string, r io.Reader) (*DocumentResponse, error) {
	if s.cfg.MaxSize > 0 && size > s.cfg.MaxSize {
		return nil, ErrFileTooLarge
	}
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
			contentType = byExt
		}
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	id := shortuuid.New()
	path := filepath.Join(s.cfg.Dir, id+strings.ToLower(filepath.Ext(name)))

	written, err := s.write(path, r)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	doc := &model.Document{
		ID:       id,
		UserID:   userID,
		Name:     name,
		MimeType: contentType,
		Size:     written,
		Path:     path,
	}
	if err := s.documentRepo.Create(ctx, doc); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &DocumentResponse{DocumentID: id, DocumentURL: s.URL(id), Name: name, Size: written}, nil
}

func (s *DocumentService) write(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if s.cfg.MaxSize <= 0 {
		return io.Copy(f, r)
	}
	// 多读一个字节用来判断是否超限
	n, err := io.Copy(f, io.LimitReader(r, s.cfg.MaxSize+1))
	if err != nil {
		return 0, err
	}
	if n > s.cfg.MaxSize {
		return 0, ErrFileTooLarge
	}
	return n, nil
}

// Get 获取文档并校验归属
func (s *DocumentService) Get(ctx context.Context, userID int64, id string) (*model.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.UserID != userID {
		return nil, ErrDocumentMissing
	}
	return doc, nil
}

// ListByIDs 获取用户的多个文档，不存在的忽略
func (s *DocumentService) ListByIDs(ctx context.Context, userID int64, ids []string) ([]model.Document, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}
	return s.documentRepo.ListByIDs(ctx, userID, clean)
}

// URL 文档的访问地址
func (s *DocumentService) URL(id string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/api/v1/documents/" + id
}

// ReadText 读取文本类文档的内容，非文本返回 false
func (s *DocumentService) ReadText(doc *model.Document) (string, bool) {
	if !isTextType(doc.MimeType) {
		return "", false
	}
	f, err := os.Open(doc.Path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxDocumentText))
	if err != nil {
		return "", false
	}
	// 截断可能落在多字节字符中间
	for len(data) > 0 && !utf8.Valid(data) {
		data = data[:len(data)-1]
	}
	return string(data), true
}

func isTextType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch mediaType {
	case "application/json", "application/xml", "application/x-yaml", "application/yaml":
		return true
	}
	return false
}
