package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pocket-chat/server/internal/service"
	"pocket-chat/server/pkg/response"
)

// multipart 头部等额外开销
const uploadOverhead = 1 << 20

// DocumentHandler 文档上传与下载
type DocumentHandler struct {
	documentService *service.DocumentService
	maxSize         int64
}

// NewDocumentHandler 创建 DocumentHandler 实例
func NewDocumentHandler(documentService *service.DocumentService, maxSize int64) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, maxSize: maxSize}
}

// Upload 上传文档，表单字段为 file
// @Router /api/v1/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+uploadOverhead)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(c, service.ErrFileTooLarge, "")
			return
		}
		response.BadRequest(c, "缺少上传文件")
		return
	}
	f, err := header.Open()
	if err != nil {
		response.BadRequest(c, "无法读取上传文件")
		return
	}
	defer f.Close()

	result, err := h.documentService.Upload(c.Request.Context(), currentUser(c), header.Filename, header.Size, header.Header.Get("Content-Type"), f)
	if err != nil {
		writeError(c, err, "上传失败")
		return
	}
	response.Success(c, result)
}

// Download 下载文档
// @Router /api/v1/documents/{id} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, err := h.documentService.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "获取文档失败")
		return
	}
	if doc.MimeType != "" {
		c.Header("Content-Type", doc.MimeType)
	}
	c.FileAttachment(doc.Path, doc.Name)
}
