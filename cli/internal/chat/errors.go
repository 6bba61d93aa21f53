package chat

import (
	"errors"
	"fmt"
	"net/http"

	"pocket-chat/cli/internal/api"
)

// 校验类错误，操作在发出任何请求之前就被拒绝
var (
	ErrNoModel            = errors.New("未选择模型")
	ErrEmptyPrompt        = errors.New("消息内容为空")
	ErrBusy               = errors.New("正在生成回复")
	ErrMissingIdentifiers = errors.New("缺少消息标识")
	ErrStillGenerating    = errors.New("消息仍在生成中")
	ErrUploadsPending     = errors.New("附件仍在上传")
	ErrUnknownMessage     = errors.New("消息不存在")
	ErrNoChat             = errors.New("没有当前聊天")
	ErrUnknownPin         = errors.New("pin 不存在")
	ErrInvalidReaction    = errors.New("无效的反应")
	ErrNotReferenceable   = errors.New("只能引用 AI 回复")
)

// ErrStopped 请求发出之前用户已经停止了生成
var ErrStopped = errors.New("生成已停止")

// ValidationError 前置校验失败，不会产生网络调用，也不会改动时间线
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "校验失败: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NetworkError 请求没有拿到服务端的响应（连接失败、超时、被取消）
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: 网络错误: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// BackendRejection 服务端返回了错误状态
type BackendRejection struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *BackendRejection) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: 服务端拒绝 (HTTP %d)", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: 服务端拒绝 (HTTP %d): %s", e.Op, e.Status, e.Message)
}

func (e *BackendRejection) Unwrap() error {
	return e.Err
}

// ResponseError 服务端返回了响应，但内容无法解析
type ResponseError struct {
	Op  string
	Err error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: 响应无法解析: %v", e.Op, e.Err)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

func invalid(err error) error {
	return &ValidationError{Err: err}
}

// classify 把网关错误归类为 BackendRejection、ResponseError 或 NetworkError
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *api.StatusError
	if errors.As(err, &se) {
		return &BackendRejection{Op: op, Status: se.StatusCode, Message: se.Message, Err: err}
	}
	if errors.Is(err, api.ErrDecode) {
		return &ResponseError{Op: op, Err: err}
	}
	return &NetworkError{Op: op, Err: err}
}

// describe 生成写入占位消息的可读错误
func describe(err error) string {
	var br *BackendRejection
	if errors.As(err, &br) {
		if br.Message != "" {
			return "Error: " + br.Message
		}
		if text := http.StatusText(br.Status); text != "" {
			return "Error: " + text
		}
		return fmt.Sprintf("Error: request failed with status %d", br.Status)
	}
	var re *ResponseError
	if errors.As(err, &re) {
		return "Error: the server sent a response that could not be read."
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return "Error: could not reach the server. Please check your connection and try again."
	}
	return "Error: " + err.Error()
}
