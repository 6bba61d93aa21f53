// Package service 提供业务逻辑层的实现
// 服务层封装具体的业务逻辑，协调 Repository、Cache 和模型调用
package service

import (
	"errors"
)

// 定义业务错误，Handler 根据错误类型选择响应
var (
	ErrUserExists      = errors.New("用户名已存在")
	ErrUserNotFound    = errors.New("用户不存在")
	ErrPasswordWrong   = errors.New("密码错误")
	ErrUserDisabled    = errors.New("账号已被禁用")
	ErrInvalidToken    = errors.New("token 无效或已过期")
	ErrChatNotFound    = errors.New("聊天不存在")
	ErrChatBusy        = errors.New("聊天正在生成回复")
	ErrMessageNotFound = errors.New("消息不存在")
	ErrModelNotFound   = errors.New("模型不存在")
	ErrEmptyPrompt     = errors.New("消息内容不能为空")
	ErrInvalidReaction = errors.New("无效的反应")
	ErrPinNotFound     = errors.New("Pin 不存在")
	ErrDocumentMissing = errors.New("文档不存在")
	ErrFileTooLarge    = errors.New("文件过大")
	ErrUpstream        = errors.New("模型服务调用失败")
)
