// Package logging 构建 CLI 使用的 zerolog 日志器
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options 日志选项
type Options struct {
	Dir   string // 日志目录，Debug 为 false 时写入 Dir/pocket-chat.log
	Debug bool   // 输出到 stderr，级别 Debug
}

// New 创建日志器，返回的 io.Closer 负责关闭日志文件
// REPL 占用 stdout，所以非调试模式下日志只写文件
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	if opts.Debug {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(zerolog.DebugLevel).
			With().
			Timestamp().
			Logger()
		return logger, io.NopCloser(nil), nil
	}

	if opts.Dir == "" {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return zerolog.Nop(), io.NopCloser(nil), fmt.Errorf("创建日志目录失败: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(opts.Dir, "pocket-chat.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Nop(), io.NopCloser(nil), fmt.Errorf("打开日志文件失败: %w", err)
	}

	logger := zerolog.New(f).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
	return logger, f, nil
}
