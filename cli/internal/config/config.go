// Package config 管理 CLI 客户端配置
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config CLI 配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Chat   ChatConfig   `mapstructure:"chat"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	URL     string        `mapstructure:"url"`     // HTTP API 地址
	WSURL   string        `mapstructure:"ws_url"`  // WebSocket 地址
	Timeout time.Duration `mapstructure:"timeout"` // 请求超时，补全请求可能很慢
}

// AuthConfig 登录凭证
type AuthConfig struct {
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
	Username     string `mapstructure:"username"`
}

// ChatConfig 聊天偏好
type ChatConfig struct {
	Model            string `mapstructure:"model"`             // 上次选择的模型
	UploadConcurrent int    `mapstructure:"upload_concurrent"` // 并发上传数
}

const defaultServerURL = "http://localhost:8080"

var (
	cfg       *Config
	configDir string
)

// Init 初始化配置
func Init() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("获取用户目录失败: %w", err)
	}
	return InitAt(filepath.Join(home, ".pocket-chat"))
}

// InitAt 使用指定目录初始化配置
func InitAt(dir string) error {
	configDir = dir
	configPath := filepath.Join(configDir, "config.yaml")

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	viper.Reset()
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.url", defaultServerURL)
	viper.SetDefault("server.ws_url", "ws://localhost:8080")
	viper.SetDefault("server.timeout", 2*time.Minute)
	viper.SetDefault("auth.access_token", "")
	viper.SetDefault("auth.refresh_token", "")
	viper.SetDefault("auth.username", "")
	viper.SetDefault("chat.model", "")
	viper.SetDefault("chat.upload_concurrent", 3)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			// 首次运行，写出默认配置
			if err := viper.WriteConfig(); err != nil {
				return fmt.Errorf("写入默认配置失败: %w", err)
			}
		} else {
			return fmt.Errorf("读取配置失败: %w", err)
		}
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}
	return nil
}

// Get 获取配置
func Get() *Config {
	return cfg
}

// Dir 配置目录
func Dir() string {
	return configDir
}

// SaveAuth 保存用户访问/刷新 Token
func SaveAuth(accessToken, refreshToken, username string) error {
	viper.Set("auth.access_token", accessToken)
	viper.Set("auth.refresh_token", refreshToken)
	viper.Set("auth.username", username)
	if cfg != nil {
		cfg.Auth.AccessToken = accessToken
		cfg.Auth.RefreshToken = refreshToken
		cfg.Auth.Username = username
	}
	return viper.WriteConfig()
}

// GetAccessToken 获取访问 Token
func GetAccessToken() string {
	if cfg == nil {
		return ""
	}
	return cfg.Auth.AccessToken
}

// GetRefreshToken 获取刷新 Token
func GetRefreshToken() string {
	if cfg == nil {
		return ""
	}
	return cfg.Auth.RefreshToken
}

// GetUsername 当前登录的用户名
func GetUsername() string {
	if cfg == nil {
		return ""
	}
	return cfg.Auth.Username
}

// GetServerURL 获取服务器地址
func GetServerURL() string {
	if cfg == nil || cfg.Server.URL == "" {
		return defaultServerURL
	}
	return cfg.Server.URL
}

// GetWSURL 获取 WebSocket 地址
func GetWSURL() string {
	if cfg == nil || cfg.Server.WSURL == "" {
		return wsFromHTTP(GetServerURL())
	}
	return cfg.Server.WSURL
}

// GetTimeout 请求超时
func GetTimeout() time.Duration {
	if cfg == nil || cfg.Server.Timeout <= 0 {
		return 2 * time.Minute
	}
	return cfg.Server.Timeout
}

// GetModel 上次选择的模型
func GetModel() string {
	if cfg == nil {
		return ""
	}
	return cfg.Chat.Model
}

// GetUploadConcurrent 并发上传数
func GetUploadConcurrent() int {
	if cfg == nil || cfg.Chat.UploadConcurrent <= 0 {
		return 3
	}
	return cfg.Chat.UploadConcurrent
}

// SetModel 记住选择的模型
func SetModel(model string) error {
	viper.Set("chat.model", model)
	if cfg != nil {
		cfg.Chat.Model = model
	}
	return viper.WriteConfig()
}

// ClearToken 清除本地凭证
func ClearToken() error {
	viper.Set("auth.access_token", "")
	viper.Set("auth.refresh_token", "")
	viper.Set("auth.username", "")
	if cfg != nil {
		cfg.Auth = AuthConfig{}
	}
	return viper.WriteConfig()
}

// SetServerURL 设置服务器地址（仅本次运行生效）
func SetServerURL(url string) {
	wsURL := wsFromHTTP(url)
	viper.Set("server.url", url)
	viper.Set("server.ws_url", wsURL)
	if cfg != nil {
		cfg.Server.URL = url
		cfg.Server.WSURL = wsURL
	}
}

// IsLoggedIn 检查是否已登录
func IsLoggedIn() bool {
	return cfg != nil && cfg.Auth.AccessToken != ""
}

// wsFromHTTP http -> ws, https -> wss
func wsFromHTTP(url string) string {
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

// GetDeviceUUID 获取或生成设备唯一标识
// 持久化在配置目录下的 device_id 文件中，随补全请求作为 user 字段上报
func GetDeviceUUID() (string, error) {
	deviceIDPath := filepath.Join(configDir, "device_id")

	data, err := os.ReadFile(deviceIDPath)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	newUUID := uuid.New().String()
	if err := os.WriteFile(deviceIDPath, []byte(newUUID), 0600); err != nil {
		return "", fmt.Errorf("保存设备 UUID 失败: %w", err)
	}
	return newUUID, nil
}
