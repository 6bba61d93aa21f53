// Package config 负责加载和管理应用程序的配置
// 使用 viper 库支持 YAML 配置文件和环境变量覆盖，启动时先加载 .env
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是应用程序的根配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	AI        AIConfig        `mapstructure:"ai"`
	Upload    UploadConfig    `mapstructure:"upload"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig 服务器相关配置
type ServerConfig struct {
	Port int      `mapstructure:"port"` // 监听端口，默认 8080
	Mode string   `mapstructure:"mode"` // 运行模式: debug / release
	CORS []string `mapstructure:"cors"` // CORS 允许的域名

	// 补全请求可能持续很久，写超时需要覆盖最慢的模型
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string      `mapstructure:"driver"` // mysql / sqlite
	MySQL        MySQLConfig `mapstructure:"mysql"`
	SQLitePath   string      `mapstructure:"sqlite_path"`
	MaxIdleConns int         `mapstructure:"max_idle_conns"` // 最大空闲连接数
	MaxOpenConns int         `mapstructure:"max_open_conns"` // 最大打开连接数
	MaxLifetime  int         `mapstructure:"max_lifetime"`   // 连接最大生命周期（秒）
}

// MySQLConfig MySQL 数据库连接配置
type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Charset  string `mapstructure:"charset"`
}

// DSN 构建 MySQL 连接串
func (m MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		m.Username, m.Password, m.Host, m.Port, m.Database, m.Charset)
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`      // Redis 主机地址
	Port     int    `mapstructure:"port"`      // Redis 端口
	Username string `mapstructure:"username"`  // Redis 用户名（阿里云需要）
	Password string `mapstructure:"password"`  // Redis 密码
	DB       int    `mapstructure:"db"`        // 数据库索引 (0-15)
	PoolSize int    `mapstructure:"pool_size"` // 连接池大小
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`         // JWT 签名密钥，至少32字符
	AccessExpire  time.Duration `mapstructure:"access_expire"`  // Access Token 过期时间
	RefreshExpire time.Duration `mapstructure:"refresh_expire"` // Refresh Token 过期时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug/info/warn/error
	Format string `mapstructure:"format"` // 日志格式: json/console
}

// AIConfig 模型服务配置
type AIConfig struct {
	BaseURL      string        `mapstructure:"base_url"` // OpenAI 兼容接口地址
	APIKey       string        `mapstructure:"api_key"`  // 为空时使用 echo 模型
	Provider     string        `mapstructure:"provider"` // 展示用的提供方名称
	DefaultModel string        `mapstructure:"default_model"`
	Models       []string      `mapstructure:"models"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	MaxHistory   int           `mapstructure:"max_history"` // 带入上下文的历史消息条数
	Timeout      time.Duration `mapstructure:"timeout"`
}

// UploadConfig 文档上传配置
type UploadConfig struct {
	Dir           string `mapstructure:"dir"`
	MaxSize       int64  `mapstructure:"max_size"`        // 字节
	PublicBaseURL string `mapstructure:"public_base_url"` // 拼接 document_url
}

// RateLimitConfig 每个用户的补全请求限流
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Load 从指定路径加载配置文件
// 参数:
//   - configPath: 配置文件目录路径 (如 "./configs")
//
// 优先级: 环境变量 > .env > config.yaml > 默认值
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// 例如: database.mysql.host -> DATABASE_MYSQL_HOST
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVariables(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsRelease 是否为生产模式
func (c *Config) IsRelease() bool {
	return c.Server.Mode == "release"
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if c.IsRelease() && len(c.JWT.Secret) < 32 {
		return errors.New("jwt.secret 至少 32 个字符")
	}
	if c.AI.DefaultModel == "" && len(c.AI.Models) > 0 {
		c.AI.DefaultModel = c.AI.Models[0]
	}
	return nil
}

// bindEnvVariables 绑定环境变量到配置项
func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.sqlite_path", "SQLITE_PATH")
	v.BindEnv("database.mysql.host", "MYSQL_HOST")
	v.BindEnv("database.mysql.port", "MYSQL_PORT")
	v.BindEnv("database.mysql.username", "MYSQL_USERNAME")
	v.BindEnv("database.mysql.password", "MYSQL_PASSWORD")
	v.BindEnv("database.mysql.database", "MYSQL_DATABASE")

	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.username", "REDIS_USERNAME")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	v.BindEnv("jwt.secret", "JWT_SECRET")

	v.BindEnv("ai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("ai.api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.default_model", "AI_DEFAULT_MODEL")
}

// setDefaults 设置配置项的默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.write_timeout", "180s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/pocket-chat.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.charset", "utf8mb4")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_lifetime", 3600)

	// 为空时使用进程内缓存
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)

	v.SetDefault("jwt.access_expire", "24h")
	v.SetDefault("jwt.refresh_expire", "168h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.models", []string{"gpt-4o-mini"})
	v.SetDefault("ai.system_prompt", "You are a helpful assistant.")
	v.SetDefault("ai.max_history", 20)
	v.SetDefault("ai.timeout", "120s")

	v.SetDefault("upload.dir", "./data/uploads")
	v.SetDefault("upload.max_size", 20<<20)
	v.SetDefault("upload.public_base_url", "http://localhost:8080")

	v.SetDefault("ratelimit.rps", 1)
	v.SetDefault("ratelimit.burst", 5)
}
