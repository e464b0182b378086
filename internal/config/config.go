package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Bot      BotConfig
	Ark      ArkConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Auth     AuthConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{Server: server}
	sections := []any{&cfg.Server, &cfg.Bot, &cfg.Ark, &cfg.Storage, &cfg.Database, &cfg.Auth}
	for _, section := range sections {
		if err := env.Parse(section); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Bot.Provider {
	case ProviderCoze, ProviderArk:
	default:
		return fmt.Errorf("invalid BOT_PROVIDER value: %q", c.Bot.Provider)
	}

	switch c.Storage.Driver {
	case StoreMemory, StoreDatabase, StoreRedis, StoreBolt:
	default:
		return fmt.Errorf("invalid CHAT_STORE_DRIVER value: %q", c.Storage.Driver)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER value: %q", c.Database.Driver)
	}

	if strings.TrimSpace(c.Auth.SessionSecret) == "" {
		return errors.New("SESSION_SECRET is required")
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

const (
	ProviderCoze = "coze"
	ProviderArk  = "ark"
)

// BotConfig 描述外部对话机器人接口。
type BotConfig struct {
	Provider    string        `env:"BOT_PROVIDER" envDefault:"coze"`
	Endpoint    string        `env:"BOT_ENDPOINT" envDefault:"https://api.coze.cn/v3/chat"`
	BotID       string        `env:"BOT_ID"`
	AuthToken   string        `env:"BOT_TOKEN"`
	IdleTimeout time.Duration `env:"BOT_IDLE_TIMEOUT" envDefault:"60s"` // 负值关闭空闲超时
}

// Enabled 表示是否提供了机器人凭证。
func (c BotConfig) Enabled() bool {
	return c.Endpoint != "" && c.BotID != "" && c.AuthToken != ""
}

// ArkConfig 描述 BOT_PROVIDER=ark 时使用的大模型配置。
type ArkConfig struct {
	APIKey    string `env:"ARK_API_KEY"`
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	Model     string `env:"ARK_MODEL"`
	BaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"ARK_REGION" envDefault:"cn-beijing"`
	MaxTokens *int   `env:"ARK_MAX_TOKENS"`
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
	})
}

const (
	StoreMemory   = "memory"
	StoreDatabase = "database"
	StoreRedis    = "redis"
	StoreBolt     = "bolt"
)

// StorageConfig 选择会话记录的持久化介质。
type StorageConfig struct {
	Driver        string `env:"CHAT_STORE_DRIVER" envDefault:"database"`
	Namespace     string `env:"CHAT_STORE_NAMESPACE" envDefault:"forest-park-chat-history"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	BoltPath      string `env:"BOLT_PATH" envDefault:"data/chat-history.bolt"`
}

// DatabaseConfig 描述关系型数据库连接。
type DatabaseConfig struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	URL    string `env:"DATABASE_URL" envDefault:"forest-park.db"`
}

// AuthConfig 描述登录会话配置。
type AuthConfig struct {
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieName    string        `env:"SESSION_COOKIE" envDefault:"session"`
	SecureCookie  bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	AdminUsername string        `env:"ADMIN_USERNAME"`
	AdminEmail    string        `env:"ADMIN_EMAIL"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`
}

// BootstrapAdmin reports whether an initial admin account was configured.
func (c AuthConfig) BootstrapAdmin() bool {
	return c.AdminUsername != "" && c.AdminEmail != "" && c.AdminPassword != ""
}
