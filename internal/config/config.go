package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// LLM providers understood by AIConfig.
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	AI      AIConfig      `koanf:"ai"`
	Session SessionConfig `koanf:"session"`
	Catalog CatalogConfig `koanf:"catalog"`
	Ranking RankingConfig `koanf:"ranking"`
	TMDB    TMDBConfig    `koanf:"tmdb"`
	Log     LogConfig     `koanf:"log"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider      string        `koanf:"provider"`
	APIKey        string        `koanf:"api_key"`
	AccessKey     string        `koanf:"access_key"`
	SecretKey     string        `koanf:"secret_key"`
	Model         string        `koanf:"model"`
	BaseURL       string        `koanf:"base_url"`
	Region        string        `koanf:"region"`
	Temperature   *float64      `koanf:"temperature"`
	TopP          *float64      `koanf:"top_p"`
	MaxTokens     *int          `koanf:"max_tokens"`
	OpenAIAPIKey  string        `koanf:"openai_api_key"`
	OpenAIBaseURL string        `koanf:"openai_base_url"`
	OllamaHost    string        `koanf:"ollama_host"`
	Timeout       time.Duration `koanf:"timeout"`
}

// SessionConfig 控制会话生命周期。IdleTTL 为 0 表示永不过期。
type SessionConfig struct {
	IdleTTL       time.Duration `koanf:"idle_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// CatalogConfig 描述电影库存储与候选池大小。Path 为空时使用内存库。
type CatalogConfig struct {
	Path             string        `koanf:"path"`
	PoolSize         int           `koanf:"pool_size"`
	FallbackPoolSize int           `koanf:"fallback_pool_size"`
	Timeout          time.Duration `koanf:"timeout"`
}

// RankingConfig 控制排序的随机源。Seed 为 0 时使用当前时间。
type RankingConfig struct {
	Seed int64 `koanf:"seed"`
}

// TMDBConfig 描述影片数据导入配置。
type TMDBConfig struct {
	APIKey            string        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url"`
	ImageBaseURL      string        `koanf:"image_base_url"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Timeout           time.Duration `koanf:"timeout"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Enabled 表示是否提供了所选 provider 必需的密钥。
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey != ""
	case ProviderOllama:
		return c.OllamaHost != ""
	default:
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	}
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// Validate 检查配置的取值范围。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server address is required")
	}
	if strings.Contains(c.Server.Addr, " ") {
		return fmt.Errorf("invalid PORT value: %q", c.Server.Addr)
	}

	switch c.AI.Provider {
	case ProviderArk, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.AI.Provider)
	}

	if c.Catalog.PoolSize < 1 {
		return fmt.Errorf("catalog pool size must be positive, got %d", c.Catalog.PoolSize)
	}
	if c.Catalog.FallbackPoolSize < c.Catalog.PoolSize {
		return fmt.Errorf("catalog fallback pool size %d is smaller than pool size %d",
			c.Catalog.FallbackPoolSize, c.Catalog.PoolSize)
	}
	if c.Session.IdleTTL < 0 {
		return fmt.Errorf("session idle ttl must not be negative")
	}
	if c.Session.IdleTTL > 0 && c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session sweep interval must be positive when idle ttl is set")
	}
	if c.TMDB.RequestsPerSecond < 0 {
		return fmt.Errorf("tmdb requests per second must not be negative")
	}
	return nil
}

// normalizeAddr 允许用户直接传入 "8080"、":8080" 或 "127.0.0.1:8080"。
func normalizeAddr(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ":8080"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}
