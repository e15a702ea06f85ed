package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar 可覆盖配置文件路径。
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths 按顺序查找的配置文件，找到第一个即停止。
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
			ShutdownTimeout:   10 * time.Second,
		},
		AI: AIConfig{
			Provider: ProviderArk,
			BaseURL:  "https://ark.cn-beijing.volces.com/api/v3",
			Region:   "cn-beijing",
			Timeout:  45 * time.Second,
		},
		Session: SessionConfig{
			IdleTTL:       30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Catalog: CatalogConfig{
			PoolSize:         50,
			FallbackPoolSize: 100,
			Timeout:          5 * time.Second,
		},
		TMDB: TMDBConfig{
			BaseURL:           "https://api.themoviedb.org/3",
			ImageBaseURL:      "https://image.tmdb.org/t/p/w500",
			RequestsPerSecond: 10,
			Timeout:           15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envMappings 把环境变量映射到 koanf 路径，未列出的变量会被忽略。
var envMappings = map[string]string{
	"port":                       "server.addr",
	"cors_origins":               "server.cors_origins",
	"rate_limit_requests":        "server.rate_limit_requests",
	"rate_limit_window":          "server.rate_limit_window",
	"shutdown_timeout":           "server.shutdown_timeout",
	"llm_provider":               "ai.provider",
	"ark_api_key":                "ai.api_key",
	"ark_access_key":             "ai.access_key",
	"ark_secret_key":             "ai.secret_key",
	"model":                      "ai.model",
	"ark_base_url":               "ai.base_url",
	"ark_region":                 "ai.region",
	"ark_temperature":            "ai.temperature",
	"ark_top_p":                  "ai.top_p",
	"ark_max_tokens":             "ai.max_tokens",
	"openai_api_key":             "ai.openai_api_key",
	"openai_base_url":            "ai.openai_base_url",
	"ollama_host":                "ai.ollama_host",
	"dialogue_timeout":           "ai.timeout",
	"session_idle_ttl":           "session.idle_ttl",
	"session_sweep_interval":     "session.sweep_interval",
	"catalog_path":               "catalog.path",
	"catalog_pool_size":          "catalog.pool_size",
	"catalog_fallback_pool_size": "catalog.fallback_pool_size",
	"catalog_timeout":            "catalog.timeout",
	"ranking_seed":               "ranking.seed",
	"tmdb_api_key":               "tmdb.api_key",
	"tmdb_base_url":              "tmdb.base_url",
	"tmdb_image_base_url":        "tmdb.image_base_url",
	"tmdb_rps":                   "tmdb.requests_per_second",
	"tmdb_timeout":               "tmdb.timeout",
	"log_level":                  "log.level",
	"log_format":                 "log.format",
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// Load 依次加载默认值、可选的 YAML 配置文件与环境变量（优先级最高）。
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.Server.Addr = normalizeAddr(cfg.Server.Addr)
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = ProviderArk
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// processSliceFields 把逗号分隔的环境变量转换为切片。
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
