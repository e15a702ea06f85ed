package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "does-not-exist.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ProviderArk {
		t.Fatalf("unexpected provider: %s", cfg.AI.Provider)
	}
	if cfg.Catalog.PoolSize != 50 || cfg.Catalog.FallbackPoolSize != 100 {
		t.Fatalf("unexpected pool sizes: %d/%d", cfg.Catalog.PoolSize, cfg.Catalog.FallbackPoolSize)
	}
	if cfg.Session.IdleTTL != 30*time.Minute {
		t.Fatalf("unexpected idle ttl: %s", cfg.Session.IdleTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("Model", "gpt-4o-mini")
	t.Setenv("ARK_TEMPERATURE", "0.4")
	t.Setenv("SESSION_IDLE_TTL", "5m")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://moodreel.app")
	t.Setenv("RANKING_SEED", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Fatalf("unexpected provider: %s", cfg.AI.Provider)
	}
	if !cfg.AI.Enabled() {
		t.Fatal("expected openai provider to be enabled")
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0.4 {
		t.Fatalf("unexpected temperature: %v", cfg.AI.Temperature)
	}
	if cfg.Session.IdleTTL != 5*time.Minute {
		t.Fatalf("unexpected idle ttl: %s", cfg.Session.IdleTTL)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://moodreel.app" {
		t.Fatalf("unexpected cors origins: %v", cfg.Server.CORSOrigins)
	}
	if cfg.Ranking.Seed != 7 {
		t.Fatalf("unexpected seed: %d", cfg.Ranking.Seed)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gemini")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestValidatePoolSizes(t *testing.T) {
	cfg := defaultConfig()
	cfg.Catalog.FallbackPoolSize = cfg.Catalog.PoolSize - 1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when fallback pool is smaller than pool")
	}
}

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":               ":8080",
		"3000":           ":3000",
		":3000":          ":3000",
		"127.0.0.1:3000": "127.0.0.1:3000",
	}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAIConfigEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  AIConfig
		want bool
	}{
		{"ark api key", AIConfig{Provider: ProviderArk, Model: "ep-1", APIKey: "k"}, true},
		{"ark ak/sk", AIConfig{Provider: ProviderArk, Model: "ep-1", AccessKey: "a", SecretKey: "s"}, true},
		{"ark missing model", AIConfig{Provider: ProviderArk, APIKey: "k"}, false},
		{"openai missing key", AIConfig{Provider: ProviderOpenAI, Model: "gpt"}, false},
		{"ollama host", AIConfig{Provider: ProviderOllama, Model: "llama3", OllamaHost: "http://localhost:11434"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
