package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zhouzirui/moodreel/backend/internal/config"
	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
	"github.com/zhouzirui/moodreel/backend/internal/model/rules"
	chatService "github.com/zhouzirui/moodreel/backend/internal/service/chat"
)

type noMovies struct{}

func (noMovies) Recommend(context.Context, filter.Enhanced) []movie.Scored { return []movie.Scored{} }

func newTestRouter(cfg config.ServerConfig) http.Handler {
	return NewRouter(cfg, rules.Default(), chatService.NewService(nil, chatService.Options{}), noMovies{})
}

func TestRouterHealthAndMetrics(t *testing.T) {
	r := newTestRouter(config.ServerConfig{})

	for _, path := range []string{"/healthz", "/metrics", "/api/rules"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	r := newTestRouter(config.ServerConfig{CORSOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/start", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}

func TestRouterRateLimit(t *testing.T) {
	r := newTestRouter(config.ServerConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/rules", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		last = resp.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the third request, got %d", last)
	}
}
