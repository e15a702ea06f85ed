package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhouzirui/moodreel/backend/internal/config"
	"github.com/zhouzirui/moodreel/backend/internal/handler/chat"
	"github.com/zhouzirui/moodreel/backend/internal/handler/recommend"
	"github.com/zhouzirui/moodreel/backend/internal/handler/stream"
	"github.com/zhouzirui/moodreel/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/moodreel/backend/internal/middleware"
	"github.com/zhouzirui/moodreel/backend/internal/model/rules"
	chatService "github.com/zhouzirui/moodreel/backend/internal/service/chat"
	"github.com/zhouzirui/moodreel/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg config.ServerConfig, catalog *rules.Catalog, chatSvc *chatService.Service, recommender chat.Recommender) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.CORSOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		chat.New(chatSvc, recommender).RegisterRoutes(api)
		recommend.New(catalog, recommender).RegisterRoutes(api)
		stream.New(chatSvc, recommender).RegisterRoutes(api)
		ws.NewWebSocketHandler(chatSvc, recommender).RegisterRoutes(api)
	})

	return r
}
