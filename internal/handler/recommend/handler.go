package recommend

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/moodreel/backend/internal/analysis/overlay"
	"github.com/zhouzirui/moodreel/backend/internal/analysis/payload"
	chatHandler "github.com/zhouzirui/moodreel/backend/internal/handler/chat"
	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
	"github.com/zhouzirui/moodreel/backend/internal/model/rules"
	"github.com/zhouzirui/moodreel/backend/pkg/utils"
)

// Handler 直接按过滤条件推荐，不经过对话
type Handler struct {
	catalog     *rules.Catalog
	recommender chatHandler.Recommender
}

// New 创建推荐处理器
func New(catalog *rules.Catalog, recommender chatHandler.Recommender) *Handler {
	if catalog == nil {
		catalog = rules.Default()
	}
	return &Handler{
		catalog:     catalog,
		recommender: recommender,
	}
}

// RegisterRoutes 注册推荐和规则相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/recommendations", h.handleRecommend)
	r.Get("/recommendations", h.handleQuickRecommend)
	r.Get("/rules", h.handleRules)
}

// Response 推荐结果
type Response struct {
	Filters filter.Enhanced `json:"filters"`
	Movies  []movie.Scored  `json:"movies"`
}

// handleRecommend 接收完整的过滤条件
func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Filters *filter.Raw `json:"filters"`
	}
	if err := utils.DecodeJSON(r, w, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Filters == nil {
		utils.RespondError(w, http.StatusBadRequest, "filters are required")
		return
	}

	h.recommend(w, r, *payload.Filters)
}

// handleQuickRecommend 兼容 ?mood=&genre= 形式的查询
func (h *Handler) handleQuickRecommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mood := strings.TrimSpace(q.Get("mood"))
	if mood == "" {
		utils.RespondError(w, http.StatusBadRequest, "mood query parameter is required")
		return
	}

	raw := filter.Raw{Mood: filter.Mood(mood)}
	for _, g := range q["genre"] {
		for _, part := range strings.Split(g, ",") {
			if part = strings.TrimSpace(part); part != "" {
				raw.Genres = append(raw.Genres, part)
			}
		}
	}
	h.recommend(w, r, raw)
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request, raw filter.Raw) {
	raw = raw.Normalize()
	if err := payload.ValidateFilters(raw); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan := overlay.Synthesize(raw, h.catalog)
	movies := []movie.Scored{}
	if h.recommender != nil {
		movies = h.recommender.Recommend(r.Context(), plan)
	}

	utils.RespondJSON(w, http.StatusOK, Response{Filters: plan, Movies: movies})
}

// handleRules 返回规则目录，供前端展示
func (h *Handler) handleRules(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.catalog.Snapshot())
}
