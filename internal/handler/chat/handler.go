package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/moodreel/backend/internal/logging"
	"github.com/zhouzirui/moodreel/backend/internal/model/chat"
	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
	chatService "github.com/zhouzirui/moodreel/backend/internal/service/chat"
	"github.com/zhouzirui/moodreel/backend/pkg/utils"
)

// UnavailableMessage 是对话模型不可用时返回给用户的唯一提示
const UnavailableMessage = "I'm having trouble thinking right now. Please try again in a moment."

// Recommender 根据合成后的过滤条件返回排好序的影片
type Recommender interface {
	Recommend(ctx context.Context, plan filter.Enhanced) []movie.Scored
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc     *chatService.Service
	recommender Recommender
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, recommender Recommender) *Handler {
	return &Handler{
		chatSvc:     chatSvc,
		recommender: recommender,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/start", h.handleStart)
	r.Post("/chat/message", h.handleMessage)
	r.Post("/chat/end", h.handleEnd)
	r.Get("/chat/{sessionID}/transcript", h.handleTranscript)
}

// TurnResponse 是一轮对话的响应；ready 时附带推荐结果
type TurnResponse struct {
	SessionID string           `json:"sessionId"`
	Message   string           `json:"message"`
	Ready     bool             `json:"ready"`
	Filters   *filter.Enhanced `json:"filters,omitempty"`
	Movies    []movie.Scored   `json:"movies,omitempty"`
}

// RunTurn 提交一轮对话，若会话已就绪则同步执行推荐
func RunTurn(ctx context.Context, svc *chatService.Service, rec Recommender, sessionID, text string) (TurnResponse, error) {
	result, err := svc.SubmitTurn(ctx, sessionID, text)
	if err != nil {
		return TurnResponse{}, err
	}
	return Recommend(ctx, rec, result), nil
}

// Recommend 把对话结果转换为响应，必要时附加推荐影片
func Recommend(ctx context.Context, rec Recommender, result chat.TurnResult) TurnResponse {
	resp := TurnResponse{
		SessionID: result.SessionID,
		Message:   result.Message,
		Ready:     result.Ready,
		Filters:   result.Filters,
	}
	if result.Ready && result.Filters != nil && rec != nil {
		resp.Movies = rec.Recommend(ctx, *result.Filters)
	}
	return resp
}

// StatusFor 把服务层错误映射为HTTP状态码和对外文案
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, chatService.ErrDialogueUnavailable):
		return http.StatusServiceUnavailable, UnavailableMessage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, UnavailableMessage
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// handleStart 创建会话并返回开场白
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	session, greeting, err := h.chatSvc.StartSession(r.Context())
	if err != nil {
		status, msg := StatusFor(err)
		utils.RespondError(w, status, msg)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, TurnResponse{
		SessionID: session.ID,
		Message:   greeting,
	})
}

// handleMessage 处理用户的一轮输入
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	if err := utils.DecodeJSON(r, w, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := RunTurn(r.Context(), h.chatSvc, h.recommender, payload.SessionID, payload.Message)
	if err != nil {
		status, msg := StatusFor(err)
		if status >= http.StatusInternalServerError {
			logging.Error().Err(err).Str("session", payload.SessionID).Msg("chat turn failed")
		}
		utils.RespondError(w, status, msg)
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// handleEnd 结束会话，重复调用是安全的
func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := utils.DecodeJSON(r, w, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	if err := h.chatSvc.EndSession(r.Context(), payload.SessionID); err != nil {
		status, msg := StatusFor(err)
		utils.RespondError(w, status, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTranscript 返回会话的可见记录
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		status, msg := StatusFor(err)
		utils.RespondError(w, status, msg)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"messages":  messages,
	})
}
