package stream

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatHandler "github.com/zhouzirui/moodreel/backend/internal/handler/chat"
	"github.com/zhouzirui/moodreel/backend/internal/logging"
	chatService "github.com/zhouzirui/moodreel/backend/internal/service/chat"
	"github.com/zhouzirui/moodreel/backend/pkg/utils"
)

// SSE event names, in emission order.
const (
	EventStart   = "start"
	EventMessage = "message"
	EventFilters = "filters"
	EventMovies  = "movies"
	EventEnd     = "end"
	EventError   = "error"
)

// Handler manages dialogue turns delivered via Server-Sent Events
type Handler struct {
	chatSvc     *chatService.Service
	recommender chatHandler.Recommender
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, recommender chatHandler.Recommender) *Handler {
	return &Handler{
		chatSvc:     chatSvc,
		recommender: recommender,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	Ready     bool   `json:"ready,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RegisterRoutes 注册流式接口
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		userMessage := r.URL.Query().Get("message")

		if userMessage == "" {
			utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
			return
		}

		if err := h.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
			logging.Warn().Err(err).Str("session", sessionID).Msg("[stream] request ended with error")
		}
	})
}

// HandleStreamRequest runs one turn and streams its outcome
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return errStreamingUnsupported
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, EventStart, StreamResponse{SessionID: sessionID}); err != nil {
		return err
	}

	resp, err := chatHandler.RunTurn(ctx, h.chatSvc, h.recommender, sessionID, userMessage)
	if err != nil {
		_, msg := chatHandler.StatusFor(err)
		_ = utils.SendSSEEvent(w, flusher, EventError, StreamResponse{SessionID: sessionID, Error: msg})
		return err
	}

	if err := utils.SendSSEEvent(w, flusher, EventMessage, StreamResponse{
		SessionID: resp.SessionID,
		Content:   resp.Message,
		Ready:     resp.Ready,
	}); err != nil {
		return err
	}

	if resp.Ready {
		if err := utils.SendSSEEvent(w, flusher, EventFilters, resp.Filters); err != nil {
			return err
		}
		if err := utils.SendSSEEvent(w, flusher, EventMovies, resp.Movies); err != nil {
			return err
		}
	}

	logging.Debug().Str("session", resp.SessionID).Bool("ready", resp.Ready).Msg("[stream] completed response")
	return utils.SendSSEEvent(w, flusher, EventEnd, StreamResponse{SessionID: resp.SessionID, Finished: true})
}

var errStreamingUnsupported = errors.New("streaming unsupported")
