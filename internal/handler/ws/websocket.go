package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	chatHandler "github.com/zhouzirui/moodreel/backend/internal/handler/chat"
	"github.com/zhouzirui/moodreel/backend/internal/logging"
	chatService "github.com/zhouzirui/moodreel/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Outbound message types.
const (
	TypeConnected = "connected"
	TypeReply     = "reply"
	TypeMovies    = "movies"
	TypeError     = "error"
)

// WebSocketHandler WebSocket对话处理器
type WebSocketHandler struct {
	chatSvc     *chatService.Service
	recommender chatHandler.Recommender
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatService.Service, recommender chatHandler.Recommender) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc:     chatSvc,
		recommender: recommender,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// connection 串行化写操作，gorilla 不允许并发写
type connection struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *connection) send(msgType string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	msg := outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logging.Warn().Err(err).Str("type", msgType).Msg("[websocket] marshal failed")
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logging.Debug().Err(err).Str("type", msgType).Msg("[websocket] write failed")
	}
}

func (c *connection) sendError(message string) {
	c.send(TypeError, map[string]string{"message": message})
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}
	if h.chatSvc == nil {
		http.Error(w, "chat service unavailable", http.StatusServiceUnavailable)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("[websocket] upgrade failed")
		return
	}
	defer raw.Close()

	logger := logging.Component("websocket").With().Str("session", sessionID).Logger()
	logger.Info().Msg("new connection")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := &connection{conn: raw, sessionID: sessionID}

	_ = raw.SetReadDeadline(time.Now().Add(readTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go pingLoop(ctx, raw)

	conn.send(TypeConnected, map[string]any{"resumed": h.sessionExists(ctx, sessionID)})

	for {
		var msg inboundMessage
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("read error")
			}
			return
		}
		_ = raw.SetReadDeadline(time.Now().Add(readTimeout))

		if err := json.Unmarshal(data, &msg); err != nil {
			conn.sendError("invalid message")
			continue
		}
		if msg.SessionID != "" && msg.SessionID != sessionID {
			conn.sendError("session mismatch")
			continue
		}

		h.handleMessage(ctx, conn, &msg)
	}
}

func (h *WebSocketHandler) sessionExists(ctx context.Context, sessionID string) bool {
	_, err := h.chatSvc.GetSession(ctx, sessionID)
	return err == nil
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *connection, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, conn, msg.Data)
	default:
		conn.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *WebSocketHandler) handleTextMessage(ctx context.Context, conn *connection, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		conn.sendError("invalid text payload")
		return
	}
	if strings.TrimSpace(text.Text) == "" {
		conn.sendError(chatService.ErrEmptyMessage.Error())
		return
	}

	resp, err := chatHandler.RunTurn(ctx, h.chatSvc, h.recommender, conn.sessionID, text.Text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		_, message := chatHandler.StatusFor(err)
		conn.sendError(message)
		return
	}

	conn.send(TypeReply, map[string]any{
		"message": resp.Message,
		"ready":   resp.Ready,
		"filters": resp.Filters,
	})
	if resp.Ready {
		conn.send(TypeMovies, resp.Movies)
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
