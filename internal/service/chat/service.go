package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/moodreel/backend/internal/analysis/overlay"
	"github.com/zhouzirui/moodreel/backend/internal/analysis/payload"
	"github.com/zhouzirui/moodreel/backend/internal/logging"
	"github.com/zhouzirui/moodreel/backend/internal/metrics"
	"github.com/zhouzirui/moodreel/backend/internal/model/chat"
	"github.com/zhouzirui/moodreel/backend/internal/model/rules"
	"github.com/zhouzirui/moodreel/backend/internal/service/ai"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrEmptyMessage        = errors.New("message is required")
	ErrDialogueUnavailable = errors.New("dialogue model unavailable")
)

// fallbackReply is shown when the model answered with nothing but a broken payload.
const fallbackReply = "Sorry, I lost my train of thought there. Could you tell me a bit more about how you're feeling?"

// Dialogue is the conversational capability a turn is forwarded to.
type Dialogue interface {
	Converse(ctx context.Context, conv chat.Conversation, text string) (string, error)
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	Store   *Store
	Catalog *rules.Catalog
	// Timeout bounds a single dialogue call. Zero means only the caller's context applies.
	Timeout time.Duration
	// IdleTTL is used by Sweep. Zero disables expiry.
	IdleTTL time.Duration
	Clock   func() time.Time
}

// Service drives dialogue sessions: it owns the transcript, forwards turns to
// the dialogue model and turns a ready reply into a query plan.
type Service struct {
	store    *Store
	dialogue Dialogue
	catalog  *rules.Catalog
	preamble string
	timeout  time.Duration
	idleTTL  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService wires a session service. dialogue may be nil, in which case
// every turn fails with ErrDialogueUnavailable.
func NewService(dialogue Dialogue, opts Options) *Service {
	if opts.Store == nil {
		opts.Store = NewStore()
	}
	if opts.Catalog == nil {
		opts.Catalog = rules.Default()
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		store:    opts.Store,
		dialogue: dialogue,
		catalog:  opts.Catalog,
		preamble: ai.NewPromptBuilder(opts.Catalog).SystemPrompt(),
		timeout:  opts.Timeout,
		idleTTL:  opts.IdleTTL,
		now:      opts.Clock,
		logger:   logging.Component("chat"),
	}
}

// StartSession allocates a session seeded with the greeting and returns it
// without calling the model.
func (s *Service) StartSession(ctx context.Context) (chat.Session, string, error) {
	id := uuid.NewString()
	e, _ := s.store.getOrCreate(id, s.now())
	if err := e.lock(ctx); err != nil {
		return chat.Session{}, "", err
	}
	defer e.unlock()

	s.seed(e)
	s.logger.Info().Str("session", id).Msg("session started")
	return e.session, ai.Greeting, nil
}

// SubmitTurn forwards text to the dialogue model. Unknown ids get a fresh
// session under the same id. On dialogue failure the session is untouched.
func (s *Service) SubmitTurn(ctx context.Context, sessionID, text string) (chat.TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.TurnResult{}, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	e, err := s.acquire(ctx, sessionID)
	if err != nil {
		return chat.TurnResult{}, err
	}
	defer e.unlock()

	prevState := e.session.State
	e.session.State = chat.StateTurnInFlight

	reply, err := s.converse(ctx, e, text)
	if err != nil {
		e.session.State = prevState
		metrics.DialogueTurns.WithLabelValues("unavailable").Inc()
		s.logger.Error().Err(err).Str("session", sessionID).Msg("dialogue call failed")
		return chat.TurnResult{}, fmt.Errorf("%w: %v", ErrDialogueUnavailable, err)
	}

	now := s.now()
	result := chat.TurnResult{SessionID: sessionID}
	extracted := payload.Extract(reply)

	switch extracted.Kind {
	case payload.ReadyValid:
		plan := overlay.Synthesize(extracted.Filters, s.catalog)
		result.Message = extracted.Summary
		result.Ready = true
		result.Filters = &plan
		e.session.Filters = &plan
		e.session.State = chat.StateReady
		s.logger.Info().
			Str("session", sessionID).
			Str("mood", string(plan.Mood)).
			Strs("genres", plan.Genres).
			Msg("filters ready")
	case payload.ReadyMalformed:
		s.logger.Warn().Err(extracted.Err).Str("session", sessionID).Msg("ignoring malformed payload")
		result.Message = extracted.Text
		e.session.State = chat.StateAwaitingInput
	default:
		result.Message = extracted.Text
		e.session.State = chat.StateAwaitingInput
	}
	if result.Message == "" {
		result.Message = fallbackReply
	}
	metrics.DialogueTurns.WithLabelValues(extracted.Kind.String()).Inc()

	e.transcript = append(e.transcript,
		s.message(sessionID, chat.SenderUser, text, "", now),
		s.message(sessionID, chat.SenderAssistant, result.Message, reply, now),
	)
	e.session.LastActiveAt = now

	return result, nil
}

// EndSession removes the session. Unknown ids are a no-op.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	e, ok := s.store.remove(sessionID)
	if !ok {
		return nil
	}
	// wait for an in-flight turn so its waiters see the removal
	if err := e.lock(ctx); err != nil {
		s.logger.Debug().Err(err).Str("session", sessionID).Msg("session detached while a turn was in flight")
		return nil
	}
	e.removed = true
	e.session.State = chat.StateEnded
	e.unlock()

	s.logger.Info().Str("session", sessionID).Msg("session ended")
	return nil
}

// GetSession returns a snapshot of the session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	e, ok := s.store.get(sessionID)
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	if err := e.lock(ctx); err != nil {
		return chat.Session{}, err
	}
	defer e.unlock()
	if e.removed {
		return chat.Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

// LoadTranscript returns the visible messages of a session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	e, ok := s.store.get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	defer e.unlock()
	if e.removed {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(e.transcript))
	copy(copied, e.transcript)
	return copied, nil
}

// Sweep ends sessions idle for longer than the configured TTL and returns
// how many were removed.
func (s *Service) Sweep(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}
	expired := s.store.expire(now.Add(-s.idleTTL))
	if n := len(expired); n > 0 {
		metrics.SessionsExpired.Add(float64(n))
		s.logger.Info().Int("count", n).Msg("expired idle sessions")
	}
	return len(expired)
}

// acquire returns the locked entry for id, creating and seeding it when
// needed. A session removed while we waited is replaced by a fresh one.
func (s *Service) acquire(ctx context.Context, id string) (*entry, error) {
	for {
		e, created := s.store.getOrCreate(id, s.now())
		if err := e.lock(ctx); err != nil {
			return nil, err
		}
		if e.removed {
			e.unlock()
			continue
		}
		if created || e.session.State == chat.StateCreated {
			s.seed(e)
			s.logger.Info().Str("session", id).Msg("recreated unknown session")
		}
		return e, nil
	}
}

// seed writes the greeting. Callers hold the entry slot.
func (s *Service) seed(e *entry) {
	if e.session.State != chat.StateCreated {
		return
	}
	e.transcript = append(e.transcript, s.message(e.session.ID, chat.SenderAssistant, ai.Greeting, "", e.session.CreatedAt))
	e.session.State = chat.StateAwaitingInput
}

func (s *Service) converse(ctx context.Context, e *entry, text string) (string, error) {
	if s.dialogue == nil {
		return "", errors.New("no dialogue model configured")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	history := make([]chat.Message, len(e.transcript))
	copy(history, e.transcript)
	return s.dialogue.Converse(ctx, chat.Conversation{Preamble: s.preamble, History: history}, text)
}

func (s *Service) message(sessionID, sender, content, raw string, at time.Time) chat.Message {
	if raw == content {
		raw = ""
	}
	return chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		Raw:       raw,
		CreatedAt: at,
	}
}
