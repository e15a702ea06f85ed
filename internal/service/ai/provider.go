package ai

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/zhouzirui/moodreel/backend/internal/config"
	"github.com/zhouzirui/moodreel/backend/internal/logging"
	"github.com/zhouzirui/moodreel/backend/internal/metrics"
	"github.com/zhouzirui/moodreel/backend/internal/model/chat"
)

// Converser is the dialogue capability: given the running conversation and a
// new user message it returns the model's free-text reply.
type Converser interface {
	Converse(ctx context.Context, conv chat.Conversation, text string) (string, error)
	Name() string
}

// New builds the configured provider wrapped in a circuit breaker.
func New(ctx context.Context, cfg config.AIConfig) (Converser, error) {
	var (
		inner Converser
		err   error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderOllama:
		inner, err = NewLangChainService(cfg)
	default:
		inner, err = NewService(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	return NewBreaker(inner), nil
}

// Breaker fails fast once the upstream model keeps erroring.
type Breaker struct {
	inner Converser
	cb    *gobreaker.CircuitBreaker[string]
}

// NewBreaker wraps inner. The circuit opens after 5 consecutive failures and
// probes again after 30 seconds.
func NewBreaker(inner Converser) *Breaker {
	name := "dialogue-" + inner.Name()
	metrics.SetBreakerState(name, gobreaker.StateClosed)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// caller cancellations say nothing about upstream health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.SetBreakerState(name, to)
		},
	})

	return &Breaker{inner: inner, cb: cb}
}

// Name reports the wrapped provider.
func (b *Breaker) Name() string {
	return b.inner.Name()
}

// Converse forwards to the wrapped provider unless the circuit is open.
func (b *Breaker) Converse(ctx context.Context, conv chat.Conversation, text string) (string, error) {
	reply, err := b.cb.Execute(func() (string, error) {
		return b.inner.Converse(ctx, conv, text)
	})
	name := b.cb.Name()
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
	}
	return reply, err
}

// State exposes the breaker position, mainly for tests and health output.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
