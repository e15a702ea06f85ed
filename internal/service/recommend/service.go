// Package recommend turns a query plan into a ranked movie list: it fetches
// an oversized candidate pool, refines and scores it locally and broadens
// the query when too few candidates survive.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/zhouzirui/moodreel/backend/internal/analysis/overlay"
	"github.com/zhouzirui/moodreel/backend/internal/logging"
	"github.com/zhouzirui/moodreel/backend/internal/metrics"
	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
)

// ErrRetrievalUnavailable wraps any failure of the candidate retriever.
var ErrRetrievalUnavailable = errors.New("candidate retrieval unavailable")

// Retriever returns up to limit movies having any of genres. Empty genres
// means no genre filter.
type Retriever interface {
	Retrieve(ctx context.Context, genres []string, limit int) ([]movie.Movie, error)
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	PoolSize         int
	FallbackPoolSize int
	Timeout          time.Duration
	Seed             int64
}

// Service produces recommendations. It never fails; a broken retriever
// yields an empty list.
type Service struct {
	retriever    Retriever
	ranker       *Ranker
	poolSize     int
	fallbackPool int
	timeout      time.Duration
	cb           *gobreaker.CircuitBreaker[[]movie.Movie]
	logger       zerolog.Logger
}

// NewService wires a recommender over retriever.
func NewService(retriever Retriever, opts Options) *Service {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 50
	}
	if opts.FallbackPoolSize < opts.PoolSize {
		opts.FallbackPoolSize = 2 * opts.PoolSize
	}

	const breakerName = "catalog"
	metrics.SetBreakerState(breakerName, gobreaker.StateClosed)
	cb := gobreaker.NewCircuitBreaker[[]movie.Movie](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.SetBreakerState(name, to)
		},
	})

	return &Service{
		retriever:    retriever,
		ranker:       NewRanker(opts.Seed),
		poolSize:     opts.PoolSize,
		fallbackPool: opts.FallbackPoolSize,
		timeout:      opts.Timeout,
		cb:           cb,
		logger:       logging.Component("recommend"),
	}
}

// Recommend ranks movies for plan.
func (s *Service) Recommend(ctx context.Context, plan filter.Enhanced) []movie.Scored {
	queryGenres := overlay.QueryGenres(plan)

	pool, err := s.retrieve(ctx, queryGenres, s.poolSize)
	if err != nil {
		s.logger.Error().Err(err).Strs("genres", queryGenres).Msg("candidate retrieval failed")
		metrics.ObserveRecommendation("retrieval_unavailable", 0)
		return []movie.Scored{}
	}

	ranked := s.ranker.Rank(plan, pool)

	if len(ranked) < MinResults && len(plan.Genres) > 0 {
		metrics.FallbackActivations.Inc()
		ranked = s.backfill(ctx, plan, queryGenres, ranked)
	}

	outcome := "ok"
	if len(ranked) == 0 {
		outcome = "empty"
	}
	metrics.ObserveRecommendation(outcome, len(ranked))
	s.logger.Debug().
		Str("mood", string(plan.Mood)).
		Int("pool", len(pool)).
		Int("results", len(ranked)).
		Msg("recommendation ranked")
	return ranked
}

// backfill re-queries with the single highest-priority genre and appends
// unseen candidates in retrieval order. Excluded genres still never appear.
func (s *Service) backfill(ctx context.Context, plan filter.Enhanced, queryGenres []string, ranked []movie.Scored) []movie.Scored {
	var broad []string
	if len(queryGenres) > 0 {
		broad = queryGenres[:1]
	}

	extra, err := s.retrieve(ctx, broad, s.fallbackPool)
	if err != nil {
		s.logger.Warn().Err(err).Strs("genres", broad).Msg("fallback retrieval failed, keeping ranked list")
		return ranked
	}

	seen := make(map[string]struct{}, len(ranked))
	for _, m := range ranked {
		seen[m.ID] = struct{}{}
	}

	for _, m := range extra {
		if len(ranked) >= TopN {
			break
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		if hasAnyGenre(m, plan.ExcludeGenres) || (plan.FamilyFriendly && m.Adult) {
			continue
		}
		seen[m.ID] = struct{}{}
		ranked = append(ranked, movie.Scored{Movie: m, Backfill: true})
	}
	return ranked
}

func (s *Service) retrieve(ctx context.Context, genres []string, limit int) ([]movie.Movie, error) {
	if s.retriever == nil {
		return nil, fmt.Errorf("%w: no catalog configured", ErrRetrievalUnavailable)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	pool, err := s.cb.Execute(func() ([]movie.Movie, error) {
		return s.retriever.Retrieve(ctx, genres, limit)
	})
	metrics.RetrievalLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.CircuitBreakerRequests.WithLabelValues(s.cb.Name(), "failure").Inc()
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}
	metrics.CircuitBreakerRequests.WithLabelValues(s.cb.Name(), "success").Inc()
	return pool, nil
}
