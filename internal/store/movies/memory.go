package movies

import (
	"context"
	"strconv"
	"sync"

	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
)

// MemoryStore is an in-process catalog used by tests and when no catalog
// path is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	movies map[string]movie.Movie
}

// NewMemoryStore seeds a store with list.
func NewMemoryStore(list ...movie.Movie) *MemoryStore {
	s := &MemoryStore{movies: make(map[string]movie.Movie, len(list))}
	_ = s.UpsertMany(context.Background(), list)
	return s
}

func (s *MemoryStore) Upsert(ctx context.Context, m movie.Movie) error {
	return s.UpsertMany(ctx, []movie.Movie{m})
}

func (s *MemoryStore) UpsertMany(_ context.Context, list []movie.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range list {
		if m.ID == "" {
			m.ID = strconv.Itoa(m.TMDBID)
		}
		s.movies[m.ID] = m
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (movie.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movies[id]
	if !ok {
		return movie.Movie{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.movies), nil
}

// Retrieve has the same semantics as BadgerStore.Retrieve.
func (s *MemoryStore) Retrieve(ctx context.Context, genres []string, limit int) ([]movie.Movie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	pool := make([]movie.Movie, 0, len(s.movies))
	for _, m := range s.movies {
		if len(genres) == 0 || hasAny(m, genres) {
			pool = append(pool, m)
		}
	}
	s.mu.RUnlock()

	return topByPopularity(pool, limit), nil
}

func hasAny(m movie.Movie, genres []string) bool {
	for _, g := range genres {
		for _, have := range m.Genres {
			if have == g {
				return true
			}
		}
	}
	return false
}
