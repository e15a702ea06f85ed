package chat

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/moodreel/backend/internal/metrics"
	"github.com/zhouzirui/moodreel/backend/internal/model/chat"
)

// entry is one live session. The slot channel is a one-token semaphore that
// serializes turns; holding the token grants access to every other field.
type entry struct {
	slot       chan struct{}
	session    chat.Session
	transcript []chat.Message
	removed    bool
}

func newEntry(id string, now time.Time) *entry {
	return &entry{
		slot: make(chan struct{}, 1),
		session: chat.Session{
			ID:           id,
			State:        chat.StateCreated,
			CreatedAt:    now,
			LastActiveAt: now,
		},
		transcript: make([]chat.Message, 0, 16),
	}
}

func (e *entry) lock(ctx context.Context) error {
	select {
	case e.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) tryLock() bool {
	select {
	case e.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *entry) unlock() {
	<-e.slot
}

// Store maps session ids to live sessions. Distinct sessions never contend
// beyond the brief map lookup.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Len reports how many sessions are live.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// getOrCreate returns the entry for id and whether it was just created.
func (s *Store) getOrCreate(id string, now time.Time) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		return e, false
	}
	e := newEntry(id, now)
	s.entries[id] = e
	metrics.ActiveSessions.Set(float64(len(s.entries)))
	return e, true
}

func (s *Store) get(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// remove detaches id from the map. The caller marks the entry removed while
// holding its slot so in-flight waiters notice.
func (s *Store) remove(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
		metrics.ActiveSessions.Set(float64(len(s.entries)))
	}
	return e, ok
}

// expire removes every idle entry whose last activity is older than cutoff.
// Entries with a turn in flight are skipped.
func (s *Store) expire(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for id, e := range s.entries {
		if !e.tryLock() {
			continue
		}
		if e.session.LastActiveAt.Before(cutoff) {
			e.removed = true
			e.session.State = chat.StateEnded
			delete(s.entries, id)
			expired = append(expired, id)
		}
		e.unlock()
	}
	metrics.ActiveSessions.Set(float64(len(s.entries)))
	return expired
}
