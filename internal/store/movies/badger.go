// Package movies stores the movie catalog and serves genre-filtered
// candidate pools to the recommender.
package movies

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
)

const (
	movieKeyPrefix = "movie:"
	genreKeyPrefix = "genre:"
)

var ErrNotFound = errors.New("movie not found")

// BadgerStore keeps one JSON document per movie under movie:<id> and a
// genre index under genre:<Genre>:<id>.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a catalog at dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func movieKey(id string) []byte {
	return []byte(movieKeyPrefix + id)
}

func genreKey(genre, id string) []byte {
	return []byte(genreKeyPrefix + genre + ":" + id)
}

// Upsert writes m and refreshes its genre index entries.
func (s *BadgerStore) Upsert(ctx context.Context, m movie.Movie) error {
	return s.UpsertMany(ctx, []movie.Movie{m})
}

// UpsertMany writes movies in one transaction per batch.
func (s *BadgerStore) UpsertMany(ctx context.Context, list []movie.Movie) error {
	const batchSize = 100

	for start := 0; start < len(list); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + batchSize
		if end > len(list) {
			end = len(list)
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			for _, m := range list[start:end] {
				if err := upsertTxn(txn, m); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func upsertTxn(txn *badger.Txn, m movie.Movie) error {
	if m.ID == "" {
		m.ID = strconv.Itoa(m.TMDBID)
	}
	if m.ID == "" || m.ID == "0" {
		return fmt.Errorf("movie %q has no id", m.Title)
	}

	// drop index entries for genres the movie no longer has
	item, err := txn.Get(movieKey(m.ID))
	switch {
	case err == nil:
		var old movie.Movie
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &old)
		}); err != nil {
			return fmt.Errorf("unmarshal movie %s: %w", m.ID, err)
		}
		for _, g := range old.Genres {
			if err := txn.Delete(genreKey(g, m.ID)); err != nil {
				return fmt.Errorf("delete genre index: %w", err)
			}
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return fmt.Errorf("get movie %s: %w", m.ID, err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal movie: %w", err)
	}
	if err := txn.Set(movieKey(m.ID), data); err != nil {
		return fmt.Errorf("set movie: %w", err)
	}
	for _, g := range m.Genres {
		if err := txn.Set(genreKey(g, m.ID), nil); err != nil {
			return fmt.Errorf("set genre index: %w", err)
		}
	}
	return nil
}

// Get loads one movie.
func (s *BadgerStore) Get(_ context.Context, id string) (movie.Movie, error) {
	var m movie.Movie
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = getTxn(txn, id)
		return err
	})
	return m, err
}

func getTxn(txn *badger.Txn, id string) (movie.Movie, error) {
	var m movie.Movie
	item, err := txn.Get(movieKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return m, ErrNotFound
	}
	if err != nil {
		return m, fmt.Errorf("get movie: %w", err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &m)
	})
	return m, err
}

// Count returns the number of stored movies.
func (s *BadgerStore) Count(_ context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(movieKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Retrieve returns up to limit movies having any of genres, most popular
// first. An empty genre list means no genre filter.
func (s *BadgerStore) Retrieve(ctx context.Context, genres []string, limit int) ([]movie.Movie, error) {
	var pool []movie.Movie

	err := s.db.View(func(txn *badger.Txn) error {
		if len(genres) == 0 {
			return scanAll(ctx, txn, func(m movie.Movie) { pool = append(pool, m) })
		}

		seen := make(map[string]struct{})
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for _, g := range genres {
			prefix := []byte(genreKeyPrefix + g + ":")
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				id := string(it.Item().Key()[len(prefix):])
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}

				m, err := getTxn(txn, id)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				pool = append(pool, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}

	return topByPopularity(pool, limit), nil
}

func scanAll(ctx context.Context, txn *badger.Txn, fn func(movie.Movie)) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := []byte(movieKeyPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var m movie.Movie
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		}); err != nil {
			return fmt.Errorf("unmarshal movie: %w", err)
		}
		fn(m)
	}
	return nil
}

// topByPopularity sorts in place and truncates. Ties fall back to id order.
func topByPopularity(pool []movie.Movie, limit int) []movie.Movie {
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Popularity != pool[j].Popularity {
			return pool[i].Popularity > pool[j].Popularity
		}
		return pool[i].ID < pool[j].ID
	})
	if limit > 0 && len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}
