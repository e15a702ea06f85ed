package tmdb

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/moodreel/backend/internal/logging"
	"github.com/zhouzirui/moodreel/backend/internal/metrics"
	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
)

const (
	batchSize      = 400
	enrichWorkers  = 4
	progressEveryN = 50
)

// Sink receives converted movies.
type Sink interface {
	UpsertMany(ctx context.Context, list []movie.Movie) error
}

// Options controls one ingestion run.
type Options struct {
	// Count is the number of distinct movies to collect.
	Count int
	// Quick skips runtime and trailer lookups and reads popular pages only.
	Quick bool
}

// Report summarizes an ingestion run.
type Report struct {
	Fetched int
	Stored  int
	Skipped int
	Sample  []movie.Movie
}

// Fetch collects up to opts.Count distinct movies. Failing pages and movies
// are logged and skipped; Fetch only errors when nothing could be read.
func (c *Client) Fetch(ctx context.Context, opts Options) ([]movie.Movie, int, error) {
	if opts.Count <= 0 {
		return nil, 0, nil
	}

	logger := logging.Component("tmdb")
	pages := (opts.Count + PageSize - 1) / PageSize
	seen := make(map[int]struct{}, opts.Count)
	out := make([]movie.Movie, 0, opts.Count)
	skipped := 0
	var firstErr error

	for page := 1; page <= pages && len(out) < opts.Count; page++ {
		listed, err := c.Popular(ctx, page)
		if err == nil && !opts.Quick {
			var top []ListedMovie
			top, err = c.TopRated(ctx, page)
			listed = append(listed, top...)
		}
		if err != nil {
			if ctx.Err() != nil {
				return out, skipped, ctx.Err()
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && (apiErr.Status == 401 || apiErr.Code == 7) {
				return out, skipped, err
			}
			if firstErr == nil {
				firstErr = err
			}
			logger.Error().Err(err).Int("page", page).Msg("fetch page failed")
			continue
		}

		fresh := make([]ListedMovie, 0, len(listed))
		for _, m := range listed {
			if _, dup := seen[m.ID]; dup || len(out)+len(fresh) >= opts.Count {
				continue
			}
			seen[m.ID] = struct{}{}
			fresh = append(fresh, m)
		}

		converted, dropped := c.convertAll(ctx, fresh, opts.Quick)
		skipped += dropped
		before := len(out)
		out = append(out, converted...)
		if len(out)/progressEveryN > before/progressEveryN {
			logger.Info().Int("fetched", len(out)).Int("target", opts.Count).Msg("fetch progress")
		}
	}

	if len(out) == 0 && firstErr != nil {
		return nil, skipped, firstErr
	}
	return out, skipped, nil
}

// convertAll converts listed in order. In full mode each movie is enriched
// with runtime and trailer; a movie whose enrichment fails is dropped.
func (c *Client) convertAll(ctx context.Context, listed []ListedMovie, quick bool) ([]movie.Movie, int) {
	results := make([]movie.Movie, len(listed))
	ok := make([]bool, len(listed))

	if quick {
		for i, m := range listed {
			results[i], ok[i] = c.Convert(m), true
		}
		return results, 0
	}

	logger := logging.Component("tmdb")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichWorkers)
	for i, m := range listed {
		g.Go(func() error {
			enriched, err := c.enrich(gctx, m)
			if err != nil {
				logger.Warn().Err(err).Str("title", m.Title).Msg("convert movie failed")
				return nil
			}
			results[i], ok[i] = enriched, true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]movie.Movie, 0, len(listed))
	for i := range results {
		if ok[i] {
			out = append(out, results[i])
		}
	}
	return out, len(listed) - len(out)
}

func (c *Client) enrich(ctx context.Context, m ListedMovie) (movie.Movie, error) {
	out := c.Convert(m)

	runtime, err := c.Runtime(ctx, m.ID)
	if err != nil {
		return movie.Movie{}, fmt.Errorf("runtime of %d: %w", m.ID, err)
	}
	trailer, err := c.Trailer(ctx, m.ID)
	if err != nil {
		return movie.Movie{}, fmt.Errorf("videos of %d: %w", m.ID, err)
	}

	out.Runtime = runtime
	out.TrailerURL = trailer
	return out, nil
}

// Ingest fetches movies and writes them to sink in batches.
func Ingest(ctx context.Context, c *Client, sink Sink, opts Options) (Report, error) {
	logger := logging.Component("tmdb")
	mode := "full"
	if opts.Quick {
		mode = "quick"
	}
	logger.Info().Str("mode", mode).Int("count", opts.Count).Msg("starting catalog ingestion")

	list, skipped, err := c.Fetch(ctx, opts)
	report := Report{Fetched: len(list), Skipped: skipped}
	metrics.IngestedMovies.WithLabelValues("skipped").Add(float64(skipped))
	if err != nil {
		return report, fmt.Errorf("fetch movies: %w", err)
	}

	batches := (len(list) + batchSize - 1) / batchSize
	for i := 0; i < len(list); i += batchSize {
		end := min(i+batchSize, len(list))
		if err := sink.UpsertMany(ctx, list[i:end]); err != nil {
			return report, fmt.Errorf("store batch %d/%d: %w", i/batchSize+1, batches, err)
		}
		report.Stored += end - i
		metrics.IngestedMovies.WithLabelValues("stored").Add(float64(end - i))
		logger.Info().Int("batch", i/batchSize+1).Int("batches", batches).Msg("stored batch")
	}

	report.Sample = list[:min(5, len(list))]
	logger.Info().Int("stored", report.Stored).Int("skipped", report.Skipped).Msg("catalog ingestion finished")
	return report, nil
}
