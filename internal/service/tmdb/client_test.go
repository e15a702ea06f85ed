package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/moodreel/backend/internal/config"
	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
)

type fakeTMDB struct {
	mu       sync.Mutex
	requests []string
	failIDs  map[int]bool
}

func (f *fakeTMDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.Path)
	f.mu.Unlock()

	if r.URL.Query().Get("api_key") != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status_code":7,"status_message":"Invalid API key"}`)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/movie/popular" || path == "/movie/top_rated":
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		base := 100
		if path == "/movie/top_rated" {
			base = 200
		}
		var items []string
		for i := 0; i < 3; i++ {
			id := base + page*10 + i
			if path == "/movie/top_rated" && i == 0 {
				id = 100 + page*10 // duplicate of a popular entry
			}
			items = append(items, fmt.Sprintf(
				`{"id":%d,"title":"Movie %d","genre_ids":[35,10751,9999],"release_date":"2015-06-19","vote_average":7.5,"popularity":%d,"poster_path":"/p%d.jpg"}`,
				id, id, 1000-id, id))
		}
		fmt.Fprintf(w, `{"page":%d,"results":[%s]}`, page, strings.Join(items, ","))
	case strings.HasSuffix(path, "/videos"):
		fmt.Fprint(w, `{"results":[{"key":"tease","site":"YouTube","type":"Teaser"},{"key":"abc","site":"YouTube","type":"Trailer"}]}`)
	case strings.HasPrefix(path, "/movie/"):
		id, _ := strconv.Atoi(strings.TrimPrefix(path, "/movie/"))
		if f.failIDs[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"runtime":117}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeTMDB, key string) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.TMDBConfig{
		APIKey:       key,
		BaseURL:      srv.URL,
		ImageBaseURL: "https://img.test/w500",
	}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

type memorySink struct {
	batches [][]movie.Movie
}

func (s *memorySink) UpsertMany(_ context.Context, list []movie.Movie) error {
	s.batches = append(s.batches, append([]movie.Movie(nil), list...))
	return nil
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(config.TMDBConfig{APIKey: "  "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestConvert(t *testing.T) {
	c := &Client{imageBase: "https://img.test/w500"}

	got := c.Convert(ListedMovie{
		ID:           42,
		Title:        "Up",
		GenreIDs:     []int{16, 35, 1},
		ReleaseDate:  "2009-05-28",
		VoteAverage:  7.9,
		PosterPath:   "/up.jpg",
		BackdropPath: "",
	})

	assert.Equal(t, "42", got.ID)
	assert.Equal(t, 42, got.TMDBID)
	assert.Equal(t, []string{"Animation", "Comedy"}, got.Genres)
	assert.Equal(t, 2009, got.Year)
	assert.Equal(t, "https://img.test/w500/up.jpg", got.PosterURL)
	assert.Empty(t, got.BackdropURL)

	assert.Zero(t, c.Convert(ListedMovie{ID: 1}).Year, "missing release date leaves the year unknown")
}

func TestGenreNameUsesCatalogSpelling(t *testing.T) {
	name, ok := GenreName(878)
	require.True(t, ok)
	assert.Equal(t, "Sci-Fi", name)

	_, ok = GenreName(-1)
	assert.False(t, ok)
}

func TestTrailerPicksYouTubeTrailer(t *testing.T) {
	c := newTestClient(t, &fakeTMDB{}, "secret")

	url, err := c.Trailer(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", url)
}

func TestInvalidKeyIsAPIError(t *testing.T) {
	c := newTestClient(t, &fakeTMDB{}, "wrong")

	_, err := c.Popular(context.Background(), 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, 7, apiErr.Code)

	_, _, err = c.Fetch(context.Background(), Options{Count: 5, Quick: true})
	assert.ErrorAs(t, err, &apiErr, "an invalid key aborts the run")
}

func TestFetchQuickReadsPopularOnly(t *testing.T) {
	fake := &fakeTMDB{}
	c := newTestClient(t, fake, "secret")

	got, skipped, err := c.Fetch(context.Background(), Options{Count: 2, Quick: true})
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, got, 2)
	assert.Equal(t, "110", got[0].ID)
	assert.Zero(t, got[0].Runtime)
	assert.Empty(t, got[0].TrailerURL)
	assert.Equal(t, []string{"/movie/popular"}, fake.requests)
}

func TestFetchFullEnrichesAndDeduplicates(t *testing.T) {
	fake := &fakeTMDB{failIDs: map[int]bool{211: true}}
	c := newTestClient(t, fake, "secret")

	got, skipped, err := c.Fetch(context.Background(), Options{Count: 10})
	require.NoError(t, err)

	// page 1 yields 110,111,112 plus 211,212 from top rated (110 repeats)
	assert.Equal(t, 1, skipped)
	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.ID
		assert.Equal(t, 117, m.Runtime)
		assert.Equal(t, "https://www.youtube.com/watch?v=abc", m.TrailerURL)
	}
	assert.Equal(t, []string{"110", "111", "112", "212"}, ids)
}

func TestIngestStoresInBatches(t *testing.T) {
	c := newTestClient(t, &fakeTMDB{}, "secret")
	sink := &memorySink{}

	report, err := Ingest(context.Background(), c, sink, Options{Count: 3, Quick: true})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 3, report.Stored)
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 3)
	assert.Len(t, report.Sample, 3)
}
