package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
	"github.com/zhouzirui/moodreel/backend/internal/model/rules"
	recommendService "github.com/zhouzirui/moodreel/backend/internal/service/recommend"
	"github.com/zhouzirui/moodreel/backend/internal/store/movies"
)

type capture struct {
	plans []filter.Enhanced
}

func (c *capture) Recommend(_ context.Context, plan filter.Enhanced) []movie.Scored {
	c.plans = append(c.plans, plan)
	return []movie.Scored{}
}

func router(rec *capture) *chi.Mux {
	r := chi.NewRouter()
	New(rules.Default(), rec).RegisterRoutes(r)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/recommendations", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestRecommendSynthesizesFilters(t *testing.T) {
	rec := &capture{}

	resp := post(router(rec), `{"filters": {"mood": "Stressed", "context": "solo"}}`)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Len(t, rec.plans, 1)
	plan := rec.plans[0]
	assert.Equal(t, filter.Stressed, plan.Mood)
	assert.Equal(t, filter.Alone, plan.Context)
	assert.Contains(t, plan.ExcludeGenres, filter.GenreHorror)
	require.NotNil(t, plan.MaxRuntime)
	assert.Equal(t, 110, *plan.MaxRuntime)

	var out Response
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.NotNil(t, out.Movies)
	assert.Equal(t, plan.Genres, out.Filters.Genres)
}

func TestRecommendRejectsInvalidFilters(t *testing.T) {
	cases := map[string]string{
		"missing filters": `{}`,
		"unknown mood":    `{"filters": {"mood": "hangry"}}`,
		"rating too high": `{"filters": {"mood": "happy", "minRating": 11}}`,
		"bad year range":  `{"filters": {"mood": "happy", "yearRange": [2020, 1990]}}`,
		"not json":        `{"filters":`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := &capture{}
			resp := post(router(rec), body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Empty(t, rec.plans)
		})
	}
}

func TestQuickRecommendQuery(t *testing.T) {
	rec := &capture{}
	resp := httptest.NewRecorder()

	router(rec).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/recommendations?mood=happy&genre=sci-fi,comedy", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, rec.plans, 1)
	assert.Equal(t, filter.GenreSciFi, rec.plans[0].Genres[0])
	assert.Equal(t, filter.GenreComedy, rec.plans[0].Genres[1])
}

func TestQuickRecommendRequiresMood(t *testing.T) {
	resp := httptest.NewRecorder()
	router(&capture{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/recommendations", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRulesSnapshot(t *testing.T) {
	resp := httptest.NewRecorder()
	router(&capture{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/rules", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var snap struct {
		Moods  map[string]json.RawMessage `json:"moods"`
		Genres []string                   `json:"genres"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snap))
	assert.Len(t, snap.Moods, len(filter.Moods()))
	assert.Contains(t, snap.Genres, filter.GenreAnimation)
}

func TestRecommendWithRealService(t *testing.T) {
	store := movies.NewMemoryStore(
		movie.Movie{ID: "superbad", Genres: []string{"Comedy"}, VoteAverage: 7.6, Year: 2007, Popularity: 80},
	)
	r := chi.NewRouter()
	New(nil, recommendService.NewService(store, recommendService.Options{Seed: 1})).RegisterRoutes(r)

	resp := post(r, `{"filters": {"mood": "bored", "genres": ["Comedy"]}}`)

	require.Equal(t, http.StatusOK, resp.Code)
	var out Response
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.NotEmpty(t, out.Movies)
	assert.Equal(t, "superbad", out.Movies[0].ID)
}
