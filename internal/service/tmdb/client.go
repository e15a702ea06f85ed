// Package tmdb pulls movie metadata from The Movie Database and converts it
// into catalog records.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/zhouzirui/moodreel/backend/internal/config"
	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
)

// ErrMissingAPIKey is returned when no TMDB key is configured.
var ErrMissingAPIKey = errors.New("tmdb api key is not set")

// PageSize is the number of results TMDB returns per list page.
const PageSize = 20

var genreNames = map[int]string{
	28: "Action", 12: "Adventure", 16: "Animation", 35: "Comedy",
	80: "Crime", 99: "Documentary", 18: "Drama", 10751: "Family",
	14: "Fantasy", 36: "History", 27: "Horror", 10402: "Music",
	9648: "Mystery", 10749: "Romance", 878: "Sci-Fi", 10770: "TV Movie",
	53: "Thriller", 10752: "War", 37: "Western",
}

// GenreName maps a TMDB genre id to the catalog genre name.
func GenreName(id int) (string, bool) {
	name, ok := genreNames[id]
	return name, ok
}

// APIError is a non-success answer from TMDB.
type APIError struct {
	Status  int
	Code    int    `json:"status_code"`
	Message string `json:"status_message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tmdb: http %d", e.Status)
	}
	return fmt.Sprintf("tmdb: http %d: %s (code %d)", e.Status, e.Message, e.Code)
}

// ListedMovie is one entry of a popular or top rated page.
type ListedMovie struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	GenreIDs         []int   `json:"genre_ids"`
	ReleaseDate      string  `json:"release_date"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	OriginalLanguage string  `json:"original_language"`
	Adult            bool    `json:"adult"`
}

type listPage struct {
	Page    int           `json:"page"`
	Results []ListedMovie `json:"results"`
}

type details struct {
	Runtime int `json:"runtime"`
}

type video struct {
	Key  string `json:"key"`
	Site string `json:"site"`
	Type string `json:"type"`
}

type videoList struct {
	Results []video `json:"results"`
}

// Client talks to the TMDB v3 API. Requests share one rate limiter.
type Client struct {
	apiKey    string
	baseURL   string
	imageBase string
	http      *http.Client
	limiter   *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient builds a client from configuration.
func NewClient(cfg config.TMDBConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		imageBase: strings.TrimRight(cfg.ImageBaseURL, "/"),
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Popular returns one page of popular movies.
func (c *Client) Popular(ctx context.Context, page int) ([]ListedMovie, error) {
	return c.list(ctx, "/movie/popular", page)
}

// TopRated returns one page of top rated movies.
func (c *Client) TopRated(ctx context.Context, page int) ([]ListedMovie, error) {
	return c.list(ctx, "/movie/top_rated", page)
}

func (c *Client) list(ctx context.Context, path string, page int) ([]ListedMovie, error) {
	var out listPage
	if err := c.get(ctx, path, url.Values{"page": {strconv.Itoa(page)}}, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		return nil, fmt.Errorf("tmdb %s page %d: response has no results", path, page)
	}
	return out.Results, nil
}

// Runtime returns the runtime in minutes, 0 when TMDB does not know it.
func (c *Client) Runtime(ctx context.Context, id int) (int, error) {
	var out details
	if err := c.get(ctx, "/movie/"+strconv.Itoa(id), nil, &out); err != nil {
		return 0, err
	}
	return out.Runtime, nil
}

// Trailer returns the watch URL of the first YouTube trailer, or "".
func (c *Client) Trailer(ctx context.Context, id int) (string, error) {
	var out videoList
	if err := c.get(ctx, "/movie/"+strconv.Itoa(id)+"/videos", nil, &out); err != nil {
		return "", err
	}
	for _, v := range out.Results {
		if v.Type == "Trailer" && v.Site == "YouTube" && v.Key != "" {
			return "https://www.youtube.com/watch?v=" + v.Key, nil
		}
	}
	return "", nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	query.Set("language", "en-US")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build tmdb request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode tmdb %s: %w", path, err)
	}
	return nil
}

// Convert maps a listed movie onto a catalog record. Unknown genre ids are
// dropped and the year comes from the release date.
func (c *Client) Convert(m ListedMovie) movie.Movie {
	out := movie.Movie{
		ID:               strconv.Itoa(m.ID),
		TMDBID:           m.ID,
		Title:            m.Title,
		Overview:         m.Overview,
		Genres:           make([]string, 0, len(m.GenreIDs)),
		ReleaseDate:      m.ReleaseDate,
		Year:             releaseYear(m.ReleaseDate),
		VoteAverage:      m.VoteAverage,
		VoteCount:        m.VoteCount,
		Popularity:       m.Popularity,
		OriginalLanguage: m.OriginalLanguage,
		Adult:            m.Adult,
	}
	for _, id := range m.GenreIDs {
		if name, ok := GenreName(id); ok {
			out.Genres = append(out.Genres, name)
		}
	}
	if m.PosterPath != "" {
		out.PosterURL = c.imageBase + m.PosterPath
	}
	if m.BackdropPath != "" {
		out.BackdropURL = c.imageBase + m.BackdropPath
	}
	return out
}

func releaseYear(date string) int {
	head, _, _ := strings.Cut(date, "-")
	year, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return year
}
