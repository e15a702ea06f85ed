package movie

import "strings"

// Movie is one catalog record. Runtime and Year are zero when unknown.
type Movie struct {
	ID               string   `json:"id"`
	TMDBID           int      `json:"tmdb_id"`
	Title            string   `json:"title"`
	Overview         string   `json:"overview,omitempty"`
	Genres           []string `json:"genres"`
	ReleaseDate      string   `json:"release_date,omitempty"`
	Year             int      `json:"year,omitempty"`
	VoteAverage      float64  `json:"vote_average"`
	VoteCount        int      `json:"vote_count"`
	Popularity       float64  `json:"popularity"`
	Runtime          int      `json:"runtime,omitempty"`
	PosterURL        string   `json:"poster_url,omitempty"`
	BackdropURL      string   `json:"backdrop_url,omitempty"`
	TrailerURL       string   `json:"trailer_url,omitempty"`
	OriginalLanguage string   `json:"original_language,omitempty"`
	Adult            bool     `json:"adult"`
}

// HasGenre reports whether g is one of the movie's genres.
func (m Movie) HasGenre(g string) bool {
	for _, have := range m.Genres {
		if strings.EqualFold(have, g) {
			return true
		}
	}
	return false
}

// Scored is a ranked movie. Backfill entries come from the broadened query
// and carry no score.
type Scored struct {
	Movie
	Score    float64 `json:"score"`
	Backfill bool    `json:"backfill,omitempty"`
}
