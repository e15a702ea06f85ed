// Package rules holds the curated mood, context and time knowledge base used
// to turn a model-proposed filter into a query plan.
package rules

import (
	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
)

// MoodRule maps an emotional state to movie characteristics.
type MoodRule struct {
	Description          string   `json:"description"`
	Genres               []string `json:"genres"`
	ExcludeGenres        []string `json:"excludeGenres"`
	PreferHighRating     bool     `json:"preferHighRating"`
	PreferShorterRuntime bool     `json:"preferShorterRuntime,omitempty"`
	PreferOlderMovies    bool     `json:"preferOlderMovies,omitempty"`
	Keywords             []string `json:"keywords"`
}

// ContextRule adjusts the plan for who is watching.
type ContextRule struct {
	Description      string   `json:"description"`
	Genres           []string `json:"genres,omitempty"`
	ExcludeGenres    []string `json:"excludeGenres,omitempty"`
	PreferHighRating bool     `json:"preferHighRating,omitempty"`
	FamilyFriendly   bool     `json:"familyFriendly,omitempty"`
}

// TimeRule bounds runtime in minutes. Zero means unbounded.
type TimeRule struct {
	Description string `json:"description"`
	MaxRuntime  int    `json:"maxRuntime,omitempty"`
	MinRuntime  int    `json:"minRuntime,omitempty"`
}

// Catalog is the immutable rule set. Lookups on unknown keys report ok=false.
type Catalog struct {
	moods    map[filter.Mood]MoodRule
	contexts map[filter.Context]ContextRule
	times    map[filter.TimePreference]TimeRule
}

var defaultCatalog = &Catalog{
	moods:    moodRules,
	contexts: contextRules,
	times:    timeRules,
}

// Default returns the process-wide catalog.
func Default() *Catalog {
	return defaultCatalog
}

// Mood looks up the rule for m.
func (c *Catalog) Mood(m filter.Mood) (MoodRule, bool) {
	rule, ok := c.moods[m]
	return rule, ok
}

// Context looks up the rule for ctx.
func (c *Catalog) Context(ctx filter.Context) (ContextRule, bool) {
	rule, ok := c.contexts[ctx]
	return rule, ok
}

// Time looks up the rule for t.
func (c *Catalog) Time(t filter.TimePreference) (TimeRule, bool) {
	rule, ok := c.times[t]
	return rule, ok
}

// Snapshot is the JSON view of the catalog served to clients.
type Snapshot struct {
	Moods    map[filter.Mood]MoodRule           `json:"moods"`
	Contexts map[filter.Context]ContextRule     `json:"contexts"`
	Times    map[filter.TimePreference]TimeRule `json:"timePreferences"`
	Genres   []string                           `json:"genres"`
}

// Snapshot copies the tables so callers cannot mutate the catalog.
func (c *Catalog) Snapshot() Snapshot {
	snap := Snapshot{
		Moods:    make(map[filter.Mood]MoodRule, len(c.moods)),
		Contexts: make(map[filter.Context]ContextRule, len(c.contexts)),
		Times:    make(map[filter.TimePreference]TimeRule, len(c.times)),
		Genres:   filter.Genres(),
	}
	for k, v := range c.moods {
		v.Genres = append([]string(nil), v.Genres...)
		v.ExcludeGenres = append([]string(nil), v.ExcludeGenres...)
		v.Keywords = append([]string(nil), v.Keywords...)
		snap.Moods[k] = v
	}
	for k, v := range c.contexts {
		v.Genres = append([]string(nil), v.Genres...)
		v.ExcludeGenres = append([]string(nil), v.ExcludeGenres...)
		snap.Contexts[k] = v
	}
	for k, v := range c.times {
		snap.Times[k] = v
	}
	return snap
}

var moodRules = map[filter.Mood]MoodRule{
	filter.Happy: {
		Description:      "Feeling good, want to maintain positive vibes",
		Genres:           []string{filter.GenreComedy, filter.GenreAnimation, filter.GenreFamily, filter.GenreRomance},
		ExcludeGenres:    []string{filter.GenreHorror, filter.GenreWar, filter.GenreCrime},
		PreferHighRating: true,
		Keywords:         []string{"feel-good", "heartwarming", "funny", "uplifting"},
	},
	filter.Excited: {
		Description:   "Want adrenaline and thrills",
		Genres:        []string{filter.GenreAction, filter.GenreAdventure, filter.GenreSciFi, filter.GenreThriller},
		ExcludeGenres: []string{filter.GenreDocumentary, filter.GenreDrama},
		Keywords:      []string{"action-packed", "thrilling", "explosive", "intense"},
	},
	filter.Romantic: {
		Description:      "In the mood for love and connection",
		Genres:           []string{filter.GenreRomance, filter.GenreDrama, filter.GenreComedy},
		ExcludeGenres:    []string{filter.GenreHorror, filter.GenreWar, filter.GenreCrime},
		PreferHighRating: true,
		Keywords:         []string{"love", "romantic", "relationship", "chemistry"},
	},
	filter.Adventurous: {
		Description:   "Want to explore and escape",
		Genres:        []string{filter.GenreAdventure, filter.GenreFantasy, filter.GenreSciFi, filter.GenreAction},
		ExcludeGenres: []string{filter.GenreDocumentary},
		Keywords:      []string{"epic", "journey", "quest", "exploration"},
	},
	filter.Inspired: {
		Description:      "Want motivation and inspiration",
		Genres:           []string{filter.GenreDrama, filter.GenreDocumentary, filter.GenreHistory},
		ExcludeGenres:    []string{filter.GenreHorror, filter.GenreComedy},
		PreferHighRating: true,
		Keywords:         []string{"inspiring", "true story", "triumph", "achievement"},
	},
	filter.Sad: {
		Description:      "Feeling down, might want catharsis or comfort",
		Genres:           []string{filter.GenreComedy, filter.GenreAnimation, filter.GenreFamily, filter.GenreRomance},
		ExcludeGenres:    []string{filter.GenreHorror, filter.GenreWar, filter.GenreThriller},
		PreferHighRating: true,
		Keywords:         []string{"heartwarming", "comfort", "hopeful", "uplifting"},
	},
	filter.Stressed: {
		Description:          "Need to unwind and relax",
		Genres:               []string{filter.GenreComedy, filter.GenreAnimation, filter.GenreFamily},
		ExcludeGenres:        []string{filter.GenreHorror, filter.GenreThriller, filter.GenreWar, filter.GenreCrime},
		PreferHighRating:     true,
		PreferShorterRuntime: true,
		Keywords:             []string{"light", "easy", "fun", "relaxing"},
	},
	filter.Anxious: {
		Description:      "Feeling anxious, need something calming",
		Genres:           []string{filter.GenreAnimation, filter.GenreFamily, filter.GenreDocumentary, filter.GenreComedy},
		ExcludeGenres:    []string{filter.GenreHorror, filter.GenreThriller, filter.GenreWar, filter.GenreCrime},
		PreferHighRating: true,
		Keywords:         []string{"gentle", "peaceful", "calming", "wholesome"},
	},
	filter.Bored: {
		Description:      "Need stimulation and engagement",
		Genres:           []string{filter.GenreAction, filter.GenreThriller, filter.GenreMystery, filter.GenreSciFi, filter.GenreAdventure},
		ExcludeGenres:    []string{},
		PreferHighRating: true,
		Keywords:         []string{"gripping", "engaging", "twist", "suspense"},
	},
	filter.Lonely: {
		Description:      "Seeking connection and warmth",
		Genres:           []string{filter.GenreRomance, filter.GenreComedy, filter.GenreDrama, filter.GenreFamily},
		ExcludeGenres:    []string{filter.GenreHorror},
		PreferHighRating: true,
		Keywords:         []string{"friendship", "connection", "heartwarming", "community"},
	},
	filter.Scared: {
		Description:      "Want to be frightened (in a fun way)",
		Genres:           []string{filter.GenreHorror, filter.GenreThriller, filter.GenreMystery},
		ExcludeGenres:    []string{filter.GenreComedy, filter.GenreAnimation, filter.GenreFamily},
		PreferHighRating: true,
		Keywords:         []string{"scary", "terrifying", "suspense", "horror"},
	},
	filter.Thoughtful: {
		Description:      "Want something intellectually stimulating",
		Genres:           []string{filter.GenreDrama, filter.GenreSciFi, filter.GenreDocumentary, filter.GenreMystery},
		ExcludeGenres:    []string{filter.GenreAction, filter.GenreAnimation},
		PreferHighRating: true,
		Keywords:         []string{"thought-provoking", "philosophical", "complex", "deep"},
	},
	filter.Nostalgic: {
		Description:       "Want something that brings back memories",
		Genres:            []string{filter.GenreFamily, filter.GenreAnimation, filter.GenreComedy, filter.GenreAdventure},
		ExcludeGenres:     []string{filter.GenreHorror},
		PreferHighRating:  true,
		PreferOlderMovies: true,
		Keywords:          []string{"classic", "nostalgic", "childhood", "timeless"},
	},
	filter.Curious: {
		Description:      "Want to learn something new",
		Genres:           []string{filter.GenreDocumentary, filter.GenreHistory, filter.GenreDrama},
		ExcludeGenres:    []string{filter.GenreHorror, filter.GenreAction},
		PreferHighRating: true,
		Keywords:         []string{"educational", "fascinating", "true", "discovery"},
	},
	filter.Escapist: {
		Description:   "Want to escape reality completely",
		Genres:        []string{filter.GenreFantasy, filter.GenreSciFi, filter.GenreAnimation, filter.GenreAdventure},
		ExcludeGenres: []string{filter.GenreDocumentary, filter.GenreDrama},
		Keywords:      []string{"magical", "otherworldly", "fantasy", "imagination"},
	},
}

var contextRules = map[filter.Context]ContextRule{
	filter.Alone: {
		Description: "Watching solo",
	},
	filter.Date: {
		Description:      "Date night",
		Genres:           []string{filter.GenreRomance, filter.GenreComedy, filter.GenreDrama, filter.GenreThriller},
		ExcludeGenres:    []string{filter.GenreHorror, filter.GenreWar, filter.GenreDocumentary, filter.GenreAnimation},
		PreferHighRating: true,
	},
	filter.Friends: {
		Description:   "Watching with friends",
		Genres:        []string{filter.GenreComedy, filter.GenreAction, filter.GenreHorror, filter.GenreThriller},
		ExcludeGenres: []string{filter.GenreRomance, filter.GenreDocumentary},
	},
	filter.Family: {
		Description:      "Family movie night",
		Genres:           []string{filter.GenreAnimation, filter.GenreFamily, filter.GenreAdventure, filter.GenreComedy},
		ExcludeGenres:    []string{filter.GenreHorror, filter.GenreCrime, filter.GenreThriller, filter.GenreWar},
		PreferHighRating: true,
		FamilyFriendly:   true,
	},
	filter.Kids: {
		Description:    "Watching with children",
		Genres:         []string{filter.GenreAnimation, filter.GenreFamily, filter.GenreAdventure},
		ExcludeGenres:  []string{filter.GenreHorror, filter.GenreCrime, filter.GenreThriller, filter.GenreWar, filter.GenreDrama},
		FamilyFriendly: true,
	},
}

var timeRules = map[filter.TimePreference]TimeRule{
	filter.Short:  {Description: "Under 1h 40m", MaxRuntime: 100},
	filter.Medium: {Description: "Under 2h 10m", MaxRuntime: 130},
	filter.Long:   {Description: "Any length", MaxRuntime: 999},
	filter.Epic:   {Description: "Epic length (2.5h+)", MinRuntime: 150},
}
