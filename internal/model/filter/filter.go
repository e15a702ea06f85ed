package filter

import "strings"

// Mood is one of the emotional states the dialogue can settle on.
type Mood string

const (
	Happy       Mood = "happy"
	Excited     Mood = "excited"
	Romantic    Mood = "romantic"
	Adventurous Mood = "adventurous"
	Inspired    Mood = "inspired"
	Sad         Mood = "sad"
	Stressed    Mood = "stressed"
	Anxious     Mood = "anxious"
	Bored       Mood = "bored"
	Lonely      Mood = "lonely"
	Scared      Mood = "scared"
	Thoughtful  Mood = "thoughtful"
	Nostalgic   Mood = "nostalgic"
	Curious     Mood = "curious"
	Escapist    Mood = "escapist"
)

// Moods lists every mood in prompt order.
func Moods() []Mood {
	return []Mood{
		Happy, Excited, Romantic, Adventurous, Inspired,
		Sad, Stressed, Anxious, Bored, Lonely,
		Scared, Thoughtful, Nostalgic, Curious, Escapist,
	}
}

// Valid reports whether m is one of the enumerated moods.
func (m Mood) Valid() bool {
	for _, known := range Moods() {
		if m == known {
			return true
		}
	}
	return false
}

// Context is the social situation the movie will be watched in.
type Context string

const (
	Alone   Context = "alone"
	Date    Context = "date"
	Friends Context = "friends"
	Family  Context = "family"
	Kids    Context = "kids"
)

// Contexts lists every viewing context.
func Contexts() []Context {
	return []Context{Alone, Date, Friends, Family, Kids}
}

// Valid reports whether c is one of the enumerated contexts.
func (c Context) Valid() bool {
	for _, known := range Contexts() {
		if c == known {
			return true
		}
	}
	return false
}

// TimePreference expresses how much time the viewer has.
type TimePreference string

const (
	Short  TimePreference = "short"
	Medium TimePreference = "medium"
	Long   TimePreference = "long"
	Epic   TimePreference = "epic"
)

// TimePreferences lists every time preference.
func TimePreferences() []TimePreference {
	return []TimePreference{Short, Medium, Long, Epic}
}

// Valid reports whether t is one of the enumerated time preferences.
func (t TimePreference) Valid() bool {
	for _, known := range TimePreferences() {
		if t == known {
			return true
		}
	}
	return false
}

// Genre labels shared by the catalog, the rule tables and the prompt.
const (
	GenreAction      = "Action"
	GenreAdventure   = "Adventure"
	GenreAnimation   = "Animation"
	GenreComedy      = "Comedy"
	GenreCrime       = "Crime"
	GenreDocumentary = "Documentary"
	GenreDrama       = "Drama"
	GenreFamily      = "Family"
	GenreFantasy     = "Fantasy"
	GenreHistory     = "History"
	GenreHorror      = "Horror"
	GenreMusic       = "Music"
	GenreMystery     = "Mystery"
	GenreRomance     = "Romance"
	GenreSciFi       = "Sci-Fi"
	GenreThriller    = "Thriller"
	GenreWar         = "War"
	GenreWestern     = "Western"
	GenreTVMovie     = "TV Movie"
)

// Genres is the vocabulary offered to the dialogue model.
func Genres() []string {
	return []string{
		GenreAction, GenreAdventure, GenreAnimation, GenreComedy, GenreCrime,
		GenreDocumentary, GenreDrama, GenreFamily, GenreFantasy, GenreHistory,
		GenreHorror, GenreMusic, GenreMystery, GenreRomance, GenreSciFi,
		GenreThriller, GenreWar, GenreWestern,
	}
}

// Raw is the filter object proposed by the dialogue model.
type Raw struct {
	Mood           Mood           `json:"mood" validate:"required,mood"`
	Context        Context        `json:"context,omitempty" validate:"omitempty,viewing_context"`
	Genres         []string       `json:"genres,omitempty"`
	ExcludeGenres  []string       `json:"excludeGenres,omitempty"`
	MinRating      *float64       `json:"minRating,omitempty" validate:"omitempty,gte=0,lte=10"`
	MaxRuntime     *int           `json:"maxRuntime,omitempty" validate:"omitempty,gt=0"`
	MinRuntime     *int           `json:"minRuntime,omitempty" validate:"omitempty,gt=0"`
	TimePreference TimePreference `json:"timePreference,omitempty" validate:"omitempty,time_preference"`
	YearRange      []int          `json:"yearRange,omitempty" validate:"omitempty,year_range"`
}

// Enhanced is Raw after the rule overlay. It never drops a Raw field.
type Enhanced struct {
	Raw
	FamilyFriendly bool     `json:"familyFriendly,omitempty"`
	MoodKeywords   []string `json:"moodKeywords,omitempty"`
}

// Clone returns a deep copy so callers can extend slices without aliasing.
func (r Raw) Clone() Raw {
	out := r
	out.Genres = cloneStrings(r.Genres)
	out.ExcludeGenres = cloneStrings(r.ExcludeGenres)
	if r.YearRange != nil {
		out.YearRange = append([]int(nil), r.YearRange...)
	}
	if r.MinRating != nil {
		out.MinRating = Float64(*r.MinRating)
	}
	if r.MaxRuntime != nil {
		out.MaxRuntime = Int(*r.MaxRuntime)
	}
	if r.MinRuntime != nil {
		out.MinRuntime = Int(*r.MinRuntime)
	}
	return out
}

// Normalize canonicalises labels the model may have cased or aliased
// differently ("Stressed", "solo", "sci-fi") and removes duplicate genres.
func (r Raw) Normalize() Raw {
	out := r.Clone()
	out.Mood = Mood(strings.ToLower(strings.TrimSpace(string(r.Mood))))

	ctx := strings.ToLower(strings.TrimSpace(string(r.Context)))
	if ctx == "solo" {
		ctx = string(Alone)
	}
	out.Context = Context(ctx)

	out.TimePreference = TimePreference(strings.ToLower(strings.TrimSpace(string(r.TimePreference))))
	out.Genres = CanonicalGenres(r.Genres)
	out.ExcludeGenres = CanonicalGenres(r.ExcludeGenres)
	return out
}

// CanonicalGenres maps known labels to their catalog spelling and drops
// blanks and duplicates while preserving order. Unknown labels are kept.
func CanonicalGenres(genres []string) []string {
	if genres == nil {
		return nil
	}
	out := make([]string, 0, len(genres))
	seen := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if canonical, ok := genreIndex[strings.ToLower(g)]; ok {
			g = canonical
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

var genreIndex = func() map[string]string {
	idx := make(map[string]string)
	for _, g := range append(Genres(), GenreTVMovie) {
		idx[strings.ToLower(g)] = g
	}
	idx["science fiction"] = GenreSciFi
	idx["scifi"] = GenreSciFi
	return idx
}()

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
