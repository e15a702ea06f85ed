package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
	"github.com/zhouzirui/moodreel/backend/internal/model/rules"
)

func TestSynthesizeStressedAdoptsMoodRule(t *testing.T) {
	got := Synthesize(filter.Raw{Mood: filter.Stressed, Genres: []string{}}, rules.Default())

	assert.Equal(t, []string{"Comedy", "Animation", "Family"}, got.Genres)
	assert.Equal(t, []string{"Horror", "Thriller", "War", "Crime"}, got.ExcludeGenres)
	require.NotNil(t, got.MinRating)
	assert.Equal(t, 7.0, *got.MinRating)
	require.NotNil(t, got.MaxRuntime)
	assert.Equal(t, 110, *got.MaxRuntime)
	assert.Equal(t, []string{"light", "easy", "fun", "relaxing"}, got.MoodKeywords)
	assert.False(t, got.FamilyFriendly)
}

func TestSynthesizeScaredWithFriendsNarrowsGenres(t *testing.T) {
	got := Synthesize(filter.Raw{Mood: filter.Scared, Context: filter.Friends}, rules.Default())

	assert.Equal(t, []string{"Horror", "Thriller"}, got.Genres)
	assert.Subset(t, got.ExcludeGenres, []string{"Comedy", "Animation", "Family"})
	// friends is not family-safe, so its exclusions are not merged
	assert.NotContains(t, got.ExcludeGenres, "Romance")
	assert.False(t, got.FamilyFriendly)
}

func TestSynthesizeKeepsExplicitValues(t *testing.T) {
	raw := filter.Raw{
		Mood:       filter.Stressed,
		MinRating:  filter.Float64(8.5),
		MaxRuntime: filter.Int(95),
	}

	got := Synthesize(raw, rules.Default())

	assert.Equal(t, 8.5, *got.MinRating)
	assert.Equal(t, 95, *got.MaxRuntime)
	// the input is not aliased
	*got.MaxRuntime = 1
	assert.Equal(t, 95, *raw.MaxRuntime)
}

func TestSynthesizeTimePreferenceOverrides(t *testing.T) {
	tests := []struct {
		name    string
		raw     filter.Raw
		wantMax *int
		wantMin *int
	}{
		{
			name:    "short beats explicit max",
			raw:     filter.Raw{Mood: filter.Happy, MaxRuntime: filter.Int(180), TimePreference: filter.Short},
			wantMax: filter.Int(100),
		},
		{
			name:    "short beats mood default",
			raw:     filter.Raw{Mood: filter.Stressed, TimePreference: filter.Short},
			wantMax: filter.Int(100),
		},
		{
			name:    "medium",
			raw:     filter.Raw{Mood: filter.Bored, TimePreference: filter.Medium},
			wantMax: filter.Int(130),
		},
		{
			name:    "epic sets a floor only",
			raw:     filter.Raw{Mood: filter.Adventurous, TimePreference: filter.Epic},
			wantMin: filter.Int(150),
		},
		{
			name: "unknown preference is ignored",
			raw:  filter.Raw{Mood: filter.Adventurous, TimePreference: "weekend"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Synthesize(tt.raw, rules.Default())
			assert.Equal(t, tt.wantMax, got.MaxRuntime)
			assert.Equal(t, tt.wantMin, got.MinRuntime)
		})
	}
}

func TestSynthesizeGenreUnionProperties(t *testing.T) {
	inputs := [][]string{
		nil,
		{"Horror"},
		{"Drama", "Music"},
		{"Western", "War", "Music"},
		{"Western", "War", "Music", "History", "Crime"},
	}

	for _, mood := range filter.Moods() {
		for _, genres := range inputs {
			raw := filter.Raw{Mood: mood, Genres: genres}
			got := Synthesize(raw, rules.Default())

			assert.LessOrEqual(t, len(got.Genres), MaxGenres, "mood %s", mood)
			assertNoDuplicates(t, got.Genres)

			kept := genres
			if len(kept) > MaxGenres {
				kept = kept[:MaxGenres]
			}
			for _, g := range kept {
				assert.Contains(t, got.Genres, g, "mood %s input %v", mood, genres)
			}
		}
	}
}

func TestSynthesizeExclusionIsMonotonic(t *testing.T) {
	excludes := [][]string{nil, {"Musical"}, {"Documentary", "Western"}}

	for _, mood := range filter.Moods() {
		for _, ctx := range append(filter.Contexts(), "") {
			for _, ex := range excludes {
				raw := filter.Raw{Mood: mood, Context: ctx, ExcludeGenres: ex}
				got := Synthesize(raw, rules.Default())
				assert.Subset(t, got.ExcludeGenres, ex, "mood %s context %s", mood, ctx)
			}
		}
	}
}

func TestSynthesizeContextNarrowingNeverEmpties(t *testing.T) {
	// curious genres do not overlap the kids genre list
	got := Synthesize(filter.Raw{Mood: filter.Curious, Context: filter.Kids}, rules.Default())

	assert.Equal(t, []string{"Documentary", "History", "Drama"}, got.Genres)
	assert.True(t, got.FamilyFriendly)
	assert.Contains(t, got.ExcludeGenres, "Drama")
}

func TestSynthesizeFamilyContext(t *testing.T) {
	got := Synthesize(filter.Raw{Mood: filter.Happy, Context: filter.Family}, rules.Default())

	assert.True(t, got.FamilyFriendly)
	assert.Equal(t, []string{"Comedy", "Animation", "Family"}, got.Genres)
	assert.ElementsMatch(t, []string{"Horror", "War", "Crime", "Thriller"}, got.ExcludeGenres)
}

func TestSynthesizeCapsMoodGenres(t *testing.T) {
	got := Synthesize(filter.Raw{Mood: filter.Bored}, rules.Default())

	assert.Equal(t, []string{"Action", "Thriller", "Mystery", "Sci-Fi"}, got.Genres)
}

func TestSynthesizeUnknownMoodIsNoop(t *testing.T) {
	raw := filter.Raw{Mood: "grumpy", Genres: []string{"Drama"}}

	got := Synthesize(raw, rules.Default())

	assert.Equal(t, []string{"Drama"}, got.Genres)
	assert.Empty(t, got.ExcludeGenres)
	assert.Nil(t, got.MinRating)
	assert.Empty(t, got.MoodKeywords)
}

func TestQueryGenresDropsExcluded(t *testing.T) {
	plan := filter.Enhanced{Raw: filter.Raw{
		Genres:        []string{"Comedy", "Horror", "Drama"},
		ExcludeGenres: []string{"Horror"},
	}}

	assert.Equal(t, []string{"Comedy", "Drama"}, QueryGenres(plan))

	plan.ExcludeGenres = []string{"Comedy", "Horror", "Drama"}
	assert.Empty(t, QueryGenres(plan))
}

func assertNoDuplicates(t *testing.T, genres []string) {
	t.Helper()
	seen := make(map[string]bool, len(genres))
	for _, g := range genres {
		if seen[g] {
			t.Fatalf("duplicate genre %q in %v", g, genres)
		}
		seen[g] = true
	}
}
