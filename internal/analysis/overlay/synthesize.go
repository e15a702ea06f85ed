// Package overlay merges a model-proposed filter with the curated rule
// catalog to produce the query plan used for retrieval and ranking.
package overlay

import (
	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
	"github.com/zhouzirui/moodreel/backend/internal/model/rules"
)

const (
	// MaxGenres caps the genre list of a query plan.
	MaxGenres = 4
	// HighRatingFloor is applied when the mood prefers well-rated titles.
	HighRatingFloor = 7.0
	// ShortRuntimeCeiling is applied when the mood prefers shorter titles.
	ShortRuntimeCeiling = 110
)

// Synthesize applies the mood, context and time rules of cat to raw. It never
// fails; keys missing from the catalog leave the filter untouched.
func Synthesize(raw filter.Raw, cat *rules.Catalog) filter.Enhanced {
	if cat == nil {
		cat = rules.Default()
	}
	out := filter.Enhanced{Raw: raw.Clone()}

	if mood, ok := cat.Mood(raw.Mood); ok {
		// 1. genres
		if len(out.Genres) == 0 {
			out.Genres = append([]string(nil), mood.Genres...)
		} else {
			out.Genres = union(out.Genres, mood.Genres)
		}
		out.Genres = truncate(out.Genres, MaxGenres)

		// 2. exclusions
		out.ExcludeGenres = union(out.ExcludeGenres, mood.ExcludeGenres)

		// 3. rating
		if mood.PreferHighRating && out.MinRating == nil {
			out.MinRating = filter.Float64(HighRatingFloor)
		}

		// 4. runtime
		if mood.PreferShorterRuntime && out.MaxRuntime == nil {
			out.MaxRuntime = filter.Int(ShortRuntimeCeiling)
		}

		// 5. keywords are only used for scoring
		out.MoodKeywords = append([]string(nil), mood.Keywords...)
	} else {
		out.Genres = truncate(filter.CanonicalGenres(out.Genres), MaxGenres)
	}

	if ctxRule, ok := cat.Context(raw.Context); ok {
		if ctxRule.FamilyFriendly {
			out.FamilyFriendly = true
			out.ExcludeGenres = union(out.ExcludeGenres, ctxRule.ExcludeGenres)
		}
		if len(ctxRule.Genres) > 0 {
			if narrowed := intersect(out.Genres, ctxRule.Genres); len(narrowed) > 0 {
				out.Genres = narrowed
			}
		}
	}

	// 时长偏好显式给出时覆盖前面的推导值。
	if timeRule, ok := cat.Time(raw.TimePreference); ok {
		if timeRule.MaxRuntime > 0 {
			out.MaxRuntime = filter.Int(timeRule.MaxRuntime)
		}
		if timeRule.MinRuntime > 0 {
			out.MinRuntime = filter.Int(timeRule.MinRuntime)
		}
	}

	return out
}

// QueryGenres returns the plan genres minus every excluded genre, the set
// sent to the retriever.
func QueryGenres(f filter.Enhanced) []string {
	if len(f.Genres) == 0 {
		return nil
	}
	excluded := toSet(f.ExcludeGenres)
	out := make([]string, 0, len(f.Genres))
	for _, g := range f.Genres {
		if _, skip := excluded[g]; !skip {
			out = append(out, g)
		}
	}
	return out
}

func union(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, g := range list {
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}

// intersect keeps the order of a.
func intersect(a, b []string) []string {
	allowed := toSet(b)
	var out []string
	for _, g := range a {
		if _, ok := allowed[g]; ok {
			out = append(out, g)
		}
	}
	return out
}

func truncate(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func toSet(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, g := range in {
		set[g] = struct{}{}
	}
	return set
}
