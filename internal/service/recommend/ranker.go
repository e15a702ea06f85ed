package recommend

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/moodreel/backend/internal/model/filter"
	"github.com/zhouzirui/moodreel/backend/internal/model/movie"
)

const (
	// TopN is the size of a recommendation list.
	TopN = 10
	// MinResults triggers the broadened fallback query when not reached.
	MinResults = 5
	// TieBand is the score gap below which adjacent order is randomized.
	TieBand = 5.0

	oldMovieYear     = 2000
	popularThreshold = 100
	hitThreshold     = 500
)

// Ranker scores and orders candidates. Its random source only affects
// candidates whose scores are within TieBand of each other.
type Ranker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRanker returns a ranker seeded with seed, or with the clock when seed is 0.
func NewRanker(seed int64) *Ranker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Ranker{rng: rand.New(rand.NewSource(seed))}
}

// Rank refines pool against plan, scores the survivors and returns at most
// TopN of them, best first.
func (r *Ranker) Rank(plan filter.Enhanced, pool []movie.Movie) []movie.Scored {
	survivors := Refine(plan, pool)

	scored := make([]movie.Scored, len(survivors))
	for i, m := range survivors {
		scored[i] = movie.Scored{Movie: m, Score: Score(plan, m)}
	}

	r.order(scored)
	if len(scored) > TopN {
		scored = scored[:TopN]
	}
	return scored
}

// order sorts by score plus a jitter in [0, TieBand). A pair at least TieBand
// apart can never swap; closer pairs land in either order.
func (r *Ranker) order(scored []movie.Scored) {
	keys := make([]float64, len(scored))
	r.mu.Lock()
	for i := range scored {
		keys[i] = scored[i].Score + r.rng.Float64()*TieBand
	}
	r.mu.Unlock()

	idx := make([]int, len(scored))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]] > keys[idx[b]]
	})

	ordered := make([]movie.Scored, len(scored))
	for i, j := range idx {
		ordered[i] = scored[j]
	}
	copy(scored, ordered)
}

// Refine applies the filter dimensions the catalog cannot execute.
func Refine(plan filter.Enhanced, pool []movie.Movie) []movie.Movie {
	requireAnimation := containsFold(plan.Genres, filter.GenreAnimation)
	excluded := plan.ExcludeGenres

	out := make([]movie.Movie, 0, len(pool))
	for _, m := range pool {
		// the catalog matches any genre, animation must actually be present
		if requireAnimation && !m.HasGenre(filter.GenreAnimation) {
			continue
		}
		if hasAnyGenre(m, excluded) {
			continue
		}
		if len(plan.YearRange) == 2 {
			if m.Year == 0 || m.Year < plan.YearRange[0] || m.Year > plan.YearRange[1] {
				continue
			}
		}
		if plan.FamilyFriendly && m.Adult {
			continue
		}
		if plan.MinRating != nil && m.VoteAverage < *plan.MinRating {
			continue
		}
		// unknown runtimes are kept
		if m.Runtime > 0 {
			if plan.MaxRuntime != nil && m.Runtime > *plan.MaxRuntime {
				continue
			}
			if plan.MinRuntime != nil && m.Runtime < *plan.MinRuntime {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// Score rates how well m fits the plan's mood.
func Score(plan filter.Enhanced, m movie.Movie) float64 {
	score := 2 * m.VoteAverage

	for _, g := range m.Genres {
		if containsFold(plan.Genres, g) {
			score += 5
		}
	}

	if m.Popularity > popularThreshold {
		score += 5
	}
	if m.Popularity > hitThreshold {
		score += 5
	}

	if m.TrailerURL != "" {
		score += 3
	}

	if plan.Mood != filter.Nostalgic && m.Year > 0 && m.Year < oldMovieYear {
		score -= 5
	}

	if m.Overview != "" {
		overview := strings.ToLower(m.Overview)
		for _, kw := range plan.MoodKeywords {
			if kw != "" && strings.Contains(overview, strings.ToLower(kw)) {
				score += 3
			}
		}
	}

	return score
}

func hasAnyGenre(m movie.Movie, genres []string) bool {
	for _, g := range genres {
		if m.HasGenre(g) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
