// Package metrics 定义服务暴露在 /metrics 上的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	// Dialogue
	DialogueTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodreel_dialogue_turns_total",
			Help: "Dialogue turns by outcome",
		},
		[]string{"outcome"}, // "ready", "not_ready", "malformed", "unavailable"
	)

	DialogueLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodreel_dialogue_latency_seconds",
			Help:    "Latency of calls to the dialogue model",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"provider"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moodreel_active_sessions",
			Help: "Sessions currently held in memory",
		},
	)

	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodreel_sessions_expired_total",
			Help: "Sessions evicted by the idle sweeper",
		},
	)

	// Recommendations
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodreel_recommendations_total",
			Help: "Recommendation requests by outcome",
		},
		[]string{"outcome"}, // "ok", "empty", "retrieval_unavailable"
	)

	RecommendationSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moodreel_recommendation_size",
			Help:    "Number of movies returned per recommendation",
			Buckets: []float64{0, 1, 3, 5, 8, 10},
		},
	)

	FallbackActivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moodreel_recommendation_fallback_total",
			Help: "Times the broadened single-genre query was used",
		},
	)

	RetrievalLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moodreel_retrieval_latency_seconds",
			Help:    "Latency of candidate retrieval",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moodreel_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodreel_circuit_breaker_requests_total",
			Help: "Requests passing through a circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	// Catalog ingestion
	IngestedMovies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodreel_ingested_movies_total",
			Help: "Movies processed by the catalog seeder",
		},
		[]string{"result"}, // "stored", "skipped"
	)
)

// ObserveDialogue records one dialogue model call.
func ObserveDialogue(provider string, started time.Time) {
	DialogueLatency.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}

// ObserveRecommendation records the size and outcome of one ranking pass.
func ObserveRecommendation(outcome string, size int) {
	Recommendations.WithLabelValues(outcome).Inc()
	RecommendationSize.Observe(float64(size))
}

// SetBreakerState records the position of the named circuit breaker.
func SetBreakerState(name string, state gobreaker.State) {
	CircuitBreakerState.WithLabelValues(name).Set(BreakerStateValue(state))
}

// BreakerStateValue maps a breaker state to the gauge encoding.
func BreakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
