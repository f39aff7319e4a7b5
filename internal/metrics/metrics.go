// Package metrics defines Prometheus metrics for the knowledge-base service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SearchesTotal counts search calls by mode and outcome.
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbase",
			Name:      "searches_total",
			Help:      "Total number of search calls",
		},
		[]string{"mode", "status"},
	)

	// SearchDuration measures end-to-end search latency by mode.
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbase",
			Name:      "search_duration_seconds",
			Help:      "Search call duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	// SearchCacheTotal counts result-cache lookups.
	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbase",
			Name:      "search_cache_total",
			Help:      "Result cache hits, misses and errors",
		},
		[]string{"result"}, // "hit" / "miss" / "error"
	)

	// EmbeddingRequestsTotal counts embedding provider calls.
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbase",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	// EmbeddingRequestDuration measures embedding provider latency.
	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbase",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)
)

func init() {
	prometheus.MustRegister(
		SearchesTotal,
		SearchDuration,
		SearchCacheTotal,
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
	)
}

// EmbeddingTimer records one embedding request on Done.
type EmbeddingTimer struct {
	provider string
	model    string
	start    time.Time
}

// ObserveEmbedding starts timing an embedding request.
func ObserveEmbedding(provider, model string) *EmbeddingTimer {
	return &EmbeddingTimer{provider: provider, model: model, start: time.Now()}
}

// Done records the request outcome and duration.
func (t *EmbeddingTimer) Done(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EmbeddingRequestsTotal.WithLabelValues(t.provider, t.model, status).Inc()
	EmbeddingRequestDuration.WithLabelValues(t.provider, t.model).Observe(time.Since(t.start).Seconds())
}
