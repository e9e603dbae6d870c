package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_pages_fetched_total",
			Help: "Total number of pages fetched by fetcher",
		},
		[]string{"fetcher"},
	)

	fetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_fetch_failures_total",
			Help: "Total number of aborted multi-page fetches by fetcher",
		},
		[]string{"fetcher"},
	)

	truncationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_fetch_truncations_total",
			Help: "Total number of fetches truncated to maxResults",
		},
		[]string{"fetcher"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connector_fetch_duration_seconds",
			Help:    "Duration of complete multi-page fetches",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"fetcher"},
	)
)
