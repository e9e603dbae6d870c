package poll

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_polls_total",
			Help: "Total poll passes by poller, mode and outcome",
		},
		[]string{"poller", "mode", "outcome"}, // outcome: "emitted", "empty", "error"
	)

	itemsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_poll_items_emitted_total",
			Help: "Total items emitted by poller",
		},
		[]string{"poller"},
	)

	itemsFilteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_poll_items_filtered_total",
			Help: "Total fetched items dropped as already seen",
		},
		[]string{"poller"},
	)

	pollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connector_poll_duration_seconds",
			Help:    "Duration of poll passes",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"poller", "mode"},
	)

	watermarkTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connector_watermark_timestamp_seconds",
			Help: "Current watermark per poller as Unix seconds",
		},
		[]string{"poller"},
	)

	skippedRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_poll_skipped_total",
			Help: "Total passes skipped because the previous pass was still running",
		},
		[]string{"poller"},
	)
)
