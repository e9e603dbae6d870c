package watermark

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeReads tracks successful watermark reads by backend
	storeReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_watermark_store_reads_total",
			Help: "Total number of watermark reads",
		},
		[]string{"backend"}, // "memory", "redis", "sqlite"
	)

	// storeMisses tracks reads of keys that were never written
	storeMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_watermark_store_misses_total",
			Help: "Total number of watermark reads without a stored value",
		},
		[]string{"backend"},
	)

	// storeWrites tracks watermark writes
	storeWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_watermark_store_writes_total",
			Help: "Total number of watermark writes",
		},
		[]string{"backend"},
	)

	// storeErrors tracks store operation errors
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_watermark_store_errors_total",
			Help: "Total number of watermark store errors",
		},
		[]string{"backend", "operation"}, // "get", "set", "delete"
	)
)
