// Package metrics exposes the Prometheus registry shared by the poller.
// Metrics are defined with promauto in their respective packages (client,
// pagination, poll, watermark, emit, ratelimit) so that no package depends
// on this one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all package metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the registered metrics for exposition.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text or
// OpenMetrics format.
func Handler() http.Handler {
	return HandlerFor(Gatherer)
}

// HandlerFor serves the metrics of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Catalogue lists the metric families registered by the poller's packages.
var Catalogue = []string{
	// pkg/client
	"connector_http_requests_total",
	"connector_http_request_duration_seconds",
	"connector_http_errors_total",
	"connector_http_retries_total",
	"connector_http_retry_backoff_seconds",
	"connector_http_retry_exhausted_total",

	// pkg/ratelimit
	"connector_ratelimit_remaining",
	"connector_ratelimit_waits_total",
	"connector_ratelimit_throttles_total",
	"connector_ratelimit_rejections_total",

	// pkg/pagination
	"connector_pages_fetched_total",
	"connector_fetch_failures_total",
	"connector_fetch_truncations_total",
	"connector_fetch_duration_seconds",

	// pkg/poll
	"connector_polls_total",
	"connector_poll_items_emitted_total",
	"connector_poll_items_filtered_total",
	"connector_poll_duration_seconds",
	"connector_watermark_timestamp_seconds",
	"connector_poll_skipped_total",

	// pkg/watermark
	"connector_watermark_store_reads_total",
	"connector_watermark_store_misses_total",
	"connector_watermark_store_writes_total",
	"connector_watermark_store_errors_total",

	// pkg/emit
	"connector_events_emitted_total",
	"connector_events_duplicates_dropped_total",
}

// Example Prometheus Queries:
//
//	# Failed poll passes per connector
//	sum by (poller) (rate(connector_polls_total{outcome="error"}[15m]))
//
//	# Watermark lag
//	time() - connector_watermark_timestamp_seconds
//
//	# Events emitted per minute
//	sum(rate(connector_events_emitted_total[1m])) * 60
//
//	# P95 request latency per API
//	histogram_quantile(0.95, sum by (api, le) (rate(connector_http_request_duration_seconds_bucket[5m])))
