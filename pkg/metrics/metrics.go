// Package metrics exposes the Prometheus metrics of the response cache.
// The collectors live in the packages that update them (cache, coordinator)
// and register themselves with the default registry through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all response cache metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		Registry,
		promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}),
	)
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - respcache_hits_total{layer="local|shared"} (Counter): Lookup hits per tier
//   - respcache_misses_total{layer="local|shared"} (Counter): Lookup misses per tier
//   - respcache_stores_total{layer="local|shared"} (Counter): Entries written per tier
//   - respcache_errors_total{operation} (Counter): Shared store failures (get, set, delete, decode, encode, timeout, circuit_open)
//   - respcache_local_entries (Gauge): Entries held by the memory store
//   - respcache_breaker_state{name} (Gauge): 0 closed, 1 half-open, 2 open
//
// Request Metrics (pkg/coordinator):
//   - respcache_requests_total{outcome} (Counter): passed_through, served_local, served_shared
//   - respcache_capture_skips_total{reason} (Counter): status, cancelled, duplicate
//   - respcache_shared_lookup_duration_seconds (Histogram): Shared lookup latency
//
// Example Prometheus Queries:
//
//   # Hit Rate
//   sum(rate(respcache_requests_total{outcome=~"served_.*"}[5m])) /
//   sum(rate(respcache_requests_total[5m]))
//
//   # Shared Store Health
//   max(respcache_breaker_state) > 0
//
//   # P95 Shared Lookup Latency
//   histogram_quantile(0.95, rate(respcache_shared_lookup_duration_seconds_bucket[5m]))
