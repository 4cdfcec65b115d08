package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookup hits by layer (local, shared)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks lookup misses by layer
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"layer"},
	)

	// CacheStores tracks entries written by layer
	CacheStores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_stores_total",
			Help: "Total number of responses written to the cache",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks shared store failures by operation
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_errors_total",
			Help: "Total number of shared cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "decode", "encode", "circuit_open"
	)

	// LocalEntries tracks the number of entries held by the memory store
	LocalEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "respcache_local_entries",
			Help: "Current number of entries in the local response cache",
		},
	)

	// BreakerState tracks the shared store circuit breaker state
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "respcache_breaker_state",
			Help: "Shared cache circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)
