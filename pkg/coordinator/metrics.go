package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture skip reasons.
const (
	skipStatus    = "status"
	skipCancelled = "cancelled"
	skipDuplicate = "duplicate"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "respcache_requests_total",
		Help: "Total requests seen by the response cache by outcome",
	}, []string{"outcome"})

	captureSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "respcache_capture_skips_total",
		Help: "Total completed responses that were not stored, by reason",
	}, []string{"reason"})

	sharedLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "respcache_shared_lookup_duration_seconds",
		Help:    "Shared cache lookup duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	})
)
