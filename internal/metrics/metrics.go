// Package metrics exposes Prometheus instrumentation for the catalog server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts handled API requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hkids",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hkids",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// CleanupFailures counts best-effort image deletions that failed.
	// Failures are logged and never surfaced to API callers.
	CleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hkids",
			Name:      "image_cleanup_failures_total",
			Help:      "Total number of failed best-effort image deletions.",
		},
	)

	// CleanupDropped counts cleanup requests dropped due to a full queue.
	CleanupDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hkids",
			Name:      "image_cleanup_dropped_total",
			Help:      "Total number of cleanup requests dropped because the queue was full.",
		},
	)
)

// Handler returns the HTTP handler for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
