// Package telemetry provides observability primitives for the hubfolio proxy.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the proxy.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	UpstreamDuration prometheus.Histogram
	UpstreamErrors   *prometheus.CounterVec
	CacheEvents      *prometheus.CounterVec
	CacheEntries     prometheus.Gauge
	RateLimitRejects prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hubfolio",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "hubfolio",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hubfolio",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		UpstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:                       "hubfolio",
			Name:                            "upstream_duration_seconds",
			Help:                            "Upstream API call duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}),

		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hubfolio",
			Name:      "upstream_errors_total",
			Help:      "Total upstream transport and HTTP errors.",
		}, []string{"status"}),

		CacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hubfolio",
			Name:      "cache_events_total",
			Help:      "Read-path cache outcomes (hit, revalidated, stale, miss).",
		}, []string{"outcome"}),

		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hubfolio",
			Name:      "cache_entries",
			Help:      "Current number of cached responses.",
		}),

		RateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hubfolio",
			Name:      "ratelimit_rejects_total",
			Help:      "Total local mutation rate limit rejections.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.UpstreamDuration,
		m.UpstreamErrors,
		m.CacheEvents,
		m.CacheEntries,
		m.RateLimitRejects,
	)

	return m
}
