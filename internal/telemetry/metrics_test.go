package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	m.RequestsTotal.WithLabelValues("GET", "/api/*", "200").Inc()
	m.RequestDuration.WithLabelValues("GET", "/api/*").Observe(0.01)
	m.ActiveRequests.Inc()
	m.UpstreamDuration.Observe(0.2)
	m.UpstreamErrors.WithLabelValues("502").Inc()
	m.CacheEvents.WithLabelValues("hit").Inc()
	m.CacheEntries.Set(42)
	m.RateLimitRejects.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one metric family")
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering twice on the same registry should panic")
		}
	}()
	NewMetrics(reg)
}
