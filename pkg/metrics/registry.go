// Package metrics wires the gateway's Prometheus instrumentation: a
// package-level registry enabled by the service configuration's
// Metrics.Enabled flag, with counters and histograms registered against
// it via promauto.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  atomic.Bool
)

// InitRegistry creates the process-wide Prometheus registry that every
// metrics constructor in this package registers against. Call once at
// startup, before any NewXMetrics call, when Metrics.Enabled is true.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	enabled.Store(true)
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool { return enabled.Load() }

// GetRegistry returns the process-wide registry, creating it
// disabled-but-present if InitRegistry was never called (so metrics
// constructors always have a valid, if unused, registry to register
// against).
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return registry
}

// Handler serves the registry's current samples in the Prometheus
// exposition format, for mounting at e.g. "/metrics".
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}
