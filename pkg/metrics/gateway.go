package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GatewayMetrics records per-request counts, bytes, and latency for the
// three transaction kinds the gateway dispatches, per spec.md §4.8.
// A nil *GatewayMetrics is safe to call methods on, so metrics collection
// costs nothing when disabled.
type GatewayMetrics struct {
	requests *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewGatewayMetrics constructs a GatewayMetrics registered against the
// process registry, or returns nil if metrics are disabled.
func NewGatewayMetrics() *GatewayMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()
	return &GatewayMetrics{
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "rawgate",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total chunk requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		bytes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "rawgate",
			Subsystem: "gateway",
			Name:      "bytes_total",
			Help:      "Total chunk bytes transferred by operation.",
		}, []string{"op"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rawgate",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Request latency by operation and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
	}
}

// Observe records one completed request: op is "put"/"get"/"delete",
// outcome is "ok", "network_error" or a status.Kind string, bytes is the stream length
// (0 for delete), and start is the request's arrival time.
func (m *GatewayMetrics) Observe(op, outcome string, bytes int64, start time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	if bytes > 0 {
		m.bytes.WithLabelValues(op).Add(float64(bytes))
	}
	m.duration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}
