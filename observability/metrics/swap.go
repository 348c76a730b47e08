package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type swapMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	events     *prometheus.CounterVec
}

var (
	swapOnce     sync.Once
	swapRegistry *swapMetrics
)

func registry() *swapMetrics {
	swapOnce.Do(func() {
		swapRegistry = &swapMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stealthswap",
				Name:      "operations_total",
				Help:      "Count of protocol operations by name and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stealthswap",
				Name:      "operation_duration_seconds",
				Help:      "Wall time spent executing protocol operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stealthswap",
				Name:      "events_total",
				Help:      "Count of committed lifecycle events by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			swapRegistry.operations,
			swapRegistry.latency,
			swapRegistry.events,
		)
	})
	return swapRegistry
}

// RecordOperation tracks one protocol operation outcome and its duration.
func RecordOperation(op, outcome string, elapsed time.Duration) {
	op = normalize(op)
	outcome = normalize(outcome)
	m := registry()
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordEvent tracks one committed lifecycle event.
func RecordEvent(eventType string) {
	registry().events.WithLabelValues(normalize(eventType)).Inc()
}

func normalize(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unknown"
	}
	return label
}
