package eventbus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for event-bus operations, labeled by
// backend ("classic-broker", "managed-bus") and event type.
type Metrics struct {
	publishesTotal   *prometheus.CounterVec
	publishFailures  *prometheus.CounterVec
	deadLettersTotal *prometheus.CounterVec
	handlerErrors    *prometheus.CounterVec
	publishDuration  *prometheus.HistogramVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton event-bus metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

// MustRegister registers every collector with registry, bridging promauto's
// default registration onto the gateway's custom /metrics registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.publishesTotal,
		m.publishFailures,
		m.deadLettersTotal,
		m.handlerErrors,
		m.publishDuration,
	)
}

func newMetrics() *Metrics {
	return &Metrics{
		publishesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "eventbus",
				Name:      "publishes_total",
				Help:      "Total number of events published, confirmed by the backend",
			},
			[]string{"backend", "event_type"},
		),
		publishFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "eventbus",
				Name:      "publish_failures_total",
				Help:      "Total number of publish attempts that failed or timed out",
			},
			[]string{"backend", "event_type"},
		),
		deadLettersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "eventbus",
				Name:      "dead_letters_total",
				Help:      "Total number of messages routed to a dead-letter destination",
			},
			[]string{"backend", "event_type"},
		),
		handlerErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "eventbus",
				Name:      "handler_errors_total",
				Help:      "Total number of handler invocations that returned an error",
			},
			[]string{"backend", "event_type"},
		),
		publishDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "eventbus",
				Name:      "publish_duration_seconds",
				Help:      "Duration of a confirmed publish call",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"backend"},
		),
	}
}
