package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the request pipeline, labeled by
// route name and outcome.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
	circuitRejected *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton pipeline metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

func newMetrics() *Metrics {
	return &Metrics{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "avapigw_pipeline_requests_total",
			Help: "Total requests processed by the gateway pipeline, by route and outcome code.",
		}, []string{"route", "code"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "avapigw_pipeline_request_duration_seconds",
			Help:    "End-to-end pipeline processing duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "avapigw_pipeline_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by endpoint.",
		}, []string{"endpoint"}),
		circuitRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "avapigw_pipeline_circuit_rejected_total",
			Help: "Requests short-circuited by the dispatch breaker, by route.",
		}, []string{"route"}),
	}
}

// MustRegister registers every collector with registry, bridging promauto's
// default registration onto the gateway's custom /metrics registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.rateLimited,
		m.circuitRejected,
	)
}
