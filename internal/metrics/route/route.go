// Package route provides per-route Prometheus metrics for the API Gateway,
// complementing internal/observability's method/status-keyed metrics with a
// route-name-keyed view so dashboards can break down traffic per configured
// route rather than only per HTTP method and status.
package route

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RouteMetrics holds Prometheus metrics keyed by route name.
type RouteMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestSize     *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
}

var (
	routeMetricsInstance *RouteMetrics
	routeMetricsOnce     sync.Once
)

// GetRouteMetrics returns the singleton route metrics instance.
func GetRouteMetrics() *RouteMetrics {
	routeMetricsOnce.Do(func() {
		routeMetricsInstance = newRouteMetrics()
	})
	return routeMetricsInstance
}

// MustRegister registers all route metric collectors with the given
// Prometheus registry, bridging promauto's default registry to the
// gateway's custom one.
func (m *RouteMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.requestSize,
		m.responseSize,
	)
}

// RecordRequest records one completed request against the given route.
func (m *RouteMetrics) RecordRequest(
	route, method string,
	status int,
	duration time.Duration,
	requestSize, responseSize int64,
) {
	statusStr := strconv.Itoa(status)

	m.requestsTotal.WithLabelValues(route, method, statusStr).Inc()
	m.requestDuration.WithLabelValues(route, method, statusStr).Observe(duration.Seconds())
	m.requestSize.WithLabelValues(route, method).Observe(float64(requestSize))
	m.responseSize.WithLabelValues(route, method).Observe(float64(responseSize))
}

func newRouteMetrics() *RouteMetrics {
	return &RouteMetrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "route",
				Name:      "requests_total",
				Help:      "Total number of requests per route",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "route",
				Name:      "request_duration_seconds",
				Help:      "Duration of requests per route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		requestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "route",
				Name:      "request_size_bytes",
				Help:      "Size of requests per route",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"route", "method"},
		),
		responseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway",
				Subsystem: "route",
				Name:      "response_size_bytes",
				Help:      "Size of responses per route",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"route", "method"},
		),
	}
}
