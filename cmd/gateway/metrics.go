package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/vyrodovalexey/avapigw/internal/health"
	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// createMetricsServer creates the metrics/health/admin HTTP server. The
// admin endpoints (schema registration/validation/lookup, whoami) ride
// the same listener since they are control-plane surfaces, never exposed
// on the proxied data path.
func createMetricsServer(
	port int,
	path string,
	metrics *observability.Metrics,
	healthChecker *health.Checker,
	admin *http.ServeMux,
	logger observability.Logger,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	mux.HandleFunc("/health", healthChecker.HealthHandler())
	mux.HandleFunc("/ready", healthChecker.ReadinessHandler())
	mux.HandleFunc("/live", healthChecker.LivenessHandler())
	if admin != nil {
		mux.Handle("/admin/", admin)
	}

	addr := fmt.Sprintf(":%d", port)
	logger.Info("starting metrics server",
		observability.String("address", addr),
		observability.String("metrics_path", path),
	)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// runMetricsServer runs the metrics HTTP server.
func runMetricsServer(server *http.Server, logger observability.Logger) {
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", observability.Error(err))
	}
}

// startMetricsServerIfEnabled starts the metrics server if enabled in the
// ambient config.
func startMetricsServerIfEnabled(app *application, logger observability.Logger) {
	if !app.config.MetricsEnabled {
		return
	}

	metricsPath := app.config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	metricsPort := app.config.MetricsPort
	if metricsPort == 0 {
		metricsPort = 9090
	}

	admin := adminMux(app.schemaMapper, app.credValidator, logger)

	app.metricsServer = createMetricsServer(metricsPort, metricsPath, app.metrics, app.healthChecker, admin, logger)
	go runMetricsServer(app.metricsServer, logger)
}
