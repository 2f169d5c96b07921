package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// runGateway starts the gateway's listeners and blocks until a shutdown
// signal arrives.
func runGateway(app *application, logger observability.Logger) {
	ctx := context.Background()

	if err := app.bus.Start(ctx); err != nil {
		fatalWithSync(logger, "failed to start event bus", observability.Error(err))
		return // unreachable in production; allows tests to continue
	}

	go func() {
		logger.Info("starting gateway", observability.Int("port", app.config.HTTPPort))
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("gateway server error", observability.Error(err))
		}
	}()

	startMetricsServerIfEnabled(app, logger)
	app.watcher = startConfigWatcher(ctx, app, logger)

	waitForShutdown(app, logger)
}

// waitForShutdown waits for a shutdown signal and performs a graceful
// shutdown of every component in dependency order: listeners first, then
// the store/event bus/vault client they depend on.
func waitForShutdown(app *application, logger observability.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()

	if app.watcher != nil {
		_ = app.watcher.Stop()
	}

	if app.metricsServer != nil {
		logger.Info("stopping metrics server")
		if err := app.metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop gateway server gracefully", observability.Error(err))
	}

	if err := app.bus.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop event bus", observability.Error(err))
	}

	if app.kvStore != nil {
		if err := app.kvStore.Close(); err != nil {
			logger.Error("failed to close store", observability.Error(err))
		}
	}

	if app.vaultClient != nil {
		logger.Info("closing vault client")
		if err := app.vaultClient.Close(); err != nil {
			logger.Error("failed to close vault client", observability.Error(err))
		}
	}

	if app.tracer != nil {
		if err := app.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown tracer", observability.Error(err))
		}
	}

	logger.Info("gateway stopped")
}
