package main

import (
	"net/http"

	"github.com/vyrodovalexey/avapigw/internal/config"
	"github.com/vyrodovalexey/avapigw/internal/credential"
	"github.com/vyrodovalexey/avapigw/internal/middleware"
	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// buildMiddlewareChain builds the ambient chain wrapping pl. Execution
// order (outermost executes first): Recovery -> RequestID -> Logging ->
// Metrics -> Tracing -> CORS -> SecurityHeaders -> BodyLimit ->
// CredentialAuth -> [pipeline].
//
// Per-request rate limiting and circuit breaking are NOT part of this
// chain: internal/pipeline.Pipeline already applies both per matched
// route, so a second layer here would double-count admission decisions.
func buildMiddlewareChain(
	pl http.Handler,
	cfg *config.Config,
	logger observability.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	credValidator *credential.Validator,
) http.Handler {
	h := pl

	h = credentialAuthMiddleware(credValidator, logger)(h)
	h = middleware.BodyLimitFromConfig(config.DefaultRequestLimits(), logger)(h)
	h = middleware.SecurityHeadersFromConfig(cfg)(h)
	h = middleware.CORS(middleware.DefaultCORSConfig())(h)

	if tracer != nil {
		h = observability.TracingMiddleware(tracer)(h)
	}
	h = observability.MetricsMiddleware(metrics)(h)

	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(logger)(h)

	return h
}
