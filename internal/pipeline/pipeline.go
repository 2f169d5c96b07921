// Package pipeline implements the gateway's single request-processing
// entry point (C9): correlation stamping, rate limiting, route resolution,
// optional JSON payload transformation, resilient backend dispatch, and
// outcome-event publication.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/avapigw/internal/auth"
	"github.com/vyrodovalexey/avapigw/internal/config"
	"github.com/vyrodovalexey/avapigw/internal/eventbus"
	"github.com/vyrodovalexey/avapigw/internal/observability"
	"github.com/vyrodovalexey/avapigw/internal/ratelimit"
	"github.com/vyrodovalexey/avapigw/internal/registry"
	"github.com/vyrodovalexey/avapigw/internal/retry"
	"github.com/vyrodovalexey/avapigw/internal/router"
	"github.com/vyrodovalexey/avapigw/internal/transform"
)

// Error codes surfaced in the gateway-originated error response body
// (SPEC_FULL 6).
const (
	CodeNotFound       = "NOT_FOUND"
	CodeRateLimited    = "RATE_LIMITED"
	CodeBadGateway     = "BAD_GATEWAY"
	CodeGatewayTimeout = "GATEWAY_TIMEOUT"
	CodeInternalError  = "INTERNAL_ERROR"
)

// Event types published via the message bus.
const (
	EventAPIRequestProcessed = "ApiRequestProcessed"
	EventGatewayError        = "GatewayErrorOccurred"
)

// errTransientStatus marks a backend response whose status code (5xx) is
// treated as a transient failure for retry/breaker purposes even though
// net/http didn't itself return an error.
var errTransientStatus = errors.New("pipeline: backend returned a transient status")

const correlationHeader = "X-Correlation-Id"

// Pipeline wires C3 (schema), C4 (transform), C5 (registry), C6 (router),
// C7 (rate limiter) and C2 (event bus) behind the single process() entry
// point spec.md 4.8 describes.
type Pipeline struct {
	router          *router.Router
	svcRegistry     *registry.Registry
	rateLimiter     ratelimit.Limiter
	transformMapper *transform.Mapper
	bus             eventbus.Bus
	httpClient  *http.Client
	logger      observability.Logger
	metrics     *Metrics

	breaker     *gobreaker.CircuitBreaker
	retryCfg    *retry.Config
	source      string
	next        http.Handler
	passthrough []string

	registeredMu sync.Mutex
	registered   map[string]bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(logger observability.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithHTTPClient overrides the HTTP client used for backend dispatch.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Pipeline) { p.httpClient = client }
}

// WithEventSource sets the "source" field stamped onto published events.
func WithEventSource(source string) Option {
	return func(p *Pipeline) { p.source = source }
}

// WithPassthrough marks path prefixes (e.g. "/health", "/metrics",
// "/swagger") that bypass the gateway pipeline entirely (spec.md 4.8 step 2).
// next, if set, serves those requests; otherwise they 404.
func WithPassthrough(next http.Handler, prefixes ...string) Option {
	return func(p *Pipeline) {
		p.next = next
		p.passthrough = prefixes
	}
}

// WithRetryConfig overrides the default 2s/4s/8s, 3-attempt backoff budget
// (spec.md 4.8 step 7).
func WithRetryConfig(cfg *retry.Config) Option {
	return func(p *Pipeline) { p.retryCfg = cfg }
}

// New builds a Pipeline. r and svcRegistry back route resolution and
// destination selection (C6/C5); limiter backs admission (C7); transformMapper
// applies named SchemaMappings at the request/response legs (C4, may be nil
// to disable payload transformation); bus publishes outcome events (C2, may
// be nil to disable event emission).
func New(r *router.Router, svcRegistry *registry.Registry, limiter ratelimit.Limiter, transformMapper *transform.Mapper, bus eventbus.Bus, opts ...Option) *Pipeline {
	logger := observability.NopLogger()

	p := &Pipeline{
		router:          r,
		svcRegistry:     svcRegistry,
		rateLimiter:     limiter,
		transformMapper: transformMapper,
		bus:             bus,
		logger:          logger,
		metrics:         GetMetrics(),
		source:          "avapigw",
		registered:      make(map[string]bool),
		passthrough:     []string{"/health", "/metrics", "/swagger"},
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		retryCfg: &retry.Config{
			MaxRetries:     3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     8 * time.Second,
			JitterFactor:   0,
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pipeline-dispatch",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Info("pipeline breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()))
		},
	})

	return p
}

// ServeHTTP implements http.Handler.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.Process(w, r)
}

// Process is the pipeline's single entry point (spec.md 4.8).
func (p *Pipeline) Process(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Step 1: correlation id.
	correlationID := r.Header.Get(correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	w.Header().Set(correlationHeader, correlationID)
	logger := p.logger.With(observability.String("correlationId", correlationID))

	// Step 2: control-endpoint short-circuit.
	if p.isPassthrough(r.URL.Path) {
		if p.next != nil {
			p.next.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
		return
	}

	clientID := deriveClientID(r)

	// Step 3: rate limit.
	if p.rateLimiter != nil {
		result, err := p.rateLimiter.Allow(r.Context(), rateLimitKey(clientID, r.URL.Path))
		if err != nil {
			p.writeError(w, r, logger, correlationID, clientID, start, r.URL.Path, http.StatusInternalServerError, CodeInternalError, "rate limiter unavailable", err)
			return
		}
		if !result.Allowed {
			p.metrics.rateLimited.WithLabelValues(r.URL.Path).Inc()
			p.writeRateLimited(w, result)
			return
		}
	}

	// Step 4: route resolve.
	matchResult, err := p.router.Match(r)
	if err != nil {
		p.writeError(w, r, logger, correlationID, clientID, start, r.URL.Path, http.StatusNotFound, CodeNotFound, "no matching route", err)
		return
	}
	route := matchResult.Route

	bodyBytes, err := readAndRestoreBody(r)
	if err != nil {
		p.writeError(w, r, logger, correlationID, clientID, start, route.Name, http.StatusInternalServerError, CodeInternalError, "failed to read request body", err)
		return
	}

	// Step 5: optional request transform.
	contentType := r.Header.Get("Content-Type")
	outboundBody := bodyBytes
	outboundContentType := contentType
	if p.transformMapper != nil && strings.Contains(contentType, "application/json") && len(bodyBytes) > 0 && route.Config.Transform != nil && route.Config.Transform.RequestSchema != nil {
		ref := route.Config.Transform.RequestSchema
		var doc map[string]interface{}
		if err := json.Unmarshal(bodyBytes, &doc); err == nil {
			transformed, err := p.transformMapper.TransformRequest(r.Context(), doc, ref.Source, ref.Target)
			if err != nil {
				p.writeError(w, r, logger, correlationID, clientID, start, route.Name, http.StatusInternalServerError, CodeInternalError, "request transform failed", err)
				return
			}
			encoded, err := json.Marshal(transformed)
			if err != nil {
				p.writeError(w, r, logger, correlationID, clientID, start, route.Name, http.StatusInternalServerError, CodeInternalError, "request transform failed", err)
				return
			}
			outboundBody = encoded
			outboundContentType = "application/json"
		}
	}

	// Step 6: build outbound request.
	targetURL, err := p.resolveTarget(route)
	if err != nil {
		p.writeError(w, r, logger, correlationID, clientID, start, route.Name, http.StatusBadGateway, CodeBadGateway, "no destination available", err)
		return
	}

	ctx := r.Context()
	if route.Config.Timeout.Duration() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, route.Config.Timeout.Duration())
		defer cancel()
	}

	// Step 7: dispatch with retry + circuit breaker.
	resp, err := p.dispatch(ctx, r, targetURL, route, matchResult.RouteParams, outboundBody, outboundContentType, correlationID)
	if err != nil {
		status, code := classifyDispatchError(err)
		p.writeError(w, r, logger, correlationID, clientID, start, route.Name, status, code, "backend dispatch failed", err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		p.writeError(w, r, logger, correlationID, clientID, start, route.Name, http.StatusBadGateway, CodeBadGateway, "failed to read backend response", err)
		return
	}

	// Step 8: optional response transform.
	respContentType := resp.Header.Get("Content-Type")
	finalBody := respBody
	bodyModified := false
	if p.transformMapper != nil && strings.Contains(respContentType, "application/json") && len(respBody) > 0 && route.Config.Transform != nil && route.Config.Transform.ResponseSchema != nil {
		ref := route.Config.Transform.ResponseSchema
		var doc map[string]interface{}
		if err := json.Unmarshal(respBody, &doc); err == nil {
			transformed, err := p.transformMapper.TransformResponse(ctx, doc, ref.Source, ref.Target)
			if err == nil {
				if encoded, err := json.Marshal(transformed); err == nil {
					finalBody = encoded
					bodyModified = true
				}
			}
		}
	}

	for key, values := range resp.Header {
		if bodyModified && strings.EqualFold(key, "Transfer-Encoding") {
			continue
		}
		if bodyModified && strings.EqualFold(key, "Content-Length") {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(finalBody)

	// Step 9: outcome event.
	duration := time.Since(start)
	p.metrics.requestsTotal.WithLabelValues(route.Name, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	p.metrics.requestDuration.WithLabelValues(route.Name).Observe(duration.Seconds())
	p.publishOutcome(r, correlationID, route.Name, resp.StatusCode, duration, clientID)
}

// isPassthrough reports whether path should skip the gateway pipeline.
func (p *Pipeline) isPassthrough(path string) bool {
	for _, prefix := range p.passthrough {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// deriveClientID picks the rate-limit identity per spec.md 6: subject
// claim, then client_id claim, then the opaque-key header, then the
// remote address, then the literal "anonymous".
func deriveClientID(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil {
		if identity.Subject != "" {
			return identity.Subject
		}
		if cid, ok := identity.Claims["client_id"].(string); ok && cid != "" {
			return cid
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "anonymous"
}

// rateLimitKey builds the sliding-window counter key per spec.md 4.3.
func rateLimitKey(clientID, endpoint string) string {
	return "ratelimit:" + clientID + ":" + endpoint
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// resolveTarget lazily registers route's static destinations into the
// service registry (C5) under the route's own name, then resolves a
// concrete base URL through the registry's configured selection strategy.
func (p *Pipeline) resolveTarget(route *router.CompiledRoute) (string, error) {
	if len(route.Config.Route) == 0 {
		return "", fmt.Errorf("no destinations configured for route %s", route.Name)
	}

	p.registeredMu.Lock()
	if !p.registered[route.Name] {
		for i, dest := range route.Config.Route {
			weight := dest.Weight
			if weight == 0 {
				weight = 1
			}
			instance := &registry.ServiceInstance{
				ID:      fmt.Sprintf("%s-%d", route.Name, i),
				BaseURL: fmt.Sprintf("http://%s:%d", dest.Destination.Host, dest.Destination.Port),
				Healthy: true,
				Weight:  weight,
			}
			_ = p.svcRegistry.Register(route.Name, instance)
		}
		p.registered[route.Name] = true
	}
	p.registeredMu.Unlock()

	return p.svcRegistry.URLFor(route.Name)
}

// dispatch builds the outbound request (spec.md 4.8 step 6) and executes
// it through the retry budget and circuit breaker (step 7).
func (p *Pipeline) dispatch(ctx context.Context, original *http.Request, targetBaseURL string, route *router.CompiledRoute, routeParams map[string]string, body []byte, contentType, correlationID string) (*http.Response, error) {
	base, err := url.Parse(targetBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	target := *base
	target.Path = buildTargetPath(original.URL.Path, route.Config.TargetPathTemplate, routeParams, catchAllParamName(route))
	target.RawQuery = original.URL.RawQuery

	var resp *http.Response
	opts := &retry.Options{
		ShouldRetry: isTransientDispatchError,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			p.logger.Warn("retrying backend dispatch",
				observability.String("route", route.Name),
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(err))
		},
	}

	retryErr := retry.Do(ctx, p.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, original.Method, target.String(), bytes.NewReader(body))
		if err != nil {
			return err
		}
		copyForwardHeaders(req, original.Header)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set(correlationHeader, correlationID)
		applyHeaderOverrides(req, route.Config.Headers)

		result, err := p.breaker.Execute(func() (interface{}, error) {
			return p.httpClient.Do(req)
		})
		if err != nil {
			return err
		}
		r := result.(*http.Response)
		if r.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, r.Body)
			_ = r.Body.Close()
			return fmt.Errorf("%w: status %d", errTransientStatus, r.StatusCode)
		}
		resp = r
		return nil
	}, opts)

	if retryErr != nil {
		if errors.Is(retryErr, gobreaker.ErrOpenState) || errors.Is(retryErr, gobreaker.ErrTooManyRequests) {
			p.metrics.circuitRejected.WithLabelValues(route.Name).Inc()
		}
		return nil, retryErr
	}
	return resp, nil
}

// buildTargetPath composes the outbound request path per spec.md 4.1.
// When the route names a target path template, "{name}" placeholders are
// substituted from routeParams. Otherwise, a "{*name}" catch-all capture
// becomes the target path rooted at "/"; absent that, the original request
// path is forwarded verbatim.
func buildTargetPath(originalPath, targetPathTemplate string, routeParams map[string]string, catchAllParam string) string {
	if targetPathTemplate != "" {
		path := targetPathTemplate
		for name, value := range routeParams {
			path = strings.ReplaceAll(path, "{"+name+"}", value)
		}
		return path
	}

	if catchAllParam != "" {
		if value, ok := routeParams[catchAllParam]; ok {
			return "/" + value
		}
	}

	return originalPath
}

// catchAllParamName returns the captured-parameter name of route's "{*name}"
// catch-all segment, if its path match uses one.
func catchAllParamName(route *router.CompiledRoute) string {
	for _, match := range route.Config.Match {
		if match.URI == nil || match.URI.Template == "" {
			continue
		}
		for _, segment := range strings.Split(match.URI.Template, "/") {
			if strings.HasPrefix(segment, "{*") && strings.HasSuffix(segment, "}") {
				return segment[2 : len(segment)-1]
			}
		}
	}
	return ""
}

// copyForwardHeaders copies inbound headers except Host and Content-*
// (spec.md 6: "strips Host and inbound Content-*").
func copyForwardHeaders(req *http.Request, src http.Header) {
	for name, values := range src {
		if strings.EqualFold(name, "Host") || strings.HasPrefix(strings.ToLower(name), "content-") {
			continue
		}
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
}

func applyHeaderOverrides(req *http.Request, h *config.HeaderManipulation) {
	if h == nil || h.Request == nil {
		return
	}
	for _, name := range h.Request.Remove {
		req.Header.Del(name)
	}
	for name, value := range h.Request.Set {
		req.Header.Set(name, value)
	}
	for name, value := range h.Request.Add {
		req.Header.Add(name, value)
	}
}

// isTransientDispatchError decides whether a dispatch error should be
// retried. An open breaker fails fast without burning the retry budget.
func isTransientDispatchError(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, errTransientStatus) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// classifyDispatchError maps a dispatch failure to the HTTP status and
// gateway error code spec.md 7/9 prescribe.
func classifyDispatchError(err error) (int, string) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return http.StatusBadGateway, CodeBadGateway
	}
	if errors.Is(err, errTransientStatus) {
		return http.StatusBadGateway, CodeBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, CodeGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout, CodeGatewayTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return http.StatusBadGateway, CodeBadGateway
	}
	return http.StatusInternalServerError, CodeInternalError
}

// writeError writes the gateway-originated error body (spec.md 6) and
// publishes a GatewayErrorOccurred event.
func (p *Pipeline) writeError(w http.ResponseWriter, r *http.Request, logger observability.Logger, correlationID, clientID string, start time.Time, routeName string, status int, code, message string, cause error) {
	logger.Error(message,
		observability.String("route", routeName),
		observability.String("code", code),
		observability.Error(cause))

	p.metrics.requestsTotal.WithLabelValues(routeName, code).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
	_, _ = w.Write(body)

	p.publishError(r, correlationID, routeName, code, time.Since(start), clientID, cause)
}

func (p *Pipeline) writeRateLimited(w http.ResponseWriter, result *ratelimit.Result) {
	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", result.RetryAfter.Seconds()))
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	body, _ := json.Marshal(map[string]interface{}{
		"error": map[string]string{
			"code":      CodeRateLimited,
			"message":   "rate limit exceeded",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
	_, _ = w.Write(body)
}

// publishOutcome emits ApiRequestProcessed (spec.md 4.8 step 9). Publish
// failures are logged at warn and never surfaced to the caller.
func (p *Pipeline) publishOutcome(r *http.Request, correlationID, routeName string, status int, duration time.Duration, clientID string) {
	if p.bus == nil {
		return
	}
	event := eventbus.NewIntegrationEvent(EventAPIRequestProcessed, p.source, correlationID, map[string]interface{}{
		"route":      routeName,
		"status":     status,
		"durationMs": duration.Milliseconds(),
		"clientId":   clientID,
		"endpoint":   r.URL.Path,
		"method":     r.Method,
	})
	go p.publishAsync(event)
}

func (p *Pipeline) publishError(r *http.Request, correlationID, routeName, code string, duration time.Duration, clientID string, cause error) {
	if p.bus == nil {
		return
	}
	payload := map[string]interface{}{
		"route":      routeName,
		"code":       code,
		"durationMs": duration.Milliseconds(),
		"clientId":   clientID,
		"endpoint":   r.URL.Path,
		"method":     r.Method,
	}
	if cause != nil {
		payload["cause"] = cause.Error()
	}
	event := eventbus.NewIntegrationEvent(EventGatewayError, p.source, correlationID, payload)
	go p.publishAsync(event)
}

func (p *Pipeline) publishAsync(event *eventbus.IntegrationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.bus.Publish(ctx, event); err != nil {
		p.logger.Warn("failed to publish outcome event",
			observability.String("eventType", event.EventType),
			observability.Error(err))
	}
}
