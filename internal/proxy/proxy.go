// Package proxy provides HTTP reverse proxy functionality.
package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vyrodovalexey/avapigw/internal/config"
	"github.com/vyrodovalexey/avapigw/internal/observability"
	"github.com/vyrodovalexey/avapigw/internal/registry"
	"github.com/vyrodovalexey/avapigw/internal/router"
	"github.com/vyrodovalexey/avapigw/internal/util"
)

// hopHeaders are headers that should not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ReverseProxy handles proxying requests to backend services.
type ReverseProxy struct {
	router         *router.Router
	svcRegistry    *registry.Registry
	logger         observability.Logger
	transport      http.RoundTripper
	errorHandler   func(http.ResponseWriter, *http.Request, error)
	modifyResponse func(*http.Response) error
	flushInterval  time.Duration

	registeredMu sync.Mutex
	registered   map[string]bool
}

// ProxyOption is a functional option for configuring the proxy.
type ProxyOption func(*ReverseProxy)

// WithProxyLogger sets the logger for the proxy.
func WithProxyLogger(logger observability.Logger) ProxyOption {
	return func(p *ReverseProxy) {
		p.logger = logger
	}
}

// WithTransport sets the transport for the proxy.
func WithTransport(transport http.RoundTripper) ProxyOption {
	return func(p *ReverseProxy) {
		p.transport = transport
	}
}

// WithErrorHandler sets the error handler for the proxy.
func WithErrorHandler(handler func(http.ResponseWriter, *http.Request, error)) ProxyOption {
	return func(p *ReverseProxy) {
		p.errorHandler = handler
	}
}

// WithModifyResponse sets the response modifier for the proxy.
func WithModifyResponse(modifier func(*http.Response) error) ProxyOption {
	return func(p *ReverseProxy) {
		p.modifyResponse = modifier
	}
}

// WithFlushInterval sets the flush interval for streaming responses.
func WithFlushInterval(interval time.Duration) ProxyOption {
	return func(p *ReverseProxy) {
		p.flushInterval = interval
	}
}

// NewReverseProxy creates a new reverse proxy. svcRegistry is the C5
// service registry; each route's static destinations are registered as
// service instances under the route's name on first use, so the
// registry's configured selection strategy (round robin, weighted round
// robin, least connections, random) picks among them instead of always
// forwarding to the first destination.
func NewReverseProxy(r *router.Router, svcRegistry *registry.Registry, opts ...ProxyOption) *ReverseProxy {
	p := &ReverseProxy{
		router:        r,
		svcRegistry:   svcRegistry,
		logger:        observability.NopLogger(),
		flushInterval: -1, // Immediate flush
		registered:    make(map[string]bool),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.errorHandler == nil {
		p.errorHandler = p.defaultErrorHandler
	}

	return p
}

// ServeHTTP implements http.Handler.
func (p *ReverseProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Match route
	result, err := p.router.Match(r)
	if err != nil {
		p.handleRouteNotFound(w, r, err)
		return
	}

	route := result.Route

	// Add route params to context
	if len(result.RouteParams) > 0 {
		ctx = util.ContextWithRouteParams(ctx, result.RouteParams)
		r = r.WithContext(ctx)
	}

	// Add route name to context
	ctx = util.ContextWithRoute(ctx, route.Name)
	r = r.WithContext(ctx)

	// Handle direct response
	if route.Config.DirectResponse != nil {
		p.handleDirectResponse(w, route.Config.DirectResponse)
		return
	}

	// Handle redirect
	if route.Config.Redirect != nil {
		p.handleRedirect(w, r, route.Config.Redirect)
		return
	}

	// Proxy to backend
	p.proxyRequest(w, r, route)
}

// proxyRequest proxies the request to a backend.
func (p *ReverseProxy) proxyRequest(w http.ResponseWriter, r *http.Request, route *router.CompiledRoute) {
	if len(route.Config.Route) == 0 {
		p.errorHandler(w, r, fmt.Errorf("no destinations configured for route %s", route.Name))
		return
	}

	p.ensureRegistered(route)

	targetURL, err := p.svcRegistry.URLFor(route.Name)
	if err != nil {
		p.errorHandler(w, r, fmt.Errorf("no destination available for route %s: %w", route.Name, err))
		return
	}

	target, err := url.Parse(targetURL)
	if err != nil {
		p.errorHandler(w, r, fmt.Errorf("invalid target URL: %w", err))
		return
	}

	// Apply URL rewriting
	if route.Config.Rewrite != nil {
		r = p.applyRewrite(r, route.Config.Rewrite)
	}

	// Create reverse proxy
	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			p.director(req, target, r)
		},
		Transport:      p.transport,
		FlushInterval:  p.flushInterval,
		ErrorHandler:   p.errorHandler,
		ModifyResponse: p.modifyResponse,
	}

	// Apply timeout if configured
	if route.Config.Timeout.Duration() > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), route.Config.Timeout.Duration())
		defer cancel()
		r = r.WithContext(ctx)
	}

	proxy.ServeHTTP(w, r)
}

// director modifies the request before forwarding.
func (p *ReverseProxy) director(req *http.Request, target *url.URL, originalReq *http.Request) {
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host

	// Preserve the original path if not rewritten
	if req.URL.Path == "" {
		req.URL.Path = originalReq.URL.Path
	}

	// Preserve query string
	if originalReq.URL.RawQuery != "" {
		req.URL.RawQuery = originalReq.URL.RawQuery
	}

	// Remove hop-by-hop headers
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}

	// Set X-Forwarded headers
	if clientIP, _, err := net.SplitHostPort(originalReq.RemoteAddr); err == nil {
		if prior := originalReq.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		req.Header.Set("X-Forwarded-For", clientIP)
	}

	if originalReq.TLS != nil {
		req.Header.Set("X-Forwarded-Proto", "https")
	} else {
		req.Header.Set("X-Forwarded-Proto", "http")
	}

	req.Header.Set("X-Forwarded-Host", originalReq.Host)

	// Set Host header
	req.Host = target.Host
}

// ensureRegistered registers route's static destinations as service
// instances under the route's name, once per route. Re-registering an
// instance with the same id is a no-op in the registry (idempotent route
// registration), so a config reload that recompiles the same route is
// safe to pass through here again.
func (p *ReverseProxy) ensureRegistered(route *router.CompiledRoute) {
	p.registeredMu.Lock()
	defer p.registeredMu.Unlock()
	if p.registered[route.Name] {
		return
	}

	for i, dest := range route.Config.Route {
		weight := dest.Weight
		if weight == 0 {
			weight = 1
		}
		instance := &registry.ServiceInstance{
			ID:      route.Name + "-" + strconv.Itoa(i),
			BaseURL: fmt.Sprintf("http://%s:%d", dest.Destination.Host, dest.Destination.Port),
			Healthy: true,
			Weight:  weight,
		}
		_ = p.svcRegistry.Register(route.Name, instance)
	}
	p.registered[route.Name] = true
}

// applyRewrite applies URL rewriting to the request.
func (p *ReverseProxy) applyRewrite(r *http.Request, rewrite *config.RewriteConfig) *http.Request {
	if rewrite.URI != "" {
		// Get route params from context
		params := util.RouteParamsFromContext(r.Context())

		// Replace path parameters in rewrite URI
		newPath := rewrite.URI
		for key, value := range params {
			newPath = strings.ReplaceAll(newPath, "{"+key+"}", value)
		}

		r.URL.Path = newPath
	}

	if rewrite.Authority != "" {
		r.Host = rewrite.Authority
	}

	return r
}

// handleDirectResponse handles direct response configuration.
func (p *ReverseProxy) handleDirectResponse(w http.ResponseWriter, dr *config.DirectResponseConfig) {
	// Set headers
	for key, value := range dr.Headers {
		w.Header().Set(key, value)
	}

	// Set status code
	status := dr.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	// Write body
	if dr.Body != "" {
		_, _ = io.WriteString(w, dr.Body)
	}
}

// handleRedirect handles redirect configuration.
func (p *ReverseProxy) handleRedirect(w http.ResponseWriter, r *http.Request, redirect *config.RedirectConfig) {
	// Build redirect URL
	redirectURL := *r.URL

	if redirect.Scheme != "" {
		redirectURL.Scheme = redirect.Scheme
	}

	if redirect.Host != "" {
		redirectURL.Host = redirect.Host
	}

	if redirect.Port != 0 {
		host := redirectURL.Hostname()
		redirectURL.Host = fmt.Sprintf("%s:%d", host, redirect.Port)
	}

	if redirect.URI != "" {
		redirectURL.Path = redirect.URI
	}

	if redirect.StripQuery {
		redirectURL.RawQuery = ""
	}

	// Determine status code
	code := redirect.Code
	if code == 0 {
		code = http.StatusFound // 302
	}

	http.Redirect(w, r, redirectURL.String(), code)
}

// handleRouteNotFound handles route not found errors.
func (p *ReverseProxy) handleRouteNotFound(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Debug("route not found",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `{"error":"not found","message":"no matching route"}`)
}

// defaultErrorHandler is the default error handler.
func (p *ReverseProxy) defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Error("proxy error",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = io.WriteString(w, `{"error":"bad gateway","message":"failed to proxy request"}`)
}

// Handler returns an http.Handler for the proxy.
func (p *ReverseProxy) Handler() http.Handler {
	return p
}
