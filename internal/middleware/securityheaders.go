package middleware

import (
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/avapigw/internal/config"
)

// SecurityHeadersConfig controls which hardening headers are set on every
// response.
type SecurityHeadersConfig struct {
	HSTSEnabled           bool
	HSTSMaxAge            int
	HSTSIncludeSubDomains bool
	XFrameOptions         string
	XContentTypeOptions   string
	ReferrerPolicy        string
}

// SecurityHeaders returns a middleware that sets the configured hardening
// headers on every response before calling next.
func SecurityHeaders(cfg SecurityHeadersConfig) func(http.Handler) http.Handler {
	hsts := ""
	if cfg.HSTSEnabled {
		hsts = fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubDomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hsts != "" {
				w.Header().Set("Strict-Transport-Security", hsts)
			}
			if cfg.XFrameOptions != "" {
				w.Header().Set("X-Frame-Options", cfg.XFrameOptions)
			}
			if cfg.XContentTypeOptions != "" {
				w.Header().Set("X-Content-Type-Options", cfg.XContentTypeOptions)
			}
			if cfg.ReferrerPolicy != "" {
				w.Header().Set("Referrer-Policy", cfg.ReferrerPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersFromConfig builds a SecurityHeaders middleware from the
// gateway's ambient configuration. It returns a no-op middleware when
// security headers are disabled.
func SecurityHeadersFromConfig(cfg *config.Config) func(http.Handler) http.Handler {
	if cfg == nil || !cfg.SecurityHeadersEnabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return SecurityHeaders(SecurityHeadersConfig{
		HSTSEnabled:           cfg.HSTSEnabled,
		HSTSMaxAge:            cfg.HSTSMaxAge,
		HSTSIncludeSubDomains: cfg.HSTSIncludeSubDomains,
		XFrameOptions:         cfg.XFrameOptions,
		XContentTypeOptions:   cfg.XContentTypeOptions,
		ReferrerPolicy:        cfg.ReferrerPolicy,
	})
}
