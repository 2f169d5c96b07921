package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/avapigw/internal/auth"
	"github.com/vyrodovalexey/avapigw/internal/credential"
	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// credentialAuthMiddleware authenticates inbound requests against the
// credential validator (C8): a Bearer token is checked with ValidateToken,
// anything else falls back to ValidateKey so a bare API key in the same
// header still works. On success the resolved identity is placed in the
// request context via auth.ContextWithIdentity for downstream handlers
// and the pipeline's authorization hooks.
func credentialAuthMiddleware(validator *credential.Validator, logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				next.ServeHTTP(w, r)
				return
			}

			raw := r.Header.Get("Authorization")
			if raw == "" {
				raw = r.Header.Get("X-API-Key")
			}
			if raw == "" {
				writeAuthError(w, credential.CodeInvalidToken, "missing credentials")
				return
			}

			var (
				identity *auth.Identity
				err      error
			)

			if strings.HasPrefix(raw, "Bearer ") {
				identity, err = validator.ValidateToken(r.Context(), strings.TrimPrefix(raw, "Bearer "))
			} else {
				identity, err = validator.ValidateKey(r.Context(), raw)
			}

			if err != nil {
				logger.Debug("credential validation failed",
					observability.String("code", credential.Code(err)),
					observability.Error(err),
				)
				writeAuthError(w, credential.Code(err), err.Error())
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes spec.md's AuthResult failure shape: a machine
// code alongside a human message.
func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}
