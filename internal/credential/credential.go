// Package credential implements the credential validator (C8): signed-token
// and opaque-key validation with revocation lookup, a pluggable
// role→permission resolver, and a basic-auth fallback used only by the
// control-endpoint admin listing (spec.md 4.6, SPEC_FULL 4.9). It merges
// the existing internal/auth/jwt and internal/auth/apikey validators behind
// one orchestration surface and adds the distributed blacklist/seed checks
// spec.md assigns to this component but which neither subpackage owns.
package credential

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"time"

	"github.com/vyrodovalexey/avapigw/internal/auth"
	"github.com/vyrodovalexey/avapigw/internal/auth/apikey"
	"github.com/vyrodovalexey/avapigw/internal/auth/jwt"
	"github.com/vyrodovalexey/avapigw/internal/observability"
	"github.com/vyrodovalexey/avapigw/internal/store"
)

// Error codes, per spec.md 4.6.
const (
	CodeInvalidTokenFormat = "INVALID_TOKEN_FORMAT"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeInvalidAPIKey      = "INVALID_API_KEY"
	CodeInactiveAPIKey     = "INACTIVE_API_KEY"
	CodeExpiredAPIKey      = "EXPIRED_API_KEY"
	CodeValidationError    = "VALIDATION_ERROR"
)

// ValidationError carries a machine-readable code alongside the message,
// matching spec.md's AuthResult failure shape (code + human message).
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func newError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// Code returns the machine-readable code of err, or CodeValidationError if
// err did not originate from this package.
func Code(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Code
	}
	return CodeValidationError
}

// RoleResolver looks up the permissions granted by a role. Role→permission
// resolution is a stub in the source material (spec.md's open question);
// the default resolver here always returns no permissions, and callers
// that have a real role store supply their own implementation.
type RoleResolver interface {
	PermissionsForRole(ctx context.Context, role string) ([]string, error)
}

// RoleResolverFunc adapts a function to RoleResolver.
type RoleResolverFunc func(ctx context.Context, role string) ([]string, error)

// PermissionsForRole implements RoleResolver.
func (f RoleResolverFunc) PermissionsForRole(ctx context.Context, role string) ([]string, error) {
	return f(ctx, role)
}

// noopRoleResolver grants no permissions for any role.
type noopRoleResolver struct{}

func (noopRoleResolver) PermissionsForRole(context.Context, string) ([]string, error) {
	return nil, nil
}

// Validator is the credential validator's exported surface.
type Validator struct {
	jwtValidator   jwt.Validator
	apikeyValidator apikey.Validator
	store          store.Store
	roles          RoleResolver
	logger         observability.Logger

	basicUsers map[string]string // username -> sha256(password) hex, for the admin-listing fallback only
}

// Option configures a Validator.
type Option func(*Validator)

// WithJWTValidator attaches the signed-token path.
func WithJWTValidator(v jwt.Validator) Option {
	return func(c *Validator) { c.jwtValidator = v }
}

// WithAPIKeyValidator attaches the opaque-key path.
func WithAPIKeyValidator(v apikey.Validator) Option {
	return func(c *Validator) { c.apikeyValidator = v }
}

// WithStore attaches the distributed cache used for the token blacklist and
// API-key metadata lookups.
func WithStore(s store.Store) Option {
	return func(c *Validator) { c.store = s }
}

// WithRoleResolver overrides the default no-op role→permission resolver.
func WithRoleResolver(r RoleResolver) Option {
	return func(c *Validator) { c.roles = r }
}

// WithLogger sets the validator's logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Validator) { c.logger = logger }
}

// WithBasicAuthUsers configures the control-endpoint basic-auth fallback:
// a map of username to SHA-256(password) hex digest.
func WithBasicAuthUsers(users map[string]string) Option {
	return func(c *Validator) { c.basicUsers = users }
}

// New builds a Validator. At least one of WithJWTValidator/WithAPIKeyValidator
// should be supplied; a Validator with neither configured simply fails every
// ValidateToken/ValidateKey call.
func New(opts ...Option) *Validator {
	c := &Validator{
		roles:  noopRoleResolver{},
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateToken verifies token's signature/claims via the JWT validator,
// then consults the distributed blacklist for its jti claim.
func (c *Validator) ValidateToken(ctx context.Context, token string) (*auth.Identity, error) {
	if c.jwtValidator == nil {
		return nil, newError(CodeValidationError, "no JWT validator configured")
	}

	claims, err := c.jwtValidator.Validate(ctx, token)
	if err != nil {
		return nil, classifyJWTError(err)
	}

	if claims.JWTID != "" && c.store != nil {
		v, err := c.store.Get(ctx, store.TokenBlacklistKey(claims.JWTID))
		if err == nil && len(v) > 0 {
			return nil, newError(CodeTokenRevoked, "token has been revoked")
		}
	}

	identity := &auth.Identity{
		Subject:  claims.Subject,
		Issuer:   claims.Issuer,
		Audience: []string(claims.Audience),
		AuthType: auth.AuthTypeJWT,
		AuthTime: time.Now(),
		Claims:   claims.ToMap(),
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	identity.Roles = claims.GetNestedStringSliceClaim("roles")
	identity.Permissions = claims.GetNestedStringSliceClaim("permissions")
	identity.Scopes = claims.GetNestedStringSliceClaim("scope")

	return identity, nil
}

// classifyJWTError maps an internal/auth/jwt error onto spec.md's
// credential-validator error codes.
func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrEmptyToken), errors.Is(err, jwt.ErrTokenMalformed):
		return newError(CodeInvalidTokenFormat, err.Error())
	case errors.Is(err, jwt.ErrTokenExpired):
		return newError(CodeTokenExpired, err.Error())
	case errors.Is(err, jwt.ErrTokenRevoked):
		return newError(CodeTokenRevoked, err.Error())
	default:
		return newError(CodeInvalidToken, err.Error())
	}
}

// ValidateKey hashes key with SHA-256 and validates it via the API-key
// validator, translating its errors onto spec.md's three opaque-key codes.
func (c *Validator) ValidateKey(ctx context.Context, key string) (*auth.Identity, error) {
	if c.apikeyValidator == nil {
		return nil, newError(CodeValidationError, "no API key validator configured")
	}

	info, err := c.apikeyValidator.Validate(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, apikey.ErrAPIKeyExpired):
			return nil, newError(CodeExpiredAPIKey, err.Error())
		case errors.Is(err, apikey.ErrAPIKeyDisabled), errors.Is(err, apikey.ErrAPIKeyRevoked):
			return nil, newError(CodeInactiveAPIKey, err.Error())
		default:
			return nil, newError(CodeInvalidAPIKey, err.Error())
		}
	}

	identity := &auth.Identity{
		Subject:  info.ID,
		AuthType: auth.AuthTypeAPIKey,
		AuthTime: time.Now(),
		Roles:    info.Roles,
		Scopes:   info.Scopes,
		Metadata: info.Metadata,
		ClientID: info.ID,
	}
	if info.ExpiresAt != nil {
		identity.ExpiresAt = *info.ExpiresAt
	}
	return identity, nil
}

// HashAPIKey is exposed so callers (e.g. admin tooling seeding the store)
// can compute the same "apikey:{hash}" key the validator consults.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HasPermission reports whether identity satisfies (resource, action): its
// permission set must contain "resource:action", "resource:*", or "*:*",
// consulting role-derived permissions via the configured RoleResolver.
func (c *Validator) HasPermission(ctx context.Context, identity *auth.Identity, resource, action string) (bool, error) {
	if identity == nil {
		return false, nil
	}

	want := []string{resource + ":" + action, resource + ":*", "*:*"}
	if hasAny(identity.Permissions, want) {
		return true, nil
	}

	for _, role := range identity.Roles {
		perms, err := c.roles.PermissionsForRole(ctx, role)
		if err != nil {
			return false, err
		}
		if hasAny(perms, want) {
			return true, nil
		}
	}
	return false, nil
}

func hasAny(have []string, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// RevokeRefresh adds token's jti claim to the distributed blacklist so
// subsequent ValidateToken calls return TOKEN_REVOKED.
func (c *Validator) RevokeRefresh(ctx context.Context, token string) error {
	if c.jwtValidator == nil || c.store == nil {
		return newError(CodeValidationError, "revocation requires a JWT validator and a store")
	}

	claims, err := c.jwtValidator.ValidateWithOptions(ctx, token, jwt.ValidationOptions{
		SkipExpirationCheck: true,
	})
	if err != nil {
		return classifyJWTError(err)
	}
	if claims.JWTID == "" {
		return newError(CodeInvalidTokenFormat, "token has no jti claim to revoke")
	}

	ttl := time.Hour
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	return c.store.Set(ctx, store.TokenBlacklistKey(claims.JWTID), []byte("1"), ttl)
}

// UserInfo returns identity unchanged; it exists as a named operation
// matching spec.md's credential-validator surface (downstream callers
// should prefer reading the Principal already attached to the request
// context over calling this directly).
func (c *Validator) UserInfo(identity *auth.Identity) *auth.Identity {
	return identity
}

// ValidateBasic validates username/password for the control-endpoint admin
// listing only (SPEC_FULL 4.9) — never on the proxied request path.
func (c *Validator) ValidateBasic(username, password string) (*auth.Identity, error) {
	if c.basicUsers == nil {
		return nil, newError(CodeInvalidToken, "basic auth is not configured")
	}
	expected, ok := c.basicUsers[username]
	if !ok {
		return nil, newError(CodeInvalidToken, "invalid username or password")
	}

	sum := sha256.Sum256([]byte(password))
	got := base64.StdEncoding.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return nil, newError(CodeInvalidToken, "invalid username or password")
	}

	return &auth.Identity{
		Subject:  username,
		AuthType: auth.AuthTypeBasic,
		AuthTime: time.Now(),
	}, nil
}
