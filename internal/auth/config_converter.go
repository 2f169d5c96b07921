package auth

import (
	"github.com/vyrodovalexey/avapigw/internal/auth/apikey"
	"github.com/vyrodovalexey/avapigw/internal/auth/jwt"
	"github.com/vyrodovalexey/avapigw/internal/config"
)

// ConvertFromConfig builds an authentication Config from the gateway's
// ambient configuration. It returns (nil, nil) when neither JWT nor API
// key authentication is enabled.
//
// mTLS and OIDC have no representation in the ambient config; deployments
// needing either build an auth.Config directly rather than through this
// converter.
func ConvertFromConfig(cfg *config.Config) (*Config, error) {
	if cfg == nil {
		return nil, nil
	}

	jwtCfg := convertJWTConfig(cfg)
	apiKeyCfg := convertAPIKeyConfig(cfg)

	if jwtCfg == nil && apiKeyCfg == nil {
		return nil, nil
	}

	authCfg := DefaultConfig()
	authCfg.Enabled = true
	authCfg.JWT = jwtCfg
	authCfg.APIKey = apiKeyCfg

	return authCfg, nil
}

// convertJWTConfig builds a jwt.Config from the ambient config's flat
// JWT* fields. Returns nil when JWT authentication is disabled.
func convertJWTConfig(cfg *config.Config) *jwt.Config {
	if cfg == nil || !cfg.JWTEnabled {
		return nil
	}

	jwtCfg := &jwt.Config{
		Enabled:      true,
		Algorithms:   cfg.JWTAlgorithms,
		JWKSUrl:      cfg.JWKSURL,
		JWKSCacheTTL: cfg.JWKSCacheTTL,
		Issuer:       cfg.JWTIssuer,
		Audience:     cfg.JWTAudiences,
		ClockSkew:    cfg.JWTClockSkew,
	}

	// A configured HMAC secret becomes a static signing key so deployments
	// that don't run a JWKS endpoint can still validate tokens.
	if cfg.JWTHMACSecret != "" {
		algo := "HS256"
		if len(cfg.JWTAlgorithms) > 0 {
			algo = cfg.JWTAlgorithms[0]
		}
		jwtCfg.StaticKeys = append(jwtCfg.StaticKeys, jwt.StaticKey{
			KeyID:     "default",
			Algorithm: algo,
			Key:       cfg.JWTHMACSecret,
		})
	}

	return jwtCfg
}

// convertAPIKeyConfig builds an apikey.Config from the ambient config's
// flat APIKey* fields. Returns nil when API key authentication is
// disabled.
func convertAPIKeyConfig(cfg *config.Config) *apikey.Config {
	if cfg == nil || !cfg.APIKeyEnabled {
		return nil
	}

	apiKeyCfg := &apikey.Config{
		Enabled:       true,
		HashAlgorithm: cfg.APIKeyHashMode,
	}

	if cfg.APIKeyHeader != "" {
		apiKeyCfg.Extraction = append(apiKeyCfg.Extraction, apikey.ExtractionSource{
			Type: "header",
			Name: cfg.APIKeyHeader,
		})
	}
	if cfg.APIKeyQueryParam != "" {
		apiKeyCfg.Extraction = append(apiKeyCfg.Extraction, apikey.ExtractionSource{
			Type: "query",
			Name: cfg.APIKeyQueryParam,
		})
	}

	return apiKeyCfg
}
