package main

import (
	"github.com/vyrodovalexey/avapigw/internal/config"
	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// loadAmbientConfig builds the gateway's ambient operational configuration
// (listener ports, TLS, observability, the default rate-limit/circuit-
// breaker/retry/authentication policies) from environment variables,
// layered over DefaultConfig. Environment variables take precedence, per
// the config package's documented loading contract.
func loadAmbientConfig() *config.Config {
	cfg := config.DefaultConfig()

	cfg.HTTPPort = getEnvInt("AVAPIGW_HTTP_PORT", cfg.HTTPPort)
	cfg.MetricsPort = getEnvInt("AVAPIGW_METRICS_PORT", cfg.MetricsPort)
	cfg.HealthPort = getEnvInt("AVAPIGW_HEALTH_PORT", cfg.HealthPort)

	cfg.ReadTimeout = getEnvDuration("AVAPIGW_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration("AVAPIGW_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvDuration("AVAPIGW_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvDuration("AVAPIGW_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.TLSEnabled = getEnvBool("AVAPIGW_TLS_ENABLED", cfg.TLSEnabled)
	cfg.TLSCertFile = getEnvOrDefault("AVAPIGW_TLS_CERT_FILE", cfg.TLSCertFile)
	cfg.TLSKeyFile = getEnvOrDefault("AVAPIGW_TLS_KEY_FILE", cfg.TLSKeyFile)
	cfg.TLSCAFile = getEnvOrDefault("AVAPIGW_TLS_CA_FILE", cfg.TLSCAFile)

	cfg.SecretsProvider = getEnvOrDefault("AVAPIGW_SECRETS_PROVIDER", cfg.SecretsProvider)
	cfg.SecretsLocalPath = getEnvOrDefault("AVAPIGW_SECRETS_LOCAL_PATH", cfg.SecretsLocalPath)
	cfg.SecretsEnvPrefix = getEnvOrDefault("AVAPIGW_SECRETS_ENV_PREFIX", cfg.SecretsEnvPrefix)

	cfg.LogLevel = getEnvOrDefault("AVAPIGW_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("AVAPIGW_LOG_FORMAT", cfg.LogFormat)
	cfg.LogOutput = getEnvOrDefault("AVAPIGW_LOG_OUTPUT", cfg.LogOutput)
	cfg.AccessLogEnabled = getEnvBool("AVAPIGW_ACCESS_LOG_ENABLED", cfg.AccessLogEnabled)

	cfg.TracingEnabled = getEnvBool("AVAPIGW_TRACING_ENABLED", cfg.TracingEnabled)
	cfg.TracingExporter = getEnvOrDefault("AVAPIGW_TRACING_EXPORTER", cfg.TracingExporter)
	cfg.OTLPEndpoint = getEnvOrDefault("AVAPIGW_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.TracingSampleRate = getEnvFloat("AVAPIGW_TRACING_SAMPLE_RATE", cfg.TracingSampleRate)
	cfg.ServiceName = getEnvOrDefault("AVAPIGW_SERVICE_NAME", cfg.ServiceName)
	cfg.ServiceVersion = getEnvOrDefault("AVAPIGW_SERVICE_VERSION", cfg.ServiceVersion)
	cfg.TracingInsecure = getEnvBool("AVAPIGW_TRACING_INSECURE", cfg.TracingInsecure)

	cfg.MetricsEnabled = getEnvBool("AVAPIGW_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsPath = getEnvOrDefault("AVAPIGW_METRICS_PATH", cfg.MetricsPath)

	cfg.RateLimitEnabled = getEnvBool("AVAPIGW_RATE_LIMIT_ENABLED", cfg.RateLimitEnabled)
	cfg.RateLimitRequests = getEnvInt("AVAPIGW_RATE_LIMIT_REQUESTS", cfg.RateLimitRequests)
	cfg.RateLimitWindow = getEnvDuration("AVAPIGW_RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
	cfg.RateLimitFailOpen = getEnvBool("AVAPIGW_RATE_LIMIT_FAIL_OPEN", cfg.RateLimitFailOpen)
	cfg.RateLimitStoreType = getEnvOrDefault("AVAPIGW_RATE_LIMIT_STORE_TYPE", cfg.RateLimitStoreType)
	cfg.RedisAddress = getEnvOrDefault("AVAPIGW_REDIS_ADDRESS", cfg.RedisAddress)
	cfg.RedisPassword = getEnvOrDefault("AVAPIGW_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("AVAPIGW_REDIS_DB", cfg.RedisDB)

	cfg.CircuitBreakerEnabled = getEnvBool("AVAPIGW_CIRCUIT_BREAKER_ENABLED", cfg.CircuitBreakerEnabled)
	cfg.CircuitBreakerMaxFailures = getEnvInt("AVAPIGW_CIRCUIT_BREAKER_MAX_FAILURES", cfg.CircuitBreakerMaxFailures)
	cfg.CircuitBreakerOpenTimeout = getEnvDuration("AVAPIGW_CIRCUIT_BREAKER_OPEN_TIMEOUT", cfg.CircuitBreakerOpenTimeout)
	cfg.CircuitBreakerHalfOpenMax = getEnvInt("AVAPIGW_CIRCUIT_BREAKER_HALF_OPEN_MAX", cfg.CircuitBreakerHalfOpenMax)
	cfg.CircuitBreakerSuccessThreshold = getEnvInt("AVAPIGW_CIRCUIT_BREAKER_SUCCESS_THRESHOLD", cfg.CircuitBreakerSuccessThreshold)

	cfg.RetryEnabled = getEnvBool("AVAPIGW_RETRY_ENABLED", cfg.RetryEnabled)
	cfg.RetryMaxAttempts = getEnvInt("AVAPIGW_RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts)

	cfg.MaxIdleConns = getEnvInt("AVAPIGW_MAX_IDLE_CONNS", cfg.MaxIdleConns)
	cfg.MaxIdleConnsPerHost = getEnvInt("AVAPIGW_MAX_IDLE_CONNS_PER_HOST", cfg.MaxIdleConnsPerHost)
	cfg.MaxConnsPerHost = getEnvInt("AVAPIGW_MAX_CONNS_PER_HOST", cfg.MaxConnsPerHost)
	cfg.IdleConnTimeout = getEnvDuration("AVAPIGW_IDLE_CONN_TIMEOUT", cfg.IdleConnTimeout)

	cfg.HealthCheckInterval = getEnvDuration("AVAPIGW_HEALTH_CHECK_INTERVAL", cfg.HealthCheckInterval)
	cfg.HealthCheckTimeout = getEnvDuration("AVAPIGW_HEALTH_CHECK_TIMEOUT", cfg.HealthCheckTimeout)

	cfg.JWTEnabled = getEnvBool("AVAPIGW_JWT_ENABLED", cfg.JWTEnabled)
	cfg.JWTIssuer = getEnvOrDefault("AVAPIGW_JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudiences = getEnvStringSlice("AVAPIGW_JWT_AUDIENCES", cfg.JWTAudiences)
	cfg.JWKSURL = getEnvOrDefault("AVAPIGW_JWKS_URL", cfg.JWKSURL)
	cfg.JWKSCacheTTL = getEnvDuration("AVAPIGW_JWKS_CACHE_TTL", cfg.JWKSCacheTTL)
	cfg.JWTClockSkew = getEnvDuration("AVAPIGW_JWT_CLOCK_SKEW", cfg.JWTClockSkew)
	cfg.JWTAlgorithms = getEnvStringSlice("AVAPIGW_JWT_ALGORITHMS", cfg.JWTAlgorithms)
	cfg.JWTHMACSecret = getEnvOrDefault("AVAPIGW_JWT_HMAC_SECRET", cfg.JWTHMACSecret)
	cfg.JWTTokenHeader = getEnvOrDefault("AVAPIGW_JWT_TOKEN_HEADER", cfg.JWTTokenHeader)
	cfg.JWTTokenPrefix = getEnvOrDefault("AVAPIGW_JWT_TOKEN_PREFIX", cfg.JWTTokenPrefix)

	cfg.APIKeyEnabled = getEnvBool("AVAPIGW_API_KEY_ENABLED", cfg.APIKeyEnabled)
	cfg.APIKeyHeader = getEnvOrDefault("AVAPIGW_API_KEY_HEADER", cfg.APIKeyHeader)
	cfg.APIKeyQueryParam = getEnvOrDefault("AVAPIGW_API_KEY_QUERY_PARAM", cfg.APIKeyQueryParam)
	cfg.APIKeyHashMode = getEnvOrDefault("AVAPIGW_API_KEY_HASH_MODE", cfg.APIKeyHashMode)

	cfg.BasicAuthEnabled = getEnvBool("AVAPIGW_BASIC_AUTH_ENABLED", cfg.BasicAuthEnabled)
	cfg.BasicAuthRealm = getEnvOrDefault("AVAPIGW_BASIC_AUTH_REALM", cfg.BasicAuthRealm)

	cfg.SecurityHeadersEnabled = getEnvBool("AVAPIGW_SECURITY_HEADERS_ENABLED", cfg.SecurityHeadersEnabled)
	cfg.HSTSEnabled = getEnvBool("AVAPIGW_HSTS_ENABLED", cfg.HSTSEnabled)
	cfg.HSTSMaxAge = getEnvInt("AVAPIGW_HSTS_MAX_AGE", cfg.HSTSMaxAge)
	cfg.HSTSIncludeSubDomains = getEnvBool("AVAPIGW_HSTS_INCLUDE_SUBDOMAINS", cfg.HSTSIncludeSubDomains)
	cfg.XFrameOptions = getEnvOrDefault("AVAPIGW_X_FRAME_OPTIONS", cfg.XFrameOptions)
	cfg.XContentTypeOptions = getEnvOrDefault("AVAPIGW_X_CONTENT_TYPE_OPTIONS", cfg.XContentTypeOptions)
	cfg.ReferrerPolicy = getEnvOrDefault("AVAPIGW_REFERRER_POLICY", cfg.ReferrerPolicy)

	cfg.EventBusBrokerType = getEnvOrDefault("AVAPIGW_EVENTBUS_BROKER_TYPE", cfg.EventBusBrokerType)
	cfg.RabbitMQURL = getEnvOrDefault("AVAPIGW_RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.RabbitMQExchange = getEnvOrDefault("AVAPIGW_RABBITMQ_EXCHANGE", cfg.RabbitMQExchange)
	cfg.ServiceBusConn = getEnvOrDefault("AVAPIGW_SERVICEBUS_CONN", cfg.ServiceBusConn)
	cfg.ServiceBusTopic = getEnvOrDefault("AVAPIGW_SERVICEBUS_TOPIC", cfg.ServiceBusTopic)

	return cfg
}

// loadRoutingDocument loads the routing document from path (falling back to
// ResolveConfigPath's search locations when path is relative) and validates
// it, returning the parsed document alongside the compiled routes derived
// from it.
func loadRoutingDocument(path string, logger observability.Logger) (*config.LocalConfig, []config.Route, error) {
	resolved, err := config.ResolveConfigPath(path)
	if err != nil {
		resolved = path
	}

	loader := config.NewLoader()
	lc, err := loader.LoadWithIncludes(resolved)
	if err != nil {
		return nil, nil, err
	}

	routes, err := buildRoutes(lc)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("routing document loaded",
		observability.String("path", resolved),
		observability.Int("routes", len(lc.Routes)),
		observability.Int("backends", len(lc.Backends)),
		observability.Int("rate_limits", len(lc.RateLimits)),
		observability.Int("auth_policies", len(lc.AuthPolicies)),
	)

	return lc, routes, nil
}

// initTracer initializes the distributed tracer from the ambient config.
func initTracer(cfg *config.Config, logger observability.Logger) (*observability.Tracer, error) {
	tracerCfg := observability.TracerConfig{
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		Enabled:      cfg.TracingEnabled,
	}

	tracer, err := observability.NewTracer(tracerCfg)
	if err != nil {
		return nil, err
	}

	logger.Info("tracer initialized",
		observability.Bool("enabled", cfg.TracingEnabled),
		observability.String("exporter", cfg.TracingExporter),
		observability.String("endpoint", cfg.OTLPEndpoint),
	)

	return tracer, nil
}
