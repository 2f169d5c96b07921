// Package config provides configuration management for the API Gateway.
// It supports loading configuration from environment variables and command-line flags,
// with environment variables taking precedence over flags.
package config

import (
	"fmt"
	"time"
)

// Config holds all ambient configuration settings for the API Gateway:
// listener ports, TLS, secrets bootstrap, observability, and the default
// policies applied when a route does not override them. Routing itself
// (services, routes, schema mappings) lives in the declarative document
// loaded by LoadRoutingDocument, not here.
type Config struct {
	// Server settings
	HTTPPort    int `json:"httpPort" yaml:"httpPort"`
	MetricsPort int `json:"metricsPort" yaml:"metricsPort"`
	HealthPort  int `json:"healthPort" yaml:"healthPort"`

	// Server timeouts
	ReadTimeout     time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout     time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`

	// TLS settings
	TLSEnabled  bool   `json:"tlsEnabled" yaml:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile" yaml:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile" yaml:"tlsKeyFile"`
	TLSCAFile   string `json:"tlsCAFile" yaml:"tlsCAFile"`

	// Secrets Provider settings
	SecretsProvider  string `json:"secretsProvider" yaml:"secretsProvider"`   // kubernetes, vault, local, env
	SecretsLocalPath string `json:"secretsLocalPath" yaml:"secretsLocalPath"` // base path for local provider
	SecretsEnvPrefix string `json:"secretsEnvPrefix" yaml:"secretsEnvPrefix"` // prefix for env provider

	// Observability - Logging
	LogLevel         string `json:"logLevel" yaml:"logLevel"`
	LogFormat        string `json:"logFormat" yaml:"logFormat"`
	LogOutput        string `json:"logOutput" yaml:"logOutput"`
	AccessLogEnabled bool   `json:"accessLogEnabled" yaml:"accessLogEnabled"`

	// Observability - Tracing
	TracingEnabled    bool    `json:"tracingEnabled" yaml:"tracingEnabled"`
	TracingExporter   string  `json:"tracingExporter" yaml:"tracingExporter"` // otlp-grpc, otlp-http
	OTLPEndpoint      string  `json:"otlpEndpoint" yaml:"otlpEndpoint"`
	TracingSampleRate float64 `json:"tracingSampleRate" yaml:"tracingSampleRate"`
	ServiceName       string  `json:"serviceName" yaml:"serviceName"`
	ServiceVersion    string  `json:"serviceVersion" yaml:"serviceVersion"`
	TracingInsecure   bool    `json:"tracingInsecure" yaml:"tracingInsecure"`

	// Observability - Metrics
	MetricsEnabled bool   `json:"metricsEnabled" yaml:"metricsEnabled"`
	MetricsPath    string `json:"metricsPath" yaml:"metricsPath"`

	// Rate limiting defaults, applied when a route does not set its own policy.
	RateLimitEnabled   bool          `json:"rateLimitEnabled" yaml:"rateLimitEnabled"`
	RateLimitRequests  int           `json:"rateLimitRequests" yaml:"rateLimitRequests"`
	RateLimitWindow    time.Duration `json:"rateLimitWindow" yaml:"rateLimitWindow"`
	RateLimitFailOpen  bool          `json:"rateLimitFailOpen" yaml:"rateLimitFailOpen"`
	RateLimitStoreType string        `json:"rateLimitStoreType" yaml:"rateLimitStoreType"` // memory, redis
	RedisAddress       string        `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword      string        `json:"redisPassword" yaml:"redisPassword"`
	RedisDB            int           `json:"redisDB" yaml:"redisDB"`

	// Circuit Breaker defaults
	CircuitBreakerEnabled          bool          `json:"circuitBreakerEnabled" yaml:"circuitBreakerEnabled"`
	CircuitBreakerMaxFailures      int           `json:"circuitBreakerMaxFailures" yaml:"circuitBreakerMaxFailures"`
	CircuitBreakerOpenTimeout      time.Duration `json:"circuitBreakerOpenTimeout" yaml:"circuitBreakerOpenTimeout"`
	CircuitBreakerHalfOpenMax      int           `json:"circuitBreakerHalfOpenMax" yaml:"circuitBreakerHalfOpenMax"`
	CircuitBreakerSuccessThreshold int           `json:"circuitBreakerSuccessThreshold" yaml:"circuitBreakerSuccessThreshold"`

	// Retry defaults
	RetryEnabled     bool            `json:"retryEnabled" yaml:"retryEnabled"`
	RetryMaxAttempts int             `json:"retryMaxAttempts" yaml:"retryMaxAttempts"`
	RetryBackoffs    []time.Duration `json:"retryBackoffs" yaml:"retryBackoffs"`

	// Backend pool settings
	MaxIdleConns        int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	MaxIdleConnsPerHost int           `json:"maxIdleConnsPerHost" yaml:"maxIdleConnsPerHost"`
	MaxConnsPerHost     int           `json:"maxConnsPerHost" yaml:"maxConnsPerHost"`
	IdleConnTimeout     time.Duration `json:"idleConnTimeout" yaml:"idleConnTimeout"`

	// Health check settings
	HealthCheckInterval time.Duration `json:"healthCheckInterval" yaml:"healthCheckInterval"`
	HealthCheckTimeout  time.Duration `json:"healthCheckTimeout" yaml:"healthCheckTimeout"`

	// Health server timeouts
	HealthServerReadTimeout     time.Duration `json:"healthServerReadTimeout" yaml:"healthServerReadTimeout"`
	HealthServerWriteTimeout    time.Duration `json:"healthServerWriteTimeout" yaml:"healthServerWriteTimeout"`
	HealthServerShutdownTimeout time.Duration `json:"healthServerShutdownTimeout" yaml:"healthServerShutdownTimeout"`

	// Metrics server timeouts
	MetricsServerReadTimeout     time.Duration `json:"metricsServerReadTimeout" yaml:"metricsServerReadTimeout"`
	MetricsServerWriteTimeout    time.Duration `json:"metricsServerWriteTimeout" yaml:"metricsServerWriteTimeout"`
	MetricsServerShutdownTimeout time.Duration `json:"metricsServerShutdownTimeout" yaml:"metricsServerShutdownTimeout"`

	// Readiness/Liveness probe timeouts
	ReadinessProbeTimeout time.Duration `json:"readinessProbeTimeout" yaml:"readinessProbeTimeout"`
	LivenessProbeTimeout  time.Duration `json:"livenessProbeTimeout" yaml:"livenessProbeTimeout"`

	// Authentication - JWT
	JWTEnabled     bool          `json:"jwtEnabled" yaml:"jwtEnabled"`
	JWTIssuer      string        `json:"jwtIssuer" yaml:"jwtIssuer"`
	JWTAudiences   []string      `json:"jwtAudiences" yaml:"jwtAudiences"`
	JWKSURL        string        `json:"jwksUrl" yaml:"jwksUrl"`
	JWKSCacheTTL   time.Duration `json:"jwksCacheTtl" yaml:"jwksCacheTtl"`
	JWTClockSkew   time.Duration `json:"jwtClockSkew" yaml:"jwtClockSkew"`
	JWTAlgorithms  []string      `json:"jwtAlgorithms" yaml:"jwtAlgorithms"`
	JWTHMACSecret  string        `json:"jwtHmacSecret" yaml:"jwtHmacSecret"`
	JWTTokenHeader string        `json:"jwtTokenHeader" yaml:"jwtTokenHeader"`
	JWTTokenPrefix string        `json:"jwtTokenPrefix" yaml:"jwtTokenPrefix"`

	// Authentication - API Key
	APIKeyEnabled    bool   `json:"apiKeyEnabled" yaml:"apiKeyEnabled"`
	APIKeyHeader     string `json:"apiKeyHeader" yaml:"apiKeyHeader"`
	APIKeyQueryParam string `json:"apiKeyQueryParam" yaml:"apiKeyQueryParam"`
	APIKeyHashMode   string `json:"apiKeyHashMode" yaml:"apiKeyHashMode"` // sha256, sha512, bcrypt, plaintext

	// Authentication - Basic Auth (control-plane admin listing only, never
	// on the proxied request path).
	BasicAuthEnabled bool   `json:"basicAuthEnabled" yaml:"basicAuthEnabled"`
	BasicAuthRealm   string `json:"basicAuthRealm" yaml:"basicAuthRealm"`

	// Security Headers
	SecurityHeadersEnabled bool   `json:"securityHeadersEnabled" yaml:"securityHeadersEnabled"`
	HSTSEnabled            bool   `json:"hstsEnabled" yaml:"hstsEnabled"`
	HSTSMaxAge             int    `json:"hstsMaxAge" yaml:"hstsMaxAge"`
	HSTSIncludeSubDomains  bool   `json:"hstsIncludeSubDomains" yaml:"hstsIncludeSubDomains"`
	XFrameOptions          string `json:"xFrameOptions" yaml:"xFrameOptions"`
	XContentTypeOptions    string `json:"xContentTypeOptions" yaml:"xContentTypeOptions"`
	ReferrerPolicy         string `json:"referrerPolicy" yaml:"referrerPolicy"`

	// EventBus settings: selects which backend adapter publishes outcome events.
	EventBusBrokerType string `json:"eventBusBrokerType" yaml:"eventBusBrokerType"` // classic-broker, managed-bus
	RabbitMQURL        string `json:"rabbitMqUrl" yaml:"rabbitMqUrl"`
	RabbitMQExchange   string `json:"rabbitMqExchange" yaml:"rabbitMqExchange"`
	ServiceBusConn     string `json:"serviceBusConn" yaml:"serviceBusConn"`
	ServiceBusTopic    string `json:"serviceBusTopic" yaml:"serviceBusTopic"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		HTTPPort:    8080,
		MetricsPort: 9091,
		HealthPort:  8081,

		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,

		TLSEnabled:  false,
		TLSCertFile: "",
		TLSKeyFile:  "",
		TLSCAFile:   "",

		SecretsProvider:  "",
		SecretsLocalPath: "/etc/avapigw/secrets",
		SecretsEnvPrefix: "AVAPIGW_SECRET_",

		LogLevel:         "info",
		LogFormat:        "json",
		LogOutput:        "stdout",
		AccessLogEnabled: true,

		TracingEnabled:    false,
		TracingExporter:   "otlp-grpc",
		OTLPEndpoint:      "localhost:4317",
		TracingSampleRate: 1.0,
		ServiceName:       "avapigw",
		ServiceVersion:    "1.0.0",
		TracingInsecure:   true,

		MetricsEnabled: true,
		MetricsPath:    "/metrics",

		RateLimitEnabled:   false,
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
		RateLimitFailOpen:  false,
		RateLimitStoreType: "memory",
		RedisAddress:       "localhost:6379",

		CircuitBreakerEnabled:          false,
		CircuitBreakerMaxFailures:      5,
		CircuitBreakerOpenTimeout:      30 * time.Second,
		CircuitBreakerHalfOpenMax:      3,
		CircuitBreakerSuccessThreshold: 2,

		RetryEnabled:     false,
		RetryMaxAttempts: 3,
		RetryBackoffs:    []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second},

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,

		HealthCheckInterval: 10 * time.Second,
		HealthCheckTimeout:  5 * time.Second,

		HealthServerReadTimeout:     5 * time.Second,
		HealthServerWriteTimeout:    5 * time.Second,
		HealthServerShutdownTimeout: 5 * time.Second,

		MetricsServerReadTimeout:     5 * time.Second,
		MetricsServerWriteTimeout:    10 * time.Second,
		MetricsServerShutdownTimeout: 5 * time.Second,

		ReadinessProbeTimeout: 5 * time.Second,
		LivenessProbeTimeout:  10 * time.Second,

		JWTEnabled:     false,
		JWKSCacheTTL:   time.Hour,
		JWTClockSkew:   time.Minute,
		JWTAlgorithms:  []string{"RS256", "RS384", "RS512"},
		JWTTokenHeader: "Authorization",
		JWTTokenPrefix: "Bearer ",

		APIKeyEnabled:    false,
		APIKeyHeader:     "X-API-Key",
		APIKeyQueryParam: "api_key",
		APIKeyHashMode:   "sha256",

		BasicAuthEnabled: false,
		BasicAuthRealm:   "Restricted",

		SecurityHeadersEnabled: true,
		HSTSEnabled:            true,
		HSTSMaxAge:             31536000, // 1 year
		HSTSIncludeSubDomains:  true,
		XFrameOptions:          "DENY",
		XContentTypeOptions:    "nosniff",
		ReferrerPolicy:         "strict-origin-when-cross-origin",

		EventBusBrokerType: "classic-broker",
		RabbitMQExchange:   "avapigw.events",
		ServiceBusTopic:    "avapigw-events",
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if err := validatePort(c.HTTPPort, "HTTPPort"); err != nil {
		return err
	}
	if err := validatePort(c.MetricsPort, "MetricsPort"); err != nil {
		return err
	}
	if err := validatePort(c.HealthPort, "HealthPort"); err != nil {
		return err
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLSCertFile is required when TLS is enabled")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLSKeyFile is required when TLS is enabled")
		}
	}

	if err := c.validateSecretsProvider(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateTracing(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateCircuitBreakerAndRetry(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateJWT(); err != nil {
		return err
	}
	if err := c.validateSecurityHeaders(); err != nil {
		return err
	}
	return c.validateEventBus()
}

func (c *Config) validateSecretsProvider() error {
	if c.SecretsProvider == "" {
		return nil
	}
	validProviders := map[string]bool{"kubernetes": true, "vault": true, "local": true, "env": true}
	if !validProviders[c.SecretsProvider] {
		return fmt.Errorf("invalid SecretsProvider: %s, must be one of: kubernetes, vault, local, env", c.SecretsProvider)
	}
	return nil
}

func (c *Config) validateLogging() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid LogLevel: %s, must be one of: debug, info, warn, error", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid LogFormat: %s, must be one of: json, console", c.LogFormat)
	}
	validLogOutputs := map[string]bool{"stdout": true, "stderr": true}
	if c.LogOutput != "" && !validLogOutputs[c.LogOutput] {
		if c.LogOutput[0] != '/' && c.LogOutput[0] != '.' {
			return fmt.Errorf("invalid LogOutput: %s, must be stdout, stderr, or a file path", c.LogOutput)
		}
	}
	return nil
}

func (c *Config) validateTracing() error {
	if !c.TracingEnabled {
		return nil
	}
	if c.OTLPEndpoint == "" {
		return fmt.Errorf("OTLPEndpoint is required when tracing is enabled")
	}
	validExporters := map[string]bool{"otlp-grpc": true, "otlp-http": true}
	if !validExporters[c.TracingExporter] {
		return fmt.Errorf("invalid TracingExporter: %s, must be one of: otlp-grpc, otlp-http", c.TracingExporter)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("TracingSampleRate must be between 0.0 and 1.0")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if !c.RateLimitEnabled {
		return nil
	}
	validStoreTypes := map[string]bool{"memory": true, "redis": true}
	if !validStoreTypes[c.RateLimitStoreType] {
		return fmt.Errorf("invalid RateLimitStoreType: %s, must be one of: memory, redis", c.RateLimitStoreType)
	}
	if c.RateLimitStoreType == "redis" && c.RedisAddress == "" {
		return fmt.Errorf("RedisAddress is required when rate limit store type is redis")
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RateLimitRequests must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RateLimitWindow must be positive")
	}
	return nil
}

func (c *Config) validateCircuitBreakerAndRetry() error {
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerMaxFailures <= 0 {
			return fmt.Errorf("CircuitBreakerMaxFailures must be positive")
		}
		if c.CircuitBreakerOpenTimeout <= 0 {
			return fmt.Errorf("CircuitBreakerOpenTimeout must be positive")
		}
		if c.CircuitBreakerHalfOpenMax <= 0 {
			return fmt.Errorf("CircuitBreakerHalfOpenMax must be positive")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return fmt.Errorf("CircuitBreakerSuccessThreshold must be positive")
		}
	}
	if c.RetryEnabled {
		if c.RetryMaxAttempts < 0 {
			return fmt.Errorf("RetryMaxAttempts must be non-negative")
		}
		if len(c.RetryBackoffs) == 0 {
			return fmt.Errorf("RetryBackoffs must not be empty when retry is enabled")
		}
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("ReadTimeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("WriteTimeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("IdleTimeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("ShutdownTimeout must be positive")
	}
	if c.HealthServerReadTimeout <= 0 {
		return fmt.Errorf("HealthServerReadTimeout must be positive")
	}
	if c.HealthServerWriteTimeout <= 0 {
		return fmt.Errorf("HealthServerWriteTimeout must be positive")
	}
	if c.HealthServerShutdownTimeout <= 0 {
		return fmt.Errorf("HealthServerShutdownTimeout must be positive")
	}
	if c.MetricsServerReadTimeout <= 0 {
		return fmt.Errorf("MetricsServerReadTimeout must be positive")
	}
	if c.MetricsServerWriteTimeout <= 0 {
		return fmt.Errorf("MetricsServerWriteTimeout must be positive")
	}
	if c.MetricsServerShutdownTimeout <= 0 {
		return fmt.Errorf("MetricsServerShutdownTimeout must be positive")
	}
	if c.ReadinessProbeTimeout <= 0 {
		return fmt.Errorf("ReadinessProbeTimeout must be positive")
	}
	if c.LivenessProbeTimeout <= 0 {
		return fmt.Errorf("LivenessProbeTimeout must be positive")
	}
	if c.MaxIdleConns <= 0 {
		return fmt.Errorf("MaxIdleConns must be positive")
	}
	if c.MaxIdleConnsPerHost <= 0 {
		return fmt.Errorf("MaxIdleConnsPerHost must be positive")
	}
	if c.MaxConnsPerHost <= 0 {
		return fmt.Errorf("MaxConnsPerHost must be positive")
	}
	return nil
}

func (c *Config) validateJWT() error {
	if !c.JWTEnabled {
		return nil
	}
	if c.JWKSURL == "" && c.JWTIssuer == "" && c.JWTHMACSecret == "" {
		return fmt.Errorf("one of JWKSURL, JWTIssuer, or JWTHMACSecret is required when JWT is enabled")
	}
	if c.JWKSCacheTTL <= 0 {
		return fmt.Errorf("JWKSCacheTTL must be positive")
	}
	if c.JWTClockSkew < 0 {
		return fmt.Errorf("JWTClockSkew must be non-negative")
	}
	return nil
}

func (c *Config) validateSecurityHeaders() error {
	if !c.SecurityHeadersEnabled {
		return nil
	}
	if c.HSTSEnabled && c.HSTSMaxAge < 0 {
		return fmt.Errorf("HSTSMaxAge must be non-negative")
	}
	validXFrameOptions := map[string]bool{"": true, "DENY": true, "SAMEORIGIN": true}
	if !validXFrameOptions[c.XFrameOptions] {
		return fmt.Errorf("invalid XFrameOptions: %s, must be one of: DENY, SAMEORIGIN", c.XFrameOptions)
	}
	return nil
}

func (c *Config) validateEventBus() error {
	validBrokers := map[string]bool{"classic-broker": true, "managed-bus": true}
	if !validBrokers[c.EventBusBrokerType] {
		return fmt.Errorf("invalid EventBusBrokerType: %s, must be one of: classic-broker, managed-bus", c.EventBusBrokerType)
	}
	if c.EventBusBrokerType == "classic-broker" && c.RabbitMQURL == "" {
		return fmt.Errorf("RabbitMQURL is required when EventBusBrokerType is classic-broker")
	}
	if c.EventBusBrokerType == "managed-bus" && c.ServiceBusConn == "" {
		return fmt.Errorf("ServiceBusConn is required when EventBusBrokerType is managed-bus")
	}
	return nil
}

// validatePort validates that a port number is within valid range.
func validatePort(port int, name string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// String returns a string representation of the config (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{HTTPPort: %d, MetricsPort: %d, HealthPort: %d, TLSEnabled: %t, LogLevel: %s, TracingEnabled: %t, EventBus: %s}",
		c.HTTPPort, c.MetricsPort, c.HealthPort, c.TLSEnabled, c.LogLevel, c.TracingEnabled, c.EventBusBrokerType,
	)
}
