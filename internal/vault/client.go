package vault

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// Client timeout constants.
const (
	// DefaultTokenRenewalTimeout is the timeout for token renewal operations.
	DefaultTokenRenewalTimeout = 30 * time.Second

	// DefaultCloseTimeout bounds how long Close waits for the renewal loop to stop.
	DefaultCloseTimeout = 5 * time.Second

	// MinRenewalInterval is the minimum interval between token renewals.
	MinRenewalInterval = time.Minute

	// DefaultServiceAccountTokenPath is the standard Kubernetes service account
	// token path used by kubernetes auth.
	DefaultServiceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"
)

// BootstrapSecrets is the payload read from Config.SecretPath at startup.
// Fields are optional; an empty value means the caller should fall back to
// its own configuration (e.g. a locally configured HMAC secret).
type BootstrapSecrets struct {
	JWTSigningKey string
	APIKeySeed    string
}

// Client provides the minimal Vault surface the gateway needs: authenticate
// once at startup, keep the lease renewed, and read the bootstrap secret.
type Client interface {
	// IsEnabled returns true if Vault is enabled.
	IsEnabled() bool

	// Authenticate authenticates with Vault and starts token renewal.
	Authenticate(ctx context.Context) error

	// RenewToken renews the current token.
	RenewToken(ctx context.Context) error

	// Health returns Vault health status.
	Health(ctx context.Context) (*HealthStatus, error)

	// ReadBootstrapSecrets reads the gateway's bootstrap secret from
	// Config.SecretPath (KV v2).
	ReadBootstrapSecrets(ctx context.Context) (*BootstrapSecrets, error)

	// Close closes the client and stops background renewal.
	Close() error
}

// HealthStatus represents Vault health status.
type HealthStatus struct {
	Initialized bool
	Sealed      bool
	Standby     bool
	Version     string
	ClusterName string
	ClusterID   string
}

// vaultClient implements Client.
type vaultClient struct {
	config *Config
	api    *vaultapi.Client
	logger *zap.Logger

	tokenTTL    atomic.Int64
	tokenExpiry atomic.Int64

	mu        sync.RWMutex
	closed    bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New creates a new Vault client. If cfg.Enabled is false, a disabled no-op
// client is returned so callers never need a nil check.
func New(cfg *Config, logger *zap.Logger) (Client, error) {
	if cfg == nil {
		return nil, NewConfigurationError("", "configuration is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return &disabledClient{}, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	apiConfig := vaultapi.DefaultConfig()
	apiConfig.Address = cfg.Address

	if cfg.TLS != nil {
		tlsConfig := &vaultapi.TLSConfig{
			CACert:     cfg.TLS.CACert,
			CAPath:     cfg.TLS.CAPath,
			ClientCert: cfg.TLS.ClientCert,
			ClientKey:  cfg.TLS.ClientKey,
			Insecure:   cfg.TLS.SkipVerify,
		}
		if err := apiConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, NewConfigurationErrorWithCause("tls", "failed to configure TLS", err)
		}
	}

	api, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, NewVaultErrorWithCause("init", "", "failed to create vault client", err)
	}
	if cfg.Namespace != "" {
		api.SetNamespace(cfg.Namespace)
	}

	return &vaultClient{
		config:    cfg,
		api:       api,
		logger:    logger.With(zap.String("component", "vault")),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}, nil
}

func (c *vaultClient) IsEnabled() bool { return true }

// Authenticate authenticates with Vault using the configured auth method and
// starts the background token renewal loop.
func (c *vaultClient) Authenticate(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClientClosed
	}
	c.mu.RUnlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	start := time.Now()
	var err error
	switch c.config.AuthMethod {
	case AuthMethodToken:
		err = c.authenticateWithToken(ctx)
	case AuthMethodKubernetes:
		err = c.authenticateWithKubernetes(ctx)
	case AuthMethodAppRole:
		err = c.authenticateWithAppRole(ctx)
	default:
		err = NewConfigurationError("authMethod", "unsupported auth method: "+string(c.config.AuthMethod))
	}

	if err != nil {
		return err
	}

	c.logger.Info("authenticated with vault",
		zap.String("method", string(c.config.AuthMethod)),
		zap.Duration("duration", time.Since(start)),
	)

	go c.tokenRenewalLoop()
	return nil
}

func (c *vaultClient) authenticateWithToken(_ context.Context) error {
	if c.config.Token == "" {
		return NewConfigurationError("token", "token is required for token authentication")
	}
	c.api.SetToken(c.config.Token)
	return nil
}

func (c *vaultClient) authenticateWithKubernetes(ctx context.Context) error {
	k8s := c.config.Kubernetes
	jwt, err := os.ReadFile(k8s.GetTokenPath())
	if err != nil {
		return NewVaultErrorWithCause("authenticate", "", "failed to read service account token", err)
	}

	path := fmt.Sprintf("auth/%s/login", k8s.GetMountPath())
	secret, err := c.api.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"role": k8s.Role,
		"jwt":  string(jwt),
	})
	if err != nil {
		return NewVaultErrorWithCause("authenticate", path, "kubernetes auth failed", err)
	}
	return c.applyAuthSecret(secret)
}

func (c *vaultClient) authenticateWithAppRole(ctx context.Context) error {
	ar := c.config.AppRole
	path := fmt.Sprintf("auth/%s/login", ar.GetMountPath())
	secret, err := c.api.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"role_id":   ar.RoleID,
		"secret_id": ar.SecretID,
	})
	if err != nil {
		return NewVaultErrorWithCause("authenticate", path, "approle auth failed", err)
	}
	return c.applyAuthSecret(secret)
}

func (c *vaultClient) applyAuthSecret(secret *vaultapi.Secret) error {
	if secret == nil || secret.Auth == nil {
		return NewVaultErrorWithCause("authenticate", "", "empty auth response", ErrAuthenticationFailed)
	}
	c.api.SetToken(secret.Auth.ClientToken)
	c.tokenTTL.Store(int64(secret.Auth.LeaseDuration))
	c.tokenExpiry.Store(time.Now().Add(time.Duration(secret.Auth.LeaseDuration) * time.Second).Unix())
	return nil
}

// RenewToken renews the current token.
func (c *vaultClient) RenewToken(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClientClosed
	}
	c.mu.RUnlock()

	secret, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
	if err != nil {
		return NewVaultErrorWithCause("renew_token", "", "failed to renew token", err)
	}
	if secret != nil && secret.Auth != nil {
		c.tokenTTL.Store(int64(secret.Auth.LeaseDuration))
		c.tokenExpiry.Store(time.Now().Add(time.Duration(secret.Auth.LeaseDuration) * time.Second).Unix())
	}
	c.logger.Debug("token renewed", zap.Int64("ttl_seconds", c.tokenTTL.Load()))
	return nil
}

// Health returns Vault health status.
func (c *vaultClient) Health(ctx context.Context) (*HealthStatus, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrClientClosed
	}
	c.mu.RUnlock()

	health, err := c.api.Sys().HealthWithContext(ctx)
	if err != nil {
		return nil, NewVaultErrorWithCause("health", "", "failed to get health status", err)
	}
	return &HealthStatus{
		Initialized: health.Initialized,
		Sealed:      health.Sealed,
		Standby:     health.Standby,
		Version:     health.Version,
		ClusterName: health.ClusterName,
		ClusterID:   health.ClusterID,
	}, nil
}

// ReadBootstrapSecrets reads the gateway's bootstrap secret from KV v2.
func (c *vaultClient) ReadBootstrapSecrets(ctx context.Context) (*BootstrapSecrets, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrClientClosed
	}
	c.mu.RUnlock()

	if c.config.SecretPath == "" {
		return &BootstrapSecrets{}, nil
	}

	secret, err := c.api.Logical().ReadWithContext(ctx, c.config.SecretPath)
	if err != nil {
		return nil, NewVaultErrorWithCause("read_secret", c.config.SecretPath, "failed to read secret", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, NewVaultErrorWithCause("read_secret", c.config.SecretPath, "secret not found", ErrSecretNotFound)
	}

	// KV v2 wraps the payload under a "data" key.
	data, _ := secret.Data["data"].(map[string]interface{})
	if data == nil {
		data = secret.Data
	}

	out := &BootstrapSecrets{}
	if v, ok := data["jwt_signing_key"].(string); ok {
		out.JWTSigningKey = v
	}
	if v, ok := data["api_key_seed"].(string); ok {
		out.APIKeySeed = v
	}
	return out, nil
}

// Close closes the client and stops background renewal.
func (c *vaultClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stopCh)
	select {
	case <-c.stoppedCh:
	case <-time.After(DefaultCloseTimeout):
		c.logger.Warn("timeout waiting for token renewal to stop")
	}
	c.logger.Info("vault client closed")
	return nil
}

func (c *vaultClient) tokenRenewalLoop() {
	defer close(c.stoppedCh)

	interval := c.calculateRenewalInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), DefaultTokenRenewalTimeout)
			if err := c.RenewToken(ctx); err != nil {
				c.logger.Error("failed to renew vault token", zap.Error(err))
			}
			cancel()

			if newInterval := c.calculateRenewalInterval(); newInterval > 0 && newInterval != interval {
				interval = newInterval
				ticker.Reset(interval)
			}
		}
	}
}

func (c *vaultClient) calculateRenewalInterval() time.Duration {
	ttl := c.tokenTTL.Load()
	if ttl <= 0 {
		return 0
	}
	interval := time.Duration(ttl*2/3) * time.Second
	if interval < MinRenewalInterval {
		interval = MinRenewalInterval
	}
	return interval
}

func (c *vaultClient) getRetryConfig() *RetryConfig {
	if c.config.Retry != nil {
		return c.config.Retry
	}
	return DefaultRetryConfig()
}

// disabledClient is returned when Vault integration is turned off; every
// call fails fast with ErrVaultDisabled instead of requiring nil checks
// throughout the bootstrap path.
type disabledClient struct{}

func (c *disabledClient) IsEnabled() bool                      { return false }
func (c *disabledClient) Authenticate(_ context.Context) error { return ErrVaultDisabled }
func (c *disabledClient) RenewToken(_ context.Context) error   { return ErrVaultDisabled }
func (c *disabledClient) Health(_ context.Context) (*HealthStatus, error) {
	return nil, ErrVaultDisabled
}
func (c *disabledClient) ReadBootstrapSecrets(_ context.Context) (*BootstrapSecrets, error) {
	return &BootstrapSecrets{}, nil
}
func (c *disabledClient) Close() error { return nil }

var (
	_ Client = (*vaultClient)(nil)
	_ Client = (*disabledClient)(nil)
)
