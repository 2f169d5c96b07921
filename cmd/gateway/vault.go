package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/avapigw/internal/observability"
	"github.com/vyrodovalexey/avapigw/internal/retry"
	"github.com/vyrodovalexey/avapigw/internal/vault"
)

// newZapLogger builds a raw *zap.Logger matching the gateway's ambient log
// level/format. A handful of packages below internal/observability (vault,
// ratelimit) predate the observability.Logger wrapper and still take zap
// directly.
func newZapLogger(logLevel, logFormat string) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	if logFormat == "console" {
		zcfg.Encoding = "console"
	}

	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// initVaultClient creates and authenticates a Vault client using environment
// variables, mirroring the standard Vault CLI/SDK variable names: VAULT_ADDR,
// VAULT_TOKEN, VAULT_CACERT, VAULT_CAPATH, VAULT_CLIENT_CERT, VAULT_CLIENT_KEY,
// VAULT_SKIP_VERIFY, VAULT_NAMESPACE. For Kubernetes deployments, set
// VAULT_AUTH_METHOD=kubernetes and VAULT_K8S_ROLE.
//
// Returns a nil client when VAULT_ADDR is unset; Vault integration is
// optional (cache/JWT-signing/credential components treat a nil client as
// "Vault disabled").
func initVaultClient(zapLogger *zap.Logger, logger observability.Logger) vault.Client {
	address := os.Getenv("VAULT_ADDR")
	if address == "" {
		return nil
	}

	authMethod := vault.AuthMethod(getEnvOrDefault("VAULT_AUTH_METHOD", "token"))

	vaultCfg := &vault.Config{
		Enabled:    true,
		Address:    address,
		AuthMethod: authMethod,
		Token:      os.Getenv("VAULT_TOKEN"),
		Namespace:  os.Getenv("VAULT_NAMESPACE"),
	}

	caCert := os.Getenv("VAULT_CACERT")
	caPath := os.Getenv("VAULT_CAPATH")
	clientCert := os.Getenv("VAULT_CLIENT_CERT")
	clientKey := os.Getenv("VAULT_CLIENT_KEY")
	skipVerify, _ := strconv.ParseBool(os.Getenv("VAULT_SKIP_VERIFY"))

	if caCert != "" || caPath != "" || clientCert != "" || clientKey != "" || skipVerify {
		vaultCfg.TLS = &vault.VaultTLSConfig{
			CACert:     caCert,
			CAPath:     caPath,
			ClientCert: clientCert,
			ClientKey:  clientKey,
			SkipVerify: skipVerify,
		}
	}

	if authMethod == vault.AuthMethodKubernetes {
		vaultCfg.Kubernetes = &vault.KubernetesAuthConfig{
			Role:      os.Getenv("VAULT_K8S_ROLE"),
			MountPath: getEnvOrDefault("VAULT_K8S_MOUNT_PATH", "kubernetes"),
			TokenPath: getEnvOrDefault("VAULT_K8S_TOKEN_PATH", "/var/run/secrets/kubernetes.io/serviceaccount/token"),
		}
	}

	if authMethod == vault.AuthMethodAppRole {
		vaultCfg.AppRole = &vault.AppRoleAuthConfig{
			RoleID:    os.Getenv("VAULT_APPROLE_ROLE_ID"),
			SecretID:  os.Getenv("VAULT_APPROLE_SECRET_ID"),
			MountPath: getEnvOrDefault("VAULT_APPROLE_MOUNT_PATH", "approle"),
		}
	}

	client, err := vault.New(vaultCfg, zapLogger)
	if err != nil {
		logger.Error("failed to create vault client", observability.Error(err))
		return nil
	}

	authRetryCfg := &retry.Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     10 * time.Second,
		JitterFactor:   retry.DefaultJitterFactor,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	authErr := retry.Do(ctx, authRetryCfg, func() error {
		return client.Authenticate(ctx)
	}, &retry.Options{
		OnRetry: func(attempt int, retryErr error, backoff time.Duration) {
			logger.Warn("vault authentication failed, retrying",
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(retryErr),
			)
		},
	})
	if authErr != nil {
		_ = client.Close()
		logger.Error("failed to authenticate with vault after retries", observability.Error(authErr))
		return nil
	}

	logger.Info("vault client initialized",
		observability.String("address", address),
		observability.String("auth_method", string(authMethod)),
	)

	return client
}
