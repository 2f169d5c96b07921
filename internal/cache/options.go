package cache

import (
	"context"
	"net"

	"github.com/vyrodovalexey/avapigw/internal/vault"
)

// cacheOptions holds optional dependencies for cache construction.
type cacheOptions struct {
	vaultClient vault.Client
	redisDialer func(ctx context.Context, network, addr string) (net.Conn, error)
}

// CacheOption configures optional cache dependencies.
type CacheOption func(*cacheOptions)

// WithVaultClient injects a Vault client used to resolve Redis passwords
// referenced by PasswordVaultPath/SentinelPasswordVaultPath.
func WithVaultClient(client vault.Client) CacheOption {
	return func(o *cacheOptions) {
		o.vaultClient = client
	}
}

// WithRedisDialer overrides the network dialer used by the Redis client,
// primarily for tests that need to reach a containerized Redis instance.
func WithRedisDialer(dialer func(ctx context.Context, network, addr string) (net.Conn, error)) CacheOption {
	return func(o *cacheOptions) {
		o.redisDialer = dialer
	}
}

func buildCacheOptions(opts []CacheOption) *cacheOptions {
	o := &cacheOptions{}
	for _, apply := range opts {
		apply(o)
	}
	return o
}
