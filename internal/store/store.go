// Package store provides the distributed key/value store used by the
// schema mapper's lookup tables and the credential validator's token
// blacklist / API-key cache. It reuses internal/cache's Redis-or-memory
// engine rather than duplicating connection handling: a KV read/write with
// TTL is exactly what internal/cache already offers.
//
// The rate limiter's atomic counter needs (Increment/IncrementWithExpiry)
// are a different access pattern and continue to live in
// internal/ratelimit/store.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vyrodovalexey/avapigw/internal/cache"
	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// ErrNotFound is returned when a key has no value in the store.
var ErrNotFound = errors.New("store: key not found")

// Store is the distributed KV contract C3 (schema lookups) and C8
// (credential blacklist / API-key cache) depend on.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. ttl of 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key currently has a value.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases the underlying connection.
	Close() error
}

// cacheStore adapts a cache.Cache onto the Store contract.
type cacheStore struct {
	c cache.Cache
}

// New builds a Store backed by internal/cache (memory or Redis, selected by
// cfg.Type), so the distributed store, the JWT/API-key validation cache,
// and response caching (should a future component need it) share one pool.
func New(cfg *cache.CacheConfig, logger observability.Logger, opts ...cache.CacheOption) (Store, error) {
	c, err := cache.New(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}
	return &cacheStore{c: c}, nil
}

// Wrap adapts an already-constructed cache.Cache (e.g. one shared with
// response caching) onto the Store contract.
func Wrap(c cache.Cache) Store {
	return &cacheStore{c: c}
}

func (s *cacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.c.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *cacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.c.Set(ctx, key, value, ttl)
}

func (s *cacheStore) Delete(ctx context.Context, key string) error {
	return s.c.Delete(ctx, key)
}

func (s *cacheStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.c.Exists(ctx, key)
}

func (s *cacheStore) Close() error {
	return s.c.Close()
}
