package jwt

import (
	"context"
	"crypto"
	cryptorand "crypto/rand"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/vyrodovalexey/avapigw/internal/observability"
)

// KeySet resolves a key ID (and, for GetKeyForAlgorithm, an algorithm
// family) to a public key usable for signature verification. The
// validator composes one or more KeySets (JWKS endpoint, static
// configuration) behind a single CompositeKeySet.
type KeySet interface {
	GetKey(ctx context.Context, keyID string) (crypto.PublicKey, error)
	GetKeyForAlgorithm(ctx context.Context, keyID, algorithm string) (crypto.PublicKey, error)
	Refresh(ctx context.Context) error
	Close() error
}

// RetryConfig controls the backoff schedule used when fetching a remote
// JWKS document fails.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
	}
}

// KeySetStats reports counters for a JWKS-backed key set.
type KeySetStats struct {
	URL       string
	KeyCount  int
	Refreshes int64
	Errors    int64
}

// jwksKeySet fetches and caches a JSON Web Key Set from a remote URL,
// using github.com/lestrrat-go/jwx/v2/jwk to parse keys.
type jwksKeySet struct {
	url        string
	httpClient *http.Client
	cacheTTL   time.Duration
	retry      RetryConfig
	logger     observability.Logger

	mu          sync.RWMutex
	set         jwk.Set
	lastRefresh time.Time
	refreshes   int64
	errors      int64
}

// JWKSKeySetOption configures a jwksKeySet.
type JWKSKeySetOption func(*jwksKeySet)

// WithHTTPClient overrides the HTTP client used to fetch the JWKS document.
func WithHTTPClient(client *http.Client) JWKSKeySetOption {
	return func(ks *jwksKeySet) {
		if client != nil {
			ks.httpClient = client
		}
	}
}

// WithCacheTTL sets how long a fetched JWKS document is considered fresh.
func WithCacheTTL(ttl time.Duration) JWKSKeySetOption {
	return func(ks *jwksKeySet) {
		if ttl > 0 {
			ks.cacheTTL = ttl
		}
	}
}

// WithJWKSLogger sets the key set's logger.
func WithJWKSLogger(logger observability.Logger) JWKSKeySetOption {
	return func(ks *jwksKeySet) {
		if logger != nil {
			ks.logger = logger
		}
	}
}

// WithRetryConfig overrides the fetch retry/backoff schedule.
func WithRetryConfig(cfg RetryConfig) JWKSKeySetOption {
	return func(ks *jwksKeySet) {
		ks.retry = cfg
	}
}

// NewJWKSKeySet creates a KeySet backed by a remote JWKS endpoint. Keys
// are fetched lazily on first use and refreshed once cacheTTL elapses.
func NewJWKSKeySet(url string, opts ...JWKSKeySetOption) (*jwksKeySet, error) {
	if url == "" {
		return nil, fmt.Errorf("jwks url is required")
	}

	ks := &jwksKeySet{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cacheTTL:   15 * time.Minute,
		retry:      defaultRetryConfig(),
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(ks)
	}
	return ks, nil
}

// fetchJWKS performs a single HTTP round trip and parses the response.
func (ks *jwksKeySet) fetchJWKS(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build JWKS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ks.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return set, nil
}

// retryingFetch retries fetchJWKS with exponential backoff and jitter,
// aborting early if ctx is canceled while waiting between attempts.
func (ks *jwksKeySet) retryingFetch(ctx context.Context) (jwk.Set, error) {
	interval := ks.retry.InitialInterval
	var lastErr error

	for attempt := 0; attempt < ks.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			jitter := time.Duration(secureRandomFloat() * float64(interval) * 0.25)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval + jitter):
			}
			interval = time.Duration(float64(interval) * ks.retry.Multiplier)
			if interval > ks.retry.MaxInterval {
				interval = ks.retry.MaxInterval
			}
		}

		set, err := ks.fetchJWKS(ctx)
		if err == nil {
			return set, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// performRefresh refreshes the cached key set in the background, logging
// failures rather than returning them.
func (ks *jwksKeySet) performRefresh() {
	set, err := ks.retryingFetch(context.Background())

	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.refreshes++
	if err != nil {
		ks.errors++
		ks.logger.Warn("jwks refresh failed",
			observability.String("url", ks.url),
			observability.Error(err),
		)
		return
	}
	ks.set = set
	ks.lastRefresh = time.Now()
}

// Refresh fetches the JWKS document, returning any error to the caller.
func (ks *jwksKeySet) Refresh(ctx context.Context) error {
	set, err := ks.retryingFetch(ctx)

	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.refreshes++
	if err != nil {
		ks.errors++
		return err
	}
	ks.set = set
	ks.lastRefresh = time.Now()
	return nil
}

func (ks *jwksKeySet) isStale() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.set == nil || time.Since(ks.lastRefresh) > ks.cacheTTL
}

// GetKey resolves keyID against the cached JWKS document, refreshing it
// first if the cache is stale or empty.
func (ks *jwksKeySet) GetKey(ctx context.Context, keyID string) (crypto.PublicKey, error) {
	if ks.isStale() {
		if err := ks.Refresh(ctx); err != nil {
			ks.mu.RLock()
			empty := ks.set == nil
			ks.mu.RUnlock()
			if empty {
				return nil, fmt.Errorf("failed to refresh JWKS: %w", err)
			}
		}
	}

	ks.mu.RLock()
	set := ks.set
	ks.mu.RUnlock()
	if set == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}

	key, ok := set.LookupKeyID(keyID)
	if !ok {
		if keyID == "" && set.Len() == 1 {
			key, _ = set.Key(0)
		} else {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
		}
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to extract raw key %s: %w", keyID, err)
	}
	return raw, nil
}

// GetKeyForAlgorithm resolves keyID then checks that the resulting key's
// type is compatible with algorithm's signature family.
func (ks *jwksKeySet) GetKeyForAlgorithm(ctx context.Context, keyID, algorithm string) (crypto.PublicKey, error) {
	key, err := ks.GetKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if !keyMatchesAlgorithm(key, algorithm) {
		return nil, fmt.Errorf("%w: key %s is not compatible with algorithm %s", ErrInvalidKey, keyID, algorithm)
	}
	return key, nil
}

// Close is a no-op; jwksKeySet holds no long-lived resources beyond its
// HTTP client.
func (ks *jwksKeySet) Close() error {
	return nil
}

// Stats reports the key set's fetch counters, primarily for diagnostics
// endpoints and tests.
func (ks *jwksKeySet) Stats() KeySetStats {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	count := 0
	if ks.set != nil {
		count = ks.set.Len()
	}
	return KeySetStats{
		URL:       ks.url,
		KeyCount:  count,
		Refreshes: ks.refreshes,
		Errors:    ks.errors,
	}
}

// staticKeySet resolves keys from statically configured key material
// (JWK JSON or PEM), parsed once at construction time.
type staticKeySet struct {
	keys   map[string]crypto.PublicKey
	logger observability.Logger
}

// NewStaticKeySet parses keys and returns a KeySet serving them.
func NewStaticKeySet(keys []StaticKey, logger observability.Logger) (*staticKeySet, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	parsed := make(map[string]crypto.PublicKey, len(keys))
	for _, k := range keys {
		key, err := parseStaticKey(k)
		if err != nil {
			return nil, fmt.Errorf("failed to parse key %s: %w", k.KeyID, err)
		}
		parsed[k.KeyID] = key
	}

	return &staticKeySet{keys: parsed, logger: logger}, nil
}

func (s *staticKeySet) GetKey(_ context.Context, keyID string) (crypto.PublicKey, error) {
	key, ok := s.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	return key, nil
}

func (s *staticKeySet) GetKeyForAlgorithm(ctx context.Context, keyID, algorithm string) (crypto.PublicKey, error) {
	key, err := s.GetKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if !keyMatchesAlgorithm(key, algorithm) {
		return nil, fmt.Errorf("%w: key %s is not compatible with algorithm %s", ErrInvalidKey, keyID, algorithm)
	}
	return key, nil
}

// Refresh is a no-op: static keys never change without a process restart.
func (s *staticKeySet) Refresh(context.Context) error { return nil }

// Close is a no-op: static keys hold no resources.
func (s *staticKeySet) Close() error { return nil }

// compositeKeySet tries each underlying KeySet in order, returning the
// first success. It lets a validator accept tokens signed by either a
// JWKS-issued key or a statically configured one.
type compositeKeySet struct {
	sets   []KeySet
	logger observability.Logger
}

// NewCompositeKeySet combines sets into a single KeySet tried in order.
func NewCompositeKeySet(sets []KeySet, logger observability.Logger) *compositeKeySet {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &compositeKeySet{sets: sets, logger: logger}
}

func (c *compositeKeySet) GetKey(ctx context.Context, keyID string) (crypto.PublicKey, error) {
	var lastErr error
	for _, s := range c.sets {
		key, err := s.GetKey(ctx, keyID)
		if err == nil {
			return key, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	return nil, lastErr
}

func (c *compositeKeySet) GetKeyForAlgorithm(ctx context.Context, keyID, algorithm string) (crypto.PublicKey, error) {
	var lastErr error
	for _, s := range c.sets {
		key, err := s.GetKeyForAlgorithm(ctx, keyID, algorithm)
		if err == nil {
			return key, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	return nil, lastErr
}

func (c *compositeKeySet) Refresh(ctx context.Context) error {
	var lastErr error
	for _, s := range c.sets {
		if err := s.Refresh(ctx); err != nil {
			lastErr = err
			c.logger.Warn("composite key set member refresh failed", observability.Error(err))
		}
	}
	return lastErr
}

func (c *compositeKeySet) Close() error {
	var lastErr error
	for _, s := range c.sets {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// keyMatchesAlgorithm reports whether key's concrete type belongs to the
// signature family implied by algorithm.
func keyMatchesAlgorithm(key crypto.PublicKey, algorithm string) bool {
	switch key.(type) {
	case *rsa.PublicKey:
		switch algorithm {
		case AlgRS256, AlgRS384, AlgRS512, AlgPS256, AlgPS384, AlgPS512:
			return true
		}
	case *ecdsa.PublicKey:
		switch algorithm {
		case AlgES256, AlgES384, AlgES512:
			return true
		}
	case ed25519.PublicKey:
		switch algorithm {
		case AlgEdDSA, AlgEd25519:
			return true
		}
	case []byte:
		switch algorithm {
		case AlgHS256, AlgHS384, AlgHS512:
			return true
		}
	}
	return false
}

// parseAsJWK parses data as a single JWK document (JSON) and returns its
// raw key material.
func parseAsJWK(data []byte) (crypto.PublicKey, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWK: %w", err)
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to extract raw key: %w", err)
	}
	return raw, nil
}

// parsePEMKey parses data as either a JWK document or a PEM-encoded
// public key, trying JWK first since it is the more specific format.
func parsePEMKey(data []byte) (crypto.PublicKey, error) {
	if key, err := parseAsJWK(data); err == nil {
		return key, nil
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("unsupported key format: not JWK JSON or PEM")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PEM public key: %w", err)
	}
	return pub, nil
}

// parseStaticKey parses a single configured static key's material.
func parseStaticKey(k StaticKey) (crypto.PublicKey, error) {
	return parsePEMKey([]byte(k.Key))
}

// secureRandomFloat returns a cryptographically random float64 in [0, 1),
// used to jitter JWKS fetch retry backoff.
func secureRandomFloat() float64 {
	var b [8]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		return 0.5
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}
