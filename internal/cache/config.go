package cache

import "github.com/vyrodovalexey/avapigw/internal/config"

// CacheType selects the backing store for a Cache.
type CacheType string

const (
	// CacheTypeMemory backs the cache with an in-process LRU.
	CacheTypeMemory CacheType = "memory"
	// CacheTypeRedis backs the cache with Redis (standalone or Sentinel).
	CacheTypeRedis CacheType = "redis"
)

// TLSConfig holds TLS settings for a Redis connection.
type TLSConfig struct {
	Enabled            bool `yaml:"enabled" json:"enabled"`
	InsecureSkipVerify bool `yaml:"insecureSkipVerify" json:"insecureSkipVerify"`
}

// RedisSentinelConfig configures Sentinel-based failover discovery.
type RedisSentinelConfig struct {
	MasterName                string   `yaml:"masterName" json:"masterName"`
	SentinelAddrs             []string `yaml:"sentinelAddrs" json:"sentinelAddrs"`
	Password                  string   `yaml:"-" json:"-"`
	SentinelPassword          string   `yaml:"-" json:"-"`
	DB                        int      `yaml:"db" json:"db"`
	PasswordVaultPath         string   `yaml:"passwordVaultPath,omitempty" json:"passwordVaultPath,omitempty"`
	SentinelPasswordVaultPath string   `yaml:"sentinelPasswordVaultPath,omitempty" json:"sentinelPasswordVaultPath,omitempty"`
}

// RedisCacheConfig configures the Redis-backed cache implementation.
type RedisCacheConfig struct {
	URL               string                `yaml:"url,omitempty" json:"url,omitempty"`
	KeyPrefix         string                `yaml:"keyPrefix" json:"keyPrefix"`
	PoolSize          int                   `yaml:"poolSize" json:"poolSize"`
	ConnectTimeout    config.Duration       `yaml:"connectTimeout" json:"connectTimeout"`
	ReadTimeout       config.Duration       `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout      config.Duration       `yaml:"writeTimeout" json:"writeTimeout"`
	TTLJitter         float64               `yaml:"ttlJitter" json:"ttlJitter"`
	HashKeys          bool                  `yaml:"hashKeys" json:"hashKeys"`
	PasswordVaultPath string                `yaml:"passwordVaultPath,omitempty" json:"passwordVaultPath,omitempty"`
	TLS               *TLSConfig            `yaml:"tls,omitempty" json:"tls,omitempty"`
	Sentinel          *RedisSentinelConfig  `yaml:"sentinel,omitempty" json:"sentinel,omitempty"`
}

// CacheConfig configures a Cache instance.
type CacheConfig struct {
	Enabled    bool              `yaml:"enabled" json:"enabled"`
	Type       CacheType         `yaml:"type" json:"type"`
	TTL        config.Duration   `yaml:"ttl" json:"ttl"`
	MaxEntries int               `yaml:"maxEntries" json:"maxEntries"`
	Redis      *RedisCacheConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// CacheKeyConfig configures how cache keys are derived from requests.
type CacheKeyConfig struct {
	KeyTemplate         string `yaml:"keyTemplate,omitempty" json:"keyTemplate,omitempty"`
	IncludeMethod       bool   `yaml:"includeMethod" json:"includeMethod"`
	IncludePath         bool   `yaml:"includePath" json:"includePath"`
	IncludeQueryParams  []string `yaml:"includeQueryParams,omitempty" json:"includeQueryParams,omitempty"`
	IncludeHeaders      []string `yaml:"includeHeaders,omitempty" json:"includeHeaders,omitempty"`
	IncludeBodyHash     bool   `yaml:"includeBodyHash" json:"includeBodyHash"`
}
