package cache

import (
	"context"
	"fmt"
	"time"

	redisclient "renda-edge/internal/redis"
)

// Type selects the cache backend.
type Type string

const (
	TypeLocal   Type = "local"
	TypeRedis   Type = "redis"
	TypeTwoTier Type = "two_tier"
)

// Config holds cache configuration
type Config struct {
	Type            Type
	TTL             time.Duration
	CleanupInterval time.Duration
	KeyPrefix       string
	// L1TTL bounds local copies in the two-tier store.
	L1TTL time.Duration
	Redis *redisclient.Client
}

func DefaultConfig() Config {
	return Config{
		Type:            TypeLocal,
		TTL:             10 * time.Minute,
		CleanupInterval: 15 * time.Minute,
		KeyPrefix:       "renda:cache:",
		L1TTL:           time.Minute,
	}
}

// New builds the configured store. Zero fields take DefaultConfig values.
func New(ctx context.Context, config Config) (Store, error) {
	def := DefaultConfig()
	if config.TTL == 0 {
		config.TTL = def.TTL
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = def.KeyPrefix
	}
	if config.L1TTL == 0 {
		config.L1TTL = def.L1TTL
	}

	switch config.Type {
	case TypeLocal, "":
		return NewLocalStore(config.TTL, config.CleanupInterval), nil
	case TypeRedis:
		if config.Redis == nil {
			return nil, fmt.Errorf("redis client required for redis cache")
		}
		return NewRedisStore(config.Redis, config.KeyPrefix, config.TTL, false), nil
	case TypeTwoTier:
		if config.Redis == nil {
			return nil, fmt.Errorf("redis client required for two-tier cache")
		}
		return NewTwoTierStore(ctx, config.Redis, config.KeyPrefix, config.TTL, config.L1TTL)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", config.Type)
	}
}
