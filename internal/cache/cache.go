package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is the key/value store behind the catalog cache. Redis backs it in
// multi-instance deployments, MemoryCache in single-node ones and tests.
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// ErrCacheMiss indicates the key was not found in cache.
var ErrCacheMiss = errors.New("cache miss")
