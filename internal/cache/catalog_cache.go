package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Catalog cache keys.
const (
	KeyProducts   = "catalog:products"
	KeyCategories = "catalog:categories"
	KeyOnHand     = "catalog:onhand"
)

// keyGeneration holds the current catalog generation. Entries are stored
// under "<key>:<generation>"; Invalidate moves to a new generation, so a fill
// that read the database before an invalidation writes to a key nobody reads.
const keyGeneration = "catalog:generation"

const generationTTL = 24 * time.Hour

// CatalogCache caches the public storefront reads as JSON.
// Cache failures are logged and never fail the request.
type CatalogCache struct {
	cache Cache
	ttl   time.Duration
}

// NewCatalogCache creates a new CatalogCache.
func NewCatalogCache(c Cache, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogCache{cache: c, ttl: ttl}
}

// Load decodes key into dest, or calls fill, stores its result and decodes that.
func (c *CatalogCache) Load(ctx context.Context, key string, dest interface{}, fill func() (interface{}, error)) error {
	var entryKey string
	if c != nil && c.cache != nil {
		if gen := c.generation(ctx); gen != "" {
			entryKey = key + ":" + gen
		}
	}

	if entryKey != "" {
		b, err := c.cache.Get(ctx, entryKey)
		if err == nil {
			if err := json.Unmarshal(b, dest); err == nil {
				return nil
			}
			log.Warn().Str("key", key).Msg("discarding undecodable catalog cache entry")
		} else if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
		}
	}

	v, err := fill()
	if err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog entry: %w", err)
	}
	if entryKey != "" {
		if err := c.cache.Set(ctx, entryKey, b, c.ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
	}
	return json.Unmarshal(b, dest)
}

// Invalidate retires every catalog entry. Called after stock or product changes.
func (c *CatalogCache) Invalidate(ctx context.Context) {
	if c == nil || c.cache == nil {
		return
	}
	if c.rotate(ctx) == "" {
		log.Warn().Msg("catalog cache invalidation failed")
	}
}

// generation returns the current generation, starting one when none is
// stored. It returns "" when the cache is unreachable.
func (c *CatalogCache) generation(ctx context.Context) string {
	b, err := c.cache.Get(ctx, keyGeneration)
	switch {
	case err == nil && len(b) > 0:
		return string(b)
	case err != nil && !errors.Is(err, ErrCacheMiss):
		log.Warn().Err(err).Msg("catalog cache generation read failed")
		return ""
	}
	return c.rotate(ctx)
}

func (c *CatalogCache) rotate(ctx context.Context) string {
	gen := uuid.NewString()
	if err := c.cache.Set(ctx, keyGeneration, []byte(gen), generationTTL); err != nil {
		log.Warn().Err(err).Msg("catalog cache generation write failed")
		return ""
	}
	return gen
}
