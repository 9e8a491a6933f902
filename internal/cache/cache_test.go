package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value := []byte("hello")
	require.NoError(t, c.Set(ctx, "k", value, time.Minute))
	value[0] = 'j'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got), "stored value is a copy")

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err = c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Delete(ctx, "k", "nope"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.NoError(t, c.Close())
}

type item struct {
	Name string `json:"name"`
}

type failingCache struct{ calls int }

func (f *failingCache) Get(ctx context.Context, key string) ([]byte, error) {
	f.calls++
	return nil, errors.New("connection refused")
}
func (f *failingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("connection refused")
}
func (f *failingCache) Delete(ctx context.Context, keys ...string) error {
	return errors.New("connection refused")
}
func (f *failingCache) Close() error { return nil }

func TestCatalogCache_LoadAndInvalidate(t *testing.T) {
	mem := NewMemoryCache()
	defer mem.Close()
	cc := NewCatalogCache(mem, time.Minute)
	ctx := context.Background()

	fills := 0
	fill := func() (interface{}, error) {
		fills++
		return []item{{Name: "Netflix"}}, nil
	}

	var got []item
	require.NoError(t, cc.Load(ctx, KeyProducts, &got, fill))
	require.NoError(t, cc.Load(ctx, KeyProducts, &got, fill))
	assert.Equal(t, 1, fills)
	assert.Equal(t, []item{{Name: "Netflix"}}, got)

	cc.Invalidate(ctx)
	require.NoError(t, cc.Load(ctx, KeyProducts, &got, fill))
	assert.Equal(t, 2, fills)

	gen, err := mem.Get(ctx, keyGeneration)
	require.NoError(t, err)
	require.NoError(t, mem.Set(ctx, KeyOnHand+":"+string(gen), []byte("not json"), time.Minute))
	require.NoError(t, cc.Load(ctx, KeyOnHand, &got, fill))
	assert.Equal(t, 3, fills, "undecodable entries are refilled")
}

func TestCatalogCache_InvalidationDuringFillIsNotLost(t *testing.T) {
	mem := NewMemoryCache()
	defer mem.Close()
	cc := NewCatalogCache(mem, time.Minute)
	ctx := context.Background()

	// The stock changes after this fill read the database but before it
	// stored the result.
	var got []item
	require.NoError(t, cc.Load(ctx, KeyProducts, &got, func() (interface{}, error) {
		stale := []item{{Name: "stock=1"}}
		cc.Invalidate(ctx)
		return stale, nil
	}))
	assert.Equal(t, "stock=1", got[0].Name)

	require.NoError(t, cc.Load(ctx, KeyProducts, &got, func() (interface{}, error) {
		return []item{{Name: "stock=0"}}, nil
	}))
	assert.Equal(t, "stock=0", got[0].Name)
}

func TestCatalogCache_FailuresFallThrough(t *testing.T) {
	ctx := context.Background()
	fill := func() (interface{}, error) { return []item{{Name: "Spotify"}}, nil }

	broken := &failingCache{}
	var got []item
	require.NoError(t, NewCatalogCache(broken, 0).Load(ctx, KeyCategories, &got, fill))
	assert.Equal(t, "Spotify", got[0].Name)
	assert.Equal(t, 1, broken.calls)
	NewCatalogCache(broken, 0).Invalidate(ctx)

	var nilCache *CatalogCache
	got = nil
	require.NoError(t, nilCache.Load(ctx, KeyCategories, &got, fill))
	assert.Len(t, got, 1)
	nilCache.Invalidate(ctx)

	boom := errors.New("db down")
	err := nilCache.Load(ctx, KeyCategories, &got, func() (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}
