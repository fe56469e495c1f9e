package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *BalanceCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBalanceCache(client, time.Minute)
}

func TestBalanceCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key := cache.BuildKey(ctx, "t1", 12, "")
	_, ok := cache.Load(ctx, key)
	require.False(t, ok)

	require.NoError(t, cache.Store(ctx, key, -40000))

	got, ok := cache.Load(ctx, key)
	require.True(t, ok)
	require.Equal(t, int64(-40000), got)
}

func TestBumpInvalidatesOldKeys(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key := cache.BuildKey(ctx, "t1", 12, "")
	require.NoError(t, cache.Store(ctx, key, -40000))

	require.NoError(t, cache.Bump(ctx, "t1"))

	fresh := cache.BuildKey(ctx, "t1", 12, "")
	require.NotEqual(t, key, fresh)
	_, ok := cache.Load(ctx, fresh)
	require.False(t, ok)
}

func TestBumpIsPerTenant(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	otherKey := cache.BuildKey(ctx, "t2", 5, "")
	require.NoError(t, cache.Store(ctx, otherKey, 123))

	require.NoError(t, cache.Bump(ctx, "t1"))

	got, ok := cache.Load(ctx, otherKey)
	require.True(t, ok)
	require.Equal(t, int64(123), got)
	require.Equal(t, otherKey, cache.BuildKey(ctx, "t2", 5, ""))
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *BalanceCache
	ctx := context.Background()

	require.NoError(t, cache.Bump(ctx, "t1"))
	_, ok := cache.Load(ctx, "anything")
	require.False(t, ok)
}
