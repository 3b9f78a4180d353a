package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newSliding(t *testing.T) (SlidingRedis, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	clock := time.Unix(1_700_000_000, 0)
	return SlidingRedis{Client: client, Prefix: "cart:rl:", Now: func() time.Time { return clock }}, mr, &clock
}

func TestSlidingRedisCountsWritesInWindow(t *testing.T) {
	limiter, _, clock := newSliding(t)
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		allowed, remaining, reset, err := limiter.Allow(ctx, "session:a", window, 2)
		require.NoError(t, err)
		require.True(t, allowed, "write %d", i)
		require.Equal(t, 1-i, remaining)
		require.Equal(t, time.Unix(1_700_000_000, 0).Add(window), reset)
		*clock = clock.Add(500 * time.Millisecond)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "session:a", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)

	allowed, _, _, err = limiter.Allow(ctx, "session:b", window, 2)
	require.NoError(t, err)
	require.True(t, allowed, "other sessions keep their own budget")
}

func TestSlidingRedisDoesNotRecordRejectedWrites(t *testing.T) {
	limiter, mr, clock := newSliding(t)
	ctx := context.Background()
	window := time.Second

	allowed, _, _, err := limiter.Allow(ctx, "k", window, 1)
	require.NoError(t, err)
	require.True(t, allowed)
	for i := 0; i < 3; i++ {
		allowed, _, _, err = limiter.Allow(ctx, "k", window, 1)
		require.NoError(t, err)
		require.False(t, allowed)
	}
	members, err := mr.ZMembers("cart:rl:k")
	require.NoError(t, err)
	require.Len(t, members, 1)

	*clock = clock.Add(window + time.Millisecond)
	allowed, _, _, err = limiter.Allow(ctx, "k", window, 1)
	require.NoError(t, err)
	require.True(t, allowed, "capacity returns once the accepted write ages out")
}

func TestSlidingRedisWithoutClientAllows(t *testing.T) {
	allowed, remaining, _, err := SlidingRedis{}.Allow(context.Background(), "k", time.Second, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 3, remaining)
}
