package mailer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limits Limits) *RateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, limits)
}

func TestCheckAndIncrementAllowsUnderLimit(t *testing.T) {
	rl := newTestLimiter(t, Limits{PerSecond: 10, PerMinute: 100, Daily: 1000})
	ctx := context.Background()

	allowed, wait, err := rl.CheckAndIncrement(ctx, 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, wait)

	allowed, _, err = rl.CheckAndIncrement(ctx, 5)
	require.NoError(t, err)
	require.True(t, allowed, "second reservation exactly fills the window")
}

func TestCheckAndIncrementDeniesOverSecondLimit(t *testing.T) {
	rl := newTestLimiter(t, Limits{PerSecond: 10, PerMinute: 100, Daily: 1000})
	ctx := context.Background()

	allowed, _, err := rl.CheckAndIncrement(ctx, 10)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, wait, err := rl.CheckAndIncrement(ctx, 1)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, time.Second, wait)
}

func TestCheckAndIncrementDenialDoesNotConsume(t *testing.T) {
	rl := newTestLimiter(t, Limits{PerSecond: 10, PerMinute: 100, Daily: 1000})
	ctx := context.Background()

	allowed, _, err := rl.CheckAndIncrement(ctx, 8)
	require.NoError(t, err)
	require.True(t, allowed)

	// 8+5 would exceed the window; the denial must not burn the 5.
	allowed, _, err = rl.CheckAndIncrement(ctx, 5)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, _, err = rl.CheckAndIncrement(ctx, 2)
	require.NoError(t, err)
	require.True(t, allowed, "remaining capacity is intact after a denial")
}

func TestCheckAndIncrementDailyExhaustionIsError(t *testing.T) {
	rl := newTestLimiter(t, Limits{PerSecond: 100, PerMinute: 100, Daily: 10})
	ctx := context.Background()

	allowed, _, err := rl.CheckAndIncrement(ctx, 10)
	require.NoError(t, err)
	require.True(t, allowed)

	_, _, err = rl.CheckAndIncrement(ctx, 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "daily send limit")
}

func TestWaitReturnsImmediatelyWhenAllowed(t *testing.T) {
	rl := newTestLimiter(t, Limits{PerSecond: 10, PerMinute: 100, Daily: 1000})

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background(), 5))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	rl := newTestLimiter(t, Limits{PerSecond: 1, PerMinute: 100, Daily: 1000})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, rl.Wait(ctx, 1))
	err := rl.Wait(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
