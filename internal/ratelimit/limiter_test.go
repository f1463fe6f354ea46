package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLimiterWithoutRedisAllowsEverything(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, CheckoutRate: 0.1, CheckoutBurst: 1}}
	l := NewLimiter(Params{Config: cfg, Log: zap.NewNop()})

	assert.False(t, l.Enabled())
	for i := 0; i < 10; i++ {
		res, err := l.Allow(context.Background(), ScopeCheckout, "203.0.113.9")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	res, err := l.Allow(context.Background(), ScopeOrderStatus, "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestBucketResultRetryAfter(t *testing.T) {
	res := bucketResult(false, 0.5, 0.25, 5)
	assert.False(t, res.Allowed)
	assert.Equal(t, 5, res.Limit)
	assert.Equal(t, 2*time.Second, res.RetryAfter)

	res = bucketResult(true, 3.9, 1, 5)
	assert.Equal(t, 3, res.Remaining)
	assert.Zero(t, res.RetryAfter)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 50*time.Second, defaultBucketTTL(0.2, 5))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 0))
}

func TestNilLockerIsNotConfigured(t *testing.T) {
	var l *Locker
	_, ok, err := l.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, l.Release(context.Background(), "k", "token"))
}

// testRedis connects to REDIS_TEST_ADDR and skips when it is unset.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestTokenBucketExhaustsBurst(t *testing.T) {
	client := testRedis(t)
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "test:bucket", 0.01, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}
	res, err := bucket.Allow(ctx, "test:bucket", 0.01, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)
}

func TestLockerSingleHolder(t *testing.T) {
	client := testRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "test:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "test:lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "test:lock", "someone-else"))
	_, ok, err = locker.TryLock(ctx, "test:lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "test:lock", token))
	_, ok, err = locker.TryLock(ctx, "test:lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
