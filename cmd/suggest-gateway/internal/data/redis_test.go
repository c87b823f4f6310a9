package data

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checklistadvisor/pkg/cache"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	// 创建测试用Redis客户端
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // 使用测试数据库
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() {
		client.FlushDB(ctx)
		_ = client.Close()
	})
	return client
}

func TestRedisRateLimiter(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedisRateLimiter(client)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "rl:test", time.Second, 3)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 3-i, d.Remaining)
		assert.Greater(t, d.ResetIn, time.Duration(0))
	}

	d, err := l.Allow(ctx, "rl:test", time.Second, 3)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	time.Sleep(1100 * time.Millisecond)
	d, err = l.Allow(ctx, "rl:test", time.Second, 3)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestRedisResponseCache(t *testing.T) {
	client := newTestRedis(t)
	store := cache.NewRedisCache(client, cache.Options{KeyPrefix: "suggest-test"})
	c := NewRedisResponseCache(store, time.Minute, zap.NewNop())
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	v := response("1")
	v.Cached = true
	c.Put(ctx, "k", v)

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "1", got.Version)
	assert.False(t, got.Cached)
	assert.Equal(t, v.NextSteps, got.NextSteps)

	ttl, err := client.TTL(ctx, "suggest-test:k").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}

func TestRedisResponseCache_UnavailableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewRedisResponseCache(cache.NewRedisCache(client, cache.Options{}), time.Minute, zap.NewNop())
	ctx := context.Background()

	c.Put(ctx, "k", response("1"))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	_, err := NewRedisRateLimiter(client).Allow(ctx, "rl:x", time.Minute, 15)
	assert.Error(t, err)
}
