package data

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
	"checklistadvisor/pkg/cache"
)

// RedisResponseCache 多实例共享的响应缓存
// 容量由 Redis 的内存策略约束，TTL 由 Redis 负责；读写失败按未命中处理
type RedisResponseCache struct {
	store  cache.ObjectStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisResponseCache 创建 Redis 响应缓存
func NewRedisResponseCache(store cache.ObjectStore, ttl time.Duration, logger *zap.Logger) *RedisResponseCache {
	return &RedisResponseCache{store: store, ttl: ttl, logger: logger}
}

// Get 获取缓存
func (c *RedisResponseCache) Get(ctx context.Context, key string) (domain.ResponseData, bool) {
	var data domain.ResponseData
	if err := c.store.GetObject(ctx, key, &data); err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn("response cache read failed", zap.String("key", key), zap.Error(err))
		}
		return domain.ResponseData{}, false
	}
	return data, true
}

// Put 写入缓存
func (c *RedisResponseCache) Put(ctx context.Context, key string, value domain.ResponseData) {
	value.Cached = false
	if err := c.store.SetObject(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("response cache write failed", zap.String("key", key), zap.Error(err))
	}
}
