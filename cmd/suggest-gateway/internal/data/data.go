package data

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"checklistadvisor/cmd/suggest-gateway/internal/conf"
	"checklistadvisor/cmd/suggest-gateway/internal/domain"
	"checklistadvisor/pkg/cache"
)

// Sweeper 需要后台回收的存储
type Sweeper interface {
	StartSweeper(ctx context.Context, interval time.Duration)
}

// BreakerReporter 暴露熔断状态的生成器
type BreakerReporter interface {
	BreakerState() gobreaker.State
}

// NewRedisClient 创建 Redis 客户端；未选择 redis 后端时返回 nil
func NewRedisClient(cfg *conf.Config, logger *zap.Logger) (*redis.Client, func(), error) {
	if !cfg.UsesRedis() {
		return nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// 启动时不可达不阻止启动，运行期按放行/未命中处理
		logger.Warn("redis not reachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis client", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

// NewRateLimiter 按配置选择限流存储
func NewRateLimiter(cfg *conf.Config, rdb *redis.Client, logger *zap.Logger) domain.RateLimiter {
	if cfg.RateLimit.Backend == "redis" && rdb != nil {
		return NewRedisRateLimiter(rdb)
	}
	return NewMemoryRateLimiter(logger)
}

// NewResponseCache 按配置选择响应缓存
func NewResponseCache(cfg *conf.Config, rdb *redis.Client, logger *zap.Logger) domain.ResponseCache {
	if cfg.Cache.Backend == "redis" && rdb != nil {
		store := cache.NewRedisCache(rdb, cache.Options{
			DefaultTTL: cfg.Cache.TTL,
			KeyPrefix:  cfg.Cache.KeyPrefix,
		})
		return NewRedisResponseCache(store, cfg.Cache.TTL, logger)
	}
	return NewMemoryResponseCache(cfg.Cache.TTL, cfg.Cache.MaxEntries)
}

// NewGenerator 按配置选择生成服务
func NewGenerator(cfg *conf.Config, logger *zap.Logger) (domain.Generator, error) {
	g := cfg.Generator
	bs := BreakerSettings{
		Enabled:     g.Breaker.Enabled,
		MaxRequests: g.Breaker.MaxRequests,
		Interval:    g.Breaker.Interval,
		Timeout:     g.Breaker.Timeout,
		MinRequests: g.Breaker.MinRequests,
		Threshold:   g.Breaker.Threshold,
	}
	switch g.Provider {
	case "http":
		return NewHTTPGenerator(g.BaseURL, g.Model, g.APIKey, g.MaxTokens, g.Timeout, bs, logger), nil
	case "anthropic":
		gen, err := NewAnthropicGenerator(g.APIKey, g.BaseURL, g.Model, g.MaxTokens, bs, logger)
		if err != nil {
			return nil, err
		}
		return gen, nil
	case "static":
		return NewStaticGenerator(g.StaticResponse), nil
	default:
		return nil, fmt.Errorf("unsupported generator provider %q", g.Provider)
	}
}
