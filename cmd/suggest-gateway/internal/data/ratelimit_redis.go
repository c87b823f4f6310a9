package data

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

// RedisRateLimiter 多实例共享的固定窗口限流器
// 窗口从第一次命中开始计时，过期由 Redis 负责，无需回收
type RedisRateLimiter struct {
	client redis.Cmdable
}

// NewRedisRateLimiter 创建 Redis 限流器
func NewRedisRateLimiter(client redis.Cmdable) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

// Allow 记录一次命中
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (domain.RateDecision, error) {
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.RateDecision{}, fmt.Errorf("rate limit pipeline: %w", err)
	}

	count := int(incr.Val())
	resetIn := pttl.Val()

	// 新窗口或丢失过期时间的键：设置窗口过期
	if count == 1 || resetIn < 0 {
		if err := l.client.PExpire(ctx, key, window).Err(); err != nil {
			return domain.RateDecision{}, fmt.Errorf("rate limit expire: %w", err)
		}
		resetIn = window
	}

	return domain.RateDecision{
		Allowed:   count <= limit,
		Remaining: max(0, limit-count),
		ResetIn:   resetIn,
	}, nil
}
