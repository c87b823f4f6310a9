package data

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

// bucket 限流桶
type bucket struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

// MemoryRateLimiter 进程内固定窗口限流器
// 不是真正的滑动窗口，窗口边界允许短暂突发：保护的是生成服务成本而非严格公平
type MemoryRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     Clock
	logger  *zap.Logger
}

// NewMemoryRateLimiter 创建进程内限流器
func NewMemoryRateLimiter(logger *zap.Logger) *MemoryRateLimiter {
	return NewMemoryRateLimiterWithClock(time.Now, logger)
}

// NewMemoryRateLimiterWithClock 使用指定时间源创建限流器
func NewMemoryRateLimiterWithClock(now Clock, logger *zap.Logger) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		buckets: make(map[string]*bucket),
		now:     now,
		logger:  logger,
	}
}

// Allow 记录一次命中
func (l *MemoryRateLimiter) Allow(_ context.Context, key string, window time.Duration, limit int) (domain.RateDecision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{count: 1, windowStart: now, window: window}
		return domain.RateDecision{Allowed: true, Remaining: limit - 1, ResetIn: window}, nil
	}

	if now.Sub(b.windowStart) > window {
		b.count = 1
		b.windowStart = now
		b.window = window
		return domain.RateDecision{Allowed: true, Remaining: limit - 1, ResetIn: window}, nil
	}

	b.count++
	return domain.RateDecision{
		Allowed:   b.count <= limit,
		Remaining: max(0, limit-b.count),
		ResetIn:   window - now.Sub(b.windowStart),
	}, nil
}

// Sweep 删除窗口已过期的桶，返回删除数量
func (l *MemoryRateLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) > b.window {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len 当前桶数量
func (l *MemoryRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// StartSweeper 周期性回收过期桶，ctx 取消后退出
func (l *MemoryRateLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					l.logger.Debug("rate limit buckets swept", zap.Int("removed", n))
				}
			}
		}
	}()
}
