package domain

import (
	"context"
	"time"
)

// Generator 外部文本生成服务
// 输出不保证是合法JSON，调用方必须视为不可信数据
type Generator interface {
	// Generate 生成文本
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)

	// Name 提供方名称
	Name() string
}

// RateDecision 限流判定结果
type RateDecision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// RateLimiter 按key的固定窗口计数器
type RateLimiter interface {
	// Allow 记录一次命中并返回判定
	Allow(ctx context.Context, key string, window time.Duration, max int) (RateDecision, error)
}

// ResponseCache 有界、带TTL的响应缓存
type ResponseCache interface {
	// Get 获取未过期的缓存值
	Get(ctx context.Context, key string) (ResponseData, bool)

	// Put 写入缓存
	Put(ctx context.Context, key string, value ResponseData)
}

// ChecklistStore 清单存储（外部协作方），网关从不修改快照
type ChecklistStore interface {
	// GetSnapshot 获取用户在某个scope下的清单快照
	GetSnapshot(ctx context.Context, userID, scope string) (*ChecklistSnapshot, error)
}
