package biz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SuggestRequestsTotal 建议请求总数（按结果）
	SuggestRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suggest_gateway",
			Subsystem: "request",
			Name:      "total",
			Help:      "Total number of suggestion requests by outcome",
		},
		[]string{"outcome"},
	)

	// CacheLookupsTotal 缓存查询（hit/miss）
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suggest_gateway",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by result",
		},
		[]string{"result"},
	)

	// RateLimitDecisionsTotal 限流判定
	RateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suggest_gateway",
			Subsystem: "rate_limit",
			Name:      "decisions_total",
			Help:      "Rate limiter decisions",
		},
		[]string{"decision"},
	)

	// GeneratorCallDuration 生成服务调用时长
	GeneratorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "suggest_gateway",
			Subsystem: "generator",
			Name:      "call_duration_seconds",
			Help:      "Generator call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"provider", "status"},
	)

	// ResponseShapeTotal 校验流水线产出的响应层级
	ResponseShapeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suggest_gateway",
			Subsystem: "validator",
			Name:      "shape_total",
			Help:      "Validated responses by shape (strict, fallback, minimal)",
		},
		[]string{"shape"},
	)
)
