package data

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
	"checklistadvisor/pkg/health"
)

// NewHealthChecker 注册依赖检查：Redis（如启用）与生成服务熔断状态
func NewHealthChecker(rdb *redis.Client, generator domain.Generator) *health.HealthChecker {
	hc := health.NewHealthChecker(2 * time.Second)

	if rdb != nil {
		hc.Register(health.NewPingChecker("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}

	hc.Register(health.NewStateChecker("generator", func() (health.Status, map[string]any) {
		details := map[string]any{"provider": generator.Name()}
		reporter, ok := generator.(BreakerReporter)
		if !ok {
			return health.StatusHealthy, details
		}
		state := reporter.BreakerState()
		details["circuit_breaker"] = state.String()
		// 熔断打开时请求会快速失败，但服务本身仍可响应
		if state == gobreaker.StateOpen {
			return health.StatusDegraded, details
		}
		return health.StatusHealthy, details
	}))

	return hc
}
