package data

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// breakerState 熔断器状态（0=closed, 1=half-open, 2=open）
var breakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "suggest_gateway",
		Subsystem: "generator",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state of the generator client (0=closed, 1=half-open, 2=open)",
	},
	[]string{"name"},
)

// BreakerSettings 熔断器参数
type BreakerSettings struct {
	Enabled     bool
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MinRequests uint32
	Threshold   float64
}

// newBreaker 失败率达到阈值且请求数足够时熔断
func newBreaker(name string, bs BreakerSettings, logger *zap.Logger) *gobreaker.CircuitBreaker {
	minRequests := bs.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	threshold := bs.Threshold
	if threshold <= 0 {
		threshold = 0.6
	}
	breakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: bs.MaxRequests,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= threshold
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// isBreakerSuccess 调用方放弃（context.Canceled）不算上游失败；
// 超过生成预算（DeadlineExceeded）说明上游过慢，计为失败
func isBreakerSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// executeWithBreaker cb 为 nil 时直接调用
func executeWithBreaker(cb *gobreaker.CircuitBreaker, call func() (string, error)) (string, error) {
	if cb == nil {
		return call()
	}
	result, err := cb.Execute(func() (interface{}, error) {
		return call()
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func breakerStateOf(cb *gobreaker.CircuitBreaker) gobreaker.State {
	if cb == nil {
		return gobreaker.StateClosed
	}
	return cb.State()
}
