package health

import (
	"context"
	"sync"
	"time"
)

// Status 健康状态
type Status string

const (
	// StatusHealthy 健康
	StatusHealthy Status = "healthy"
	// StatusUnhealthy 不健康
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded 降级
	StatusDegraded Status = "degraded"
)

// CheckResult 检查结果
type CheckResult struct {
	Status    Status         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration"`
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Checker 健康检查器接口
type Checker interface {
	// Check 执行健康检查
	Check(ctx context.Context) CheckResult
	// Name 检查器名称
	Name() string
}

// Report 聚合结果
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// HealthChecker 健康检查管理器
type HealthChecker struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewHealthChecker 创建健康检查管理器，timeout 为单个检查的上限
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthChecker{
		checkers: make(map[string]Checker),
		timeout:  timeout,
	}
}

// Register 注册检查器
func (h *HealthChecker) Register(checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[checker.Name()] = checker
}

// Check 并发执行所有检查并聚合
// 任一 unhealthy 则整体 unhealthy；否则任一 degraded 则整体 degraded
func (h *HealthChecker) Check(ctx context.Context) Report {
	h.mu.RLock()
	checkers := make([]Checker, 0, len(h.checkers))
	for _, checker := range h.checkers {
		checkers = append(checkers, checker)
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checkers))
	)
	for _, checker := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			result := c.Check(ctx)
			mu.Lock()
			results[c.Name()] = result
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	report := Report{Status: StatusHealthy, Checks: results}
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

// PingChecker 以 ping 函数检查依赖（Redis、数据库等）
type PingChecker struct {
	name   string
	pingFn func(context.Context) error
}

// NewPingChecker 创建 ping 检查器
func NewPingChecker(name string, pingFn func(context.Context) error) *PingChecker {
	return &PingChecker{name: name, pingFn: pingFn}
}

// Name 返回检查器名称
func (p *PingChecker) Name() string { return p.name }

// Check 执行检查
func (p *PingChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	err := p.pingFn(ctx)
	result := CheckResult{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}

// StateChecker 根据组件自报状态检查（如熔断器）
type StateChecker struct {
	name    string
	stateFn func() (Status, map[string]any)
}

// NewStateChecker 创建状态检查器
func NewStateChecker(name string, stateFn func() (Status, map[string]any)) *StateChecker {
	return &StateChecker{name: name, stateFn: stateFn}
}

// Name 返回检查器名称
func (s *StateChecker) Name() string { return s.name }

// Check 执行检查
func (s *StateChecker) Check(_ context.Context) CheckResult {
	status, details := s.stateFn()
	return CheckResult{
		Status:    status,
		Timestamp: time.Now(),
		Details:   details,
	}
}
