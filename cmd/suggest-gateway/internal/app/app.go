package app

import (
	"context"

	"go.uber.org/zap"

	"checklistadvisor/cmd/suggest-gateway/internal/biz"
	"checklistadvisor/cmd/suggest-gateway/internal/conf"
	"checklistadvisor/cmd/suggest-gateway/internal/data"
	"checklistadvisor/cmd/suggest-gateway/internal/domain"
	"checklistadvisor/cmd/suggest-gateway/internal/server"
)

// App 应用程序
type App struct {
	Logger     *zap.Logger
	HTTPServer *server.HTTPServer
	Limiter    domain.RateLimiter
	Config     *conf.Config
}

// NewApp 创建应用程序
func NewApp(
	logger *zap.Logger,
	httpServer *server.HTTPServer,
	limiter domain.RateLimiter,
	config *conf.Config,
) *App {
	return &App{
		Logger:     logger,
		HTTPServer: httpServer,
		Limiter:    limiter,
		Config:     config,
	}
}

// Start 启动后台任务，ctx 取消后退出
func (a *App) Start(ctx context.Context) error {
	if sweeper, ok := a.Limiter.(data.Sweeper); ok {
		sweeper.StartSweeper(ctx, a.Config.RateLimit.SweepInterval)
		a.Logger.Info("Rate limit sweeper started",
			zap.Duration("interval", a.Config.RateLimit.SweepInterval),
		)
	}
	a.Logger.Info("Application started successfully")
	return nil
}

// NewSuggestConfig 从应用配置提取编排配置
func NewSuggestConfig(cfg *conf.Config) biz.SuggestConfig {
	return biz.SuggestConfig{
		RateWindow:       cfg.RateLimit.Window,
		RateMax:          cfg.RateLimit.Max,
		RateKeyPrefix:    cfg.RateLimit.KeyPrefix,
		GeneratorTimeout: cfg.Generator.Timeout,
	}
}
