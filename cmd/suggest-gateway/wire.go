//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"checklistadvisor/cmd/suggest-gateway/internal/app"
	"checklistadvisor/cmd/suggest-gateway/internal/biz"
	"checklistadvisor/cmd/suggest-gateway/internal/conf"
	"checklistadvisor/cmd/suggest-gateway/internal/data"
	"checklistadvisor/cmd/suggest-gateway/internal/server"
	"checklistadvisor/cmd/suggest-gateway/internal/service"
)

// initApp 初始化应用
func initApp(config *conf.Config, logger *zap.Logger) (*app.App, func(), error) {
	wire.Build(
		// Data 层
		data.NewRedisClient,
		data.NewRateLimiter,
		data.NewResponseCache,
		data.NewGenerator,
		data.NewHealthChecker,

		// Biz 层
		app.NewSuggestConfig,
		biz.NewResponseValidator,
		biz.NewSuggestUsecase,

		// Service 层
		service.NewSuggestService,

		// Server 层
		server.NewHTTPServer,

		app.NewApp,
	)
	return nil, nil, nil
}
