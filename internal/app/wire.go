//go:build wireinject
// +build wireinject

package app

import (
	"github.com/dushixiang/promsight/internal/config"
	"github.com/dushixiang/promsight/internal/handler"
	"github.com/dushixiang/promsight/internal/llm"
	"github.com/dushixiang/promsight/internal/promclient"
	"github.com/dushixiang/promsight/internal/service"
	"github.com/dushixiang/promsight/internal/telemetry"

	"github.com/google/wire"
)

// InitApp 根据配置组装应用
func InitApp(cfg *config.AppConfig) (*App, func(), error) {
	wire.Build(
		provideLogger,
		providePromClient,
		wire.Bind(new(service.Backend), new(*promclient.Client)),
		provideModelProvider,
		llm.NewClient,
		telemetry.NewMetrics,
		provideAnalysisRepo,
		service.NewHistoryService,
		provideHistoryStore,
		provideQueryDefaults,
		service.NewAnalysisService,
		service.NewQueryService,
		handler.NewQueryHandler,
		handler.NewAnalysisHandler,
		handler.NewRouter,
		newApp,
	)
	return nil, nil, nil
}
