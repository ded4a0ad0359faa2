package app

import (
	"context"

	"github.com/dushixiang/promsight/internal/config"
	"github.com/dushixiang/promsight/internal/llm"
	"github.com/dushixiang/promsight/internal/logger"
	"github.com/dushixiang/promsight/internal/promclient"
	"github.com/dushixiang/promsight/internal/repo"
	"github.com/dushixiang/promsight/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// App 组装完成的应用
type App struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Query    *service.QueryService
	Analysis *service.AnalysisService
	History  *service.HistoryService
	Router   *echo.Echo
}

func newApp(cfg *config.AppConfig, logger *zap.Logger, query *service.QueryService, analysis *service.AnalysisService, history *service.HistoryService, router *echo.Echo) *App {
	return &App{
		Config:   cfg,
		Logger:   logger,
		Query:    query,
		Analysis: analysis,
		History:  history,
		Router:   router,
	}
}

// PruneHistory 按 database.retention_days 清理分析历史，未启用历史或未设置保留天数时跳过
func (a *App) PruneHistory(ctx context.Context) (int64, error) {
	if !a.History.Enabled() || a.Config.GetRetention() <= 0 {
		return 0, nil
	}
	return a.History.Prune(ctx, a.Config.GetRetention())
}

func provideLogger(cfg *config.AppConfig) (*zap.Logger, func()) {
	log := logger.New(cfg.Log)
	return log, func() {
		_ = log.Sync()
	}
}

func providePromClient(logger *zap.Logger, cfg *config.AppConfig) (*promclient.Client, error) {
	return promclient.NewClient(logger, promclient.Config{
		URL:                cfg.PrometheusURL,
		Mode:               cfg.Prometheus.Mode,
		Timeout:            cfg.GetPrometheusTimeout(),
		InsecureSkipVerify: cfg.Prometheus.InsecureSkipVerify,
	})
}

func provideModelProvider(logger *zap.Logger, cfg *config.AppConfig) llm.Provider {
	return llm.NewOllama(logger, llm.OllamaConfig{
		Endpoint: cfg.LLM.Endpoint,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.GetLLMTimeout(),
	})
}

// provideAnalysisRepo 未启用历史时返回 nil
func provideAnalysisRepo(logger *zap.Logger, cfg *config.AppConfig) (*repo.AnalysisRepo, func(), error) {
	if !cfg.Database.Enabled {
		return nil, func() {}, nil
	}
	db, err := repo.OpenDB(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("分析历史已启用", zap.String("type", cfg.Database.Type))
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return repo.NewAnalysisRepo(db), cleanup, nil
}

func provideHistoryStore(history *service.HistoryService) service.HistoryStore {
	return history.Store()
}

func provideQueryDefaults(cfg *config.AppConfig) config.QueryConfig {
	return cfg.Query
}
