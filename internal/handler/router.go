package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dushixiang/promsight/internal/telemetry"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// NewRouter 注册全部 HTTP 路由
func NewRouter(logger *zap.Logger, metrics *telemetry.Metrics, queryHandler *QueryHandler, analysisHandler *AnalysisHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(accessLog(logger, metrics))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.POST("/query", queryHandler.Query)
	api.POST("/chat", queryHandler.Chat)
	api.POST("/generate", queryHandler.Generate)
	api.GET("/analyses", analysisHandler.List)
	api.GET("/analyses/:id", analysisHandler.Get)

	return e
}

// accessLog 记录请求日志与请求计数
func accessLog(logger *zap.Logger, metrics *telemetry.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveHTTP(req.Method, route, strconv.Itoa(status))
			logger.Debug("HTTP 请求",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", status),
				zap.Duration("elapsed", time.Since(start)))
			return nil
		}
	}
}
