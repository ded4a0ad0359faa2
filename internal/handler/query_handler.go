package handler

import (
	"errors"
	"net/http"

	"github.com/dushixiang/promsight/internal/llm"
	"github.com/dushixiang/promsight/internal/metric"
	"github.com/dushixiang/promsight/internal/service"
	"github.com/dushixiang/promsight/internal/timespec"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// QueryHandler 查询与模型对话处理器
type QueryHandler struct {
	logger          *zap.Logger
	queryService    *service.QueryService
	analysisService *service.AnalysisService
}

func NewQueryHandler(logger *zap.Logger, queryService *service.QueryService, analysisService *service.AnalysisService) *QueryHandler {
	return &QueryHandler{
		logger:          logger,
		queryService:    queryService,
		analysisService: analysisService,
	}
}

// ChatRequest 多轮对话请求
type ChatRequest struct {
	Messages []llm.Message `json:"messages" validate:"required,min=1,dive"`
}

// GenerateRequest 单轮生成请求
type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// Query 执行一次查询分析
// POST /api/query
func (h *QueryHandler) Query(c echo.Context) error {
	var req service.QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "请求参数错误",
		})
	}

	result, err := h.queryService.Run(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, "查询分析失败", err)
	}
	return c.JSON(http.StatusOK, result)
}

// Chat 多轮对话
// POST /api/chat
func (h *QueryHandler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "请求参数错误",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	reply, err := h.analysisService.Chat(c.Request().Context(), req.Messages)
	if err != nil {
		return h.fail(c, "对话失败", err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"reply": reply,
	})
}

// Generate 单轮生成
// POST /api/generate
func (h *QueryHandler) Generate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "请求参数错误",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	reply, err := h.analysisService.Generate(c.Request().Context(), req.Prompt)
	if err != nil {
		return h.fail(c, "生成失败", err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"reply": reply,
	})
}

// fail 按错误类型映射状态码
func (h *QueryHandler) fail(c echo.Context, msg string, err error) error {
	switch {
	case errors.Is(err, timespec.ErrInvalidTimeFormat), errors.Is(err, timespec.ErrInvalidStepFormat):
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, metric.ErrMalformedSample):
		h.logger.Error(msg, zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Prometheus 返回了无法解析的数据",
		})
	case errors.Is(err, llm.ErrModelService):
		h.logger.Error(msg, zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "模型服务不可用",
		})
	default:
		h.logger.Error(msg, zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": msg,
		})
	}
}
