package handler

import (
	"errors"
	"net/http"

	"github.com/dushixiang/promsight/internal/repo"
	"github.com/dushixiang/promsight/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AnalysisHandler 分析历史处理器
type AnalysisHandler struct {
	logger  *zap.Logger
	service *service.HistoryService
}

func NewAnalysisHandler(logger *zap.Logger, service *service.HistoryService) *AnalysisHandler {
	return &AnalysisHandler{
		logger:  logger,
		service: service,
	}
}

// ListRequest 分页参数
type ListRequest struct {
	Query    string `query:"query"`
	PageNo   int    `query:"pageNo" validate:"omitempty,min=1"`
	PageSize int    `query:"pageSize" validate:"omitempty,min=1,max=100"`
}

// List 分页查询分析历史
// GET /api/analyses
func (h *AnalysisHandler) List(c echo.Context) error {
	var req ListRequest
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
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	items, total, err := h.service.List(c.Request().Context(), req.Query, req.PageNo, req.PageSize)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

// Get 查询单条分析历史
// GET /api/analyses/:id
func (h *AnalysisHandler) Get(c echo.Context) error {
	record, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (h *AnalysisHandler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrHistoryDisabled):
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "未启用分析历史",
		})
	case errors.Is(err, repo.ErrAnalysisNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "记录不存在",
		})
	default:
		h.logger.Error("查询分析历史失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "查询分析历史失败",
		})
	}
}
