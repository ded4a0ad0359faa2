package service

import (
	"context"
	"strconv"
	"time"

	"github.com/dushixiang/promsight/internal/llm"
	"github.com/dushixiang/promsight/internal/metric"
	"github.com/dushixiang/promsight/internal/telemetry"

	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"
)

// NoDataMessage 无数据时返回给调用方的固定提示，不调用模型
const NoDataMessage = "未获取到有效数据，无法进行分析。"

const analysisPrompt = `你是一名运维监控分析专家。以下是 Prometheus 查询语句 {{query}} 返回的监控数据，共 {{rows}} 条样本：

{{table}}
请根据以上数据：
1. 总结数据的关键趋势；
2. 判断是否存在异常，如存在请指出异常的实例、时间点与可能原因。`

// AnalysisService 构造分析提示词并调用模型
type AnalysisService struct {
	logger  *zap.Logger
	llm     *llm.Client
	metrics *telemetry.Metrics
	prompt  *fasttemplate.Template
}

func NewAnalysisService(logger *zap.Logger, client *llm.Client, metrics *telemetry.Metrics) *AnalysisService {
	return &AnalysisService{
		logger:  logger,
		llm:     client,
		metrics: metrics,
		prompt:  fasttemplate.New(analysisPrompt, "{{", "}}"),
	}
}

// BuildPrompt 生成分析提示词
func (s *AnalysisService) BuildPrompt(query string, table *metric.Table) string {
	return s.prompt.ExecuteString(map[string]interface{}{
		"query": query,
		"rows":  strconv.Itoa(table.Len()),
		"table": table.String(),
	})
}

// Analyze 对扁平表生成摘要；无数据时直接返回 NoDataMessage
func (s *AnalysisService) Analyze(ctx context.Context, query string, table *metric.Table) (string, error) {
	if table.NoData() {
		return NoDataMessage, nil
	}
	return s.Generate(ctx, s.BuildPrompt(query, table))
}

// Generate 单轮生成
func (s *AnalysisService) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	reply, err := s.llm.Generate(ctx, prompt)
	s.observe("generate", start, err)
	return reply, err
}

// Chat 多轮对话
func (s *AnalysisService) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	start := time.Now()
	reply, err := s.llm.Chat(ctx, messages)
	s.observe("chat", start, err)
	return reply, err
}

func (s *AnalysisService) observe(operation string, start time.Time, err error) {
	elapsed := time.Since(start)
	s.metrics.ObserveModel(operation, elapsed, err)
	if err != nil {
		s.logger.Error("模型调用失败",
			zap.String("operation", operation),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	s.logger.Debug("模型调用成功",
		zap.String("operation", operation),
		zap.Duration("elapsed", elapsed))
}
