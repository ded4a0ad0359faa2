package service

import (
	"context"
	"sync"
	"time"

	"github.com/dushixiang/promsight/internal/config"
	"github.com/dushixiang/promsight/internal/metric"
	"github.com/dushixiang/promsight/internal/models"
	"github.com/dushixiang/promsight/internal/promclient"
	"github.com/dushixiang/promsight/internal/telemetry"
	"github.com/dushixiang/promsight/internal/timespec"

	goerrors "github.com/go-errors/errors"
	"go.uber.org/zap"
)

// Backend 指标后端
type Backend interface {
	Fetch(ctx context.Context, query string, window timespec.Window, interval time.Duration) ([]promclient.Result, error)
}

// HistoryStore 分析历史存储，未启用时为 nil
type HistoryStore interface {
	Create(ctx context.Context, record *models.Analysis) error
}

// QueryRequest 一次查询请求，空字段使用配置中的默认值
type QueryRequest struct {
	Query        string `json:"query"`
	Start        string `json:"start"` // YYYY-MM-DD HH:MM:SS，与 end 同时给出时生效
	End          string `json:"end"`
	Range        string `json:"range"` // 相对时间范围，如 1m / 2h / 7d
	Step         string `json:"step"`  // 步长，如 15s
	SkipAnalysis bool   `json:"skipAnalysis"`
}

// QueryResult 一次查询周期的结果
type QueryResult struct {
	ID      string          `json:"id,omitempty"` // 历史记录ID，未启用历史时为空
	Query   string          `json:"query"`
	Window  timespec.Window `json:"window"`
	Step    string          `json:"step"`
	Table   *metric.Table   `json:"table"`
	Series  []metric.Series `json:"series"`
	NoData  bool            `json:"noData"`
	Outcome string          `json:"outcome"`
	Report  string          `json:"report,omitempty"`
}

// QueryService 串联时间解析、拉取、扁平化与分析
type QueryService struct {
	logger   *zap.Logger
	backend  Backend
	analysis *AnalysisService
	history  HistoryStore
	metrics  *telemetry.Metrics
	defaults config.QueryConfig
	now      func() time.Time

	// 后端连接与模型客户端在多次调用间复用，查询周期串行执行
	mu sync.Mutex
}

func NewQueryService(logger *zap.Logger, backend Backend, analysis *AnalysisService, history HistoryStore, metrics *telemetry.Metrics, defaults config.QueryConfig) *QueryService {
	return &QueryService{
		logger:   logger,
		backend:  backend,
		analysis: analysis,
		history:  history,
		metrics:  metrics,
		defaults: defaults,
		now:      time.Now,
	}
}

// Run 执行一次查询周期
// 时间格式错误在访问后端之前返回；后端故障记录日志后按无数据处理；
// 样本格式错误与模型服务故障直接返回错误
func (s *QueryService) Run(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	req = s.withDefaults(req)

	window, err := timespec.ParseWindow(req.Start, req.End, req.Range, s.now())
	if err != nil {
		s.metrics.ObserveCycle(telemetry.OutcomeInvalidInput)
		return nil, err
	}
	step, err := timespec.ParseStep(req.Step)
	if err != nil {
		s.metrics.ObserveCycle(telemetry.OutcomeInvalidInput)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &QueryResult{
		Query:  req.Query,
		Window: window,
		Step:   req.Step,
	}

	table, outcome, err := s.fetch(ctx, req.Query, window, step)
	if err != nil {
		s.metrics.ObserveCycle(telemetry.OutcomeError)
		return nil, err
	}
	result.Table = table
	result.Series = table.Series()
	result.NoData = table.NoData()

	switch {
	case result.NoData:
		// 不调用模型
		result.Report = NoDataMessage
	case req.SkipAnalysis:
		outcome = telemetry.OutcomeTableOnly
	default:
		report, err := s.analysis.Analyze(ctx, req.Query, table)
		if err != nil {
			s.metrics.ObserveCycle(telemetry.OutcomeModelFault)
			return nil, err
		}
		result.Report = report
	}
	result.Outcome = outcome
	s.metrics.ObserveCycle(outcome)

	s.record(ctx, result)
	return result, nil
}

// fetch 拉取并扁平化；后端故障与无数据返回空表，由 outcome 区分
func (s *QueryService) fetch(ctx context.Context, query string, window timespec.Window, step time.Duration) (*metric.Table, string, error) {
	raw, err := s.backend.Fetch(ctx, query, window, step)
	if err != nil {
		fault := goerrors.Wrap(err, 1)
		s.logger.Error("查询 Prometheus 失败，按无数据处理",
			zap.String("query", query),
			zap.Time("start", window.Start),
			zap.Time("end", window.End),
			zap.Error(err),
			zap.String("stack", fault.ErrorStack()))
		return &metric.Table{}, telemetry.OutcomeBackendFault, nil
	}

	table, err := metric.Flatten(raw)
	if err != nil {
		s.logger.Error("解析 Prometheus 响应失败", zap.String("query", query), zap.Error(err))
		return nil, "", err
	}
	if table.NoData() {
		s.logger.Info("未获取到数据",
			zap.String("query", query),
			zap.Time("start", window.Start),
			zap.Time("end", window.End))
		return table, telemetry.OutcomeNoData, nil
	}
	return table, telemetry.OutcomeReport, nil
}

func (s *QueryService) withDefaults(req QueryRequest) QueryRequest {
	if req.Query == "" {
		req.Query = s.defaults.Query
	}
	if req.Range == "" {
		req.Range = s.defaults.Range
	}
	if req.Step == "" {
		req.Step = s.defaults.Step
	}
	return req
}

// record 保存历史，失败只记录日志
func (s *QueryService) record(ctx context.Context, result *QueryResult) {
	if s.history == nil {
		return
	}

	instances := make([]string, 0, len(result.Series))
	seen := make(map[string]struct{})
	for _, series := range result.Series {
		instance := series.Labels["instance"]
		if _, ok := seen[instance]; ok {
			continue
		}
		seen[instance] = struct{}{}
		instances = append(instances, instance)
	}

	record := &models.Analysis{
		Query:     result.Query,
		StartTime: result.Window.Start.UnixMilli(),
		EndTime:   result.Window.End.UnixMilli(),
		Step:      result.Step,
		Rows:      result.Table.Len(),
		Instances: instances,
		Outcome:   result.Outcome,
		Report:    result.Report,
	}
	if err := s.history.Create(ctx, record); err != nil {
		s.logger.Warn("保存分析历史失败", zap.String("query", result.Query), zap.Error(err))
		return
	}
	result.ID = record.ID
}
