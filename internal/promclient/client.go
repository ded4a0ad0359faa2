package promclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dushixiang/promsight/internal/timespec"

	"github.com/prometheus/client_golang/api"
	"go.uber.org/zap"
)

// 拉取模式
const (
	ModeChunked = "chunked" // 按步长分块的区间向量即时查询，仅适用于向量选择器
	ModeRange   = "range"   // 单次 query_range
)

// Config Prometheus 客户端配置
type Config struct {
	URL                string
	Mode               string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// APIError Prometheus 返回的非成功响应
type APIError struct {
	StatusCode int
	ErrorType  string
	Message    string
}

func (e *APIError) Error() string {
	if e.ErrorType == "" {
		return fmt.Sprintf("prometheus returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("prometheus returned status %d (%s): %s", e.StatusCode, e.ErrorType, e.Message)
}

// Client Prometheus 查询客户端
// 同一个 Client 不保证并发安全，由调用方串行使用
type Client struct {
	logger *zap.Logger
	api    api.Client
	mode   string
}

// NewClient 创建 Prometheus 客户端
func NewClient(logger *zap.Logger, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("prometheus url is empty")
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeChunked
	}
	if mode != ModeChunked && mode != ModeRange {
		return nil, fmt.Errorf("unsupported fetch mode: %s", mode)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c, err := api.NewClient(api.Config{
		Address: cfg.URL,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}

	return &Client{
		logger: logger,
		api:    c,
		mode:   mode,
	}, nil
}

// Mode 当前拉取模式
func (c *Client) Mode() string {
	return c.mode
}

// Query 即时查询
func (c *Client) Query(ctx context.Context, query string, ts time.Time) (*QueryResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("time", formatTime(ts))
	return c.do(ctx, "/api/v1/query", params)
}

// QueryRange 区间查询
func (c *Client) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) (*QueryResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start", formatTime(start))
	params.Set("end", formatTime(end))
	if step > 0 {
		params.Set("step", strconv.FormatFloat(step.Seconds(), 'f', -1, 64))
	}
	return c.do(ctx, "/api/v1/query_range", params)
}

// Fetch 拉取指标在窗口内的全部样本，interval 为分块提示
// 分块模式下 query 不是向量选择器时无法追加 [Ns]，改用单次 query_range
func (c *Client) Fetch(ctx context.Context, query string, window timespec.Window, interval time.Duration) ([]Result, error) {
	if c.mode == ModeChunked {
		if isSelector(query) {
			return c.fetchChunked(ctx, query, window, interval)
		}
		c.logger.Info("查询不是向量选择器，改用 query_range", zap.String("query", query))
	}
	result, err := c.QueryRange(ctx, query, window.Start, window.End, interval)
	if err != nil {
		return nil, err
	}
	return result.Data.Result, nil
}

// selectorPattern 可选的指标名加可选的标签匹配器，如 up、up{job="node"}、{__name__=~"node_.*"}
var selectorPattern = regexp.MustCompile(`^\s*(?:[a-zA-Z_:][a-zA-Z0-9_:]*\s*)?(?:\{(?:[^{}"'\x60]|"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|\x60[^\x60]*\x60)*\})?\s*$`)

func isSelector(query string) bool {
	return strings.TrimSpace(query) != "" && selectorPattern.MatchString(query)
}

type chunk struct {
	expr string
	at   time.Time
}

// planChunks 将窗口按 size 切分，最后一块可能更短；不足一秒的尾块丢弃
func planChunks(query string, window timespec.Window, size time.Duration) []chunk {
	total := window.Duration()
	if size <= 0 || size > total {
		size = total
	}

	var chunks []chunk
	cursor := window.Start
	for cursor.Before(window.End) {
		n := size
		if cursor.Add(n).After(window.End) {
			n = window.End.Sub(cursor)
		}
		seconds := int64(n / time.Second)
		if seconds <= 0 {
			break
		}
		at := cursor.Add(time.Duration(seconds) * time.Second)
		chunks = append(chunks, chunk{
			expr: fmt.Sprintf("%s[%ds]", query, seconds),
			at:   at,
		})
		cursor = at
	}
	return chunks
}

// fetchChunked 每块以区间向量 query[Ns] 在块末尾做即时查询，逐块串行，结果按块顺序拼接
func (c *Client) fetchChunked(ctx context.Context, query string, window timespec.Window, size time.Duration) ([]Result, error) {
	var results []Result
	for _, ch := range planChunks(query, window, size) {
		c.logger.Debug("查询 Prometheus 分块",
			zap.String("query", ch.expr),
			zap.Time("time", ch.at))
		result, err := c.Query(ctx, ch.expr, ch.at)
		if err != nil {
			return nil, err
		}
		results = append(results, result.Data.Result...)
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values) (*QueryResult, error) {
	u := c.api.URL(endpoint, nil)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, body, err := c.api.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query prometheus: %w", err)
	}

	var result QueryResult
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	decodeErr := decoder.Decode(&result)

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		if decodeErr == nil && result.Error != "" {
			apiErr.ErrorType = result.ErrorType
			apiErr.Message = result.Error
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode prometheus response: %w", decodeErr)
	}
	if result.Status != "success" {
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorType: result.ErrorType, Message: result.Error}
	}
	for _, w := range result.Warnings {
		c.logger.Warn("Prometheus 查询告警", zap.String("endpoint", endpoint), zap.String("warning", w))
	}
	return &result, nil
}

func formatTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.Unix())+float64(t.Nanosecond())/1e9, 'f', -1, 64)
}
