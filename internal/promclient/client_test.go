package promclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dushixiang/promsight/internal/timespec"

	"go.uber.org/zap"
)

type recordedQuery struct {
	path  string
	query string
	time  string
	start string
	end   string
	step  string
}

func newTestServer(t *testing.T, handler func(q recordedQuery) (int, string)) (*httptest.Server, *[]recordedQuery) {
	t.Helper()
	var mu sync.Mutex
	var seen []recordedQuery
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := recordedQuery{
			path:  r.URL.Path,
			query: r.URL.Query().Get("query"),
			time:  r.URL.Query().Get("time"),
			start: r.URL.Query().Get("start"),
			end:   r.URL.Query().Get("end"),
			step:  r.URL.Query().Get("step"),
		}
		mu.Lock()
		seen = append(seen, q)
		mu.Unlock()
		status, body := handler(q)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newTestClient(t *testing.T, url, mode string) *Client {
	t.Helper()
	c, err := NewClient(zap.NewNop(), Config{URL: url, Mode: mode, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient 失败: %v", err)
	}
	return c
}

func TestFetchChunked(t *testing.T) {
	srv, seen := newTestServer(t, func(q recordedQuery) (int, string) {
		ts, _ := strconv.ParseFloat(q.time, 64)
		return http.StatusOK, fmt.Sprintf(`{"status":"success","data":{"resultType":"matrix","result":[
			{"metric":{"__name__":"up","instance":"host1","job":"node"},"values":[[%v,"1"]]}
		]}}`, ts)
	})
	c := newTestClient(t, srv.URL, ModeChunked)

	start := time.Unix(1700000000, 0)
	window := timespec.Window{Start: start, End: start.Add(2 * time.Minute)}
	results, err := c.Fetch(context.Background(), "up", window, 15*time.Second)
	if err != nil {
		t.Fatalf("Fetch 失败: %v", err)
	}

	if len(*seen) != 8 {
		t.Fatalf("期望 8 次分块查询, 实际 %d 次", len(*seen))
	}
	for i, q := range *seen {
		if q.path != "/api/v1/query" {
			t.Errorf("第 %d 次请求路径 = %s", i, q.path)
		}
		if q.query != "up[15s]" {
			t.Errorf("第 %d 次查询语句 = %s", i, q.query)
		}
		want := strconv.FormatInt(start.Add(time.Duration(i+1)*15*time.Second).Unix(), 10)
		if q.time != want {
			t.Errorf("第 %d 次查询时间 = %s, 期望 %s", i, q.time, want)
		}
	}
	if len(results) != 8 {
		t.Fatalf("期望拼接 8 条序列, 实际 %d", len(results))
	}
	if results[0].Metric["instance"] != "host1" {
		t.Errorf("标签未保留: %v", results[0].Metric)
	}
	if _, ok := results[0].Values[0][0].(json.Number); !ok {
		t.Errorf("时间戳应保持 json.Number, 实际 %T", results[0].Values[0][0])
	}
}

func TestFetchChunkedLastChunkShorter(t *testing.T) {
	srv, seen := newTestServer(t, func(q recordedQuery) (int, string) {
		return http.StatusOK, `{"status":"success","data":{"resultType":"matrix","result":[]}}`
	})
	c := newTestClient(t, srv.URL, ModeChunked)

	start := time.Unix(1700000000, 0)
	window := timespec.Window{Start: start, End: start.Add(50 * time.Second)}
	if _, err := c.Fetch(context.Background(), "up", window, 20*time.Second); err != nil {
		t.Fatalf("Fetch 失败: %v", err)
	}
	want := []string{"up[20s]", "up[20s]", "up[10s]"}
	if len(*seen) != len(want) {
		t.Fatalf("期望 %d 次查询, 实际 %d", len(want), len(*seen))
	}
	for i, q := range *seen {
		if q.query != want[i] {
			t.Errorf("第 %d 次查询 = %s, 期望 %s", i, q.query, want[i])
		}
	}
}

func TestFetchChunkedWholeWindowWhenChunkTooLarge(t *testing.T) {
	srv, seen := newTestServer(t, func(q recordedQuery) (int, string) {
		return http.StatusOK, `{"status":"success","data":{"resultType":"matrix","result":[]}}`
	})
	c := newTestClient(t, srv.URL, ModeChunked)

	start := time.Unix(1700000000, 0)
	window := timespec.Window{Start: start, End: start.Add(time.Minute)}
	if _, err := c.Fetch(context.Background(), "up", window, time.Hour); err != nil {
		t.Fatalf("Fetch 失败: %v", err)
	}
	if len(*seen) != 1 || (*seen)[0].query != "up[60s]" {
		t.Fatalf("期望单次 up[60s] 查询, 实际 %+v", *seen)
	}
}

func TestFetchRangeMode(t *testing.T) {
	srv, seen := newTestServer(t, func(q recordedQuery) (int, string) {
		return http.StatusOK, `{"status":"success","data":{"resultType":"matrix","result":[
			{"metric":{"instance":"a"},"values":[[1700000000,"1"],[1700000015,"2"]]}
		]}}`
	})
	c := newTestClient(t, srv.URL, ModeRange)

	start := time.Unix(1700000000, 0)
	window := timespec.Window{Start: start, End: start.Add(time.Minute)}
	results, err := c.Fetch(context.Background(), "rate(x[5m])", window, 15*time.Second)
	if err != nil {
		t.Fatalf("Fetch 失败: %v", err)
	}
	if len(*seen) != 1 {
		t.Fatalf("期望一次请求, 实际 %d", len(*seen))
	}
	q := (*seen)[0]
	if q.path != "/api/v1/query_range" || q.query != "rate(x[5m])" || q.step != "15" {
		t.Errorf("请求参数不符: %+v", q)
	}
	if q.start != "1700000000" || q.end != "1700000060" {
		t.Errorf("时间参数不符: start=%s end=%s", q.start, q.end)
	}
	if len(results) != 1 || len(results[0].Values) != 2 {
		t.Fatalf("结果不符: %+v", results)
	}
}

func TestFetchChunkedNonSelectorUsesRange(t *testing.T) {
	srv, seen := newTestServer(t, func(q recordedQuery) (int, string) {
		return http.StatusOK, `{"status":"success","data":{"resultType":"matrix","result":[
			{"metric":{"instance":"a"},"values":[[1700000015,"0.5"]]}
		]}}`
	})
	c := newTestClient(t, srv.URL, ModeChunked)

	start := time.Unix(1700000000, 0)
	window := timespec.Window{Start: start, End: start.Add(time.Minute)}
	results, err := c.Fetch(context.Background(), "rate(node_cpu_seconds_total[5m])", window, 15*time.Second)
	if err != nil {
		t.Fatalf("Fetch 失败: %v", err)
	}
	if len(*seen) != 1 {
		t.Fatalf("期望一次 query_range 请求, 实际 %d", len(*seen))
	}
	q := (*seen)[0]
	if q.path != "/api/v1/query_range" || q.query != "rate(node_cpu_seconds_total[5m])" || q.step != "15" {
		t.Errorf("请求参数不符: %+v", q)
	}
	if len(results) != 1 {
		t.Errorf("结果不符: %+v", results)
	}
}

func TestIsSelector(t *testing.T) {
	cases := map[string]bool{
		"up":                                    true,
		"node_memory_MemFree_bytes":             true,
		`up{job="node"}`:                        true,
		` up {job="node", instance=~"host.*"} `: true,
		`{__name__=~"node_.*"}`:                 true,
		`up{path="/a{b}"}`:                      true,
		"":                                      false,
		"rate(x[5m])":                           false,
		"sum(up)":                               false,
		"up offset 5m":                          false,
		`up{a="1"} + up{a="2"}`:                 false,
		"up / 2":                                false,
	}
	for query, want := range cases {
		if got := isSelector(query); got != want {
			t.Errorf("isSelector(%q) = %v, 期望 %v", query, got, want)
		}
	}
}

func TestQueryErrors(t *testing.T) {
	t.Run("HTTP 错误状态", func(t *testing.T) {
		srv, _ := newTestServer(t, func(q recordedQuery) (int, string) {
			return http.StatusBadRequest, `{"status":"error","errorType":"bad_data","error":"parse error"}`
		})
		c := newTestClient(t, srv.URL, ModeChunked)
		_, err := c.Query(context.Background(), "up{", time.Now())
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("期望 APIError, 得到 %v", err)
		}
		if apiErr.StatusCode != http.StatusBadRequest || apiErr.ErrorType != "bad_data" || apiErr.Message != "parse error" {
			t.Errorf("APIError 内容不符: %+v", apiErr)
		}
	})

	t.Run("非 JSON 响应", func(t *testing.T) {
		srv, _ := newTestServer(t, func(q recordedQuery) (int, string) {
			return http.StatusOK, `not json`
		})
		c := newTestClient(t, srv.URL, ModeChunked)
		if _, err := c.Query(context.Background(), "up", time.Now()); err == nil {
			t.Fatal("期望解码错误")
		}
	})

	t.Run("status 非 success", func(t *testing.T) {
		srv, _ := newTestServer(t, func(q recordedQuery) (int, string) {
			return http.StatusOK, `{"status":"error","error":"boom"}`
		})
		c := newTestClient(t, srv.URL, ModeChunked)
		_, err := c.Query(context.Background(), "up", time.Now())
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "boom" {
			t.Fatalf("期望 boom APIError, 得到 %v", err)
		}
	})

	t.Run("连接失败", func(t *testing.T) {
		c := newTestClient(t, "http://127.0.0.1:1", ModeChunked)
		if _, err := c.Query(context.Background(), "up", time.Now()); err == nil {
			t.Fatal("期望连接错误")
		}
	})
}

func TestPlanChunks(t *testing.T) {
	start := time.Unix(1700000000, 0)
	t.Run("不足一秒的尾块丢弃", func(t *testing.T) {
		window := timespec.Window{Start: start, End: start.Add(30*time.Second + 500*time.Millisecond)}
		chunks := planChunks("up", window, 15*time.Second)
		if len(chunks) != 2 {
			t.Fatalf("期望 2 块, 实际 %d", len(chunks))
		}
		if !chunks[1].at.Equal(start.Add(30 * time.Second)) {
			t.Errorf("末块时间 = %v", chunks[1].at)
		}
	})
	t.Run("步长为零时整窗一块", func(t *testing.T) {
		window := timespec.Window{Start: start, End: start.Add(time.Minute)}
		chunks := planChunks("up", window, 0)
		if len(chunks) != 1 || chunks[0].expr != "up[60s]" {
			t.Errorf("分块不符: %+v", chunks)
		}
	})
}

func TestBackendErrorNotRetried(t *testing.T) {
	srv, seen := newTestServer(t, func(q recordedQuery) (int, string) {
		return http.StatusServiceUnavailable, `{"status":"error","errorType":"unavailable","error":"busy"}`
	})
	c := newTestClient(t, srv.URL, ModeChunked)

	start := time.Unix(1700000000, 0)
	window := timespec.Window{Start: start, End: start.Add(time.Minute)}
	if _, err := c.Fetch(context.Background(), "up", window, 15*time.Second); err == nil {
		t.Fatal("期望错误")
	}
	if len(*seen) != 1 {
		t.Errorf("首块失败后应立即结束, 实际请求 %d 次", len(*seen))
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(zap.NewNop(), Config{}); err == nil {
		t.Error("空 URL 应返回错误")
	}
	if _, err := NewClient(zap.NewNop(), Config{URL: "http://localhost:9090", Mode: "stream"}); err == nil {
		t.Error("未知模式应返回错误")
	}
	c, err := NewClient(zap.NewNop(), Config{URL: "http://localhost:9090"})
	if err != nil {
		t.Fatalf("NewClient 失败: %v", err)
	}
	if c.Mode() != ModeChunked {
		t.Errorf("默认模式 = %s", c.Mode())
	}
}

func TestResultSamples(t *testing.T) {
	vector := Result{Value: []interface{}{json.Number("1700000000"), "3"}}
	if got := vector.Samples(); len(got) != 1 {
		t.Errorf("vector 结果应视为单样本, 得到 %d", len(got))
	}
	if got := (Result{}).Samples(); got != nil {
		t.Errorf("空结果应返回 nil, 得到 %v", got)
	}
}
