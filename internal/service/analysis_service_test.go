package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dushixiang/promsight/internal/llm"
	"github.com/dushixiang/promsight/internal/metric"
	"github.com/dushixiang/promsight/internal/telemetry"

	"go.uber.org/zap"
)

func newTestAnalysis(provider llm.Provider) *AnalysisService {
	return NewAnalysisService(zap.NewNop(), llm.NewClient(provider), telemetry.NewMetrics())
}

func TestBuildPrompt(t *testing.T) {
	table := &metric.Table{Rows: []metric.Sample{
		{
			Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.Local),
			Labels:    map[string]string{"instance": "host1", "job": "node"},
			Value:     42.5,
		},
	}}
	prompt := newTestAnalysis(&fakeProvider{}).BuildPrompt("up", table)

	for _, want := range []string{"up", "共 1 条样本", "2025-03-01 10:00:00.000", "host1", "42.5", "关键趋势", "异常"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("提示词缺少 %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "{{") {
		t.Errorf("模板占位符未替换:\n%s", prompt)
	}
}

func TestAnalyzeNoDataSkipsModel(t *testing.T) {
	provider := &fakeProvider{reply: "不应调用"}
	s := newTestAnalysis(provider)

	for name, table := range map[string]*metric.Table{"nil": nil, "空表": {}} {
		got, err := s.Analyze(context.Background(), "up", table)
		if err != nil || got != NoDataMessage {
			t.Errorf("%s: Analyze = %q, %v", name, got, err)
		}
	}
	if len(provider.prompts) != 0 {
		t.Error("无数据时不应调用模型")
	}
}

func TestChatIsCleaned(t *testing.T) {
	provider := &fakeProvider{reply: "<think>想一想</think> 我是智能助手 "}
	got, err := newTestAnalysis(provider).Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "你是一个智能助手"},
		{Role: llm.RoleUser, Content: "请介绍一下你自己"},
	})
	if err != nil || got != "我是智能助手" {
		t.Errorf("Chat = %q, %v", got, err)
	}
	if len(provider.chats) != 1 || len(provider.chats[0]) != 2 {
		t.Errorf("对话消息未完整传递: %+v", provider.chats)
	}
}

func TestGenerateFault(t *testing.T) {
	_, err := newTestAnalysis(&fakeProvider{err: errors.New("timeout")}).Generate(context.Background(), "hi")
	if !errors.Is(err, llm.ErrModelService) {
		t.Errorf("期望 ErrModelService, 得到 %v", err)
	}
}
