package config

import (
	"errors"
	"testing"
	"time"

	"github.com/dushixiang/promsight/internal/timespec"

	"github.com/spf13/afero"
)

func writeConfig(t *testing.T, content string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, DefaultPath, []byte(content), 0644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return fs
}

func TestLoadMinimal(t *testing.T) {
	fs := writeConfig(t, "prometheus_url: http://prom:9090/\n")
	cfg, err := Load(fs, DefaultPath)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.PrometheusURL != "http://prom:9090/" {
		t.Errorf("PrometheusURL = %q", cfg.PrometheusURL)
	}
	if cfg.Prometheus.Mode != "chunked" || cfg.LLM.Model != "deepseek-r1:7b" {
		t.Errorf("默认值未生效: %+v", cfg)
	}
	if cfg.Query.Range != "1m" || cfg.Query.Step != "15s" {
		t.Errorf("查询默认值不符: %+v", cfg.Query)
	}
	if cfg.GetPrometheusTimeout() != 30*time.Second || cfg.GetLLMTimeout() != 5*time.Minute {
		t.Errorf("超时默认值不符")
	}
}

func TestLoadFull(t *testing.T) {
	fs := writeConfig(t, `
prometheus_url: https://prom.example.com
prometheus:
  mode: range
  timeout: 10
  insecure_skip_verify: true
llm:
  endpoint: http://gpu:11434
  model: qwen2.5:14b
  api_key: token
query:
  range: 2h
  step: 1m
log:
  level: debug
  format: json
database:
  enabled: true
  type: postgres
  dsn: postgres://u:p@db/promsight
  retention_days: 30
`)
	cfg, err := Load(fs, DefaultPath)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if cfg.Prometheus.Mode != "range" || !cfg.Prometheus.InsecureSkipVerify {
		t.Errorf("prometheus 配置不符: %+v", cfg.Prometheus)
	}
	if cfg.GetPrometheusTimeout() != 10*time.Second {
		t.Errorf("超时 = %v", cfg.GetPrometheusTimeout())
	}
	if cfg.LLM.Model != "qwen2.5:14b" || cfg.LLM.APIKey != "token" {
		t.Errorf("llm 配置不符: %+v", cfg.LLM)
	}
	if cfg.Query.Query != "node_memory_MemFree_bytes" {
		t.Errorf("未填写的字段应保留默认值: %q", cfg.Query.Query)
	}
	if !cfg.Database.Enabled || cfg.Database.Type != "postgres" {
		t.Errorf("database 配置不符: %+v", cfg.Database)
	}
	if cfg.GetRetention() != 30*24*time.Hour {
		t.Errorf("保留时长 = %v", cfg.GetRetention())
	}
}

func TestLoadMissingPrometheusURL(t *testing.T) {
	fs := writeConfig(t, "llm:\n  model: x\n")
	_, err := Load(fs, DefaultPath)
	if !errors.Is(err, ErrMissingPrometheusURL) {
		t.Fatalf("期望 ErrMissingPrometheusURL, 得到 %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("文件不存在", func(t *testing.T) {
		if _, err := Load(afero.NewMemMapFs(), DefaultPath); err == nil {
			t.Error("期望错误")
		}
	})

	cases := map[string]string{
		"YAML 语法错误": "prometheus_url: [",
		"未知拉取模式":    "prometheus_url: http://p\nprometheus:\n  mode: stream\n",
		"未知数据库类型":   "prometheus_url: http://p\ndatabase:\n  enabled: true\n  type: mysql\n",
		"数据库缺少 DSN": "prometheus_url: http://p\ndatabase:\n  enabled: true\n  dsn: \"\"\n",
		"保留天数为负":    "prometheus_url: http://p\ndatabase:\n  enabled: true\n  retention_days: -1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content), DefaultPath); err == nil {
				t.Error("期望错误")
			}
		})
	}

	t.Run("默认步长非法", func(t *testing.T) {
		_, err := Load(writeConfig(t, "prometheus_url: http://p\nquery:\n  step: 15x\n"), DefaultPath)
		if !errors.Is(err, timespec.ErrInvalidStepFormat) {
			t.Errorf("期望 ErrInvalidStepFormat, 得到 %v", err)
		}
	})

	t.Run("默认范围不接受秒", func(t *testing.T) {
		_, err := Load(writeConfig(t, "prometheus_url: http://p\nquery:\n  range: 30s\n"), DefaultPath)
		if !errors.Is(err, timespec.ErrInvalidTimeFormat) {
			t.Errorf("期望 ErrInvalidTimeFormat, 得到 %v", err)
		}
	})
}
