package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dushixiang/promsight/internal/timespec"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultPath 默认配置文件路径（相对工作目录）
const DefaultPath = "config.yaml"

// ErrMissingPrometheusURL 配置中缺少 prometheus_url
var ErrMissingPrometheusURL = errors.New("config: prometheus_url is required")

// AppConfig 应用配置
type AppConfig struct {
	PrometheusURL string           `yaml:"prometheus_url"` // Prometheus 地址（必填）
	Prometheus    PrometheusConfig `yaml:"prometheus"`
	LLM           LLMConfig        `yaml:"llm"`
	Query         QueryConfig      `yaml:"query"`
	Server        ServerConfig     `yaml:"server"`
	Log           LogConfig        `yaml:"log"`
	Database      DatabaseConfig   `yaml:"database"`
}

// PrometheusConfig Prometheus 查询配置
type PrometheusConfig struct {
	Mode               string `yaml:"mode"`                 // chunked / range，chunked 仅对向量选择器生效
	Timeout            int    `yaml:"timeout"`              // 请求超时（秒）
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // 跳过证书校验
}

// LLMConfig 模型服务配置
type LLMConfig struct {
	Endpoint string `yaml:"endpoint"` // Ollama 地址
	Model    string `yaml:"model"`    // 模型名称
	APIKey   string `yaml:"api_key"`  // 网关 Token（可选）
	Timeout  int    `yaml:"timeout"`  // 请求超时（秒）
}

// QueryConfig 查询默认值
type QueryConfig struct {
	Query string `yaml:"query"`
	Range string `yaml:"range"`
	Step  string `yaml:"step"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console / json
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`    // MB
	MaxBackups int    `yaml:"max_backups"` // 保留的旧日志文件数
	MaxAge     int    `yaml:"max_age"`     // 天数
	Compress   bool   `yaml:"compress"`
}

// DatabaseConfig 分析历史存储配置（可选）
type DatabaseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Type          string `yaml:"type"` // sqlite / postgres
	DSN           string `yaml:"dsn"`
	RetentionDays int    `yaml:"retention_days"` // 启动 serve 时清理更早的记录，0 表示永久保留
}

// Default 返回带默认值的配置（不含 prometheus_url）
func Default() *AppConfig {
	return &AppConfig{
		Prometheus: PrometheusConfig{
			Mode:    "chunked",
			Timeout: 30,
		},
		LLM: LLMConfig{
			Endpoint: "http://localhost:11434",
			Model:    "deepseek-r1:7b",
			Timeout:  300,
		},
		Query: QueryConfig{
			Query: "node_memory_MemFree_bytes",
			Range: "1m",
			Step:  "15s",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "promsight.db",
		},
	}
}

// Load 从文件系统读取配置
func Load(fs afero.Fs, path string) (*AppConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 配置，未填写的字段使用默认值
func Parse(data []byte) (*AppConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	if c.PrometheusURL == "" {
		return ErrMissingPrometheusURL
	}
	switch c.Prometheus.Mode {
	case "chunked", "range":
	default:
		return fmt.Errorf("config: unsupported prometheus.mode %q", c.Prometheus.Mode)
	}
	if c.Database.Enabled {
		switch c.Database.Type {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("config: unsupported database.type %q", c.Database.Type)
		}
		if c.Database.DSN == "" {
			return fmt.Errorf("config: database.dsn is required when database is enabled")
		}
		if c.Database.RetentionDays < 0 {
			return fmt.Errorf("config: database.retention_days must not be negative")
		}
	}
	if _, err := timespec.ParseRange(c.Query.Range); err != nil {
		return fmt.Errorf("config: query.range: %w", err)
	}
	if _, err := timespec.ParseStep(c.Query.Step); err != nil {
		return fmt.Errorf("config: query.step: %w", err)
	}
	return nil
}

// GetPrometheusTimeout Prometheus 请求超时
func (c *AppConfig) GetPrometheusTimeout() time.Duration {
	return seconds(c.Prometheus.Timeout, 30)
}

// GetRetention 分析历史保留时长，0 表示永久保留
func (c *AppConfig) GetRetention() time.Duration {
	if c.Database.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.Database.RetentionDays) * 24 * time.Hour
}

// GetLLMTimeout 模型请求超时
func (c *AppConfig) GetLLMTimeout() time.Duration {
	return seconds(c.LLM.Timeout, 300)
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}
