package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultModel 默认模型
const DefaultModel = "deepseek-r1:7b"

// OllamaConfig Ollama 服务配置
type OllamaConfig struct {
	Endpoint string        // 服务地址，如 http://localhost:11434
	Model    string        // 模型名称
	APIKey   string        // 经网关访问时的 Bearer Token（可选）
	Timeout  time.Duration // 单次请求超时
}

// Ollama 通过 Ollama HTTP API 调用本地或远程模型
type Ollama struct {
	logger   *zap.Logger
	endpoint string
	model    string
	client   *http.Client
}

// NewOllama 创建 Ollama Provider
func NewOllama(logger *zap.Logger, cfg OllamaConfig) *Ollama {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}

	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.APIKey != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey}))
		client.Timeout = cfg.Timeout
	}

	return &Ollama{
		logger:   logger,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		client:   client,
	}
}

// Model 当前使用的模型
func (o *Ollama) Model() string {
	return o.model
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// Generate 调用 /api/generate
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	var resp generateResponse
	err := o.post(ctx, "/api/generate", generateRequest{
		Model:  o.model,
		Prompt: prompt,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", resp.Error)
	}
	return resp.Response, nil
}

// Chat 调用 /api/chat
func (o *Ollama) Chat(ctx context.Context, messages []Message) (string, error) {
	var resp chatResponse
	err := o.post(ctx, "/api/chat", chatRequest{
		Model:    o.model,
		Messages: messages,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", resp.Error)
	}
	return resp.Message.Content, nil
}

func (o *Ollama) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	o.logger.Debug("模型调用完成",
		zap.String("path", path),
		zap.String("model", o.model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("ollama returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("ollama returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
