package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrModelService 模型服务调用失败
var ErrModelService = errors.New("model service fault")

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 多轮对话消息
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// Provider 模型服务能力接口，返回模型原始回复
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, messages []Message) (string, error)
}

var (
	// 推理过程包裹标签连同内容一起移除
	reasoningPattern = regexp.MustCompile(`(?is)<(think|thinking|reasoning)>.*?</(think|thinking|reasoning)>`)
	tagPattern       = regexp.MustCompile(`(?s)<.*?>`)
)

// Clean 清理模型回复中的结构化标签并去掉首尾空白
func Clean(text string) string {
	text = reasoningPattern.ReplaceAllString(text, "")
	text = tagPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Client 对 Provider 的所有回复统一执行 Clean
type Client struct {
	provider Provider
}

// NewClient 创建模型客户端
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Generate 单轮生成
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reply, err := c.provider.Generate(ctx, prompt)
	if err != nil {
		return "", wrapFault(err)
	}
	return Clean(reply), nil
}

// Chat 多轮对话
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	reply, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", wrapFault(err)
	}
	return Clean(reply), nil
}

func wrapFault(err error) error {
	if errors.Is(err, ErrModelService) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrModelService, err)
}
