package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ErrAPIKeyRequired 缺少 API key
var ErrAPIKeyRequired = errors.New("API key required")

// defaultAnthropicModel 未配置模型时使用
const defaultAnthropicModel = anthropic.Model("claude-haiku-4-5")

// AnthropicGenerator 通过 Anthropic Messages API 生成文本，与 HTTP 生成器共用熔断策略
type AnthropicGenerator struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	breaker   *gobreaker.CircuitBreaker
}

// NewAnthropicGenerator 创建 Anthropic 生成器；baseURL 为空时使用官方地址
func NewAnthropicGenerator(apiKey, baseURL, model string, maxTokens int, bs BreakerSettings, logger *zap.Logger) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or generator.api_key", ErrAPIKeyRequired)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// 不重试，失败直接返回给调用方
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	m := anthropic.Model(model)
	if model == "" {
		m = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	g := &AnthropicGenerator{
		client:    anthropic.NewClient(opts...),
		model:     m,
		maxTokens: int64(maxTokens),
	}
	if bs.Enabled {
		g.breaker = newBreaker("anthropic", bs, logger)
	}
	return g, nil
}

// Name 提供方名称
func (g *AnthropicGenerator) Name() string { return "anthropic" }

// BreakerState 当前熔断状态，未启用时为 closed
func (g *AnthropicGenerator) BreakerState() gobreaker.State {
	return breakerStateOf(g.breaker)
}

// Generate 生成文本，返回第一个 text block
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	ctx, span := otel.Tracer("checklistadvisor/generator").Start(ctx, "generator.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("generator.provider", g.Name()),
		attribute.String("generator.model", string(g.model)),
		attribute.Int("generator.prompt_len", len(prompt)),
	)

	text, err := executeWithBreaker(g.breaker, func() (string, error) {
		message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       g.model,
			MaxTokens:   g.maxTokens,
			Temperature: anthropic.Float(temperature),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return "", fmt.Errorf("anthropic messages: %w", err)
		}

		span.SetAttributes(
			attribute.Int64("generator.input_tokens", message.Usage.InputTokens),
			attribute.Int64("generator.output_tokens", message.Usage.OutputTokens),
		)
		for _, block := range message.Content {
			if block.Type == "text" {
				return block.Text, nil
			}
		}
		return "", errors.New("unexpected response format: no text block")
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}
