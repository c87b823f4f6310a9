package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ErrEmptyCompletion 生成服务返回了空内容
var ErrEmptyCompletion = errors.New("generator returned no content")

// chatRequest model-adapter 聊天请求
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse model-adapter 聊天响应
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// HTTPGenerator 通过 model-adapter 的 chat completions 接口生成文本
// 调用失败不重试；熔断打开时快速失败
type HTTPGenerator struct {
	baseURL    string
	model      string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewHTTPGenerator 创建 HTTP 生成器
func NewHTTPGenerator(baseURL, model, apiKey string, maxTokens int, timeout time.Duration, bs BreakerSettings, logger *zap.Logger) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	g := &HTTPGenerator{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		apiKey:    apiKey,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			// 兜底超时，正常由调用方 ctx 控制
			Timeout: timeout + 5*time.Second,
		},
		logger: logger,
	}
	if bs.Enabled {
		g.breaker = newBreaker("model-adapter", bs, logger)
	}
	return g
}

// Name 提供方名称
func (g *HTTPGenerator) Name() string { return "http" }

// BreakerState 当前熔断状态，未启用时为 closed
func (g *HTTPGenerator) BreakerState() gobreaker.State {
	return breakerStateOf(g.breaker)
}

// Generate 生成文本
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	ctx, span := otel.Tracer("checklistadvisor/generator").Start(ctx, "generator.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("generator.provider", g.Name()),
		attribute.String("generator.model", g.model),
		attribute.Int("generator.prompt_len", len(prompt)),
	)

	text, err := executeWithBreaker(g.breaker, func() (string, error) {
		return g.doChat(ctx, prompt, temperature)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("generator.output_len", len(text)))
	return text, nil
}

// doChat 执行一次 chat completions 调用
func (g *HTTPGenerator) doChat(ctx context.Context, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.Debug("model adapter error body", zap.Int("status", resp.StatusCode), zap.Int("body_len", len(respBody)))
		return "", fmt.Errorf("model adapter request failed: status=%d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return chatResp.Choices[0].Message.Content, nil
}
