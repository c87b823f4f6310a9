package data

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// StaticGenerator 返回固定文本，用于本地开发
type StaticGenerator struct {
	response string
}

// NewStaticGenerator 创建固定文本生成器
func NewStaticGenerator(response string) *StaticGenerator {
	return &StaticGenerator{response: response}
}

// Name 提供方名称
func (g *StaticGenerator) Name() string { return "static" }

// Generate 忽略 prompt，返回配置的文本
func (g *StaticGenerator) Generate(ctx context.Context, _ string, _ float64) (string, error) {
	_, span := otel.Tracer("checklistadvisor/generator").Start(ctx, "generator.generate")
	defer span.End()
	span.SetAttributes(attribute.String("generator.provider", g.Name()))

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.response, nil
}
