package biz

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

// 严格校验的字符串上限
const (
	maxStepLen     = 300
	maxWhyLen      = 600
	maxCriticalLen = 300
)

const (
	versionDefault  = "1"
	versionFallback = "fallback-1"
	versionMinimal  = "minimal-1"
)

// ValidationResult 校验流水线输出
type ValidationResult struct {
	Data  domain.ResponseData
	Shape domain.ResponseShape
}

// ResponseValidator 将生成服务的原始输出转换为有界、去重、结构安全的响应
// 任何一层失败都降级到下一层，永远不会让请求因为模型输出而失败
type ResponseValidator struct {
	logger *zap.Logger
}

// NewResponseValidator 创建校验器
func NewResponseValidator(logger *zap.Logger) *ResponseValidator {
	return &ResponseValidator{logger: logger}
}

// Process 提取 -> 解析 -> 严格校验 -> 启发式降级 -> 最小对象 -> 归一化
func (v *ResponseValidator) Process(raw string, progress domain.Progress, maxSteps int) ValidationResult {
	maxSteps = clampMaxSteps(maxSteps)
	tree := parseTree(extractJSON(raw))

	shape := domain.ShapeStrict
	cand, err := validateTree(tree)
	if err != nil {
		v.logger.Warn("model output failed validation, using fallback shape",
			zap.Error(err),
			zap.Int("raw_len", len(raw)),
		)

		shape = domain.ShapeFallback
		cand, err = validateTree(fallbackTree(progress, maxSteps))
		if err != nil {
			v.logger.Error("fallback shape failed validation, using minimal shape", zap.Error(err))
			shape = domain.ShapeMinimal
			cand = candidate{version: versionMinimal}
		}
	}

	data := normalize(cand, maxSteps)
	data.Shape = shape
	if shape != domain.ShapeMinimal {
		summary := progress.Summary
		data.ProgressSummary = &summary
	}

	return ValidationResult{Data: data, Shape: shape}
}

// extractJSON 截取第一个 '{' 到最后一个 '}' 之间的文本
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	if start < 0 {
		return "{}"
	}
	end := strings.LastIndex(raw, "}")
	if end < start {
		return "{}"
	}
	return raw[start : end+1]
}

// parseTree 解析为通用树，失败或非对象时返回空对象
func parseTree(s string) map[string]any {
	var tree map[string]any
	if err := json.Unmarshal([]byte(s), &tree); err != nil || tree == nil {
		return map[string]any{}
	}
	return tree
}

// candidate 通过严格校验的中间结构
// impact/confidence 保持原始值，由归一化阶段修复
type candidate struct {
	version         string
	nextSteps       []candidateStep
	missingCritical []string
	suggestions     []candidateCategory
}

type candidateStep struct {
	step       string
	why        string
	impact     any
	confidence any
}

type candidateCategory struct {
	name     string
	category string
	items    []domain.SuggestionItem
}

// schemaError 校验失败位置
type schemaError struct {
	path string
	msg  string
}

func (e *schemaError) Error() string {
	return fmt.Sprintf("%s: %s", e.path, e.msg)
}

func invalid(path, format string, args ...any) error {
	return &schemaError{path: path, msg: fmt.Sprintf(format, args...)}
}

// validateTree 按 ResponseData 的结构校验通用树
// 缺失的可选数组（missingCritical、suggestions）视为空；数组超长与枚举越界不在此拒绝，交给归一化处理
func validateTree(tree map[string]any) (candidate, error) {
	var cand candidate

	switch ver := tree["version"].(type) {
	case nil:
		cand.version = versionDefault
	case string:
		cand.version = ver
		if strings.TrimSpace(ver) == "" {
			cand.version = versionDefault
		}
	case float64:
		cand.version = strconv.FormatFloat(ver, 'f', -1, 64)
	default:
		return cand, invalid("version", "expected string, got %T", ver)
	}

	if ps, ok := tree["progressSummary"]; ok && ps != nil {
		if _, isObj := ps.(map[string]any); !isObj {
			return cand, invalid("progressSummary", "expected object, got %T", ps)
		}
	}

	// nextSteps 是唯一必需字段：空对象（无 JSON、解析失败）由此进入降级
	if v, ok := tree["nextSteps"]; !ok || v == nil {
		return cand, invalid("nextSteps", "required array")
	}
	steps, err := arrayField(tree, "nextSteps")
	if err != nil {
		return cand, err
	}
	for i, el := range steps {
		path := fmt.Sprintf("nextSteps[%d]", i)
		obj, ok := el.(map[string]any)
		if !ok {
			return cand, invalid(path, "expected object, got %T", el)
		}
		step, ok := obj["step"].(string)
		if !ok || strings.TrimSpace(step) == "" {
			return cand, invalid(path+".step", "required non-empty string")
		}
		if utf8.RuneCountInString(step) > maxStepLen {
			return cand, invalid(path+".step", "longer than %d characters", maxStepLen)
		}
		why, err := optionalString(obj, "why", path)
		if err != nil {
			return cand, err
		}
		if utf8.RuneCountInString(why) > maxWhyLen {
			return cand, invalid(path+".why", "longer than %d characters", maxWhyLen)
		}
		cand.nextSteps = append(cand.nextSteps, candidateStep{
			step:       strings.TrimSpace(step),
			why:        strings.TrimSpace(why),
			impact:     obj["impact"],
			confidence: obj["confidence"],
		})
	}

	critical, err := arrayField(tree, "missingCritical")
	if err != nil {
		return cand, err
	}
	for i, el := range critical {
		path := fmt.Sprintf("missingCritical[%d]", i)
		s, ok := el.(string)
		if !ok {
			return cand, invalid(path, "expected string, got %T", el)
		}
		if utf8.RuneCountInString(s) > maxCriticalLen {
			return cand, invalid(path, "longer than %d characters", maxCriticalLen)
		}
		cand.missingCritical = append(cand.missingCritical, s)
	}

	suggestions, err := arrayField(tree, "suggestions")
	if err != nil {
		return cand, err
	}
	for i, el := range suggestions {
		path := fmt.Sprintf("suggestions[%d]", i)
		obj, ok := el.(map[string]any)
		if !ok {
			return cand, invalid(path, "expected object, got %T", el)
		}
		name, err := optionalString(obj, "name", path)
		if err != nil {
			return cand, err
		}
		category, err := optionalString(obj, "category", path)
		if err != nil {
			return cand, err
		}
		items, err := arrayField(obj, "items")
		if err != nil {
			return cand, invalid(path+".items", "expected array")
		}
		cat := candidateCategory{name: name, category: category}
		for j, it := range items {
			itemPath := fmt.Sprintf("%s.items[%d]", path, j)
			itemObj, ok := it.(map[string]any)
			if !ok {
				return cand, invalid(itemPath, "expected object, got %T", it)
			}
			text, ok := itemObj["text"].(string)
			if !ok {
				return cand, invalid(itemPath+".text", "required string")
			}
			solution, err := optionalString(itemObj, "solution", itemPath)
			if err != nil {
				return cand, err
			}
			cat.items = append(cat.items, domain.SuggestionItem{Text: text, Solution: solution})
		}
		cand.suggestions = append(cand.suggestions, cat)
	}

	return cand, nil
}

// arrayField 读取可选数组字段；缺失或null视为空数组
func arrayField(obj map[string]any, key string) ([]any, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, invalid(key, "expected array, got %T", v)
	}
	return arr, nil
}

func optionalString(obj map[string]any, key, path string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(path+"."+key, "expected string, got %T", v)
	}
	return s, nil
}

// fallbackTree 仅用本地进度合成降级对象
// 取前 maxSteps 条未完成条目原文作为 nextSteps；空文本跳过，超长文本截断，保证能通过校验
func fallbackTree(progress domain.Progress, maxSteps int) map[string]any {
	steps := make([]any, 0, maxSteps)
	for _, cat := range progress.Remaining {
		for _, text := range cat.Remaining {
			if len(steps) >= maxSteps {
				break
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			steps = append(steps, map[string]any{
				"step":       truncateRunes(text, maxStepLen),
				"why":        domain.FallbackWhy,
				"impact":     string(domain.ImpactMedium),
				"confidence": float64(domain.FallbackConfidence),
			})
		}
	}
	return map[string]any{
		"version":         versionFallback,
		"nextSteps":       steps,
		"missingCritical": []any{},
		"suggestions":     []any{},
	}
}
