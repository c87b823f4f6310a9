package biz

import (
	"math"
	"strconv"
	"strings"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

// normalize 对任何通过校验的对象都执行：截断、去重、修复置信度与影响级别
func normalize(cand candidate, maxSteps int) domain.ResponseData {
	data := domain.ResponseData{
		Version:         cand.version,
		NextSteps:       make([]domain.NextStep, 0, maxSteps),
		MissingCritical: make([]string, 0, domain.MaxMissingCritical),
		Suggestions:     make([]domain.SuggestionCategory, 0),
	}

	seen := make(map[string]struct{}, len(cand.nextSteps))
	for _, s := range cand.nextSteps {
		if len(data.NextSteps) >= maxSteps {
			break
		}
		key := strings.ToLower(strings.TrimSpace(s.step))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		data.NextSteps = append(data.NextSteps, domain.NextStep{
			Step:       s.step,
			Why:        s.why,
			Impact:     normalizeImpact(s.impact),
			Confidence: normalizeConfidence(s.confidence),
		})
	}

	for _, c := range cand.missingCritical {
		if len(data.MissingCritical) >= domain.MaxMissingCritical {
			break
		}
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		data.MissingCritical = append(data.MissingCritical, c)
	}

	for _, cat := range cand.suggestions {
		if len(data.Suggestions) >= domain.MaxSuggestionGroups {
			break
		}
		out := domain.SuggestionCategory{
			Name:  categoryName(cat),
			Items: make([]domain.SuggestionItem, 0, min(len(cat.items), domain.MaxSuggestionItems)),
		}
		for _, it := range cat.items {
			if len(out.Items) >= domain.MaxSuggestionItems {
				break
			}
			out.Items = append(out.Items, domain.SuggestionItem{
				Text:     truncateRunes(it.Text, domain.MaxSuggestionTextLen),
				Solution: truncateRunes(it.Solution, domain.MaxSuggestionSolLen),
			})
		}
		data.Suggestions = append(data.Suggestions, out)
	}

	return data
}

// normalizeConfidence 修复为 [0,100] 内的整数，无法识别时取默认值55
func normalizeConfidence(v any) int {
	var f float64
	switch c := v.(type) {
	case float64:
		f = c
	case int:
		f = float64(c)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return domain.DefaultConfidence
		}
		f = parsed
	default:
		return domain.DefaultConfidence
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.DefaultConfidence
	}
	f = math.Round(f)
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	default:
		return int(f)
	}
}

// normalizeImpact 枚举外的值直接丢弃，而不是拒绝整条记录
func normalizeImpact(v any) domain.Impact {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	impact := domain.Impact(strings.ToLower(strings.TrimSpace(s)))
	if !impact.Valid() {
		return ""
	}
	return impact
}

// categoryName 优先 name，其次 category，否则 General
func categoryName(cat candidateCategory) string {
	if name := strings.TrimSpace(cat.name); name != "" {
		return name
	}
	if name := strings.TrimSpace(cat.category); name != "" {
		return name
	}
	return domain.DefaultSuggestCategory
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
