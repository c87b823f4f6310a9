package biz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

func testProgress() domain.Progress {
	return EstimateProgress(domain.ChecklistSnapshot{
		Scope: "example.com",
		Categories: []domain.ChecklistCategory{
			{Name: "Recon", Items: []domain.ChecklistItem{
				{Text: "Subdomain enumeration", Checked: true},
				{Text: "Port scan"},
				{Text: "Directory brute force"},
			}},
			{Name: "Auth", Items: []domain.ChecklistItem{
				{Text: "Password reset flow"},
			}},
		},
	})
}

func TestProcess_StrictShape(t *testing.T) {
	v := NewResponseValidator(zap.NewNop())
	raw := "Sure! Here you go:\n```json\n" + `{
		"version": "2",
		"nextSteps": [
			{"step": "Enumerate endpoints", "why": "map surface", "impact": "HIGH", "confidence": 80},
			{"step": "enumerate ENDPOINTS", "why": "dup", "impact": "low", "confidence": 10},
			{"step": "Test IDOR on /users", "impact": "critical", "confidence": "70"}
		],
		"missingCritical": ["  Rate limiting on login  ", ""],
		"suggestions": [
			{"name": "Access control", "items": [{"text": "Check IDOR", "solution": "Enforce ownership"}]},
			{"category": "Session", "items": [{"text": "Cookie flags"}]},
			{"items": []}
		]
	}` + "\n```"

	res := v.Process(raw, testProgress(), 6)

	require.Equal(t, domain.ShapeStrict, res.Shape)
	data := res.Data
	assert.Equal(t, "2", data.Version)
	assert.Equal(t, domain.ShapeStrict, data.Shape)
	require.NotNil(t, data.ProgressSummary)
	assert.Equal(t, 25, data.ProgressSummary.OverallPercent)

	require.Len(t, data.NextSteps, 2)
	assert.Equal(t, "Enumerate endpoints", data.NextSteps[0].Step)
	assert.Equal(t, domain.ImpactHigh, data.NextSteps[0].Impact)
	assert.Equal(t, 80, data.NextSteps[0].Confidence)
	assert.Equal(t, "Test IDOR on /users", data.NextSteps[1].Step)
	assert.Equal(t, domain.Impact(""), data.NextSteps[1].Impact, "unknown impact is dropped")
	assert.Equal(t, 70, data.NextSteps[1].Confidence)

	assert.Equal(t, []string{"Rate limiting on login"}, data.MissingCritical)

	require.Len(t, data.Suggestions, 3)
	assert.Equal(t, "Access control", data.Suggestions[0].Name)
	assert.Equal(t, "Session", data.Suggestions[1].Name)
	assert.Equal(t, domain.DefaultSuggestCategory, data.Suggestions[2].Name)
	assert.Empty(t, data.Suggestions[2].Items)
}

func TestProcess_ConfidenceClamping(t *testing.T) {
	v := NewResponseValidator(zap.NewNop())
	raw := `{"nextSteps": [
		{"step": "a", "confidence": 150},
		{"step": "b", "confidence": -5},
		{"step": "c", "confidence": "n/a"},
		{"step": "d"},
		{"step": "e", "confidence": 42.6}
	]}`

	res := v.Process(raw, testProgress(), 10)

	require.Equal(t, domain.ShapeStrict, res.Shape)
	got := make([]int, 0, len(res.Data.NextSteps))
	for _, s := range res.Data.NextSteps {
		got = append(got, s.Confidence)
	}
	assert.Equal(t, []int{100, 0, 55, 55, 43}, got)
	assert.Equal(t, "1", res.Data.Version)
}

func TestProcess_NoJSONFallsBack(t *testing.T) {
	v := NewResponseValidator(zap.NewNop())

	res := v.Process("I cannot help with that.", testProgress(), 6)

	require.Equal(t, domain.ShapeFallback, res.Shape)
	data := res.Data
	assert.Equal(t, versionFallback, data.Version)
	require.NotNil(t, data.ProgressSummary)
	require.Len(t, data.NextSteps, 3)
	assert.Equal(t, "Port scan", data.NextSteps[0].Step)
	assert.Equal(t, domain.FallbackWhy, data.NextSteps[0].Why)
	assert.Equal(t, domain.ImpactMedium, data.NextSteps[0].Impact)
	assert.Equal(t, domain.FallbackConfidence, data.NextSteps[0].Confidence)
	assert.Equal(t, "Password reset flow", data.NextSteps[2].Step)
	assert.NotNil(t, data.MissingCritical)
	assert.NotNil(t, data.Suggestions)
	assert.Empty(t, data.Suggestions)
}

func TestProcess_SchemaViolationFallsBack(t *testing.T) {
	v := NewResponseValidator(zap.NewNop())
	tests := map[string]string{
		"nextSteps not array":   `{"nextSteps": "do things"}`,
		"step missing":          `{"nextSteps": [{"why": "x"}]}`,
		"step too long":         fmt.Sprintf(`{"nextSteps": [{"step": %q}]}`, strings.Repeat("x", maxStepLen+1)),
		"missingCritical type":  `{"missingCritical": [1, 2]}`,
		"item text missing":     `{"suggestions": [{"name": "x", "items": [{"solution": "y"}]}]}`,
		"version object":        `{"version": {"v": 1}}`,
		"progressSummary array": `{"progressSummary": []}`,
		"truncated":             `{"nextSteps": [{"step": "a"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			res := v.Process(raw, testProgress(), 2)
			assert.Equal(t, domain.ShapeFallback, res.Shape)
			assert.Len(t, res.Data.NextSteps, 2)
		})
	}
}

func TestProcess_FallbackWithNothingRemaining(t *testing.T) {
	v := NewResponseValidator(zap.NewNop())
	done := EstimateProgress(domain.ChecklistSnapshot{
		Categories: []domain.ChecklistCategory{{Name: "All", Items: items(3, 0)}},
	})

	res := v.Process("", done, 6)

	assert.Equal(t, domain.ShapeFallback, res.Shape)
	assert.Empty(t, res.Data.NextSteps)
	assert.NotNil(t, res.Data.NextSteps)
}

func TestProcess_Bounds(t *testing.T) {
	v := NewResponseValidator(zap.NewNop())

	var steps, critical, cats []string
	for i := 0; i < 20; i++ {
		steps = append(steps, fmt.Sprintf(`{"step": "step %d"}`, i))
		critical = append(critical, fmt.Sprintf(`"critical %d"`, i))
	}
	var its []string
	for i := 0; i < 15; i++ {
		its = append(its, fmt.Sprintf(`{"text": %q, "solution": %q}`, strings.Repeat("t", 450), strings.Repeat("s", 600)))
	}
	for i := 0; i < 12; i++ {
		cats = append(cats, fmt.Sprintf(`{"name": "c%d", "items": [%s]}`, i, strings.Join(its, ",")))
	}
	raw := fmt.Sprintf(`{"nextSteps": [%s], "missingCritical": [%s], "suggestions": [%s]}`,
		strings.Join(steps, ","), strings.Join(critical, ","), strings.Join(cats, ","))

	res := v.Process(raw, testProgress(), 4)

	require.Equal(t, domain.ShapeStrict, res.Shape)
	assert.Len(t, res.Data.NextSteps, 4)
	assert.Len(t, res.Data.MissingCritical, domain.MaxMissingCritical)
	assert.Len(t, res.Data.Suggestions, domain.MaxSuggestionGroups)
	assert.Equal(t, "c0", res.Data.Suggestions[0].Name)
	assert.Equal(t, "c9", res.Data.Suggestions[domain.MaxSuggestionGroups-1].Name)
	for _, c := range res.Data.Suggestions {
		require.Len(t, c.Items, domain.MaxSuggestionItems)
		assert.Len(t, []rune(c.Items[0].Text), domain.MaxSuggestionTextLen)
		assert.Len(t, []rune(c.Items[0].Solution), domain.MaxSuggestionSolLen)
	}
}

func TestProcess_MaxStepsClamped(t *testing.T) {
	v := NewResponseValidator(zap.NewNop())

	res := v.Process(`{"nextSteps": [{"step": "a"}, {"step": "b"}]}`, testProgress(), 0)

	assert.Len(t, res.Data.NextSteps, 1)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, "{}", extractJSON("no braces"))
	assert.Equal(t, "{}", extractJSON("} backwards {"))
	assert.Equal(t, `{"a":{"b":1}}`, extractJSON(`prefix {"a":{"b":1}} suffix`))
}

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{float64(150), 100},
		{float64(-5), 0},
		{"n/a", domain.DefaultConfidence},
		{" 64 ", 64},
		{nil, domain.DefaultConfidence},
		{true, domain.DefaultConfidence},
		{99.5, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeConfidence(tt.in), "input=%v", tt.in)
	}
}
