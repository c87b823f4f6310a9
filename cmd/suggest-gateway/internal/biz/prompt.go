package biz

import (
	"fmt"
	"strconv"
	"strings"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

// BuildPrompt 构建提示词
// 确定性的纯字符串构造：相同输入必然得到相同输出
func BuildPrompt(scope string, progress domain.Progress, temperature float64, maxSteps int) string {
	summary := progress.Summary
	var sb strings.Builder

	sb.WriteString("You are an expert in security testing and bug bounty checklists.\n\n")
	fmt.Fprintf(&sb, "Scope: %s\n", scope)
	fmt.Fprintf(&sb, "Overall progress: %d%% (%d/%d items done)\n", summary.OverallPercent, summary.Completed, summary.Total)
	fmt.Fprintf(&sb, "Sampling temperature: %s\n\n", strconv.FormatFloat(temperature, 'f', 2, 64))

	sb.WriteString("Category progress:\n")
	for i, cat := range summary.Categories {
		fmt.Fprintf(&sb, "- %s: %d%%", cat.Name, cat.Percent)
		if i < len(progress.Remaining) && len(progress.Remaining[i].Remaining) > 0 {
			fmt.Fprintf(&sb, " (remaining: %s)", strings.Join(progress.Remaining[i].Remaining, "; "))
		}
		sb.WriteString("\n")
	}
	if len(summary.Categories) == 0 {
		sb.WriteString("- (no categories)\n")
	}

	sb.WriteString("\nStrategy: ")
	sb.WriteString(strategyFor(domain.BandFor(summary.OverallPercent)))
	sb.WriteString("\n\nSelection rules:\n")
	sb.WriteString("1. Rank remaining gaps by risk and impact first, then by how much further testing they unlock.\n")
	fmt.Fprintf(&sb, "2. Return at most %d nextSteps and at most %d missingCritical entries.\n", maxSteps, domain.MaxMissingCritical)
	fmt.Fprintf(&sb, "3. Return at most %d suggestion categories with at most %d items each.\n",
		domain.MaxSuggestionGroups, domain.MaxSuggestionItems)
	sb.WriteString("4. Never repeat a primary verb or a sentence across nextSteps.\n")
	sb.WriteString("5. impact must be one of: high, medium, low. confidence is an integer from 0 to 100.\n")

	sb.WriteString("\nRespond ONLY with JSON in this exact shape:\n")
	sb.WriteString(`{
  "version": "1",
  "nextSteps": [
    {"step": "Concrete action", "why": "Short reason", "impact": "high", "confidence": 80}
  ],
  "missingCritical": ["Critical check that is not covered yet"],
  "suggestions": [
    {"name": "Category", "items": [{"text": "Check to perform", "solution": "One-line remediation"}]}
  ]
}
`)
	sb.WriteString("Avoid any explanations. Only return a clean JSON response.\n")

	return sb.String()
}

// strategyFor 按完成度分档返回推荐策略
func strategyFor(band domain.Band) string {
	switch band {
	case domain.BandEarly:
		return "early stage (<30%). Favor enumeration and attack-surface mapping tasks."
	case domain.BandMid:
		return "mid stage (30-70%). Favor business logic, privilege and configuration flaws."
	default:
		return "late stage (>70%). Favor advanced validation and chained or edge-case checks."
	}
}
