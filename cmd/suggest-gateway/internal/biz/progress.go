package biz

import (
	"math"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

const (
	// maxRemainingPerCategory 每个分类保留的未完成条目上限
	maxRemainingPerCategory = 8
	// maxNotableGaps 全局显著缺口上限
	maxNotableGaps = 6
)

// EstimateProgress 根据清单快照计算完成度
// 纯函数，无失败路径，同时服务于提示词构建和启发式降级
func EstimateProgress(snapshot domain.ChecklistSnapshot) domain.Progress {
	var completed, total int

	categories := make([]domain.CategoryProgress, 0, len(snapshot.Categories))
	remaining := make([]domain.CategoryRemaining, 0, len(snapshot.Categories))
	gaps := make([]string, 0, maxNotableGaps)

	for _, cat := range snapshot.Categories {
		done := 0
		open := make([]string, 0, maxRemainingPerCategory)
		for _, item := range cat.Items {
			if item.Checked {
				done++
				continue
			}
			if len(open) < maxRemainingPerCategory {
				open = append(open, item.Text)
			}
		}

		completed += done
		total += len(cat.Items)

		categories = append(categories, domain.CategoryProgress{
			Name:    cat.Name,
			Percent: percent(done, len(cat.Items)),
		})
		remaining = append(remaining, domain.CategoryRemaining{
			Name:      cat.Name,
			Remaining: open,
		})

		if len(open) > 0 && len(gaps) < maxNotableGaps {
			gaps = append(gaps, cat.Name+": "+open[0])
		}
	}

	return domain.Progress{
		Summary: domain.ProgressSummary{
			OverallPercent: percent(completed, total),
			Completed:      completed,
			Total:          total,
			Categories:     categories,
			NotableGaps:    gaps,
		},
		Remaining: remaining,
	}
}

func percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
