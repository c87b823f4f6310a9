package domain

// CategoryProgress 分类完成度
type CategoryProgress struct {
	Name    string `json:"name"`
	Percent int    `json:"percent"`
}

// ProgressSummary 由清单快照推导出的完成度，不持久化
type ProgressSummary struct {
	OverallPercent int                `json:"overallPercent"`
	Completed      int                `json:"completed"`
	Total          int                `json:"total"`
	Categories     []CategoryProgress `json:"categories"`
	NotableGaps    []string           `json:"notableGaps"`
}

// CategoryRemaining 分类下尚未勾选的条目（有上限）
type CategoryRemaining struct {
	Name      string   `json:"name"`
	Remaining []string `json:"remaining"`
}

// Progress ProgressEstimator 的完整输出
type Progress struct {
	Summary   ProgressSummary
	Remaining []CategoryRemaining
}

// Band 完成度分档，决定推荐策略
type Band string

const (
	BandEarly Band = "early" // <30%：枚举/测绘
	BandMid   Band = "mid"   // 30%-70%：逻辑/权限/配置缺陷
	BandLate  Band = "late"  // >70%：高级验证
)

// BandFor 根据整体完成度返回分档
func BandFor(overallPercent int) Band {
	switch {
	case overallPercent < 30:
		return BandEarly
	case overallPercent <= 70:
		return BandMid
	default:
		return BandLate
	}
}
