package domain

// Impact 推荐步骤的影响级别
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Valid 是否为合法枚举值
func (i Impact) Valid() bool {
	switch i {
	case ImpactHigh, ImpactMedium, ImpactLow:
		return true
	default:
		return false
	}
}

// 输出上限
const (
	MaxStepsLimit          = 10
	DefaultMaxSteps        = 6
	MaxMissingCritical     = 6
	MaxSuggestionItems     = 10
	MaxSuggestionGroups    = 10
	MaxSuggestionTextLen   = 400
	MaxSuggestionSolLen    = 500
	DefaultConfidence      = 55
	FallbackConfidence     = 50
	DefaultTemperature     = 0.4
	DefaultSuggestCategory = "General"
	FallbackWhy            = "Uncovered checklist item"
)

// ResponseShape 标记响应数据来自校验流水线的哪一层
type ResponseShape string

const (
	// ShapeStrict 模型输出通过严格校验
	ShapeStrict ResponseShape = "strict"
	// ShapeFallback 由本地进度启发式合成
	ShapeFallback ResponseShape = "fallback"
	// ShapeMinimal 最小安全对象
	ShapeMinimal ResponseShape = "minimal"
)

// NextStep 推荐的下一步
type NextStep struct {
	Step       string `json:"step"`
	Why        string `json:"why,omitempty"`
	Impact     Impact `json:"impact,omitempty"`
	Confidence int    `json:"confidence"`
}

// SuggestionItem 建议条目
type SuggestionItem struct {
	Text     string `json:"text"`
	Solution string `json:"solution,omitempty"`
}

// SuggestionCategory 建议分类
type SuggestionCategory struct {
	Name  string           `json:"name"`
	Items []SuggestionItem `json:"items"`
}

// ResponseData 对外输出契约，每个请求只生成一次，之后不可变
type ResponseData struct {
	Version         string               `json:"version"`
	ProgressSummary *ProgressSummary     `json:"progressSummary,omitempty"`
	NextSteps       []NextStep           `json:"nextSteps"`
	MissingCritical []string             `json:"missingCritical"`
	Suggestions     []SuggestionCategory `json:"suggestions"`
	Shape           ResponseShape        `json:"shape"`
	Cached          bool                 `json:"cached"`
}

// SuggestOptions 生成选项
type SuggestOptions struct {
	Temperature float64
	MaxSteps    int
}

// SuggestRequest 入站请求
type SuggestRequest struct {
	Snapshot ChecklistSnapshot
	Options  SuggestOptions
}
