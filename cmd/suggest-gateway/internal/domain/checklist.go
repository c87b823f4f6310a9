package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	// ScopeMinLength scope最小长度（去除首尾空白后）
	ScopeMinLength = 2
	// ScopeMaxLength scope最大长度
	ScopeMaxLength = 64
)

// ChecklistItem 清单条目
// Text 在同一分类内即为条目标识
type ChecklistItem struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
	Tooltip string `json:"tooltip,omitempty"`
	Note    string `json:"note,omitempty"`
}

// ChecklistCategory 清单分类
type ChecklistCategory struct {
	Name  string          `json:"name"`
	Items []ChecklistItem `json:"items"`
}

// ChecklistSnapshot 调用方提供的清单快照，网关只读不写
type ChecklistSnapshot struct {
	Scope      string              `json:"scope"`
	Categories []ChecklistCategory `json:"categories"`
}

// NormalizeScope 去除首尾空白并校验长度
func NormalizeScope(scope string) (string, bool) {
	scope = strings.TrimSpace(scope)
	n := utf8.RuneCountInString(scope)
	if n < ScopeMinLength || n > ScopeMaxLength {
		return "", false
	}
	return scope, true
}
