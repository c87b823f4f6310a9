package biz

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

// cacheKeyInput 缓存键的规范化输入，字段顺序固定
type cacheKeyInput struct {
	Scope       string                     `json:"s"`
	Categories  []domain.ChecklistCategory `json:"c"`
	Temperature string                     `json:"t"` // 最短无损表示
	MaxSteps    int                        `json:"m"`
}

// BuildCacheKey 对 (scope, categories, temperature, maxSteps) 做稳定、保序的序列化后取SHA-256
// 定长摘要，避免超长输入截断后发生键冲突
func BuildCacheKey(scope string, categories []domain.ChecklistCategory, opts domain.SuggestOptions) string {
	payload, err := json.Marshal(cacheKeyInput{
		Scope:       scope,
		Categories:  categories,
		Temperature: strconv.FormatFloat(opts.Temperature, 'g', -1, 64),
		MaxSteps:    opts.MaxSteps,
	})
	if err != nil {
		// 结构体只含字符串、布尔与整数，不会失败
		payload = []byte(scope)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
