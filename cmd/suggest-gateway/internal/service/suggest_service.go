package service

import (
	"context"

	"checklistadvisor/cmd/suggest-gateway/internal/biz"
	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

// SuggestOptionsDTO 可选生成参数，越界值会被钳制
type SuggestOptionsDTO struct {
	Temperature *float64 `json:"temperature"`
	MaxSteps    *int     `json:"maxSteps"`
}

// SuggestRequestDTO POST /api/v1/suggest 请求体
type SuggestRequestDTO struct {
	Scope      string                     `json:"scope"`
	Categories []domain.ChecklistCategory `json:"categories"`
	Options    *SuggestOptionsDTO         `json:"options"`
}

// SuggestService 推荐服务
type SuggestService struct {
	uc *biz.SuggestUsecase
}

// NewSuggestService 创建推荐服务
func NewSuggestService(uc *biz.SuggestUsecase) *SuggestService {
	return &SuggestService{uc: uc}
}

// Suggest 将请求体转换为领域请求并执行编排
func (s *SuggestService) Suggest(ctx context.Context, callerKey string, req *SuggestRequestDTO) (*biz.SuggestResult, error) {
	var opts domain.SuggestOptions
	if req.Options != nil {
		opts = biz.NormalizeOptions(req.Options.Temperature, req.Options.MaxSteps)
	} else {
		opts = biz.NormalizeOptions(nil, nil)
	}

	categories := req.Categories
	if categories == nil {
		categories = []domain.ChecklistCategory{}
	}

	return s.uc.Suggest(ctx, callerKey, domain.SuggestRequest{
		Snapshot: domain.ChecklistSnapshot{
			Scope:      req.Scope,
			Categories: categories,
		},
		Options: opts,
	})
}
