package biz

import (
	"math"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

// NormalizeOptions 选项越界时钳制而不是拒绝
// temperature: [0,1]，默认0.4；maxSteps: [1,10]，默认6
func NormalizeOptions(temperature *float64, maxSteps *int) domain.SuggestOptions {
	opts := domain.SuggestOptions{
		Temperature: domain.DefaultTemperature,
		MaxSteps:    domain.DefaultMaxSteps,
	}
	if temperature != nil && !math.IsNaN(*temperature) {
		opts.Temperature = math.Min(1, math.Max(0, *temperature))
	}
	if maxSteps != nil {
		opts.MaxSteps = clampMaxSteps(*maxSteps)
	}
	return opts
}

func clampMaxSteps(n int) int {
	switch {
	case n < 1:
		return 1
	case n > domain.MaxStepsLimit:
		return domain.MaxStepsLimit
	default:
		return n
	}
}
