package domain

import (
	"github.com/go-kratos/kratos/v2/errors"
)

// 错误原因
const (
	ReasonRateLimited    = "RATE_LIMITED"
	ReasonUpstream       = "UPSTREAM_GENERATION_FAILED"
	ReasonInvalidRequest = "INVALID_REQUEST"
)

var (
	// ErrRateLimited 调用方超出限流窗口，在缓存和生成之前直接返回
	ErrRateLimited = errors.New(429, ReasonRateLimited, "Too many requests, please slow down")

	// ErrUpstream 生成服务调用失败（超时、传输错误），不重试
	ErrUpstream = errors.InternalServer(ReasonUpstream, "Failed to get AI suggestions")

	// ErrInvalidRequest 请求格式错误；对外与其它失败一样返回500
	ErrInvalidRequest = errors.InternalServer(ReasonInvalidRequest, "Failed to get AI suggestions")
)

// IsRateLimited 判断是否为限流错误
func IsRateLimited(err error) bool {
	return errors.Reason(err) == ReasonRateLimited
}

// IsUpstream 判断是否为生成服务错误
func IsUpstream(err error) bool {
	return errors.Reason(err) == ReasonUpstream
}
