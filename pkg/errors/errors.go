package errors

import (
	"net/http"

	"github.com/go-kratos/kratos/v2/errors"
)

// Common errors
var (
	ErrBadRequest          = errors.BadRequest("BAD_REQUEST", "Bad request")
	ErrNotFound            = errors.NotFound("NOT_FOUND", "Resource not found")
	ErrTooManyRequests     = errors.New(http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many requests")
	ErrInternalServerError = errors.InternalServer("INTERNAL_SERVER_ERROR", "Internal server error")
	ErrServiceUnavailable  = errors.ServiceUnavailable("SERVICE_UNAVAILABLE", "Service unavailable")
)

// HTTPStatus 从错误中解析 HTTP 状态码；非 kratos 错误按 500 处理
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	se := errors.FromError(err)
	if se.Code <= 0 {
		return http.StatusInternalServerError
	}
	return int(se.Code)
}

// Metadata 读取错误元数据，不存在时返回空 map
func Metadata(err error) map[string]string {
	se := errors.FromError(err)
	if se == nil || se.Metadata == nil {
		return map[string]string{}
	}
	return se.Metadata
}
