package errors

import (
	"github.com/go-kratos/kratos/v2/errors"
)

// ErrorResponse 统一错误响应格式
type ErrorResponse struct {
	Success   bool   `json:"success"`              // 是否成功（始终为false）
	ErrorCode string `json:"error_code,omitempty"` // 错误原因码
	Message   string `json:"message"`              // 错误消息（用户可读）
	RequestID string `json:"request_id,omitempty"` // 请求ID（用于追踪）
}

// SuccessResponse 统一成功响应格式
type SuccessResponse struct {
	Success   bool   `json:"success"`              // 是否成功（始终为true）
	Data      any    `json:"data,omitempty"`       // 响应数据
	RequestID string `json:"request_id,omitempty"` // 请求ID
}

// NewErrorResponse 由错误创建响应
// 只暴露错误自身的 message，cause 不会出现在响应中
func NewErrorResponse(err error) *ErrorResponse {
	se := errors.FromError(err)
	resp := &ErrorResponse{Success: false, ErrorCode: se.Reason, Message: se.Message}
	// 非 kratos 错误没有 reason，其 message 是原始错误文本，不能外泄
	if se.Reason == errors.UnknownReason || resp.Message == "" {
		resp.ErrorCode = ErrInternalServerError.Reason
		resp.Message = ErrInternalServerError.Message
	}
	return resp
}

// WithRequestID 添加请求ID
func (e *ErrorResponse) WithRequestID(requestID string) *ErrorResponse {
	e.RequestID = requestID
	return e
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data any) *SuccessResponse {
	return &SuccessResponse{Success: true, Data: data}
}

// WithRequestID 添加请求ID
func (s *SuccessResponse) WithRequestID(requestID string) *SuccessResponse {
	s.RequestID = requestID
	return s
}
