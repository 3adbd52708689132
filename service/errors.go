package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 业务错误分类
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindForbidden
	KindRateLimited
	KindConfiguration
	KindMalformedAI
	KindUpstream
)

// Error 业务错误，Message 可直接返回给客户端，Err 仅用于日志
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode 对应的 HTTP 状态码
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindConfiguration:
		return http.StatusServiceUnavailable
	case KindMalformedAI:
		return http.StatusUnprocessableEntity
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// ValidationError 参数或业务规则校验失败
func ValidationError(msg string) error { return newError(KindValidation, msg, nil) }

// NotFoundError 资源不存在
func NotFoundError(msg string) error { return newError(KindNotFound, msg, nil) }

// ForbiddenError 无权操作他人资源
func ForbiddenError(msg string) error { return newError(KindForbidden, msg, nil) }

// RateLimitError 超出频率限制（每日配额或上游 429）
func RateLimitError(msg string, err error) error { return newError(KindRateLimited, msg, err) }

// ConfigurationError 缺少必要配置
func ConfigurationError(msg string) error { return newError(KindConfiguration, msg, nil) }

// MalformedAIError AI 返回内容不符合约定
func MalformedAIError(msg string, err error) error { return newError(KindMalformedAI, msg, err) }

// UpstreamError 上游服务调用失败
func UpstreamError(msg string, err error) error { return newError(KindUpstream, msg, err) }

// AsError 提取业务错误
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind 判断错误分类
func IsKind(err error, kind ErrorKind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}
