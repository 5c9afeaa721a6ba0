package checklist

import (
	"errors"
	"fmt"
)

// ErrorKind 错误类型
type ErrorKind string

const (
	KindPermissionDenied     ErrorKind = "PermissionDenied"
	KindInvalidTransition    ErrorKind = "InvalidTransition"
	KindMissingRequiredField ErrorKind = "MissingRequiredField"
	KindNotFound             ErrorKind = "NotFound"
	KindDataIntegrity        ErrorKind = "DataIntegrity"
	KindInvalidValue         ErrorKind = "InvalidValue"
)

// Error 检查单领域错误,携带错误类型和可读信息
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is 按错误类型匹配,使 errors.Is(err, ErrNotFound) 对任意 NotFound 错误成立
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// 错误定义
var (
	ErrPermissionDenied     = &Error{Kind: KindPermissionDenied, Message: "permission denied"}
	ErrInvalidTransition    = &Error{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrMissingRequiredField = &Error{Kind: KindMissingRequiredField, Message: "missing required field"}
	ErrNotFound             = &Error{Kind: KindNotFound, Message: "not found"}
	ErrDataIntegrity        = &Error{Kind: KindDataIntegrity, Message: "data integrity"}
	ErrInvalidValue         = &Error{Kind: KindInvalidValue, Message: "invalid value"}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// PermissionDenied 创建权限不足错误
func PermissionDenied(format string, args ...interface{}) error {
	return newError(KindPermissionDenied, format, args...)
}

// InvalidTransition 创建非法状态转换错误
func InvalidTransition(format string, args ...interface{}) error {
	return newError(KindInvalidTransition, format, args...)
}

// MissingRequiredField 创建缺少必填字段错误
func MissingRequiredField(format string, args ...interface{}) error {
	return newError(KindMissingRequiredField, format, args...)
}

// NotFound 创建资源不存在错误
func NotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

// DataIntegrity 创建数据完整性错误
func DataIntegrity(format string, args ...interface{}) error {
	return newError(KindDataIntegrity, format, args...)
}

// InvalidValue 创建非法取值错误
func InvalidValue(format string, args ...interface{}) error {
	return newError(KindInvalidValue, format, args...)
}

// KindOf 返回错误链中第一个领域错误的类型
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
