// Package bizerr 定义携带业务码的错误，handler 据此映射 HTTP 状态码与消息。
package bizerr

import (
	"errors"

	"github.com/sudo-enjoy/matching-app-be/consts"
)

// Error 业务错误
type Error struct {
	Code  int32
	cause error
}

// New 创建业务错误，通常作为包级哨兵使用
func New(code int32) *Error {
	return &Error{Code: code}
}

// Wrap 附带底层原因（只用于日志，不返回给客户端）
func Wrap(code int32, cause error) *Error {
	return &Error{Code: code, cause: cause}
}

func (e *Error) Error() string {
	msg := consts.GetMessage(e.Code)
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is 同码即相等，使 errors.Is(Wrap(x, err), New(x)) 成立
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Code 提取业务码，非业务错误返回 CodeInternalError
func Code(err error) int32 {
	if err == nil {
		return consts.CodeSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return consts.CodeInternalError
}
