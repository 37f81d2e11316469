package service

import (
	"errors"
	"fmt"
)

// ErrorCode 服务层错误分类
// HTTP 层只依赖分类映射状态码，内部错误文本不外泄
type ErrorCode string

const (
	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	CodeForbidden       ErrorCode = "FORBIDDEN"
	CodeValidation      ErrorCode = "VALIDATION"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeAmbiguous       ErrorCode = "AMBIGUOUS"
	CodeAlreadyUsed     ErrorCode = "ALREADY_USED"
	CodeTokenMismatch   ErrorCode = "TOKEN_MISMATCH"
	CodeEmailMismatch   ErrorCode = "EMAIL_MISMATCH"
	CodeInternal        ErrorCode = "INTERNAL"
)

// Error 带分类的服务错误
type Error struct {
	Code    ErrorCode
	Message string
	// Candidates 仅 AMBIGUOUS：供调用方消歧的候选身份键
	Candidates []string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError 创建分类错误
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Ambiguous 创建带候选键的歧义错误
func Ambiguous(message string, candidates []string) *Error {
	return &Error{Code: CodeAmbiguous, Message: message, Candidates: candidates}
}

// Internal 包装意外的底层错误（store/push/identity 等）
func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, cause: cause}
}

// AsError 取出分类错误；非分类错误一律归为 INTERNAL
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal error", err)
}
