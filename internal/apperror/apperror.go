package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
)

// AppError 带可读信息的业务错误，Err 为上面的哨兵错误之一
type AppError struct {
	Err     error
	Message string
	Field   string // 可选：出错字段
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Err }

func Unauthenticated(message string) *AppError {
	return &AppError{Err: ErrUnauthenticated, Message: message}
}

func InvalidCredential(message string) *AppError {
	return &AppError{Err: ErrInvalidCredential, Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Err: ErrForbidden, Message: message}
}

// NotFound resource 形如 "story"、"contribution"
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

func Validation(field, message string) *AppError {
	return &AppError{Err: ErrValidation, Message: message, Field: field}
}

func Conflict(message string) *AppError {
	return &AppError{Err: ErrConflict, Message: message}
}

// Is 判断 err 链上是否为某类业务错误
func Is(err, kind error) bool { return errors.Is(err, kind) }

// IsNotFound 便捷判断
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
