package errcode

import (
	"errors"
	"net/http"
)

// 错误码约定：
// - 0：无错误
// - 4xxx：调用方可修正的错误，前三位对应 HTTP 状态，末位区分具体原因
// - 5xxx：系统错误（存储失败等，细节只写日志）
const (
	OK                     = 0
	Validation             = 4000
	InvalidEmail           = 4001
	DuplicateUsername      = 4002
	DuplicateEmail         = 4003
	InvalidCredentials     = 4010
	Unauthenticated        = 4011
	PasswordChangeRequired = 4030
	NotFound               = 4040
	RateLimited            = 4290
	AccountLocked          = 4291
	SystemError            = 5000
)

var (
	ErrValidation             = errors.New("missing required fields")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrDuplicateUsername      = errors.New("username already exists")
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrUnauthenticated        = errors.New("unauthorized")
	ErrPasswordChangeRequired = errors.New("password change required")
	ErrNotFound               = errors.New("not found")
	ErrRateLimited            = errors.New("rate limit exceeded")
	ErrAccountLocked          = errors.New("account temporarily locked")
)

// WithMessage 保留错误类别，但替换返回给客户端的消息。
func WithMessage(kind error, msg string) error {
	return &detailError{kind: kind, msg: msg}
}

// Validationf 包装 ErrValidation 并附带面向调用方的说明。
func Validationf(msg string) error {
	return WithMessage(ErrValidation, msg)
}

// NotFoundf 包装 ErrNotFound，消息中带上资源名，例如 "resume not found"。
func NotFoundf(resource string) error {
	return WithMessage(ErrNotFound, resource+" not found")
}

type detailError struct {
	kind error
	msg  string
}

func (e *detailError) Error() string { return e.msg }
func (e *detailError) Unwrap() error { return e.kind }

// Code 返回错误对应的业务码；未知错误视为系统错误。
func Code(err error) int {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrInvalidEmail):
		return InvalidEmail
	case errors.Is(err, ErrDuplicateUsername):
		return DuplicateUsername
	case errors.Is(err, ErrDuplicateEmail):
		return DuplicateEmail
	case errors.Is(err, ErrValidation):
		return Validation
	case errors.Is(err, ErrInvalidCredentials):
		return InvalidCredentials
	case errors.Is(err, ErrUnauthenticated):
		return Unauthenticated
	case errors.Is(err, ErrPasswordChangeRequired):
		return PasswordChangeRequired
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrRateLimited):
		return RateLimited
	case errors.Is(err, ErrAccountLocked):
		return AccountLocked
	default:
		return SystemError
	}
}

// HTTPStatus 将业务码映射为 HTTP 状态码。重复用户名/邮箱沿用 400。
func HTTPStatus(err error) int {
	switch Code(err) {
	case OK:
		return http.StatusOK
	case Validation, InvalidEmail, DuplicateUsername, DuplicateEmail:
		return http.StatusBadRequest
	case InvalidCredentials, Unauthenticated:
		return http.StatusUnauthorized
	case PasswordChangeRequired:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case RateLimited, AccountLocked:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Message 返回可以安全暴露给客户端的消息；系统错误统一为 "internal error"。
func Message(err error) string {
	if Code(err) == SystemError {
		return "internal error"
	}
	var detail *detailError
	if errors.As(err, &detail) {
		return detail.msg
	}
	for _, known := range []error{
		ErrInvalidEmail, ErrDuplicateUsername, ErrDuplicateEmail, ErrValidation,
		ErrInvalidCredentials, ErrUnauthenticated, ErrPasswordChangeRequired, ErrNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
