package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrBadRequest         = errors.New("bad request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserBanned         = errors.New("user is banned")
	ErrIllegalTransition  = errors.New("illegal state transition")
	ErrDuplicateCode      = errors.New("duplicate code")
	ErrQuotaExceeded      = errors.New("invite quota exceeded")
	ErrConflict           = errors.New("concurrent modification")
)

// Machine-readable error codes returned in HTTP bodies
const (
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUserBanned         = "USER_BANNED"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeDuplicateCode      = "DUPLICATE_CODE"

	CodeKeyNotActive       = "KEY_NOT_ACTIVE"
	CodeKeyAlreadyRevoked  = "KEY_ALREADY_REVOKED"
	CodeKeyExpired         = "KEY_EXPIRED"
	CodeInviteNotActive    = "INVITE_NOT_ACTIVE"
	CodeInviteExpired      = "INVITE_EXPIRED"
	CodeBindingCodeInvalid = "BINDING_CODE_INVALID"
	CodeDiscordBound       = "DISCORD_ALREADY_BOUND"
)

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped sentinel to errors.Is.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidInput, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message, ErrForbidden)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, message, ErrConflict)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

func InternalServerError(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, message, nil)
}

// IllegalTransition reports a rejected lifecycle transition with a structured code.
func IllegalTransition(code, message string) *AppError {
	return NewAppError(http.StatusConflict, code, message, ErrIllegalTransition)
}

func QuotaExceeded(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeQuotaExceeded, message, ErrQuotaExceeded)
}

func DuplicateCode(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeDuplicateCode, message, ErrDuplicateCode)
}

// NewError creates a new error with a custom message wrapping an existing error
func NewError(message string, err error) error {
	return &AppError{
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
		Message: message,
		Err:     err,
	}
}

// FromError maps any error to an AppError. Known sentinels keep their
// status; everything else becomes a 500.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NewAppError(http.StatusNotFound, CodeNotFound, "resource not found", err)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrBadRequest):
		return NewAppError(http.StatusBadRequest, CodeInvalidInput, err.Error(), err)
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrTokenExpired):
		return NewAppError(http.StatusUnauthorized, CodeUnauthorized, err.Error(), err)
	case errors.Is(err, ErrInvalidCredentials):
		return NewAppError(http.StatusUnauthorized, CodeInvalidCredentials, "invalid credentials", err)
	case errors.Is(err, ErrForbidden):
		return NewAppError(http.StatusForbidden, CodeForbidden, "forbidden", err)
	case errors.Is(err, ErrUserBanned):
		return NewAppError(http.StatusForbidden, CodeUserBanned, "user is banned", err)
	case errors.Is(err, ErrQuotaExceeded):
		return NewAppError(http.StatusConflict, CodeQuotaExceeded, "invite quota exceeded", err)
	case errors.Is(err, ErrDuplicateCode):
		return NewAppError(http.StatusConflict, CodeDuplicateCode, "could not allocate a unique code", err)
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return NewAppError(http.StatusConflict, CodeConflict, err.Error(), err)
	case errors.Is(err, ErrIllegalTransition):
		return NewAppError(http.StatusConflict, CodeConflict, err.Error(), err)
	}
	return InternalError(err)
}
