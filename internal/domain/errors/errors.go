package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrValidation       = errors.New("validation failed")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrDuplicatePending = errors.New("duplicate pending request")
	ErrInvalidToken     = errors.New("invalid verification token")
	ErrExpiredToken     = errors.New("expired verification token")
	ErrTokenConflict    = errors.New("verification token already active")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrPersistence      = errors.New("persistence failure")
)

// Error codes surfaced to API clients
const (
	CodeNotFound         = "ERR_NOT_FOUND"
	CodeValidation       = "ERR_VALIDATION"
	CodeRateLimited      = "ERR_RATE_LIMITED"
	CodeDuplicatePending = "ERR_DUPLICATE_PENDING"
	CodeInvalidToken     = "ERR_INVALID_TOKEN"
	CodeExpiredToken     = "ERR_EXPIRED_TOKEN"
	CodeUnauthorized     = "ERR_UNAUTHORIZED"
	CodeForbidden        = "ERR_FORBIDDEN"
	CodeInternalError    = "ERR_INTERNAL"
)

// AppError represents an application error with HTTP status and client code
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

// Validation builds the fail-fast intake error naming the violated field.
// The message is surfaced to the requester verbatim.
func Validation(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeValidation, message, ErrValidation)
}

// RateLimited deliberately carries a generic message; counter internals
// are never revealed to the requester.
func RateLimited() *AppError {
	return NewAppError(http.StatusTooManyRequests, CodeRateLimited, "Too many removal requests. Please try again later.", ErrRateLimited)
}

// DuplicatePending deliberately carries a generic message.
func DuplicatePending() *AppError {
	return NewAppError(http.StatusConflict, CodeDuplicatePending, "A removal request for this listing is already pending.", ErrDuplicatePending)
}

// InvalidToken is returned both for tokens that never existed and tokens
// already redeemed, so callers cannot probe redemption state.
func InvalidToken() *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidToken, "Invalid verification token.", ErrInvalidToken)
}

// ExpiredToken is returned when a token is past its time-to-live; the
// underlying request stays pending and a fresh submission is required.
func ExpiredToken() *AppError {
	return NewAppError(http.StatusGone, CodeExpiredToken, "This verification link has expired. Please submit a new removal request.", ErrExpiredToken)
}

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeValidation, message, ErrValidation)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message, ErrForbidden)
}

// InternalError hides the underlying cause from the caller; the detail is
// expected to be logged where the error originates.
func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}
