// Package apperrors ports the teacher's structured-error pattern
// (internal/common/errors.TradSysError) to crossx: every condition the
// engine or facade can hit is a CrossError carrying a stable ErrorCode, so
// the wire layer (internal/server) never has to inspect error
// strings to pick a response code.
package apperrors

import (
	"fmt"
	"time"
)

// ErrorCode is a stable, loggable classification of a failure.
type ErrorCode string

const (
	// Order / business-rule errors.
	ErrInvalidSide       ErrorCode = "INVALID_SIDE"
	ErrInvalidSize       ErrorCode = "INVALID_SIZE"
	ErrInvalidPrice      ErrorCode = "INVALID_PRICE"
	ErrInvalidStopPrice  ErrorCode = "INVALID_STOP_PRICE"
	ErrOrderNotFound     ErrorCode = "ORDER_NOT_FOUND"
	ErrNotOwner          ErrorCode = "NOT_OWNER"
	ErrOrderNotCancelable ErrorCode = "ORDER_NOT_CANCELABLE"
	ErrThresholdTooLow   ErrorCode = "THRESHOLD_TOO_LOW"

	// Request/session errors.
	ErrMalformedRequest ErrorCode = "MALFORMED_REQUEST"
	ErrNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"
	ErrAlreadyLoggedIn  ErrorCode = "ALREADY_LOGGED_IN"
	ErrUserNotFound     ErrorCode = "USER_NOT_FOUND"
	ErrBadCredentials   ErrorCode = "BAD_CREDENTIALS"
	ErrInvalidMonth     ErrorCode = "INVALID_MONTH"

	// Infrastructure errors.
	ErrPersistence  ErrorCode = "PERSISTENCE_FAILURE"
	ErrUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	ErrRateLimited  ErrorCode = "RATE_LIMITED"
)

// CrossError is the structured error type used across the engine/facade
// boundary; exceptions never cross component boundaries (spec.md §7) —
// everything is converted to one of these before returning.
type CrossError struct {
	Code      ErrorCode
	Message   string
	Timestamp time.Time
	Cause     error
}

func (e *CrossError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CrossError) Unwrap() error { return e.Cause }

// New creates a CrossError.
func New(code ErrorCode, message string) *CrossError {
	return &CrossError{Code: code, Message: message, Timestamp: time.Now()}
}

// Newf creates a CrossError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *CrossError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a cause to a new CrossError.
func Wrap(err error, code ErrorCode, message string) *CrossError {
	if err == nil {
		return nil
	}
	return &CrossError{Code: code, Message: message, Timestamp: time.Now(), Cause: err}
}

// Is reports whether err is a CrossError with the given code.
func Is(err error, code ErrorCode) bool {
	var ce *CrossError
	if As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// As finds the first CrossError in err's chain.
func As(err error, target **CrossError) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CrossError); ok {
		*target = ce
		return true
	}
	if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return As(unwrapper.Unwrap(), target)
	}
	return false
}

// Code extracts the ErrorCode from err, or "" if err is not a CrossError.
func Code(err error) ErrorCode {
	var ce *CrossError
	if As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsRetryable reports whether an error represents a transient condition.
func IsRetryable(err error) bool {
	switch Code(err) {
	case ErrPersistence, ErrUnavailable:
		return true
	default:
		return false
	}
}
