// Package apperrors classifies the failures the sync core reports to callers.
package apperrors

import (
	"context"
	"errors"
)

// ErrorCode names a failure class. Callers switch on it to pick an HTTP
// status or a toast.
type ErrorCode string

const (
	ErrCodeNetwork         ErrorCode = "NETWORK_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeAuthRequired    ErrorCode = "AUTH_REQUIRED"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeRealtimeChannel ErrorCode = "REALTIME_CHANNEL_ERROR"
	ErrCodeStaleWrite      ErrorCode = "STALE_WRITE"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// Error is a classified failure. Subject is what it is about, which depends
// on Code: the backend operation, the invalid field, the missing entity, the
// channel state or the collection of a stale fetch.
type Error struct {
	Code    ErrorCode
	Subject string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cancelled reports whether the underlying call ended with its context
// rather than failing on its own.
func (e *Error) Cancelled() bool {
	return errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded)
}

// Is reports whether err carries code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	return code != "" && CodeOf(err) == code
}

// CodeOf returns the code of the outermost Error in the chain, or "" when
// err was never classified.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
