package apperrors

import "fmt"

// Network wraps a failed backend call
func Network(op string, err error) *Error {
	return &Error{Code: ErrCodeNetwork, Subject: op, Message: op + " failed", Err: err}
}

// AuthRequired is returned when an action is attempted without an identity
func AuthRequired(action string) *Error {
	return &Error{Code: ErrCodeAuthRequired, Subject: action, Message: "sign in to " + action}
}

// Validation reports a malformed filter, id or payload field
func Validation(field, reason string) *Error {
	return &Error{Code: ErrCodeValidation, Subject: field, Message: fmt.Sprintf("invalid %s: %s", field, reason)}
}

func NotFound(kind, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Subject: kind, Message: fmt.Sprintf("%s '%s' not found", kind, id)}
}

// RealtimeChannel wraps a subscription failure or timeout; state is the
// channel state it left the subscription in.
func RealtimeChannel(state string, err error) *Error {
	return &Error{Code: ErrCodeRealtimeChannel, Subject: state, Message: "realtime channel " + state, Err: err}
}

// StaleWrite reports a fetch response superseded by a newer filter generation
func StaleWrite(collection string, generation, current uint64) *Error {
	return &Error{
		Code:    ErrCodeStaleWrite,
		Subject: collection,
		Message: fmt.Sprintf("%s response for generation %d superseded by %d", collection, generation, current),
	}
}

// Internal wraps a failure that is neither the caller's nor the backend's
func Internal(message string, err error) *Error {
	return &Error{Code: ErrCodeInternal, Message: message, Err: err}
}
