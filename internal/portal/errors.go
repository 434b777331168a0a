package portal

import (
	"errors"
	"fmt"
)

// ErrorType categorizes failures surfaced by the portal core.
type ErrorType int

const (
	// ErrTypeValidation indicates malformed or out-of-range input,
	// rejected before any side effects.
	ErrTypeValidation ErrorType = iota
	// ErrTypeTransientNetwork indicates a connect timeout or scan failure,
	// retried per the recovery policy.
	ErrTypeTransientNetwork
	// ErrTypePersistence indicates a storage write or commit failure,
	// surfaced to the caller and not retried.
	ErrTypePersistence
	// ErrTypeProtocol indicates a malformed pairing or update payload,
	// rejected with a specific message.
	ErrTypeProtocol
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeTransientNetwork:
		return "Network Error"
	case ErrTypePersistence:
		return "Persistence Error"
	case ErrTypeProtocol:
		return "Protocol Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is a categorized portal failure.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error
func NewValidationError(message string) *Error {
	return &Error{Type: ErrTypeValidation, Message: message}
}

// NewTransientNetworkError creates a transient network error
func NewTransientNetworkError(message string, err error) *Error {
	return &Error{Type: ErrTypeTransientNetwork, Message: message, Err: err}
}

// NewPersistenceError creates a persistence error
func NewPersistenceError(message string, err error) *Error {
	return &Error{Type: ErrTypePersistence, Message: message, Err: err}
}

// NewProtocolError creates a protocol error
func NewProtocolError(message string) *Error {
	return &Error{Type: ErrTypeProtocol, Message: message}
}

// typeOf extracts the category of a portal error, if err is one
func typeOf(err error) (ErrorType, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type, true
	}
	return 0, false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeValidation
}

// IsTransientNetworkError checks if an error is a transient network error
func IsTransientNetworkError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeTransientNetwork
}

// IsPersistenceError checks if an error is a persistence error
func IsPersistenceError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypePersistence
}

// IsProtocolError checks if an error is a protocol error
func IsProtocolError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeProtocol
}

// Message returns the user-facing message of a portal error, falling
// back to the raw error text.
func Message(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
