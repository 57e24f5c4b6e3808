package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an event rejected by the engine before any state
// was touched.
//
// Rejections include:
//   - Unknown event: the base event does not belong to the property
//   - Arity mismatch: the object count differs from the event's parameters
//   - Invalid object: an object is not a non-nil pointer to a sized value
//
// Undefined transitions, guards selecting no event and joins blocked by a
// disable check are normal outcomes, not errors.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Property names the engine's property.
	Property string

	// Event names the rejected base event, when known.
	Event string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidEvent indicates an event the engine cannot process.
	ErrCodeInvalidEvent RuntimeErrorCode = "INVALID_EVENT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("%s: %s (property=%s, event=%s)", e.Code, e.Message, e.Property, e.Event)
	}
	return fmt.Sprintf("%s: %s (property=%s)", e.Code, e.Message, e.Property)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

// IsInvalidEventError returns true if the error is an invalid event
// rejection. Uses errors.As to handle wrapped errors.
func IsInvalidEventError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidEvent
	}
	return false
}

func (e *Engine) invalidEvent(event string, cause error, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeInvalidEvent,
		Message:  fmt.Sprintf(format, args...),
		Property: e.name,
		Event:    event,
		Err:      cause,
	}
}

// invariant aborts on a state the static tables rule out.
func invariant(format string, args ...any) {
	panic("engine: invariant violated: " + fmt.Sprintf(format, args...))
}
