package ir

import (
	"errors"
	"fmt"
)

// ConfigErrorCode classifies configuration errors in a property definition.
type ConfigErrorCode string

const (
	// ErrCodeNoInitialState means the property declares no initial state.
	ErrCodeNoInitialState ConfigErrorCode = "E201"

	// ErrCodeDuplicateName means two parameters, events or states share a name.
	ErrCodeDuplicateName ConfigErrorCode = "E202"

	// ErrCodeUnknownSymbol means a transition names an event, state or
	// parameter that does not belong to the property.
	ErrCodeUnknownSymbol ConfigErrorCode = "E203"

	// ErrCodeTooManyParameters means more than MaxParameters parameters
	// or more than MaxBaseEvents base events were declared.
	ErrCodeTooManyParameters ConfigErrorCode = "E204"

	// ErrCodeConflictingTransition means a (state, event) pair was given
	// two different successors.
	ErrCodeConflictingTransition ConfigErrorCode = "E205"

	// ErrCodeEmptyProperty means the property has no name, parameters,
	// events or states.
	ErrCodeEmptyProperty ConfigErrorCode = "E206"
)

// ErrNoInitialState is matched by errors.Is for any configuration error
// with code ErrCodeNoInitialState.
var ErrNoInitialState = &ConfigError{Code: ErrCodeNoInitialState, Message: "no initial state"}

// ConfigError reports an invalid property definition. Configuration errors
// are raised at construction time, never while processing events.
type ConfigError struct {
	Code    ConfigErrorCode
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is matches configuration errors by code.
func (e *ConfigError) Is(target error) bool {
	var t *ConfigError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// IsConfigError reports whether err carries a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigErrors returns every *ConfigError joined into err.
func ConfigErrors(err error) []*ConfigError {
	if err == nil {
		return nil
	}
	var out []*ConfigError
	var walk func(error)
	walk = func(e error) {
		if ce, ok := e.(*ConfigError); ok {
			out = append(out, ce)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := u.Unwrap(); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}
