package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/prm/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrNoParameters     = "E101" // at least one parameter required
	ErrNoEvents         = "E102" // at least one event required
	ErrNoStates         = "E103" // at least one state required
	ErrInitialState     = "E104" // initial state missing or undeclared
	ErrDuplicateName    = "E105" // duplicate parameter/event/state name
	ErrUndeclaredEvent  = "E106" // transition on an undeclared event
	ErrUndeclaredState  = "E107" // transition to an undeclared state
	ErrUnknownParameter = "E108" // event binds an unknown or repeated parameter
	ErrTooMany          = "E109" // too many parameters or events
	ErrNoAcceptingState = "E110" // no accepting state (warning)
)

// Severity grades a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is the error returned when a property has findings of
// error severity.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks a parsed property. Returns all findings (does not
// fail-fast), errors and warnings alike, in declaration order.
func Validate(decl *PropertyDecl) []ValidationError {
	var errs []ValidationError
	add := func(code, field string, line int, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Code:     code,
			Severity: SeverityError,
			Line:     line,
		})
	}
	line := decl.Pos.Line()

	// E101-E103: required sections
	if len(decl.Parameters) == 0 {
		add(ErrNoParameters, "parameters", line, "at least one parameter is required")
	}
	if len(decl.Events) == 0 {
		add(ErrNoEvents, "events", line, "at least one event is required")
	}
	if len(decl.States) == 0 {
		add(ErrNoStates, "states", line, "at least one state is required")
	}

	// E109: limits of the parameter and event bitsets
	if len(decl.Parameters) > ir.MaxParameters {
		add(ErrTooMany, "parameters", line, "%d parameters exceed the limit of %d", len(decl.Parameters), ir.MaxParameters)
	}
	if len(decl.Events) > ir.MaxBaseEvents {
		add(ErrTooMany, "events", line, "%d events exceed the limit of %d", len(decl.Events), ir.MaxBaseEvents)
	}

	// E105: duplicate names
	params := make(map[string]bool)
	for i, p := range decl.Parameters {
		if params[p] {
			add(ErrDuplicateName, fmt.Sprintf("parameters[%d]", i), line, "duplicate parameter name: %q", p)
		}
		params[p] = true
	}
	events := make(map[string]bool)
	for _, ev := range decl.Events {
		field := "events." + ev.Name
		if events[ev.Name] {
			add(ErrDuplicateName, field, ev.Pos.Line(), "duplicate event name: %q", ev.Name)
		}
		events[ev.Name] = true

		// E108: event parameters
		bound := make(map[string]bool)
		for _, p := range ev.Params {
			switch {
			case !params[p]:
				add(ErrUnknownParameter, field, ev.Pos.Line(), "event %q binds unknown parameter %q", ev.Name, p)
			case bound[p]:
				add(ErrUnknownParameter, field, ev.Pos.Line(), "event %q binds parameter %q twice", ev.Name, p)
			}
			bound[p] = true
		}
	}
	states := make(map[string]bool)
	accepting := false
	for _, st := range decl.States {
		if states[st.Name] {
			add(ErrDuplicateName, "states."+st.Name, st.Pos.Line(), "duplicate state name: %q", st.Name)
		}
		states[st.Name] = true
		accepting = accepting || st.Accepting
	}

	// E104: initial state
	switch {
	case decl.Initial == "":
		add(ErrInitialState, "initial", line, "initial state is required")
	case !states[decl.Initial]:
		add(ErrInitialState, "initial", line, "initial state %q is not declared", decl.Initial)
	}

	// E106-E107: transitions
	for _, st := range decl.States {
		for _, tr := range st.On {
			field := fmt.Sprintf("states.%s.on.%s", st.Name, tr.Event)
			if !events[tr.Event] {
				add(ErrUndeclaredEvent, field, tr.Pos.Line(), "transition on undeclared event %q", tr.Event)
			}
			if !states[tr.Target] {
				add(ErrUndeclaredState, field, tr.Pos.Line(), "transition to undeclared state %q", tr.Target)
			}
		}
	}

	// E110: nothing to report is legal but almost always a mistake
	if len(decl.States) > 0 && !accepting {
		errs = append(errs, ValidationError{
			Field:    "states",
			Message:  "no accepting state; the property can never match",
			Code:     ErrNoAcceptingState,
			Severity: SeverityWarning,
			Line:     line,
		})
	}
	return errs
}
