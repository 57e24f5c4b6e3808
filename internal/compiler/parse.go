package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"
)

// PropertyDecl is a property as written in CUE, before validation.
// Declaration order is preserved; it fixes parameter, event and state
// indices.
type PropertyDecl struct {
	Name       string
	Parameters []string
	Events     []EventDecl
	Initial    string
	States     []StateDecl
	Pos        token.Pos
}

// EventDecl declares a base event and the parameters it binds, in the
// order objects are supplied.
type EventDecl struct {
	Name   string
	Params []string
	Pos    token.Pos
}

// StateDecl declares a state and its outgoing transitions.
type StateDecl struct {
	Name      string
	Accepting bool
	On        []TransitionDecl
	Pos       token.Pos
}

// TransitionDecl maps an event to a successor state.
type TransitionDecl struct {
	Event  string
	Target string
	Pos    token.Pos
}

// ParseProperty reads a property struct into a PropertyDecl. Only the
// shape is checked here; Validate checks the content.
//
// The CUE value should be the property struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`property: HasNext: { ... }`)
//	decl, err := ParseProperty(v.LookupPath(cue.ParsePath("property.HasNext")))
func ParseProperty(v cue.Value) (*PropertyDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	decl := &PropertyDecl{Pos: v.Pos()}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		decl.Name = normalize(labels[len(labels)-1].String())
	}

	var err error
	if decl.Parameters, err = stringList(v, "parameters"); err != nil {
		return nil, err
	}

	if ev := v.LookupPath(cue.ParsePath("events")); ev.Exists() {
		iter, err := ev.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			params, err := listOfStrings(iter.Value(), "events."+iter.Label())
			if err != nil {
				return nil, err
			}
			decl.Events = append(decl.Events, EventDecl{
				Name:   normalize(iter.Label()),
				Params: params,
				Pos:    iter.Value().Pos(),
			})
		}
	}

	if iv := v.LookupPath(cue.ParsePath("initial")); iv.Exists() {
		s, err := iv.String()
		if err != nil {
			return nil, &CompileError{Field: "initial", Message: "initial must be a state name", Pos: iv.Pos()}
		}
		decl.Initial = normalize(s)
	}

	if sv := v.LookupPath(cue.ParsePath("states")); sv.Exists() {
		iter, err := sv.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			st, err := parseState(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			decl.States = append(decl.States, st)
		}
	}
	return decl, nil
}

func parseState(name string, v cue.Value) (StateDecl, error) {
	st := StateDecl{Name: normalize(name), Pos: v.Pos()}
	field := "states." + name

	if av := v.LookupPath(cue.ParsePath("accepting")); av.Exists() {
		b, err := av.Bool()
		if err != nil {
			return st, &CompileError{Field: field + ".accepting", Message: "accepting must be a bool", Pos: av.Pos()}
		}
		st.Accepting = b
	}

	if ov := v.LookupPath(cue.ParsePath("on")); ov.Exists() {
		iter, err := ov.Fields()
		if err != nil {
			return st, formatCUEError(err)
		}
		for iter.Next() {
			target, err := iter.Value().String()
			if err != nil {
				return st, &CompileError{
					Field:   fmt.Sprintf("%s.on.%s", field, iter.Label()),
					Message: "transition target must be a state name",
					Pos:     iter.Value().Pos(),
				}
			}
			st.On = append(st.On, TransitionDecl{
				Event:  normalize(iter.Label()),
				Target: normalize(target),
				Pos:    iter.Value().Pos(),
			})
		}
	}
	return st, nil
}

func stringList(v cue.Value, path string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(path))
	if !lv.Exists() {
		return nil, nil
	}
	return listOfStrings(lv, path)
}

func listOfStrings(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of names", Pos: v.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "must be a list of names", Pos: iter.Value().Pos()}
		}
		out = append(out, normalize(s))
	}
	return out, nil
}

// normalize puts names in NFC so visually identical names compare equal.
func normalize(s string) string {
	return norm.NFC.String(s)
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
