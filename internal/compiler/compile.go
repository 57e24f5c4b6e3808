package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/prm/internal/ir"
)

// CompileProperty parses, validates and builds a property. Validation
// findings of error severity are returned together as ValidationErrors;
// warnings are dropped (use Validate to see them).
func CompileProperty(v cue.Value) (*ir.FSM, error) {
	decl, err := ParseProperty(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(decl); HasErrors(errs) {
		var only ValidationErrors
		for _, e := range errs {
			if e.Severity == SeverityError {
				only = append(only, e)
			}
		}
		return nil, fmt.Errorf("property %s: %w", decl.Name, only)
	}
	return BuildFSM(decl)
}

// BuildFSM translates a validated declaration into an automaton.
// Transitions not listed are undefined.
func BuildFSM(decl *PropertyDecl) (*ir.FSM, error) {
	b := ir.NewBuilder(decl.Name)
	params := make(map[string]*ir.Parameter, len(decl.Parameters))
	for _, name := range decl.Parameters {
		params[name] = b.Parameter(name)
	}

	events := make(map[string]*ir.BaseEvent, len(decl.Events))
	for _, ev := range decl.Events {
		bound := make([]*ir.Parameter, 0, len(ev.Params))
		for _, p := range ev.Params {
			bound = append(bound, params[p])
		}
		events[ev.Name] = b.Event(ev.Name, bound...)
	}

	states := make(map[string]*ir.State, len(decl.States))
	for _, st := range decl.States {
		switch {
		case st.Accepting:
			states[st.Name] = b.Accepting(st.Name)
		default:
			states[st.Name] = b.State(st.Name)
		}
	}
	if s, ok := states[decl.Initial]; ok {
		b.SetInitial(s)
	}

	for _, st := range decl.States {
		for _, tr := range st.On {
			b.Transition(states[st.Name], events[tr.Event], states[tr.Target])
		}
	}

	fsm, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build property %s: %w", decl.Name, err)
	}
	return fsm, nil
}
