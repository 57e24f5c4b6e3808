package ir

import (
	"errors"
	"fmt"
	"sort"
)

// MaxBaseEvents is the largest alphabet a property may declare.
const MaxBaseEvents = 64

// Builder assembles an FSM. Mistakes are collected and reported together
// by Build, so callers may chain declarations without checking each one.
type Builder struct {
	fsm   *FSM
	edges map[edgeKey]*State
	errs  []error
	built bool
}

type edgeKey struct {
	from  int
	event int
}

// NewBuilder starts a property named name.
func NewBuilder(name string) *Builder {
	return &Builder{
		fsm:   &FSM{name: name},
		edges: make(map[edgeKey]*State),
	}
}

func (b *Builder) fail(code ConfigErrorCode, field, format string, args ...any) {
	b.errs = append(b.errs, &ConfigError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Parameter declares a parameter. Declaring a name twice is an error; the
// first declaration is returned.
func (b *Builder) Parameter(name string) *Parameter {
	if p := b.fsm.Parameter(name); p != nil {
		b.fail(ErrCodeDuplicateName, "parameters."+name, "parameter declared twice")
		return p
	}
	p := &Parameter{Index: len(b.fsm.params), Name: name}
	b.fsm.params = append(b.fsm.params, p)
	return p
}

// Event declares a base event binding params in the given order.
func (b *Builder) Event(name string, params ...*Parameter) *BaseEvent {
	if e := b.fsm.Event(name); e != nil {
		b.fail(ErrCodeDuplicateName, "events."+name, "event declared twice")
		return e
	}
	e := &BaseEvent{Index: len(b.fsm.events), Name: name}
	for _, p := range params {
		if !b.ownsParameter(p) {
			b.fail(ErrCodeUnknownSymbol, "events."+name, "parameter %v is not declared by %s", p, b.fsm.name)
			continue
		}
		if e.Params.Has(p.Index) {
			b.fail(ErrCodeDuplicateName, "events."+name, "parameter %s bound twice", p.Name)
			continue
		}
		e.Params = e.Params.With(p.Index)
		e.declared = append(e.declared, p)
	}
	b.fsm.events = append(b.fsm.events, e)
	return e
}

// State declares a non-accepting state.
func (b *Builder) State(name string) *State {
	return b.state(name, false)
}

// Accepting declares an accepting state.
func (b *Builder) Accepting(name string) *State {
	return b.state(name, true)
}

// Initial declares a non-accepting state and marks it initial.
func (b *Builder) Initial(name string) *State {
	s := b.state(name, false)
	b.SetInitial(s)
	return s
}

// SetInitial marks s as the initial state.
func (b *Builder) SetInitial(s *State) {
	if !b.ownsState(s) {
		b.fail(ErrCodeUnknownSymbol, "initial", "state %v is not declared by %s", s, b.fsm.name)
		return
	}
	b.fsm.initial = s
}

func (b *Builder) state(name string, accepting bool) *State {
	if s := b.fsm.State(name); s != nil {
		b.fail(ErrCodeDuplicateName, "states."+name, "state declared twice")
		return s
	}
	s := &State{Index: len(b.fsm.states), Name: name, Accepting: accepting}
	b.fsm.states = append(b.fsm.states, s)
	return s
}

// Transition adds from --e--> to.
func (b *Builder) Transition(from *State, e *BaseEvent, to *State) *Builder {
	switch {
	case !b.ownsState(from):
		b.fail(ErrCodeUnknownSymbol, "transitions", "source state %v is not declared", from)
		return b
	case !b.ownsState(to):
		b.fail(ErrCodeUnknownSymbol, "states."+from.Name, "target state %v is not declared", to)
		return b
	case !b.ownsEvent(e):
		b.fail(ErrCodeUnknownSymbol, "states."+from.Name, "transition on undeclared event %v", e)
		return b
	}
	k := edgeKey{from: from.Index, event: e.Index}
	if prev, ok := b.edges[k]; ok && prev != to {
		b.fail(ErrCodeConflictingTransition, "states."+from.Name+".on."+e.Name,
			"successor given as both %s and %s", prev.Name, to.Name)
		return b
	}
	b.edges[k] = to
	return b
}

func (b *Builder) ownsParameter(p *Parameter) bool {
	return p != nil && p.Index < len(b.fsm.params) && b.fsm.params[p.Index] == p
}

func (b *Builder) ownsEvent(e *BaseEvent) bool {
	return e != nil && e.Index < len(b.fsm.events) && b.fsm.events[e.Index] == e
}

func (b *Builder) ownsState(s *State) bool {
	return s != nil && s.Index < len(b.fsm.states) && b.fsm.states[s.Index] == s
}

// Build validates the declarations and returns the finished FSM. All
// problems are returned at once, joined; use ConfigErrors to list them.
func (b *Builder) Build() (*FSM, error) {
	if b.built {
		return nil, errors.New("ir: Build called twice")
	}
	f := b.fsm
	if f.name == "" {
		b.fail(ErrCodeEmptyProperty, "name", "property has no name")
	}
	if len(f.params) > MaxParameters {
		b.fail(ErrCodeTooManyParameters, "parameters", "%d parameters declared, at most %d supported", len(f.params), MaxParameters)
	}
	if len(f.events) > MaxBaseEvents {
		b.fail(ErrCodeTooManyParameters, "events", "%d events declared, at most %d supported", len(f.events), MaxBaseEvents)
	}
	if len(f.events) == 0 {
		b.fail(ErrCodeEmptyProperty, "events", "property declares no events")
	}
	if f.initial == nil {
		b.errs = append(b.errs, &ConfigError{Code: ErrCodeNoInitialState, Field: "initial", Message: "no initial state"})
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	for _, p := range f.params {
		f.full = f.full.With(p.Index)
	}
	for _, e := range f.events {
		e.order = make([]int, len(e.declared))
		for i := range e.order {
			e.order[i] = i
		}
		sort.Slice(e.order, func(i, j int) bool {
			return e.declared[e.order[i]].Index < e.declared[e.order[j]].Index
		})
	}
	for _, s := range f.states {
		s.succ = make([]*State, len(f.events))
	}
	for k, to := range b.edges {
		f.states[k.from].succ[k.event] = to
	}
	f.markFinal()
	b.built = true
	return f, nil
}

// MustBuild is like Build but panics on error.
// Use only in tests or for properties known to be valid.
func (b *Builder) MustBuild() *FSM {
	f, err := b.Build()
	if err != nil {
		panic(err)
	}
	return f
}
