package ir

// Specification is the finite property description consumed by the
// analyzer and the engine. FSM is the only implementation shipped here.
type Specification interface {
	Name() string
	Parameters() []*Parameter
	BaseEvents() []*BaseEvent
	States() []*State
	InitialState() *State
	FullParameterSet() ParamSet
}

// BaseEvent is an event symbol of the property alphabet together with the
// parameters it binds.
type BaseEvent struct {
	Index  int
	Name   string
	Params ParamSet

	// declared holds the parameters in declaration order. Objects of an
	// Event are supplied in this order.
	declared []*Parameter
	// order maps a position of the compressed (ascending) binding array to
	// the position of the corresponding object in declaration order.
	order []int
}

// Declared returns the event's parameters in declaration order.
func (e *BaseEvent) Declared() []*Parameter { return e.declared }

// Arity returns the number of objects an occurrence of e binds.
func (e *BaseEvent) Arity() int { return len(e.declared) }

// CompressedOrder maps compressed positions to declaration positions.
func (e *BaseEvent) CompressedOrder() []int { return e.order }

// New returns an occurrence of e binding objects in declaration order.
func (e *BaseEvent) New(objects ...any) Event {
	return Event{Base: e, Objects: objects}
}

func (e *BaseEvent) String() string { return e.Name }

// State is an automaton state. Transitions are total over the alphabet;
// a nil successor means the transition is undefined (the slice dies).
type State struct {
	Index     int
	Name      string
	Accepting bool

	// Handler is called when a monitor enters this state. Only meaningful
	// on accepting states.
	Handler MatchHandler

	succ  []*State
	final bool
}

// Successor returns the state reached from s on e, or nil when undefined.
func (s *State) Successor(e *BaseEvent) *State {
	if e == nil || e.Index >= len(s.succ) {
		return nil
	}
	return s.succ[e.Index]
}

// Final reports whether no accepting state is reachable from s in one or
// more steps. Monitors entering a final state terminate.
func (s *State) Final() bool { return s.final }

func (s *State) String() string { return s.Name }

// FSM is a deterministic finite automaton over parametric base events.
// FSMs are immutable once built and safe for concurrent readers.
type FSM struct {
	name    string
	params  []*Parameter
	events  []*BaseEvent
	states  []*State
	initial *State
	full    ParamSet
}

var _ Specification = (*FSM)(nil)

func (f *FSM) Name() string               { return f.name }
func (f *FSM) Parameters() []*Parameter   { return f.params }
func (f *FSM) BaseEvents() []*BaseEvent   { return f.events }
func (f *FSM) States() []*State           { return f.states }
func (f *FSM) InitialState() *State       { return f.initial }
func (f *FSM) FullParameterSet() ParamSet { return f.full }

// Parameter returns the parameter named name, or nil.
func (f *FSM) Parameter(name string) *Parameter {
	for _, p := range f.params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Event returns the base event named name, or nil.
func (f *FSM) Event(name string) *BaseEvent {
	for _, e := range f.events {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// State returns the state named name, or nil.
func (f *FSM) State(name string) *State {
	for _, s := range f.states {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SetMatchHandler installs h on every accepting state that has no handler
// of its own.
func (f *FSM) SetMatchHandler(h MatchHandler) {
	for _, s := range f.states {
		if s.Accepting && s.Handler == nil {
			s.Handler = h
		}
	}
}

// markFinal computes State.final: a state is final when no accepting state
// is reachable from it through at least one transition.
func (f *FSM) markFinal() {
	// reach[s] = some accepting state reachable in >= 1 step.
	reach := make([]bool, len(f.states))
	for changed := true; changed; {
		changed = false
		for _, s := range f.states {
			if reach[s.Index] {
				continue
			}
			for _, t := range s.succ {
				if t != nil && (t.Accepting || reach[t.Index]) {
					reach[s.Index] = true
					changed = true
					break
				}
			}
		}
	}
	for _, s := range f.states {
		s.final = !reach[s.Index]
	}
}
