package ir

// Guard selects the base event actually taken from the monitor's current
// state, given the occurrence's auxiliary data. Returning nil means no
// transition for this monitor. The returned event must bind the same
// parameters as the occurrence's base event.
type Guard func(current *State, aux any) *BaseEvent

// Event is one occurrence of a base event. Objects are given in the base
// event's declaration order and must be non-nil pointers.
type Event struct {
	Base    *BaseEvent
	Objects []any
	Aux     any
	Guard   Guard
}

// WithAux returns a copy of ev carrying aux.
func (ev Event) WithAux(aux any) Event {
	ev.Aux = aux
	return ev
}

// WithGuard returns a copy of ev carrying g.
func (ev Event) WithGuard(g Guard) Event {
	ev.Guard = g
	return ev
}

// Match describes a monitor entering an accepting state.
type Match struct {
	Property string
	State    *State
	Event    *Event

	// Seq is the logical timestamp of the triggering occurrence.
	Seq int64

	// Params is the monitor's parameter domain.
	Params ParamSet

	// Objects is indexed by parameter index. Unbound parameters are nil, as
	// are bound objects that have already been reclaimed.
	Objects []any
}

// Object returns the object bound to p, or nil.
func (m Match) Object(p *Parameter) any {
	if p == nil || p.Index >= len(m.Objects) {
		return nil
	}
	return m.Objects[p.Index]
}

// MatchHandler receives matches. Handlers run synchronously on the
// goroutine delivering events.
type MatchHandler func(Match)
