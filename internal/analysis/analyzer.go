package analysis

import (
	"fmt"
	"slices"

	"github.com/roach88/prm/internal/ir"
)

// Update is one edge of the update relation: an instance bound to From can
// grow into an instance bound to To when an event is observed.
type Update struct {
	From ir.ParamSet
	To   ir.ParamSet
}

// Result holds the static facts derived from a specification. Every table
// is indexed by the dense event or state index and sorted canonically, so
// two analyses of the same specification are identical.
type Result struct {
	Spec ir.Specification

	// Creation[e] is true when the initial state has a successor on e
	// other than itself.
	Creation []bool

	// Disabling[e] is true when the initial state has no successor on e.
	Disabling []bool

	// EnableSets[e] lists the parameter sets that may already be bound when
	// e is observed on a path that can still reach an accepting state. The
	// empty set is a member exactly when e can start a slice.
	EnableSets [][]ir.ParamSet

	// Updates is the update relation, deduplicated and sorted.
	Updates []Update

	// AliveSets[s] lists the minimal parameter sets whose objects must all
	// remain reachable for an accepting state to be reachable from s.
	AliveSets [][]ir.ParamSet

	// MonitorDomains lists every parameter set a monitor can be bound to.
	MonitorDomains []ir.ParamSet
}

// CreationEvents returns the creation events in index order.
func (r *Result) CreationEvents() []*ir.BaseEvent {
	return r.filterEvents(r.Creation)
}

// DisablingEvents returns the disabling events in index order.
func (r *Result) DisablingEvents() []*ir.BaseEvent {
	return r.filterEvents(r.Disabling)
}

func (r *Result) filterEvents(flags []bool) []*ir.BaseEvent {
	var out []*ir.BaseEvent
	for _, e := range r.Spec.BaseEvents() {
		if flags[e.Index] {
			out = append(out, e)
		}
	}
	return out
}

// Analyze derives creation and disabling events, enable sets, the update
// relation and alive sets from spec.
//
// Unreachable accepting states are tolerated; they simply contribute no
// enable sets.
func Analyze(spec ir.Specification) (*Result, error) {
	if spec == nil {
		return nil, &ir.ConfigError{Code: ir.ErrCodeEmptyProperty, Message: "nil specification"}
	}
	initial := spec.InitialState()
	if initial == nil {
		return nil, &ir.ConfigError{Code: ir.ErrCodeNoInitialState, Field: spec.Name(), Message: "no initial state"}
	}
	events := spec.BaseEvents()
	if len(events) > ir.MaxBaseEvents {
		return nil, &ir.ConfigError{
			Code:    ir.ErrCodeTooManyParameters,
			Field:   spec.Name(),
			Message: fmt.Sprintf("%d events declared, at most %d supported", len(events), ir.MaxBaseEvents),
		}
	}

	r := &Result{
		Spec:       spec,
		Creation:   make([]bool, len(events)),
		Disabling:  make([]bool, len(events)),
		EnableSets: make([][]ir.ParamSet, len(events)),
	}
	for _, e := range events {
		next := initial.Successor(e)
		r.Creation[e.Index] = next != nil && next != initial
		r.Disabling[e.Index] = next == nil
	}

	w := newWalker(spec)
	w.walk(initial, 0, ir.EmptySet)
	for _, e := range events {
		sets := make([]ir.ParamSet, 0, len(w.enable[e.Index]))
		for s := range w.enable[e.Index] {
			sets = append(sets, s)
		}
		slices.SortFunc(sets, ir.ParamSet.Compare)
		r.EnableSets[e.Index] = sets
	}

	r.Updates, r.MonitorDomains = updateRelation(events, r.EnableSets)
	for _, e := range events {
		// A parameterless creation event starts the monitor of the empty
		// instance, which every later slice extends.
		if r.Creation[e.Index] && e.Params.IsEmpty() && !slices.Contains(r.MonitorDomains, ir.EmptySet) {
			r.MonitorDomains = slices.Insert(r.MonitorDomains, 0, ir.EmptySet)
			break
		}
	}
	r.AliveSets = aliveSets(spec)
	return r, nil
}

// updateRelation derives X' = Y ∪ params(e) for every enabling set Y of e
// that params(e) actually widens.
func updateRelation(events []*ir.BaseEvent, enable [][]ir.ParamSet) ([]Update, []ir.ParamSet) {
	seen := make(map[Update]struct{})
	domains := make(map[ir.ParamSet]struct{})
	for _, e := range events {
		for _, y := range enable[e.Index] {
			if e.Params.SubsetOf(y) {
				continue
			}
			u := Update{From: y, To: y.Union(e.Params)}
			seen[u] = struct{}{}
			domains[u.To] = struct{}{}
		}
	}
	updates := make([]Update, 0, len(seen))
	for u := range seen {
		updates = append(updates, u)
	}
	slices.SortFunc(updates, func(a, b Update) int {
		if c := a.From.Compare(b.From); c != 0 {
			return c
		}
		return a.To.Compare(b.To)
	})
	out := make([]ir.ParamSet, 0, len(domains))
	for d := range domains {
		out = append(out, d)
	}
	slices.SortFunc(out, ir.ParamSet.Compare)
	return updates, out
}
