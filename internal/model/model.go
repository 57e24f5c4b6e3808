package model

import (
	"slices"

	"github.com/roach88/prm/internal/analysis"
	"github.com/roach88/prm/internal/ir"
)

// MaxOp derives a monitor for a fresh instance directly from the monitor
// of its most informative ancestor Ancestor ⊊ params(Event).
type MaxOp struct {
	Event    *ir.BaseEvent
	Ancestor ir.ParamSet

	// Disable lists instance domains whose last event, if newer than the
	// ancestor's creation, makes the derivation unsound.
	Disable []ir.ParamSet
}

// JoinOp combines an event with every compatible monitor bound to
// Enabling, producing monitors bound to Joined.
type JoinOp struct {
	Event      *ir.BaseEvent
	Compatible ir.ParamSet // params(Event) ∩ Enabling
	Enabling   ir.ParamSet
	Joined     ir.ParamSet // params(Event) ∪ Enabling
	Disable    []ir.ParamSet
}

// Chain registers a monitor bound to From in the monitor set SetID of the
// node for its sub-instance over Target.
type Chain struct {
	From   ir.ParamSet
	Target ir.ParamSet
	SetID  int
}

// Model is the join and max plan for a property. It is immutable and
// deterministic for a given specification.
type Model struct {
	Spec     ir.Specification
	Analysis *analysis.Result

	// EventDomains lists the distinct parameter sets of base events.
	EventDomains []ir.ParamSet

	// MonitorDomains lists every parameter set a monitor can be bound to.
	MonitorDomains []ir.ParamSet

	// Maxes[e] lists max derivations in decreasing ancestor size.
	Maxes [][]MaxOp

	// Joins[e] lists joins in decreasing enabling-set size.
	Joins [][]JoinOp

	// Existing[e] lists, for creation events, the sub-domains whose
	// monitors block creation.
	Existing [][]ir.ParamSet

	// Sets maps a node domain to its monitor-set partner domains in id
	// order. The empty partner is the update set and always gets id 0.
	Sets map[ir.ParamSet][]ir.ParamSet

	// Chains maps a monitor domain to the registrations a new monitor of
	// that domain performs, sorted by target then id.
	Chains map[ir.ParamSet][]Chain
}

// SetID returns the id of the monitor set for partner at nodes of domain
// node, or -1 when there is none.
func (m *Model) SetID(node, partner ir.ParamSet) int {
	return slices.Index(m.Sets[node], partner)
}

// UpdateSetID returns the id of the update set at nodes of domain node,
// or -1.
func (m *Model) UpdateSetID(node ir.ParamSet) int {
	return m.SetID(node, ir.EmptySet)
}

// Build plans max derivations, joins, monitor sets and chaining from an
// analysis result.
func Build(r *analysis.Result) (*Model, error) {
	if r == nil || r.Spec == nil {
		return nil, &ir.ConfigError{Code: ir.ErrCodeEmptyProperty, Message: "nil analysis result"}
	}
	events := r.Spec.BaseEvents()
	m := &Model{
		Spec:           r.Spec,
		Analysis:       r,
		MonitorDomains: r.MonitorDomains,
		Maxes:          make([][]MaxOp, len(events)),
		Joins:          make([][]JoinOp, len(events)),
		Existing:       make([][]ir.ParamSet, len(events)),
		Sets:           make(map[ir.ParamSet][]ir.ParamSet),
		Chains:         make(map[ir.ParamSet][]Chain),
	}
	m.EventDomains = eventDomains(events)

	for _, e := range events {
		m.planEvent(e, r.EnableSets[e.Index])
		if r.Creation[e.Index] {
			for _, z := range m.MonitorDomains {
				if z.StrictSubsetOf(e.Params) {
					m.Existing[e.Index] = append(m.Existing[e.Index], z)
				}
			}
		}
	}

	// Update sets: an event at X must reach every monitor bound to a
	// strict superset of X.
	for _, x := range m.EventDomains {
		for _, z := range m.MonitorDomains {
			if x.StrictSubsetOf(z) {
				m.addSet(x, ir.EmptySet)
				break
			}
		}
	}
	for _, joins := range m.Joins {
		for _, j := range joins {
			m.addSet(j.Compatible, j.Enabling)
		}
	}
	for node := range m.Sets {
		slices.SortFunc(m.Sets[node], ir.ParamSet.Compare)
	}

	m.planChains()
	return m, nil
}

// planEvent classifies every enabling set of e, largest first.
func (m *Model) planEvent(e *ir.BaseEvent, enable []ir.ParamSet) {
	x := e.Params
	for _, y := range slices.Backward(enable) {
		switch {
		case y.IsEmpty():
			// Creation from the initial state is handled by the creation
			// flag. A monitor of the empty instance exists only after a
			// parameterless creation event; bound events then derive from it.
			if !x.IsEmpty() && slices.Contains(m.MonitorDomains, ir.EmptySet) {
				m.Maxes[e.Index] = append(m.Maxes[e.Index], MaxOp{
					Event:    e,
					Ancestor: ir.EmptySet,
					Disable:  m.disableDomains(x, ir.EmptySet),
				})
			}
		case y.StrictSubsetOf(x):
			m.Maxes[e.Index] = append(m.Maxes[e.Index], MaxOp{
				Event:    e,
				Ancestor: y,
				Disable:  m.disableDomains(x, y),
			})
		case x.SubsetOf(y):
			// Plain update propagation reaches these monitors.
		default:
			joined := x.Union(y)
			m.Joins[e.Index] = append(m.Joins[e.Index], JoinOp{
				Event:      e,
				Compatible: x.Intersect(y),
				Enabling:   y,
				Joined:     joined,
				Disable:    m.disableDomains(joined, y),
			})
		}
	}
}

// disableDomains lists event domains inside target that a monitor bound
// to source has not observed.
func (m *Model) disableDomains(target, source ir.ParamSet) []ir.ParamSet {
	var out []ir.ParamSet
	for _, d := range m.EventDomains {
		if d.SubsetOf(target) && !d.SubsetOf(source) {
			out = append(out, d)
		}
	}
	return out
}

func (m *Model) addSet(node, partner ir.ParamSet) {
	if !slices.Contains(m.Sets[node], partner) {
		m.Sets[node] = append(m.Sets[node], partner)
	}
}

func (m *Model) planChains() {
	for _, z := range m.MonitorDomains {
		var chains []Chain
		for _, x := range m.EventDomains {
			if x.StrictSubsetOf(z) {
				if id := m.UpdateSetID(x); id >= 0 {
					chains = append(chains, Chain{From: z, Target: x, SetID: id})
				}
			}
		}
		for _, joins := range m.Joins {
			for _, j := range joins {
				if j.Enabling != z {
					continue
				}
				c := Chain{From: z, Target: j.Compatible, SetID: m.SetID(j.Compatible, j.Enabling)}
				if !slices.Contains(chains, c) {
					chains = append(chains, c)
				}
			}
		}
		slices.SortFunc(chains, func(a, b Chain) int {
			if c := a.Target.Compare(b.Target); c != 0 {
				return c
			}
			return a.SetID - b.SetID
		})
		if len(chains) > 0 {
			m.Chains[z] = chains
		}
	}
}

func eventDomains(events []*ir.BaseEvent) []ir.ParamSet {
	var out []ir.ParamSet
	for _, e := range events {
		if !slices.Contains(out, e.Params) {
			out = append(out, e.Params)
		}
	}
	slices.SortFunc(out, ir.ParamSet.Compare)
	return out
}
