package engine

import (
	"github.com/roach88/prm/internal/ir"
	"github.com/roach88/prm/internal/model"
)

// Monitor is one running automaton instance for one binding tuple.
//
// A monitor is fresh until it takes its first event, alive while it has a
// state, and terminated once its state is gone. A terminated monitor stays
// on its node as a marker that blocks re-creation for the same tuple.
type Monitor struct {
	state    *ir.State
	bindings []*Binding
	meta     *model.MetaNode
	created  int64
}

// State returns the current state, or nil once terminated.
func (m *Monitor) State() *ir.State { return m.state }

// Terminated reports whether the monitor has no state.
func (m *Monitor) Terminated() bool { return m.state == nil }

// Domain returns the parameters the monitor is bound to.
func (m *Monitor) Domain() ir.ParamSet {
	if m.meta == nil {
		return ir.EmptySet
	}
	return m.meta.Domain
}

// Created returns the stamp of the event that created the monitor's slice.
func (m *Monitor) Created() int64 { return m.created }

// Objects returns the bound objects in ascending parameter order. Objects
// already reclaimed are nil.
func (m *Monitor) Objects() []any {
	out := make([]any, len(m.bindings))
	for i, b := range m.bindings {
		out[i] = b.Object()
	}
	return out
}

// derive copies m onto a larger tuple. The copy keeps m's state and its
// creation stamp, since its slice starts where m's did.
func (m *Monitor) derive(meta *model.MetaNode, bindings []*Binding) *Monitor {
	if len(bindings) != len(meta.Params) {
		invariant("%d bindings for domain %s", len(bindings), meta.Domain)
	}
	return &Monitor{
		state:    m.state,
		bindings: bindings,
		meta:     meta,
		created:  m.created,
	}
}

func (m *Monitor) terminate() {
	m.state = nil
	m.bindings = nil
}

// released reports whether any binding was released by the store.
func (m *Monitor) released() bool {
	for _, b := range m.bindings {
		if b.Released() {
			return true
		}
	}
	return false
}

// alive reports whether an accepting state is still reachable through
// bindings whose objects are alive.
func (m *Monitor) alive() bool {
	return m.meta.Alive(m.state.Index, func(pos int) bool {
		return m.bindings[pos].Alive()
	})
}
