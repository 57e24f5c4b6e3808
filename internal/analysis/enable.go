package analysis

import "github.com/roach88/prm/internal/ir"

// walker enumerates prefixes of accepting paths. A prefix is summarised by
// the set of events it contains, so each (state, events seen) pair is
// explored once.
type walker struct {
	events     []*ir.BaseEvent
	initial    *ir.State
	productive []bool
	visited    map[visitKey]struct{}
	enable     []map[ir.ParamSet]struct{}
}

type visitKey struct {
	state int
	seen  uint64
}

func newWalker(spec ir.Specification) *walker {
	events := spec.BaseEvents()
	w := &walker{
		events:     events,
		initial:    spec.InitialState(),
		productive: make([]bool, len(spec.States())),
		visited:    make(map[visitKey]struct{}),
		enable:     make([]map[ir.ParamSet]struct{}, len(events)),
	}
	for i := range w.enable {
		w.enable[i] = make(map[ir.ParamSet]struct{})
	}
	for _, s := range spec.States() {
		w.productive[s.Index] = s.Accepting || !s.Final()
	}
	return w
}

// walk records, for each event leaving s that keeps an accepting state
// reachable, the parameters bound by the prefix so far.
func (w *walker) walk(s *ir.State, seen uint64, bound ir.ParamSet) {
	key := visitKey{state: s.Index, seen: seen}
	if _, ok := w.visited[key]; ok {
		return
	}
	w.visited[key] = struct{}{}

	for _, e := range w.events {
		next := s.Successor(e)
		if next == nil || !w.productive[next.Index] {
			continue
		}
		// Events looping on the initial state before any creation never
		// start a slice.
		if seen == 0 && s == w.initial && next == s {
			continue
		}
		bit := uint64(1) << uint(e.Index)
		if seen&bit == 0 {
			w.enable[e.Index][bound] = struct{}{}
		}
		w.walk(next, seen|bit, bound.Union(e.Params))
	}
}
