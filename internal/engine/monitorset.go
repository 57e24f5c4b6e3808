package engine

// MonitorSet holds the nodes of monitors more informative than the owning
// node, in insertion order.
//
// A pass visits entries left to right and compacts the ones still alive
// toward the front; entries added during a pass are appended when it ends.
// After a pass the set holds no terminated monitors.
//
// Entries added during a pass, as when a step derives or chains a new
// monitor into a set being visited, wait in pending and are not visited
// by that pass. Insertion order is kept, so the order in which monitors
// step and report matches depends only on the event stream.
type MonitorSet struct {
	nodes     []*Node
	pending   []*Node
	iterating bool
}

// Len returns the number of entries, including ones that terminated since
// the last pass.
func (s *MonitorSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.nodes) + len(s.pending)
}

func (s *MonitorSet) add(n *Node) {
	if s.iterating {
		s.pending = append(s.pending, n)
		return
	}
	s.nodes = append(s.nodes, n)
}

// each calls fn for every node whose monitor is alive and drops the nodes
// whose monitor terminated before or during the call.
func (s *MonitorSet) each(fn func(*Node)) {
	if s.iterating {
		invariant("nested monitor set pass")
	}
	s.iterating = true
	w := 0
	for _, n := range s.nodes {
		if !n.live() {
			continue
		}
		fn(n)
		if n.live() {
			s.nodes[w] = n
			w++
		}
	}
	clear(s.nodes[w:])
	s.nodes = s.nodes[:w]
	s.iterating = false

	if len(s.pending) > 0 {
		s.nodes = append(s.nodes, s.pending...)
		clear(s.pending)
		s.pending = s.pending[:0]
	}
}
