package model

import (
	"slices"

	"github.com/roach88/prm/internal/ir"
)

// ChainingArgs registers a new monitor with the monitor set MonitorSetID of
// the node selected by NodeMask from the monitor's own bindings.
type ChainingArgs struct {
	Target       ir.ParamSet
	NodeMask     []int
	MonitorSetID int
}

// MetaNode describes every runtime node bound to one parameter domain.
type MetaNode struct {
	Domain ir.ParamSet
	Params []int

	// MonitorSetCount is the number of monitor sets a node of this domain
	// carries; ids are 0..MonitorSetCount-1.
	MonitorSetCount int

	// Chaining lists the registrations performed when a monitor of this
	// domain is created.
	Chaining []ChainingArgs

	// aliveMasks[s] lists positions (into the node's binding array) of
	// parameter groups that must all be alive for a monitor in state s to
	// still reach acceptance. alwaysAlive[s] is set when some group has no
	// member bound at this domain.
	aliveMasks  [][][]int
	alwaysAlive []bool

	children map[int]*MetaNode
}

// Child returns the meta node reached by binding parameter p next, or nil.
func (n *MetaNode) Child(p int) *MetaNode {
	return n.children[p]
}

// Alive reports whether a monitor in state of this domain can still reach
// acceptance, given which binding positions are alive.
func (n *MetaNode) Alive(state int, alive func(pos int) bool) bool {
	if n.alwaysAlive[state] {
		return true
	}
	for _, mask := range n.aliveMasks[state] {
		ok := true
		for _, pos := range mask {
			if !alive(pos) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// AliveMasks returns the alive masks for state and whether the state is
// unconditionally alive at this domain.
func (n *MetaNode) AliveMasks(state int) ([][]int, bool) {
	return n.aliveMasks[state], n.alwaysAlive[state]
}

// ParameterTree indexes MetaNodes by domain. Paths descend through
// parameters in ascending index order, mirroring the runtime node tree.
type ParameterTree struct {
	root   *MetaNode
	states int
	alive  [][]ir.ParamSet
}

// NewParameterTree inserts every domain the engine can address: event
// domains, monitor domains and monitor-set owners, with their prefixes.
func NewParameterTree(m *Model) *ParameterTree {
	t := &ParameterTree{
		states: len(m.Spec.States()),
		alive:  m.Analysis.AliveSets,
	}
	t.root = t.newMeta(ir.EmptySet)

	for _, d := range m.EventDomains {
		t.insert(d)
	}
	for _, d := range m.MonitorDomains {
		t.insert(d)
	}
	for node, partners := range m.Sets {
		t.insert(node).MonitorSetCount = len(partners)
	}
	for from, chains := range m.Chains {
		meta := t.insert(from)
		for _, c := range chains {
			meta.Chaining = append(meta.Chaining, ChainingArgs{
				Target:       c.Target,
				NodeMask:     from.Positions(c.Target),
				MonitorSetID: c.SetID,
			})
		}
	}
	return t
}

// Root returns the meta node of the empty instance.
func (t *ParameterTree) Root() *MetaNode { return t.root }

// Get returns the meta node for domain, or nil when the domain was never
// inserted.
func (t *ParameterTree) Get(domain ir.ParamSet) *MetaNode {
	n := t.root
	for _, p := range domain.Indices() {
		if n = n.children[p]; n == nil {
			return nil
		}
	}
	return n
}

// insert is get-or-create.
func (t *ParameterTree) insert(domain ir.ParamSet) *MetaNode {
	n := t.root
	prefix := ir.EmptySet
	for _, p := range domain.Indices() {
		prefix = prefix.With(p)
		child := n.children[p]
		if child == nil {
			child = t.newMeta(prefix)
			n.children[p] = child
		}
		n = child
	}
	return n
}

func (t *ParameterTree) newMeta(domain ir.ParamSet) *MetaNode {
	n := &MetaNode{
		Domain:      domain,
		Params:      domain.Indices(),
		aliveMasks:  make([][][]int, t.states),
		alwaysAlive: make([]bool, t.states),
		children:    make(map[int]*MetaNode),
	}
	for s := 0; s < t.states; s++ {
		var masks [][]int
		for _, a := range t.alive[s] {
			bound := a.Intersect(domain)
			if bound.IsEmpty() {
				n.alwaysAlive[s] = true
				masks = nil
				break
			}
			mask := domain.Positions(bound)
			if !slices.ContainsFunc(masks, func(have []int) bool { return slices.Equal(have, mask) }) {
				masks = append(masks, mask)
			}
		}
		n.aliveMasks[s] = masks
	}
	return n
}

// Domains returns every inserted domain in canonical order.
func (t *ParameterTree) Domains() []ir.ParamSet {
	var out []ir.ParamSet
	var walk func(*MetaNode)
	walk = func(n *MetaNode) {
		out = append(out, n.Domain)
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t.root)
	slices.SortFunc(out, ir.ParamSet.Compare)
	return out
}
