package engine

import (
	"github.com/roach88/prm/internal/binding"
	"github.com/roach88/prm/internal/model"
)

// Binding is the engine's handle for a bound object.
type Binding = binding.Binding[*anchor]

// anchor holds the first-level nodes keyed by a binding alone, one per
// parameter the binding was bound to. The root has no child map: these
// nodes are reachable only through the binding, so releasing it drops
// them without a backlink.
type anchor struct {
	nodes []anchorEntry
}

type anchorEntry struct {
	param int
	node  *Node
}

func (a *anchor) get(param int) *Node {
	for _, e := range a.nodes {
		if e.param == param {
			return e.node
		}
	}
	return nil
}

type childKey struct {
	param   int
	binding *Binding
}

// Node is the runtime slot for one binding tuple. It holds at most one
// monitor and the monitor sets through which more informative monitors
// are found.
//
// Once a node has a monitor it keeps it: a terminated monitor stays as a
// marker so the tuple is never derived, created or joined again. lastEvent
// is the sequence number of the last event on exactly this tuple, 0 if
// none; disable masks compare it with a source monitor's creation stamp.
type Node struct {
	meta      *model.MetaNode
	monitor   *Monitor
	sets      []*MonitorSet
	lastEvent int64

	// children is keyed by (parameter, binding). The one-entry cache serves
	// runs of events on the same tuple.
	children  map[childKey]*Node
	cacheKey  childKey
	cacheNode *Node

	// orphaned is set once the node was found in a detached subtree, so it
	// is counted a single time.
	orphaned bool
}

// Monitor returns the node's monitor, or nil.
func (n *Node) Monitor() *Monitor { return n.monitor }

// LastEvent returns the stamp of the last event on exactly this tuple.
func (n *Node) LastEvent() int64 { return n.lastEvent }

// MonitorSet returns the monitor set id, or nil when it was never used.
func (n *Node) MonitorSet(id int) *MonitorSet {
	if id < 0 || id >= len(n.sets) {
		return nil
	}
	return n.sets[id]
}

// live reports whether the node carries a monitor that has not terminated.
func (n *Node) live() bool {
	return n.monitor != nil && !n.monitor.Terminated()
}

func (n *Node) ensureSet(id int) *MonitorSet {
	if n.sets == nil {
		n.sets = make([]*MonitorSet, n.meta.MonitorSetCount)
	}
	if id >= len(n.sets) {
		invariant("monitor set %d on node %s with %d sets", id, n.meta.Domain, len(n.sets))
	}
	if n.sets[id] == nil {
		n.sets[id] = &MonitorSet{}
	}
	return n.sets[id]
}

// childLink removes a child entry keyed by a released binding.
type childLink struct {
	store  *NodeStore
	parent *Node
	key    childKey
}

func (l *childLink) Unlink() {
	child := l.parent.children[l.key]
	if child == nil {
		return
	}
	delete(l.parent.children, l.key)
	if l.parent.cacheNode != nil && l.parent.cacheKey == l.key {
		l.parent.cacheNode = nil
		l.parent.cacheKey = childKey{}
	}
	l.store.detach(child)
}

// NodeStore resolves binding tuples to nodes.
//
// The first binding of a tuple owns, through its anchor, the node of the
// one-parameter tuple; deeper nodes live in their parent's child map keyed
// by (parameter, binding). Bindings are always given in ascending
// parameter order. Non-creating lookups return the null node, which has no
// monitor, no sets and a last-event stamp of -1.
//
// Nodes below the root are reachable only from live bindings. When a binding is released
// its backlinks remove the child entries keyed by it and the orphaned
// subtrees are queued on detached for the Manager. Monitor sets may still
// point into a detached subtree; those monitors keep stepping until they
// terminate.
//
// NodeStore is owned by its engine and is not safe for concurrent use.
type NodeStore struct {
	tree     *model.ParameterTree
	root     *Node
	null     *Node
	counters *counters
	detached []*Node
}

func newNodeStore(tree *model.ParameterTree, c *counters) *NodeStore {
	return &NodeStore{
		tree:     tree,
		root:     &Node{meta: tree.Root()},
		null:     &Node{lastEvent: -1},
		counters: c,
	}
}

// Root returns the node of the empty tuple.
func (s *NodeStore) Root() *Node { return s.root }

// Null returns the null-node sentinel.
func (s *NodeStore) Null() *Node { return s.null }

// Node returns the node for bindings bound to params, or the null node.
func (s *NodeStore) Node(params []int, bindings []*Binding) *Node {
	return s.resolve(params, bindings, false)
}

// GetOrCreateNode returns the node for bindings bound to params, creating
// the path as needed.
func (s *NodeStore) GetOrCreateNode(params []int, bindings []*Binding) *Node {
	return s.resolve(params, bindings, true)
}

// NodeMasked returns the node for the sub-tuple selected by mask, or the
// null node.
func (s *NodeStore) NodeMasked(params []int, bindings []*Binding, mask []int) *Node {
	return s.resolveMasked(params, bindings, mask, false)
}

// GetOrCreateMasked returns the node for the sub-tuple selected by mask,
// creating the path as needed.
func (s *NodeStore) GetOrCreateMasked(params []int, bindings []*Binding, mask []int) *Node {
	return s.resolveMasked(params, bindings, mask, true)
}

func (s *NodeStore) resolve(params []int, bindings []*Binding, create bool) *Node {
	if len(params) != len(bindings) {
		invariant("%d bindings for %d parameters", len(bindings), len(params))
	}
	n := s.root
	for pos, b := range bindings {
		if n = s.child(n, params[pos], b, create); n == nil {
			return s.null
		}
	}
	return n
}

func (s *NodeStore) resolveMasked(params []int, bindings []*Binding, mask []int, create bool) *Node {
	n := s.root
	for _, pos := range mask {
		if n = s.child(n, params[pos], bindings[pos], create); n == nil {
			return s.null
		}
	}
	return n
}

func (s *NodeStore) child(n *Node, param int, b *Binding, create bool) *Node {
	if b.Released() {
		if create {
			invariant("node keyed by released %s", b)
		}
		return nil
	}
	if n == s.root {
		a := b.Anchor
		if a != nil {
			if c := a.get(param); c != nil {
				return c
			}
		}
		if !create {
			return nil
		}
		if a == nil {
			a = &anchor{}
			b.Anchor = a
		}
		c := s.newNode(n.meta.Child(param))
		a.nodes = append(a.nodes, anchorEntry{param: param, node: c})
		return c
	}

	key := childKey{param: param, binding: b}
	if n.cacheNode != nil && n.cacheKey == key {
		return n.cacheNode
	}
	c := n.children[key]
	if c == nil {
		if !create {
			return nil
		}
		c = s.newNode(n.meta.Child(param))
		if n.children == nil {
			n.children = make(map[childKey]*Node)
		}
		n.children[key] = c
		b.AddBacklink(&childLink{store: s, parent: n, key: key})
	}
	n.cacheKey, n.cacheNode = key, c
	return c
}

func (s *NodeStore) newNode(meta *model.MetaNode) *Node {
	if meta == nil {
		invariant("node outside the parameter tree")
	}
	s.counters.createdNodes.Add(1)
	return &Node{meta: meta}
}

func (s *NodeStore) detach(n *Node) {
	s.detached = append(s.detached, n)
}

// takeDetached returns and forgets the subtrees detached since the last
// call.
func (s *NodeStore) takeDetached() []*Node {
	d := s.detached
	s.detached = nil
	return d
}

// walk visits n and its descendants, parents first.
func walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		walk(c, fn)
	}
}
