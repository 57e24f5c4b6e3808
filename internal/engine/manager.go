package engine

import (
	"log/slog"

	"github.com/roach88/prm/internal/binding"
)

// CollectResult reports one cleanup run.
type CollectResult struct {
	// Bindings released because their objects became unreachable.
	Bindings int
	// Orphaned monitors found in subtrees detached by released bindings.
	Orphaned int
	// Monitors among the orphans terminated by the alive check.
	Monitors int
}

// Manager schedules cleanup by event count, on the event goroutine. Binding
// cleanup runs at phase
// interval/2 of its interval and monitor cleanup at phase 0 of its own, so
// the two never coincide when the intervals are equal.
//
// Binding cleanup releases every binding known dead: backlinks remove the
// child entries keyed by it, and the nodes anchored in it are detached.
// Monitor cleanup walks the detached subtrees; each live monitor found
// there is orphaned, and it is terminated (collected) when its alive check
// fails. Monitors that still can match stay attached and keep receiving
// events through the monitor sets that reference them.
//
// Counting is exact: a monitor is orphaned at most once, and a collected
// monitor is also counted terminated. Survivors are rechecked at every
// later monitor cleanup, since their remaining bindings may die later.
type Manager struct {
	bindings *binding.Store[*anchor]
	nodes    *NodeStore
	counters *counters
	logger   *slog.Logger

	bindingInterval int64
	monitorInterval int64

	// orphans are detached nodes whose monitor survived an alive check.
	orphans []*Node
}

func newManager(cfg Config, bindings *binding.Store[*anchor], nodes *NodeStore, c *counters, logger *slog.Logger) *Manager {
	return &Manager{
		bindings:        bindings,
		nodes:           nodes,
		counters:        c,
		logger:          logger,
		bindingInterval: cfg.BindingCleanupInterval,
		monitorInterval: cfg.MonitorCleanupInterval,
	}
}

// tick runs the cleanups due at seq, binding cleanup first. The subtree of
// a released binding is inspected by the first monitor cleanup after it.
func (m *Manager) tick(seq int64) {
	if m.bindingInterval > 0 && seq%m.bindingInterval == m.bindingInterval/2 {
		m.ReleaseBindings()
	}
	if m.monitorInterval > 0 && seq%m.monitorInterval == 0 {
		m.CollectMonitors()
	}
}

// ReleaseBindings releases the bindings whose objects died and returns how
// many it released.
func (m *Manager) ReleaseBindings() int {
	n := m.bindings.Reclaim(func(b *Binding) {
		if a := b.Anchor; a != nil {
			for _, e := range a.nodes {
				m.nodes.detach(e.node)
			}
		}
	})
	m.counters.liveBindings.Store(int64(m.bindings.Size()))
	if n > 0 {
		m.counters.collectedBindings.Add(int64(n))
		m.logger.Debug("bindings released", "count", n, "live", m.bindings.Size())
	}
	return n
}

// CollectMonitors inspects detached subtrees and earlier survivors and
// returns the number of newly orphaned and of collected monitors.
func (m *Manager) CollectMonitors() (orphaned, collected int) {
	survivors := m.orphans[:0]
	check := func(n *Node) {
		if !n.live() {
			return
		}
		if !n.monitor.alive() {
			n.monitor.terminate()
			m.counters.terminatedMonitors.Add(1)
			collected++
			return
		}
		survivors = append(survivors, n)
	}
	for _, n := range m.orphans {
		check(n)
	}
	for _, root := range m.nodes.takeDetached() {
		walk(root, func(n *Node) {
			if n.orphaned || !n.live() {
				return
			}
			n.orphaned = true
			orphaned++
			check(n)
		})
	}
	if len(survivors) < len(m.orphans) {
		clear(m.orphans[len(survivors):])
	}
	m.orphans = survivors

	m.counters.orphanedMonitors.Add(int64(orphaned))
	m.counters.collectedMonitors.Add(int64(collected))
	if orphaned > 0 || collected > 0 {
		m.logger.Debug("monitors collected", "orphaned", orphaned, "collected", collected, "pending", len(m.orphans))
	}
	return orphaned, collected
}

// Collect sweeps the binding store and runs both cleanups immediately.
func (m *Manager) Collect() CollectResult {
	m.bindings.Sweep()
	var r CollectResult
	r.Bindings = m.ReleaseBindings()
	r.Orphaned, r.Monitors = m.CollectMonitors()
	return r
}
