package engine

import "sync/atomic"

// Stats is a snapshot of an engine's diagnostic counters. Counters never
// decrease between resets and are zeroed by Reset. They carry no
// behavioral contract.
type Stats struct {
	Events             int64 `json:"events" yaml:"events"`
	CreatedNodes       int64 `json:"created_nodes" yaml:"created_nodes"`
	CreatedMonitors    int64 `json:"created_monitors" yaml:"created_monitors"`
	DerivedMonitors    int64 `json:"derived_monitors" yaml:"derived_monitors"`
	UpdatedMonitors    int64 `json:"updated_monitors" yaml:"updated_monitors"`
	TerminatedMonitors int64 `json:"terminated_monitors" yaml:"terminated_monitors"`
	OrphanedMonitors   int64 `json:"orphaned_monitors" yaml:"orphaned_monitors"`
	CollectedMonitors  int64 `json:"collected_monitors" yaml:"collected_monitors"`
	CollectedBindings  int64 `json:"collected_bindings" yaml:"collected_bindings"`
	Matches            int64 `json:"matches" yaml:"matches"`
}

// counters are written by the event goroutine and read by metrics
// collectors.
type counters struct {
	events             atomic.Int64
	createdNodes       atomic.Int64
	createdMonitors    atomic.Int64
	derivedMonitors    atomic.Int64
	updatedMonitors    atomic.Int64
	terminatedMonitors atomic.Int64
	orphanedMonitors   atomic.Int64
	collectedMonitors  atomic.Int64
	collectedBindings  atomic.Int64
	matches            atomic.Int64
	liveBindings       atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Events:             c.events.Load(),
		CreatedNodes:       c.createdNodes.Load(),
		CreatedMonitors:    c.createdMonitors.Load(),
		DerivedMonitors:    c.derivedMonitors.Load(),
		UpdatedMonitors:    c.updatedMonitors.Load(),
		TerminatedMonitors: c.terminatedMonitors.Load(),
		OrphanedMonitors:   c.orphanedMonitors.Load(),
		CollectedMonitors:  c.collectedMonitors.Load(),
		CollectedBindings:  c.collectedBindings.Load(),
		Matches:            c.matches.Load(),
	}
}

func (c *counters) reset() {
	for _, v := range []*atomic.Int64{
		&c.events, &c.createdNodes, &c.createdMonitors, &c.derivedMonitors,
		&c.updatedMonitors, &c.terminatedMonitors, &c.orphanedMonitors,
		&c.collectedMonitors, &c.collectedBindings, &c.matches, &c.liveBindings,
	} {
		v.Store(0)
	}
}

// CounterNames lists the counters in Stats by their snake_case names.
var CounterNames = []string{
	"events",
	"created_nodes",
	"created_monitors",
	"derived_monitors",
	"updated_monitors",
	"terminated_monitors",
	"orphaned_monitors",
	"collected_monitors",
	"collected_bindings",
	"matches",
}

// Counter returns the counter named by its snake_case name.
func (s Stats) Counter(name string) (int64, bool) {
	switch name {
	case "events":
		return s.Events, true
	case "created_nodes":
		return s.CreatedNodes, true
	case "created_monitors":
		return s.CreatedMonitors, true
	case "derived_monitors":
		return s.DerivedMonitors, true
	case "updated_monitors":
		return s.UpdatedMonitors, true
	case "terminated_monitors":
		return s.TerminatedMonitors, true
	case "orphaned_monitors":
		return s.OrphanedMonitors, true
	case "collected_monitors":
		return s.CollectedMonitors, true
	case "collected_bindings":
		return s.CollectedBindings, true
	case "matches":
		return s.Matches, true
	default:
		return 0, false
	}
}
