package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/prm/internal/binding"
	"github.com/roach88/prm/internal/ir"
	"github.com/roach88/prm/internal/model"
)

// Engine monitors one property over a stream of parametric events.
//
// Each distinct binding tuple the events reveal gets a Node; nodes whose
// slice has started carry a Monitor stepping the property's automaton.
// Derived monitors are found through monitor sets on less informative
// nodes, so an event touches only the monitors compatible with its
// bindings.
//
// Thread-safety model:
//   - ProcessEvent, Reset, Collect: one goroutine at a time, in event order
//   - Stats, BindingCount, Name: safe from any goroutine
//
// The compiled Property is read-only and may be shared by several engines.
//
// Processing is deterministic for a given event stream: sequence numbers
// come from the engine's own clock, monitor sets keep insertion order and
// cleanups run at fixed sequence numbers. Only which bindings a cleanup
// finds dead depends on the garbage collector.
type Engine struct {
	name     string
	prop     *model.Property
	cfg      Config
	logger   *slog.Logger
	onMatch  ir.MatchHandler
	nparams  int
	initial  *ir.State
	counters counters
	clock    *Clock

	bindings *binding.Store[*anchor]
	nodes    *NodeStore
	manager  *Manager

	// eventMeta[e] is the meta node of event e's parameters; joinMeta[e][j]
	// the meta node of its j-th join's joined domain.
	eventMeta []*model.MetaNode
	joinMeta  [][]*model.MetaNode
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithConfig replaces the default tunables.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMatchHandler sets a handler called for every match, after the
// accepting state's own handler.
func WithMatchHandler(h ir.MatchHandler) EngineOption {
	return func(e *Engine) {
		e.onMatch = h
	}
}

// WithName overrides the engine name, which defaults to the property name
// and labels metrics and matches.
func WithName(name string) EngineOption {
	return func(e *Engine) {
		e.name = name
	}
}

// New creates an engine for a compiled property.
func New(prop *model.Property, opts ...EngineOption) (*Engine, error) {
	if prop == nil {
		return nil, fmt.Errorf("engine: nil property")
	}
	spec := prop.Spec
	e := &Engine{
		name:    prop.Name(),
		prop:    prop,
		cfg:     DefaultConfig(),
		logger:  slog.Default(),
		nparams: len(spec.Parameters()),
		initial: spec.InitialState(),
		clock:   NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine %s: %w", e.name, err)
	}

	events := spec.BaseEvents()
	e.eventMeta = make([]*model.MetaNode, len(events))
	e.joinMeta = make([][]*model.MetaNode, len(events))
	for _, ev := range events {
		e.eventMeta[ev.Index] = e.meta(ev.Params)
		for _, ja := range prop.Context.Joins[ev.Index] {
			e.joinMeta[ev.Index] = append(e.joinMeta[ev.Index], e.meta(ja.Joined))
		}
	}
	e.init()

	e.logger.Info("engine starting",
		"property", e.name,
		"parameters", e.nparams,
		"events", len(events),
		"monitor_domains", len(prop.Model.MonitorDomains),
		"alive_check", e.cfg.AliveCheck,
		"link_strategy", e.cfg.LinkStrategy.String(),
	)
	return e, nil
}

func (e *Engine) meta(domain ir.ParamSet) *model.MetaNode {
	m := e.prop.Tree.Get(domain)
	if m == nil {
		invariant("domain %s missing from the parameter tree", domain)
	}
	return m
}

func (e *Engine) init() {
	e.bindings = binding.NewStore[*anchor](binding.WithLinkStrategy(e.cfg.LinkStrategy))
	e.nodes = newNodeStore(e.prop.Tree, &e.counters)
	e.manager = newManager(e.cfg, e.bindings, e.nodes, &e.counters, e.logger)
}

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// Property returns the compiled property.
func (e *Engine) Property() *model.Property { return e.prop }

// Config returns the engine's tunables.
func (e *Engine) Config() Config { return e.cfg }

// Stats returns a snapshot of the diagnostic counters.
func (e *Engine) Stats() Stats { return e.counters.snapshot() }

// BindingCount returns the number of bindings in the binding store as of
// the last event or cleanup.
func (e *Engine) BindingCount() int { return int(e.counters.liveBindings.Load()) }

// Seq returns the stamp of the last processed event.
func (e *Engine) Seq() int64 { return e.clock.Current() }

// NewMonitorPrototype returns an unbound monitor in the initial state.
// Fresh monitors are derived from it.
func (e *Engine) NewMonitorPrototype() *Monitor {
	return &Monitor{state: e.initial, meta: e.prop.Tree.Root()}
}

// Lookup returns the monitor of the parameter instance that binds each
// parameter index in objects to its object, or nil when the instance has
// no monitor. Lookups never create bindings or nodes.
func (e *Engine) Lookup(objects map[int]any) (*Monitor, error) {
	domain := ir.EmptySet
	for p, obj := range objects {
		if p < 0 || p >= e.nparams {
			return nil, fmt.Errorf("engine %s: parameter index %d out of range", e.name, p)
		}
		if err := binding.Validate(obj); err != nil {
			return nil, fmt.Errorf("engine %s: parameter %d: %w", e.name, p, err)
		}
		domain = domain.With(p)
	}
	meta := e.prop.Tree.Get(domain)
	if meta == nil {
		return nil, nil
	}
	bindings := make([]*Binding, 0, len(meta.Params))
	for _, p := range meta.Params {
		b, err := e.bindings.Get(objects[p])
		if err != nil {
			return nil, fmt.Errorf("engine %s: %w", e.name, err)
		}
		if b == nil {
			return nil, nil
		}
		bindings = append(bindings, b)
	}
	return e.nodes.Node(meta.Params, bindings).Monitor(), nil
}

// Reset discards every node, binding and monitor and zeroes the counters
// and the clock.
func (e *Engine) Reset() {
	e.bindings.Reset()
	e.counters.reset()
	e.clock.Reset()
	e.init()
	e.logger.Debug("engine reset", "property", e.name)
}

// Collect runs binding and monitor cleanup now, regardless of schedule.
func (e *Engine) Collect() CollectResult {
	return e.manager.Collect()
}

// ProcessEvent feeds one event to the property. Invalid events are
// rejected with a RuntimeError before any state changes.
func (e *Engine) ProcessEvent(ev ir.Event) error {
	if err := e.validate(&ev); err != nil {
		return err
	}
	base := ev.Base
	order := base.CompressedOrder()
	bindings := make([]*Binding, len(order))
	for pos, decl := range order {
		b, err := e.bindings.GetOrCreate(ev.Objects[decl])
		if err != nil {
			invariant("validated object rejected: %v", err)
		}
		bindings[pos] = b
	}

	seq := e.clock.Next()
	e.counters.events.Add(1)
	meta := e.eventMeta[base.Index]
	node := e.nodes.GetOrCreateNode(meta.Params, bindings)
	ctx := e.prop.Context

	hadMonitor := node.monitor != nil
	if node.live() {
		e.step(node.monitor, &ev, seq)
	}
	if id := ctx.UpdateSetID[base.Index]; id >= 0 {
		if set := node.MonitorSet(id); set != nil {
			set.each(func(n *Node) {
				e.step(n.monitor, &ev, seq)
			})
		}
	}
	if !hadMonitor {
		if !e.deriveMax(node, &ev, bindings, seq) && ctx.Creation[base.Index] {
			e.create(node, &ev, bindings, seq)
		}
		e.join(&ev, bindings, seq)
	}
	node.lastEvent = seq

	e.counters.liveBindings.Store(int64(e.bindings.Size()))
	e.manager.tick(seq)
	return nil
}

func (e *Engine) validate(ev *ir.Event) error {
	base := ev.Base
	events := e.prop.Spec.BaseEvents()
	if base == nil {
		return e.invalidEvent("", nil, "event has no base event")
	}
	if base.Index < 0 || base.Index >= len(events) || events[base.Index] != base {
		return e.invalidEvent(base.Name, nil, "base event does not belong to the property")
	}
	if len(ev.Objects) != base.Arity() {
		return e.invalidEvent(base.Name, nil, "got %d objects for %d parameters", len(ev.Objects), base.Arity())
	}
	for i, obj := range ev.Objects {
		if err := binding.Validate(obj); err != nil {
			return e.invalidEvent(base.Name, err, "object %d (%s)", i, base.Declared()[i].Name)
		}
	}
	return nil
}

// deriveMax copies the monitor of the most informative ancestor that has
// one. It reports whether an ancestor monitor was found, in which case no
// fresh monitor may be created.
func (e *Engine) deriveMax(node *Node, ev *ir.Event, bindings []*Binding, seq int64) bool {
	params := node.meta.Params
	for i := range e.prop.Context.Maxes[ev.Base.Index] {
		fm := &e.prop.Context.Maxes[ev.Base.Index][i]
		src := e.nodes.NodeMasked(params, bindings, fm.NodeMask).monitor
		if src == nil {
			continue
		}
		if src.Terminated() {
			return true
		}
		for _, mask := range fm.DisableMasks {
			if e.nodes.NodeMasked(params, bindings, mask).lastEvent > src.created {
				return true
			}
		}
		e.counters.derivedMonitors.Add(1)
		e.attach(node, src.derive(node.meta, append([]*Binding(nil), bindings...)), ev, seq)
		return true
	}
	return false
}

// create starts a fresh monitor unless a less informative tuple already
// carries one, whose slice then covers this event.
func (e *Engine) create(node *Node, ev *ir.Event, bindings []*Binding, seq int64) {
	params := node.meta.Params
	for _, mask := range e.prop.Context.ExistingMonitorMasks[ev.Base.Index] {
		if e.nodes.NodeMasked(params, bindings, mask).monitor != nil {
			return
		}
	}
	mon := e.NewMonitorPrototype().derive(node.meta, append([]*Binding(nil), bindings...))
	mon.created = seq
	e.counters.createdMonitors.Add(1)
	e.attach(node, mon, ev, seq)
}

// join extends every compatible monitor that is less informative than the
// union of its domain and the event's.
func (e *Engine) join(ev *ir.Event, bindings []*Binding, seq int64) {
	idx := ev.Base.Index
	params := e.eventMeta[idx].Params
	for j := range e.prop.Context.Joins[idx] {
		ja := &e.prop.Context.Joins[idx][j]
		set := e.nodes.NodeMasked(params, bindings, ja.NodeMask).MonitorSet(ja.MonitorSetID)
		if set == nil {
			continue
		}
		jmeta := e.joinMeta[idx][j]
		set.each(func(n *Node) {
			src := n.monitor
			if src.released() {
				return
			}
			joined := model.Join(ja, bindings, src.bindings)
			for _, mask := range ja.DisableMasks {
				if e.nodes.NodeMasked(jmeta.Params, joined, mask).lastEvent > src.created {
					return
				}
			}
			target := e.nodes.GetOrCreateNode(jmeta.Params, joined)
			if target.monitor != nil {
				return
			}
			e.counters.derivedMonitors.Add(1)
			e.attach(target, src.derive(jmeta, joined), ev, seq)
		})
	}
}

// attach stores a new monitor on its node, steps it with the creating
// event and, if it survives, chains it into the less informative nodes'
// monitor sets. Terminated monitors stay attached as markers.
func (e *Engine) attach(node *Node, mon *Monitor, ev *ir.Event, seq int64) {
	node.monitor = mon
	if e.step(mon, ev, seq) {
		e.chain(node)
	}
}

func (e *Engine) chain(n *Node) {
	mon := n.monitor
	for i := range n.meta.Chaining {
		ca := &n.meta.Chaining[i]
		target := e.nodes.GetOrCreateMasked(n.meta.Params, mon.bindings, ca.NodeMask)
		target.ensureSet(ca.MonitorSetID).add(n)
	}
}

// step advances mon on ev and reports whether it is still alive.
func (e *Engine) step(mon *Monitor, ev *ir.Event, seq int64) bool {
	if mon.Terminated() {
		invariant("transition on a terminated monitor")
	}
	base := ev.Base
	if ev.Guard != nil {
		base = ev.Guard(mon.state, ev.Aux)
		if base == nil {
			return true
		}
		if base.Params != ev.Base.Params {
			invariant("guard selected %s binding %s for an occurrence of %s binding %s",
				base, base.Params, ev.Base, ev.Base.Params)
		}
	}
	e.counters.updatedMonitors.Add(1)

	next := mon.state.Successor(base)
	if next == nil {
		e.terminate(mon)
		return false
	}
	mon.state = next
	if next.Accepting {
		e.match(mon, ev, seq)
	}
	if next.Final() {
		e.terminate(mon)
		return false
	}
	if e.cfg.AliveCheck && !mon.alive() {
		e.terminate(mon)
		return false
	}
	return true
}

func (e *Engine) terminate(mon *Monitor) {
	mon.terminate()
	e.counters.terminatedMonitors.Add(1)
}

func (e *Engine) match(mon *Monitor, ev *ir.Event, seq int64) {
	e.counters.matches.Add(1)
	m := ir.Match{
		Property: e.name,
		State:    mon.state,
		Event:    ev,
		Seq:      seq,
		Params:   mon.meta.Domain,
		Objects:  make([]any, e.nparams),
	}
	for pos, p := range mon.meta.Params {
		m.Objects[p] = mon.bindings[pos].Object()
	}
	e.logger.Debug("match",
		"property", e.name,
		"state", mon.state.Name,
		"event", ev.Base.Name,
		"seq", seq,
		"params", mon.meta.Domain.Format(e.prop.Spec.Parameters()),
	)
	if h := mon.state.Handler; h != nil {
		h(m)
	}
	if e.onMatch != nil {
		e.onMatch(m)
	}
}
