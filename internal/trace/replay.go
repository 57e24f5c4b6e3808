package trace

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"github.com/roach88/prm/internal/engine"
	"github.com/roach88/prm/internal/ir"
	"github.com/roach88/prm/internal/model"
)

// CollectedLabel stands in for a bound object reclaimed before its match
// was reported.
const CollectedLabel = "<collected>"

// Object is the host object allocated for a trace label. It holds a
// pointer so the runtime tracks its reachability precisely.
type Object struct {
	Label string
	self  *Object
}

func newObject(label string) *Object {
	o := &Object{Label: label}
	o.self = o
	return o
}

func (o *Object) String() string { return o.Label }

// MatchRecord is a match reported during replay, with objects named by
// their trace labels.
type MatchRecord struct {
	Seq      int64             `json:"seq" yaml:"seq"`
	Property string            `json:"property" yaml:"property"`
	State    string            `json:"state" yaml:"state"`
	Event    string            `json:"event" yaml:"event"`
	Bindings map[string]string `json:"bindings" yaml:"bindings"`
}

// ID returns the content-addressed id of the match within a run.
func (m MatchRecord) ID(runID string) (string, error) {
	return ir.MatchID(runID, m.Property, m.State, m.Seq, m.Bindings)
}

// Replayer feeds a trace to one engine. Events the property does not
// declare are skipped, so one trace can drive several properties.
type Replayer struct {
	eng     *engine.Engine
	spec    ir.Specification
	objects map[string]*Object
	matches []MatchRecord
	logger  *slog.Logger
	skipped int
}

// NewReplayer creates the engine for prop. Options are passed to
// engine.New; the replayer installs its own match handler.
func NewReplayer(prop *model.Property, logger *slog.Logger, opts ...engine.EngineOption) (*Replayer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Replayer{
		spec:    prop.Spec,
		objects: make(map[string]*Object),
		logger:  logger,
	}
	opts = append(append([]engine.EngineOption{engine.WithLogger(logger)}, opts...), engine.WithMatchHandler(r.record))
	eng, err := engine.New(prop, opts...)
	if err != nil {
		return nil, err
	}
	r.eng = eng
	return r, nil
}

// Engine returns the replayer's engine.
func (r *Replayer) Engine() *engine.Engine { return r.eng }

// Skipped returns the number of events skipped as foreign to the property.
func (r *Replayer) Skipped() int { return r.skipped }

func (r *Replayer) record(m ir.Match) {
	rec := MatchRecord{
		Seq:      m.Seq,
		Property: m.Property,
		State:    m.State.Name,
		Event:    m.Event.Base.Name,
		Bindings: make(map[string]string),
	}
	for _, p := range r.spec.Parameters() {
		if !m.Params.Has(p.Index) {
			continue
		}
		if o, ok := m.Objects[p.Index].(*Object); ok {
			rec.Bindings[p.Name] = o.Label
		} else {
			rec.Bindings[p.Name] = CollectedLabel
		}
	}
	r.matches = append(r.matches, rec)
}

// Run replays tr and returns the matches reported so far, in order.
// Cancellation is checked between steps.
func (r *Replayer) Run(ctx context.Context, tr *Trace) ([]MatchRecord, error) {
	events := make(map[string]*ir.BaseEvent)
	for _, e := range r.spec.BaseEvents() {
		events[e.Name] = e
	}

	for i, step := range tr.Steps {
		if err := ctx.Err(); err != nil {
			return r.matches, err
		}
		switch step.Kind() {
		case "event":
			base, ok := events[step.Event]
			if !ok {
				r.skipped++
				continue
			}
			objs := make([]any, len(step.Objects))
			for k, label := range step.Objects {
				objs[k] = r.object(label)
			}
			ev := base.New(objs...)
			ev.Aux = step.Aux
			if err := r.eng.ProcessEvent(ev); err != nil {
				return r.matches, fmt.Errorf("step %d (%s): %w", i, step.Event, err)
			}
		case "drop":
			for _, label := range step.Drop {
				delete(r.objects, label)
			}
		case "collect":
			runtime.GC()
			res := r.eng.Collect()
			r.logger.Debug("trace collect",
				"property", r.eng.Name(),
				"step", i,
				"bindings", res.Bindings,
				"orphaned", res.Orphaned,
				"monitors", res.Monitors,
			)
		default:
			return r.matches, fmt.Errorf("step %d: empty step", i)
		}
	}
	return r.matches, nil
}

func (r *Replayer) object(label string) *Object {
	o, ok := r.objects[label]
	if !ok {
		o = newObject(label)
		r.objects[label] = o
	}
	return o
}

// Lookup returns the monitor of the instance binding each named parameter
// to the labelled object, or nil when the instance has no monitor or a
// label is no longer held.
func (r *Replayer) Lookup(bindings map[string]string) (*engine.Monitor, error) {
	objs := make(map[int]any, len(bindings))
	for name, label := range bindings {
		p := r.parameter(name)
		if p == nil {
			return nil, fmt.Errorf("property %s has no parameter %q", r.eng.Name(), name)
		}
		o, ok := r.objects[label]
		if !ok {
			return nil, nil
		}
		objs[p.Index] = o
	}
	return r.eng.Lookup(objs)
}

func (r *Replayer) parameter(name string) *ir.Parameter {
	for _, p := range r.spec.Parameters() {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Labels returns the labels whose objects the replayer still holds.
func (r *Replayer) Labels() []string {
	out := make([]string, 0, len(r.objects))
	for l := range r.objects {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// SortMatches orders matches from several properties by sequence number,
// then property and state. Sequence numbers are per property, so equal
// values across properties are common.
func SortMatches(ms []MatchRecord) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if a.Property != b.Property {
			return a.Property < b.Property
		}
		return a.State < b.State
	})
}
