package model

import "github.com/roach88/prm/internal/ir"

// FindMaxArgs locates the ancestor for a max derivation. Masks are
// positions into the event's compressed binding array.
type FindMaxArgs struct {
	Ancestor     ir.ParamSet
	NodeMask     []int
	DisableMasks [][]int
}

// JoinArgs drives one join of an event against a monitor set.
//
// NodeMask selects the compatible sub-instance from the event bindings.
// Extension has one entry per position of the joined array: the event
// binding position to copy, or -1 for a slot filled from the partner
// monitor. CopyPattern is a flat list of (partner position, joined
// position) pairs. DisableMasks are positions into the joined array.
type JoinArgs struct {
	Joined       ir.ParamSet
	NodeMask     []int
	MonitorSetID int
	Extension    []int
	CopyPattern  []int
	DisableMasks [][]int
}

// EventContext is the per-event runtime table, indexed by base event.
type EventContext struct {
	Joins     [][]JoinArgs
	Maxes     [][]FindMaxArgs
	Creation  []bool
	Disabling []bool

	// ExistingMonitorMasks[e] selects sub-instances whose monitors block
	// creation on e.
	ExistingMonitorMasks [][][]int

	// UpdateSetID[e] is the id of the update set at the event's node, or -1.
	UpdateSetID []int
}

// NewEventContext translates the model's parameter-set plan into binding
// array positions.
func NewEventContext(m *Model) *EventContext {
	events := m.Spec.BaseEvents()
	ctx := &EventContext{
		Joins:                make([][]JoinArgs, len(events)),
		Maxes:                make([][]FindMaxArgs, len(events)),
		Creation:             m.Analysis.Creation,
		Disabling:            m.Analysis.Disabling,
		ExistingMonitorMasks: make([][][]int, len(events)),
		UpdateSetID:          make([]int, len(events)),
	}
	for _, e := range events {
		x := e.Params
		ctx.UpdateSetID[e.Index] = m.UpdateSetID(x)
		for _, op := range m.Maxes[e.Index] {
			ctx.Maxes[e.Index] = append(ctx.Maxes[e.Index], FindMaxArgs{
				Ancestor:     op.Ancestor,
				NodeMask:     x.Positions(op.Ancestor),
				DisableMasks: positionsAll(x, op.Disable),
			})
		}
		for _, op := range m.Joins[e.Index] {
			ctx.Joins[e.Index] = append(ctx.Joins[e.Index], NewJoinArgs(x, op, m.SetID(op.Compatible, op.Enabling)))
		}
		for _, z := range m.Existing[e.Index] {
			ctx.ExistingMonitorMasks[e.Index] = append(ctx.ExistingMonitorMasks[e.Index], x.Positions(z))
		}
	}
	return ctx
}

// NewJoinArgs computes the extension and copy patterns joining an event
// bound to x with a monitor bound to op.Enabling.
func NewJoinArgs(x ir.ParamSet, op JoinOp, setID int) JoinArgs {
	joined := op.Joined
	ja := JoinArgs{
		Joined:       joined,
		NodeMask:     x.Positions(op.Compatible),
		MonitorSetID: setID,
		Extension:    make([]int, 0, joined.Len()),
		DisableMasks: positionsAll(joined, op.Disable),
	}
	for _, p := range joined.Indices() {
		ja.Extension = append(ja.Extension, x.Position(p))
	}
	for _, p := range op.Enabling.Minus(x).Indices() {
		ja.CopyPattern = append(ja.CopyPattern, op.Enabling.Position(p), joined.Position(p))
	}
	return ja
}

// Join builds the joined binding array from the event's bindings and a
// partner's bindings.
func Join[T any](ja *JoinArgs, event, partner []T) []T {
	out := make([]T, len(ja.Extension))
	for i, src := range ja.Extension {
		if src >= 0 {
			out[i] = event[src]
		}
	}
	for k := 0; k < len(ja.CopyPattern); k += 2 {
		out[ja.CopyPattern[k+1]] = partner[ja.CopyPattern[k]]
	}
	return out
}

// Select returns the elements of values at the given positions.
func Select[T any](values []T, mask []int) []T {
	out := make([]T, len(mask))
	for i, pos := range mask {
		out[i] = values[pos]
	}
	return out
}

func positionsAll(super ir.ParamSet, subs []ir.ParamSet) [][]int {
	if len(subs) == 0 {
		return nil
	}
	out := make([][]int, 0, len(subs))
	for _, s := range subs {
		out = append(out, super.Positions(s))
	}
	return out
}
