package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prm/internal/ir"
	"github.com/roach88/prm/internal/testutil"
)

func TestModelUnsafeMapIterator(t *testing.T) {
	p := MustCompile(testutil.UnsafeMapIterator())
	spec := p.Spec.(*ir.FSM)
	m := p.Model

	const mi, ci, ii = 0, 1, 2
	var (
		sm   = ir.SetOf(mi)
		sc   = ir.SetOf(ci)
		si   = ir.SetOf(ii)
		smc  = ir.SetOf(mi, ci)
		sci  = ir.SetOf(ci, ii)
		smci = ir.SetOf(mi, ci, ii)
	)

	assert.Equal(t, []ir.ParamSet{sm, si, smc, sci}, m.EventDomains)
	assert.Equal(t, []ir.ParamSet{smc, smci}, m.MonitorDomains)

	createIter := spec.Event("createIter")
	require.Len(t, m.Joins[createIter.Index], 1)
	assert.Equal(t, JoinOp{
		Event:      createIter,
		Compatible: sc,
		Enabling:   smc,
		Joined:     smci,
		Disable:    []ir.ParamSet{si, sci},
	}, m.Joins[createIter.Index][0])
	for _, e := range spec.BaseEvents() {
		assert.Empty(t, m.Maxes[e.Index], e.Name)
		assert.Empty(t, m.Existing[e.Index], e.Name)
	}

	assert.Equal(t, map[ir.ParamSet][]ir.ParamSet{
		sm:  {ir.EmptySet},
		si:  {ir.EmptySet},
		smc: {ir.EmptySet},
		sci: {ir.EmptySet},
		sc:  {smc},
	}, m.Sets)

	assert.Equal(t, []Chain{
		{From: smc, Target: sm, SetID: 0},
		{From: smc, Target: sc, SetID: 0},
	}, m.Chains[smc])
	assert.Equal(t, []Chain{
		{From: smci, Target: sm, SetID: 0},
		{From: smci, Target: si, SetID: 0},
		{From: smci, Target: smc, SetID: 0},
		{From: smci, Target: sci, SetID: 0},
	}, m.Chains[smci])
}

func TestEventContextUnsafeMapIterator(t *testing.T) {
	p := MustCompile(testutil.UnsafeMapIterator())
	spec := p.Spec.(*ir.FSM)
	ctx := p.Context

	createColl := spec.Event("createColl")
	createIter := spec.Event("createIter")
	useIter := spec.Event("useIter")

	assert.True(t, ctx.Creation[createColl.Index])
	assert.True(t, ctx.Disabling[useIter.Index])
	assert.Equal(t, 0, ctx.UpdateSetID[useIter.Index])

	require.Len(t, ctx.Joins[createIter.Index], 1)
	ja := ctx.Joins[createIter.Index][0]
	assert.Equal(t, []int{0}, ja.NodeMask, "c is position 0 of (c,i)")
	assert.Equal(t, 0, ja.MonitorSetID)
	assert.Equal(t, []int{-1, 0, 1}, ja.Extension)
	assert.Equal(t, []int{0, 0}, ja.CopyPattern, "m from partner position 0 to joined position 0")
	assert.Equal(t, [][]int{{2}, {1, 2}}, ja.DisableMasks)
}

func TestModelChainMax(t *testing.T) {
	p := MustCompile(testutil.Chain())
	spec := p.Spec.(*ir.FSM)
	e2 := spec.Event("e2")
	p1, p12 := ir.SetOf(0), ir.SetOf(0, 1)

	require.Len(t, p.Model.Maxes[e2.Index], 1)
	assert.Equal(t, p1, p.Model.Maxes[e2.Index][0].Ancestor)
	assert.Equal(t, []ir.ParamSet{p12}, p.Model.Maxes[e2.Index][0].Disable)
	assert.Empty(t, p.Model.Joins[e2.Index])

	assert.Equal(t, []FindMaxArgs{{Ancestor: p1, NodeMask: []int{0}, DisableMasks: [][]int{{0, 1}}}}, p.Context.Maxes[e2.Index])
	assert.Equal(t, -1, p.Context.UpdateSetID[e2.Index])
	assert.Equal(t, 0, p.Context.UpdateSetID[spec.Event("e1").Index])
	assert.Nil(t, p.Model.Chains[p1])
	assert.Equal(t, []Chain{{From: p12, Target: p1, SetID: 0}}, p.Model.Chains[p12])
}

func TestModelPairJoinsThroughRoot(t *testing.T) {
	p := MustCompile(testutil.Pair())
	spec := p.Spec.(*ir.FSM)
	b := spec.Event("b")
	x := ir.SetOf(0)

	require.Len(t, p.Model.Joins[b.Index], 1)
	assert.Equal(t, ir.EmptySet, p.Model.Joins[b.Index][0].Compatible)
	assert.Equal(t, []ir.ParamSet{x}, p.Model.Sets[ir.EmptySet])
	assert.Equal(t, []Chain{{From: x, Target: ir.EmptySet, SetID: 0}}, p.Model.Chains[x])

	ja := p.Context.Joins[b.Index][0]
	assert.Empty(t, ja.NodeMask)
	assert.Equal(t, []int{-1, 0}, ja.Extension)
	assert.Equal(t, []int{0, 0}, ja.CopyPattern)
	assert.Equal(t, [][]int{{1}}, ja.DisableMasks)

	root := p.Tree.Root()
	assert.Equal(t, 1, root.MonitorSetCount)
	require.Len(t, p.Tree.Get(x).Chaining, 1)
	assert.Empty(t, p.Tree.Get(x).Chaining[0].NodeMask)
}

func TestModelDerivesFromEmptyInstance(t *testing.T) {
	p := MustCompile(testutil.Session())
	spec := p.Spec.(*ir.FSM)
	a := spec.Event("a")
	x := ir.SetOf(0)

	require.Len(t, p.Model.Maxes[a.Index], 1)
	assert.Equal(t, ir.EmptySet, p.Model.Maxes[a.Index][0].Ancestor)
	assert.Equal(t, []ir.ParamSet{x}, p.Model.Maxes[a.Index][0].Disable)
	assert.Empty(t, p.Model.Joins[a.Index])
	assert.Empty(t, p.Model.Maxes[spec.Event("start").Index])

	fm := p.Context.Maxes[a.Index][0]
	assert.Empty(t, fm.NodeMask, "the ancestor is the root node")
	assert.Equal(t, [][]int{{0}}, fm.DisableMasks)
}

func TestModelHasNextNoJoins(t *testing.T) {
	p := MustCompile(testutil.HasNext())
	for _, e := range p.Spec.BaseEvents() {
		assert.Empty(t, p.Model.Joins[e.Index])
		assert.Empty(t, p.Model.Maxes[e.Index])
		assert.Equal(t, -1, p.Context.UpdateSetID[e.Index])
	}
	assert.Empty(t, p.Model.Sets)
}

// Planning the same specification twice yields identical tables.
func TestChainingDeterminism(t *testing.T) {
	for _, build := range []func() *ir.FSM{testutil.UnsafeMapIterator, testutil.Chain, testutil.Pair, testutil.HasNext} {
		a := MustCompile(build())
		b := MustCompile(build())
		name := a.Name()
		assert.Equal(t, a.Model.Sets, b.Model.Sets, name)
		assert.Equal(t, a.Model.Chains, b.Model.Chains, name)
		assert.Equal(t, a.Context.Joins, b.Context.Joins, name)
		assert.Equal(t, a.Context.Maxes, b.Context.Maxes, name)
		for _, d := range a.Tree.Domains() {
			assert.Equal(t, a.Tree.Get(d).Chaining, b.Tree.Get(d).Chaining, "%s %v", name, d)
			assert.Equal(t, a.Tree.Get(d).MonitorSetCount, b.Tree.Get(d).MonitorSetCount, "%s %v", name, d)
		}
	}
}

// Applying extension and copy patterns gives the same array as building
// the joined tuple directly from full parameter assignments.
func TestJoinRoundTrip(t *testing.T) {
	for _, build := range []func() *ir.FSM{testutil.UnsafeMapIterator, testutil.Pair} {
		p := MustCompile(build())
		for _, e := range p.Spec.BaseEvents() {
			for n, op := range p.Model.Joins[e.Index] {
				ja := p.Context.Joins[e.Index][n]

				// value(param) = "p<index>"; event and partner agree on the
				// compatible params by construction.
				value := func(i int) string { return fmt.Sprintf("p%d", i) }
				event := make([]string, 0, e.Params.Len())
				for _, i := range e.Params.Indices() {
					event = append(event, value(i))
				}
				partner := make([]string, 0, op.Enabling.Len())
				for _, i := range op.Enabling.Indices() {
					partner = append(partner, value(i))
				}
				want := make([]string, 0, op.Joined.Len())
				for _, i := range op.Joined.Indices() {
					want = append(want, value(i))
				}

				assert.Equal(t, want, Join(&ja, event, partner), "%s/%s", p.Name(), e.Name)
				assert.Equal(t, Select(event, ja.NodeMask), Select(partner, op.Enabling.Positions(op.Compatible)))
			}
		}
	}
}

func TestParameterTreeAliveMasks(t *testing.T) {
	p := MustCompile(testutil.UnsafeMapIterator())
	spec := p.Spec.(*ir.FSM)
	mc := p.Tree.Get(ir.SetOf(0, 1))
	mci := p.Tree.Get(ir.SetOf(0, 1, 2))
	require.NotNil(t, mc)
	require.NotNil(t, mci)

	iterating := spec.State("iterating").Index
	masks, always := mci.AliveMasks(iterating)
	assert.False(t, always)
	assert.Equal(t, [][]int{{0, 2}}, masks, "m and i must stay alive")

	created := spec.State("created").Index
	masks, _ = mc.AliveMasks(created)
	assert.Equal(t, [][]int{{0, 1}}, masks, "i is unbound at (m,c)")

	aliveExcept := func(dead int) func(int) bool {
		return func(pos int) bool { return pos != dead }
	}
	assert.True(t, mci.Alive(iterating, aliveExcept(1)), "c is not needed")
	assert.False(t, mci.Alive(iterating, aliveExcept(2)), "i is needed")

	errorState := spec.State("error").Index
	assert.False(t, mci.Alive(errorState, aliveExcept(-1)), "no accepting state reachable")
}

func TestParameterTreePrefixes(t *testing.T) {
	p := MustCompile(testutil.UnsafeMapIterator())
	// (c) is only a monitor-set owner; (m,c,i) needs prefix (m),(m,c).
	assert.NotNil(t, p.Tree.Get(ir.SetOf(1)))
	assert.NotNil(t, p.Tree.Root().Child(0).Child(1).Child(2))
	assert.Nil(t, p.Tree.Get(ir.SetOf(0, 2)))
	assert.Equal(t, 1, p.Tree.Get(ir.SetOf(1)).MonitorSetCount)
	assert.Len(t, p.Tree.Get(ir.SetOf(0, 1, 2)).Chaining, 4)
}
