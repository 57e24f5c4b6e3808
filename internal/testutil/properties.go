// Package testutil provides properties and helpers shared by tests across
// packages.
package testutil

import "github.com/roach88/prm/internal/ir"

// UnsafeMapIterator flags an iterator used after the map backing its
// collection was updated.
//
//	start --createColl(m,c)--> created
//	created --updateMap(m)--> created
//	created --createIter(c,i)--> iterating
//	iterating --useIter(i)--> iterating
//	iterating --updateMap(m)--> updated
//	updated --updateMap(m)--> updated
//	updated --useIter(i)--> error (accepting)
func UnsafeMapIterator() *ir.FSM {
	b := ir.NewBuilder("UnsafeMapIterator")
	m := b.Parameter("m")
	c := b.Parameter("c")
	i := b.Parameter("i")

	createColl := b.Event("createColl", m, c)
	updateMap := b.Event("updateMap", m)
	createIter := b.Event("createIter", c, i)
	useIter := b.Event("useIter", i)

	start := b.Initial("start")
	created := b.State("created")
	iterating := b.State("iterating")
	updated := b.State("updated")
	failed := b.Accepting("error")

	b.Transition(start, createColl, created)
	b.Transition(created, updateMap, created)
	b.Transition(created, createIter, iterating)
	b.Transition(iterating, useIter, iterating)
	b.Transition(iterating, updateMap, updated)
	b.Transition(updated, updateMap, updated)
	b.Transition(updated, useIter, failed)
	return b.MustBuild()
}

// Chain is a two-parameter property whose accepting path revisits a
// single-parameter event after the pair was bound.
//
//	s0 --e1(p1)--> s1 --e2(p1,p2)--> s2 --e1(p1)--> s3 (accepting)
func Chain() *ir.FSM {
	b := ir.NewBuilder("Chain")
	p1 := b.Parameter("p1")
	p2 := b.Parameter("p2")
	e1 := b.Event("e1", p1)
	e2 := b.Event("e2", p1, p2)
	s0 := b.Initial("s0")
	s1 := b.State("s1")
	s2 := b.State("s2")
	s3 := b.Accepting("s3")
	b.Transition(s0, e1, s1)
	b.Transition(s1, e2, s2)
	b.Transition(s2, e1, s3)
	return b.MustBuild()
}

// HasNext flags next() called on an iterator without a preceding
// hasNext().
func HasNext() *ir.FSM {
	b := ir.NewBuilder("HasNext")
	i := b.Parameter("i")
	hasNext := b.Event("hasNext", i)
	next := b.Event("next", i)
	safe := b.Initial("safe")
	more := b.State("more")
	violation := b.Accepting("violation")
	b.Transition(safe, hasNext, more)
	b.Transition(safe, next, violation)
	b.Transition(more, hasNext, more)
	b.Transition(more, next, safe)
	return b.MustBuild()
}

// Pair is accepted by a(x) followed by b(y) for unrelated x and y, so b
// joins against every live x instance.
//
//	s0 --a(x)--> s1 --b(y)--> s2 (accepting)
func Pair() *ir.FSM {
	b := ir.NewBuilder("Pair")
	x := b.Parameter("x")
	y := b.Parameter("y")
	a := b.Event("a", x)
	bb := b.Event("b", y)
	s0 := b.Initial("s0")
	s1 := b.State("s1")
	s2 := b.Accepting("s2")
	b.Transition(s0, a, s1)
	b.Transition(s1, bb, s2)
	return b.MustBuild()
}

// Session opens with a parameterless event; every later a(x) extends the
// session's monitor.
//
//	s0 --start()--> s1 --a(x)--> s2 (accepting)
func Session() *ir.FSM {
	b := ir.NewBuilder("Session")
	x := b.Parameter("x")
	start := b.Event("start")
	a := b.Event("a", x)
	s0 := b.Initial("s0")
	s1 := b.State("s1")
	s2 := b.Accepting("s2")
	b.Transition(s0, start, s1)
	b.Transition(s1, a, s2)
	return b.MustBuild()
}
