// Package analysis derives the static facts the engine needs from a
// property automaton.
//
// Given an ir.Specification, Analyze computes:
//
//   - creation events: the initial state has a successor on them other than
//     itself; only these start a new slice from the initial state
//   - disabling events: the initial state has no successor on them
//   - enable sets: for each event, the parameter sets that may already be
//     bound when it is observed on a path that can still reach acceptance
//   - the update relation: which instance domains grow into which larger
//     domains when an event arrives
//   - alive sets: per state, the minimal parameter sets whose objects must
//     stay reachable for acceptance to remain possible
//
// Enable sets come from a depth-first search over (state, events seen)
// pairs. Its cost is exponential in the alphabet size in the worst case,
// which is acceptable because analysis runs once per property.
package analysis
