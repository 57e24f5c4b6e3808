// Package harness runs monitoring scenarios as executable tests.
//
// A scenario names one or more CUE property files, an event trace and a
// list of assertions. The harness compiles the property, replays the trace
// through a fresh engine, records the run and its matches in an in-memory
// store, and evaluates the assertions against what was recorded.
//
// # Scenario Format
//
//	name: unsafe_map_iterator_match
//	description: "Updating a map while iterating it is reported"
//	properties:
//	  - ../properties/collections.cue
//	property: UnsafeMapIterator
//	config:
//	  link_strategy: list
//	events:
//	  - {event: createColl, objects: [m1, c1]}
//	  - {event: createIter, objects: [c1, i1]}
//	  - {event: updateMap, objects: [m1]}
//	  - {event: useIter, objects: [i1]}
//	  - {drop: [i1]}
//	  - {collect: true}
//	assertions:
//	  - type: match
//	    state: error
//	    bindings: {m: m1, i: i1}
//	  - type: counter
//	    counter: matches
//	    value: 1
//
// Property paths are relative to the scenario file. Labels in the trace
// stand for host objects; the replayer allocates one object per label and
// drops it on a drop step.
//
// # Assertion Types
//
//   - match: at least one match has the given state, event, seq and bindings
//   - match_order: the patterns select matches in order, not necessarily
//     consecutively
//   - match_count: exactly count matches are selected
//   - counter: an engine counter has the given value after the replay
//   - monitor_state: the monitor for the given bindings is in a state, has
//     terminated, or does not exist
//
// # Golden Files
//
// RunWithGolden and AssertGolden snapshot the recorded matches as
// canonical JSON under testdata/golden. Run tests with -update to
// regenerate them.
package harness
