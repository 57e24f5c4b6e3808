// Package ir provides the property representation shared by every prm
// package: parameters, parameter sets, base events, states and the
// automaton they form, plus event occurrences and match records.
//
// This package contains no engine logic. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Parameters, events and states carry dense indices; every table the
//     analyzer derives is indexed by them
//   - ParamSet is a bitmask; its ascending iteration order is the canonical
//     order of compressed binding arrays
//   - An FSM is immutable after Build and may be shared by any number of
//     engines
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
