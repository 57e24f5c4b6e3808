// Package compiler turns CUE property declarations into automata.
//
// A property is declared under the top-level "property" struct:
//
//	property: HasNext: {
//		parameters: ["i"]
//		events: {
//			hasNext: ["i"]
//			next:    ["i"]
//		}
//		initial: "safe"
//		states: {
//			safe: on: {hasNext: "more", next: "violation"}
//			more: on: {hasNext: "more", next: "safe"}
//			violation: accepting: true
//		}
//	}
//
// Compilation runs in three steps: ParseProperty checks the shape and
// reads names in declaration order (NFC-normalized), Validate reports all
// content problems at once (codes E101-E110), and BuildFSM produces the
// ir.FSM. CompileProperty runs all three.
package compiler
