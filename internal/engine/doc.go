// Package engine runs compiled properties over parametric event streams.
//
// An Engine owns the mutable half of a property: the binding store, the
// node store and the monitors. The compiled model.Property is the
// immutable half and may be shared.
//
// Event processing:
//  1. Validate the event; invalid events are rejected untouched
//  2. Resolve bindings in ascending parameter order and the event's node
//  3. Step the node's own monitor, then every monitor in the node's
//     update set
//  4. If the node had no monitor: derive from the most informative
//     ancestor monitor, else create a fresh monitor on creation events,
//     then join the event with compatible monitors found in monitor sets
//  5. Stamp the node with the event's sequence number and let the
//     Manager run any cleanup due
//
// A monitor is derived or joined only if no disabling sub-instance saw an
// event after the source monitor's slice began; see model for the tables
// driving each step.
//
// Bindings hold their objects weakly. Once an object is unreachable its
// binding is released at the next binding cleanup, detaching the nodes
// keyed by it; the next monitor cleanup terminates the monitors in those
// subtrees that can no longer reach an accepting state.
package engine
