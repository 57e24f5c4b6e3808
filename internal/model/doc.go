// Package model turns an analysis result into the tables the engine
// consults on every event.
//
// # Planning
//
// For each event e bound to X and each enabling set Y of e, largest first:
//
//   - Y = ∅: e may create a monitor from the initial state
//   - Y ⊊ X: max derivation, the new instance copies the monitor of its
//     ancestor over Y found through e's own bindings
//   - X ⊆ Y: nothing to plan, update propagation reaches those monitors
//   - otherwise: join against monitors bound to Y that agree with e on
//     X ∩ Y, producing monitors bound to X ∪ Y
//
// Joins are served by monitor sets kept at nodes of domain X ∩ Y; the
// update set (id 0) at nodes of an event domain X holds every monitor
// bound to a strict superset of X. A new monitor is chained into every
// set it belongs to.
//
// # Runtime tables
//
// EventContext translates the plan into positions of compressed binding
// arrays so the engine never manipulates parameter sets per event.
// ParameterTree gives each node domain a MetaNode with its monitor-set
// count, chaining list and alive masks.
//
// Everything in this package is immutable once built. Property bundles the
// specification, analysis, model, context and tree for sharing.
package model
