// Package binding maps host objects to engine bindings by identity while
// holding the objects weakly.
//
// A Binding is keyed by its object's address and pointer type and refers to the object
// through a weak.Pointer, so monitoring never extends an object's
// lifetime. Two signals report dead objects:
//
//   - lookups and sweeps find bindings whose weak pointer went nil
//   - runtime.AddCleanup callbacks enqueue the binding on a mutex-guarded
//     reclaim queue from the runtime's cleanup goroutine
//
// Store.Reclaim consumes both and releases each dead binding: every
// Backlink registered on it is unlinked, the caller's callback runs, and
// the Anchor payload is cleared.
//
// Bound objects must be non-nil pointers to heap values of non-zero size.
// Tiny pointer-free allocations may be batched by the allocator and never
// observed dead; objects of 16 bytes or more that contain a pointer are
// always tracked precisely.
package binding
