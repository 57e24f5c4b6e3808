// Package trace replays recorded event streams against properties.
//
// A trace is a YAML document:
//
//	events:
//	  - {event: createColl, objects: [m1, c1]}
//	  - {event: updateMap, objects: [m1]}
//	  - drop: [c1]
//	  - collect: true
//
// Labels name host objects. The Replayer allocates an Object per label on
// first use and keeps it reachable until a drop step releases it; a
// collect step then forces a garbage collection and an engine cleanup, so
// traces can exercise reclamation deterministically. A label used again
// after its drop names a fresh object.
package trace
