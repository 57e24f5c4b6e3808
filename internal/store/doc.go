// Package store is the SQLite match log written by prm replay --db.
//
// A run records one replay of a trace. Each property replayed in the run
// adds its matches and a run_stats row holding its engine counters at the
// end of the trace.
//
// # Identity and Ordering
//
// Match ids are content-addressed (ir.MatchID over run id, property, state,
// sequence number and bindings), so recording a run twice is idempotent,
// and run_stats rows are replaced per (run, property). Ordering uses seq,
// the engine's logical clock, never wall time: listings are ORDER BY seq,
// then id with binary collation.
//
// # Queries
//
// QueryMatches compiles a small predicate tree (Equals, BindingEquals, And)
// into parameterized SQL. Bindings are stored as canonical JSON text and
// filtered with json_extract.
//
// The database runs in WAL mode with foreign keys on; the schema version
// lives in user_version and Open applies pending migrations.
package store
