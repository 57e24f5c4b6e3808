package store

import (
	"context"
	"fmt"

	"github.com/roach88/prm/internal/ir"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - rewriting a run is a no-op.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("write run: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, trace, engine_version, ir_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Trace, run.EngineVersion, run.IRVersion)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteMatch inserts a match and returns whether a new row was written.
//
// The id is content-addressed (ir.MatchID) and computed when m.ID is empty,
// so writing the same match twice inserts it once.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteMatch(ctx context.Context, m Match) (inserted bool, err error) {
	if m.ID == "" {
		m.ID, err = ir.MatchID(m.RunID, m.Property, m.State, m.Seq, m.Bindings)
		if err != nil {
			return false, fmt.Errorf("write match: %w", err)
		}
	}
	bindings, err := marshalBindings(m.Bindings)
	if err != nil {
		return false, fmt.Errorf("write match: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (id, run_id, seq, property, state, event, bindings)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, m.ID, m.RunID, m.Seq, m.Property, m.State, m.Event, bindings)
	if err != nil {
		return false, fmt.Errorf("write match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write match: rows affected: %w", err)
	}
	return n > 0, nil
}

// WriteMatches writes ms in one transaction and returns how many were new.
func (s *Store) WriteMatches(ctx context.Context, ms []Match) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write matches: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matches (id, run_id, seq, property, state, event, bindings)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("write matches: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, m := range ms {
		if m.ID == "" {
			m.ID, err = ir.MatchID(m.RunID, m.Property, m.State, m.Seq, m.Bindings)
			if err != nil {
				return 0, fmt.Errorf("write matches: %w", err)
			}
		}
		bindings, err := marshalBindings(m.Bindings)
		if err != nil {
			return 0, fmt.Errorf("write matches: %w", err)
		}
		res, err := stmt.ExecContext(ctx, m.ID, m.RunID, m.Seq, m.Property, m.State, m.Event, bindings)
		if err != nil {
			return 0, fmt.Errorf("write matches: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write matches: commit: %w", err)
	}
	return inserted, nil
}

// WriteRunStats records a property's counters for a run, replacing any
// earlier record for the same (run, property).
func (s *Store) WriteRunStats(ctx context.Context, rs RunStats) error {
	st := rs.Stats
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_stats
		(run_id, property, spec_hash, events, created_nodes, created_monitors,
		 derived_monitors, updated_monitors, terminated_monitors, orphaned_monitors,
		 collected_monitors, collected_bindings, matches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, property) DO UPDATE SET
			spec_hash = excluded.spec_hash,
			events = excluded.events,
			created_nodes = excluded.created_nodes,
			created_monitors = excluded.created_monitors,
			derived_monitors = excluded.derived_monitors,
			updated_monitors = excluded.updated_monitors,
			terminated_monitors = excluded.terminated_monitors,
			orphaned_monitors = excluded.orphaned_monitors,
			collected_monitors = excluded.collected_monitors,
			collected_bindings = excluded.collected_bindings,
			matches = excluded.matches
	`,
		rs.RunID,
		rs.Property,
		rs.SpecHash,
		st.Events,
		st.CreatedNodes,
		st.CreatedMonitors,
		st.DerivedMonitors,
		st.UpdatedMonitors,
		st.TerminatedMonitors,
		st.OrphanedMonitors,
		st.CollectedMonitors,
		st.CollectedBindings,
		st.Matches,
	)
	if err != nil {
		return fmt.Errorf("write run stats: %w", err)
	}
	return nil
}
