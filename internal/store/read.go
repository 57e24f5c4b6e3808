package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadRuns returns all runs ordered by id. UUIDv7 run ids sort by creation
// time.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trace, engine_version, ir_version
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Trace, &r.EngineVersion, &r.IRVersion); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, trace, engine_version, ir_version
		FROM runs
		WHERE id = ?
	`, id).Scan(&r.ID, &r.Trace, &r.EngineVersion, &r.IRVersion)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return r, nil
}

// ReadMatches returns the matches of a run, or of every run when runID is
// empty. Results are ordered deterministically: ORDER BY seq ASC, id ASC
// COLLATE BINARY.
//
// Returns an empty slice (not nil) if no matches exist.
func (s *Store) ReadMatches(ctx context.Context, runID string) ([]Match, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if runID == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, run_id, seq, property, state, event, bindings
			FROM matches
			ORDER BY run_id COLLATE BINARY ASC, seq ASC, id COLLATE BINARY ASC
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, run_id, seq, property, state, event, bindings
			FROM matches
			WHERE run_id = ?
			ORDER BY seq ASC, id COLLATE BINARY ASC
		`, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

// ReadRunStats returns the per-property counters of a run ordered by
// property name.
func (s *Store) ReadRunStats(ctx context.Context, runID string) ([]RunStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, property, spec_hash, events, created_nodes, created_monitors,
		       derived_monitors, updated_monitors, terminated_monitors, orphaned_monitors,
		       collected_monitors, collected_bindings, matches
		FROM run_stats
		WHERE run_id = ?
		ORDER BY property COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run stats: %w", err)
	}
	defer rows.Close()

	out := []RunStats{}
	for rows.Next() {
		var rs RunStats
		st := &rs.Stats
		err := rows.Scan(
			&rs.RunID,
			&rs.Property,
			&rs.SpecHash,
			&st.Events,
			&st.CreatedNodes,
			&st.CreatedMonitors,
			&st.DerivedMonitors,
			&st.UpdatedMonitors,
			&st.TerminatedMonitors,
			&st.OrphanedMonitors,
			&st.CollectedMonitors,
			&st.CollectedBindings,
			&st.Matches,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run stats: %w", err)
		}
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run stats: %w", err)
	}
	return out, nil
}

func scanMatch(rows *sql.Rows) (Match, error) {
	var (
		m        Match
		bindings string
	)
	if err := rows.Scan(&m.ID, &m.RunID, &m.Seq, &m.Property, &m.State, &m.Event, &bindings); err != nil {
		return Match{}, fmt.Errorf("scan match: %w", err)
	}
	b, err := unmarshalBindings(bindings)
	if err != nil {
		return Match{}, fmt.Errorf("scan match %s: %w", m.ID, err)
	}
	m.Bindings = b
	return m, nil
}
