package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Predicate is a condition on recorded matches.
//
// This is a sealed interface: only types in this package implement it, so
// compilePredicate can switch over every case.
type Predicate interface {
	predicateNode()
}

// Column names a match column a predicate may compare.
type Column string

const (
	ColumnRunID    Column = "run_id"
	ColumnProperty Column = "property"
	ColumnState    Column = "state"
	ColumnEvent    Column = "event"
	ColumnSeq      Column = "seq"
)

// Equals holds when a column equals a value.
type Equals struct {
	Column Column
	Value  any // string, or int64 for seq
}

func (Equals) predicateNode() {}

// BindingEquals holds when a match binds Parameter to the object Label.
// Matches that leave the parameter unbound never satisfy it.
type BindingEquals struct {
	Parameter string
	Label     string
}

func (BindingEquals) predicateNode() {}

// And holds when all of its predicates hold. An empty And always holds.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// MatchQuery selects recorded matches.
type MatchQuery struct {
	Filter Predicate // nil selects every match
	Limit  int       // 0 means no limit
}

// Where builds the conjunction of the non-empty fields. It is the filter
// the CLI builds from its flags.
func Where(runID, property, state, event string, bindings map[string]string) Predicate {
	var preds []Predicate
	add := func(c Column, v string) {
		if v != "" {
			preds = append(preds, Equals{Column: c, Value: v})
		}
	}
	add(ColumnRunID, runID)
	add(ColumnProperty, property)
	add(ColumnState, state)
	add(ColumnEvent, event)

	params := make([]string, 0, len(bindings))
	for p := range bindings {
		params = append(params, p)
	}
	sort.Strings(params)
	for _, p := range params {
		preds = append(preds, BindingEquals{Parameter: p, Label: bindings[p]})
	}
	return And{Predicates: preds}
}

// QueryMatches returns the matches selected by q, ordered by run, then
// seq, then id. Values are always passed as parameters.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryMatches(ctx context.Context, q MatchQuery) ([]Match, error) {
	query, args, err := compileMatchQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func compileMatchQuery(q MatchQuery) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT id, run_id, seq, property, state, event, bindings FROM matches")

	var args []any
	if q.Filter != nil {
		where, whereArgs, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		args = whereArgs
	}

	// Every query is ordered; ids break ties deterministically.
	b.WriteString(" ORDER BY run_id COLLATE BINARY ASC, seq ASC, id COLLATE BINARY ASC")

	if q.Limit < 0 {
		return "", nil, fmt.Errorf("negative limit %d", q.Limit)
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args, nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case BindingEquals:
		return compileBindingEquals(pred)
	case *BindingEquals:
		return compileBindingEquals(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	case nil:
		return "1 = 1", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	switch eq.Column {
	case ColumnRunID, ColumnProperty, ColumnState, ColumnEvent:
		if _, ok := eq.Value.(string); !ok {
			return "", nil, fmt.Errorf("column %s compares to a string, got %T", eq.Column, eq.Value)
		}
	case ColumnSeq:
		switch eq.Value.(type) {
		case int64, int:
		default:
			return "", nil, fmt.Errorf("column %s compares to an integer, got %T", eq.Column, eq.Value)
		}
	default:
		return "", nil, fmt.Errorf("unknown column %q", eq.Column)
	}
	return string(eq.Column) + " = ?", []any{eq.Value}, nil
}

func compileBindingEquals(be BindingEquals) (string, []any, error) {
	if be.Parameter == "" || strings.ContainsAny(be.Parameter, `"\`) {
		return "", nil, fmt.Errorf("invalid parameter name %q", be.Parameter)
	}
	return "json_extract(bindings, ?) = ?", []any{`$."` + be.Parameter + `"`, be.Label}, nil
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var args []any
	for _, p := range and.Predicates {
		sql, a, err := compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, a...)
	}
	return strings.Join(parts, " AND "), args, nil
}
