package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/prm/internal/store"
	"github.com/roach88/prm/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Matches  []store.Match // All matches for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Matches) > 0 {
		fmt.Fprintf(&buf, "\nAll matches:\n")
		for _, m := range e.Matches {
			fmt.Fprintf(&buf, "  [seq %d] %s on %s %s\n", m.Seq, m.State, m.Event, formatBindings(m.Bindings))
		}
	}

	return buf.String()
}

// AssertionContext provides the engine state assertions inspect besides
// the recorded matches.
type AssertionContext struct {
	Replayer *trace.Replayer
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertMatch:
			err = assertMatch(result.Matches, assertion)
		case AssertMatchOrder:
			err = assertMatchOrder(result.Matches, assertion)
		case AssertMatchCount:
			err = assertMatchCount(result.Matches, assertion)
		case AssertCounter:
			err = assertCounter(result, assertion)
		case AssertMonitorState:
			if actx == nil || actx.Replayer == nil {
				err = fmt.Errorf("assertion[%d]: monitor_state requires an engine", i)
			} else {
				err = assertMonitorState(actx.Replayer, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertMatch checks that some match is selected by the assertion's
// pattern.
func assertMatch(matches []store.Match, a Assertion) error {
	for _, m := range matches {
		if a.MatchPattern.selects(m) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertMatch,
		Expected: a.MatchPattern.String(),
		Actual:   "not found in matches",
		Matches:  matches,
	}
}

// assertMatchOrder checks that the patterns select matches in order.
// Matches don't need to be consecutive.
func assertMatchOrder(matches []store.Match, a Assertion) error {
	next := 0
	for _, m := range matches {
		if next < len(a.Order) && a.Order[next].selects(m) {
			next++
		}
	}
	if next == len(a.Order) {
		return nil
	}
	return &AssertionError{
		Type:     AssertMatchOrder,
		Expected: fmt.Sprintf("%d matches in order", len(a.Order)),
		Actual:   fmt.Sprintf("no match for %s after the first %d", a.Order[next], next),
		Matches:  matches,
	}
}

// assertMatchCount checks that exactly Count matches are selected.
func assertMatchCount(matches []store.Match, a Assertion) error {
	count := 0
	for _, m := range matches {
		if a.MatchPattern.selects(m) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertMatchCount,
			Expected: fmt.Sprintf("%d matches of %s", a.Count, a.MatchPattern),
			Actual:   fmt.Sprintf("%d matches", count),
			Matches:  matches,
		}
	}
	return nil
}

func assertCounter(result *Result, a Assertion) error {
	v, ok := result.Stats.Counter(a.Counter)
	if !ok {
		return fmt.Errorf("unknown counter %q", a.Counter)
	}
	if v != a.Value {
		return &AssertionError{
			Type:     AssertCounter,
			Expected: fmt.Sprintf("%s = %d", a.Counter, a.Value),
			Actual:   fmt.Sprintf("%s = %d", a.Counter, v),
		}
	}
	return nil
}

func assertMonitorState(r *trace.Replayer, a Assertion) error {
	mon, err := r.Lookup(a.Bindings)
	if err != nil {
		return fmt.Errorf("monitor_state %s: %w", formatBindings(a.Bindings), err)
	}

	var actual string
	switch {
	case mon == nil:
		actual = "no monitor"
	case mon.Terminated():
		actual = "terminated"
	default:
		actual = "state " + mon.State().Name
	}

	var expected string
	switch {
	case a.Absent:
		expected = "no monitor"
	case a.Terminated:
		expected = "terminated"
	default:
		expected = "state " + a.State
	}

	if actual != expected {
		return &AssertionError{
			Type:     AssertMonitorState,
			Expected: fmt.Sprintf("monitor of %s in %s", formatBindings(a.Bindings), expected),
			Actual:   actual,
		}
	}
	return nil
}

// selects reports whether m matches every field set in p. Bindings are a
// subset match; extra bindings in m are ignored.
func (p MatchPattern) selects(m store.Match) bool {
	if p.State != "" && p.State != m.State {
		return false
	}
	if p.Event != "" && p.Event != m.Event {
		return false
	}
	if p.Seq != 0 && p.Seq != m.Seq {
		return false
	}
	for k, v := range p.Bindings {
		if m.Bindings[k] != v {
			return false
		}
	}
	return true
}

func (p MatchPattern) String() string {
	var parts []string
	if p.State != "" {
		parts = append(parts, "state "+p.State)
	}
	if p.Event != "" {
		parts = append(parts, "event "+p.Event)
	}
	if p.Seq != 0 {
		parts = append(parts, fmt.Sprintf("seq %d", p.Seq))
	}
	if len(p.Bindings) > 0 {
		parts = append(parts, formatBindings(p.Bindings))
	}
	if len(parts) == 0 {
		return "any match"
	}
	return strings.Join(parts, ", ")
}

// formatBindings renders bindings sorted by parameter name.
func formatBindings(b map[string]string) string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, b[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
