package harness

import (
	"github.com/roach88/prm/internal/engine"
	"github.com/roach88/prm/internal/store"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// RunID is the run the matches were recorded under.
	RunID string `json:"run_id"`

	// Matches are the recorded matches ordered by seq, then id.
	Matches []store.Match `json:"matches"`

	// Stats are the engine counters at the end of the trace.
	Stats engine.Stats `json:"stats"`

	// Skipped counts trace events the property does not declare.
	Skipped int `json:"skipped"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(runID string) *Result {
	return &Result{
		Pass:    true,
		RunID:   runID,
		Matches: []store.Match{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
