package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/prm/internal/store"
)

// MatchesOptions holds flags for the matches command.
type MatchesOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - one run only
	Property string
	State    string
	Event    string
	Bindings map[string]string // parameter=label
	Limit    int               // per run; 0 means all
}

// RunMatches holds one run and what was recorded for it.
type RunMatches struct {
	Run     store.Run        `json:"run"`
	Stats   []store.RunStats `json:"stats"`
	Matches []store.Match    `json:"matches"`
}

// MatchesResult holds the listed runs.
type MatchesResult struct {
	Runs []RunMatches `json:"runs"`
}

// NewMatchesCommand creates the matches command.
func NewMatchesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "matches",
		Short: "List recorded matches",
		Long: `List the runs and matches recorded by replay --db.

Runs are listed oldest first; matches within a run by sequence number.
Filters combine with AND. --binding may be repeated and selects matches
that bind the parameter to the labelled object.

Exit codes:
  0 - Success
  2 - Command error (database not found, unknown run, etc.)

Examples:
  prm matches --db ./prm.db
  prm matches --db ./prm.db --run 01928a5e-...
  prm matches --db ./prm.db --property UnsafeMapIterator --binding i=i1
  prm matches --db ./prm.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatches(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "list one run only")
	cmd.Flags().StringVar(&opts.Property, "property", "", "only matches of this property")
	cmd.Flags().StringVar(&opts.State, "state", "", "only matches in this state")
	cmd.Flags().StringVar(&opts.Event, "event", "", "only matches raised by this event")
	cmd.Flags().StringToStringVar(&opts.Bindings, "binding", nil, "only matches binding parameter=label (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum matches listed per run")

	return cmd
}

func runMatches(opts *MatchesOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--limit must not be negative, got %d", opts.Limit))
	}

	// Don't let Open create an empty database for a mistyped path.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run %s not found", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ReadRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	result := MatchesResult{Runs: make([]RunMatches, 0, len(runs))}
	for _, run := range runs {
		matches, err := st.QueryMatches(ctx, store.MatchQuery{
			Filter: store.Where(run.ID, opts.Property, opts.State, opts.Event, opts.Bindings),
			Limit:  opts.Limit,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read matches of run %s", run.ID), err)
		}
		stats, err := st.ReadRunStats(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read stats of run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, RunMatches{Run: run, Stats: stats, Matches: matches})
	}

	return newFormatter(cmd, opts.RootOptions).Success(result, func(w io.Writer) {
		writeMatchesText(w, result, opts.Verbose)
	})
}

func writeMatchesText(w io.Writer, result MatchesResult, verbose bool) {
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}

	for i, rm := range result.Runs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Run %s (%s): %d match(es)\n", rm.Run.ID, rm.Run.Trace, len(rm.Matches))
		for _, m := range rm.Matches {
			if verbose {
				fmt.Fprintf(w, "  [seq %d] %s %s on %s %s %s\n", m.Seq, m.Property, m.State, m.Event, formatBindings(m.Bindings), m.ID)
			} else {
				fmt.Fprintf(w, "  [seq %d] %s %s on %s %s\n", m.Seq, m.Property, m.State, m.Event, formatBindings(m.Bindings))
			}
		}
		if verbose {
			for _, s := range rm.Stats {
				fmt.Fprintf(w, "  %s: %d event(s), %d match(es), spec %s\n", s.Property, s.Stats.Events, s.Stats.Matches, s.SpecHash)
			}
		}
	}
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
		parts = append(parts, k+"="+b[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
