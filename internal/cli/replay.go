package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/prm/internal/engine"
	"github.com/roach88/prm/internal/ir"
	"github.com/roach88/prm/internal/model"
	"github.com/roach88/prm/internal/store"
	"github.com/roach88/prm/internal/trace"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database   string // optional - record the run
	Property   string // optional - one property only
	MetricsOut string // optional - Prometheus textfile
	ConfigFile string // optional - engine tunables
	RunID      string // optional - defaults to a UUIDv7
}

// PropertyReplayResult holds the replay result for a single property.
type PropertyReplayResult struct {
	Property string       `json:"property"`
	SpecHash string       `json:"spec_hash"`
	Matches  int          `json:"matches"`
	Skipped  int          `json:"skipped"`
	Stats    engine.Stats `json:"stats"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	RunID      string                 `json:"run_id"`
	Trace      string                 `json:"trace"`
	Properties []PropertyReplayResult `json:"properties"`
	Matches    []trace.MatchRecord    `json:"matches"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <properties-dir> <trace.yaml>",
		Short: "Replay a trace against properties",
		Long: `Replay a recorded trace against every property in a directory.

Each property gets its own engine; engines run concurrently and see the
same trace. Events a property does not declare are skipped. Matches are
printed ordered by sequence number and property, and optionally recorded
in a SQLite database.

Engine tunables are read from PRM_* environment variables, then from
--config.

Exit codes:
  0 - Replay finished
  2 - Command error (invalid paths, bad trace, etc.)

Examples:
  prm replay ./properties ./traces/iterators.yaml
  prm replay ./properties trace.yaml --property HasNext --db ./prm.db
  prm replay ./properties trace.yaml --metrics-out ./prm.prom --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&opts.Property, "property", "", "replay one property only")
	cmd.Flags().StringVar(&opts.MetricsOut, "metrics-out", "", "write engine counters to a Prometheus textfile")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "engine config file (YAML)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id (default: generated UUIDv7)")

	return cmd
}

func runReplay(opts *ReplayOptions, dir, tracePath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadEngineConfig(opts.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid engine config", err)
	}

	props, err := loadAndCompile(dir, opts.Property)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load properties", err)
	}

	tr, err := trace.Load(tracePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load trace", err)
	}

	runID := opts.RunID
	if runID == "" {
		runID = trace.UUIDv7Generator{}.Generate()
	}

	result, engines, err := replayAll(ctx, props, tr, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}
	result.RunID = runID
	result.Trace = tracePath

	if opts.MetricsOut != "" {
		if err := writeMetrics(opts.MetricsOut, engines); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if opts.Database != "" {
		if err := recordRun(ctx, opts.Database, result); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
	}

	slog.Info("replay finished",
		"run_id", runID,
		"trace", tracePath,
		"properties", len(result.Properties),
		"matches", len(result.Matches),
	)

	return newFormatter(cmd, opts.RootOptions).Success(result, func(w io.Writer) {
		writeReplayText(w, result, opts.Verbose)
	})
}

// loadEngineConfig layers the environment and an optional file over the
// defaults.
func loadEngineConfig(path string) (engine.Config, error) {
	cfg, err := engine.ConfigFromEnv(engine.DefaultConfig())
	if err != nil {
		return cfg, err
	}
	if path != "" {
		cfg, err = engine.LoadConfigFile(path, cfg)
		if err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// replayAll runs one replayer per property concurrently. The trace is only
// read, so all replayers share it.
func replayAll(ctx context.Context, props []*model.Property, tr *trace.Trace, cfg engine.Config) (ReplayResult, []*engine.Engine, error) {
	results := make([]PropertyReplayResult, len(props))
	records := make([][]trace.MatchRecord, len(props))
	engines := make([]*engine.Engine, len(props))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range props {
		g.Go(func() error {
			rep, err := trace.NewReplayer(p, slog.Default().With("property", p.Name()), engine.WithConfig(cfg))
			if err != nil {
				return fmt.Errorf("property %s: %w", p.Name(), err)
			}
			recs, err := rep.Run(gctx, tr)
			if err != nil {
				return fmt.Errorf("property %s: %w", p.Name(), err)
			}
			eng := rep.Engine()
			engines[i] = eng
			records[i] = recs
			results[i] = PropertyReplayResult{
				Property: p.Name(),
				SpecHash: ir.MustSpecHash(p.Spec),
				Matches:  len(recs),
				Skipped:  rep.Skipped(),
				Stats:    eng.Stats(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ReplayResult{}, nil, err
	}

	result := ReplayResult{Properties: results, Matches: []trace.MatchRecord{}}
	for _, recs := range records {
		result.Matches = append(result.Matches, recs...)
	}
	trace.SortMatches(result.Matches)
	sort.SliceStable(result.Properties, func(i, j int) bool {
		return result.Properties[i].Property < result.Properties[j].Property
	})
	return result, engines, nil
}

// writeMetrics exports the engines' counters in the Prometheus text format.
func writeMetrics(path string, engines []*engine.Engine) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(engine.NewCollector(engines...)); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, reg)
}

// recordRun writes the run, its matches and per-property counters.
func recordRun(ctx context.Context, path string, result ReplayResult) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.WriteRun(ctx, store.NewRun(result.RunID, result.Trace)); err != nil {
		return err
	}

	matches := make([]store.Match, 0, len(result.Matches))
	for _, rec := range result.Matches {
		matches = append(matches, store.Match{
			RunID:    result.RunID,
			Seq:      rec.Seq,
			Property: rec.Property,
			State:    rec.State,
			Event:    rec.Event,
			Bindings: rec.Bindings,
		})
	}
	if _, err := st.WriteMatches(ctx, matches); err != nil {
		return err
	}

	for _, p := range result.Properties {
		if err := st.WriteRunStats(ctx, store.RunStats{
			RunID:    result.RunID,
			Property: p.Property,
			SpecHash: p.SpecHash,
			Stats:    p.Stats,
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeReplayText(w io.Writer, result ReplayResult, verbose bool) {
	fmt.Fprintf(w, "Run %s: %d match(es)\n", result.RunID, len(result.Matches))
	fmt.Fprintln(w)

	for _, m := range result.Matches {
		fmt.Fprintf(w, "[seq %d] %s %s on %s %s\n", m.Seq, m.Property, m.State, m.Event, formatBindings(m.Bindings))
	}
	if len(result.Matches) > 0 {
		fmt.Fprintln(w)
	}

	for _, p := range result.Properties {
		fmt.Fprintf(w, "%s: %d event(s), %d match(es), %d skipped\n", p.Property, p.Stats.Events, p.Matches, p.Skipped)
		if verbose {
			for _, name := range engine.CounterNames {
				v, _ := p.Stats.Counter(name)
				fmt.Fprintf(w, "  %s: %d\n", name, v)
			}
		}
	}
}
