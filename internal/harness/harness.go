package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/prm/internal/compiler"
	"github.com/roach88/prm/internal/engine"
	"github.com/roach88/prm/internal/ir"
	"github.com/roach88/prm/internal/model"
	"github.com/roach88/prm/internal/store"
	"github.com/roach88/prm/internal/trace"
)

// Harness is the test execution engine.
// It replays a scenario against a real engine and records the matches in
// an isolated store.
type Harness struct {
	store    *store.Store
	replayer *trace.Replayer
	runGen   trace.RunIDGenerator
	logger   *slog.Logger
	specHash string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load and compile the scenario's property
// 3. Replay the events through an engine
// 4. Record the run, its matches and counters
// 5. Evaluate assertions and return the result
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context checked between trace steps.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	prop, err := loadProperty(scenario)
	if err != nil {
		return nil, err
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	rep, err := trace.NewReplayer(prop, logger, engine.WithConfig(scenario.Config))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{
		store:    st,
		replayer: rep,
		runGen:   trace.NewFixedGenerator(runID),
		logger:   logger,
		specHash: ir.MustSpecHash(prop.Spec),
	}

	result, err := h.execute(ctx, scenario)
	if err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, &AssertionContext{Replayer: rep}) {
		result.AddError(msg)
	}
	return result, nil
}

// execute replays the events and records the run.
func (h *Harness) execute(ctx context.Context, scenario *Scenario) (*Result, error) {
	runID := h.runGen.Generate()
	if err := h.store.WriteRun(ctx, store.NewRun(runID, scenario.Name)); err != nil {
		return nil, err
	}

	tr := &trace.Trace{Name: scenario.Name, Steps: scenario.Events}
	records, err := h.replayer.Run(ctx, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to replay events: %w", err)
	}

	matches := make([]store.Match, 0, len(records))
	for _, rec := range records {
		matches = append(matches, store.Match{
			RunID:    runID,
			Seq:      rec.Seq,
			Property: rec.Property,
			State:    rec.State,
			Event:    rec.Event,
			Bindings: rec.Bindings,
		})
	}
	if _, err := h.store.WriteMatches(ctx, matches); err != nil {
		return nil, err
	}

	eng := h.replayer.Engine()
	stats := eng.Stats()
	if err := h.store.WriteRunStats(ctx, store.RunStats{
		RunID:    runID,
		Property: eng.Name(),
		SpecHash: h.specHash,
		Stats:    stats,
	}); err != nil {
		return nil, err
	}

	result := NewResult(runID)
	result.Stats = stats
	result.Skipped = h.replayer.Skipped()
	result.Matches, err = h.store.ReadMatches(ctx, runID)
	if err != nil {
		return nil, err
	}

	h.logger.Info("scenario replayed",
		"scenario", scenario.Name,
		"property", eng.Name(),
		"run_id", runID,
		"events", stats.Events,
		"matches", len(result.Matches),
	)
	return result, nil
}

// loadProperty compiles the scenario's property files and selects the
// scenario's property.
func loadProperty(scenario *Scenario) (*model.Property, error) {
	fsms, err := compiler.LoadFiles("", scenario.propertyPaths()...)
	if err != nil {
		return nil, fmt.Errorf("failed to load properties: %w", err)
	}

	var fsm *ir.FSM
	switch {
	case scenario.Property != "":
		for _, f := range fsms {
			if f.Name() == scenario.Property {
				fsm = f
			}
		}
		if fsm == nil {
			return nil, fmt.Errorf("property %q not declared in %v", scenario.Property, scenario.Properties)
		}
	case len(fsms) == 1:
		fsm = fsms[0]
	default:
		return nil, fmt.Errorf("%d properties declared; name one with property:", len(fsms))
	}

	prop, err := model.Compile(fsm)
	if err != nil {
		return nil, fmt.Errorf("failed to compile property %s: %w", fsm.Name(), err)
	}
	return prop, nil
}
