package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/prm/internal/ir"
	"github.com/roach88/prm/internal/model"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Property string // optional - one property only
}

// PropertyReport is the static analysis of one property, with parameter
// sets rendered by name.
type PropertyReport struct {
	Property        string              `json:"property"`
	SpecHash        string              `json:"spec_hash"`
	Parameters      []string            `json:"parameters"`
	CreationEvents  []string            `json:"creation_events"`
	DisablingEvents []string            `json:"disabling_events"`
	EnableSets      map[string][]string `json:"enable_sets"`
	AliveSets       map[string][]string `json:"alive_sets"`
	MonitorDomains  []string            `json:"monitor_domains"`
	Maxes           map[string][]string `json:"maxes"`
	Joins           map[string][]string `json:"joins"`

	events []string
	states []string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <properties-dir>",
		Short: "Print the static analysis of properties",
		Long: `Print what the engine derives from each property before any event
is seen: creation and disabling events, enable sets, alive sets, the
parameter sets monitors can be bound to, and the max and join plan per event.

Examples:
  prm analyze ./properties
  prm analyze ./properties --property HasNext --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Property, "property", "", "analyze one property only")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	props, err := loadAndCompile(dir, opts.Property)
	if err != nil {
		code := ErrCodeGeneric
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load properties", err)
	}

	reports := make([]PropertyReport, 0, len(props))
	for _, p := range props {
		reports = append(reports, NewPropertyReport(p))
	}

	return formatter.Success(reports, func(w io.Writer) {
		for i, r := range reports {
			if i > 0 {
				fmt.Fprintln(w)
			}
			r.WriteText(w)
		}
	})
}

// loadAndCompile loads the properties in dir, optionally selects one by
// name, and runs the static analysis for each.
func loadAndCompile(dir, name string) ([]*model.Property, error) {
	result, errs := LoadProperties(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	fsms, err := result.Select(name)
	if err != nil {
		return nil, err
	}
	return Compile(fsms)
}

// NewPropertyReport renders the analysis and model of p.
func NewPropertyReport(p *model.Property) PropertyReport {
	spec := p.Spec
	params := spec.Parameters()
	format := func(s ir.ParamSet) string { return s.Format(params) }
	formatAll := func(sets []ir.ParamSet) []string {
		out := make([]string, len(sets))
		for i, s := range sets {
			out[i] = format(s)
		}
		return out
	}

	r := PropertyReport{
		Property:        spec.Name(),
		SpecHash:        ir.MustSpecHash(spec),
		CreationEvents:  eventNames(p.Analysis.CreationEvents()),
		DisablingEvents: eventNames(p.Analysis.DisablingEvents()),
		EnableSets:      make(map[string][]string),
		AliveSets:       make(map[string][]string),
		MonitorDomains:  formatAll(p.Model.MonitorDomains),
		Maxes:           make(map[string][]string),
		Joins:           make(map[string][]string),
	}
	for _, param := range params {
		r.Parameters = append(r.Parameters, param.Name)
	}
	for _, e := range spec.BaseEvents() {
		r.events = append(r.events, e.Name)
		r.EnableSets[e.Name] = formatAll(p.Analysis.EnableSets[e.Index])
		for _, m := range p.Model.Maxes[e.Index] {
			r.Maxes[e.Name] = append(r.Maxes[e.Name],
				fmt.Sprintf("%s -> %s", format(m.Ancestor), format(e.Params)))
		}
		for _, j := range p.Model.Joins[e.Index] {
			r.Joins[e.Name] = append(r.Joins[e.Name],
				fmt.Sprintf("%s on %s -> %s", format(j.Enabling), format(j.Compatible), format(j.Joined)))
		}
	}
	for _, s := range spec.States() {
		r.states = append(r.states, s.Name)
		r.AliveSets[s.Name] = formatAll(p.Analysis.AliveSets[s.Index])
	}
	return r
}

// WriteText prints the report as indented text.
func (r PropertyReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Property %s (%s)\n", r.Property, strings.Join(r.Parameters, ", "))
	fmt.Fprintf(w, "  creation events: %s\n", joinOrNone(r.CreationEvents))
	fmt.Fprintf(w, "  disabling events: %s\n", joinOrNone(r.DisablingEvents))
	fmt.Fprintf(w, "  monitor domains: %s\n", joinOrNone(r.MonitorDomains))

	fmt.Fprintln(w, "  enable sets:")
	for _, e := range r.events {
		fmt.Fprintf(w, "    %s: %s\n", e, joinOrNone(r.EnableSets[e]))
	}
	fmt.Fprintln(w, "  alive sets:")
	for _, s := range r.states {
		fmt.Fprintf(w, "    %s: %s\n", s, joinOrNone(r.AliveSets[s]))
	}
	fmt.Fprintln(w, "  plan:")
	for _, e := range r.events {
		for _, m := range r.Maxes[e] {
			fmt.Fprintf(w, "    %s: max %s\n", e, m)
		}
		for _, j := range r.Joins[e] {
			fmt.Fprintf(w, "    %s: join %s\n", e, j)
		}
	}
}

func eventNames(events []*ir.BaseEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Name
	}
	return out
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, " ")
}
