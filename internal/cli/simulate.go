package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/roach88/dtc/internal/pipeline"
	"github.com/roach88/dtc/internal/simulator"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	queryFlags

	Scenarios   []string
	Distributed bool
	Check       bool
}

// ScenarioResult is the outcome of one scenario in JSON output.
type ScenarioResult struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Mode     string   `json:"mode"`
	Traces   int      `json:"traces"`
	Checked  bool     `json:"checked"`
	Columns  []string `json:"columns"`
	Rows     []string `json:"rows"`
	Error    string   `json:"error,omitempty"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay scenarios against a query in process",
		Long: `Compile a query and replay YAML trace scenarios against its plan
without generating or building any code.

By default the centralized matcher evaluates each trace; --distributed uses
the hop-by-hop propagation protocol instead. With --check both strategies run
and any difference fails the scenario. Scenarios with an expect list fail
when the result rows differ.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts)
		},
	}

	opts.queryFlags.register(cmd)
	cmd.Flags().StringArrayVarP(&opts.Scenarios, "scenario", "s", nil, "scenario file (repeatable, required)")
	cmd.Flags().BoolVarP(&opts.Distributed, "distributed", "d", false, "evaluate with the propagation protocol")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "fail when the two evaluation strategies disagree")

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *SimulateOptions) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := opts.check(); err != nil {
		return err
	}
	if len(opts.Scenarios) == 0 {
		return NewExitError(ExitCommandError, "missing required flag(s): --scenario")
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail("simulate", err)
	}
	distributed := opts.Distributed
	if !cmd.Flags().Changed("distributed") {
		distributed = cfg.Distributed
	}

	lg := opts.logger(cmd.ErrOrStderr())
	defer func() { _ = lg.Sync() }()

	m, err := pipeline.New(lg).Model(pipeline.Request{
		QueryPath: opts.Query,
		UDFPaths:  opts.UDFs,
		Root:      opts.Root,
	})
	if err != nil {
		return formatter.Fail("simulate", err)
	}

	// Scenarios are all loaded before any is replayed.
	scenarios := make([]*simulator.Scenario, len(opts.Scenarios))
	for i, path := range opts.Scenarios {
		data, err := os.ReadFile(path)
		if err != nil {
			return formatter.Fail("simulate", &pipeline.IOError{Path: path, Op: "read scenario", Err: err})
		}
		s, err := simulator.ParseScenario(data)
		if err != nil {
			return formatter.Fail("simulate", WrapExitError(ExitCommandError, "scenario "+path, err))
		}
		scenarios[i] = s
	}

	sim := simulator.New(cfg.Trace(),
		simulator.WithDistributed(distributed),
		simulator.WithCheck(opts.Check),
		simulator.WithLogger(lg),
	)

	var (
		results []ScenarioResult
		failed  error
	)
	for i, s := range scenarios {
		report, err := sim.Run(m, s)
		if report == nil {
			return formatter.Fail("simulate", err)
		}
		res := ScenarioResult{
			Scenario: report.Scenario,
			Path:     opts.Scenarios[i],
			Mode:     report.Mode(),
			Traces:   report.Traces,
			Checked:  report.Checked,
			Columns:  report.Result.Columns,
			Rows:     report.Result.Lines(),
		}
		if err != nil {
			res.Error = err.Error()
			failed = multierr.Append(failed, err)
			lg.Debug("Scenario failed", zap.String("scenario", s.Name), zap.Error(err))
		}
		results = append(results, res)
	}

	if failed != nil {
		if formatter.Format != "json" {
			printScenarios(formatter.Writer, results)
		}
		return formatter.Fail("simulate", failed)
	}
	return formatter.Success(results, func(w io.Writer) {
		printScenarios(w, results)
	})
}

func printScenarios(w io.Writer, results []ScenarioResult) {
	for _, r := range results {
		mark := okMark("✓")
		if r.Error != "" {
			mark = failMark("✗")
		}
		detail := fmt.Sprintf("%s, %d trace(s)", r.Mode, r.Traces)
		if r.Checked {
			detail += ", strategies agree"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", mark, r.Scenario, detail)
		for _, row := range r.Rows {
			fmt.Fprintf(w, "  %s\n", row)
		}
	}
}
