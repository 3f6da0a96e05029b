package simulator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/roach88/dtc/internal/codegen"
	"github.com/roach88/dtc/pkg/tracefilter"
)

// Simulator runs scenarios in process.
type Simulator struct {
	cfg         tracefilter.Config
	distributed bool
	check       bool
	lg          *zap.Logger
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithDistributed selects the propagation protocol instead of the
// centralized matcher.
func WithDistributed(v bool) Option {
	return func(s *Simulator) { s.distributed = v }
}

// WithCheck also evaluates the other strategy and fails on any difference.
func WithCheck(v bool) Option {
	return func(s *Simulator) { s.check = v }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Simulator) { s.lg = lg }
}

// New creates a Simulator.
func New(cfg tracefilter.Config, opts ...Option) *Simulator {
	s := &Simulator{cfg: cfg, lg: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Report is the outcome of one scenario.
type Report struct {
	Scenario    string
	Distributed bool
	Traces      int
	Result      tracefilter.Result
	// Checked is set when both strategies ran and agreed.
	Checked bool
}

// Mode names the evaluation strategy of r.
func (r *Report) Mode() string {
	if r.Distributed {
		return "distributed"
	}
	return "central"
}

// Snapshot renders r deterministically for golden comparison.
func (r *Report) Snapshot() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "scenario: %s\n", r.Scenario)
	fmt.Fprintf(&sb, "mode: %s\n", r.Mode())
	fmt.Fprintf(&sb, "traces: %d\n", r.Traces)
	fmt.Fprintf(&sb, "checked: %t\n", r.Checked)
	sb.WriteString(r.Result.Text())
	return sb.String()
}

// EquivalenceError is returned when the propagation protocol and the
// centralized matcher disagree.
type EquivalenceError struct {
	Scenario    string
	Central     []string
	Distributed []string
}

func (e *EquivalenceError) Error() string {
	return fmt.Sprintf("scenario %s: distributed result %q differs from central result %q",
		e.Scenario, e.Distributed, e.Central)
}

// ExpectationError is returned when a result differs from the scenario's
// expected rows.
type ExpectationError struct {
	Scenario string
	Want     []string
	Got      []string
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("scenario %s: got %q, want %q", e.Scenario, e.Got, e.Want)
}

// Run replays s with the plan of m.
func (sim *Simulator) Run(m *codegen.Model, s *Scenario) (*Report, error) {
	prog, err := tracefilter.Compile(m.Plan)
	if err != nil {
		return nil, errors.Wrap(err, "compile plan")
	}
	traces := s.Traces()

	res := prog.Evaluate(traces, sim.distributed, sim.cfg)
	report := &Report{
		Scenario:    s.Name,
		Distributed: sim.distributed,
		Traces:      len(traces),
		Result:      res,
	}
	sim.lg.Debug("Scenario replayed",
		zap.String("scenario", s.Name),
		zap.String("mode", report.Mode()),
		zap.Int("traces", len(traces)),
		zap.Int("rows", len(res.Rows)),
	)

	if sim.check {
		other := prog.Evaluate(traces, !sim.distributed, sim.cfg)
		if !equalResults(res, other) {
			central, distributed := other, res
			if !sim.distributed {
				central, distributed = res, other
			}
			return report, &EquivalenceError{
				Scenario:    s.Name,
				Central:     central.Lines(),
				Distributed: distributed.Lines(),
			}
		}
		report.Checked = true
	}

	if s.Expect != nil && !slices.Equal(s.Expect, res.Lines()) {
		return report, &ExpectationError{Scenario: s.Name, Want: s.Expect, Got: res.Lines()}
	}
	return report, nil
}

func equalResults(a, b tracefilter.Result) bool {
	return a.Kind == b.Kind &&
		slices.Equal(a.Columns, b.Columns) &&
		slices.EqualFunc(a.Rows, b.Rows, func(x, y tracefilter.Row) bool {
			return x.Value == y.Value && slices.Equal(x.Keys, y.Keys)
		})
}
