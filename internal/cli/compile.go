package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/dtc/internal/config"
	"github.com/roach88/dtc/internal/ledger"
	"github.com/roach88/dtc/internal/pipeline"
)

// queryFlags are the inputs every query command takes.
type queryFlags struct {
	Query string
	UDFs  []string
	Root  string
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&q.Query, "query", "q", "", "query file (required)")
	cmd.Flags().StringArrayVarP(&q.UDFs, "udf", "u", nil, "UDF file (repeatable)")
	cmd.Flags().StringVarP(&q.Root, "root-node", "r", "", "root pattern variable (required)")
}

func (q *queryFlags) check() error {
	var missing []string
	if q.Query == "" {
		missing = append(missing, "--query")
	}
	if q.Root == "" {
		missing = append(missing, "--root-node")
	}
	if len(missing) > 0 {
		return NewExitError(ExitCommandError, "missing required flag(s): "+strings.Join(missing, ", "))
	}
	return nil
}

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	queryFlags

	Mode        string
	Distributed bool
	OutFile     string
	AggrOutFile string
	Templates   string
	Ledger      string
}

// CompileResult is the JSON payload of a successful compile.
type CompileResult struct {
	Query       string            `json:"query"`
	Fingerprint string            `json:"fingerprint"`
	Mode        string            `json:"mode"`
	Distributed bool              `json:"distributed"`
	Artifacts   []ledger.Artifact `json:"artifacts"`
	// LedgerSeq is the ledger record of this compile, if any.
	LedgerSeq int64 `json:"ledger_seq,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a query into filter code",
		Long: `Compile a graph pattern query into Envoy filters or a simulation harness.

With --compilation-mode envoy, a root-only filter is written to --out-file.
Adding --distributed writes the per-hop propagating filter to --out-file and
the root aggregation filter to --aggr-out-file. With --compilation-mode sim
the harness and its aggregation logic are written to the same two paths.

Nothing is written unless every artifact rendered successfully.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts)
		},
	}

	opts.queryFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.Mode, "compilation-mode", "c", "envoy", "backend: envoy | sim")
	cmd.Flags().BoolVarP(&opts.Distributed, "distributed", "d", false, "emit the distributed propagation protocol")
	cmd.Flags().StringVarP(&opts.OutFile, "out-file", "o", pipeline.DefaultOutFile, "primary output file")
	cmd.Flags().StringVarP(&opts.AggrOutFile, "aggr-out-file", "a", pipeline.DefaultAggrOutFile, "aggregation output file")
	cmd.Flags().StringVar(&opts.Templates, "templates", "", "directory overriding the built-in templates")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "compile ledger database for drift checks")

	return cmd
}

// request merges flags with the configuration file. Flags set on the
// command line win.
func (o *CompileOptions) request(cmd *cobra.Command, cfg config.Config) pipeline.Request {
	changed := cmd.Flags().Changed
	pick := func(flag, value, fromConfig string) string {
		if changed(flag) || fromConfig == "" {
			return value
		}
		return fromConfig
	}
	distributed := o.Distributed
	if !changed("distributed") {
		distributed = cfg.Distributed
	}
	if !changed("ledger") && o.Ledger == "" {
		o.Ledger = cfg.Ledger
	}
	return pipeline.Request{
		QueryPath:   o.Query,
		UDFPaths:    o.UDFs,
		Root:        o.Root,
		Mode:        pick("compilation-mode", o.Mode, cfg.Mode),
		Distributed: distributed,
		OutFile:     pick("out-file", o.OutFile, cfg.OutFile),
		AggrOutFile: pick("aggr-out-file", o.AggrOutFile, cfg.AggrOutFile),
		TemplateDir: pick("templates", o.Templates, cfg.Templates),
		Config:      cfg.Trace(),
	}
}

func runCompile(cmd *cobra.Command, opts *CompileOptions) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := opts.check(); err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail("compile", err)
	}
	req := opts.request(cmd, cfg)

	lg := opts.logger(cmd.ErrOrStderr())
	defer func() { _ = lg.Sync() }()

	ctx := cmd.Context()
	var (
		out    CompileResult
		record ledger.Compilation
		led    *ledger.Ledger
	)
	defer func() {
		if led != nil {
			_ = led.Close()
		}
	}()
	hooks := pipeline.Hooks{
		// Drift is checked before anything is written.
		BeforeWrite: func(res *pipeline.Result) error {
			out, record = compileResult(req, res)
			if opts.Ledger == "" {
				return nil
			}
			var err error
			if led, err = ledger.Open(opts.Ledger); err != nil {
				return &ledgerError{err}
			}
			if err := led.Check(ctx, record); err != nil {
				return asLedgerError(err)
			}
			return nil
		},
		AfterWrite: func(*pipeline.Result) error {
			if led == nil {
				return nil
			}
			seq, err := led.Record(ctx, record)
			if err != nil {
				return &ledgerError{err}
			}
			out.LedgerSeq = seq
			return nil
		},
	}
	if _, err := pipeline.New(lg).Run(req, hooks); err != nil {
		return formatter.Fail("compile", err)
	}

	return formatter.Success(out, func(w io.Writer) {
		mode := out.Mode
		if out.Distributed {
			mode += ", distributed"
		}
		fmt.Fprintf(w, "%s Compiled %s (%s)\n", okMark("✓"), out.Query, mode)
		fmt.Fprintf(w, "  fingerprint %s\n", dim(out.Fingerprint))
		for _, a := range out.Artifacts {
			fmt.Fprintf(w, "  %-12s %s (%s)\n", a.Role, a.Path, humanize.Bytes(uint64(a.Size)))
		}
		if out.LedgerSeq != 0 {
			fmt.Fprintf(w, "  recorded as compilation %d in %s\n", out.LedgerSeq, opts.Ledger)
		}
	})
}

func compileResult(req pipeline.Request, res *pipeline.Result) (CompileResult, ledger.Compilation) {
	out := CompileResult{
		Query:       req.QueryPath,
		Fingerprint: res.Model.Plan.Fingerprint,
		Mode:        string(res.Mode),
		Distributed: res.Distributed,
	}
	for _, a := range res.Artifacts {
		out.Artifacts = append(out.Artifacts, ledger.Artifact{
			Role:   string(a.Role),
			Path:   a.Path,
			Digest: a.Digest,
			Size:   int64(len(a.Data)),
		})
	}
	return out, ledger.Compilation{
		Fingerprint: out.Fingerprint,
		QueryPath:   req.QueryPath,
		Root:        req.Root,
		Mode:        out.Mode,
		Distributed: out.Distributed,
		Artifacts:   out.Artifacts,
	}
}
