package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dtc/internal/pipeline"
)

// ValidationResult is the JSON payload of a successful validate.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	Query       string   `json:"query"`
	Root        string   `json:"root"`
	Fingerprint string   `json:"fingerprint"`
	QueryID     string   `json:"query_id"`
	Plan        []string `json:"plan"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var q queryFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a query without generating code",
		Long: `Parse the query, build its IR, bind UDFs and lower the shared plan
without rendering or writing any backend output. Faster than compile for
development feedback.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, &q, cmd)
		},
	}
	q.register(cmd)

	return cmd
}

func runValidate(opts *RootOptions, q *queryFlags, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := q.check(); err != nil {
		return err
	}

	lg := opts.logger(cmd.ErrOrStderr())
	defer func() { _ = lg.Sync() }()

	m, err := pipeline.New(lg).Model(pipeline.Request{
		QueryPath: q.Query,
		UDFPaths:  q.UDFs,
		Root:      q.Root,
	})
	if err != nil {
		return formatter.Fail("validate", err)
	}
	formatter.VerboseLog("Bound %d UDF(s), %d level(s)", len(m.Plan.UDFs), len(m.Plan.Levels))

	res := ValidationResult{
		Valid:       true,
		Query:       q.Query,
		Root:        q.Root,
		Fingerprint: m.Plan.Fingerprint,
		QueryID:     m.QueryID(),
		Plan:        m.Summary(),
	}
	return formatter.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s is valid (root %s)\n", okMark("✓"), res.Query, res.Root)
		fmt.Fprintf(w, "  fingerprint %s\n", dim(res.Fingerprint))
		for _, line := range res.Plan {
			fmt.Fprintf(w, "  %s\n", line)
		}
	})
}
