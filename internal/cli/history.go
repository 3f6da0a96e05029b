package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/dtc/internal/ledger"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		path  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List compilations recorded in the ledger",
		Long: `List the compilations recorded by compile --ledger, newest first,
with the digest of every artifact they wrote.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, rootOpts, path, limit)
		},
	}

	cmd.Flags().StringVar(&path, "ledger", "", "compile ledger database (defaults to the configured ledger)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of compilations to list (0 lists all)")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *RootOptions, path string, limit int) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return formatter.Fail("history", err)
		}
		path = cfg.Ledger
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no ledger: pass --ledger or set ledger in the configuration")
	}

	led, err := ledger.Open(path)
	if err != nil {
		return formatter.Fail("history", &ledgerError{err})
	}
	defer func() { _ = led.Close() }()

	entries, err := led.History(cmd.Context(), limit)
	if err != nil {
		return formatter.Fail("history", &ledgerError{err})
	}
	formatter.VerboseLog("Read %d compilation(s) from %s", len(entries), path)

	if entries == nil {
		entries = []ledger.Compilation{}
	}
	return formatter.Success(entries, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "No compilations recorded")
			return
		}
		for _, c := range entries {
			mode := c.Mode
			if c.Distributed {
				mode += ", distributed"
			}
			fmt.Fprintf(w, "#%d %s (%s) root %s, %s\n", c.Seq, c.QueryPath, mode, c.Root, humanize.Time(c.CompiledAt))
			fmt.Fprintf(w, "   fingerprint %s\n", dim(c.Fingerprint))
			for _, a := range c.Artifacts {
				fmt.Fprintf(w, "   %-12s %s %s (%s)\n", a.Role, a.Path, a.Digest[:min(12, len(a.Digest))], humanize.Bytes(uint64(a.Size)))
			}
		}
	})
}
