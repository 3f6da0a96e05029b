package cli

import (
	"io"
	"slices"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/dtc/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	// Config is an optional CUE configuration file.
	Config string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// logger returns the command logger writing to w.
func (o *RootOptions) logger(w io.Writer) *zap.Logger {
	return newLogger(w, o.Verbose)
}

// loadConfig loads the configuration file, or the defaults without one.
func (o *RootOptions) loadConfig() (config.Config, error) {
	return config.Load(o.Config)
}

// NewRootCommand creates the root command of the dtc CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dtc",
		Short: "dtc - distributed trace query compiler",
		Long: `Compile Cypher-like graph pattern queries over request traces into
Envoy filters that evaluate the pattern hop by hop across a service mesh,
or into a simulation harness that replays recorded traces.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, errors.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats).Error())
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, cmd.CommandPath(), err)
	})

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "CUE configuration file")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}
