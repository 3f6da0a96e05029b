package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/go-faster/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/dtc/internal/compiler"
	"github.com/roach88/dtc/internal/config"
	"github.com/roach88/dtc/internal/cypher"
	"github.com/roach88/dtc/internal/ledger"
	"github.com/roach88/dtc/internal/pipeline"
	"github.com/roach88/dtc/internal/simulator"
	"github.com/roach88/dtc/internal/udf"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query rejected, drift detected or simulation mismatch
	ExitCommandError = 2 // Command error (missing flags, unreadable files, unknown mode, bad config)
)

// Error codes reported by the CLI that have no typed error of their own.
const (
	ErrCodeGeneric    = "E000"
	ErrCodeUsage      = "E001"
	ErrCodeSyntax     = "E100"
	ErrCodeConfig     = "E304"
	ErrCodeDrift      = "E305"
	ErrCodeSimulation = "E306"
	ErrCodeLedger     = "E307"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ledgerError marks a failure to use the compile ledger itself.
type ledgerError struct{ err error }

func (e *ledgerError) Error() string { return "ledger: " + e.err.Error() }
func (e *ledgerError) Unwrap() error { return e.err }

// asLedgerError wraps err unless it is a drift report.
func asLedgerError(err error) error {
	var drift *ledger.DriftError
	if errors.As(err, &drift) {
		return err
	}
	return &ledgerError{err}
}

// classify returns the error code and exit code of a pipeline error.
func classify(err error) (code string, exit int) {
	var (
		ioErr   *pipeline.IOError
		modeErr *pipeline.UnsupportedModeError
		cfgErr  *config.Error
		synErr  *cypher.SyntaxError
		semErr  *compiler.SemanticError
		defErr  *udf.DefinitionError
		drift   *ledger.DriftError
		expErr  *simulator.ExpectationError
		eqErr   *simulator.EquivalenceError
		ledErr  *ledgerError
		exitErr *ExitError
	)
	switch {
	case errors.As(err, &ioErr):
		return pipeline.ErrIO, ExitCommandError
	case errors.As(err, &modeErr):
		return pipeline.ErrUnsupportedMode, ExitCommandError
	case errors.As(err, &ledErr):
		return ErrCodeLedger, ExitCommandError
	case errors.As(err, &cfgErr):
		return ErrCodeConfig, ExitCommandError
	case errors.As(err, &synErr):
		return ErrCodeSyntax, ExitFailure
	case errors.As(err, &semErr):
		return semErr.Code, ExitFailure
	case errors.As(err, &defErr):
		return udf.ErrDefinition, ExitFailure
	case errors.As(err, &drift):
		return ErrCodeDrift, ExitFailure
	case errors.As(err, &expErr), errors.As(err, &eqErr):
		return ErrCodeSimulation, ExitFailure
	case errors.As(err, &exitErr):
		return ErrCodeUsage, exitErr.Code
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for diagnostic output (defaults to Writer)
	Verbose   bool
}

func newFormatter(opts *RootOptions, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   opts.Verbose,
	}
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E201", "E302", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed, color.Bold).SprintFunc()
	dim      = color.New(color.Faint).SprintFunc()
)

// Success outputs data in JSON mode. In text mode it prints text.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Fail reports err and returns the ExitError the command should return.
// Every member of a combined error is listed.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, exit := classify(err)
	members := multierr.Errors(err)
	if len(members) == 0 {
		members = []error{err}
	}

	if f.Format == "json" {
		resp := CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		}
		if len(members) > 1 {
			details := make([]CLIError, len(members))
			for i, m := range members {
				c, _ := classify(m)
				details[i] = CLIError{Code: c, Message: m.Error()}
			}
			resp.Error.Details = details
		}
		_ = json.NewEncoder(f.Writer).Encode(resp)
	} else {
		for _, m := range members {
			c, _ := classify(m)
			fmt.Fprintf(f.Writer, "%s Error [%s]: %s\n", failMark("✗"), c, m.Error())
		}
	}
	return WrapExitError(exit, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// newLogger writes console logs to w: info level, debug when verbose.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}
