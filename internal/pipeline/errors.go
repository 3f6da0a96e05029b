package pipeline

import "fmt"

// Driver error codes.
const (
	ErrIO              = "E301" // unreadable input or unwritable output
	ErrUnsupportedMode = "E302" // unknown compilation mode
)

// IOError is returned when a query, UDF or template file cannot be read or
// an output cannot be written.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("[%s] %s %s: %v", ErrIO, e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// UnsupportedModeError is returned for a compilation mode other than
// ModeEnvoy and ModeSim.
type UnsupportedModeError struct {
	Mode string
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("[%s] unsupported compilation mode %q (want %q or %q)", ErrUnsupportedMode, e.Mode, ModeEnvoy, ModeSim)
}
