package udf

import "fmt"

// ErrDefinition is the code of DefinitionError.
const ErrDefinition = "E303"

// DefinitionError is returned for unreadable or malformed UDF files.
type DefinitionError struct {
	Path string
	Name string
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Name != "" {
		return fmt.Sprintf("[%s] %s: udf %s: %s", ErrDefinition, e.Path, e.Name, msg)
	}
	return fmt.Sprintf("[%s] %s: %s", ErrDefinition, e.Path, msg)
}

func (e *DefinitionError) Unwrap() error { return e.Err }
