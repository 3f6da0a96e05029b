package cypher

import (
	"fmt"
	"text/scanner"
)

// SyntaxError is a syntax error.
type SyntaxError struct {
	Msg string
	Pos scanner.Position
}

// Error implements error.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("at %s: %s", e.Pos, e.Msg)
}
