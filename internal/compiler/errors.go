package compiler

import (
	"fmt"
	"strings"
	"text/scanner"
)

// Semantic error codes (E201-E299)
const (
	ErrUnknownRoot             = "E201" // root identifier is not a pattern variable
	ErrDisconnectedPattern     = "E202" // pattern graph is not weakly connected
	ErrUdfSignatureMismatch    = "E203" // UDF call arity differs from its declaration
	ErrIncompatibleAggregation = "E204" // aggregations cannot be combined
	ErrUnsupportedPattern      = "E205" // pattern is not a single directed chain
	ErrUnknownVariable         = "E206" // expression references an undeclared variable
	ErrUnknownFunction         = "E207" // call of an undeclared function
	ErrType                    = "E208" // expression does not type-check
	ErrDuplicateVariable       = "E209" // variable declared twice with conflicting kinds
	ErrResponseAboveRoot       = "E210" // response attribute read above the root level
)

// SemanticError is the common form of every error raised while building a
// QueryIR from a syntactically valid query.
//
// Every typed member of the family can be matched with
//
//	var se *compiler.SemanticError
//	errors.As(err, &se)
type SemanticError struct {
	Code string           `json:"code"`
	Msg  string           `json:"message"`
	Pos  scanner.Position `json:"-"`
}

// Error implements the error interface.
func (e *SemanticError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("[%s] at %s: %s", e.Code, e.Pos, e.Msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Msg)
}

// Semantic returns e.
func (e *SemanticError) Semantic() *SemanticError { return e }

// semantic is implemented by every member of the family.
type semantic interface {
	error
	Semantic() *SemanticError
}

// AsSemantic implements the errors.As hook for family members defined
// outside this package.
func AsSemantic(err semantic, target any) bool {
	if t, ok := target.(**SemanticError); ok {
		*t = err.Semantic()
		return true
	}
	return false
}

// UnknownRootError is returned when the requested root has no matching
// pattern variable.
type UnknownRootError struct {
	Root string
	// Known lists the named variables of the pattern, sorted.
	Known []string
}

func (e *UnknownRootError) Semantic() *SemanticError {
	return &SemanticError{
		Code: ErrUnknownRoot,
		Msg:  fmt.Sprintf("root %q is not a pattern variable (known: %s)", e.Root, strings.Join(e.Known, ", ")),
	}
}

func (e *UnknownRootError) Error() string { return e.Semantic().Error() }
func (e *UnknownRootError) As(target any) bool { return AsSemantic(e, target) }

// DisconnectedPatternError is returned when the pattern splits into
// unrelated subgraphs.
type DisconnectedPatternError struct {
	// Components lists the variables of each connected component.
	Components [][]string
}

func (e *DisconnectedPatternError) Semantic() *SemanticError {
	parts := make([]string, len(e.Components))
	for i, c := range e.Components {
		parts[i] = "{" + strings.Join(c, ", ") + "}"
	}
	return &SemanticError{
		Code: ErrDisconnectedPattern,
		Msg:  fmt.Sprintf("pattern is not connected: %d components %s", len(e.Components), strings.Join(parts, " ")),
	}
}

func (e *DisconnectedPatternError) Error() string { return e.Semantic().Error() }
func (e *DisconnectedPatternError) As(target any) bool { return AsSemantic(e, target) }

// IncompatibleAggregationError is returned for RETURN clauses whose
// aggregations cannot be evaluated together.
type IncompatibleAggregationError struct {
	Reason string
	Pos    scanner.Position
}

func (e *IncompatibleAggregationError) Semantic() *SemanticError {
	return &SemanticError{Code: ErrIncompatibleAggregation, Msg: e.Reason, Pos: e.Pos}
}

func (e *IncompatibleAggregationError) Error() string { return e.Semantic().Error() }
func (e *IncompatibleAggregationError) As(target any) bool { return AsSemantic(e, target) }

// UnsupportedPatternError is returned for connected patterns that are not a
// single directed chain.
type UnsupportedPatternError struct {
	Reason string
	Pos    scanner.Position
}

func (e *UnsupportedPatternError) Semantic() *SemanticError {
	return &SemanticError{Code: ErrUnsupportedPattern, Msg: e.Reason, Pos: e.Pos}
}

func (e *UnsupportedPatternError) Error() string { return e.Semantic().Error() }
func (e *UnsupportedPatternError) As(target any) bool { return AsSemantic(e, target) }

// UnknownVariableError is returned when an expression names a variable that
// the pattern does not declare.
type UnknownVariableError struct {
	Name string
	Pos  scanner.Position
}

func (e *UnknownVariableError) Semantic() *SemanticError {
	return &SemanticError{Code: ErrUnknownVariable, Msg: fmt.Sprintf("unknown variable %q", e.Name), Pos: e.Pos}
}

func (e *UnknownVariableError) Error() string { return e.Semantic().Error() }
func (e *UnknownVariableError) As(target any) bool { return AsSemantic(e, target) }

// UnknownFunctionError is returned for calls of functions that are neither
// built in nor declared by a UDF file.
type UnknownFunctionError struct {
	Name string
	Pos  scanner.Position
}

func (e *UnknownFunctionError) Semantic() *SemanticError {
	return &SemanticError{Code: ErrUnknownFunction, Msg: fmt.Sprintf("unknown function %q", e.Name), Pos: e.Pos}
}

func (e *UnknownFunctionError) Error() string { return e.Semantic().Error() }
func (e *UnknownFunctionError) As(target any) bool { return AsSemantic(e, target) }

// TypeError is returned when an expression does not type-check against the
// declared property types.
type TypeError struct {
	Msg string
	Pos scanner.Position
}

func (e *TypeError) Semantic() *SemanticError {
	return &SemanticError{Code: ErrType, Msg: e.Msg, Pos: e.Pos}
}

func (e *TypeError) Error() string { return e.Semantic().Error() }
func (e *TypeError) As(target any) bool { return AsSemantic(e, target) }

// DuplicateVariableError is returned when a name is bound twice in a way
// that cannot denote the same pattern element.
type DuplicateVariableError struct {
	Name string
	Pos  scanner.Position
}

func (e *DuplicateVariableError) Semantic() *SemanticError {
	return &SemanticError{
		Code: ErrDuplicateVariable,
		Msg:  fmt.Sprintf("variable %q is already bound", e.Name),
		Pos:  e.Pos,
	}
}

func (e *DuplicateVariableError) Error() string { return e.Semantic().Error() }
func (e *DuplicateVariableError) As(target any) bool { return AsSemantic(e, target) }

// ResponsePropertyError is returned when an expression reads a response
// attribute of a variable above the root. Those levels are bound while the
// request travels down, before any response exists.
type ResponsePropertyError struct {
	Var   string
	Key   string
	Level int
	Root  int
	Pos   scanner.Position
}

func (e *ResponsePropertyError) Semantic() *SemanticError {
	return &SemanticError{
		Code: ErrResponseAboveRoot,
		Msg: fmt.Sprintf("%s.%s is a response attribute but %s is at level %d, above root level %d",
			e.Var, e.Key, e.Var, e.Level, e.Root),
		Pos: e.Pos,
	}
}

func (e *ResponsePropertyError) Error() string { return e.Semantic().Error() }
func (e *ResponsePropertyError) As(target any) bool { return AsSemantic(e, target) }
