package compiler

import (
	"strings"

	"github.com/roach88/dtc/internal/ir"
)

// Aggregation functions.
const (
	FuncCount            = "count"
	FuncAvg              = "avg"
	FuncHistogramDepth   = "histogram_depth"
	FuncHistogramBreadth = "histogram_breadth"
)

// Builtin is a built-in scalar function.
type Builtin struct {
	Name  string
	Arity int
	// Result is the static result type. TypeAny means the type of the
	// first argument.
	Result ir.PropertyType
}

var scalarBuiltins = map[string]Builtin{
	"tolower":  {Name: "toLower", Arity: 1, Result: ir.TypeString},
	"toupper":  {Name: "toUpper", Arity: 1, Result: ir.TypeString},
	"size":     {Name: "size", Arity: 1, Result: ir.TypeInt},
	"abs":      {Name: "abs", Arity: 1, Result: ir.TypeAny},
	"tostring": {Name: "toString", Arity: 1, Result: ir.TypeString},
}

// LookupBuiltin returns the built-in scalar function with the given name.
// Function names are case-insensitive.
func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := scalarBuiltins[strings.ToLower(name)]
	return b, ok
}

func aggregateBuiltin(name string) (string, bool) {
	switch n := strings.ToLower(name); n {
	case FuncCount, FuncAvg, FuncHistogramDepth, FuncHistogramBreadth:
		return n, true
	default:
		return "", false
	}
}

// IsReservedFunction reports whether name is taken by a built-in function
// and therefore cannot be declared by a UDF.
func IsReservedFunction(name string) bool {
	if _, ok := LookupBuiltin(name); ok {
		return true
	}
	_, ok := aggregateBuiltin(name)
	return ok
}
