package ir

import (
	"slices"
	"strings"
)

// Expr is a predicate or value expression over pattern variables.
//
// This is a sealed interface - only types in this package implement it.
// Backends switch exhaustively over:
//   - Literal: constant value
//   - PropertyRef: attribute of the hop bound to a variable
//   - Binary: comparison, boolean or arithmetic operation
//   - Unary: NOT, negation, null checks
//   - Call: user-defined scalar function
//   - List: list constant or list of expressions (right side of IN)
type Expr interface {
	irExpr() // Marker method - seals interface to this package
}

// Literal is a constant.
type Literal struct {
	Value Value
}

// PropertyRef is `Var.Key`. Key is the dotted attribute key, e.g.
// "response.code" for `e.response.code`.
type PropertyRef struct {
	Var string
	Key string
}

// Binary is a binary operation.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// Unary is a unary operation.
type Unary struct {
	Op UnaryOp
	X  Expr
}

// Call is a call of a user-defined scalar function.
type Call struct {
	Func string
	Args []Expr
}

// List is a list of expressions.
type List struct {
	Items []Expr
}

func (Literal) irExpr()     {}
func (PropertyRef) irExpr() {}
func (Binary) irExpr()      {}
func (Unary) irExpr()       {}
func (Call) irExpr()        {}
func (List) irExpr()        {}

// BinaryOp is a binary operator.
type BinaryOp string

const (
	OpOr         BinaryOp = "or"
	OpXor        BinaryOp = "xor"
	OpAnd        BinaryOp = "and"
	OpEq         BinaryOp = "=="
	OpNotEq      BinaryOp = "!="
	OpLt         BinaryOp = "<"
	OpLte        BinaryOp = "<="
	OpGt         BinaryOp = ">"
	OpGte        BinaryOp = ">="
	OpIn         BinaryOp = "in"
	OpStartsWith BinaryOp = "startsWith"
	OpEndsWith   BinaryOp = "endsWith"
	OpContains   BinaryOp = "contains"
	OpAdd        BinaryOp = "+"
	OpSub        BinaryOp = "-"
	OpMul        BinaryOp = "*"
	OpDiv        BinaryOp = "/"
	OpMod        BinaryOp = "%"
	OpPow        BinaryOp = "**"
)

// IsLogical whether op combines booleans.
func (op BinaryOp) IsLogical() bool {
	switch op {
	case OpOr, OpXor, OpAnd:
		return true
	default:
		return false
	}
}

// IsComparison whether op yields a boolean from two values.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNotEq, OpLt, OpLte, OpGt, OpGte, OpIn, OpStartsWith, OpEndsWith, OpContains:
		return true
	default:
		return false
	}
}

// IsArithmetic whether op is an arithmetic operator.
func (op BinaryOp) IsArithmetic() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
		return true
	default:
		return false
	}
}

// UnaryOp is a unary operator.
type UnaryOp string

const (
	OpNot       UnaryOp = "not"
	OpNeg       UnaryOp = "neg"
	OpIsNull    UnaryOp = "isNull"
	OpIsNotNull UnaryOp = "isNotNull"
)

// Vars returns the sorted set of variables referenced by e.
func Vars(e Expr) []string {
	seen := map[string]struct{}{}
	Walk(e, func(e Expr) {
		if ref, ok := e.(PropertyRef); ok {
			seen[ref.Var] = struct{}{}
		}
	})
	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	slices.Sort(vars)
	return vars
}

// Properties returns the distinct property references of e in sorted order.
func Properties(e Expr) []PropertyRef {
	seen := map[PropertyRef]struct{}{}
	Walk(e, func(e Expr) {
		if ref, ok := e.(PropertyRef); ok {
			seen[ref] = struct{}{}
		}
	})
	refs := make([]PropertyRef, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	slices.SortFunc(refs, func(a, b PropertyRef) int {
		if c := strings.Compare(a.Var, b.Var); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return refs
}

// Calls returns every function call in e in pre-order.
func Calls(e Expr) []Call {
	var calls []Call
	Walk(e, func(e Expr) {
		if call, ok := e.(Call); ok {
			calls = append(calls, call)
		}
	})
	return calls
}

// Walk calls fn for e and every sub-expression in pre-order.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case Literal, PropertyRef:
	case Binary:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case Unary:
		Walk(e.X, fn)
	case Call:
		for _, arg := range e.Args {
			Walk(arg, fn)
		}
	case List:
		for _, item := range e.Items {
			Walk(item, fn)
		}
	}
}

// Conjuncts splits e into its top-level AND operands.
func Conjuncts(e Expr) []Expr {
	if b, ok := e.(Binary); ok && b.Op == OpAnd {
		return append(Conjuncts(b.Left), Conjuncts(b.Right)...)
	}
	return []Expr{e}
}

// And joins expressions with AND. Returns nil for an empty list.
func And(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		if out == nil {
			out = e
			continue
		}
		out = Binary{Op: OpAnd, Left: out, Right: e}
	}
	return out
}
