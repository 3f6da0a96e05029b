package compiler

import (
	"fmt"
	"text/scanner"

	"github.com/roach88/dtc/internal/ir"
)

// typeOf infers the static type of e against ir.KnownProperties.
// Properties outside that table are TypeAny and pass every check; the
// runtime treats a failed evaluation as a non-match.
func typeOf(e ir.Expr, pos scanner.Position) (ir.PropertyType, error) {
	switch e := e.(type) {
	case ir.Literal:
		return valueType(e.Value), nil

	case ir.PropertyRef:
		if t, ok := ir.KnownProperties[e.Key]; ok {
			return t, nil
		}
		return ir.TypeAny, nil

	case ir.List:
		for _, item := range e.Items {
			if _, err := typeOf(item, pos); err != nil {
				return "", err
			}
		}
		return ir.TypeList, nil

	case ir.Unary:
		t, err := typeOf(e.X, pos)
		if err != nil {
			return "", err
		}
		switch e.Op {
		case ir.OpNot:
			if !isBoolish(t) {
				return "", mismatch(e, pos, "NOT needs a bool operand, got %s", t)
			}
			return ir.TypeBool, nil
		case ir.OpNeg:
			if !isNumeric(t) {
				return "", mismatch(e, pos, "cannot negate %s", t)
			}
			return t, nil
		default:
			return ir.TypeBool, nil
		}

	case ir.Binary:
		l, err := typeOf(e.Left, pos)
		if err != nil {
			return "", err
		}
		r, err := typeOf(e.Right, pos)
		if err != nil {
			return "", err
		}
		return binaryType(e, l, r, pos)

	case ir.Call:
		var first ir.PropertyType = ir.TypeAny
		for i, arg := range e.Args {
			t, err := typeOf(arg, pos)
			if err != nil {
				return "", err
			}
			if i == 0 {
				first = t
			}
		}
		if b, ok := LookupBuiltin(e.Func); ok {
			if b.Result == ir.TypeAny {
				return first, nil
			}
			return b.Result, nil
		}
		return ir.TypeAny, nil

	default:
		return "", &TypeError{Msg: fmt.Sprintf("unexpected expression %T", e), Pos: pos}
	}
}

func binaryType(e ir.Binary, l, r ir.PropertyType, pos scanner.Position) (ir.PropertyType, error) {
	switch {
	case e.Op.IsLogical():
		if !isBoolish(l) || !isBoolish(r) {
			return "", mismatch(e, pos, "%s needs bool operands, got %s and %s", binaryName(e.Op), l, r)
		}
		return ir.TypeBool, nil

	case e.Op == ir.OpEq || e.Op == ir.OpNotEq:
		if !equatable(l, r) {
			return "", mismatch(e, pos, "cannot compare %s with %s", l, r)
		}
		return ir.TypeBool, nil

	case e.Op == ir.OpIn:
		if r != ir.TypeList && !isLoose(r) {
			return "", mismatch(e, pos, "IN needs a list on the right, got %s", r)
		}
		return ir.TypeBool, nil

	case e.Op == ir.OpStartsWith || e.Op == ir.OpEndsWith || e.Op == ir.OpContains:
		if !isStringish(l) || !isStringish(r) {
			return "", mismatch(e, pos, "%s needs string operands, got %s and %s", binaryName(e.Op), l, r)
		}
		return ir.TypeBool, nil

	case e.Op.IsComparison():
		ordered := (isNumeric(l) && isNumeric(r)) || (isStringish(l) && isStringish(r))
		if !ordered {
			return "", mismatch(e, pos, "cannot order %s against %s", l, r)
		}
		return ir.TypeBool, nil

	case e.Op == ir.OpAdd && (l == ir.TypeString || r == ir.TypeString):
		if !isStringish(l) || !isStringish(r) {
			return "", mismatch(e, pos, "cannot add %s and %s", l, r)
		}
		return ir.TypeString, nil

	case e.Op.IsArithmetic():
		if !isNumeric(l) || !isNumeric(r) {
			return "", mismatch(e, pos, "arithmetic needs numbers, got %s and %s", l, r)
		}
		switch {
		case isLoose(l) || isLoose(r):
			return ir.TypeAny, nil
		case l == ir.TypeInt && r == ir.TypeInt && e.Op != ir.OpDiv && e.Op != ir.OpPow:
			return ir.TypeInt, nil
		default:
			return ir.TypeFloat, nil
		}
	}
	return "", mismatch(e, pos, "unsupported operator %s", e.Op)
}

func mismatch(e ir.Expr, pos scanner.Position, format string, args ...any) error {
	return &TypeError{
		Msg: fmt.Sprintf(format, args...) + " in " + ir.FormatExpr(e),
		Pos: pos,
	}
}

func binaryName(op ir.BinaryOp) string {
	switch op {
	case ir.OpStartsWith:
		return "STARTS WITH"
	case ir.OpEndsWith:
		return "ENDS WITH"
	case ir.OpContains:
		return "CONTAINS"
	default:
		return string(op)
	}
}

func valueType(v ir.Value) ir.PropertyType {
	switch v.(type) {
	case ir.String:
		return ir.TypeString
	case ir.Int:
		return ir.TypeInt
	case ir.Float:
		return ir.TypeFloat
	case ir.Bool:
		return ir.TypeBool
	case ir.Array:
		return ir.TypeList
	case ir.Null:
		return ir.TypeNull
	default:
		return ir.TypeAny
	}
}

// isLoose reports types that are compatible with anything.
func isLoose(t ir.PropertyType) bool {
	return t == ir.TypeAny || t == ir.TypeNull
}

func isBoolish(t ir.PropertyType) bool {
	return t == ir.TypeBool || isLoose(t)
}

func isNumeric(t ir.PropertyType) bool {
	return t == ir.TypeInt || t == ir.TypeFloat || isLoose(t)
}

func isStringish(t ir.PropertyType) bool {
	return t == ir.TypeString || isLoose(t)
}

func equatable(l, r ir.PropertyType) bool {
	return isLoose(l) || isLoose(r) || l == r || (isNumeric(l) && isNumeric(r))
}
