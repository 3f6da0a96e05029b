package codegen

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/roach88/dtc/internal/ir"
)

// Lowered is an expression in target-neutral code plus the hop attributes
// it reads.
type Lowered struct {
	Code       string
	Properties []ir.PropertyRef
}

// builtinIdents maps built-in scalar functions to their runtime names.
var builtinIdents = map[string]string{
	"toLower":  "lower",
	"toUpper":  "upper",
	"size":     "len",
	"abs":      "abs",
	"toString": "string",
}

// binaryOps maps comparison and arithmetic operators to runtime operators.
// Logical operators are handled separately.
var binaryOps = map[ir.BinaryOp]string{
	ir.OpEq:         "==",
	ir.OpNotEq:      "!=",
	ir.OpLt:         "<",
	ir.OpLte:        "<=",
	ir.OpGt:         ">",
	ir.OpGte:        ">=",
	ir.OpIn:         "in",
	ir.OpStartsWith: "startsWith",
	ir.OpEndsWith:   "endsWith",
	ir.OpContains:   "contains",
	ir.OpAdd:        "+",
	ir.OpSub:        "-",
	ir.OpMul:        "*",
	ir.OpDiv:        "/",
	ir.OpMod:        "%",
	ir.OpPow:        "**",
}

// Lowerer lowers IR expressions to expression code over mangled
// identifiers. Variables read hop attributes as v_x["key"].
type Lowerer struct {
	m *Mangler
}

// NewLowerer creates a Lowerer that names variables and functions with m.
func NewLowerer(m *Mangler) *Lowerer {
	return &Lowerer{m: m}
}

// Lower lowers e. A nil expression lowers to empty code.
func (l *Lowerer) Lower(e ir.Expr) (Lowered, error) {
	if e == nil {
		return Lowered{}, nil
	}
	var sb strings.Builder
	if err := l.lower(&sb, e); err != nil {
		return Lowered{}, err
	}
	return Lowered{Code: sb.String(), Properties: ir.Properties(e)}, nil
}

// LowerAll lowers the conjunction of exprs.
func (l *Lowerer) LowerAll(exprs []ir.Expr) (Lowered, error) {
	return l.Lower(ir.And(exprs...))
}

func (l *Lowerer) lower(sb *strings.Builder, e ir.Expr) error {
	switch e := e.(type) {
	case ir.Literal:
		return lowerValue(sb, e.Value)

	case ir.PropertyRef:
		sb.WriteString(l.m.Var(e.Var))
		sb.WriteByte('[')
		sb.WriteString(strconv.Quote(e.Key))
		sb.WriteByte(']')

	case ir.Binary:
		op, err := binaryOp(e.Op)
		if err != nil {
			return err
		}
		sb.WriteByte('(')
		if err := l.lower(sb, e.Left); err != nil {
			return err
		}
		sb.WriteByte(' ')
		sb.WriteString(op)
		sb.WriteByte(' ')
		if err := l.lower(sb, e.Right); err != nil {
			return err
		}
		sb.WriteByte(')')

	case ir.Unary:
		sb.WriteByte('(')
		switch e.Op {
		case ir.OpNot:
			sb.WriteString("not ")
		case ir.OpNeg:
			sb.WriteByte('-')
		case ir.OpIsNull, ir.OpIsNotNull:
		default:
			return errors.Errorf("lower: unknown unary operator %q", e.Op)
		}
		if err := l.lower(sb, e.X); err != nil {
			return err
		}
		switch e.Op {
		case ir.OpIsNull:
			sb.WriteString(" == nil")
		case ir.OpIsNotNull:
			sb.WriteString(" != nil")
		}
		sb.WriteByte(')')

	case ir.Call:
		name, ok := builtinIdents[e.Func]
		if !ok {
			name = l.m.UDF(e.Func)
		}
		sb.WriteString(name)
		sb.WriteByte('(')
		for i, arg := range e.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := l.lower(sb, arg); err != nil {
				return err
			}
		}
		sb.WriteByte(')')

	case ir.List:
		sb.WriteByte('[')
		for i, item := range e.Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := l.lower(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')

	default:
		return errors.Errorf("lower: unexpected expression %T", e)
	}
	return nil
}

func binaryOp(op ir.BinaryOp) (string, error) {
	switch op {
	case ir.OpAnd:
		return "&&", nil
	case ir.OpOr:
		return "||", nil
	case ir.OpXor:
		// Operands are booleans.
		return "!=", nil
	}
	if s, ok := binaryOps[op]; ok {
		return s, nil
	}
	return "", errors.Errorf("lower: unknown binary operator %q", op)
}

func lowerValue(sb *strings.Builder, v ir.Value) error {
	switch v := v.(type) {
	case ir.Null:
		sb.WriteString("nil")
	case ir.String:
		sb.WriteString(strconv.Quote(string(v)))
	case ir.Int:
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case ir.Float:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.Errorf("lower: non-finite float %v", f)
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		sb.WriteString(s)
	case ir.Bool:
		sb.WriteString(strconv.FormatBool(bool(v)))
	case ir.Array:
		sb.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := lowerValue(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	default:
		return errors.Errorf("lower: unsupported literal %T", v)
	}
	return nil
}
