package ir

import (
	"strconv"
	"strings"
)

// FormatExpr renders e as query text. The output is fully parenthesized and
// stable, so it doubles as a canonical form.
func FormatExpr(e Expr) string {
	var sb strings.Builder
	formatExpr(&sb, e)
	return sb.String()
}

func formatExpr(sb *strings.Builder, e Expr) {
	switch e := e.(type) {
	case nil:
		sb.WriteString("true")
	case Literal:
		sb.WriteString(FormatValue(e.Value))
	case PropertyRef:
		sb.WriteString(e.Var)
		sb.WriteByte('.')
		sb.WriteString(e.Key)
	case Binary:
		sb.WriteByte('(')
		formatExpr(sb, e.Left)
		sb.WriteByte(' ')
		sb.WriteString(binaryOpText(e.Op))
		sb.WriteByte(' ')
		formatExpr(sb, e.Right)
		sb.WriteByte(')')
	case Unary:
		switch e.Op {
		case OpNot:
			sb.WriteString("NOT ")
			formatExpr(sb, e.X)
		case OpNeg:
			sb.WriteByte('-')
			formatExpr(sb, e.X)
		case OpIsNull:
			formatExpr(sb, e.X)
			sb.WriteString(" IS NULL")
		case OpIsNotNull:
			formatExpr(sb, e.X)
			sb.WriteString(" IS NOT NULL")
		}
	case Call:
		sb.WriteString(e.Func)
		sb.WriteByte('(')
		for i, arg := range e.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatExpr(sb, arg)
		}
		sb.WriteByte(')')
	case List:
		sb.WriteByte('[')
		for i, item := range e.Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatExpr(sb, item)
		}
		sb.WriteByte(']')
	}
}

func binaryOpText(op BinaryOp) string {
	switch op {
	case OpOr:
		return "OR"
	case OpXor:
		return "XOR"
	case OpAnd:
		return "AND"
	case OpEq:
		return "="
	case OpNotEq:
		return "<>"
	case OpStartsWith:
		return "STARTS WITH"
	case OpEndsWith:
		return "ENDS WITH"
	case OpContains:
		return "CONTAINS"
	case OpIn:
		return "IN"
	case OpPow:
		return "^"
	default:
		return string(op)
	}
}

// FormatValue renders a literal value as query text.
func FormatValue(v Value) string {
	switch v := v.(type) {
	case Null:
		return "NULL"
	case String:
		return strconv.Quote(string(v))
	case Int:
		return strconv.FormatInt(int64(v), 10)
	case Float:
		b, err := formatFloat(float64(v))
		if err != nil {
			return "NaN"
		}
		return string(b)
	case Bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case Array:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = FormatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Object:
		keys := v.SortedKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + FormatValue(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}
