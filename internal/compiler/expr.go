package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/roach88/dtc/internal/cypher"
	"github.com/roach88/dtc/internal/ir"
)

var binaryOps = map[cypher.BinaryOp]ir.BinaryOp{
	cypher.OpOr:         ir.OpOr,
	cypher.OpXor:        ir.OpXor,
	cypher.OpAnd:        ir.OpAnd,
	cypher.OpEq:         ir.OpEq,
	cypher.OpNotEq:      ir.OpNotEq,
	cypher.OpLt:         ir.OpLt,
	cypher.OpLte:        ir.OpLte,
	cypher.OpGt:         ir.OpGt,
	cypher.OpGte:        ir.OpGte,
	cypher.OpIn:         ir.OpIn,
	cypher.OpStartsWith: ir.OpStartsWith,
	cypher.OpEndsWith:   ir.OpEndsWith,
	cypher.OpContains:   ir.OpContains,
	cypher.OpAdd:        ir.OpAdd,
	cypher.OpSub:        ir.OpSub,
	cypher.OpMul:        ir.OpMul,
	cypher.OpDiv:        ir.OpDiv,
	cypher.OpMod:        ir.OpMod,
	cypher.OpPow:        ir.OpPow,
}

var unaryOps = map[cypher.UnaryOp]ir.UnaryOp{
	cypher.OpNot:       ir.OpNot,
	cypher.OpNeg:       ir.OpNeg,
	cypher.OpIsNull:    ir.OpIsNull,
	cypher.OpIsNotNull: ir.OpIsNotNull,
}

// expr normalizes a syntax expression. clause names the enclosing clause
// for error messages.
func (b *builder) expr(e cypher.Expr, clause string) (ir.Expr, error) {
	switch e := e.(type) {
	case *cypher.Literal:
		v, err := literalValue(e)
		if err != nil {
			return nil, err
		}
		return ir.Literal{Value: v}, nil

	case *cypher.Variable:
		if !b.isVariable(e.Name) {
			return nil, &UnknownVariableError{Name: e.Name, Pos: e.Pos}
		}
		return nil, &TypeError{
			Msg: fmt.Sprintf("variable %q used as a value; reference one of its properties, e.g. %s.%s", e.Name, e.Name, ir.AttrService),
			Pos: e.Pos,
		}

	case *cypher.PropertyAccess:
		return b.property(e)

	case *cypher.BinaryExpr:
		op, ok := binaryOps[e.Op]
		if !ok {
			return nil, errors.Errorf("unexpected binary operator %v", e.Op)
		}
		left, err := b.expr(e.Left, clause)
		if err != nil {
			return nil, err
		}
		right, err := b.expr(e.Right, clause)
		if err != nil {
			return nil, err
		}
		return ir.Binary{Op: op, Left: left, Right: right}, nil

	case *cypher.UnaryExpr:
		op, ok := unaryOps[e.Op]
		if !ok {
			return nil, errors.Errorf("unexpected unary operator %v", e.Op)
		}
		x, err := b.expr(e.X, clause)
		if err != nil {
			return nil, err
		}
		// Fold negative numeric literals.
		if lit, ok := x.(ir.Literal); ok && op == ir.OpNeg {
			switch v := lit.Value.(type) {
			case ir.Int:
				return ir.Literal{Value: -v}, nil
			case ir.Float:
				return ir.Literal{Value: -v}, nil
			}
		}
		return ir.Unary{Op: op, X: x}, nil

	case *cypher.FunctionCall:
		return b.call(e, clause)

	case *cypher.ListExpr:
		items := make([]ir.Expr, len(e.Items))
		for i, item := range e.Items {
			x, err := b.expr(item, clause)
			if err != nil {
				return nil, err
			}
			items[i] = x
		}
		return ir.List{Items: items}, nil

	default:
		return nil, errors.Errorf("unexpected expression %T", e)
	}
}

func literalValue(e *cypher.Literal) (ir.Value, error) {
	switch e.Kind {
	case cypher.LiteralString:
		return ir.String(e.Text), nil
	case cypher.LiteralInteger:
		i, err := strconv.ParseInt(e.Text, 10, 64)
		if err != nil {
			return nil, &TypeError{Msg: fmt.Sprintf("integer literal %s out of range", e.Text), Pos: e.Pos}
		}
		return ir.Int(i), nil
	case cypher.LiteralNumber:
		f, err := strconv.ParseFloat(e.Text, 64)
		if err != nil {
			return nil, &TypeError{Msg: fmt.Sprintf("invalid number literal %s", e.Text), Pos: e.Pos}
		}
		return ir.Float(f), nil
	case cypher.LiteralBool:
		return ir.Bool(strings.EqualFold(e.Text, "true")), nil
	case cypher.LiteralNull:
		return ir.Null{}, nil
	default:
		return nil, errors.Errorf("unexpected literal kind %d", e.Kind)
	}
}

// property flattens `v.k1.k2` into PropertyRef{v, "k1.k2"}.
func (b *builder) property(e *cypher.PropertyAccess) (ir.Expr, error) {
	keys := []string{e.Key}
	subject := e.Subject
	for {
		pa, ok := subject.(*cypher.PropertyAccess)
		if !ok {
			break
		}
		keys = append(keys, pa.Key)
		subject = pa.Subject
	}

	v, ok := subject.(*cypher.Variable)
	if !ok {
		return nil, &TypeError{Msg: "property access requires a pattern variable", Pos: e.Pos}
	}
	if !b.isVariable(v.Name) {
		return nil, &UnknownVariableError{Name: v.Name, Pos: v.Pos}
	}

	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return ir.PropertyRef{Var: v.Name, Key: strings.Join(keys, ".")}, nil
}

// call normalizes a scalar function call. Aggregations are only valid as
// top-level RETURN items, which aggregation handles before reaching here.
func (b *builder) call(e *cypher.FunctionCall, clause string) (ir.Expr, error) {
	if b.isAggregate(e.Name) {
		return nil, &IncompatibleAggregationError{
			Reason: fmt.Sprintf("aggregation %s must be a top-level RETURN item, found in %s", e.Name, clause),
			Pos:    e.Pos,
		}
	}
	if e.Star || e.Distinct {
		return nil, &TypeError{Msg: fmt.Sprintf("%s does not accept * or DISTINCT", e.Name), Pos: e.Pos}
	}

	name := e.Name
	if bi, ok := LookupBuiltin(name); ok {
		if len(e.Args) != bi.Arity {
			return nil, &TypeError{
				Msg: fmt.Sprintf("%s expects %d argument(s), got %d", bi.Name, bi.Arity, len(e.Args)),
				Pos: e.Pos,
			}
		}
		name = bi.Name
	} else if _, ok := b.udfs[name]; ok {
		b.usedUDF[name] = true
	} else {
		return nil, &UnknownFunctionError{Name: e.Name, Pos: e.Pos}
	}

	args, err := b.exprs(e.Args, clause)
	if err != nil {
		return nil, err
	}
	return ir.Call{Func: name, Args: args}, nil
}

func (b *builder) exprs(in []cypher.Expr, clause string) ([]ir.Expr, error) {
	out := make([]ir.Expr, len(in))
	for i, e := range in {
		x, err := b.expr(e, clause)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func (b *builder) isAggregate(name string) bool {
	if _, ok := aggregateBuiltin(name); ok {
		return true
	}
	u, ok := b.udfs[name]
	return ok && u.Kind == ir.UdfAggregate
}
