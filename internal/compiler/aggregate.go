package compiler

import (
	"fmt"
	"strings"
	"text/scanner"

	"github.com/roach88/dtc/internal/cypher"
	"github.com/roach88/dtc/internal/ir"
)

// aggregation builds the AggregationSpec of the RETURN clause. At most one
// item may be an aggregation call; every other item is a grouping key.
func (b *builder) aggregation(ret *cypher.ReturnClause) (ir.AggregationSpec, error) {
	var (
		spec    ir.AggregationSpec
		found   string
		columns = make(map[string]bool)
	)

	for _, item := range ret.Items {
		if call, ok := item.Expr.(*cypher.FunctionCall); ok && b.isAggregate(call.Name) {
			if found != "" {
				return ir.AggregationSpec{}, &IncompatibleAggregationError{
					Reason: fmt.Sprintf("RETURN combines aggregations %s and %s; at most one aggregation is supported", found, call.Name),
					Pos:    call.Pos,
				}
			}
			found = call.Name

			agg, err := b.aggregateCall(call)
			if err != nil {
				return ir.AggregationSpec{}, err
			}
			if item.Alias != "" {
				agg.Name = item.Alias
			}
			if columns[agg.Name] {
				return ir.AggregationSpec{}, duplicateColumn(agg.Name, call.Pos)
			}
			columns[agg.Name] = true
			agg.Keys = spec.Keys
			spec = agg
			continue
		}

		key, err := b.expr(item.Expr, "RETURN")
		if err != nil {
			return ir.AggregationSpec{}, err
		}
		if _, err := typeOf(key, item.Expr.Position()); err != nil {
			return ir.AggregationSpec{}, err
		}
		name := item.Alias
		if name == "" {
			name = ir.FormatExpr(key)
		}
		if columns[name] {
			return ir.AggregationSpec{}, duplicateColumn(name, item.Expr.Position())
		}
		columns[name] = true
		spec.Keys = append(spec.Keys, ir.GroupKey{Name: name, Expr: key})
	}

	if found == "" {
		spec.Kind = ir.AggCollect
		spec.Name = "count"
		if columns[spec.Name] {
			spec.Name = "_count"
		}
	}
	return spec, nil
}

func (b *builder) aggregateCall(call *cypher.FunctionCall) (ir.AggregationSpec, error) {
	if call.Distinct {
		return ir.AggregationSpec{}, &IncompatibleAggregationError{
			Reason: fmt.Sprintf("DISTINCT is not supported in %s", call.Name),
			Pos:    call.Pos,
		}
	}

	fn, builtin := aggregateBuiltin(call.Name)
	if !builtin {
		return b.aggregateUDF(call)
	}

	if call.Star {
		if fn != FuncCount {
			return ir.AggregationSpec{}, &TypeError{Msg: fmt.Sprintf("%s(*) is not supported", fn), Pos: call.Pos}
		}
		return ir.AggregationSpec{Kind: ir.AggCount, Name: "count(*)"}, nil
	}
	if len(call.Args) != 1 {
		return ir.AggregationSpec{}, &TypeError{
			Msg: fmt.Sprintf("%s expects 1 argument, got %d", fn, len(call.Args)),
			Pos: call.Pos,
		}
	}
	arg := call.Args[0]

	switch fn {
	case FuncCount:
		if v, ok := arg.(*cypher.Variable); ok {
			if !b.isVariable(v.Name) {
				return ir.AggregationSpec{}, &UnknownVariableError{Name: v.Name, Pos: v.Pos}
			}
			return ir.AggregationSpec{Kind: ir.AggCount, Target: v.Name, Name: fn + "(" + v.Name + ")"}, nil
		}
		x, err := b.expr(arg, "RETURN")
		if err != nil {
			return ir.AggregationSpec{}, err
		}
		if _, err := typeOf(x, arg.Position()); err != nil {
			return ir.AggregationSpec{}, err
		}
		return ir.AggregationSpec{Kind: ir.AggCount, Args: []ir.Expr{x}, Name: fn + "(" + ir.FormatExpr(x) + ")"}, nil

	case FuncAvg:
		x, err := b.expr(arg, "RETURN")
		if err != nil {
			return ir.AggregationSpec{}, err
		}
		t, err := typeOf(x, arg.Position())
		if err != nil {
			return ir.AggregationSpec{}, err
		}
		if !isNumeric(t) {
			return ir.AggregationSpec{}, &TypeError{
				Msg: fmt.Sprintf("avg needs a numeric input, %s has type %s", ir.FormatExpr(x), t),
				Pos: arg.Position(),
			}
		}
		return ir.AggregationSpec{Kind: ir.AggAverage, Args: []ir.Expr{x}, Name: fn + "(" + ir.FormatExpr(x) + ")"}, nil

	default:
		v, ok := arg.(*cypher.Variable)
		if !ok {
			return ir.AggregationSpec{}, &TypeError{Msg: fmt.Sprintf("%s expects a pattern variable", fn), Pos: arg.Position()}
		}
		if !b.isVariable(v.Name) {
			return ir.AggregationSpec{}, &UnknownVariableError{Name: v.Name, Pos: v.Pos}
		}
		kind := ir.AggHistogramDepth
		if fn == FuncHistogramBreadth {
			kind = ir.AggHistogramBreadth
			// Breadth is only known once a hop has seen its child responses.
			if l := b.levelOf(v.Name); l < b.rootLevel {
				return ir.AggregationSpec{}, &IncompatibleAggregationError{
					Reason: fmt.Sprintf("%s(%s): %s is above root level %d; breadth is only observed at or below the root",
						fn, v.Name, v.Name, b.rootLevel),
					Pos: call.Pos,
				}
			}
		}
		return ir.AggregationSpec{Kind: kind, Target: v.Name, Name: fn + "(" + v.Name + ")"}, nil
	}
}

// aggregateUDF builds a user-defined aggregation. Arity is checked later by
// the codegen binder against the UDF declaration.
func (b *builder) aggregateUDF(call *cypher.FunctionCall) (ir.AggregationSpec, error) {
	if call.Star {
		return ir.AggregationSpec{}, &TypeError{Msg: fmt.Sprintf("%s(*) is not supported", call.Name), Pos: call.Pos}
	}
	args, err := b.exprs(call.Args, "RETURN")
	if err != nil {
		return ir.AggregationSpec{}, err
	}
	for i, a := range args {
		if _, err := typeOf(a, call.Args[i].Position()); err != nil {
			return ir.AggregationSpec{}, err
		}
	}
	b.usedUDF[call.Name] = true

	rendered := make([]string, len(args))
	for i, a := range args {
		rendered[i] = ir.FormatExpr(a)
	}
	return ir.AggregationSpec{
		Kind:     ir.AggUDF,
		Function: call.Name,
		Args:     args,
		Name:     call.Name + "(" + strings.Join(rendered, ", ") + ")",
	}, nil
}

func (b *builder) levelOf(name string) int {
	for _, l := range b.chain {
		if l.Node == name || (l.Edge != "" && l.Edge == name) {
			return l.Index
		}
	}
	return 0
}

func duplicateColumn(name string, pos scanner.Position) error {
	return &TypeError{Msg: fmt.Sprintf("duplicate RETURN column %q; use AS to rename", name), Pos: pos}
}
