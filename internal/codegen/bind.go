package codegen

import (
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"github.com/roach88/dtc/internal/compiler"
	"github.com/roach88/dtc/internal/ir"
	"github.com/roach88/dtc/internal/udf"
)

// UdfSignatureMismatchError is returned when a UDF is called with a
// different number of arguments than its definition declares.
type UdfSignatureMismatchError struct {
	Name     string
	Declared int
	Got      int
	// Site names the clause of the call: "WHERE", "RETURN" or
	// "aggregation".
	Site string
}

func (e *UdfSignatureMismatchError) Semantic() *compiler.SemanticError {
	return &compiler.SemanticError{
		Code: compiler.ErrUdfSignatureMismatch,
		Msg: fmt.Sprintf("udf %s declares %d parameter(s) but is called with %d argument(s) in %s",
			e.Name, e.Declared, e.Got, e.Site),
	}
}

func (e *UdfSignatureMismatchError) Error() string      { return e.Semantic().Error() }
func (e *UdfSignatureMismatchError) As(target any) bool { return compiler.AsSemantic(e, target) }

// useSite is one call of a UDF in the query.
type useSite struct {
	name string
	args int
	site string
}

// BindUDFs matches every UDF the query references against its definition.
// Each missing definition and each arity mismatch is reported; the errors
// are combined with multierr. The returned definitions are in the order of
// q.UDFs.
func BindUDFs(q *ir.QueryIR, defs []udf.Definition) ([]udf.Definition, error) {
	byName := make(map[string]udf.Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	var (
		errs  error
		bound = make([]udf.Definition, 0, len(q.UDFs))
	)
	for _, b := range q.UDFs {
		d, ok := byName[b.Name]
		if !ok {
			errs = multierr.Append(errs, &compiler.UnknownFunctionError{Name: b.Name})
			continue
		}
		if d.Kind != b.Kind || !slices.Equal(d.Params, b.Params) {
			errs = multierr.Append(errs, &UdfSignatureMismatchError{
				Name:     b.Name,
				Declared: len(d.Params),
				Got:      b.Arity(),
				Site:     "declaration",
			})
			continue
		}
		bound = append(bound, d)
	}

	for _, use := range useSites(q) {
		d, ok := byName[use.name]
		if !ok || len(d.Params) == use.args {
			continue
		}
		errs = multierr.Append(errs, &UdfSignatureMismatchError{
			Name:     use.name,
			Declared: len(d.Params),
			Got:      use.args,
			Site:     use.site,
		})
	}

	if errs != nil {
		return nil, errs
	}
	return bound, nil
}

// useSites lists every UDF call of q: predicates first, then the RETURN
// clause.
func useSites(q *ir.QueryIR) []useSite {
	udfs := make(map[string]bool, len(q.UDFs))
	for _, b := range q.UDFs {
		udfs[b.Name] = true
	}

	var sites []useSite
	visit := func(e ir.Expr, site string) {
		for _, c := range ir.Calls(e) {
			if udfs[c.Func] {
				sites = append(sites, useSite{name: c.Func, args: len(c.Args), site: site})
			}
		}
	}

	for _, n := range q.Nodes {
		for _, p := range n.Predicates {
			visit(p, "WHERE")
		}
	}
	for _, e := range q.Edges {
		for _, p := range e.Predicates {
			visit(p, "WHERE")
		}
	}
	for _, p := range q.Predicates {
		visit(p, "WHERE")
	}

	agg := q.Aggregation
	if agg.Kind == ir.AggUDF {
		sites = append(sites, useSite{name: agg.Function, args: len(agg.Args), site: "aggregation"})
	}
	for _, a := range agg.Args {
		visit(a, "aggregation")
	}
	for _, k := range agg.Keys {
		visit(k.Expr, "RETURN")
	}
	return sites
}
