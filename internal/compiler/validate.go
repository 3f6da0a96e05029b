package compiler

import (
	"fmt"

	"github.com/roach88/dtc/internal/ir"
)

// IR invariant error codes (E101-E199). E100 is the syntax error code.
const (
	ErrEdgeEndpoint     = "E101" // edge endpoint is not a node
	ErrRootMissing      = "E102" // root is not a node or edge
	ErrUnresolvedCall   = "E103" // call does not resolve to a builtin or UDF
	ErrNotConnected     = "E104" // pattern is not weakly connected
	ErrChainCoverage    = "E105" // chain does not cover every node exactly once
	ErrDuplicateName    = "E106" // node/edge name used twice
	ErrAggregationRef   = "E107" // aggregation target is not a variable
	ErrOptionalOrdering = "E108" // required level after an optional level
)

// ValidationError represents an IR invariant violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the structural invariants of a QueryIR.
// Returns all errors found (does not fail-fast).
//
// Build runs Validate on every IR it returns.
func Validate(q *ir.QueryIR) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool)
	for i, n := range q.Nodes {
		// E106: duplicate name
		if names[n.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("nodes[%d].name", i),
				Message: fmt.Sprintf("duplicate variable %q", n.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[n.Name] = true
	}
	nodeNames := make(map[string]bool, len(names))
	for n := range names {
		nodeNames[n] = true
	}

	for i, e := range q.Edges {
		if names[e.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("edges[%d].name", i),
				Message: fmt.Sprintf("duplicate variable %q", e.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[e.Name] = true

		// E101: endpoints exist
		for _, end := range []struct{ field, name string }{{"source", e.Source}, {"target", e.Target}} {
			if !nodeNames[end.name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("edges[%d].%s", i, end.field),
					Message: fmt.Sprintf("edge %q references unknown node %q", e.Name, end.name),
					Code:    ErrEdgeEndpoint,
				})
			}
		}
	}

	// E102: root exists
	if !names[q.Root.Var] {
		errs = append(errs, ValidationError{
			Field:   "root",
			Message: fmt.Sprintf("root %q is not a pattern variable", q.Root.Var),
			Code:    ErrRootMissing,
		})
	}

	// E104: weakly connected
	if comps := connectedComponents(q.Nodes, q.Edges); len(comps) > 1 {
		errs = append(errs, ValidationError{
			Field:   "edges",
			Message: fmt.Sprintf("pattern has %d components", len(comps)),
			Code:    ErrNotConnected,
		})
	}

	errs = append(errs, validateChain(q, nodeNames)...)
	errs = append(errs, validateCalls(q)...)

	// E107: aggregation target
	if t := q.Aggregation.Target; t != "" && !names[t] {
		errs = append(errs, ValidationError{
			Field:   "aggregation.target",
			Message: fmt.Sprintf("aggregation target %q is not a pattern variable", t),
			Code:    ErrAggregationRef,
		})
	}

	return errs
}

func validateChain(q *ir.QueryIR, nodeNames map[string]bool) []ValidationError {
	var errs []ValidationError

	// E105: chain covers every node once
	covered := make(map[string]bool, len(q.Chain))
	for i, l := range q.Chain {
		if !nodeNames[l.Node] || covered[l.Node] || l.Index != i {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("chain[%d]", i),
				Message: fmt.Sprintf("level %d binds %q out of place", l.Index, l.Node),
				Code:    ErrChainCoverage,
			})
		}
		covered[l.Node] = true

		// E108: optional levels form a suffix
		if i > 0 && q.Chain[i-1].Optional && !l.Optional {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("chain[%d].optional", i),
				Message: fmt.Sprintf("required level %q follows an optional level", l.Node),
				Code:    ErrOptionalOrdering,
			})
		}
	}
	if len(covered) != len(nodeNames) {
		errs = append(errs, ValidationError{
			Field:   "chain",
			Message: fmt.Sprintf("chain binds %d of %d nodes", len(covered), len(nodeNames)),
			Code:    ErrChainCoverage,
		})
	}
	return errs
}

// validateCalls checks that every function call resolves (E103).
func validateCalls(q *ir.QueryIR) []ValidationError {
	var errs []ValidationError

	check := func(field string, e ir.Expr) {
		for _, call := range ir.Calls(e) {
			if _, ok := LookupBuiltin(call.Func); ok {
				continue
			}
			if b, ok := q.UDF(call.Func); ok && b.Kind == ir.UdfScalar {
				continue
			}
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("call of %s does not resolve to a scalar function", call.Func),
				Code:    ErrUnresolvedCall,
			})
		}
	}

	for i, n := range q.Nodes {
		for j, p := range n.Predicates {
			check(fmt.Sprintf("nodes[%d].predicates[%d]", i, j), p)
		}
	}
	for i, e := range q.Edges {
		for j, p := range e.Predicates {
			check(fmt.Sprintf("edges[%d].predicates[%d]", i, j), p)
		}
	}
	for i, p := range q.Predicates {
		check(fmt.Sprintf("predicates[%d]", i), p)
	}
	for i, a := range q.Aggregation.Args {
		check(fmt.Sprintf("aggregation.args[%d]", i), a)
	}
	for i, k := range q.Aggregation.Keys {
		check(fmt.Sprintf("aggregation.keys[%d]", i), k.Expr)
	}

	if q.Aggregation.Kind == ir.AggUDF {
		if b, ok := q.UDF(q.Aggregation.Function); !ok || b.Kind != ir.UdfAggregate {
			errs = append(errs, ValidationError{
				Field:   "aggregation.function",
				Message: fmt.Sprintf("%s is not a declared aggregate UDF", q.Aggregation.Function),
				Code:    ErrUnresolvedCall,
			})
		}
	}
	return errs
}
