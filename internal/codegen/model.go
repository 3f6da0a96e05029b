// Package codegen holds the backend-independent half of code generation.
//
// Both backends start from the Model built here: UDF calls are bound to
// their definitions, pattern variables are mangled into identifiers and
// every predicate, aggregation input and grouping key is lowered into
// expression code over those identifiers. Backends only decide how the
// resulting plan is executed, never what it computes.
package codegen

import (
	"bytes"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/roach88/dtc/internal/ir"
	"github.com/roach88/dtc/internal/udf"
	"github.com/roach88/dtc/pkg/tracefilter"
)

// Model is the shared code generation model of one query.
type Model struct {
	IR   *ir.QueryIR
	Plan *tracefilter.Plan
	// PlanJSON is the indented JSON form of Plan embedded in generated
	// code.
	PlanJSON []byte
	// QueryFingerprint identifies the query alone; Plan.Fingerprint also
	// covers the UDF bodies.
	QueryFingerprint string
	// Idents maps prefixed source names to generated identifiers.
	Idents map[string]string
}

// New binds UDFs, lowers q and checks that the resulting plan compiles.
//
// UDF signature mismatches are reported before anything is lowered.
func New(q *ir.QueryIR, defs []udf.Definition) (*Model, error) {
	bound, err := BindUDFs(q, defs)
	if err != nil {
		return nil, err
	}

	queryFP, err := ir.Fingerprint(q)
	if err != nil {
		return nil, err
	}
	planFP, err := planFingerprint(queryFP, bound)
	if err != nil {
		return nil, err
	}

	m := NewMangler()
	plan, err := newPlanner(q, bound, m).plan(planFP)
	if err != nil {
		return nil, errors.Wrap(err, "plan")
	}
	if _, err := tracefilter.Compile(plan); err != nil {
		return nil, errors.Wrap(err, "check plan")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan); err != nil {
		return nil, errors.Wrap(err, "encode plan")
	}

	return &Model{
		IR:               q,
		Plan:             plan,
		PlanJSON:         bytes.TrimSpace(buf.Bytes()),
		QueryFingerprint: queryFP,
		Idents:           m.Idents(),
	}, nil
}

func planFingerprint(queryFP string, defs []udf.Definition) (string, error) {
	udfs := make(ir.Array, len(defs))
	for i, d := range defs {
		udfs[i] = ir.NewObject(
			ir.O("name", ir.String(d.Name)),
			ir.O("params", ir.Strings(d.Params)),
			ir.O("kind", ir.String(d.Kind)),
			ir.O("init", ir.String(d.Init)),
			ir.O("body", ir.String(d.Body)),
		)
	}
	return ir.HashCanonical(ir.DomainPlan, ir.NewObject(
		ir.O("query", ir.String(queryFP)),
		ir.O("udfs", udfs),
	))
}
