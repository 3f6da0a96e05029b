package simulator

import (
	"strconv"

	"github.com/roach88/dtc/internal/codegen"
	"github.com/roach88/dtc/internal/render"
	"github.com/roach88/dtc/pkg/tracefilter"
)

// Templates used by the backend.
const (
	HarnessTemplate     = "sim_filter.go.tmpl"
	AggregationTemplate = "sim_aggregation.go.tmpl"
)

// Options control code emission.
type Options struct {
	// Source names the query in generated headers.
	Source string
	// Distributed is the default evaluation strategy of the harness; the
	// generated program can switch it with -distributed.
	Distributed bool
	Config      tracefilter.Config
	// AggregationFile is the file name of the aggregation output, for
	// comments. It defaults to aggr_filter.go.
	AggregationFile string
}

// Harness is the simulation program.
type Harness struct {
	Header          []string
	ArtifactID      string
	QueryID         string
	Plan            string
	Config          tracefilter.Config
	Distributed     bool
	AggregationFile string
}

// Unit implements the render boundary.
func (h Harness) Unit() render.Unit {
	return render.Unit{
		Role:     render.RoleFilter,
		Template: HarnessTemplate,
		Fields: render.Fields{
			"Header":          render.Comment(h.Header),
			"ArtifactID":      h.ArtifactID,
			"QueryID":         h.QueryID,
			"Plan":            h.Plan,
			"HeaderPrefix":    h.Config.HeaderPrefix,
			"QueueName":       h.Config.QueueName,
			"TraceCluster":    h.Config.TraceCluster,
			"Distributed":     strconv.FormatBool(h.Distributed),
			"AggregationFile": h.AggregationFile,
		},
	}
}

// Aggregation is the aggregation half of the harness.
type Aggregation struct {
	Header []string
	// Name is the aggregation as written in the query.
	Name string
}

// Unit implements the render boundary.
func (a Aggregation) Unit() render.Unit {
	return render.Unit{
		Role:     render.RoleAggregation,
		Template: AggregationTemplate,
		Fields: render.Fields{
			"Header":      render.Comment(a.Header),
			"Aggregation": a.Name,
		},
	}
}

// Output is the result of the backend.
type Output struct {
	Harness     Harness
	Aggregation Aggregation
}

// Units lists the files to render, harness first.
func (o Output) Units() []render.Unit {
	return []render.Unit{o.Harness.Unit(), o.Aggregation.Unit()}
}

// Generate lowers m into a simulation harness. The harness embeds the same
// plan as the Envoy filters, so both backends compute the same result.
func Generate(m *codegen.Model, opts Options) Output {
	if opts.AggregationFile == "" {
		opts.AggregationFile = "aggr_filter.go"
	}
	backend := "sim"
	if opts.Distributed {
		backend = "sim (distributed)"
	}
	return Output{
		Harness: Harness{
			Header:          m.Header(opts.Source, backend),
			ArtifactID:      m.ArtifactID("sim/" + string(render.RoleFilter)).String(),
			QueryID:         m.QueryID(),
			Plan:            m.PlanLiteral(),
			Config:          opts.Config,
			Distributed:     opts.Distributed,
			AggregationFile: opts.AggregationFile,
		},
		Aggregation: Aggregation{
			Header: m.Header(opts.Source, backend),
			Name:   m.Plan.Aggregation.Name,
		},
	}
}
