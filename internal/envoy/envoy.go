// Package envoy is the proxy-target backend. It emits Envoy Go HTTP filters
// built on pkg/tracefilter.
//
// In non-distributed mode a single root-only filter is emitted. It matches
// assembled traces centrally. In distributed mode the backend emits the
// per-hop propagating filter and the aggregation filter that merges
// completed matches at the root.
package envoy

import (
	"strconv"
	"time"

	"github.com/roach88/dtc/internal/codegen"
	"github.com/roach88/dtc/internal/render"
	"github.com/roach88/dtc/pkg/tracefilter"
)

// Templates used by the backend.
const (
	RootTemplate        = "envoy_root.go.tmpl"
	FilterTemplate      = "envoy_filter.go.tmpl"
	AggregationTemplate = "envoy_aggregation.go.tmpl"
)

// DefaultResultPath is where generated filters serve the aggregate.
const DefaultResultPath = "/dtc/result"

// Options control code emission.
type Options struct {
	// Source names the query in generated headers.
	Source      string
	Distributed bool
	Config      tracefilter.Config
	// ResultPath defaults to DefaultResultPath.
	ResultPath string
	// FetchDelay and FetchTimeout bound trace fetches of the root-only
	// filter. They default to 5s and 10s.
	FetchDelay   time.Duration
	FetchTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ResultPath == "" {
		o.ResultPath = DefaultResultPath
	}
	if o.FetchDelay == 0 {
		o.FetchDelay = 5 * time.Second
	}
	if o.FetchTimeout == 0 {
		o.FetchTimeout = 10 * time.Second
	}
	return o
}

// Source is the part every generated filter shares: the plan and its
// identity.
type Source struct {
	Header     []string
	PluginName string
	ArtifactID string
	QueryID    string
	Plan       string
	Config     tracefilter.Config
	ResultPath string
}

func (s Source) fields() render.Fields {
	return render.Fields{
		"Header":       render.Comment(s.Header),
		"PluginName":   s.PluginName,
		"ArtifactID":   s.ArtifactID,
		"QueryID":      s.QueryID,
		"Plan":         s.Plan,
		"HeaderPrefix": s.Config.HeaderPrefix,
		"QueueName":    s.Config.QueueName,
		"TraceCluster": s.Config.TraceCluster,
		"ResultPath":   s.ResultPath,
	}
}

// RootFilter is the non-distributed filter.
type RootFilter struct {
	Source
	FetchDelay   time.Duration
	FetchTimeout time.Duration
}

// Unit implements the render boundary.
func (f RootFilter) Unit() render.Unit {
	fields := f.fields()
	fields["FetchDelayMillis"] = strconv.FormatInt(f.FetchDelay.Milliseconds(), 10)
	fields["FetchTimeoutMillis"] = strconv.FormatInt(f.FetchTimeout.Milliseconds(), 10)
	return render.Unit{Role: render.RoleFilter, Template: RootTemplate, Fields: fields}
}

// HopFilter is the distributed per-hop filter.
type HopFilter struct {
	Source
	// AggregationName is the plugin name of the companion aggregation
	// filter.
	AggregationName string
}

// Unit implements the render boundary.
func (f HopFilter) Unit() render.Unit {
	fields := f.fields()
	fields["AggregationName"] = f.AggregationName
	return render.Unit{Role: render.RoleFilter, Template: FilterTemplate, Fields: fields}
}

// AggregationFilter merges completed matches at the root.
type AggregationFilter struct {
	Source
	// FilterName is the plugin name of the companion hop filter.
	FilterName string
}

// Unit implements the render boundary.
func (f AggregationFilter) Unit() render.Unit {
	fields := f.fields()
	fields["FilterName"] = f.FilterName
	return render.Unit{Role: render.RoleAggregation, Template: AggregationTemplate, Fields: fields}
}

// Output is the result of the backend: exactly one of Root and Hop is set,
// and Aggregation is set with Hop.
type Output struct {
	Root        *RootFilter
	Hop         *HopFilter
	Aggregation *AggregationFilter
}

// Units lists the files to render, primary output first.
func (o Output) Units() []render.Unit {
	if o.Root != nil {
		return []render.Unit{o.Root.Unit()}
	}
	return []render.Unit{o.Hop.Unit(), o.Aggregation.Unit()}
}

// Generate lowers m for Envoy.
func Generate(m *codegen.Model, opts Options) Output {
	opts = opts.withDefaults()
	source := func(role render.Role, backend string) Source {
		id := m.ArtifactID("envoy/" + string(role))
		return Source{
			Header:     m.Header(opts.Source, backend),
			PluginName: PluginName(role, id.String()),
			ArtifactID: id.String(),
			QueryID:    m.QueryID(),
			Plan:       m.PlanLiteral(),
			Config:     opts.Config,
			ResultPath: opts.ResultPath,
		}
	}

	if !opts.Distributed {
		return Output{Root: &RootFilter{
			Source:       source(render.RoleFilter, "envoy (root only)"),
			FetchDelay:   opts.FetchDelay,
			FetchTimeout: opts.FetchTimeout,
		}}
	}

	hop := &HopFilter{Source: source(render.RoleFilter, "envoy (distributed)")}
	aggr := &AggregationFilter{Source: source(render.RoleAggregation, "envoy (distributed aggregation)")}
	hop.AggregationName = aggr.PluginName
	aggr.FilterName = hop.PluginName
	return Output{Hop: hop, Aggregation: aggr}
}

// PluginName is the Envoy filter name of an artifact: its role and the
// first eight hex digits of its id.
func PluginName(role render.Role, artifactID string) string {
	short := artifactID
	if len(short) > 8 {
		short = short[:8]
	}
	return "dtc." + string(role) + "." + short
}
