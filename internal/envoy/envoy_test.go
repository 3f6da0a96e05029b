package envoy

import (
	"go/parser"
	"go/token"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dtc/internal/codegen"
	"github.com/roach88/dtc/internal/compiler"
	"github.com/roach88/dtc/internal/cypher"
	"github.com/roach88/dtc/internal/render"
	"github.com/roach88/dtc/pkg/tracefilter"
)

var testConfig = tracefilter.Config{HeaderPrefix: "x-dtc-", QueueName: "dtc_accumulators", TraceCluster: "dtc_traces"}

const testQuery = `
MATCH (a:frontend)-[e]->(b)
WHERE e.response.code = 500 AND b.request.path = '/api/` + "`v2`" + `'
RETURN b.service.name, count(e)
`

func model(t *testing.T) *codegen.Model {
	t.Helper()
	q, err := cypher.Parse(testQuery, cypher.ParseOptions{Filename: "errors.cypher"})
	require.NoError(t, err)
	out, err := compiler.Build(q, compiler.BuildOptions{Root: "a"})
	require.NoError(t, err)
	m, err := codegen.New(out, nil)
	require.NoError(t, err)
	return m
}

// renderAll renders units and checks every output parses as a Go file of
// package main.
func renderAll(t *testing.T, units []render.Unit) []string {
	t.Helper()
	r := render.New("")
	out := make([]string, len(units))
	for i, u := range units {
		data, err := r.Render(u)
		require.NoError(t, err, u.Template)
		f, err := parser.ParseFile(token.NewFileSet(), u.Template, data, parser.ParseComments)
		require.NoError(t, err, u.Template)
		assert.Equal(t, "main", f.Name.Name)
		out[i] = string(data)
	}
	return out
}

func TestGenerate_RootOnly(t *testing.T) {
	m := model(t)
	out := Generate(m, Options{Source: "errors.cypher", Config: testConfig})
	require.NotNil(t, out.Root)
	assert.Nil(t, out.Hop)
	assert.Nil(t, out.Aggregation)
	assert.Equal(t, DefaultResultPath, out.Root.ResultPath)
	assert.Equal(t, 5*time.Second, out.Root.FetchDelay)

	units := out.Units()
	require.Len(t, units, 1)
	assert.Equal(t, render.RoleFilter, units[0].Role)
	assert.Equal(t, RootTemplate, units[0].Template)

	src := renderAll(t, units)[0]
	assert.True(t, strings.HasPrefix(src, "// Code generated by dtc. DO NOT EDIT.\n"))
	assert.Contains(t, src, "// backend:     envoy (root only), dtc ")
	assert.Contains(t, src, "fetchDelay   = 5000 * time.Millisecond")
	assert.Contains(t, src, "filterName = "+strconv.Quote(out.Root.PluginName))
	assert.Contains(t, src, "tracefilter.NewRootFilter(")
	assert.NotContains(t, src, "NewSidecar")
}

func TestGenerate_Distributed(t *testing.T) {
	m := model(t)
	out := Generate(m, Options{Source: "errors.cypher", Distributed: true, Config: testConfig})
	require.Nil(t, out.Root)
	require.NotNil(t, out.Hop)
	require.NotNil(t, out.Aggregation)

	assert.Equal(t, out.Aggregation.PluginName, out.Hop.AggregationName)
	assert.Equal(t, out.Hop.PluginName, out.Aggregation.FilterName)
	assert.NotEqual(t, out.Hop.ArtifactID, out.Aggregation.ArtifactID)
	assert.Regexp(t, `^dtc\.filter\.[0-9a-f]{8}$`, out.Hop.PluginName)
	assert.Regexp(t, `^dtc\.aggregation\.[0-9a-f]{8}$`, out.Aggregation.PluginName)

	units := out.Units()
	require.Len(t, units, 2)
	assert.Equal(t, render.RoleFilter, units[0].Role)
	assert.Equal(t, render.RoleAggregation, units[1].Role)

	src := renderAll(t, units)
	assert.Contains(t, src[0], "tracefilter.NewSidecar(plan, filterConfig, tracefilter.SharedQueue(filterConfig.QueueName), nil)")
	assert.Contains(t, src[0], `QueueName:    "dtc_accumulators",`)
	assert.Contains(t, src[0], "func main() {}")
	assert.Contains(t, src[1], `tracefilter.SharedQueue("dtc_accumulators")`)
	assert.NotContains(t, src[1], "func main()")

	// The plan literal survives a backquote in a query string.
	for _, s := range src {
		assert.Contains(t, s, "/api/\\u0060v2\\u0060")
	}
}

func TestGenerate_PlanRoundTrip(t *testing.T) {
	m := model(t)
	out := Generate(m, Options{Distributed: true, Config: testConfig})

	// The embedded literal decodes back to the same plan.
	prog, err := tracefilter.Load([]byte(out.Hop.Plan))
	require.NoError(t, err)
	assert.Equal(t, m.Plan, prog.Plan())
}

func TestGenerate_Deterministic(t *testing.T) {
	first := renderAll(t, Generate(model(t), Options{Source: "q", Distributed: true, Config: testConfig}).Units())
	second := renderAll(t, Generate(model(t), Options{Source: "q", Distributed: true, Config: testConfig}).Units())
	assert.Equal(t, first, second)
}

func TestPluginName(t *testing.T) {
	assert.Equal(t, "dtc.filter.0123abcd", PluginName(render.RoleFilter, "0123abcd-0000-5000-8000-000000000000"))
	assert.Equal(t, "dtc.aggregation.ab", PluginName(render.RoleAggregation, "ab"))
}

func TestOptions_Defaults(t *testing.T) {
	got := Options{ResultPath: "/x", FetchDelay: time.Second}.withDefaults()
	assert.Equal(t, "/x", got.ResultPath)
	assert.Equal(t, time.Second, got.FetchDelay)
	assert.Equal(t, 10*time.Second, got.FetchTimeout)
}
