package simulator

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/dtc/internal/codegen"
	"github.com/roach88/dtc/internal/compiler"
	"github.com/roach88/dtc/internal/cypher"
	"github.com/roach88/dtc/internal/render"
	"github.com/roach88/dtc/pkg/tracefilter"
)

var testConfig = tracefilter.Config{HeaderPrefix: "x-dtc-", QueueName: "dtc_accumulators", TraceCluster: "dtc_traces"}

func model(t *testing.T, query, root string) *codegen.Model {
	t.Helper()
	q, err := cypher.Parse(query, cypher.ParseOptions{Filename: "test.cypher"})
	require.NoError(t, err)
	out, err := compiler.Build(q, compiler.BuildOptions{Root: root})
	require.NoError(t, err)
	m, err := codegen.New(out, nil)
	require.NoError(t, err)
	return m
}

func assertGolden(t *testing.T, r *Report) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, r.Scenario, []byte(r.Snapshot()))
}

func TestRun_Golden(t *testing.T) {
	tests := []struct {
		scenario    string
		query       string
		root        string
		distributed bool
	}{
		{
			scenario: "count_edge.yaml",
			query:    "MATCH (a)-[e]->(b) WHERE e.response.code = 500 RETURN count(e)",
			root:     "a",
		},
		{
			scenario: "histogram_depth.yaml",
			query: heredoc.Doc(`
				MATCH (a:frontend)
				OPTIONAL MATCH (a)-->(b)
				OPTIONAL MATCH (b)-->(c)
				RETURN histogram_depth(a)
			`),
			root:        "a",
			distributed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", "scenarios", tt.scenario))
			require.NoError(t, err)

			sim := New(testConfig,
				WithDistributed(tt.distributed),
				WithCheck(true),
				WithLogger(zaptest.NewLogger(t)),
			)
			report, err := sim.Run(model(t, tt.query, tt.root), s)
			require.NoError(t, err)
			assert.True(t, report.Checked)
			assertGolden(t, report)
		})
	}
}

func TestRun_Expectation(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "count_edge.yaml"))
	require.NoError(t, err)

	// Attached to the caller node the predicate only holds in t2.
	m := model(t, "MATCH (a)-[e]->(b) WHERE a.response.code = 500 RETURN count(e)", "a")
	report, err := New(testConfig).Run(m, s)
	require.NotNil(t, report)
	assert.Equal(t, []string{"1"}, report.Result.Lines())
	assert.False(t, report.Checked)

	var exp *ExpectationError
	require.ErrorAs(t, err, &exp)
	assert.Equal(t, []string{"2"}, exp.Want)
	assert.Equal(t, []string{"1"}, exp.Got)
}

func TestRun_NoExpectation(t *testing.T) {
	s, err := ParseScenario([]byte(heredoc.Doc(`
		name: grouped
		traces:
		  - spans:
		      - {id: a, attributes: {service.name: A}}
		      - {id: b, parent: a, attributes: {service.name: B}}
		      - {id: c, parent: a, attributes: {service.name: C}}
	`)))
	require.NoError(t, err)

	m := model(t, "MATCH (a:A)-[e]->(b) RETURN b.service.name, count(e)", "a")
	report, err := New(testConfig, WithDistributed(true), WithCheck(true)).Run(m, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"B => 1", "C => 1"}, report.Result.Lines())
	assert.Equal(t, "distributed", report.Mode())
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: x\ntrace: []\n", "field trace not found"},
		{"no name", "traces: [{spans: [{id: a}]}]\n", "name is required"},
		{"no traces", "name: x\n", "traces list is required"},
		{"no spans", "name: x\ntraces: [{id: t}]\n", "traces[0]: spans list is required"},
		{"no span id", "name: x\ntraces: [{spans: [{parent: a}]}]\n", "traces[0].spans[0]: id is required"},
		{"duplicate span", "name: x\ntraces: [{spans: [{id: a}, {id: a}]}]\n", `duplicate span id "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestScenario_SyntheticTraceIDs(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "histogram_depth.yaml"))
	require.NoError(t, err)

	traces := s.Traces()
	require.Len(t, traces, 3)
	assert.Equal(t, TraceID("histogram-depth", 0), traces[0].ID)
	assert.NotEqual(t, traces[0].ID, traces[1].ID)
	assert.Equal(t, traces, s.Traces())
	assert.Regexp(t, `^[0-9a-f-]{36}$`, traces[2].ID)
}

func TestGenerate(t *testing.T) {
	m := model(t, "MATCH (a)-[e]->(b) WHERE e.response.code = 500 RETURN count(e)", "a")
	out := Generate(m, Options{Source: "errors.cypher", Distributed: true, Config: testConfig})

	units := out.Units()
	require.Len(t, units, 2)
	assert.Equal(t, render.RoleFilter, units[0].Role)
	assert.Equal(t, render.RoleAggregation, units[1].Role)
	assert.Equal(t, "aggr_filter.go", out.Harness.AggregationFile)
	assert.Equal(t, "count(e)", out.Aggregation.Name)

	r := render.New("")
	var src []string
	for _, u := range units {
		data, err := r.Render(u)
		require.NoError(t, err)
		f, err := parser.ParseFile(token.NewFileSet(), u.Template, data, parser.ParseComments)
		require.NoError(t, err)
		assert.Equal(t, "main", f.Name.Name)
		src = append(src, string(data))
	}
	assert.Contains(t, src[0], `flag.Bool("distributed", true,`)
	assert.Contains(t, src[0], "plan.Replay(traces, *distributed, simConfig, agg)")
	assert.Contains(t, src[0], "// backend:     sim (distributed), dtc ")
	assert.Contains(t, src[1], "func newAggregator(prog *tracefilter.Program) *tracefilter.Aggregator {")
	assert.Contains(t, src[1], "// Aggregation half of the simulation harness: count(e).")
}

// The harness embeds the very plan the Envoy backend embeds.
func TestGenerate_SharesPlan(t *testing.T) {
	m := model(t, "MATCH (a)-[e]->(b) RETURN count(*)", "b")
	out := Generate(m, Options{Config: testConfig})
	assert.Equal(t, m.PlanLiteral(), out.Harness.Plan)
	assert.False(t, out.Harness.Distributed)
}
