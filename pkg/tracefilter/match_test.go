package tracefilter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countPlan(edgePred, nodePred string) *Plan {
	return &Plan{
		Query: 42,
		Levels: []Level{
			level(0, "a", "", nodePred, false),
			level(1, "b", "e", edgePred, false),
		},
		Root:        0,
		Aggregation: Aggregation{Kind: AggCount, Name: "count(e)", Level: 1},
	}
}

func statusTraces() []Trace {
	return []Trace{
		trace("t1",
			span("A1", "", "service.name", "A", "response.code", 200),
			span("B1", "A1", "service.name", "B", "response.code", 500),
		),
		trace("t2",
			span("A2", "", "service.name", "A", "response.code", 500),
			span("B2", "A2", "service.name", "B", "response.code", 500),
		),
	}
}

func TestEvaluate_CountAttachment(t *testing.T) {
	tests := []struct {
		name     string
		edgePred string
		nodePred string
		want     string
	}{
		{"edge predicate", `v_e["response.code"] == 500`, "", "2"},
		{"node predicate", "", `v_a["response.code"] == 500`, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustCompile(t, countPlan(tt.edgePred, tt.nodePred))
			res := evaluateBoth(t, prog, statusTraces()...)
			assert.Equal(t, []string{tt.want}, res.Lines())
			assert.Equal(t, []string{"count(e)"}, res.Columns)
		})
	}
}

func TestEvaluate_HistogramDepth(t *testing.T) {
	prog := mustCompile(t, &Plan{
		Query: 7,
		Levels: []Level{
			level(0, "a", "", `v_a["service.name"] == "frontend"`, false),
			level(1, "b", "_e1", "", true),
			level(2, "c", "_e2", "", true),
		},
		Aggregation: Aggregation{Kind: AggHistogramDepth, Name: "histogram_depth(a)", Level: 0},
	})

	res := evaluateBoth(t, prog,
		trace("t1", span("f1", "", "service.name", "frontend")),
		trace("t2",
			span("f2", "", "service.name", "frontend"),
			span("c2", "f2", "service.name", "cart"),
		),
		trace("t3",
			span("f3", "", "service.name", "frontend"),
			span("c3", "f3", "service.name", "cart"),
			span("d3", "c3", "service.name", "db"),
		),
	)
	assert.Equal(t, []string{"{1: 1, 2: 1, 3: 1}"}, res.Lines())
}

func TestEvaluate_RootInTheMiddle(t *testing.T) {
	prog := mustCompile(t, &Plan{
		Query: 9,
		Levels: []Level{
			level(0, "a", "", `v_a["service.name"] == "frontend"`, false, "request.size"),
			level(1, "b", "e1", `v_b["service.name"] == "cart"`, false),
			level(2, "c", "e2", `v_c["service.name"] == "db"`, false, "response.size"),
		},
		Root:        1,
		Filter:      `v_a["request.size"] < v_c["response.size"]`,
		Aggregation: Aggregation{Kind: AggHistogramBreadth, Name: "histogram_breadth(b)", Level: 1},
	})

	res := evaluateBoth(t, prog, trace("t1",
		span("fe", "", "service.name", "frontend", "request.size", 10),
		span("cart1", "fe", "service.name", "cart"),
		span("db1", "cart1", "service.name", "db", "response.size", 100),
		span("db2", "cart1", "service.name", "db", "response.size", 200),
		span("db3", "cart1", "service.name", "db", "response.size", 5),
		span("cache", "cart1", "service.name", "cache"),
		span("cart2", "fe", "service.name", "cart"),
	))
	// db3 fails the filter, cart2 has no db child.
	assert.Equal(t, []string{"{4: 2}"}, res.Lines())
}

func TestMatchTrace_OptionalLevelsBindMaximally(t *testing.T) {
	prog := mustCompile(t, &Plan{
		Query: 1,
		Levels: []Level{
			level(0, "a", "", `v_a["service.name"] == "frontend"`, false),
			level(1, "b", "_e1", `v_b["service.name"] == "cart"`, true),
		},
		Aggregation: Aggregation{Kind: AggCount, Name: "count(*)", Level: -1},
	})

	matches := prog.MatchTrace(trace("t",
		span("fe", "", "service.name", "frontend"),
		span("c1", "fe", "service.name", "cart"),
		span("c2", "fe", "service.name", "cart"),
		span("db", "fe", "service.name", "db"),
	))
	SortMatches(matches)

	var keys []string
	for _, m := range matches {
		keys = append(keys, m.Key())
	}
	// No match stops at fe while a cart child exists.
	assert.Equal(t, []string{"0=fe 1=c1", "0=fe 1=c2"}, keys)
}

func TestPropagate_SameMatchesAsMatchTrace(t *testing.T) {
	prog := mustCompile(t, &Plan{
		Query: 3,
		Levels: []Level{
			level(0, "a", "", "", false, "service.name"),
			level(1, "b", "e", "", false),
			level(2, "c", "f", "", true, "service.name"),
		},
		Root:        1,
		Aggregation: Aggregation{Kind: AggCount, Name: "count(*)", Level: -1},
	})

	tr := trace("t",
		span("1", "", "service.name", "gw"),
		span("2", "1", "service.name", "api"),
		span("3", "2", "service.name", "svc"),
		span("4", "3", "service.name", "db"),
		span("5", "2", "service.name", "cache"),
	)

	central := prog.MatchTrace(tr)
	distributed := prog.Propagate(tr, testConfig)
	SortMatches(central)
	SortMatches(distributed)
	require.NotEmpty(t, central)

	// Bindings above the root carry no breadth on the request leg.
	strip := cmp.Transformer("breadth", func(b Binding) Binding {
		b.Breadth = 0
		return b
	})
	if diff := cmp.Diff(central, distributed, strip); diff != "" {
		t.Errorf("matches differ (-central +distributed):\n%s", diff)
	}
}

func TestPropagate_IgnoresOtherQueries(t *testing.T) {
	prog := mustCompile(t, &Plan{
		Query: 5,
		Levels: []Level{
			level(0, "a", "", "", false),
			level(1, "b", "e", "", false),
		},
		Root:        1,
		Aggregation: Aggregation{Kind: AggCount, Name: "count(*)", Level: -1},
	})

	foreign := AccumulatorSet{Query: 6, Accumulators: []Accumulator{
		Accumulator{}.Extend(Binding{Level: 0, Span: "elsewhere"}),
	}}
	_, arrived := prog.Down(foreign, span("x", ""))
	assert.Empty(t, arrived)
}

func TestEvaluate_PredicateErrorsAreNonMatches(t *testing.T) {
	prog := mustCompile(t, &Plan{
		Query: 11,
		Levels: []Level{
			level(0, "a", "", `v_a["request.path"] startsWith "/api"`, false),
		},
		Aggregation: Aggregation{Kind: AggCount, Name: "count(*)", Level: -1},
	})

	res := evaluateBoth(t, prog,
		trace("t1", span("1", "", "request.path", "/api/cart")),
		trace("t2", span("2", "")),
		trace("t3", span("3", "", "request.path", 12)),
	)
	assert.Equal(t, []string{"1"}, res.Lines())
}
