package tracefilter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callTraces() []Trace {
	return []Trace{
		trace("t1",
			span("fe1", "", "service.name", "frontend"),
			span("cart1", "fe1", "service.name", "cart", "duration", 10),
			span("db1", "fe1", "service.name", "db", "duration", 20),
		),
		trace("t2",
			span("fe2", "", "service.name", "frontend"),
			span("db2", "fe2", "service.name", "db", "duration", "slow"),
		),
	}
}

func callPlan(agg Aggregation, udfs ...UDF) *Plan {
	return &Plan{
		Query: 100,
		Levels: []Level{
			level(0, "a", "", `v_a["service.name"] == "frontend"`, false),
			level(1, "b", "e", "", false, "service.name", "duration"),
		},
		Aggregation: agg,
		UDFs:        udfs,
	}
}

func TestAggregator_Kinds(t *testing.T) {
	duration := `v_b["duration"]`
	service := Key{Name: "b.service.name", Code: `v_b["service.name"]`}

	tests := []struct {
		name string
		agg  Aggregation
		want []string
	}{
		{
			name: "count star",
			agg:  Aggregation{Kind: AggCount, Name: "count(*)", Level: -1},
			want: []string{"3"},
		},
		{
			name: "count expression skips nulls",
			agg:  Aggregation{Kind: AggCount, Name: "count(b.missing)", Level: -1, Args: []string{`v_b["missing"]`}},
			want: []string{"0"},
		},
		{
			name: "avg ignores non-numeric",
			agg:  Aggregation{Kind: AggAverage, Name: "avg(b.duration)", Level: -1, Args: []string{duration}},
			want: []string{"15"},
		},
		{
			name: "grouped count",
			agg:  Aggregation{Kind: AggCount, Name: "count(*)", Level: -1, Keys: []Key{service}},
			want: []string{`"cart" => 1`, `"db" => 2`},
		},
		{
			name: "collect",
			agg:  Aggregation{Kind: AggCollect, Name: "count", Level: -1, Keys: []Key{service}},
			want: []string{`"cart" => 1`, `"db" => 2`},
		},
		{
			name: "breadth",
			agg:  Aggregation{Kind: AggHistogramBreadth, Name: "histogram_breadth(b)", Level: 1},
			want: []string{"{0: 3}"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustCompile(t, callPlan(tt.agg))
			res := evaluateBoth(t, prog, callTraces()...)
			assert.Equal(t, tt.want, res.Lines())
		})
	}
}

func TestAggregator_EmptyResults(t *testing.T) {
	tests := []struct {
		name string
		agg  Aggregation
		want []string
	}{
		{"count", Aggregation{Kind: AggCount, Name: "count(*)", Level: -1}, []string{"0"}},
		{"avg", Aggregation{Kind: AggAverage, Name: "avg(b.duration)", Level: -1, Args: []string{`v_b["duration"]`}}, []string{"null"}},
		{"histogram", Aggregation{Kind: AggHistogramDepth, Name: "histogram_depth(a)", Level: 0}, []string{"{}"}},
		{"collect", Aggregation{Kind: AggCollect, Name: "count", Level: -1, Keys: []Key{{Name: "k", Code: `v_a["name"]`}}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustCompile(t, callPlan(tt.agg))
			assert.Equal(t, tt.want, NewAggregator(prog).Result().Lines())
		})
	}
}

func TestAggregator_AggregateUDF(t *testing.T) {
	total := UDF{Name: "total", Ident: "udf_total", Params: []string{"x"}, Kind: KindAggregate, Init: "0", Body: "acc + x"}
	prog := mustCompile(t, callPlan(Aggregation{
		Kind:     AggUDF,
		Name:     "total(b.duration)",
		Level:    -1,
		Function: "total",
		Args:     []string{`v_b["duration"]`},
	}, total))

	// "slow" makes the fold fail; the running value is kept.
	res := evaluateBoth(t, prog, callTraces()...)
	assert.Equal(t, []string{"30"}, res.Lines())
}

func TestAggregator_ScalarUDF(t *testing.T) {
	bucket := UDF{Name: "bucket", Ident: "udf_bucket", Params: []string{"d", "w"}, Kind: KindScalar, Body: "d - d % w"}
	p := callPlan(Aggregation{Kind: AggCount, Name: "count(*)", Level: -1}, bucket)
	p.Levels[1].Predicate = `udf_bucket(v_b["duration"], 10) == 20`

	res := evaluateBoth(t, mustCompile(t, p), callTraces()...)
	assert.Equal(t, []string{"1"}, res.Lines())
}

func TestAggregator_ConcurrentAdd(t *testing.T) {
	prog := mustCompile(t, callPlan(Aggregation{Kind: AggCount, Name: "count(*)", Level: -1}))
	agg := NewAggregator(prog)

	m := Accumulator{}.Extend(Binding{Level: 0, Span: "a"}).Extend(Binding{Level: 1, Span: "b"})
	var wg sync.WaitGroup
	for it := 0; it < 8; it++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := 0; it < 100; it++ {
				agg.Add(m)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"800"}, agg.Result().Lines())
}

func TestCompile_UnknownAggregateUDF(t *testing.T) {
	_, err := Compile(callPlan(Aggregation{Kind: AggUDF, Name: "p99(x)", Level: -1, Function: "p99"}))
	require.Error(t, err)
}
