package tracefilter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testConfig = Config{HeaderPrefix: "x-dtc-", QueueName: "dtc_accumulators", TraceCluster: "dtc_traces"}

func mustCompile(t *testing.T, p *Plan) *Program {
	t.Helper()
	prog, err := Compile(p)
	require.NoError(t, err)
	return prog
}

// span builds a hop; attrs alternate keys and values.
func span(id, parent string, attrs ...any) Hop {
	m := make(map[string]any, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		m[attrs[i].(string)] = attrs[i+1]
	}
	return Hop{SpanID: id, ParentID: parent, Attributes: m}
}

func trace(id string, hops ...Hop) Trace {
	return Trace{ID: id, Hops: hops}
}

func level(i int, node, edge, pred string, optional bool, collect ...string) Level {
	vars := []string{"v_" + node}
	if edge != "" {
		vars = append(vars, "v_"+edge)
	}
	return Level{Index: i, Node: node, Edge: edge, Vars: vars, Predicate: pred, Optional: optional, Collect: collect}
}

// evaluateBoth runs traces centrally and through the protocol and requires
// equal results.
func evaluateBoth(t *testing.T, prog *Program, traces ...Trace) Result {
	t.Helper()
	central := prog.Evaluate(traces, false, testConfig)
	distributed := prog.Evaluate(traces, true, testConfig)
	require.Equal(t, central, distributed, "centralized and distributed results differ")
	return central
}
