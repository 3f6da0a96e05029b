package tracefilter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlTraces = `
name: ignored
traces:
  - id: t1
    spans:
      - {id: fe, attributes: {service.name: frontend}}
      - {id: db, parent: fe, attributes: {service.name: db, duration: 12, ratio: 0.5}}
`

func TestParseTraceSpecs(t *testing.T) {
	traces, err := ParseTraceSpecs([]byte(yamlTraces))
	require.NoError(t, err)
	require.Len(t, traces, 1)

	assert.Equal(t, Trace{ID: "t1", Hops: []Hop{
		{SpanID: "fe", Attributes: map[string]any{"service.name": "frontend"}},
		{SpanID: "db", ParentID: "fe", Attributes: map[string]any{
			"service.name": "db",
			"duration":     int64(12),
			"ratio":        0.5,
		}},
	}}, traces[0])
}

func TestReadTraces(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "traces.yaml")
	jsonPath := filepath.Join(dir, "traces.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlTraces), 0o600))
	require.NoError(t, os.WriteFile(jsonPath, []byte(otlpTrace), 0o600))

	traces, err := ReadTraces(yamlPath)
	require.NoError(t, err)
	assert.Len(t, traces[0].Hops, 2)

	traces, err = ReadTraces(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "5b8efff798038103d269b633813fc60c", traces[0].ID)

	_, err = ReadTraces(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestReplay_Accumulates(t *testing.T) {
	prog := mustCompile(t, countPlan(`v_e["response.code"] == 500`, ""))
	agg := NewAggregator(prog)

	traces, err := ParseTraceSpecs([]byte(heredoc.Doc(`
		traces:
		  - id: t1
		    spans:
		      - {id: a, attributes: {response.code: 200}}
		      - {id: b, parent: a, attributes: {response.code: 500}}
	`)))
	require.NoError(t, err)

	prog.Replay(traces, true, testConfig, agg)
	prog.Replay(traces, false, testConfig, agg)
	assert.Equal(t, []string{"2"}, agg.Result().Lines())
}
