package cli

import (
	"encoding/json"
	"testing"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "central",
			args: []string{"-q", fixture("queries", "errors_on_edge.cypher"), "-r", "a", "-s", fixture("scenarios", "count_edge.yaml")},
			want: "✓ count-edge (central, 2 trace(s))",
		},
		{
			name: "distributed and checked",
			args: []string{"-q", fixture("queries", "errors_on_edge.cypher"), "-r", "a", "-s", fixture("scenarios", "count_edge.yaml"), "-d", "--check"},
			want: "✓ count-edge (distributed, 2 trace(s), strategies agree)",
		},
		{
			name: "udf",
			args: []string{"-q", fixture("queries", "weighted_duration.cypher"), "-u", fixture("udfs", "weighted.udf"), "-r", "a", "-s", fixture("scenarios", "weighted.yaml"), "--check"},
			want: "✓ weighted (central, 1 trace(s), strategies agree)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, err := execute(t, append([]string{"simulate"}, tt.args...)...)
			require.NoError(t, err)
			assert.Contains(t, stdout, tt.want)
		})
	}
}

func TestSimulate_JSON(t *testing.T) {
	stdout, err := execute(t, "--format", "json", "simulate",
		"-q", fixture("queries", "errors_on_edge.cypher"),
		"-r", "a",
		"-s", fixture("scenarios", "count_edge.yaml"),
	)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []ScenarioResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "count-edge", resp.Data[0].Scenario)
	assert.Equal(t, []string{"2"}, resp.Data[0].Rows)
	assert.Equal(t, []string{"count(e)"}, resp.Data[0].Columns)
	assert.Empty(t, resp.Data[0].Error)
}

func TestSimulate_ExpectationMismatch(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "wrong.yaml", heredoc.Doc(`
		name: wrong
		traces:
		  - spans:
		      - {id: a1, attributes: {service.name: A}}
		      - {id: b1, parent: a1, attributes: {service.name: B, response.code: 500}}
		expect: ["7"]
	`))

	stdout, err := execute(t, "simulate",
		"-q", fixture("queries", "errors_on_edge.cypher"),
		"-r", "a",
		"-s", fixture("scenarios", "count_edge.yaml"),
		"-s", scenario,
	)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✓ count-edge")
	assert.Contains(t, stdout, "✗ wrong")
	assert.Contains(t, stdout, "Error [E306]")
}

func TestSimulate_BadScenario(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing", dir + "/missing.yaml", "E301"},
		{"invalid", writeFile(t, dir, "invalid.yaml", "name: x\ntraces: []\n"), ErrCodeUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, err := execute(t, "simulate", "-q", fixture("queries", "errors_on_edge.cypher"), "-r", "a", "-s", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, stdout, "["+tt.code+"]")
		})
	}
}

func TestSimulate_MissingScenario(t *testing.T) {
	_, err := execute(t, "simulate", "-q", fixture("queries", "errors_on_edge.cypher"), "-r", "a")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--scenario")
}
