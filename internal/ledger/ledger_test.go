package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dtc/internal/testutil"
)

func openTest(t *testing.T) (*Ledger, *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, clock
}

func compilation(digests ...string) Compilation {
	c := Compilation{
		Fingerprint: "f1",
		QueryPath:   "errors.cypher",
		Root:        "a",
		Mode:        "envoy",
		Distributed: true,
	}
	roles := []string{"filter", "aggregation"}
	for i, d := range digests {
		c.Artifacts = append(c.Artifacts, Artifact{Role: roles[i], Path: roles[i] + ".go", Digest: d, Size: int64(100 * (i + 1))})
	}
	return c
}

func TestLedger_RecordAndHistory(t *testing.T) {
	l, _ := openTest(t)
	ctx := context.Background()

	seq1, err := l.Record(ctx, compilation("d1", "d2"))
	require.NoError(t, err)
	seq2, err := l.Record(ctx, compilation("d1", "d2"))
	require.NoError(t, err)
	assert.Greater(t, seq2, seq1)

	history, err := l.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)

	newest := history[0]
	assert.Equal(t, seq2, newest.Seq)
	assert.Equal(t, testutil.Epoch.Add(time.Second), newest.CompiledAt)
	assert.True(t, newest.Distributed)
	assert.Equal(t, []Artifact{
		{Role: "aggregation", Path: "aggregation.go", Digest: "d2", Size: 200},
		{Role: "filter", Path: "filter.go", Digest: "d1", Size: 100},
	}, newest.Artifacts)
	assert.Equal(t, testutil.Epoch, history[1].CompiledAt)

	limited, err := l.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, seq2, limited[0].Seq)
}

func TestLedger_Check(t *testing.T) {
	l, _ := openTest(t)
	ctx := context.Background()

	// Nothing recorded yet.
	require.NoError(t, l.Check(ctx, compilation("d1", "d2")))

	seq, err := l.Record(ctx, compilation("d1", "d2"))
	require.NoError(t, err)
	require.NoError(t, l.Check(ctx, compilation("d1", "d2")))

	err = l.Check(ctx, compilation("d1", "changed"))
	var drift *DriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, DriftError{
		Fingerprint: "f1",
		Mode:        "envoy",
		Distributed: true,
		Role:        "aggregation",
		Seq:         seq,
		Previous:    "d2",
		Current:     "changed",
	}, *drift)
	assert.Contains(t, err.Error(), "drifted from compilation")

	// A different key has no history.
	other := compilation("x", "y")
	other.Distributed = false
	require.NoError(t, l.Check(ctx, other))
	other = compilation("x")
	other.Mode = "sim"
	require.NoError(t, l.Check(ctx, other))
}

func TestLedger_CheckUsesLatest(t *testing.T) {
	l, _ := openTest(t)
	ctx := context.Background()

	_, err := l.Record(ctx, compilation("old"))
	require.NoError(t, err)
	_, err = l.Record(ctx, compilation("new"))
	require.NoError(t, err)

	require.NoError(t, l.Check(ctx, compilation("new")))
	require.Error(t, l.Check(ctx, compilation("old")))
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	_, err = l.Record(context.Background(), compilation("d1"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	history, err := l.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	var version int
	require.NoError(t, l.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Memory(t *testing.T) {
	l, err := Open(":memory:")
	require.NoError(t, err)
	defer l.Close()
	history, err := l.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}
