package tracefilter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchOf(spans ...string) Accumulator {
	var m Accumulator
	for i, s := range spans {
		m = m.Extend(Binding{Level: i, Span: s})
	}
	return m
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue("q")
	require.True(t, q.Enqueue(matchOf("A"), matchOf("B")))
	require.True(t, q.Enqueue(matchOf("C")))

	for _, want := range []string{"0=A", "0=B", "0=C"} {
		m, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, m.Key())
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue("q")
	q.Close()
	q.Close() // idempotent

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(matchOf("A")), "enqueue after close should fail")

	select {
	case <-q.Wait():
	default:
		t.Fatal("wait channel should be closed")
	}
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	q := NewQueue("q")

	var wg sync.WaitGroup
	for it := 0; it < 10; it++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := 0; it < 50; it++ {
				q.Enqueue(matchOf("A"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 500, q.Len())
}

func TestAggregationFilter_Run(t *testing.T) {
	prog := mustCompile(t, callPlan(Aggregation{Kind: AggCount, Name: "count(*)", Level: -1}))
	q := NewQueue(testConfig.QueueName)
	f := NewAggregationFilter(q, NewAggregator(prog), nil)

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background()) }()

	for it := 0; it < 5; it++ {
		q.Enqueue(matchOf("fe", "db"))
	}
	f.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.Equal(t, []string{"5"}, f.Result().Lines())
}

func TestAggregationFilter_RunCancelled(t *testing.T) {
	prog := mustCompile(t, callPlan(Aggregation{Kind: AggCount, Name: "count(*)", Level: -1}))
	f := NewAggregationFilter(NewQueue("q"), NewAggregator(prog), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, f.Run(ctx), context.Canceled)
}

func TestAggregationFilter_Drain(t *testing.T) {
	prog := mustCompile(t, callPlan(Aggregation{Kind: AggCount, Name: "count(*)", Level: -1}))
	q := NewQueue("q")
	f := NewAggregationFilter(q, NewAggregator(prog), nil)

	q.Enqueue(matchOf("fe", "db"), matchOf("fe", "cart"))
	assert.Equal(t, 2, f.Drain())
	assert.Equal(t, 0, f.Drain())
	assert.Equal(t, []string{"2"}, f.Result().Lines())
}

func TestSharedQueue(t *testing.T) {
	a := SharedQueue("shared_test")
	b := SharedQueue("shared_test")
	require.Same(t, a, b)
	assert.NotSame(t, a, SharedQueue("shared_other"))
	assert.Equal(t, "shared_test", a.Name())
}
