package tracefilter

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sidecarPlan() *Plan {
	return &Plan{
		Query: 21,
		Levels: []Level{
			level(0, "a", "", `v_a["service.name"] == "frontend"`, false),
			level(1, "b", "e", `v_e["response.code"] == 500`, false),
		},
		Root:        1,
		Aggregation: Aggregation{Kind: AggCount, Name: "count(*)", Level: -1},
	}
}

func TestSidecar_Streams(t *testing.T) {
	prog := mustCompile(t, sidecarPlan())
	q := NewQueue(testConfig.QueueName)
	lg := zaptest.NewLogger(t)
	frontend := NewSidecar(prog, testConfig, q, lg)
	cart := NewSidecar(prog, testConfig, q, lg)

	frontend.Inbound(span("fe", "", "service.name", "frontend"), Headers{})
	assert.Equal(t, 1, frontend.InFlight())

	out := Headers{}
	frontend.Outbound("fe", out)
	_, ok := out.Get(testConfig.AccHeader())
	require.True(t, ok, "outbound request carries the prefixes")

	cart.Inbound(span("cart", "fe", "service.name", "cart"), out)
	resp := Headers{}
	matches := cart.InboundResponse("cart", map[string]any{"response.code": 500}, resp)
	require.Len(t, matches, 1)
	assert.Equal(t, "0=fe 1=cart", matches[0].Key())

	frontend.OutboundResponse("fe", resp)
	assert.Empty(t, frontend.InboundResponse("fe", nil, Headers{}))
	assert.Equal(t, 0, frontend.InFlight())
	assert.Equal(t, 0, cart.InFlight())
	assert.Equal(t, 1, q.Len())
}

func TestSidecar_UnknownHops(t *testing.T) {
	s := NewSidecar(mustCompile(t, sidecarPlan()), testConfig, NewQueue("q"), nil)

	out := Headers{}
	s.Outbound("missing", out)
	assert.Empty(t, out)

	s.OutboundResponse("missing", Headers{})
	assert.Nil(t, s.InboundResponse("missing", nil, Headers{}))
}

func TestSidecar_ConcurrentRequests(t *testing.T) {
	prog := mustCompile(t, sidecarPlan())
	q := NewQueue("q")
	frontend := NewSidecar(prog, testConfig, q, nil)
	cart := NewSidecar(prog, testConfig, q, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			fe, c := fmt.Sprintf("fe%d", i), fmt.Sprintf("cart%d", i)

			frontend.Inbound(span(fe, "", "service.name", "frontend"), Headers{})
			out := Headers{}
			frontend.Outbound(fe, out)
			cart.Inbound(span(c, fe), out)
			resp := Headers{}
			cart.InboundResponse(c, map[string]any{"response.code": 500}, resp)
			frontend.OutboundResponse(fe, resp)
			frontend.InboundResponse(fe, nil, Headers{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, q.Len())
	assert.Equal(t, 0, frontend.InFlight())
}
