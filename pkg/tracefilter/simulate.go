package tracefilter

// Propagate replays one trace through the distributed protocol in process:
// every hop runs a HopFilter, requests carry prefixes to children in depth
// first order and responses carry suffixes back in post order. It returns
// the matches the hop filters enqueued.
func (p *Program) Propagate(t Trace, cfg Config) []Accumulator {
	tr := newTree(t)
	q := NewQueue(cfg.QueueName)
	for _, i := range tr.tops {
		p.visit(tr, i, Headers{}, cfg, q)
	}
	q.Close()

	var out []Accumulator
	for {
		m, ok := q.TryDequeue()
		if !ok {
			return out
		}
		out = append(out, m)
	}
}

func (p *Program) visit(tr tree, i int, req Headers, cfg Config, q *Queue) Headers {
	f := NewHopFilter(p, cfg, q, nil)
	f.OnRequest(tr.hops[i], req)

	forward := req[cfg.AccHeader()]
	for _, c := range tr.children[tr.hops[i].SpanID] {
		resp := p.visit(tr, c, Headers{cfg.AccHeader(): forward}, cfg, q)
		f.OnChildResponse(resp)
	}

	resp := Headers{}
	f.OnResponse(nil, resp)
	return resp
}

// Evaluate aggregates traces into a fresh aggregator and returns the
// result. See Replay.
func (p *Program) Evaluate(traces []Trace, distributed bool, cfg Config) Result {
	agg := NewAggregator(p)
	p.Replay(traces, distributed, cfg, agg)
	return agg.Result()
}
