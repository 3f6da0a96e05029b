package tracefilter

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Config names the protocol endpoints shared by every filter of one
// deployment.
type Config struct {
	HeaderPrefix string `json:"header_prefix"`
	QueueName    string `json:"queue_name"`
	TraceCluster string `json:"trace_cluster"`
}

// AccHeader carries prefixes on requests.
func (c Config) AccHeader() string { return c.HeaderPrefix + "acc" }

// SfxHeader carries suffixes on responses.
func (c Config) SfxHeader() string { return c.HeaderPrefix + "sfx" }

// HeaderMap is the header API of the proxy host.
type HeaderMap interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Headers is an in-memory HeaderMap.
type Headers map[string]string

func (h Headers) Get(key string) (string, bool) {
	v, ok := h[key]
	return v, ok
}

func (h Headers) Set(key, value string) { h[key] = value }

// HopFilter is the per-request state of a distributed filter at one hop.
// A proxy creates one per request; it is not safe for concurrent use.
//
// Levels above the root are evaluated when the request passes, so they see
// request attributes only. Levels at or below the root are evaluated on the
// response, after OnResponse merged the response attributes.
type HopFilter struct {
	prog  *Program
	cfg   Config
	queue *Queue
	lg    *zap.Logger

	hop      Hop
	arrived  []Accumulator
	children []AccumulatorSet
}

// NewHopFilter creates the filter of one request. A nil logger is replaced
// by a no-op logger.
func NewHopFilter(prog *Program, cfg Config, queue *Queue, lg *zap.Logger) *HopFilter {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &HopFilter{prog: prog, cfg: cfg, queue: queue, lg: lg}
}

// OnRequest reads the inbound prefixes, runs the request leg and replaces
// the header with the prefixes to forward to the hop's children.
func (f *HopFilter) OnRequest(hop Hop, headers HeaderMap) {
	hop.Attributes = NormalizeAttributes(hop.Attributes)
	f.hop = hop

	var in AccumulatorSet
	if v, ok := headers.Get(f.cfg.AccHeader()); ok {
		set, err := DecodeHeader(v)
		if err != nil {
			// A malformed header drops the partial matches it carried.
			f.lg.Debug("Drop inbound accumulators", zap.String("span", hop.SpanID), zap.Error(err))
		}
		in = set
	}

	forward, arrived := f.prog.Down(in, hop)
	f.arrived = arrived
	headers.Set(f.cfg.AccHeader(), EncodeHeader(forward))
}

// OnChildResponse records the suffixes of one child response. It must be
// called once per child, so the hop learns its breadth.
func (f *HopFilter) OnChildResponse(headers HeaderMap) {
	var set AccumulatorSet
	if v, ok := headers.Get(f.cfg.SfxHeader()); ok {
		s, err := DecodeHeader(v)
		if err != nil {
			f.lg.Debug("Drop child suffixes", zap.String("span", f.hop.SpanID), zap.Error(err))
		}
		set = s
	}
	f.children = append(f.children, set)
}

// OnResponse runs the response leg: it writes the hop's suffixes on its
// own response and enqueues the matches converging here. attrs are the
// attributes observed on the response, merged over the request ones.
func (f *HopFilter) OnResponse(attrs map[string]any, headers HeaderMap) []Accumulator {
	if len(attrs) > 0 {
		merged := make(map[string]any, len(f.hop.Attributes)+len(attrs))
		for k, v := range f.hop.Attributes {
			merged[k] = v
		}
		for k, v := range NormalizeAttributes(attrs) {
			merged[k] = v
		}
		f.hop.Attributes = merged
	}

	headers.Set(f.cfg.SfxHeader(), EncodeHeader(f.prog.Up(f.hop, f.children)))

	matches := f.prog.Converge(f.hop, f.arrived, f.children)
	if len(matches) > 0 && !f.queue.Enqueue(matches...) {
		f.lg.Warn("Aggregation queue closed, matches dropped",
			zap.String("queue", f.queue.Name()),
			zap.Int("matches", len(matches)),
		)
	}
	return matches
}

// TraceSource returns assembled traces.
type TraceSource interface {
	Trace(ctx context.Context, traceID string) (Trace, error)
}

// RootFilter is the non-distributed filter. It runs at the top of a trace
// only, fetches the assembled trace when the response passes and matches
// the whole pattern centrally.
type RootFilter struct {
	prog   *Program
	source TraceSource
	agg    *Aggregator
	lg     *zap.Logger
}

// NewRootFilter creates a root-only filter aggregating into agg.
func NewRootFilter(prog *Program, source TraceSource, agg *Aggregator, lg *zap.Logger) *RootFilter {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &RootFilter{prog: prog, source: source, agg: agg, lg: lg}
}

// OnResponse matches the trace and merges its matches.
func (f *RootFilter) OnResponse(ctx context.Context, traceID string) (int, error) {
	t, err := f.source.Trace(ctx, traceID)
	if err != nil {
		return 0, errors.Wrapf(err, "fetch trace %s", traceID)
	}
	matches := f.prog.MatchTrace(t)
	SortMatches(matches)
	f.agg.AddAll(matches)
	f.lg.Debug("Trace matched", zap.String("trace", traceID), zap.Int("matches", len(matches)))
	return len(matches), nil
}

// Result returns the current aggregate.
func (f *RootFilter) Result() Result { return f.agg.Result() }

// AggregationFilter drains the shared queue into an aggregator.
//
// Run must be called from exactly one goroutine; Result may be called from
// any goroutine.
type AggregationFilter struct {
	queue *Queue
	agg   *Aggregator
	lg    *zap.Logger
}

// NewAggregationFilter creates the root aggregation filter.
func NewAggregationFilter(queue *Queue, agg *Aggregator, lg *zap.Logger) *AggregationFilter {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &AggregationFilter{queue: queue, agg: agg, lg: lg}
}

// Run merges queued matches until ctx is cancelled or the queue is closed
// and drained.
func (f *AggregationFilter) Run(ctx context.Context) error {
	f.lg.Info("Aggregation filter starting", zap.String("queue", f.queue.Name()))

	for {
		if m, ok := f.queue.TryDequeue(); ok {
			f.agg.Add(m)
			continue
		}

		select {
		case <-ctx.Done():
			f.lg.Info("Aggregation filter stopping", zap.Error(ctx.Err()))
			f.queue.Close()
			return ctx.Err()
		case <-f.queue.Wait():
			// The signal channel is closed with the queue.
			if f.queue.Len() == 0 && f.queue.Closed() {
				f.lg.Info("Aggregation filter stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain merges every queued match without blocking and returns how many
// were merged.
func (f *AggregationFilter) Drain() int {
	n := 0
	for {
		m, ok := f.queue.TryDequeue()
		if !ok {
			return n
		}
		f.agg.Add(m)
		n++
	}
}

// Stop closes the queue; Run returns once it is drained.
func (f *AggregationFilter) Stop() { f.queue.Close() }

// Result returns the current aggregate.
func (f *AggregationFilter) Result() Result { return f.agg.Result() }
