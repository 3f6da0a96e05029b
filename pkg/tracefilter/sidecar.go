package tracefilter

import (
	"sync"

	"go.uber.org/zap"
)

// Sidecar ties together the streams a proxy sees for one hop: the inbound
// request from the parent, the outbound requests to the hop's children with
// their responses, and finally the inbound response. Streams are matched by
// span id: an outbound request names the hop that issued it as its parent
// span.
//
// A Sidecar is shared by every stream of one proxy and is safe for
// concurrent use.
type Sidecar struct {
	prog  *Program
	cfg   Config
	queue *Queue
	lg    *zap.Logger

	mu       sync.Mutex
	inflight map[string]*inflight
}

type inflight struct {
	mu      sync.Mutex
	f       *HopFilter
	forward string
}

// NewSidecar creates a Sidecar enqueueing converged matches on queue.
func NewSidecar(prog *Program, cfg Config, queue *Queue, lg *zap.Logger) *Sidecar {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Sidecar{
		prog:     prog,
		cfg:      cfg,
		queue:    queue,
		lg:       lg,
		inflight: make(map[string]*inflight),
	}
}

// Inbound runs the request leg of hop. The forwarded prefixes replace the
// accumulator header and are remembered for outbound requests.
func (s *Sidecar) Inbound(hop Hop, headers HeaderMap) {
	f := NewHopFilter(s.prog, s.cfg, s.queue, s.lg)
	f.OnRequest(hop, headers)
	forward, _ := headers.Get(s.cfg.AccHeader())

	s.mu.Lock()
	s.inflight[hop.SpanID] = &inflight{f: f, forward: forward}
	s.mu.Unlock()
}

// Outbound stamps the prefixes of hop parentSpan on a request to one of its
// children. Requests of unknown hops pass unchanged.
func (s *Sidecar) Outbound(parentSpan string, headers HeaderMap) {
	h, ok := s.lookup(parentSpan)
	if !ok {
		return
	}
	if h.forward != "" {
		headers.Set(s.cfg.AccHeader(), h.forward)
	}
}

// OutboundResponse records the response of one child of hop parentSpan.
func (s *Sidecar) OutboundResponse(parentSpan string, headers HeaderMap) {
	h, ok := s.lookup(parentSpan)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.f.OnChildResponse(headers)
}

// InboundResponse runs the response leg of hop spanID and forgets it.
func (s *Sidecar) InboundResponse(spanID string, attrs map[string]any, headers HeaderMap) []Accumulator {
	s.mu.Lock()
	h, ok := s.inflight[spanID]
	delete(s.inflight, spanID)
	s.mu.Unlock()
	if !ok {
		s.lg.Debug("Response of unknown hop", zap.String("span", spanID))
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.f.OnResponse(attrs, headers)
}

// InFlight is the number of hops waiting for their response.
func (s *Sidecar) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

func (s *Sidecar) lookup(spanID string) (*inflight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.inflight[spanID]
	return h, ok
}
