package tracefilter

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

// SpanSpec is one span of a YAML trace.
type SpanSpec struct {
	ID         string         `yaml:"id"`
	Parent     string         `yaml:"parent,omitempty"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

// TraceSpec is a trace written by hand:
//
//	traces:
//	  - id: t1
//	    spans:
//	      - {id: fe, attributes: {service.name: frontend}}
//	      - {id: db, parent: fe, attributes: {service.name: db, duration: 12}}
type TraceSpec struct {
	ID    string     `yaml:"id"`
	Spans []SpanSpec `yaml:"spans"`
}

// Trace converts s.
func (s TraceSpec) Trace() Trace {
	t := Trace{ID: s.ID, Hops: make([]Hop, len(s.Spans))}
	for i, sp := range s.Spans {
		t.Hops[i] = Hop{SpanID: sp.ID, ParentID: sp.Parent, Attributes: NormalizeAttributes(sp.Attributes)}
	}
	return t
}

// ParseTraceSpecs decodes the traces key of a YAML document. Other keys
// are ignored.
func ParseTraceSpecs(data []byte) ([]Trace, error) {
	var doc struct {
		Traces []TraceSpec `yaml:"traces"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse yaml traces")
	}
	out := make([]Trace, len(doc.Traces))
	for i, s := range doc.Traces {
		out[i] = s.Trace()
	}
	return out, nil
}

// ReadTraces reads a trace file: OTLP JSON for .json files, YAML
// otherwise.
func ReadTraces(path string) ([]Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read traces")
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseOTLP(data)
	}
	return ParseTraceSpecs(data)
}

// Replay merges the matches of traces into agg, trace by trace. With
// distributed set every trace is propagated hop by hop; otherwise it is
// matched centrally. The matches of each trace are sorted first.
func (p *Program) Replay(traces []Trace, distributed bool, cfg Config, agg *Aggregator) {
	for _, t := range traces {
		var matches []Accumulator
		if distributed {
			matches = p.Propagate(t, cfg)
		} else {
			matches = p.MatchTrace(t)
		}
		SortMatches(matches)
		agg.AddAll(matches)
	}
}
