package tracefilter

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
)

// FromOTLP converts OTLP traces to hops grouped by trace, in order of first
// appearance. Resource attributes are merged under span attributes and the
// span name is reported as "name".
func FromOTLP(td ptrace.Traces) []Trace {
	var (
		out   []Trace
		index = make(map[string]int)
	)
	resSpans := td.ResourceSpans()
	for i := 0; i < resSpans.Len(); i++ {
		resSpan := resSpans.At(i)
		res := resSpan.Resource()

		scopeSpans := resSpan.ScopeSpans()
		for i := 0; i < scopeSpans.Len(); i++ {
			spans := scopeSpans.At(i).Spans()
			for i := 0; i < spans.Len(); i++ {
				span := spans.At(i)

				attrs := make(map[string]any, res.Attributes().Len()+span.Attributes().Len()+2)
				addAttributes(attrs, res.Attributes())
				addAttributes(attrs, span.Attributes())
				attrs["name"] = span.Name()
				if end, start := span.EndTimestamp(), span.StartTimestamp(); end >= start {
					attrs["duration"] = int64(end - start)
				}

				hop := Hop{SpanID: span.SpanID().String(), Attributes: attrs}
				if parent := span.ParentSpanID(); !parent.IsEmpty() {
					hop.ParentID = parent.String()
				}

				traceID := span.TraceID().String()
				j, ok := index[traceID]
				if !ok {
					j = len(out)
					index[traceID] = j
					out = append(out, Trace{ID: traceID})
				}
				out[j].Hops = append(out[j].Hops, hop)
			}
		}
	}
	return out
}

func addAttributes(dst map[string]any, m pcommon.Map) {
	m.Range(func(k string, v pcommon.Value) bool {
		switch v.Type() {
		case pcommon.ValueTypeStr:
			dst[k] = v.Str()
		case pcommon.ValueTypeInt:
			dst[k] = v.Int()
		case pcommon.ValueTypeDouble:
			dst[k] = v.Double()
		case pcommon.ValueTypeBool:
			dst[k] = v.Bool()
		case pcommon.ValueTypeEmpty:
		default:
			dst[k] = v.AsString()
		}
		return true
	})
}

// ParseOTLP parses OTLP JSON traces.
func ParseOTLP(data []byte) ([]Trace, error) {
	u := ptrace.JSONUnmarshaler{}
	td, err := u.UnmarshalTraces(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse otlp traces")
	}
	return FromOTLP(td), nil
}

// HTTPTraceSource fetches assembled traces as OTLP JSON from a trace
// query endpoint, e.g. the trace cluster of the mesh.
type HTTPTraceSource struct {
	Client  *http.Client
	BaseURL string
}

// Trace implements TraceSource.
func (s HTTPTraceSource) Trace(ctx context.Context, traceID string) (Trace, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	u, err := url.JoinPath(s.BaseURL, "api", "traces", traceID)
	if err != nil {
		return Trace{}, errors.Wrap(err, "build url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return Trace{}, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Trace{}, errors.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Trace{}, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Trace{}, errors.Wrap(err, "read body")
	}
	traces, err := ParseOTLP(data)
	if err != nil {
		return Trace{}, err
	}
	for _, t := range traces {
		if t.ID == traceID {
			return t, nil
		}
	}
	return Trace{}, errors.Errorf("trace %s not found", traceID)
}
