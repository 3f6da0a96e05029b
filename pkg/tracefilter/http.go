package tracefilter

import (
	"strconv"
	"strings"
	"time"
)

// Attribute keys reported by proxy filters.
const (
	AttrService         = "service.name"
	AttrOperation       = "name"
	AttrRequestMethod   = "request.method"
	AttrRequestPath     = "request.path"
	AttrRequestSize     = "request.size"
	AttrResponseCode    = "response.code"
	AttrResponseSize    = "response.size"
	AttrDuration        = "duration"
	AttrUpstreamCluster = "upstream.cluster"
)

// RequestAttributes builds the request half of a hop's attributes from
// HTTP/2 style request headers. The operation name of an HTTP hop is its
// method.
func RequestAttributes(service string, headers HeaderMap) map[string]any {
	attrs := map[string]any{AttrService: service}
	if method, ok := headers.Get(":method"); ok {
		attrs[AttrRequestMethod] = method
		attrs[AttrOperation] = method
	}
	if p, ok := headers.Get(":path"); ok {
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		attrs[AttrRequestPath] = p
	}
	if n, ok := contentLength(headers); ok {
		attrs[AttrRequestSize] = n
	}
	return attrs
}

// ResponseAttributes builds the response half of a hop's attributes.
// Durations are reported in milliseconds. An empty upstream is omitted.
func ResponseAttributes(headers HeaderMap, elapsed time.Duration, upstream string) map[string]any {
	attrs := map[string]any{AttrDuration: elapsed.Milliseconds()}
	if s, ok := headers.Get(":status"); ok {
		if code, err := strconv.ParseInt(s, 10, 64); err == nil {
			attrs[AttrResponseCode] = code
		}
	}
	if n, ok := contentLength(headers); ok {
		attrs[AttrResponseSize] = n
	}
	if upstream != "" {
		attrs[AttrUpstreamCluster] = upstream
	}
	return attrs
}

func contentLength(headers HeaderMap) (int64, bool) {
	s, ok := headers.Get("content-length")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Text renders r for humans: a header line naming the columns, then one
// line per row.
func (r Result) Text() string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(strings.Join(r.Columns, ", "))
	sb.WriteByte('\n')
	for _, l := range r.Lines() {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}
