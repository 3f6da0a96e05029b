package tracefilter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestAttributes(t *testing.T) {
	got := RequestAttributes("cart", Headers{
		":method":        "POST",
		":path":          "/api/items?id=3",
		"content-length": "120",
	})
	assert.Equal(t, map[string]any{
		AttrService:       "cart",
		AttrOperation:     "POST",
		AttrRequestMethod: "POST",
		AttrRequestPath:   "/api/items",
		AttrRequestSize:   int64(120),
	}, got)

	assert.Equal(t, map[string]any{AttrService: "cart"}, RequestAttributes("cart", Headers{"content-length": "-1"}))
}

func TestResponseAttributes(t *testing.T) {
	got := ResponseAttributes(Headers{":status": "503", "content-length": "12"}, 1500*time.Millisecond, "db")
	assert.Equal(t, map[string]any{
		AttrDuration:        int64(1500),
		AttrResponseCode:    int64(503),
		AttrResponseSize:    int64(12),
		AttrUpstreamCluster: "db",
	}, got)

	assert.Equal(t, map[string]any{AttrDuration: int64(0)}, ResponseAttributes(Headers{":status": "ok"}, 0, ""))
}

func TestResult_Text(t *testing.T) {
	res := Result{
		Kind:    AggCount,
		Columns: []string{"b.service.name", "count(e)"},
		Rows: []Row{
			{Keys: []string{"cart"}, Value: "2"},
			{Keys: []string{"db"}, Value: "1"},
		},
	}
	assert.Equal(t, "# b.service.name, count(e)\ncart => 2\ndb => 1\n", res.Text())
}
