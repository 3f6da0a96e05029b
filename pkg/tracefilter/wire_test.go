package tracefilter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWire_RoundTrip(t *testing.T) {
	set := AccumulatorSet{
		Query: 0xdeadbeefcafebabe,
		Accumulators: []Accumulator{
			{
				Cursor: 2,
				Bindings: []Binding{
					{Level: 0, Span: "a1", Attrs: map[string]any{
						"service.name":  "frontend",
						"response.code": int64(-500),
						"ratio":         0.25,
						"sampled":       true,
					}},
					{Level: 1, Span: "b1", Breadth: 3},
				},
			},
			{Cursor: 4, Start: 2, Bindings: []Binding{
				{Level: 2, Span: "c1", Breadth: 1},
				{Level: 3, Span: "d1", Attrs: map[string]any{"upstream.cluster": "db"}},
			}},
		},
	}

	var got AccumulatorSet
	require.NoError(t, got.UnmarshalProtobuf(set.MarshalProtobuf(nil)))
	if diff := cmp.Diff(set, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	decoded, err := DecodeHeader(EncodeHeader(set))
	require.NoError(t, err)
	if diff := cmp.Diff(set, decoded); diff != "" {
		t.Errorf("header round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWire_NormalizesAttributes(t *testing.T) {
	set := AccumulatorSet{Query: 1, Accumulators: []Accumulator{{
		Cursor: 1,
		Bindings: []Binding{{Level: 0, Span: "a", Attrs: map[string]any{
			"int":     42,
			"float32": float32(1.5),
			"list":    []string{"dropped"},
		}}},
	}}}

	decoded, err := DecodeHeader(EncodeHeader(set))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"int": int64(42), "float32": 1.5}, decoded.Accumulators[0].Bindings[0].Attrs)
}

func TestWire_Deterministic(t *testing.T) {
	set := AccumulatorSet{Query: 1, Accumulators: []Accumulator{{
		Cursor: 1,
		Bindings: []Binding{{Level: 0, Span: "a", Attrs: map[string]any{
			"a": "1", "b": "2", "c": "3", "d": "4",
		}}},
	}}}
	first := EncodeHeader(set)
	for it := 0; it < 10; it++ {
		assert.Equal(t, first, EncodeHeader(set))
	}
}

func TestWire_EmptyHeader(t *testing.T) {
	assert.Equal(t, "", EncodeHeader(AccumulatorSet{Query: 1}))

	set, err := DecodeHeader("")
	require.NoError(t, err)
	assert.Empty(t, set.Accumulators)
}

func TestWire_MalformedHeader(t *testing.T) {
	for _, value := range []string{"!!!", "_w"} {
		t.Run(value, func(t *testing.T) {
			_, err := DecodeHeader(value)
			require.Error(t, err)
		})
	}
}
