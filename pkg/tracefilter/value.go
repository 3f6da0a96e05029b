package tracefilter

import (
	"math"
	"strconv"
)

// Normalize converts an attribute value to one of the wire types: string,
// int64, float64 or bool. ok is false for anything else.
func Normalize(v any) (_ any, ok bool) {
	switch v := v.(type) {
	case string, int64, float64, bool:
		return v, true
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, false
		}
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return nil, false
		}
		return int64(v), true
	case float32:
		return float64(v), true
	default:
		return nil, false
	}
}

// NormalizeAttributes returns a copy of attrs with scalar values normalized.
// Non-scalar values are kept as is: local predicates may still read them,
// but they never travel in an accumulator.
func NormalizeAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if n, ok := Normalize(v); ok {
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out
}

// toFloat reports the numeric value of v.
func toFloat(v any) (float64, bool) {
	n, ok := Normalize(v)
	if !ok {
		return 0, false
	}
	switch n := n.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// FormatValue renders a result value: strings quoted, integral numbers
// without a fraction, nil as null.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []any:
		s := "["
		for i, e := range v {
			if i > 0 {
				s += ", "
			}
			s += FormatValue(e)
		}
		return s + "]"
	}
	if n, ok := Normalize(v); ok {
		return FormatValue(n)
	}
	return "?"
}
