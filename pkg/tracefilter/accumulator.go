package tracefilter

import (
	"slices"
	"strconv"
	"strings"
)

// Binding is one pattern level bound to one hop.
type Binding struct {
	Level int
	Span  string
	// Breadth is the number of child hops of Span. It is zero for levels
	// bound on the request leg, where children are not known yet.
	Breadth int
	// Attrs are the collected attributes of the level.
	Attrs map[string]any
}

// Accumulator is a partial or complete match.
//
// A prefix covers levels [0, Cursor) and travels down the request path. A
// suffix covers levels [Start, Cursor) and travels up the response path. A
// completed match is a prefix whose bindings reach the end of the pattern
// or stop at an optional level.
type Accumulator struct {
	// Cursor is one past the last bound level.
	Cursor int
	// Start is the first bound level.
	Start    int
	Bindings []Binding
}

// AccumulatorSet is the unit carried in one header.
type AccumulatorSet struct {
	Query        uint64
	Accumulators []Accumulator
}

// Extend returns a copy of a with b appended.
func (a Accumulator) Extend(b Binding) Accumulator {
	bindings := make([]Binding, len(a.Bindings), len(a.Bindings)+1)
	copy(bindings, a.Bindings)
	return Accumulator{
		Cursor:   b.Level + 1,
		Start:    a.Start,
		Bindings: append(bindings, b),
	}
}

// Join returns a followed by suffix. suffix must start at a.Cursor.
func (a Accumulator) Join(suffix Accumulator) Accumulator {
	bindings := make([]Binding, 0, len(a.Bindings)+len(suffix.Bindings))
	bindings = append(bindings, a.Bindings...)
	bindings = append(bindings, suffix.Bindings...)
	return Accumulator{Cursor: suffix.Cursor, Start: a.Start, Bindings: bindings}
}

// Binding returns the binding of level, if bound.
func (a Accumulator) Binding(level int) (Binding, bool) {
	for _, b := range a.Bindings {
		if b.Level == level {
			return b, true
		}
	}
	return Binding{}, false
}

// Key identifies the hops of a match, e.g. "0=a 1=b".
func (a Accumulator) Key() string {
	var sb strings.Builder
	for i, b := range a.Bindings {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(b.Level))
		sb.WriteByte('=')
		sb.WriteString(b.Span)
	}
	return sb.String()
}

// SortMatches orders matches by Key so folding them is deterministic.
func SortMatches(matches []Accumulator) {
	slices.SortStableFunc(matches, func(x, y Accumulator) int {
		return strings.Compare(x.Key(), y.Key())
	})
}
