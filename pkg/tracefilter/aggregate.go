package tracefilter

import (
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/expr-lang/expr"
)

// Aggregator merges completed matches per grouping key.
//
// Add may be called from many goroutines; updates are serialized by one
// mutex, so every bucket has a single writer at a time.
type Aggregator struct {
	prog *Program

	mu     sync.Mutex
	groups map[uint64][]*group
}

type group struct {
	keys []string

	count   int64
	sum     float64
	n       int64
	buckets map[int64]int64
	acc     any
}

// NewAggregator creates an empty aggregator for prog.
func NewAggregator(prog *Program) *Aggregator {
	return &Aggregator{prog: prog, groups: make(map[uint64][]*group)}
}

func (a *Aggregator) group(keys []string) (*group, error) {
	h := xxhash.Sum64String(strings.Join(keys, "\x00"))
	for _, g := range a.groups[h] {
		if slices.Equal(g.keys, keys) {
			return g, nil
		}
	}
	g := &group{keys: keys, buckets: make(map[int64]int64)}
	if u := a.prog.agg; u != nil {
		acc, err := u.initial()
		if err != nil {
			return nil, err
		}
		g.acc = acc
	}
	a.groups[h] = append(a.groups[h], g)
	return g, nil
}

// Add merges one completed match. Inputs that fail to evaluate are
// skipped.
func (a *Aggregator) Add(m Accumulator) {
	p := a.prog
	agg := p.plan.Aggregation
	env := p.env(m)

	var keys []string
	if len(p.keys) > 0 {
		keys = make([]string, len(p.keys))
	}
	for i, k := range p.keys {
		v, err := expr.Run(k, env)
		if err != nil {
			v = nil
		}
		keys[i] = FormatValue(v)
	}
	args := make([]any, len(p.args))
	for i, prog := range p.args {
		v, err := expr.Run(prog, env)
		if err != nil {
			v = nil
		}
		args[i] = v
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	g, err := a.group(keys)
	if err != nil {
		return
	}

	switch agg.Kind {
	case AggCount:
		switch {
		case agg.Level >= 0:
			if _, ok := m.Binding(agg.Level); !ok {
				return
			}
		case len(args) == 1 && args[0] == nil:
			return
		}
		g.count++
	case AggCollect:
		g.count++
	case AggAverage:
		if f, ok := toFloat(args[0]); ok {
			g.sum += f
			g.n++
		}
	case AggHistogramDepth:
		if _, ok := m.Binding(agg.Level); !ok {
			return
		}
		g.buckets[int64(len(m.Bindings)-agg.Level)]++
	case AggHistogramBreadth:
		b, ok := m.Binding(agg.Level)
		if !ok {
			return
		}
		g.buckets[int64(b.Breadth)]++
	case AggUDF:
		acc, err := p.agg.fold(g.acc, args)
		if err != nil {
			return
		}
		g.acc = acc
	}
}

// AddAll merges matches in order.
func (a *Aggregator) AddAll(matches []Accumulator) {
	for _, m := range matches {
		a.Add(m)
	}
}

// Result is an aggregation snapshot. Rows are sorted by key and every value
// is rendered as text, so results compare with ==.
type Result struct {
	Kind    string   `json:"kind" yaml:"kind"`
	Columns []string `json:"columns" yaml:"columns"`
	Rows    []Row    `json:"rows" yaml:"rows"`
}

// Row is one group.
type Row struct {
	Keys  []string `json:"keys,omitempty" yaml:"keys,omitempty"`
	Value string   `json:"value" yaml:"value"`
}

// String renders r as "k1, k2 => value", or just the value without keys.
func (r Row) String() string {
	if len(r.Keys) == 0 {
		return r.Value
	}
	return strings.Join(r.Keys, ", ") + " => " + r.Value
}

// Lines renders every row.
func (r Result) Lines() []string {
	out := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.String()
	}
	return out
}

// Result returns the current aggregate.
func (a *Aggregator) Result() Result {
	agg := a.prog.plan.Aggregation

	a.mu.Lock()
	defer a.mu.Unlock()

	// An ungrouped aggregation reports one row even without matches.
	if len(agg.Keys) == 0 && agg.Kind != AggCollect {
		_, _ = a.group(nil)
	}

	res := Result{Kind: agg.Kind}
	for _, k := range agg.Keys {
		res.Columns = append(res.Columns, k.Name)
	}
	res.Columns = append(res.Columns, agg.Name)

	for _, bucket := range a.groups {
		for _, g := range bucket {
			res.Rows = append(res.Rows, Row{Keys: g.keys, Value: g.value(agg.Kind)})
		}
	}
	slices.SortFunc(res.Rows, func(x, y Row) int {
		return slices.Compare(x.Keys, y.Keys)
	})
	return res
}

func (g *group) value(kind string) string {
	switch kind {
	case AggCount, AggCollect:
		return FormatValue(g.count)
	case AggAverage:
		if g.n == 0 {
			return FormatValue(nil)
		}
		return FormatValue(g.sum / float64(g.n))
	case AggHistogramDepth, AggHistogramBreadth:
		buckets := make([]int64, 0, len(g.buckets))
		for b := range g.buckets {
			buckets = append(buckets, b)
		}
		slices.Sort(buckets)
		parts := make([]string, len(buckets))
		for i, b := range buckets {
			parts[i] = FormatValue(b) + ": " + FormatValue(g.buckets[b])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return FormatValue(g.acc)
	}
}
