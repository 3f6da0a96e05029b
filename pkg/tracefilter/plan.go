package tracefilter

import (
	"encoding/json"

	"github.com/go-faster/errors"
)

// Aggregation kinds. They mirror the compiler's aggregation kinds.
const (
	AggCount            = "count"
	AggAverage          = "avg"
	AggHistogramDepth   = "histogram_depth"
	AggHistogramBreadth = "histogram_breadth"
	AggUDF              = "udf"
	AggCollect          = "collect"
)

// UDF kinds.
const (
	KindScalar    = "scalar"
	KindAggregate = "aggregate"
)

// Plan is the compiled, target-independent form of a query that generated
// filters embed as JSON. Every expression is expr-lang source over mangled
// variable identifiers.
type Plan struct {
	// Query identifies the plan on the wire. Accumulator sets carrying a
	// different id are ignored.
	Query       uint64      `json:"query"`
	Fingerprint string      `json:"fingerprint"`
	Levels      []Level     `json:"levels"`
	Root        int         `json:"root"`
	Filter      string      `json:"filter,omitempty"`
	Aggregation Aggregation `json:"aggregation"`
	UDFs        []UDF       `json:"udfs,omitempty"`
}

// Level is one position of the pattern chain.
type Level struct {
	Index int    `json:"index"`
	Node  string `json:"node"`
	Edge  string `json:"edge,omitempty"`
	// Vars are the identifiers bound to this level's hop: the node
	// variable and, below level 0, the edge variable.
	Vars []string `json:"vars"`
	// Predicate is evaluated against the hop attributes. Empty means true.
	Predicate string `json:"predicate,omitempty"`
	Optional  bool   `json:"optional,omitempty"`
	// Collect lists the attribute keys carried in the accumulator for the
	// query filter, aggregation inputs and grouping keys.
	Collect []string `json:"collect,omitempty"`
}

// Aggregation describes how completed matches combine.
type Aggregation struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	// Level is the chain level of the target variable, or -1.
	Level    int      `json:"level"`
	Args     []string `json:"args,omitempty"`
	Function string   `json:"function,omitempty"`
	Keys     []Key    `json:"keys,omitempty"`
}

// Key is a grouping key.
type Key struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// UDF is a user-defined function with its body.
type UDF struct {
	Name   string   `json:"name"`
	Ident  string   `json:"ident"`
	Params []string `json:"params"`
	Kind   string   `json:"kind"`
	Init   string   `json:"init,omitempty"`
	Body   string   `json:"body"`
}

// Depth is the number of levels.
func (p *Plan) Depth() int { return len(p.Levels) }

// Validate checks the structural invariants a Program relies on.
func (p *Plan) Validate() error {
	if len(p.Levels) == 0 {
		return errors.New("plan has no levels")
	}
	if p.Root < 0 || p.Root >= len(p.Levels) {
		return errors.Errorf("root level %d out of range [0, %d)", p.Root, len(p.Levels))
	}
	for i, l := range p.Levels {
		if l.Index != i {
			return errors.Errorf("level %d has index %d", i, l.Index)
		}
		if i > 0 && p.Levels[i-1].Optional && !l.Optional {
			return errors.Errorf("required level %d follows an optional level", i)
		}
	}
	if p.Levels[p.Root].Optional {
		return errors.Errorf("root level %d is optional", p.Root)
	}
	if a := p.Aggregation.Level; a < -1 || a >= len(p.Levels) {
		return errors.Errorf("aggregation level %d out of range", a)
	}
	return nil
}

// ParsePlan decodes and validates a JSON plan.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "decode plan")
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate plan")
	}
	return &p, nil
}
