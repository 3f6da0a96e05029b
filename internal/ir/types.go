package ir

import (
	"slices"
	"strings"
)

// Well-known attribute keys.
const (
	// AttrService is the service name of a hop. Node labels constrain it.
	AttrService = "service.name"
	// AttrOperation is the operation (span) name of a hop. Relationship
	// types constrain the callee's operation.
	AttrOperation = "name"
)

// PropertyType is the declared type of a well-known hop attribute.
type PropertyType string

const (
	TypeAny    PropertyType = "any"
	TypeString PropertyType = "string"
	TypeInt    PropertyType = "int"
	TypeFloat  PropertyType = "float"
	TypeBool   PropertyType = "bool"
	TypeNull   PropertyType = "null"
	TypeList   PropertyType = "list"
)

// KnownProperties declares the types of attributes every hop reports.
// Properties outside this table are untyped and checked at runtime only.
var KnownProperties = map[string]PropertyType{
	AttrService:        TypeString,
	AttrOperation:      TypeString,
	"request.method":   TypeString,
	"request.path":     TypeString,
	"request.size":     TypeInt,
	"response.code":    TypeInt,
	"response.size":    TypeInt,
	"duration":         TypeInt,
	"upstream.cluster": TypeString,
}

// IsResponseProperty reports whether key is only known once the hop has
// seen its response: the response.* attributes, duration and
// upstream.cluster.
func IsResponseProperty(key string) bool {
	return strings.HasPrefix(key, "response.") || key == "duration" || key == "upstream.cluster"
}

// Direction is the direction of a relationship as written in the query.
type Direction string

const (
	DirOutgoing   Direction = "outgoing"
	DirIncoming   Direction = "incoming"
	DirUndirected Direction = "undirected"
)

// PatternNode is a node variable bound to a hop.
type PatternNode struct {
	Name       string   `json:"name"`
	Labels     []string `json:"labels,omitempty"`
	Predicates []Expr   `json:"-"`
	Optional   bool     `json:"optional,omitempty"`
	Anonymous  bool     `json:"anonymous,omitempty"`
}

// PatternEdge is a relationship variable bound to a call between two hops.
// Source is always the caller and Target the callee, whatever Direction
// the query used.
type PatternEdge struct {
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Direction  Direction `json:"direction"`
	Types      []string  `json:"types,omitempty"`
	Predicates []Expr    `json:"-"`
	Optional   bool      `json:"optional,omitempty"`
	Anonymous  bool      `json:"anonymous,omitempty"`
}

// VarKind distinguishes node and edge variables.
type VarKind string

const (
	VarNode VarKind = "node"
	VarEdge VarKind = "edge"
)

// RootBinding is the variable where partial matches converge.
type RootBinding struct {
	Var  string  `json:"var"`
	Kind VarKind `json:"kind"`
}

// Level is one position of the linearized pattern chain. Level 0 is the
// outermost caller. Edge is the relationship from the previous level and is
// empty at level 0.
type Level struct {
	Index    int    `json:"index"`
	Node     string `json:"node"`
	Edge     string `json:"edge,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// AggKind is the kind of aggregation.
type AggKind string

const (
	AggCount            AggKind = "count"
	AggAverage          AggKind = "avg"
	AggHistogramDepth   AggKind = "histogram_depth"
	AggHistogramBreadth AggKind = "histogram_breadth"
	AggUDF              AggKind = "udf"
	// AggCollect counts distinct returned rows when RETURN has no
	// aggregation call.
	AggCollect AggKind = "collect"
)

// GroupKey is a plain RETURN expression next to the aggregation.
type GroupKey struct {
	Name string
	Expr Expr
}

// AggregationSpec describes how completed matches are combined.
type AggregationSpec struct {
	Kind AggKind
	// Target is the variable of count/histogram aggregations. Empty for
	// count(*).
	Target string
	// Args are the inputs of avg and UDF aggregations.
	Args []Expr
	// Function is the UDF name for AggUDF.
	Function string
	// Name is the output column name (alias or rendered call).
	Name string
	Keys []GroupKey
}

// UdfKind is the kind of a user-defined function.
type UdfKind string

const (
	UdfScalar    UdfKind = "scalar"
	UdfAggregate UdfKind = "aggregate"
)

// UdfBinding is a user-defined function referenced by the query. The body
// is not part of the IR.
type UdfBinding struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
	Kind   UdfKind  `json:"kind"`
}

// Arity is the declared parameter count.
func (b UdfBinding) Arity() int {
	return len(b.Params)
}

// QueryIR is a compiled pattern query.
//
// Invariants (enforced by the builder and checked by compiler.Validate):
//   - every edge endpoint names a node
//   - Root names a node or edge
//   - every Call resolves to a UdfBinding
//   - the pattern is weakly connected and Chain covers every node once
type QueryIR struct {
	Nodes []PatternNode
	Edges []PatternEdge
	// Predicates are query-level conjuncts: constant ones and those that
	// reference more than one variable.
	Predicates  []Expr
	Aggregation AggregationSpec
	Root        RootBinding
	UDFs        []UdfBinding
	Chain       []Level
}

// Node returns the node with the given name.
func (q *QueryIR) Node(name string) (PatternNode, bool) {
	for _, n := range q.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return PatternNode{}, false
}

// Edge returns the edge with the given name.
func (q *QueryIR) Edge(name string) (PatternEdge, bool) {
	for _, e := range q.Edges {
		if e.Name == name {
			return e, true
		}
	}
	return PatternEdge{}, false
}

// UDF returns the binding with the given name.
func (q *QueryIR) UDF(name string) (UdfBinding, bool) {
	for _, b := range q.UDFs {
		if b.Name == name {
			return b, true
		}
	}
	return UdfBinding{}, false
}

// LevelOf returns the chain level a variable is evaluated at. An edge
// variable lives at the level of its callee.
func (q *QueryIR) LevelOf(name string) (int, bool) {
	for _, l := range q.Chain {
		if l.Node == name || (l.Edge != "" && l.Edge == name) {
			return l.Index, true
		}
	}
	return 0, false
}

// RootLevel is the chain level where matches converge.
func (q *QueryIR) RootLevel() int {
	level, _ := q.LevelOf(q.Root.Var)
	return level
}

// Canonical returns the canonical object form of q used for fingerprints.
// Conjunct lists are sorted by their formatted text.
func (q *QueryIR) Canonical() Object {
	nodes := make(Array, len(q.Nodes))
	for i, n := range q.Nodes {
		nodes[i] = NewObject(
			O("name", String(n.Name)),
			O("labels", Strings(n.Labels)),
			O("predicates", formatSorted(n.Predicates)),
			O("optional", Bool(n.Optional)),
		)
	}
	edges := make(Array, len(q.Edges))
	for i, e := range q.Edges {
		edges[i] = NewObject(
			O("name", String(e.Name)),
			O("source", String(e.Source)),
			O("target", String(e.Target)),
			O("types", Strings(e.Types)),
			O("predicates", formatSorted(e.Predicates)),
			O("optional", Bool(e.Optional)),
		)
	}
	chain := make(Array, len(q.Chain))
	for i, l := range q.Chain {
		chain[i] = NewObject(
			O("node", String(l.Node)),
			O("edge", String(l.Edge)),
			O("optional", Bool(l.Optional)),
		)
	}
	udfs := make(Array, len(q.UDFs))
	for i, b := range q.UDFs {
		udfs[i] = NewObject(
			O("name", String(b.Name)),
			O("params", Strings(b.Params)),
			O("kind", String(b.Kind)),
		)
	}

	agg := q.Aggregation
	args := make([]string, len(agg.Args))
	for i, a := range agg.Args {
		args[i] = FormatExpr(a)
	}
	keys := make(Array, len(agg.Keys))
	for i, k := range agg.Keys {
		keys[i] = NewObject(O("name", String(k.Name)), O("expr", String(FormatExpr(k.Expr))))
	}

	return NewObject(
		O("ir_version", String(IRVersion)),
		O("nodes", nodes),
		O("edges", edges),
		O("chain", chain),
		O("predicates", formatSorted(q.Predicates)),
		O("root", NewObject(O("var", String(q.Root.Var)), O("kind", String(q.Root.Kind)))),
		O("aggregation", NewObject(
			O("kind", String(agg.Kind)),
			O("target", String(agg.Target)),
			O("function", String(agg.Function)),
			O("name", String(agg.Name)),
			O("args", Strings(args)),
			O("keys", keys),
		)),
		O("udfs", udfs),
	)
}

func formatSorted(exprs []Expr) Array {
	texts := make([]string, len(exprs))
	for i, e := range exprs {
		texts[i] = FormatExpr(e)
	}
	slices.SortFunc(texts, strings.Compare)
	return Strings(texts)
}
