package cypher

import "text/scanner"

// Query is a parsed pattern query.
type Query struct {
	Clauses []*MatchClause
	Return  *ReturnClause
}

// MatchClause is a single MATCH or OPTIONAL MATCH clause with its WHERE.
type MatchClause struct {
	Optional bool
	Patterns []*Pattern
	Where    Expr // nil if absent
	Pos      scanner.Position
}

// Pattern is a path pattern: node (rel node)*.
//
// len(Rels) is always len(Nodes)-1 and Rels[i] connects Nodes[i] and Nodes[i+1].
type Pattern struct {
	Nodes []*NodePattern
	Rels  []*RelPattern
}

// NodePattern is a parenthesized node pattern.
type NodePattern struct {
	Var    string // empty for anonymous nodes
	Labels []string
	Props  []PropertyEntry
	Pos    scanner.Position
}

// Direction of a relationship pattern, relative to the order it was written in.
type Direction int

const (
	// Undirected is `--`.
	Undirected Direction = iota
	// Outgoing is `-->`: left calls right.
	Outgoing
	// Incoming is `<--`: right calls left.
	Incoming
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	default:
		return "undirected"
	}
}

// RelPattern is a relationship pattern between two nodes.
type RelPattern struct {
	Var       string // empty for anonymous relationships
	Types     []string
	Props     []PropertyEntry
	Direction Direction
	VarLength bool
	Pos       scanner.Position
}

// PropertyEntry is a single `key: value` entry of an inline property map.
type PropertyEntry struct {
	Key   string
	Value Expr
	Pos   scanner.Position
}

// ReturnClause is the RETURN clause.
type ReturnClause struct {
	Items []*ReturnItem
	Pos   scanner.Position
}

// ReturnItem is a single projection.
type ReturnItem struct {
	Expr  Expr
	Alias string
}

// Expr is a query expression.
//
// The set of implementations is closed: consumers switch over the concrete
// types and treat anything else as a programming error.
type Expr interface {
	expr()
	Position() scanner.Position
}

func (*Literal) expr()        {}
func (*Variable) expr()       {}
func (*PropertyAccess) expr() {}
func (*BinaryExpr) expr()     {}
func (*UnaryExpr) expr()      {}
func (*FunctionCall) expr()   {}
func (*ListExpr) expr()       {}

// LiteralKind is a kind of literal.
type LiteralKind int

const (
	LiteralString LiteralKind = iota + 1
	LiteralInteger
	LiteralNumber
	LiteralBool
	LiteralNull
)

// Literal is a constant. Text holds the unquoted source text.
type Literal struct {
	Kind LiteralKind
	Text string
	Pos  scanner.Position
}

// Variable is a reference to a pattern variable.
type Variable struct {
	Name string
	Pos  scanner.Position
}

// PropertyAccess is `subject.key`.
type PropertyAccess struct {
	Subject Expr
	Key     string
	Pos     scanner.Position
}

// BinaryExpr is a binary expression.
type BinaryExpr struct {
	Left  Expr
	Op    BinaryOp
	Right Expr
	Pos   scanner.Position
}

// UnaryExpr is a prefix or postfix unary expression.
type UnaryExpr struct {
	Op  UnaryOp
	X   Expr
	Pos scanner.Position
}

// FunctionCall is `name(args)`. Star is set for `count(*)`.
type FunctionCall struct {
	Name     string
	Distinct bool
	Star     bool
	Args     []Expr
	Pos      scanner.Position
}

// ListExpr is a list literal.
type ListExpr struct {
	Items []Expr
	Pos   scanner.Position
}

// Position implements Expr.
func (e *Literal) Position() scanner.Position { return e.Pos }

// Position implements Expr.
func (e *Variable) Position() scanner.Position { return e.Pos }

// Position implements Expr.
func (e *PropertyAccess) Position() scanner.Position { return e.Pos }

// Position implements Expr.
func (e *BinaryExpr) Position() scanner.Position { return e.Pos }

// Position implements Expr.
func (e *UnaryExpr) Position() scanner.Position { return e.Pos }

// Position implements Expr.
func (e *FunctionCall) Position() scanner.Position { return e.Pos }

// Position implements Expr.
func (e *ListExpr) Position() scanner.Position { return e.Pos }
