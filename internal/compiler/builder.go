package compiler

import (
	"fmt"
	"slices"
	"text/scanner"

	"github.com/go-faster/errors"

	"github.com/roach88/dtc/internal/cypher"
	"github.com/roach88/dtc/internal/ir"
)

// BuildOptions configures Build.
type BuildOptions struct {
	// Root is the variable where partial matches converge.
	Root string
	// UDFs declares the user-defined functions the query may call. Only
	// the declarations the query references end up in the IR.
	UDFs []ir.UdfBinding
}

// pending is a conjunct source waiting for every variable to be declared.
type pending struct {
	expr   cypher.Expr
	clause string
}

type builder struct {
	opts BuildOptions

	nodes   []ir.PatternNode
	edges   []ir.PatternEdge
	nodeIdx map[string]int
	edgeIdx map[string]int
	pos     map[string]scanner.Position
	taken   map[string]bool

	udfs    map[string]ir.UdfBinding
	usedUDF map[string]bool

	anonNodes int
	anonEdges int

	chain     []ir.Level
	rootLevel int

	preds []pending
	query []ir.Expr
}

// Build walks a parsed query and produces its QueryIR.
//
// Errors are members of the SemanticError family. The checks run in a fixed
// order: variable declarations, root existence, connectivity, chain shape,
// predicates, the RETURN clause, then response attributes read above the
// root.
func Build(q *cypher.Query, opts BuildOptions) (*ir.QueryIR, error) {
	if q == nil || q.Return == nil {
		return nil, errors.New("build: empty query")
	}

	b := &builder{
		opts:    opts,
		nodeIdx: make(map[string]int),
		edgeIdx: make(map[string]int),
		pos:     make(map[string]scanner.Position),
		taken:   namedVariables(q),
		udfs:    make(map[string]ir.UdfBinding, len(opts.UDFs)),
		usedUDF: make(map[string]bool),
	}
	for _, u := range opts.UDFs {
		b.udfs[u.Name] = u
	}

	if err := b.declare(q); err != nil {
		return nil, err
	}

	root, err := b.resolveRoot()
	if err != nil {
		return nil, err
	}

	if comps := connectedComponents(b.nodes, b.edges); len(comps) > 1 {
		return nil, &DisconnectedPatternError{Components: comps}
	}

	chain, err := linearize(b.nodes, b.edges)
	if err != nil {
		return nil, err
	}

	out := &ir.QueryIR{Root: root, Chain: chain}
	level, _ := out.LevelOf(root.Var)
	b.chain, b.rootLevel = chain, level
	if chain[level].Optional {
		return nil, &UnsupportedPatternError{
			Reason: fmt.Sprintf("root %q is bound by OPTIONAL MATCH; the root must be a required pattern element", root.Var),
			Pos:    b.pos[root.Var],
		}
	}

	if err := b.attachPredicates(); err != nil {
		return nil, err
	}

	agg, err := b.aggregation(q.Return)
	if err != nil {
		return nil, err
	}

	out.Nodes = b.nodes
	out.Edges = b.edges
	out.Predicates = b.query
	out.Aggregation = agg
	out.UDFs = b.referencedUDFs()

	if err := b.checkResponseProperties(out); err != nil {
		return nil, err
	}

	if errs := Validate(out); len(errs) > 0 {
		return nil, errors.Errorf("build produced invalid IR: %s", errs[0])
	}
	return out, nil
}

// namedVariables collects every user-written variable name so synthesized
// names never collide with them.
func namedVariables(q *cypher.Query) map[string]bool {
	names := make(map[string]bool)
	for _, c := range q.Clauses {
		for _, p := range c.Patterns {
			for _, n := range p.Nodes {
				if n.Var != "" {
					names[n.Var] = true
				}
			}
			for _, r := range p.Rels {
				if r.Var != "" {
					names[r.Var] = true
				}
			}
		}
	}
	return names
}

func (b *builder) fresh(prefix string, counter *int) string {
	for {
		*counter++
		name := fmt.Sprintf("_%s%d", prefix, *counter)
		if !b.taken[name] {
			b.taken[name] = true
			return name
		}
	}
}

func (b *builder) declare(q *cypher.Query) error {
	for _, c := range q.Clauses {
		for _, p := range c.Patterns {
			names := make([]string, len(p.Nodes))
			for i, n := range p.Nodes {
				name, err := b.declareNode(n, c.Optional)
				if err != nil {
					return err
				}
				names[i] = name
			}
			for i, r := range p.Rels {
				if err := b.declareEdge(r, names[i], names[i+1], c.Optional); err != nil {
					return err
				}
			}
		}
		if c.Where != nil {
			b.preds = append(b.preds, pending{expr: c.Where, clause: "WHERE"})
		}
	}
	return nil
}

func (b *builder) declareNode(n *cypher.NodePattern, optional bool) (string, error) {
	name := n.Var
	anonymous := name == ""
	if anonymous {
		name = b.fresh("n", &b.anonNodes)
	}
	if _, ok := b.edgeIdx[name]; ok {
		return "", &DuplicateVariableError{Name: name, Pos: n.Pos}
	}

	if i, ok := b.nodeIdx[name]; ok {
		node := &b.nodes[i]
		for _, l := range n.Labels {
			if !slices.Contains(node.Labels, l) {
				node.Labels = append(node.Labels, l)
			}
		}
		node.Optional = node.Optional && optional
	} else {
		b.nodeIdx[name] = len(b.nodes)
		b.pos[name] = n.Pos
		b.nodes = append(b.nodes, ir.PatternNode{
			Name:      name,
			Labels:    slices.Clone(n.Labels),
			Optional:  optional,
			Anonymous: anonymous,
		})
	}

	b.addProps(name, n.Props)
	return name, nil
}

func (b *builder) declareEdge(r *cypher.RelPattern, left, right string, optional bool) error {
	if r.VarLength {
		return &UnsupportedPatternError{Reason: "variable-length relationships are not supported", Pos: r.Pos}
	}

	name := r.Var
	anonymous := name == ""
	if anonymous {
		name = b.fresh("e", &b.anonEdges)
	}
	_, isNode := b.nodeIdx[name]
	_, isEdge := b.edgeIdx[name]
	if isNode || isEdge {
		return &DuplicateVariableError{Name: name, Pos: r.Pos}
	}

	edge := ir.PatternEdge{
		Name:      name,
		Source:    left,
		Target:    right,
		Direction: ir.DirOutgoing,
		Types:     slices.Clone(r.Types),
		Optional:  optional,
		Anonymous: anonymous,
	}
	switch r.Direction {
	case cypher.Incoming:
		edge.Source, edge.Target = right, left
		edge.Direction = ir.DirIncoming
	case cypher.Undirected:
		edge.Direction = ir.DirUndirected
	}

	b.edgeIdx[name] = len(b.edges)
	b.pos[name] = r.Pos
	b.edges = append(b.edges, edge)

	b.addProps(name, r.Props)
	return nil
}

// addProps turns an inline property map into equality conjuncts.
func (b *builder) addProps(name string, props []cypher.PropertyEntry) {
	for _, p := range props {
		b.preds = append(b.preds, pending{
			clause: "property map",
			expr: &cypher.BinaryExpr{
				Left: &cypher.PropertyAccess{
					Subject: &cypher.Variable{Name: name, Pos: p.Pos},
					Key:     p.Key,
					Pos:     p.Pos,
				},
				Op:    cypher.OpEq,
				Right: p.Value,
				Pos:   p.Pos,
			},
		})
	}
}

func (b *builder) resolveRoot() (ir.RootBinding, error) {
	name := b.opts.Root
	if i, ok := b.nodeIdx[name]; ok && !b.nodes[i].Anonymous {
		return ir.RootBinding{Var: name, Kind: ir.VarNode}, nil
	}
	if i, ok := b.edgeIdx[name]; ok && !b.edges[i].Anonymous {
		return ir.RootBinding{Var: name, Kind: ir.VarEdge}, nil
	}

	var known []string
	for _, n := range b.nodes {
		if !n.Anonymous {
			known = append(known, n.Name)
		}
	}
	for _, e := range b.edges {
		if !e.Anonymous {
			known = append(known, e.Name)
		}
	}
	slices.Sort(known)
	return ir.RootBinding{}, &UnknownRootError{Root: name, Known: known}
}

// attachPredicates converts every pending conjunct and attaches it to the
// single variable it mentions, or to the query when it mentions none or
// several.
func (b *builder) attachPredicates() error {
	for _, p := range b.preds {
		for _, conj := range splitConjuncts(p.expr) {
			e, err := b.expr(conj, p.clause)
			if err != nil {
				return err
			}
			t, err := typeOf(e, conj.Position())
			if err != nil {
				return err
			}
			if !isBoolish(t) {
				return &TypeError{
					Msg: fmt.Sprintf("%s condition %s has type %s, want bool", p.clause, ir.FormatExpr(e), t),
					Pos: conj.Position(),
				}
			}

			vars := ir.Vars(e)
			if len(vars) != 1 {
				b.query = append(b.query, e)
				continue
			}
			if i, ok := b.nodeIdx[vars[0]]; ok {
				b.nodes[i].Predicates = append(b.nodes[i].Predicates, e)
			} else {
				i := b.edgeIdx[vars[0]]
				b.edges[i].Predicates = append(b.edges[i].Predicates, e)
			}
		}
	}
	return nil
}

func splitConjuncts(e cypher.Expr) []cypher.Expr {
	if bin, ok := e.(*cypher.BinaryExpr); ok && bin.Op == cypher.OpAnd {
		return append(splitConjuncts(bin.Left), splitConjuncts(bin.Right)...)
	}
	return []cypher.Expr{e}
}

func (b *builder) referencedUDFs() []ir.UdfBinding {
	var out []ir.UdfBinding
	for name := range b.usedUDF {
		out = append(out, b.udfs[name])
	}
	slices.SortFunc(out, func(x, y ir.UdfBinding) int {
		switch {
		case x.Name < y.Name:
			return -1
		case x.Name > y.Name:
			return 1
		default:
			return 0
		}
	})
	return out
}

func (b *builder) isVariable(name string) bool {
	_, isNode := b.nodeIdx[name]
	_, isEdge := b.edgeIdx[name]
	return isNode || isEdge
}

// checkResponseProperties rejects response attributes of levels above the
// root. A hop above the root is matched on its request only.
func (b *builder) checkResponseProperties(q *ir.QueryIR) error {
	var exprs []ir.Expr
	for _, n := range q.Nodes {
		exprs = append(exprs, n.Predicates...)
	}
	for _, e := range q.Edges {
		exprs = append(exprs, e.Predicates...)
	}
	exprs = append(exprs, q.Predicates...)
	exprs = append(exprs, q.Aggregation.Args...)
	for _, k := range q.Aggregation.Keys {
		exprs = append(exprs, k.Expr)
	}

	for _, x := range exprs {
		for _, ref := range ir.Properties(x) {
			if !ir.IsResponseProperty(ref.Key) {
				continue
			}
			if l := b.levelOf(ref.Var); l < b.rootLevel {
				return &ResponsePropertyError{Var: ref.Var, Key: ref.Key, Level: l, Root: b.rootLevel, Pos: b.pos[ref.Var]}
			}
		}
	}
	return nil
}
