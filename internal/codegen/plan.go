package codegen

import (
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/go-faster/errors"

	"github.com/roach88/dtc/internal/ir"
	"github.com/roach88/dtc/internal/udf"
	"github.com/roach88/dtc/pkg/tracefilter"
)

// planner lowers one QueryIR into a tracefilter.Plan.
type planner struct {
	q     *ir.QueryIR
	defs  []udf.Definition
	m     *Mangler
	lower *Lowerer

	// collect gathers, per level, the attribute keys that must travel with
	// the accumulator.
	collect []map[string]bool
}

func newPlanner(q *ir.QueryIR, defs []udf.Definition, m *Mangler) *planner {
	return &planner{
		q:       q,
		defs:    defs,
		m:       m,
		lower:   NewLowerer(m),
		collect: make([]map[string]bool, len(q.Chain)),
	}
}

// plan builds the plan. fingerprint identifies the plan and seeds the wire
// query id.
func (p *planner) plan(fingerprint string) (*tracefilter.Plan, error) {
	out := &tracefilter.Plan{
		Query:       xxhash.Sum64String(fingerprint),
		Fingerprint: fingerprint,
		Root:        p.q.RootLevel(),
	}

	for _, l := range p.q.Chain {
		level, err := p.level(l)
		if err != nil {
			return nil, err
		}
		out.Levels = append(out.Levels, level)
	}

	filter, err := p.lower.LowerAll(p.q.Predicates)
	if err != nil {
		return nil, errors.Wrap(err, "query predicates")
	}
	out.Filter = filter.Code
	p.need(filter.Properties)

	agg, err := p.aggregation()
	if err != nil {
		return nil, err
	}
	out.Aggregation = agg

	for i := range out.Levels {
		out.Levels[i].Collect = sortedKeys(p.collect[i])
	}

	for _, d := range p.defs {
		out.UDFs = append(out.UDFs, tracefilter.UDF{
			Name:   d.Name,
			Ident:  p.m.UDF(d.Name),
			Params: d.Params,
			Kind:   string(d.Kind),
			Init:   d.Init,
			Body:   d.Body,
		})
	}
	return out, nil
}

// level lowers the predicates local to one chain level: node labels and
// predicates, and for levels below the top, the types and predicates of the
// edge leading into it.
func (p *planner) level(l ir.Level) (tracefilter.Level, error) {
	node, _ := p.q.Node(l.Node)
	out := tracefilter.Level{
		Index:    l.Index,
		Node:     l.Node,
		Vars:     []string{p.m.Var(l.Node)},
		Optional: l.Optional,
	}

	var conj []ir.Expr
	for _, label := range node.Labels {
		conj = append(conj, ir.Binary{
			Op:    ir.OpEq,
			Left:  ir.PropertyRef{Var: node.Name, Key: ir.AttrService},
			Right: ir.Literal{Value: ir.String(label)},
		})
	}
	conj = append(conj, node.Predicates...)

	if l.Edge != "" {
		edge, _ := p.q.Edge(l.Edge)
		out.Edge = l.Edge
		out.Vars = append(out.Vars, p.m.Var(l.Edge))
		if len(edge.Types) > 0 {
			conj = append(conj, ir.Binary{
				Op:    ir.OpIn,
				Left:  ir.PropertyRef{Var: edge.Name, Key: ir.AttrOperation},
				Right: ir.Literal{Value: ir.Strings(edge.Types)},
			})
		}
		conj = append(conj, edge.Predicates...)
	}

	lowered, err := p.lower.LowerAll(conj)
	if err != nil {
		return tracefilter.Level{}, errors.Wrapf(err, "level %d", l.Index)
	}
	out.Predicate = lowered.Code
	return out, nil
}

func (p *planner) aggregation() (tracefilter.Aggregation, error) {
	spec := p.q.Aggregation
	out := tracefilter.Aggregation{
		Kind:     string(spec.Kind),
		Name:     spec.Name,
		Level:    -1,
		Function: spec.Function,
	}
	if spec.Target != "" {
		level, ok := p.q.LevelOf(spec.Target)
		if !ok {
			return tracefilter.Aggregation{}, errors.Errorf("aggregation target %q is not bound to a level", spec.Target)
		}
		out.Level = level
	}

	for i, a := range spec.Args {
		lowered, err := p.lower.Lower(a)
		if err != nil {
			return tracefilter.Aggregation{}, errors.Wrapf(err, "aggregation argument %d", i)
		}
		p.need(lowered.Properties)
		out.Args = append(out.Args, lowered.Code)
	}
	for _, k := range spec.Keys {
		lowered, err := p.lower.Lower(k.Expr)
		if err != nil {
			return tracefilter.Aggregation{}, errors.Wrapf(err, "key %s", k.Name)
		}
		p.need(lowered.Properties)
		out.Keys = append(out.Keys, tracefilter.Key{Name: k.Name, Code: lowered.Code})
	}
	return out, nil
}

// need records that refs must be carried to the root.
func (p *planner) need(refs []ir.PropertyRef) {
	for _, ref := range refs {
		level, ok := p.q.LevelOf(ref.Var)
		if !ok {
			continue
		}
		if p.collect[level] == nil {
			p.collect[level] = make(map[string]bool)
		}
		p.collect[level][ref.Key] = true
	}
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
