package tracefilter

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-faster/errors"
)

// AccVar is the running value of aggregate UDF bodies.
const AccVar = "acc"

// Program is a compiled Plan. It is safe for concurrent use.
type Program struct {
	plan   *Plan
	levels []*vm.Program
	filter *vm.Program
	args   []*vm.Program
	keys   []*vm.Program
	agg    *udf
}

type udf struct {
	def  UDF
	body *vm.Program
	init *vm.Program
}

// call evaluates a scalar UDF.
func (u *udf) call(params ...any) (any, error) {
	if len(params) != len(u.def.Params) {
		return nil, errors.Errorf("%s: want %d arguments, got %d", u.def.Name, len(u.def.Params), len(params))
	}
	env := make(map[string]any, len(params))
	for i, p := range u.def.Params {
		env[p] = params[i]
	}
	return expr.Run(u.body, env)
}

// fold evaluates an aggregate UDF body for one input.
func (u *udf) fold(acc any, params []any) (any, error) {
	env := make(map[string]any, len(params)+1)
	for i, p := range u.def.Params {
		if i < len(params) {
			env[p] = params[i]
		}
	}
	env[AccVar] = acc
	return expr.Run(u.body, env)
}

// initial evaluates the init expression of an aggregate UDF.
func (u *udf) initial() (any, error) {
	if u.init == nil {
		return nil, nil
	}
	return expr.Run(u.init, map[string]any{})
}

// Compile compiles every expression of p.
func Compile(p *Plan) (*Program, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	prog := &Program{plan: p}

	opts := []expr.Option{expr.AllowUndefinedVariables()}
	for _, def := range p.UDFs {
		u := &udf{def: def}
		body, err := expr.Compile(def.Body, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, errors.Wrapf(err, "compile udf %s", def.Name)
		}
		u.body = body

		switch def.Kind {
		case KindScalar:
			opts = append(opts, expr.Function(def.Ident, u.call))
		case KindAggregate:
			if def.Init != "" {
				init, err := expr.Compile(def.Init)
				if err != nil {
					return nil, errors.Wrapf(err, "compile udf %s init", def.Name)
				}
				u.init = init
			}
			if def.Name == p.Aggregation.Function {
				prog.agg = u
			}
		default:
			return nil, errors.Errorf("udf %s: unknown kind %q", def.Name, def.Kind)
		}
	}

	compile := func(what, code string) (*vm.Program, error) {
		if code == "" {
			return nil, nil
		}
		out, err := expr.Compile(code, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "compile %s", what)
		}
		return out, nil
	}

	prog.levels = make([]*vm.Program, len(p.Levels))
	for i, l := range p.Levels {
		c, err := compile("level "+l.Node, l.Predicate)
		if err != nil {
			return nil, err
		}
		prog.levels[i] = c
	}

	var err error
	if prog.filter, err = compile("filter", p.Filter); err != nil {
		return nil, err
	}
	for _, a := range p.Aggregation.Args {
		c, err := compile("aggregation argument", a)
		if err != nil {
			return nil, err
		}
		prog.args = append(prog.args, c)
	}
	for _, k := range p.Aggregation.Keys {
		c, err := compile("key "+k.Name, k.Code)
		if err != nil {
			return nil, err
		}
		prog.keys = append(prog.keys, c)
	}
	if p.Aggregation.Kind == AggUDF && prog.agg == nil {
		return nil, errors.Errorf("aggregate udf %s is not defined", p.Aggregation.Function)
	}
	return prog, nil
}

// Load parses and compiles a JSON plan.
func Load(data []byte) (*Program, error) {
	p, err := ParsePlan(data)
	if err != nil {
		return nil, err
	}
	return Compile(p)
}

// MustLoad is like Load but panics on error. Generated filters call it
// with the plan they embed.
func MustLoad(data string) *Program {
	prog, err := Load([]byte(data))
	if err != nil {
		panic(err)
	}
	return prog
}

// Plan returns the compiled plan.
func (p *Program) Plan() *Plan { return p.plan }

// holds runs a boolean program. Errors and non-boolean results are a
// non-match.
func holds(prog *vm.Program, env map[string]any) bool {
	if prog == nil {
		return true
	}
	out, err := expr.Run(prog, env)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// LevelHolds reports whether hop satisfies the predicate of level.
func (p *Program) LevelHolds(level int, hop Hop) bool {
	if p.levels[level] == nil {
		return true
	}
	vars := p.plan.Levels[level].Vars
	env := make(map[string]any, len(vars))
	for _, v := range vars {
		env[v] = hop.Attributes
	}
	return holds(p.levels[level], env)
}

// bind binds level to hop, collecting the attributes the match needs.
func (p *Program) bind(level int, hop Hop, breadth int) Binding {
	b := Binding{Level: level, Span: hop.SpanID, Breadth: breadth}
	for _, k := range p.plan.Levels[level].Collect {
		v, ok := Normalize(hop.Attributes[k])
		if !ok {
			continue
		}
		if b.Attrs == nil {
			b.Attrs = make(map[string]any)
		}
		b.Attrs[k] = v
	}
	return b
}

// env is the evaluation environment of a completed match. Variables of
// unbound optional levels map to an empty map so their properties are null.
func (p *Program) env(m Accumulator) map[string]any {
	env := make(map[string]any)
	for _, l := range p.plan.Levels {
		attrs := map[string]any{}
		if b, ok := m.Binding(l.Index); ok && b.Attrs != nil {
			attrs = b.Attrs
		}
		for _, v := range l.Vars {
			env[v] = attrs
		}
	}
	return env
}

// Accepts reports whether a completed match satisfies the query filter.
func (p *Program) Accepts(m Accumulator) bool {
	if p.filter == nil {
		return true
	}
	return holds(p.filter, p.env(m))
}

// complete reports whether m binds every required level.
func (p *Program) complete(m Accumulator) bool {
	if m.Start != 0 {
		return false
	}
	if m.Cursor >= len(p.plan.Levels) {
		return true
	}
	return p.plan.Levels[m.Cursor].Optional
}
