package tracefilter

// MatchTrace evaluates the whole pattern over an assembled trace.
//
// This is the centralized matcher run by root-only filters. Any hop may
// bind level 0, consecutive levels bind a downward parent-child path and
// optional levels bind maximally: a match stops at level j only when no
// child of its level-j hop satisfies level j+1. Matches are returned in
// hop order, depth first.
func (p *Program) MatchTrace(t Trace) []Accumulator {
	tr := newTree(t)
	var out []Accumulator
	for i := range tr.hops {
		if !p.LevelHolds(0, tr.hops[i]) {
			continue
		}
		start := Accumulator{}.Extend(p.bind(0, tr.hops[i], tr.breadth(i)))
		p.extend(tr, i, start, func(m Accumulator) {
			if p.Accepts(m) {
				out = append(out, m)
			}
		})
	}
	return out
}

// extend grows m, whose last level is bound to hop i, down the tree.
func (p *Program) extend(tr tree, i int, m Accumulator, emit func(Accumulator)) {
	next := m.Cursor
	if next == len(p.plan.Levels) {
		emit(m)
		return
	}

	matched := false
	for _, c := range tr.children[tr.hops[i].SpanID] {
		if !p.LevelHolds(next, tr.hops[c]) {
			continue
		}
		matched = true
		p.extend(tr, c, m.Extend(p.bind(next, tr.hops[c], tr.breadth(c))), emit)
	}
	if !matched && p.plan.Levels[next].Optional {
		emit(m)
	}
}
