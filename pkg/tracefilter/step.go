package tracefilter

// The distributed protocol splits a match at the root level r.
//
// On the request leg each hop receives the prefixes its parent forwarded.
// A prefix with cursor c < r is extended when the hop satisfies level c; a
// prefix with cursor r has arrived and waits for the hop's response. Hops
// satisfying level 0 start new prefixes.
//
// On the response leg each hop computes the suffixes it can head from its
// own predicates and the suffixes of its children. A hop satisfying level r
// joins every arrived prefix with every child suffix starting at r+1.

// Down runs the request leg at hop. It returns the prefixes to forward to
// the hop's children and the prefixes that arrived at the root level.
// A set for another query is ignored.
func (p *Program) Down(in AccumulatorSet, hop Hop) (forward AccumulatorSet, arrived []Accumulator) {
	r := p.plan.Root
	forward.Query = p.plan.Query

	if r == 0 {
		return forward, []Accumulator{{}}
	}

	if in.Query == p.plan.Query {
		for _, a := range in.Accumulators {
			switch {
			case a.Start != 0 || a.Cursor > r:
				// Not a prefix of this plan.
			case a.Cursor == r:
				arrived = append(arrived, a)
			case p.LevelHolds(a.Cursor, hop):
				forward.Accumulators = append(forward.Accumulators, a.Extend(p.bind(a.Cursor, hop, 0)))
			}
		}
	}

	if p.LevelHolds(0, hop) {
		forward.Accumulators = append(forward.Accumulators, Accumulator{}.Extend(p.bind(0, hop, 0)))
	}
	return forward, arrived
}

// childSuffixes returns the suffixes starting at level.
func childSuffixes(query uint64, children []AccumulatorSet, level int) []Accumulator {
	var out []Accumulator
	for _, set := range children {
		if set.Query != query {
			continue
		}
		for _, a := range set.Accumulators {
			if a.Start == level {
				out = append(out, a)
			}
		}
	}
	return out
}

// head returns the suffixes starting at level j with j bound to hop.
func (p *Program) head(j int, hop Hop, breadth int, children []AccumulatorSet) []Accumulator {
	if !p.LevelHolds(j, hop) {
		return nil
	}
	self := Accumulator{Start: j}.Extend(p.bind(j, hop, breadth))
	if j+1 == len(p.plan.Levels) {
		return []Accumulator{self}
	}

	below := childSuffixes(p.plan.Query, children, j+1)
	if len(below) == 0 {
		if p.plan.Levels[j+1].Optional {
			return []Accumulator{self}
		}
		return nil
	}
	out := make([]Accumulator, len(below))
	for i, s := range below {
		out[i] = self.Join(s)
	}
	return out
}

// Up runs the response leg at hop: it returns every suffix hop can head
// below the root level. children are the suffix sets of the hop's child
// responses, one per child.
func (p *Program) Up(hop Hop, children []AccumulatorSet) AccumulatorSet {
	out := AccumulatorSet{Query: p.plan.Query}
	for j := p.plan.Root + 1; j < len(p.plan.Levels); j++ {
		out.Accumulators = append(out.Accumulators, p.head(j, hop, len(children), children)...)
	}
	return out
}

// Converge completes matches rooted at hop. arrived are the prefixes Down
// returned for hop. Matches failing the query filter are dropped.
func (p *Program) Converge(hop Hop, arrived []Accumulator, children []AccumulatorSet) []Accumulator {
	if len(arrived) == 0 {
		return nil
	}
	roots := p.head(p.plan.Root, hop, len(children), children)

	var out []Accumulator
	for _, prefix := range arrived {
		for _, s := range roots {
			m := prefix.Join(s)
			if p.complete(m) && p.Accepts(m) {
				out = append(out, m)
			}
		}
	}
	return out
}
