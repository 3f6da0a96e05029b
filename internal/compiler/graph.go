package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/dtc/internal/ir"
)

// patternGraph is the call graph of a pattern: node name to the edges that
// leave it (caller side) and enter it (callee side).
type patternGraph struct {
	order []string
	out   map[string][]ir.PatternEdge
	in    map[string][]ir.PatternEdge
}

func buildPatternGraph(nodes []ir.PatternNode, edges []ir.PatternEdge) patternGraph {
	g := patternGraph{
		order: make([]string, len(nodes)),
		out:   make(map[string][]ir.PatternEdge, len(nodes)),
		in:    make(map[string][]ir.PatternEdge, len(nodes)),
	}
	for i, n := range nodes {
		g.order[i] = n.Name
	}
	for _, e := range edges {
		g.out[e.Source] = append(g.out[e.Source], e)
		g.in[e.Target] = append(g.in[e.Target], e)
	}
	return g
}

// connectedComponents returns the weakly connected components of the
// pattern, ignoring edge direction.
//
// Components are ordered by their first declared node, and the names
// inside each component are sorted. A connected pattern returns exactly one
// component.
func connectedComponents(nodes []ir.PatternNode, edges []ir.PatternEdge) [][]string {
	g := buildPatternGraph(nodes, edges)

	seen := make(map[string]bool, len(nodes))
	var comps [][]string
	for _, start := range g.order {
		if seen[start] {
			continue
		}

		var comp []string
		stack := []string{start}
		seen[start] = true
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, v)

			for _, e := range g.out[v] {
				if !seen[e.Target] {
					seen[e.Target] = true
					stack = append(stack, e.Target)
				}
			}
			for _, e := range g.in[v] {
				if !seen[e.Source] {
					seen[e.Source] = true
					stack = append(stack, e.Source)
				}
			}
		}
		slices.Sort(comp)
		comps = append(comps, comp)
	}
	return comps
}

// linearize orders a connected pattern into its chain of levels.
//
// The pattern must be a single directed path n0 -> n1 -> ... -> nk:
//   - no node calls two pattern nodes (fan-out)
//   - no node is called by two pattern nodes (fan-in)
//   - exactly one node has no caller (otherwise the pattern is a cycle)
//
// Levels introduced by OPTIONAL MATCH must form a suffix of the chain.
func linearize(nodes []ir.PatternNode, edges []ir.PatternEdge) ([]ir.Level, error) {
	g := buildPatternGraph(nodes, edges)

	var starts []string
	for _, name := range g.order {
		if out := g.out[name]; len(out) > 1 {
			return nil, &UnsupportedPatternError{
				Reason: fmt.Sprintf("node %q calls more than one pattern node (%s, %s); only single chains are supported",
					name, out[0].Target, out[1].Target),
			}
		}
		if in := g.in[name]; len(in) > 1 {
			return nil, &UnsupportedPatternError{
				Reason: fmt.Sprintf("node %q is called by more than one pattern node (%s, %s); only single chains are supported",
					name, in[0].Source, in[1].Source),
			}
		}
		if len(g.in[name]) == 0 {
			starts = append(starts, name)
		}
	}
	if len(starts) != 1 {
		return nil, &UnsupportedPatternError{Reason: "pattern contains a cycle"}
	}

	optionalNode := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		optionalNode[n.Name] = n.Optional
	}

	chain := make([]ir.Level, 0, len(nodes))
	chain = append(chain, ir.Level{Index: 0, Node: starts[0], Optional: optionalNode[starts[0]]})
	for cur := starts[0]; len(g.out[cur]) == 1; {
		e := g.out[cur][0]
		cur = e.Target
		chain = append(chain, ir.Level{
			Index:    len(chain),
			Node:     cur,
			Edge:     e.Name,
			Optional: optionalNode[cur] || e.Optional,
		})
	}
	if len(chain) != len(nodes) {
		return nil, &UnsupportedPatternError{Reason: "pattern contains a cycle"}
	}

	for i := 1; i < len(chain); i++ {
		if chain[i-1].Optional && !chain[i].Optional {
			return nil, &UnsupportedPatternError{
				Reason: fmt.Sprintf("required node %q follows optional node %q; OPTIONAL MATCH must extend the end of the chain",
					chain[i].Node, chain[i-1].Node),
			}
		}
	}
	return chain, nil
}
