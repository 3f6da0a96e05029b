package tracefilter

// Hop is one span observed by one proxy.
type Hop struct {
	SpanID     string
	ParentID   string
	Attributes map[string]any
}

// Trace is the set of hops of one request tree.
type Trace struct {
	ID   string
	Hops []Hop
}

// tree indexes a trace by parent.
type tree struct {
	hops     []Hop
	children map[string][]int
	tops     []int
}

func newTree(t Trace) tree {
	ids := make(map[string]bool, len(t.Hops))
	for _, h := range t.Hops {
		ids[h.SpanID] = true
	}
	tr := tree{hops: make([]Hop, len(t.Hops)), children: make(map[string][]int)}
	for i, h := range t.Hops {
		h.Attributes = NormalizeAttributes(h.Attributes)
		tr.hops[i] = h
		if h.ParentID == "" || !ids[h.ParentID] {
			tr.tops = append(tr.tops, i)
			continue
		}
		tr.children[h.ParentID] = append(tr.children[h.ParentID], i)
	}
	return tr
}

// breadth is the number of direct children of hop i.
func (t tree) breadth(i int) int {
	return len(t.children[t.hops[i].SpanID])
}
