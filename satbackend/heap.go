package satbackend

// litHeap orders currently-unassigned literals as a max-heap keyed by the
// length of their watch list, the same decision-ordering heuristic the
// teacher's solver used: a literal watched by more clauses is more likely
// to propagate widely once assigned, so it is tried first.
type litHeap struct {
	watches [][]int // reference to the owning Backend's watch lists
	lits    []litHeapItem
	m       map[intLit]int
}

type litHeapItem struct {
	lit intLit
	i   int
}

func (h *litHeap) Len() int { return len(h.lits) }

func (h *litHeap) Less(i, j int) bool {
	l0, l1 := h.lits[i].lit, h.lits[j].lit
	return len(h.watches[l0]) > len(h.watches[l1])
}

func (h *litHeap) Swap(i, j int) {
	e0, e1 := h.lits[i], h.lits[j]
	e0.i, e1.i = j, i
	h.lits[i], h.lits[j] = e1, e0
	h.m[e0.lit] = j
	h.m[e1.lit] = i
}

func (h *litHeap) Push(x interface{}) {
	elt := x.(litHeapItem)
	elt.i = len(h.lits)
	h.m[elt.lit] = elt.i
	h.lits = append(h.lits, elt)
}

func (h *litHeap) Pop() interface{} {
	elt := h.lits[len(h.lits)-1]
	h.lits = h.lits[:len(h.lits)-1]
	delete(h.m, elt.lit)
	return elt
}
