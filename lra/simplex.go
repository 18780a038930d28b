package lra

import (
	"fmt"
	"math/big"
	"sort"
)

type bound struct {
	val deltaRat
	id  int // originating constraint id, for unsat-core reporting
}

// tableau is a from-scratch Simplex instance built over one snapshot of
// the constraint trail. Variables 0..n-1 are the original (unbounded)
// variables; n..n+m-1 are the per-constraint slacks, which carry the
// actual bounds.
type tableau struct {
	names []string // original variable id -> name
	n     int
	m     int

	rows      []map[int]*big.Rat // row i: basicVar[i] = sum(coeff_j * nonbasic_j)
	basicVar  []int
	rowOfVar  []int
	lower     []*bound
	upper     []*bound
	value     []deltaRat
	coreOfRow []int // row i -> originating constraint id
}

func newTableau(active []idConstraint) (*tableau, error) {
	varSet := make(map[string]bool)
	for _, ic := range active {
		for name := range ic.c.Coeffs {
			varSet[name] = true
		}
	}
	names := make([]string, 0, len(varSet))
	for name := range varSet {
		names = append(names, name)
	}
	sort.Strings(names)
	nameID := make(map[string]int, len(names))
	for i, name := range names {
		nameID[name] = i
	}

	n := len(names)
	m := len(active)
	total := n + m

	t := &tableau{
		names:     names,
		n:         n,
		m:         m,
		rows:      make([]map[int]*big.Rat, m),
		basicVar:  make([]int, m),
		rowOfVar:  make([]int, total),
		lower:     make([]*bound, total),
		upper:     make([]*bound, total),
		value:     make([]deltaRat, total),
		coreOfRow: make([]int, m),
	}
	for i := range t.value {
		t.value[i] = ratZero()
	}
	for i := 0; i < n; i++ {
		t.rowOfVar[i] = -1
	}

	for i, ic := range active {
		slack := n + i
		t.basicVar[i] = slack
		t.rowOfVar[slack] = i
		t.coreOfRow[i] = ic.id

		row := make(map[int]*big.Rat, len(ic.c.Coeffs))
		for name, c := range ic.c.Coeffs {
			if c.Sign() == 0 {
				continue
			}
			row[nameID[name]] = new(big.Rat).Set(c)
		}
		t.rows[i] = row

		negOffset := new(big.Rat).Neg(ic.c.Offset)
		switch ic.c.Rel {
		case RelLe:
			t.upper[slack] = &bound{val: ratOf(negOffset), id: ic.id}
		case RelLt:
			t.upper[slack] = &bound{val: strictUpper(negOffset), id: ic.id}
		case RelEq:
			t.lower[slack] = &bound{val: ratOf(negOffset), id: ic.id}
			t.upper[slack] = &bound{val: ratOf(negOffset), id: ic.id}
		default:
			return nil, fmt.Errorf("lra: unknown relation %v", ic.c.Rel)
		}
	}
	return t, nil
}

// solve restores feasibility with Bland's-rule Simplex pivoting, returning
// either (true, nil) or (false, unsatCoreConstraintIDs).
func (t *tableau) solve() (bool, []int) {
	total := t.n + t.m
	maxIter := 1000 + 200*total
	for iter := 0; iter < maxIter; iter++ {
		row, violateUpper, ok := t.findViolation()
		if !ok {
			return true, nil
		}
		b := t.basicVar[row]
		var target deltaRat
		if violateUpper {
			target = t.upper[b].val
		} else {
			target = t.lower[b].val
		}

		entering, coeff, found := t.findEntering(row, violateUpper)
		if !found {
			return false, t.conflictCore(row, b, violateUpper)
		}

		theta := target.sub(t.value[b]).divByRat(coeff)
		t.applyDelta(entering, theta)
		t.pivot(row, entering)
	}
	return false, []int{}
}

func (t *tableau) findViolation() (row int, violateUpper bool, found bool) {
	total := t.n + t.m
	for v := 0; v < total; v++ {
		r := t.rowOfVar[v]
		if r < 0 {
			continue
		}
		if t.lower[v] != nil && t.value[v].cmp(t.lower[v].val) < 0 {
			return r, false, true
		}
		if t.upper[v] != nil && t.value[v].cmp(t.upper[v].val) > 0 {
			return r, true, true
		}
	}
	return 0, false, false
}

func (t *tableau) findEntering(row int, violateUpper bool) (int, *big.Rat, bool) {
	cols := make([]int, 0, len(t.rows[row]))
	for j := range t.rows[row] {
		cols = append(cols, j)
	}
	sort.Ints(cols)
	for _, j := range cols {
		c := t.rows[row][j]
		sign := c.Sign()
		if sign == 0 {
			continue
		}
		var canMove bool
		// violateUpper: basic var too high, must decrease.
		// violateLower: basic var too low, must increase.
		increase := (violateUpper && sign < 0) || (!violateUpper && sign > 0)
		if increase {
			canMove = t.upper[j] == nil || t.value[j].cmp(t.upper[j].val) < 0
		} else {
			canMove = t.lower[j] == nil || t.value[j].cmp(t.lower[j].val) > 0
		}
		if canMove {
			return j, c, true
		}
	}
	return 0, nil, false
}

func (t *tableau) conflictCore(row, b int, violateUpper bool) []int {
	core := map[int]bool{}
	if violateUpper {
		core[t.upper[b].id] = true
	} else {
		core[t.lower[b].id] = true
	}
	for j, c := range t.rows[row] {
		sign := c.Sign()
		if sign == 0 {
			continue
		}
		blockedAtUpper := (violateUpper && sign < 0) || (!violateUpper && sign > 0)
		if blockedAtUpper {
			if t.upper[j] != nil {
				core[t.upper[j].id] = true
			}
		} else {
			if t.lower[j] != nil {
				core[t.lower[j].id] = true
			}
		}
	}
	out := make([]int, 0, len(core))
	for id := range core {
		out = append(out, id)
	}
	return out
}

// applyDelta changes nonbasic variable v's value by d and propagates the
// resulting change to every basic variable whose row references v.
func (t *tableau) applyDelta(v int, d deltaRat) {
	t.value[v] = t.value[v].add(d)
	for r, row := range t.rows {
		if t.rowOfVar[v] == r {
			continue
		}
		if c, ok := row[v]; ok {
			t.value[t.basicVar[r]] = t.value[t.basicVar[r]].addScaled(c, d)
		}
	}
}

// pivot makes entering basic in row, replacing its current basic variable.
func (t *tableau) pivot(row, entering int) {
	leaving := t.basicVar[row]
	oldRow := t.rows[row]
	coeffE := oldRow[entering]
	invE := new(big.Rat).Inv(coeffE)

	newRow := make(map[int]*big.Rat, len(oldRow))
	for j, c := range oldRow {
		if j == entering {
			continue
		}
		newRow[j] = new(big.Rat).Neg(new(big.Rat).Mul(c, invE))
	}
	newRow[leaving] = new(big.Rat).Set(invE)

	t.rows[row] = newRow
	t.basicVar[row] = entering
	t.rowOfVar[entering] = row
	t.rowOfVar[leaving] = -1

	for r2, row2 := range t.rows {
		if r2 == row {
			continue
		}
		c, ok := row2[entering]
		if !ok || c.Sign() == 0 {
			continue
		}
		delete(row2, entering)
		for j, nc := range newRow {
			add := new(big.Rat).Mul(c, nc)
			if cur, exists := row2[j]; exists {
				cur.Add(cur, add)
				if cur.Sign() == 0 {
					delete(row2, j)
				}
			} else {
				row2[j] = add
			}
		}
	}
}

// model resolves every original variable's value under a concrete
// infinitesimal small enough to respect every strict bound that
// contributed to the satisfying assignment.
func (t *tableau) model() map[string]*big.Rat {
	delta := t.pickDelta()
	out := make(map[string]*big.Rat, t.n)
	for id, name := range t.names {
		out[name] = t.value[id].resolve(delta)
	}
	return out
}

func (t *tableau) pickDelta() *big.Rat {
	var as []*big.Rat
	collect := func(d deltaRat) { as = append(as, d.a) }
	for _, v := range t.value {
		collect(v)
	}
	for _, bnd := range t.lower {
		if bnd != nil {
			collect(bnd.val)
		}
	}
	for _, bnd := range t.upper {
		if bnd != nil {
			collect(bnd.val)
		}
	}
	sort.Slice(as, func(i, j int) bool { return as[i].Cmp(as[j]) < 0 })

	var minGap *big.Rat
	for i := 1; i < len(as); i++ {
		gap := new(big.Rat).Sub(as[i], as[i-1])
		if gap.Sign() == 0 {
			continue
		}
		if minGap == nil || gap.Cmp(minGap) < 0 {
			minGap = gap
		}
	}
	if minGap == nil {
		return big.NewRat(1, 1)
	}
	return new(big.Rat).Mul(minGap, big.NewRat(1, 2))
}
