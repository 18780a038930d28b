// Package satbackend implements the SAT Backend capability the CDCL(T)
// loop queries: add_clause/solve/model, with clauses persisting across
// repeated Solve calls. It is a generalization of the teacher's
// Davis-Putnam engine (two-watched-literal propagation, a max-heap of
// unassigned literals ordered by watch-list size, chronological
// backtracking via a decision stack) from "solve a single static problem"
// to "accept more clauses between solves, and solve again" — which is
// exactly what a lazy SMT loop needs from its propositional engine, since
// every theory refutation appends a blocking clause that must be visible
// to every subsequent search.
package satbackend

import (
	"container/heap"
	"fmt"
)

// Literal is a nonzero signed integer: positive names a variable, negative
// its negation. Magnitude is the 1-based variable index handed out by
// NewVar.
type Literal int

// Clause is a nonempty disjunction of literals.
type Clause []Literal

// Backend is a persistent, incremental SAT engine.
type Backend struct {
	numVars int
	clauses []rawClause

	// Rebuilt at the start of every Solve call from numVars/clauses.
	assignments []assnVal
	watches     [][]int
	unassigned  litHeap
	decisions   []decision
	impls       []intLit
	propIndex   int
	tried       []bool // per-variable: has the current decision been flipped already?

	numDecisions    int64
	numImplications int64
}

type rawClause struct {
	lits []intLit // internal 0-based watched-literal encoding
}

// intLit is 2*varIndex (0-based) for the positive literal, +1 for negated.
type intLit uint32

func (l intLit) assn() assnVal   { return assnVal(l&1) + 1 }
func (l intLit) variable() int   { return int(l >> 1) }
func (l intLit) negated() intLit { return l ^ 1 }

type assnVal uint8

const (
	unassigned assnVal = 0
	assnTrue   assnVal = 1
	assnFalse  assnVal = 2
)

func (a assnVal) inv() assnVal { return a ^ 3 }

type decision struct {
	implIdx int
	lit     intLit
}

// NewBackend constructs an empty persistent SAT backend with no declared
// variables and no clauses.
func NewBackend() *Backend {
	return &Backend{}
}

// NewVar allocates a fresh propositional variable and returns the literal
// that holds it positively.
func (b *Backend) NewVar() Literal {
	b.numVars++
	return Literal(b.numVars)
}

// NumVars reports how many variables have been declared so far.
func (b *Backend) NumVars() int { return b.numVars }

// AddClause appends c to the persistent clause database. c participates in
// every subsequent Solve call, per the ordering guarantee in the
// specification's concurrency section. A clause containing literal 0, or
// whose magnitude exceeds the declared variable count, is a programmer
// error in the caller (abstraction always registers a variable before
// handing out its literal) and is reported as an error rather than a
// panic.
func (b *Backend) AddClause(c Clause) error {
	if len(c) == 0 {
		return fmt.Errorf("satbackend: empty clause")
	}
	raw := make([]intLit, len(c))
	for i, lit := range c {
		if lit == 0 {
			return fmt.Errorf("satbackend: literal 0 is reserved")
		}
		v := int(lit)
		if v < 0 {
			v = -v
		}
		if v > b.numVars {
			return fmt.Errorf("satbackend: literal %d refers to an undeclared variable", lit)
		}
		il := intLit((v - 1) << 1)
		if lit < 0 {
			il |= 1
		}
		raw[i] = il
	}
	b.clauses = append(b.clauses, rawClause{raw})
	return nil
}

// Solve searches for a satisfying assignment over every clause added so
// far. It returns false if the clause database is unsatisfiable.
func (b *Backend) Solve() (bool, error) {
	b.resetSearchState()

	// Seed unit clauses directly as top-level implications before the
	// first decision; a conflict here means the persistent clause set is
	// unconditionally unsatisfiable.
	for _, cl := range b.clauses {
		if len(cl.lits) != 1 {
			continue
		}
		lit := cl.lits[0]
		v := lit.variable()
		if b.assignments[v] == unassigned {
			b.assignments[v] = lit.assn()
			b.impls = append(b.impls, lit)
			b.numImplications++
		} else if b.assignments[v] != lit.assn() {
			return false, nil
		}
	}
	if !b.bcp() {
		return false, nil
	}

	// Every variable left unassigned after unit propagation — whether or
	// not it is watched by any clause — still needs a value in the final
	// model, so it becomes a candidate decision.
	for v := 0; v < b.numVars; v++ {
		if b.assignments[v] == unassigned {
			b.pushUnassigned(intLit(v << 1))
		}
	}

	for {
		lit, ok := b.popUnassigned()
		if !ok {
			return true, nil
		}
		if b.assignments[lit.variable()] != unassigned {
			continue
		}
		b.deleteUnassigned(lit.negated())
		v := lit.variable()
		b.assignments[v] = lit.assn()
		b.numDecisions++
		b.decisions = append(b.decisions, decision{implIdx: len(b.impls), lit: lit})
		b.propIndex = len(b.impls)
		b.impls = append(b.impls, lit)

		for !b.bcp() {
			if !b.resolveConflict() {
				return false, nil
			}
		}
	}
}

// Model returns the complete assignment found by the most recent
// successful Solve call, as signed literals ordered by variable index.
func (b *Backend) Model() []Literal {
	model := make([]Literal, b.numVars)
	for v := 0; v < b.numVars; v++ {
		lit := Literal(v + 1)
		if b.assignments[v] == assnFalse {
			lit = -lit
		}
		model[v] = lit
	}
	return model
}

func (b *Backend) resetSearchState() {
	b.assignments = make([]assnVal, b.numVars)
	b.watches = make([][]int, b.numVars*2)
	b.tried = make([]bool, b.numVars)
	b.decisions = nil
	b.impls = nil
	b.propIndex = 0
	b.unassigned = litHeap{watches: b.watches, m: make(map[intLit]int)}

	for idx, cl := range b.clauses {
		if len(cl.lits) < 2 {
			continue
		}
		b.watches[cl.lits[0]] = append(b.watches[cl.lits[0]], idx)
		b.watches[cl.lits[1]] = append(b.watches[cl.lits[1]], idx)
	}
}

// bcp carries out boolean constraint propagation: it returns true once
// there are no more implications to propagate, or false upon locating a
// conflict.
func (b *Backend) bcp() bool {
	for {
		imps := b.impls[b.propIndex:]
		if len(imps) == 0 {
			return true
		}
		b.propIndex = len(b.impls)
		for _, impliedLit := range imps {
			neg := impliedLit.negated()
			watches := b.watches[neg]
		watchesLoop:
			for i := 0; i < len(watches); {
				clauseIdx := watches[i]
				cl := b.clauses[clauseIdx].lits
				if cl[0] == neg {
					cl[0], cl[1] = cl[1], cl[0]
				} else if cl[1] != neg {
					panic("satbackend: inconsistent watch state")
				}
				lit0 := cl[0]
				if b.assignments[lit0.variable()] == lit0.assn() {
					i++
					continue
				}
				for j := 2; j < len(cl); j++ {
					lit := cl[j]
					assn := b.assignments[lit.variable()]
					if assn == lit.assn().inv() {
						continue
					}
					b.watches[lit] = append(b.watches[lit], clauseIdx)
					if assn == unassigned {
						b.updateUnassigned(lit)
					}
					watches[i], watches[len(watches)-1] = watches[len(watches)-1], watches[i]
					watches = watches[:len(watches)-1]
					b.watches[neg] = watches
					cl[1], cl[j] = cl[j], cl[1]
					continue watchesLoop
				}
				i++
				other := cl[0]
				v := other.variable()
				if b.assignments[v] != unassigned {
					return false
				}
				b.assignments[v] = other.assn()
				b.deleteUnassigned(other)
				b.numImplications++
				b.impls = append(b.impls, other)
			}
		}
	}
}

// resolveConflict flips the most recently made decision that has not yet
// been tried both ways, rolling back the implications it produced.
func (b *Backend) resolveConflict() bool {
	di := -1
	var d decision
	for i := len(b.decisions) - 1; i >= 0; i-- {
		d = b.decisions[i]
		if !b.tried[d.lit.variable()] {
			di = i
			break
		}
	}
	if di == -1 {
		return false
	}
	for i := len(b.impls) - 1; i > d.implIdx; i-- {
		lit := b.impls[i]
		b.pushUnassigned(lit)
		b.assignments[lit.variable()] = unassigned
	}
	for _, dropped := range b.decisions[di+1:] {
		b.tried[dropped.lit.variable()] = false
	}
	b.impls = b.impls[:d.implIdx+1]
	b.impls[len(b.impls)-1] ^= 1
	b.decisions = b.decisions[:di+1]
	b.decisions[di].lit ^= 1
	b.assignments[d.lit.variable()] = d.lit.negated().assn()
	b.tried[d.lit.variable()] = true
	b.propIndex = d.implIdx
	return true
}

func (b *Backend) pushUnassigned(lit intLit) {
	heap.Push(&b.unassigned, litHeapItem{lit: lit})
}

func (b *Backend) popUnassigned() (intLit, bool) {
	if len(b.unassigned.lits) == 0 {
		return 0, false
	}
	return heap.Pop(&b.unassigned).(litHeapItem).lit, true
}

func (b *Backend) deleteUnassigned(lit intLit) {
	if i, ok := b.unassigned.m[lit]; ok {
		heap.Remove(&b.unassigned, i)
	}
}

func (b *Backend) updateUnassigned(lit intLit) {
	if i, ok := b.unassigned.m[lit]; ok {
		heap.Fix(&b.unassigned, i)
	} else {
		heap.Push(&b.unassigned, litHeapItem{lit: lit})
	}
}
