// Package abstraction builds the propositional (Tseitin) abstraction of a
// formula: a bijection between every boolean-relevant subexpression and a
// SAT literal, plus the CNF clauses that force the SAT literal for a
// connective to agree with its operands' literals. This is what lets the
// CDCL(T) loop hand an arbitrary formula.Expr to a plain SAT backend and
// later translate a boolean model back into a set of theory atoms.
//
// Sharing falls out of formula's hash-consing for free: two occurrences of
// a structurally identical subexpression are the same Expr, so the table
// only ever builds one literal and one set of clauses for it, no matter
// how many times it appears.
package abstraction

import (
	"errors"
	"fmt"

	"github.com/qflra/cdclt/formula"
	"github.com/qflra/cdclt/satbackend"
)

// ErrUnsupportedNode is returned when a node kind reaches the abstraction
// table that it does not know how to encode.
var ErrUnsupportedNode = errors.New("abstraction: unsupported node kind")

// ErrDepthExceeded is returned when a formula's nesting exceeds the
// table's configured recursion limit, guarding against stack overflow on
// pathological or malformed input rather than a real proof obligation.
var ErrDepthExceeded = errors.New("abstraction: expression nesting too deep")

// ErrUnregisteredLiteral is returned by Literal/Expression when asked
// about an Expr the table never encoded.
var ErrUnregisteredLiteral = errors.New("abstraction: expression was never registered")

// maxDepth bounds recursion through Tseitin; SMT-LIB inputs deep enough to
// hit this are almost certainly generated pathologically rather than
// written by hand.
const maxDepth = 4096

// Backend is the capability surface the abstraction table needs from a
// propositional solver. satbackend.Backend satisfies it; options keeps its
// own backend registry against the same surface so a caller can choose
// which concrete implementation the table (and so the CDCL(T) loop) drives.
type Backend interface {
	NewVar() satbackend.Literal
	AddClause(satbackend.Clause) error
}

// Table is the bijection between formula subexpressions and SAT literals,
// together with the Tseitin clauses asserting their equivalence.
type Table struct {
	backend Backend

	litOf  map[formula.Expr]satbackend.Literal
	exprOf map[satbackend.Literal]formula.Expr
	atoms  []formula.Expr // boolean symbols and theory atoms, in Atoms() pre-order
	clauses []satbackend.Clause
}

// New builds the Tseitin abstraction of f against backend, registering one
// fresh SAT variable per boolean-relevant subexpression (pre-registering
// the atoms formula.Atoms returns first, in that order, so atom ids are
// stable regardless of Tseitin's recursion order) and adding every Tseitin
// clause it emits to backend. New does
// not add the unit clause asserting f itself; callers do that (or assert
// the literal directly) once New returns.
func New(backend Backend, f formula.Expr) (*Table, error) {
	t := &Table{
		backend: backend,
		litOf:   make(map[formula.Expr]satbackend.Literal),
		exprOf:  make(map[satbackend.Literal]formula.Expr),
	}

	for _, atom := range formula.Atoms(f) {
		t.register(atom)
		t.atoms = append(t.atoms, atom)
	}

	if _, err := t.encode(f, 0); err != nil {
		return nil, err
	}
	for _, c := range t.clauses {
		if err := backend.AddClause(c); err != nil {
			return nil, fmt.Errorf("abstraction: %w", err)
		}
	}
	return t, nil
}

func (t *Table) register(e formula.Expr) satbackend.Literal {
	if lit, ok := t.litOf[e]; ok {
		return lit
	}
	lit := t.backend.NewVar()
	t.litOf[e] = lit
	t.exprOf[lit] = e
	return lit
}

// Literal returns the SAT literal standing for e. Negation is handled
// without a dedicated variable: if e is Not(g), the literal is -Literal(g).
func (t *Table) Literal(e formula.Expr) (satbackend.Literal, error) {
	if e.Kind() == formula.KindNot {
		inner, err := t.Literal(e.Children()[0])
		if err != nil {
			return 0, err
		}
		return -inner, nil
	}
	lit, ok := t.litOf[e]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnregisteredLiteral, e)
	}
	return lit, nil
}

// Expression returns the subexpression a (non-negative) literal stands
// for. Negative literals are rejected: callers are expected to take the
// absolute value and track the polarity themselves, mirroring how a SAT
// model reports literals.
func (t *Table) Expression(lit satbackend.Literal) (formula.Expr, error) {
	e, ok := t.exprOf[lit]
	if !ok {
		return nil, fmt.Errorf("%w: literal %d", ErrUnregisteredLiteral, lit)
	}
	return e, nil
}

// Atoms returns every atom (boolean symbol or theory atom) pre-registered
// in the table, in the stable pre-order established by formula.Atoms.
func (t *Table) Atoms() []formula.Expr { return append([]formula.Expr(nil), t.atoms...) }

// AddLearnedClause asserts an additional clause over already-registered
// literals directly to the underlying SAT backend; this is how the
// CDCL(T) loop feeds back theory conflicts.
func (t *Table) AddLearnedClause(c satbackend.Clause) error {
	return t.backend.AddClause(c)
}

func (t *Table) emit(c satbackend.Clause) { t.clauses = append(t.clauses, c) }

// encode walks e, emitting Tseitin clauses for every connective it has not
// already visited, and returns e's literal.
func (t *Table) encode(e formula.Expr, depth int) (satbackend.Literal, error) {
	if depth > maxDepth {
		return 0, ErrDepthExceeded
	}
	if lit, ok := t.litOf[e]; ok {
		return lit, nil
	}

	switch e.Kind() {
	case formula.KindSymbol:
		return t.register(e), nil

	case formula.KindBoolConst:
		lit := t.register(e)
		if e.BoolValue() {
			t.emit(satbackend.Clause{lit})
		} else {
			t.emit(satbackend.Clause{-lit})
		}
		return lit, nil

	case formula.KindEq, formula.KindLe, formula.KindLt, formula.KindGe, formula.KindGt, formula.KindDistinct:
		return t.register(e), nil

	case formula.KindNot:
		inner, err := t.encode(e.Children()[0], depth+1)
		if err != nil {
			return 0, err
		}
		return -inner, nil

	case formula.KindAnd:
		return t.encodeAnd(e, depth)

	case formula.KindOr:
		return t.encodeOr(e, depth)

	case formula.KindImplies:
		return t.encodeImplies(e, depth)

	case formula.KindIff:
		return t.encodeIff(e, depth)

	case formula.KindIte:
		return t.encodeIte(e, depth)

	default:
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedNode, e.Kind())
	}
}

// encodeAnd emits the standard Tseitin clauses for a = c1 & c2 & ... & cn:
//
//	(-a v c1) & (-a v c2) & ... & (-a v cn)   [a implies every conjunct]
//	(a v -c1 v -c2 v ... v -cn)               [every conjunct implies a]
func (t *Table) encodeAnd(e formula.Expr, depth int) (satbackend.Literal, error) {
	a := t.register(e)
	children := e.Children()
	lits := make([]satbackend.Literal, len(children))
	for i, c := range children {
		lit, err := t.encode(c, depth+1)
		if err != nil {
			return 0, err
		}
		lits[i] = lit
		t.emit(satbackend.Clause{-a, lit})
	}
	allConjuncts := make(satbackend.Clause, 0, len(lits)+1)
	allConjuncts = append(allConjuncts, a)
	for _, lit := range lits {
		allConjuncts = append(allConjuncts, -lit)
	}
	t.emit(allConjuncts)
	return a, nil
}

// encodeOr emits the dual clauses for a = c1 | c2 | ... | cn.
func (t *Table) encodeOr(e formula.Expr, depth int) (satbackend.Literal, error) {
	a := t.register(e)
	children := e.Children()
	lits := make([]satbackend.Literal, len(children))
	for i, c := range children {
		lit, err := t.encode(c, depth+1)
		if err != nil {
			return 0, err
		}
		lits[i] = lit
		t.emit(satbackend.Clause{a, -lit})
	}
	anyDisjunct := make(satbackend.Clause, 0, len(lits)+1)
	anyDisjunct = append(anyDisjunct, -a)
	anyDisjunct = append(anyDisjunct, lits...)
	t.emit(anyDisjunct)
	return a, nil
}

// encodeImplies emits the clauses for a = (p -> q): (-a v -p v q), (a v p),
// (a v -q).
func (t *Table) encodeImplies(e formula.Expr, depth int) (satbackend.Literal, error) {
	a := t.register(e)
	children := e.Children()
	p, err := t.encode(children[0], depth+1)
	if err != nil {
		return 0, err
	}
	q, err := t.encode(children[1], depth+1)
	if err != nil {
		return 0, err
	}
	t.emit(satbackend.Clause{-a, -p, q})
	t.emit(satbackend.Clause{a, p})
	t.emit(satbackend.Clause{a, -q})
	return a, nil
}

// encodeIff emits the clauses for a = (p <-> q): (-a v -p v q), (-a v p v
// -q), (a v p v q), (a v -p v -q).
func (t *Table) encodeIff(e formula.Expr, depth int) (satbackend.Literal, error) {
	a := t.register(e)
	children := e.Children()
	p, err := t.encode(children[0], depth+1)
	if err != nil {
		return 0, err
	}
	q, err := t.encode(children[1], depth+1)
	if err != nil {
		return 0, err
	}
	t.emit(satbackend.Clause{-a, -p, q})
	t.emit(satbackend.Clause{-a, p, -q})
	t.emit(satbackend.Clause{a, p, q})
	t.emit(satbackend.Clause{a, -p, -q})
	return a, nil
}

// encodeIte emits the clauses for a = ite(cond, t, f):
//
//	(-cond v -a v t) & (-cond v a v -t)   [cond  -> a = t]
//	(cond v -a v f)  & (cond v a v -f)    [!cond -> a = f]
func (t *Table) encodeIte(e formula.Expr, depth int) (satbackend.Literal, error) {
	a := t.register(e)
	children := e.Children()
	cond, err := t.encode(children[0], depth+1)
	if err != nil {
		return 0, err
	}
	tb, err := t.encode(children[1], depth+1)
	if err != nil {
		return 0, err
	}
	fb, err := t.encode(children[2], depth+1)
	if err != nil {
		return 0, err
	}
	t.emit(satbackend.Clause{-cond, -a, tb})
	t.emit(satbackend.Clause{-cond, a, -tb})
	t.emit(satbackend.Clause{cond, -a, fb})
	t.emit(satbackend.Clause{cond, a, -fb})
	return a, nil
}
