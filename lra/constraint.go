package lra

import (
	"fmt"
	"math/big"

	"github.com/qflra/cdclt/formula"
)

// Relation discriminates the normalized form every Constraint is reduced
// to: a linear combination compared against zero.
type Relation int

const (
	// RelLe states Coeffs·x + Offset <= 0.
	RelLe Relation = iota
	// RelLt states Coeffs·x + Offset < 0.
	RelLt
	// RelEq states Coeffs·x + Offset == 0.
	RelEq
)

// Constraint is a normalized linear-arithmetic atom, ready to be handed to
// a Solver via Assert. Ge/Gt atoms are folded into RelLe/RelLt of the
// negated combination at construction time, so the tableau never has to
// special-case four relations when two suffice.
type Constraint struct {
	Coeffs map[string]*big.Rat
	Offset *big.Rat
	Rel    Relation
}

// FromAtom converts a theory atom (Eq, Le, Lt, Ge, Gt) into its normalized
// Constraint form, applying negated (the polarity a boolean model assigned
// the atom) directly in terms of the atom's operand terms rather than
// asking the caller to build a negated formula.Expr. This is the single
// atom-to-constraint converter the loop uses for every atom a model fixes
// except a negated Eq.
//
// Negated Eq is rejected: l != r has no single linear-constraint form, so
// cdclt case-splits it into LessThan/GreaterThan branches instead of
// calling FromAtom with it. Distinct is rejected outright for the same
// reason, and because the smtlib compiler already lowers every Distinct it
// produces into Or(Lt, Gt) before a formula reaches abstraction, so a
// Distinct reaching FromAtom indicates a hand-built formula that bypassed
// that lowering.
func FromAtom(e formula.Expr, negated bool) (Constraint, error) {
	lhs, rhs := e.Atom()
	switch {
	case e.Kind() == formula.KindEq && !negated:
		return EqualTo(lhs, rhs), nil
	case e.Kind() == formula.KindEq && negated:
		return Constraint{}, fmt.Errorf("lra: negated Eq has no single linear-constraint form")
	case e.Kind() == formula.KindLe && !negated:
		return LessOrEqual(lhs, rhs), nil
	case e.Kind() == formula.KindLe && negated:
		return GreaterThan(lhs, rhs), nil
	case e.Kind() == formula.KindLt && !negated:
		return LessThan(lhs, rhs), nil
	case e.Kind() == formula.KindLt && negated:
		return GreaterOrEqual(lhs, rhs), nil
	case e.Kind() == formula.KindGe && !negated:
		return GreaterOrEqual(lhs, rhs), nil
	case e.Kind() == formula.KindGe && negated:
		return LessThan(lhs, rhs), nil
	case e.Kind() == formula.KindGt && !negated:
		return GreaterThan(lhs, rhs), nil
	case e.Kind() == formula.KindGt && negated:
		return LessOrEqual(lhs, rhs), nil
	default:
		return Constraint{}, fmt.Errorf("lra: %v is not a linear-arithmetic atom", e.Kind())
	}
}

// LessThan builds the constraint lhs < rhs directly from two terms,
// bypassing formula.Expr entirely. cdclt uses this (and GreaterThan) to
// case-split a negated equality the boolean model assigned false:
// lhs != rhs has no single linear-constraint form, so the loop tries the
// two strict directions as separate theory branches instead of asking
// FromAtom to convert a Distinct.
func LessThan(lhs, rhs formula.Term) Constraint { return fromTerms(lhs, rhs, RelLt) }

// GreaterThan builds the constraint lhs > rhs directly from two terms.
func GreaterThan(lhs, rhs formula.Term) Constraint { return fromTerms(rhs, lhs, RelLt) }

// LessOrEqual builds the constraint lhs <= rhs directly from two terms.
func LessOrEqual(lhs, rhs formula.Term) Constraint { return fromTerms(lhs, rhs, RelLe) }

// GreaterOrEqual builds the constraint lhs >= rhs directly from two terms.
func GreaterOrEqual(lhs, rhs formula.Term) Constraint { return fromTerms(rhs, lhs, RelLe) }

// EqualTo builds the constraint lhs == rhs directly from two terms.
func EqualTo(lhs, rhs formula.Term) Constraint { return fromTerms(lhs, rhs, RelEq) }

func fromTerms(lhs, rhs formula.Term, rel Relation) Constraint {
	lc, lo := formula.Linearize(lhs)
	rc, ro := formula.Linearize(rhs)

	coeffs := make(map[string]*big.Rat)
	for name, c := range lc {
		coeffs[name] = new(big.Rat).Set(c)
	}
	for name, c := range rc {
		if _, ok := coeffs[name]; !ok {
			coeffs[name] = new(big.Rat)
		}
		coeffs[name].Sub(coeffs[name], c)
	}
	offset := new(big.Rat).Sub(lo, ro)
	return Constraint{Coeffs: coeffs, Offset: offset, Rel: rel}
}
