package formula

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// TermKind discriminates the linear-arithmetic term constructors. Terms are
// deliberately restricted to what QF_LRA needs: constants, variables, sums,
// and scaling by a rational constant. There is no term-level Ite: the
// smtlib compiler eliminates `(= y (ite c t f))` into a boolean Ite of two
// Eq atoms (see smtlib's compileRelation) before a Term tree is ever built, so
// the theory layer only ever has to reason about genuinely linear terms.
type TermKind int

// The term constructors.
const (
	TermConst TermKind = iota
	TermVar
	TermAdd
	TermMul
	TermNeg
)

// Term is an immutable linear-arithmetic term. Unlike Expr, terms are not
// hash-consed: atoms compare equal (through Store's atom key, which calls
// Term.String) by structural text, which is sufficient for everything this
// solver needs (Tseitin sharing of atoms, not of raw terms).
type Term struct {
	kind TermKind
	coef *big.Rat // TermConst, TermMul
	name string   // TermVar
	args []Term   // TermAdd (n-ary), TermMul/TermNeg (single)
}

// Kind reports the term's constructor.
func (t Term) Kind() TermKind { return t.kind }

// Const builds the constant term with value r.
func Const(r *big.Rat) Term { return Term{kind: TermConst, coef: new(big.Rat).Set(r)} }

// ConstInt builds the constant term with integer value n.
func ConstInt(n int64) Term { return Const(big.NewRat(n, 1)) }

// Var builds the real-sorted variable term named name.
func Var(name string) Term { return Term{kind: TermVar, name: name} }

// Add builds the n-ary sum of ts.
func Add(ts ...Term) Term { return Term{kind: TermAdd, args: append([]Term(nil), ts...)} }

// Mul builds the term coef*t.
func Mul(coef *big.Rat, t Term) Term {
	return Term{kind: TermMul, coef: new(big.Rat).Set(coef), args: []Term{t}}
}

// Neg builds the term -t.
func Neg(t Term) Term { return Term{kind: TermNeg, args: []Term{t}} }

// ConstValue returns the constant's value; only meaningful when
// Kind() == TermConst.
func (t Term) ConstValue() *big.Rat { return t.coef }

// VarName returns the variable's name; only meaningful when Kind() ==
// TermVar.
func (t Term) VarName() string { return t.name }

// Coefficient returns the scaling coefficient; only meaningful when
// Kind() == TermMul.
func (t Term) Coefficient() *big.Rat { return t.coef }

// Operand returns the single operand of a Mul or Neg term.
func (t Term) Operand() Term { return t.args[0] }

// Operands returns the operands of an Add term.
func (t Term) Operands() []Term { return t.args }

func (t Term) String() string {
	switch t.kind {
	case TermConst:
		return t.coef.RatString()
	case TermVar:
		return "v:" + t.name
	case TermNeg:
		return "neg(" + t.args[0].String() + ")"
	case TermMul:
		return "mul(" + t.coef.RatString() + "," + t.args[0].String() + ")"
	case TermAdd:
		parts := make([]string, len(t.args))
		for i, a := range t.args {
			parts[i] = a.String()
		}
		return "add(" + strings.Join(parts, ",") + ")"
	default:
		panic(fmt.Sprintf("formula: unreachable term kind %d", t.kind))
	}
}

// TermVars returns the names of the variables appearing in t, sorted and
// de-duplicated.
func TermVars(t Term) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(Term)
	walk = func(t Term) {
		switch t.kind {
		case TermVar:
			if !seen[t.name] {
				seen[t.name] = true
				out = append(out, t.name)
			}
		case TermNeg, TermMul:
			walk(t.args[0])
		case TermAdd:
			for _, a := range t.args {
				walk(a)
			}
		}
	}
	walk(t)
	sort.Strings(out)
	return out
}

// Linearize flattens t into a sum of (coefficient, variable) pairs plus a
// constant offset: t == offset + sum(coefficients[i]*variables[i]).
// Coefficients are returned as a map keyed by variable name; repeated
// occurrences of the same variable have their coefficients combined.
func Linearize(t Term) (coeffs map[string]*big.Rat, offset *big.Rat) {
	coeffs = make(map[string]*big.Rat)
	offset = new(big.Rat)
	var walk func(Term, *big.Rat)
	walk = func(t Term, scale *big.Rat) {
		switch t.kind {
		case TermConst:
			delta := new(big.Rat).Mul(t.coef, scale)
			offset.Add(offset, delta)
		case TermVar:
			if _, ok := coeffs[t.name]; !ok {
				coeffs[t.name] = new(big.Rat)
			}
			coeffs[t.name].Add(coeffs[t.name], scale)
		case TermNeg:
			neg := new(big.Rat).Neg(scale)
			walk(t.args[0], neg)
		case TermMul:
			s2 := new(big.Rat).Mul(scale, t.coef)
			walk(t.args[0], s2)
		case TermAdd:
			for _, a := range t.args {
				walk(a, scale)
			}
		}
	}
	walk(t, big.NewRat(1, 1))
	return coeffs, offset
}
