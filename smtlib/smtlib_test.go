package smtlib

import (
	"testing"

	"github.com/qflra/cdclt/formula"
)

func TestParseAllRoundTrip(t *testing.T) {
	terms, err := ParseAll(`(declare-const x Real) (assert (<= x 3))`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("expected 2 top-level forms, got %d", len(terms))
	}
}

func TestCompileTrivialSat(t *testing.T) {
	script, err := Compile(`(declare-const x Real) (assert (<= x 3)) (check-sat)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(script.Assertions) != 1 {
		t.Fatalf("expected 1 assertion, got %d", len(script.Assertions))
	}
	if script.Assertions[0].Kind() != formula.KindLe {
		t.Fatalf("expected a Le atom, got kind %v", script.Assertions[0].Kind())
	}
}

func TestCompileStatusAnnotation(t *testing.T) {
	script, err := Compile(`(set-info :status unsat) (declare-const x Real) (assert (<= x 1)) (assert (>= x 2)) (check-sat)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if script.Status != "unsat" {
		t.Fatalf("expected status unsat, got %q", script.Status)
	}
}

func TestCompileRejectsUnknownStatus(t *testing.T) {
	_, err := Compile(`(set-info :status maybe)`)
	if err == nil {
		t.Fatalf("expected an error for an unrecognized :status value")
	}
}

func TestCompileTermIteLowersToBooleanIte(t *testing.T) {
	script, err := Compile(`
		(declare-const x Real)
		(declare-const y Real)
		(assert (= y (ite (<= x 0) 1 2)))
		(assert (= x 5))
		(assert (= y 1))
		(check-sat)
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(script.Assertions) != 3 {
		t.Fatalf("expected 3 assertions, got %d", len(script.Assertions))
	}
	iteAssertion := script.Assertions[0]
	if iteAssertion.Kind() != formula.KindIte {
		t.Fatalf("expected the ite assertion to lower to a boolean Ite, got kind %v", iteAssertion.Kind())
	}
	children := iteAssertion.Children()
	if len(children) != 3 {
		t.Fatalf("expected Ite to have 3 children, got %d", len(children))
	}
	if children[1].Kind() != formula.KindEq || children[2].Kind() != formula.KindEq {
		t.Fatalf("expected both ite branches to be Eq atoms, got %v and %v", children[1].Kind(), children[2].Kind())
	}
}

func TestCompileDistinctLowersToDisjunction(t *testing.T) {
	script, err := Compile(`(declare-const x Real) (declare-const y Real) (assert (distinct x y))`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := script.Assertions[0]
	if e.Kind() != formula.KindOr {
		t.Fatalf("expected distinct to lower to Or(Lt,Gt), got kind %v", e.Kind())
	}
	children := e.Children()
	if children[0].Kind() != formula.KindLt || children[1].Kind() != formula.KindGt {
		t.Fatalf("expected Or(Lt,Gt), got %v and %v", children[0].Kind(), children[1].Kind())
	}
}

func TestCompileBooleanEqualityIsIff(t *testing.T) {
	script, err := Compile(`(declare-const p Bool) (declare-const q Bool) (assert (= p q))`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if script.Assertions[0].Kind() != formula.KindIff {
		t.Fatalf("expected boolean = to compile to Iff, got kind %v", script.Assertions[0].Kind())
	}
}

func TestCompileUndeclaredSymbolIsAnError(t *testing.T) {
	_, err := Compile(`(assert (<= x 3))`)
	if err == nil {
		t.Fatalf("expected an error for an undeclared symbol")
	}
}

func TestCompileNonlinearTermIsAnError(t *testing.T) {
	_, err := Compile(`(declare-const x Real) (declare-const y Real) (assert (= (* x y) 1))`)
	if err == nil {
		t.Fatalf("expected an error for a nonlinear term")
	}
}

func TestScriptFormulaConjoinsAssertions(t *testing.T) {
	script, err := Compile(`(declare-const x Real) (assert (<= x 1)) (assert (>= x 0))`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := script.Formula()
	if f.Kind() != formula.KindAnd {
		t.Fatalf("expected the script formula to be the conjunction of all asserts, got kind %v", f.Kind())
	}
}
