package lra

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/qflra/cdclt/formula"
)

func TestSatisfiableBounds(t *testing.T) {
	store := formula.NewStore()
	x := formula.Var("x")

	s := NewSolver()
	// 0 <= x <= 3
	le, err := FromAtom(mkAtom(store, formula.KindLe, x, formula.ConstInt(3)), false)
	must(t, err)
	ge, err := FromAtom(mkAtom(store, formula.KindGe, x, formula.ConstInt(0)), false)
	must(t, err)
	s.Assert(le)
	s.Assert(ge)

	sat, err := s.Check()
	must(t, err)
	if !sat {
		t.Fatalf("expected sat")
	}
	model := s.Model()
	xv := model["x"]
	if xv.Cmp(big.NewRat(0, 1)) < 0 || xv.Cmp(big.NewRat(3, 1)) > 0 {
		t.Fatalf("model out of bounds: x=%v", xv)
	}
}

func TestUnsatBounds(t *testing.T) {
	store := formula.NewStore()
	x := formula.Var("x")

	s := NewSolver()
	le, err := FromAtom(mkAtom(store, formula.KindLe, x, formula.ConstInt(1)), false)
	must(t, err)
	ge, err := FromAtom(mkAtom(store, formula.KindGe, x, formula.ConstInt(2)), false)
	must(t, err)
	id1 := s.Assert(le)
	id2 := s.Assert(ge)

	sat, err := s.Check()
	must(t, err)
	if sat {
		t.Fatalf("expected unsat")
	}
	core := s.UnsatCore()
	if diff := cmp.Diff([]int{id1, id2}, core); diff != "" {
		t.Fatalf("unsat core mismatch (-want +got):\n%s", diff)
	}
}

func TestStrictInequalityForcesInfinitesimalGap(t *testing.T) {
	store := formula.NewStore()
	x := formula.Var("x")

	s := NewSolver()
	gt, err := FromAtom(mkAtom(store, formula.KindGt, x, formula.ConstInt(0)), false)
	must(t, err)
	le, err := FromAtom(mkAtom(store, formula.KindLe, x, formula.ConstInt(1)), false)
	must(t, err)
	s.Assert(gt)
	s.Assert(le)

	sat, err := s.Check()
	must(t, err)
	if !sat {
		t.Fatalf("expected sat")
	}
	xv := s.Model()["x"]
	if xv.Cmp(big.NewRat(0, 1)) <= 0 {
		t.Fatalf("expected x strictly greater than 0, got %v", xv)
	}
}

func TestStrictConflict(t *testing.T) {
	store := formula.NewStore()
	x := formula.Var("x")

	s := NewSolver()
	lt, err := FromAtom(mkAtom(store, formula.KindLt, x, formula.ConstInt(1)), false)
	must(t, err)
	ge, err := FromAtom(mkAtom(store, formula.KindGe, x, formula.ConstInt(1)), false)
	must(t, err)
	s.Assert(lt)
	s.Assert(ge)

	sat, err := s.Check()
	must(t, err)
	if sat {
		t.Fatalf("expected unsat: x < 1 and x >= 1 cannot both hold")
	}
}

func TestPushPopRestoresFeasibility(t *testing.T) {
	store := formula.NewStore()
	x := formula.Var("x")

	s := NewSolver()
	le, err := FromAtom(mkAtom(store, formula.KindLe, x, formula.ConstInt(5)), false)
	must(t, err)
	s.Assert(le)

	sat, err := s.Check()
	must(t, err)
	if !sat {
		t.Fatalf("expected sat")
	}

	s.Push()
	ge, err := FromAtom(mkAtom(store, formula.KindGe, x, formula.ConstInt(10)), false)
	must(t, err)
	s.Assert(ge)
	sat, err = s.Check()
	must(t, err)
	if sat {
		t.Fatalf("expected unsat after pushing a contradictory bound")
	}

	must(t, s.Pop())
	sat, err = s.Check()
	must(t, err)
	if !sat {
		t.Fatalf("expected sat again after popping the contradictory bound")
	}
}

func TestLinearCombination(t *testing.T) {
	store := formula.NewStore()
	x, y := formula.Var("x"), formula.Var("y")

	s := NewSolver()
	// x + y <= 10, x - y >= 2, x <= 100
	sum := formula.Add(x, y)
	eq1, err := FromAtom(mkAtom(store, formula.KindLe, sum, formula.ConstInt(10)), false)
	must(t, err)
	diff := formula.Add(x, formula.Neg(y))
	eq2, err := FromAtom(mkAtom(store, formula.KindGe, diff, formula.ConstInt(2)), false)
	must(t, err)
	s.Assert(eq1)
	s.Assert(eq2)

	sat, err := s.Check()
	must(t, err)
	if !sat {
		t.Fatalf("expected sat")
	}
	model := s.Model()
	xv, yv := model["x"], model["y"]
	sumv := new(big.Rat).Add(xv, yv)
	if sumv.Cmp(big.NewRat(10, 1)) > 0 {
		t.Fatalf("x+y should be <= 10, got %v", sumv)
	}
	diffv := new(big.Rat).Sub(xv, yv)
	if diffv.Cmp(big.NewRat(2, 1)) < 0 {
		t.Fatalf("x-y should be >= 2, got %v", diffv)
	}
}

func TestDistinctIsRejected(t *testing.T) {
	store := formula.NewStore()
	x, y := formula.Var("x"), formula.Var("y")
	d := store.Distinct(x, y)
	if _, err := FromAtom(d, false); err == nil {
		t.Fatalf("expected an error converting a Distinct atom")
	}
}

func mkAtom(store *formula.Store, kind formula.Kind, l, r formula.Term) formula.Expr {
	switch kind {
	case formula.KindEq:
		return store.Eq(l, r)
	case formula.KindLe:
		return store.Le(l, r)
	case formula.KindLt:
		return store.Lt(l, r)
	case formula.KindGe:
		return store.Ge(l, r)
	case formula.KindGt:
		return store.Gt(l, r)
	default:
		panic("unsupported kind in test helper")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
