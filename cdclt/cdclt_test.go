package cdclt

import (
	"context"
	"math/big"
	"testing"

	"github.com/qflra/cdclt/formula"
	"github.com/qflra/cdclt/satbackend"
)

func TestSimpleSatNoTheoryConflict(t *testing.T) {
	store := formula.NewStore()
	x := formula.Var("x")
	f := store.Le(x, formula.ConstInt(5))

	loop, err := New(satbackend.NewBackend(), f)
	must(t, err)
	res, err := loop.Run(context.Background())
	must(t, err)
	if res.State != TerminalSat {
		t.Fatalf("expected TerminalSat, got %v", res.State)
	}
	if xv := res.Model["x"]; xv.Cmp(big.NewRat(5, 1)) > 0 {
		t.Fatalf("expected x<=5, got %v", xv)
	}
}

func TestBooleanConflictIsUnsat(t *testing.T) {
	store := formula.NewStore()
	p := store.Symbol("p", formula.SortBool)
	f := store.And(p, store.Not(p))

	loop, err := New(satbackend.NewBackend(), f)
	must(t, err)
	res, err := loop.Run(context.Background())
	must(t, err)
	if res.State != TerminalUnsat {
		t.Fatalf("expected TerminalUnsat, got %v", res.State)
	}
}

func TestTheoryConflictForcesRefinement(t *testing.T) {
	store := formula.NewStore()
	x := formula.Var("x")
	// p <-> (x<=1), q <-> (x>=2); assert p&q, which is booleanly fine
	// (two independent boolean atoms can both be true) but unsatisfiable
	// once the theory is consulted, forcing at least one refinement
	// iteration before the loop reports unsat.
	p := store.Le(x, formula.ConstInt(1))
	q := store.Ge(x, formula.ConstInt(2))
	f := store.And(p, q)

	loop, err := New(satbackend.NewBackend(), f)
	must(t, err)
	res, err := loop.Run(context.Background())
	must(t, err)
	if res.State != TerminalUnsat {
		t.Fatalf("expected TerminalUnsat once the theory rules out x<=1 && x>=2, got %v", res.State)
	}
	if res.TheoryConflicts < 1 {
		t.Fatalf("expected at least one theory conflict to be learned, got %d", res.TheoryConflicts)
	}
}

func TestDisjunctionOfIncompatibleBoundsIsSat(t *testing.T) {
	store := formula.NewStore()
	x := formula.Var("x")
	lo := store.Le(x, formula.ConstInt(0))
	hi := store.Ge(x, formula.ConstInt(10))
	f := store.Or(lo, hi)

	loop, err := New(satbackend.NewBackend(), f)
	must(t, err)
	res, err := loop.Run(context.Background())
	must(t, err)
	if res.State != TerminalSat {
		t.Fatalf("expected TerminalSat (either disjunct is satisfiable), got %v", res.State)
	}
}

func TestNegatedEqualityIsCaseSplit(t *testing.T) {
	store := formula.NewStore()
	x := formula.Var("x")
	// not(x = 0) and 0 <= x <= 1: only satisfiable with x strictly
	// between 0 and 1, exercising the disequality case-split path.
	f := store.And(
		store.Not(store.Eq(x, formula.ConstInt(0))),
		store.Le(x, formula.ConstInt(1)),
		store.Ge(x, formula.ConstInt(0)),
	)

	loop, err := New(satbackend.NewBackend(), f)
	must(t, err)
	res, err := loop.Run(context.Background())
	must(t, err)
	if res.State != TerminalSat {
		t.Fatalf("expected TerminalSat, got %v", res.State)
	}
	if res.Model["x"].Cmp(new(big.Rat)) == 0 {
		t.Fatalf("expected x != 0, got %v", res.Model["x"])
	}
}

func TestContextCancellationAborts(t *testing.T) {
	store := formula.NewStore()
	x := formula.Var("x")
	f := store.Le(x, formula.ConstInt(5))

	loop, err := New(satbackend.NewBackend(), f)
	must(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = loop.Run(ctx)
	if err == nil {
		t.Fatalf("expected an error from a pre-cancelled context")
	}
	if loop.State() != Error {
		t.Fatalf("expected state Error after cancellation, got %v", loop.State())
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
