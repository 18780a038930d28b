package options

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/qflra/cdclt/smtlib"
)

func compile(t *testing.T, src string) *smtlib.Script {
	t.Helper()
	script, err := smtlib.Compile(src)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return script
}

func TestSolveReportsSat(t *testing.T) {
	script := compile(t, `
(declare-const x Real)
(assert (<= x 5))
(check-sat)
`)
	res, err := Solve(context.Background(), script, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != Sat {
		t.Fatalf("expected sat, got %v", res.Verdict)
	}
	if xv, ok := res.Model["x"]; !ok || xv.Cmp(big.NewRat(5, 1)) > 0 {
		t.Fatalf("expected a model with x<=5, got %v", res.Model)
	}
}

func TestSolveReportsUnsat(t *testing.T) {
	script := compile(t, `
(declare-const x Real)
(assert (<= x 1))
(assert (>= x 2))
(check-sat)
`)
	res, err := Solve(context.Background(), script, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != Unsat {
		t.Fatalf("expected unsat, got %v", res.Verdict)
	}
}

func TestSolveHonorsMatchingStatus(t *testing.T) {
	script := compile(t, `
(set-info :status unsat)
(declare-const x Real)
(assert (<= x 1))
(assert (>= x 2))
(check-sat)
`)
	res, err := Solve(context.Background(), script, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != Unsat {
		t.Fatalf("expected unsat, got %v", res.Verdict)
	}
}

func TestSolveFlagsMismatchedStatus(t *testing.T) {
	script := compile(t, `
(set-info :status unsat)
(declare-const x Real)
(assert (<= x 5))
(check-sat)
`)
	res, err := Solve(context.Background(), script, Options{})
	if !errors.Is(err, ErrExpectedMismatch) {
		t.Fatalf("expected ErrExpectedMismatch, got %v", err)
	}
	if res.Verdict != Sat {
		t.Fatalf("expected the produced verdict sat to still be reported, got %v", res.Verdict)
	}
}

func TestSolveSkipsUnknownStatus(t *testing.T) {
	script := compile(t, `
(set-info :status unknown)
(declare-const x Real)
(assert (<= x 1))
(assert (>= x 2))
(check-sat)
`)
	res, err := Solve(context.Background(), script, Options{})
	if !errors.Is(err, ErrStatusUnknown) {
		t.Fatalf("expected ErrStatusUnknown, got %v", err)
	}
	if res.Verdict != Unknown {
		t.Fatalf("expected unknown (solving skipped), got %v", res.Verdict)
	}
}

func TestSolveRejectsUnknownBackend(t *testing.T) {
	script := compile(t, `
(declare-const x Real)
(assert (<= x 5))
(check-sat)
`)
	_, err := Solve(context.Background(), script, Options{SATBackend: "nonexistent"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestRegisterBackendAddsANewName(t *testing.T) {
	script := compile(t, `
(declare-const x Real)
(assert (<= x 5))
(check-sat)
`)
	RegisterBackend("dpll22-alias", func() SATBackend { return backends["dpll22"]() })
	res, err := Solve(context.Background(), script, Options{SATBackend: "dpll22-alias"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != Sat {
		t.Fatalf("expected sat, got %v", res.Verdict)
	}
}
