// Package cdclt implements the lazy CDCL(T) refinement loop: it drives a
// SAT backend to propose boolean models over a formula's Tseitin
// abstraction, hands each proposal's theory atoms to a QF_LRA solver, and
// on a theory conflict learns a blocking clause from the solver's unsat
// core and tries again. This is the solver's core; satbackend supplies
// the propositional search and lra supplies the theory decision, but the
// interplay between them (and its termination/soundness) lives here.
package cdclt

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/qflra/cdclt/abstraction"
	"github.com/qflra/cdclt/formula"
	"github.com/qflra/cdclt/lra"
	"github.com/qflra/cdclt/satbackend"
)

// maxDisequalityBranches bounds how many negated-equality atoms a single
// boolean model may contain before the loop gives up case-splitting them
// and reports an error instead of enumerating an exponential number of
// theory branches. Every Eq atom the model assigns false counts, whether it
// comes from an explicit (not (= ...)) or from an equality the SAT search
// set false inside an or, => or ite case split.
const maxDisequalityBranches = 12

// State names the phase of the refinement loop a Loop is in; exposed for
// logging and tests, not branched on by callers.
type State int

const (
	// Running is the loop's steady state: about to ask the SAT backend
	// for another model.
	Running State = iota
	// SatModel means the SAT backend just returned a model and the loop
	// is about to check it against the theory.
	SatModel
	// TerminalSat means the last theory check succeeded: the formula is
	// satisfiable and Loop.Model is populated.
	TerminalSat
	// TerminalUnsat means the SAT backend reported unsatisfiability of
	// the (possibly clause-augmented) boolean abstraction.
	TerminalUnsat
	// Error means the loop aborted on an internal error.
	Error
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case SatModel:
		return "sat-model"
	case TerminalSat:
		return "terminal-sat"
	case TerminalUnsat:
		return "terminal-unsat"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// ErrEmptyLearntClause is returned when a theory conflict's unsat core is
// empty: the theory solver refuted a set of constraints without citing
// any of them, which means it (or the caller that built them) is broken,
// since an empty clause would make the boolean search immediately and
// permanently unsatisfiable regardless of the actual formula.
var ErrEmptyLearntClause = errors.New("cdclt: theory conflict produced an empty learnt clause")

// ErrBackendFailure wraps any error surfaced by the SAT or theory backend
// while the loop is running.
var ErrBackendFailure = errors.New("cdclt: backend failure")

// ErrTooManyDisequalities is returned when a single boolean model fixes
// more negated equalities than the loop is willing to case-split; see
// maxDisequalityBranches.
var ErrTooManyDisequalities = errors.New("cdclt: too many negated equalities in one model to case-split")

// Result is what Run returns once the loop reaches a terminal state.
type Result struct {
	State           State
	Model           map[string]*big.Rat
	Iterations      int
	TheoryConflicts int
}

// SATBackend is the capability surface the loop needs from a propositional
// solver: everything abstraction.Backend needs to build the Tseitin
// clauses, plus Solve/Model to actually drive the search.
type SATBackend interface {
	abstraction.Backend
	Solve() (bool, error)
	Model() []satbackend.Literal
}

// Loop owns one run of the CDCL(T) refinement algorithm against a single
// formula.
type Loop struct {
	table   *abstraction.Table
	backend SATBackend
	theory  *lra.Solver

	state State
}

// New builds the boolean abstraction of f against backend and returns a
// Loop ready to Run. f is asserted as a unit clause: the loop only ever
// searches for models that satisfy it. backend is typically a fresh
// satbackend.NewBackend(), but callers (options' backend registry) may
// supply any implementation of abstraction.Backend plus the fuller
// satbackend.Backend surface the loop itself needs to drive search.
func New(backend SATBackend, f formula.Expr) (*Loop, error) {
	table, err := abstraction.New(backend, f)
	if err != nil {
		return nil, fmt.Errorf("cdclt: %w", err)
	}
	top, err := table.Literal(f)
	if err != nil {
		return nil, fmt.Errorf("cdclt: %w", err)
	}
	if err := backend.AddClause(satbackend.Clause{top}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}
	return &Loop{
		table:   table,
		backend: backend,
		theory:  lra.NewSolver(),
		state:   Running,
	}, nil
}

// State reports the loop's current phase.
func (l *Loop) State() State { return l.state }

// Run executes the refinement algorithm to completion: propose a boolean
// model, push a theory frame, assert every theory atom the model fixes
// true or false, check it, and either accept the model (TerminalSat) or
// learn the unsat core as a blocking clause and loop (back to Running).
// ctx is checked for cancellation only between iterations, since neither
// the SAT backend's Solve nor the theory solver's Check currently take a
// context of their own.
func (l *Loop) Run(ctx context.Context) (Result, error) {
	iterations := 0
	conflicts := 0
	for {
		iterations++
		select {
		case <-ctx.Done():
			l.state = Error
			return Result{State: Error, Iterations: iterations, TheoryConflicts: conflicts}, ctx.Err()
		default:
		}

		sat, err := l.backend.Solve()
		if err != nil {
			l.state = Error
			return Result{State: Error}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
		}
		if !sat {
			l.state = TerminalUnsat
			return Result{State: TerminalUnsat, Iterations: iterations, TheoryConflicts: conflicts}, nil
		}
		l.state = SatModel

		clause, conflict, err := l.checkModelAgainstTheory()
		if err != nil {
			l.state = Error
			return Result{State: Error}, err
		}
		if !conflict {
			l.state = TerminalSat
			return Result{
				State:           TerminalSat,
				Model:           l.theory.Model(),
				Iterations:      iterations,
				TheoryConflicts: conflicts,
			}, nil
		}
		conflicts++
		if err := l.table.AddLearnedClause(clause); err != nil {
			l.state = Error
			return Result{State: Error}, fmt.Errorf("%w: %v", ErrBackendFailure, err)
		}
		l.state = Running
	}
}

type modelAtom struct {
	e   formula.Expr
	lit satbackend.Literal
}

// checkModelAgainstTheory asserts the current SAT model's theory atoms and
// returns a blocking clause if they are jointly unsatisfiable. A negated
// Eq atom (l != r) has no single linear-constraint form, so every such
// atom in the model is tried both ways (l < r, l > r) as a theory-internal
// case split invisible to the SAT search; the model is accepted as soon
// as any combination of branches is feasible.
func (l *Loop) checkModelAgainstTheory() (satbackend.Clause, bool, error) {
	model := l.backend.Model()
	var plain, disequalities []modelAtom
	for _, lit := range model {
		e, err := l.table.Expression(abs(lit))
		if err != nil {
			// The table registers every variable it allocates, so
			// only a variable the backend holds from elsewhere lands
			// here; it carries no theory atom, so skip it.
			continue
		}
		if !e.IsTheoryAtom() {
			continue
		}
		if e.Kind() == formula.KindEq && lit < 0 {
			disequalities = append(disequalities, modelAtom{e, lit})
		} else {
			plain = append(plain, modelAtom{e, lit})
		}
	}
	if len(disequalities) > maxDisequalityBranches {
		return nil, false, ErrTooManyDisequalities
	}

	branches := 1 << len(disequalities)
	for mask := 0; mask < branches; mask++ {
		l.theory.Push()
		ids := make(map[int]satbackend.Literal, len(plain)+len(disequalities))
		for _, ma := range plain {
			c, err := lra.FromAtom(ma.e, ma.lit < 0)
			if err != nil {
				l.theory.Pop()
				return nil, false, fmt.Errorf("cdclt: %w", err)
			}
			ids[l.theory.Assert(c)] = ma.lit
		}
		for i, ma := range disequalities {
			lhs, rhs := ma.e.Atom()
			var c lra.Constraint
			if mask&(1<<i) != 0 {
				c = lra.LessThan(lhs, rhs)
			} else {
				c = lra.GreaterThan(lhs, rhs)
			}
			ids[l.theory.Assert(c)] = ma.lit
		}

		sat, err := l.theory.Check()
		if err != nil {
			l.theory.Pop()
			return nil, false, fmt.Errorf("%w: %v", ErrBackendFailure, err)
		}
		if sat {
			l.theory.Pop()
			return nil, false, nil
		}

		// With no disequality to branch over there is exactly one
		// iteration, so the theory solver's own unsat core can be
		// trusted as this model's blocking clause directly.
		var clause satbackend.Clause
		if len(disequalities) == 0 {
			clause = satbackend.Clause{}
			for _, id := range l.theory.UnsatCore() {
				if lit, ok := ids[id]; ok {
					clause = append(clause, -lit)
				}
			}
		}
		if err := l.theory.Pop(); err != nil {
			panic(fmt.Sprintf("cdclt: unbalanced theory push/pop: %v", err))
		}
		if clause != nil {
			if len(clause) == 0 {
				return nil, false, ErrEmptyLearntClause
			}
			return clause, true, nil
		}
	}

	// Every branch combination of a disequality case split was
	// infeasible: block the exact boolean model rather than attempt to
	// merge per-branch cores into one minimal clause.
	seen := make(map[satbackend.Literal]bool)
	clause := make(satbackend.Clause, 0, len(plain)+len(disequalities))
	for _, ma := range append(append([]modelAtom(nil), plain...), disequalities...) {
		if seen[ma.lit] {
			continue
		}
		seen[ma.lit] = true
		clause = append(clause, -ma.lit)
	}
	if len(clause) == 0 {
		return nil, false, ErrEmptyLearntClause
	}
	return clause, true, nil
}

func abs(lit satbackend.Literal) satbackend.Literal {
	if lit < 0 {
		return -lit
	}
	return lit
}
