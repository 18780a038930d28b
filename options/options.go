// Package options wires a parsed SMT-LIB script into the CDCL(T) loop: it
// validates the requested SAT backend against a small open registry,
// reconciles the loop's verdict against a script's `set-info :status`
// annotation, and reports diagnostics through a thin logrus-backed logger.
// This is the layer cmd/qflrasolver calls; it owns no flag parsing and no
// I/O of its own.
package options

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	log "github.com/sirupsen/logrus"

	"github.com/qflra/cdclt/cdclt"
	"github.com/qflra/cdclt/satbackend"
	"github.com/qflra/cdclt/smtlib"
)

// SATBackend is the capability surface options needs from a propositional
// backend to drive cdclt.Loop; it is exactly cdclt.SATBackend; satbackend.Backend
// satisfies it, and the registry exists so another implementation could be
// swapped in without touching cdclt.
type SATBackend = cdclt.SATBackend

// ErrUnknownBackend is returned when Options.SATBackend names a backend
// that was never registered.
var ErrUnknownBackend = errors.New("options: unknown SAT backend")

// ErrExpectedMismatch is returned when a script's `:status` annotation
// disagrees with the verdict the loop actually produced.
var ErrExpectedMismatch = errors.New("options: verdict disagrees with expected status")

// ErrStatusUnknown is returned when a script declares `set-info :status
// unknown`. Solving is skipped (a script disclaiming a decidable answer
// would only mislead a caller diffing against a reference solver), but
// this is still reported as an error: an unknown status is an outcome a
// caller must not treat as a silently successful run.
var ErrStatusUnknown = errors.New("options: script declares status unknown")

var backends = map[string]func() SATBackend{
	"dpll22": func() SATBackend { return satbackend.NewBackend() },
}

// RegisterBackend advertises a named SAT backend factory for Options.SATBackend
// to select. Re-registering an existing name overwrites it.
func RegisterBackend(name string, factory func() SATBackend) {
	backends[name] = factory
}

// Verdict is the tri-state final answer options.Solve reports.
type Verdict int

const (
	// Sat means the script's formula is satisfiable.
	Sat Verdict = iota
	// Unsat means the script's formula is unsatisfiable.
	Unsat
	// Unknown means the loop could not determine satisfiability, or the
	// script itself declared its status unknown and so solving was
	// skipped.
	Unknown
)

func (v Verdict) String() string {
	switch v {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Options configures a single options.Solve call.
type Options struct {
	// SATBackend names a registered backend; "" defaults to "dpll22".
	SATBackend string
	// DumpModels requests the satisfying model be logged at Info level
	// when the verdict is Sat.
	DumpModels bool
	// Verbosity gates diagnostic logging; 0 is silent but for
	// warnings/errors, higher values lower the logged level.
	Verbosity int
}

// Logger is the thin logrus wrapper Solve reports its diagnostics
// through; it exists so Solve's diagnostics and a CLI's `-v` flag share
// one level-selection rule instead of each reimplementing it.
type Logger struct {
	entry *log.Logger
}

// NewLogger builds a Logger at the level Verbosity selects: 0 is Warn, 1 is
// Info, 2 or higher is Debug.
func NewLogger(verbosity int) *Logger {
	l := log.New()
	switch {
	case verbosity <= 0:
		l.SetLevel(log.WarnLevel)
	case verbosity == 1:
		l.SetLevel(log.InfoLevel)
	default:
		l.SetLevel(log.DebugLevel)
	}
	return &Logger{entry: l}
}

func (lg *Logger) Infof(format string, args ...interface{})  { lg.entry.Infof(format, args...) }
func (lg *Logger) Debugf(format string, args ...interface{}) { lg.entry.Debugf(format, args...) }
func (lg *Logger) Warnf(format string, args ...interface{})  { lg.entry.Warnf(format, args...) }

// Result is what Solve returns: the final verdict, plus the satisfying
// model when the verdict is Sat (nil otherwise).
type Result struct {
	Verdict Verdict
	Model   map[string]*big.Rat
}

// Solve is the single entry point a caller (the CLI or a test) uses to run
// the whole pipeline: pick the backend, run cdclt.Loop against the script's
// formula, and apply the :status reconciliation rule from the script's
// set-info annotation, if any.
//
// A status of "unknown" short-circuits solving entirely and returns
// (Result{Verdict: Unknown}, ErrStatusUnknown): the script itself disclaims
// a decidable answer, so reporting one would only mislead a caller diffing
// output against a reference solver, but the caller still sees an error,
// not a silent success.
func Solve(ctx context.Context, script *smtlib.Script, opts Options) (Result, error) {
	logger := NewLogger(opts.Verbosity)

	if script.Status == "unknown" {
		logger.Infof("script declares status unknown; skipping solve")
		return Result{Verdict: Unknown}, ErrStatusUnknown
	}

	name := opts.SATBackend
	if name == "" {
		name = "dpll22"
	}
	if _, ok := backends[name]; !ok {
		return Result{Verdict: Unknown}, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}

	logger.Debugf("solving with backend %q", name)
	backend := backends[name]()
	loop, err := cdclt.New(backend, script.Formula())
	if err != nil {
		return Result{Verdict: Unknown}, fmt.Errorf("options: %w", err)
	}
	if vc, ok := backend.(interface{ NumVars() int }); ok {
		logger.Debugf("abstraction declared %d boolean variables on backend %q", vc.NumVars(), name)
	}
	res, err := loop.Run(ctx)
	if err != nil {
		return Result{Verdict: Unknown}, fmt.Errorf("options: %w", err)
	}
	logger.Debugf("loop finished after %d iterations (%d theory conflicts)", res.Iterations, res.TheoryConflicts)

	out := Result{}
	switch res.State {
	case cdclt.TerminalSat:
		out.Verdict = Sat
		out.Model = res.Model
		if opts.DumpModels {
			logger.Infof("model: %v", res.Model)
		}
	case cdclt.TerminalUnsat:
		out.Verdict = Unsat
	default:
		return Result{Verdict: Unknown}, fmt.Errorf("options: loop terminated in unexpected state %v", res.State)
	}

	if script.Status != "" && script.Status != out.Verdict.String() {
		logger.Warnf("verdict %s disagrees with expected status %s", out.Verdict, script.Status)
		return out, fmt.Errorf("%w: expected result was %s", ErrExpectedMismatch, script.Status)
	}
	return out, nil
}
