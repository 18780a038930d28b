package smtlib

import "github.com/qflra/cdclt/formula"

// Script is the result of compiling an SMT-LIB v2 script: the conjunction
// of every asserted formula, the declared-symbol environment, and the
// `:status` annotation if one was given via `set-info`.
type Script struct {
	Store *formula.Store
	// Assertions lists every individually asserted formula, in source
	// order.
	Assertions []formula.Expr
	// Env maps every declared symbol name to its sort.
	Env map[string]formula.Sort
	// Status is "sat", "unsat", "unknown", or "" if no :status annotation
	// was present.
	Status string
}

// Formula returns the conjunction of all assertions: the single formula the
// rest of the solver decides. An empty script is trivially true.
func (s *Script) Formula() formula.Expr {
	switch len(s.Assertions) {
	case 0:
		return s.Store.Bool(true)
	case 1:
		return s.Assertions[0]
	default:
		return s.Store.And(s.Assertions...)
	}
}
