// Package smtlib reads the SMT-LIB v2 surface language accepted by this
// solver: `declare-const`/`declare-fun` over sorts {Bool, Real},
// `assert`, `check-sat`, `set-info :status`, and `exit`. It is, per the
// specification, an external collaborator to the CDCL(T) core — but a
// driver that cannot read its own input has nothing to drive, so this
// package supplies a complete (if deliberately small) literal-syntax
// implementation: no `let`, no quantifiers, no user-defined sorts.
package smtlib

import (
	"fmt"
	"math/big"
	"os"

	"github.com/qflra/cdclt/formula"
)

// Compile parses and lowers an SMT-LIB v2 script into a Script.
func Compile(text string) (*Script, error) {
	terms, err := ParseAll(text)
	if err != nil {
		return nil, err
	}
	c := &compiler{
		script: &Script{
			Store: formula.NewStore(),
			Env:   make(map[string]formula.Sort),
		},
	}
	for _, t := range terms {
		list, ok := t.(*List)
		if !ok || list.Len() == 0 {
			return nil, &SyntaxError{0, fmt.Sprintf("expected a command, got %q", t.String())}
		}
		if err := c.command(list); err != nil {
			return nil, err
		}
		if c.exited {
			break
		}
	}
	return c.script, nil
}

// CompileFile reads and compiles the SMT-LIB v2 script at path.
func CompileFile(path string) (*Script, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("smtlib: %w", err)
	}
	return Compile(string(bytes))
}

type compiler struct {
	script *Script
	exited bool
}

func (c *compiler) store() *formula.Store { return c.script.Store }

func (c *compiler) command(l *List) error {
	head, ok := l.Elements[0].(*Atom)
	if !ok {
		return &SyntaxError{0, "command name must be a symbol"}
	}
	switch head.Value {
	case "declare-const":
		return c.declare(l, false)
	case "declare-fun":
		return c.declare(l, true)
	case "assert":
		if l.Len() != 2 {
			return &SyntaxError{0, "assert takes exactly one argument"}
		}
		e, err := c.compileExpr(l.Elements[1])
		if err != nil {
			return err
		}
		c.script.Assertions = append(c.script.Assertions, e)
		return nil
	case "check-sat", "check-sat-assuming":
		return nil
	case "set-info":
		return c.setInfo(l)
	case "set-logic", "set-option", "push", "pop", "get-model", "get-value", "echo":
		return nil // accepted and ignored: outside this solver's scope
	case "exit":
		c.exited = true
		return nil
	default:
		return &SyntaxError{0, fmt.Sprintf("unsupported command %q", head.Value)}
	}
}

func (c *compiler) declare(l *List, isFun bool) error {
	minLen := 3
	if isFun {
		minLen = 4
	}
	if l.Len() < minLen {
		return &SyntaxError{0, fmt.Sprintf("%s: too few arguments", l.Elements[0])}
	}
	name, ok := l.Elements[1].(*Atom)
	if !ok {
		return &SyntaxError{0, "declared symbol name must be an identifier"}
	}
	sortIdx := 2
	if isFun {
		params, ok := l.Elements[2].(*List)
		if !ok || params.Len() != 0 {
			return &SyntaxError{0, "declare-fun with a nonempty parameter list is not supported"}
		}
		sortIdx = 3
	}
	sortAtom, ok := l.Elements[sortIdx].(*Atom)
	if !ok {
		return &SyntaxError{0, "sort must be Bool or Real"}
	}
	var sort formula.Sort
	switch sortAtom.Value {
	case "Bool":
		sort = formula.SortBool
	case "Real":
		sort = formula.SortReal
	default:
		return &SyntaxError{0, fmt.Sprintf("unsupported sort %q (only Bool and Real are)", sortAtom.Value)}
	}
	c.script.Env[name.Value] = sort
	return nil
}

func (c *compiler) setInfo(l *List) error {
	if l.Len() != 3 {
		return nil
	}
	key, ok := l.Elements[1].(*Atom)
	if !ok || key.Value != ":status" {
		return nil
	}
	val, ok := l.Elements[2].(*Atom)
	if !ok {
		return &SyntaxError{0, ":status value must be an identifier"}
	}
	switch val.Value {
	case "sat", "unsat", "unknown":
		c.script.Status = val.Value
	default:
		return &SyntaxError{0, fmt.Sprintf("unrecognized :status value %q", val.Value)}
	}
	return nil
}

// compileExpr compiles sexp in boolean context, producing a formula.Expr.
func (c *compiler) compileExpr(sexp SExp) (formula.Expr, error) {
	switch s := sexp.(type) {
	case *Atom:
		switch s.Value {
		case "true":
			return c.store().Bool(true), nil
		case "false":
			return c.store().Bool(false), nil
		}
		sort, ok := c.script.Env[s.Value]
		if !ok {
			return nil, &SyntaxError{0, fmt.Sprintf("undeclared symbol %q", s.Value)}
		}
		if sort != formula.SortBool {
			return nil, &SyntaxError{0, fmt.Sprintf("symbol %q is not Bool-sorted", s.Value)}
		}
		return c.store().Symbol(s.Value, formula.SortBool), nil
	case *List:
		return c.compileList(s)
	default:
		return nil, &SyntaxError{0, "malformed expression"}
	}
}

func (c *compiler) compileList(l *List) (formula.Expr, error) {
	if l.Len() == 0 {
		return nil, &SyntaxError{0, "empty expression"}
	}
	head, ok := l.Elements[0].(*Atom)
	if !ok {
		return nil, &SyntaxError{0, "expression head must be a symbol"}
	}
	args := l.Elements[1:]
	switch head.Value {
	case "not":
		if len(args) != 1 {
			return nil, &SyntaxError{0, "not takes exactly one argument"}
		}
		e, err := c.compileExpr(args[0])
		if err != nil {
			return nil, err
		}
		return c.store().Not(e), nil
	case "and", "or":
		if len(args) == 0 {
			return nil, &SyntaxError{0, head.Value + " takes at least one argument"}
		}
		es := make([]formula.Expr, len(args))
		for i, a := range args {
			e, err := c.compileExpr(a)
			if err != nil {
				return nil, err
			}
			es[i] = e
		}
		if head.Value == "and" {
			return c.store().And(es...), nil
		}
		return c.store().Or(es...), nil
	case "=>":
		if len(args) < 2 {
			return nil, &SyntaxError{0, "=> takes at least two arguments"}
		}
		es := make([]formula.Expr, len(args))
		for i, a := range args {
			e, err := c.compileExpr(a)
			if err != nil {
				return nil, err
			}
			es[i] = e
		}
		// SMT-LIB's n-ary `=>` is right-associative: fold from the right
		// into nested binary Implies nodes.
		result := es[len(es)-1]
		for i := len(es) - 2; i >= 0; i-- {
			result = c.store().Implies(es[i], result)
		}
		return result, nil
	case "ite":
		if len(args) != 3 {
			return nil, &SyntaxError{0, "ite takes exactly three arguments"}
		}
		if looksBoolean(c.script.Env, args[1]) || looksBoolean(c.script.Env, args[2]) {
			cond, err := c.compileExpr(args[0])
			if err != nil {
				return nil, err
			}
			t, err := c.compileExpr(args[1])
			if err != nil {
				return nil, err
			}
			f, err := c.compileExpr(args[2])
			if err != nil {
				return nil, err
			}
			return c.store().Ite(cond, t, f), nil
		}
		return nil, &SyntaxError{0, "a Real-valued ite may only appear as an operand of =, <=, <, >=, > or distinct"}
	case "=":
		if len(args) != 2 {
			return nil, &SyntaxError{0, "= takes exactly two arguments"}
		}
		if looksBoolean(c.script.Env, args[0]) || looksBoolean(c.script.Env, args[1]) {
			l, err := c.compileExpr(args[0])
			if err != nil {
				return nil, err
			}
			r, err := c.compileExpr(args[1])
			if err != nil {
				return nil, err
			}
			return c.store().Iff(l, r), nil
		}
		return c.compileRelation("=", args[0], args[1])
	case "<=", "<", ">=", ">":
		if len(args) != 2 {
			return nil, &SyntaxError{0, head.Value + " takes exactly two arguments"}
		}
		return c.compileRelation(head.Value, args[0], args[1])
	case "distinct":
		if len(args) != 2 {
			return nil, &SyntaxError{0, "distinct is only supported with exactly two arguments"}
		}
		return c.compileDistinct(args[0], args[1])
	default:
		return nil, &SyntaxError{0, fmt.Sprintf("unsupported boolean operator %q", head.Value)}
	}
}

// compileRelation compiles a binary theory relation, transparently lifting
// a Real-valued `ite` appearing in either operand position into a boolean
// Ite of two copies of the relation, per the case split
//
//	rel(ite(c,t,f), rhs)  ==  ite(c, rel(t,rhs), rel(f,rhs))
//
// and symmetrically for the right operand. This is the mechanism by which
// `(= y (ite (<= x 0) 1 2))` becomes a boolean Ite of two Eq atoms before
// it ever reaches the abstraction layer: a term-level ITE is never part of
// a formula.Term, only ever a surface-syntax shape this lowering consumes.
func (c *compiler) compileRelation(rel string, lhs, rhs SExp) (formula.Expr, error) {
	if cond, t, f, ok := asIte(lhs); ok {
		return c.compileCaseSplit(rel, cond, t, f, rhs, true)
	}
	if cond, t, f, ok := asIte(rhs); ok {
		return c.compileCaseSplit(rel, cond, t, f, lhs, false)
	}
	l, err := c.compileTerm(lhs)
	if err != nil {
		return nil, err
	}
	r, err := c.compileTerm(rhs)
	if err != nil {
		return nil, err
	}
	return c.buildAtom(rel, l, r)
}

func (c *compiler) compileCaseSplit(rel string, cond, t, f, other SExp, iteIsLHS bool) (formula.Expr, error) {
	condExpr, err := c.compileExpr(cond)
	if err != nil {
		return nil, err
	}
	var tBranch, fBranch formula.Expr
	if iteIsLHS {
		tBranch, err = c.compileRelation(rel, t, other)
	} else {
		tBranch, err = c.compileRelation(rel, other, t)
	}
	if err != nil {
		return nil, err
	}
	if iteIsLHS {
		fBranch, err = c.compileRelation(rel, f, other)
	} else {
		fBranch, err = c.compileRelation(rel, other, f)
	}
	if err != nil {
		return nil, err
	}
	return c.store().Ite(condExpr, tBranch, fBranch), nil
}

func (c *compiler) compileDistinct(lhs, rhs SExp) (formula.Expr, error) {
	if cond, t, f, ok := asIte(lhs); ok {
		condExpr, err := c.compileExpr(cond)
		if err != nil {
			return nil, err
		}
		tBranch, err := c.compileDistinct(t, rhs)
		if err != nil {
			return nil, err
		}
		fBranch, err := c.compileDistinct(f, rhs)
		if err != nil {
			return nil, err
		}
		return c.store().Ite(condExpr, tBranch, fBranch), nil
	}
	if cond, t, f, ok := asIte(rhs); ok {
		condExpr, err := c.compileExpr(cond)
		if err != nil {
			return nil, err
		}
		tBranch, err := c.compileDistinct(lhs, t)
		if err != nil {
			return nil, err
		}
		fBranch, err := c.compileDistinct(lhs, f)
		if err != nil {
			return nil, err
		}
		return c.store().Ite(condExpr, tBranch, fBranch), nil
	}
	l, err := c.compileTerm(lhs)
	if err != nil {
		return nil, err
	}
	r, err := c.compileTerm(rhs)
	if err != nil {
		return nil, err
	}
	// distinct(l,r) == l<r \/ l>r, concretized immediately: the formula
	// model never carries a raw Distinct leaf produced by this compiler.
	return c.store().Or(c.store().Lt(l, r), c.store().Gt(l, r)), nil
}

func (c *compiler) buildAtom(rel string, l, r formula.Term) (formula.Expr, error) {
	switch rel {
	case "=":
		return c.store().Eq(l, r), nil
	case "<=":
		return c.store().Le(l, r), nil
	case "<":
		return c.store().Lt(l, r), nil
	case ">=":
		return c.store().Ge(l, r), nil
	case ">":
		return c.store().Gt(l, r), nil
	default:
		return nil, &SyntaxError{0, fmt.Sprintf("unsupported relation %q", rel)}
	}
}

// compileTerm compiles sexp as a linear-arithmetic term.
func (c *compiler) compileTerm(sexp SExp) (formula.Term, error) {
	switch s := sexp.(type) {
	case *Atom:
		if r, ok := new(big.Rat).SetString(s.Value); ok {
			return formula.Const(r), nil
		}
		sort, ok := c.script.Env[s.Value]
		if !ok {
			return formula.Term{}, &SyntaxError{0, fmt.Sprintf("undeclared symbol %q", s.Value)}
		}
		if sort != formula.SortReal {
			return formula.Term{}, &SyntaxError{0, fmt.Sprintf("symbol %q is not Real-sorted", s.Value)}
		}
		return formula.Var(s.Value), nil
	case *List:
		return c.compileTermList(s)
	default:
		return formula.Term{}, &SyntaxError{0, "malformed term"}
	}
}

func (c *compiler) compileTermList(l *List) (formula.Term, error) {
	if l.Len() == 0 {
		return formula.Term{}, &SyntaxError{0, "empty term"}
	}
	head, ok := l.Elements[0].(*Atom)
	if !ok {
		return formula.Term{}, &SyntaxError{0, "term head must be a symbol"}
	}
	args := l.Elements[1:]
	switch head.Value {
	case "+":
		if len(args) == 0 {
			return formula.Term{}, &SyntaxError{0, "+ takes at least one argument"}
		}
		ts := make([]formula.Term, len(args))
		for i, a := range args {
			t, err := c.compileTerm(a)
			if err != nil {
				return formula.Term{}, err
			}
			ts[i] = t
		}
		return formula.Add(ts...), nil
	case "-":
		if len(args) == 1 {
			t, err := c.compileTerm(args[0])
			if err != nil {
				return formula.Term{}, err
			}
			return formula.Neg(t), nil
		}
		if len(args) < 2 {
			return formula.Term{}, &SyntaxError{0, "- takes at least one argument"}
		}
		first, err := c.compileTerm(args[0])
		if err != nil {
			return formula.Term{}, err
		}
		sum := []formula.Term{first}
		for _, a := range args[1:] {
			t, err := c.compileTerm(a)
			if err != nil {
				return formula.Term{}, err
			}
			sum = append(sum, formula.Neg(t))
		}
		return formula.Add(sum...), nil
	case "*":
		if len(args) < 2 {
			return formula.Term{}, &SyntaxError{0, "* takes at least two arguments"}
		}
		ts := make([]formula.Term, len(args))
		for i, a := range args {
			t, err := c.compileTerm(a)
			if err != nil {
				return formula.Term{}, err
			}
			ts[i] = t
		}
		return foldLinearProduct(ts)
	case "ite":
		return formula.Term{}, &SyntaxError{0, "a Real-valued ite may only appear as a direct operand of =, <=, <, >=, > or distinct"}
	default:
		return formula.Term{}, &SyntaxError{0, fmt.Sprintf("unsupported arithmetic operator %q", head.Value)}
	}
}

// foldLinearProduct multiplies ts together, which is only linear if at most
// one factor is non-constant.
func foldLinearProduct(ts []formula.Term) (formula.Term, error) {
	coef := big.NewRat(1, 1)
	var variable *formula.Term
	for i := range ts {
		t := ts[i]
		if t.Kind() == formula.TermConst {
			coef.Mul(coef, t.ConstValue())
			continue
		}
		if variable != nil {
			return formula.Term{}, &SyntaxError{0, "nonlinear term: at most one non-constant factor is supported"}
		}
		variable = &t
	}
	if variable == nil {
		return formula.Const(coef), nil
	}
	return formula.Mul(coef, *variable), nil
}

// asIte reports whether sexp is literally `(ite cond t f)`, splitting out
// its three operand sub-expressions.
func asIte(sexp SExp) (cond, t, f SExp, ok bool) {
	l, isList := sexp.(*List)
	if !isList || !l.MatchHead(4, "ite") {
		return nil, nil, nil, false
	}
	return l.Elements[1], l.Elements[2], l.Elements[3], true
}

// looksBoolean is a syntactic guess at whether sexp denotes a Bool-sorted
// expression, used only to disambiguate the overloaded `=`/`ite` SMT-LIB
// operators between their boolean and arithmetic readings.
func looksBoolean(env map[string]formula.Sort, sexp SExp) bool {
	switch s := sexp.(type) {
	case *Atom:
		if s.Value == "true" || s.Value == "false" {
			return true
		}
		sort, ok := env[s.Value]
		return ok && sort == formula.SortBool
	case *List:
		if s.Len() == 0 {
			return false
		}
		head, ok := s.Elements[0].(*Atom)
		if !ok {
			return false
		}
		switch head.Value {
		case "not", "and", "or", "=>", "<=", "<", ">=", ">", "distinct":
			return true
		case "=":
			return s.Len() == 3 && looksBoolean(env, s.Elements[1])
		case "ite":
			return s.Len() == 4 && (looksBoolean(env, s.Elements[2]) || looksBoolean(env, s.Elements[3]))
		default:
			return false
		}
	default:
		return false
	}
}
