package smtlib

import "strings"

// SExp is either a List of zero or more SExps or a terminating Atom. This
// mirrors the List/Symbol duality used throughout the corpus's generic
// S-expression readers, specialized here to the handful of SMT-LIB v2
// surface forms this solver accepts.
type SExp interface {
	IsList() bool
	IsAtom() bool
	String() string
}

// List represents a parenthesized sequence of SExps.
type List struct{ Elements []SExp }

// IsList always returns true for a List.
func (*List) IsList() bool { return true }

// IsAtom always returns false for a List.
func (*List) IsAtom() bool { return false }

// Len returns the number of elements in the list.
func (l *List) Len() int { return len(l.Elements) }

func (l *List) String() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// MatchHead reports whether l has at least n elements and the first element
// is the atom head.
func (l *List) MatchHead(n int, head string) bool {
	if len(l.Elements) < n {
		return false
	}
	a, ok := l.Elements[0].(*Atom)
	return ok && a.Value == head
}

// Atom is a terminating token: a symbol, a numeral, a decimal, a keyword
// (`:status`), or a quoted string.
type Atom struct{ Value string }

// IsList always returns false for an Atom.
func (*Atom) IsList() bool { return false }

// IsAtom always returns true for an Atom.
func (*Atom) IsAtom() bool { return true }

func (a *Atom) String() string { return a.Value }
