// Package sexp reads the parenthesised text format used for design and
// route files. The reader streams its input, so large placed designs do not
// need to be held in memory as text.
package sexp

import (
	"io"
	"strings"
)

// Sexp is one node of a parsed expression: an atom or a list.
type Sexp interface {
	// IsLeaf reports whether the node is an atom.
	IsLeaf() bool

	// Len returns the number of elements of a list (1 for atoms).
	Len() int

	// String renders the node back to text.
	String() string
}

// Atom is an unquoted symbol, a number, or the contents of a quoted string.
type Atom string

func (a Atom) IsLeaf() bool { return true }
func (a Atom) Len() int     { return 1 }

func (a Atom) String() string {
	s := string(a)
	if s == "" || strings.ContainsAny(s, " \t\n()\"#") {
		return quote(s)
	}
	return s
}

// List is a parenthesised sequence of nodes.
type List struct {
	Line  int
	items []Sexp
}

// NewList builds a list from the given items.
func NewList(items ...Sexp) *List {
	return &List{items: items}
}

func (l *List) IsLeaf() bool { return false }
func (l *List) Len() int     { return len(l.items) }

// Get returns the element at index i or nil when out of range.
func (l *List) Get(i int) Sexp {
	if i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// Items returns the list elements.
func (l *List) Items() []Sexp {
	return l.items
}

// Append adds items to the end of the list.
func (l *List) Append(items ...Sexp) {
	l.items = append(l.items, items...)
}

// Head returns the first element as text, or "" when it is not an atom.
func (l *List) Head() string {
	if len(l.items) == 0 {
		return ""
	}
	if a, ok := l.items[0].(Atom); ok {
		return string(a)
	}
	return ""
}

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, it := range l.items {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(it.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Parse reads every top-level expression from r.
func Parse(r io.Reader) ([]Sexp, error) {
	return NewParser(r).ParseAll()
}

// ParseString reads every top-level expression from s.
func ParseString(s string) ([]Sexp, error) {
	return Parse(strings.NewReader(s))
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
