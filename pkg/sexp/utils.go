package sexp

import (
	"fmt"
	"strconv"
)

// Navigation helpers for keyed lists such as (layer metal1 (pitch 0.4)).

// FindNode returns the first child list of s whose head is key.
func FindNode(s Sexp, key string) (*List, bool) {
	l, ok := s.(*List)
	if !ok {
		return nil, false
	}
	for _, it := range l.items {
		if c, ok := it.(*List); ok && c.Head() == key {
			return c, true
		}
	}
	return nil, false
}

// FindAllNodes returns every child list of s whose head is key, in order.
func FindAllNodes(s Sexp, key string) []*List {
	l, ok := s.(*List)
	if !ok {
		return nil
	}
	var out []*List
	for _, it := range l.items {
		if c, ok := it.(*List); ok && c.Head() == key {
			out = append(out, c)
		}
	}
	return out
}

// HasFlag reports whether s contains the bare atom name or an empty (name) list.
func HasFlag(s Sexp, name string) bool {
	l, ok := s.(*List)
	if !ok {
		return false
	}
	for i, it := range l.items {
		if i == 0 {
			continue
		}
		switch v := it.(type) {
		case Atom:
			if string(v) == name {
				return true
			}
		case *List:
			if v.Len() == 1 && v.Head() == name {
				return true
			}
		}
	}
	return false
}

// GetString returns the atom at index i of list s.
func GetString(s Sexp, i int) (string, error) {
	l, ok := s.(*List)
	if !ok {
		return "", fmt.Errorf("expected list, got atom %s", s)
	}
	if i < 0 || i >= len(l.items) {
		return "", fmt.Errorf("line %d: index %d out of range in %s", l.Line, i, l.Head())
	}
	a, ok := l.items[i].(Atom)
	if !ok {
		return "", fmt.Errorf("line %d: expected atom at index %d of %s", l.Line, i, l.Head())
	}
	return string(a), nil
}

// GetFloat parses the atom at index i of list s as a float.
func GetFloat(s Sexp, i int) (float64, error) {
	str, err := GetString(s, i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse float %q: %w", str, err)
	}
	return v, nil
}

// GetInt parses the atom at index i of list s as an integer.
func GetInt(s Sexp, i int) (int, error) {
	str, err := GetString(s, i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("failed to parse int %q: %w", str, err)
	}
	return v, nil
}

// GetFloats parses n consecutive floats starting at index i.
func GetFloats(s Sexp, i, n int) ([]float64, error) {
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		v, err := GetFloat(s, i+k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// Value returns the first argument of the child list named key, for
// (key value) properties.
func Value(s Sexp, key string) (string, bool) {
	c, ok := FindNode(s, key)
	if !ok || c.Len() < 2 {
		return "", false
	}
	v, err := GetString(c, 1)
	return v, err == nil
}
