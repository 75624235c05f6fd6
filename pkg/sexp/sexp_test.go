package sexp

import (
	"strings"
	"testing"
)

func TestParseNested(t *testing.T) {
	input := `
; design header
(design top
  (area 0 0 10 10)   # bounds
  (layer "metal 1" (pitch 1.0) horizontal))
`
	exprs, err := ParseString(input)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	if len(exprs) != 1 {
		t.Fatalf("got %d top-level expressions, want 1", len(exprs))
	}
	d := exprs[0].(*List)
	if d.Head() != "design" {
		t.Errorf("head = %q, want design", d.Head())
	}
	if d.Line != 3 {
		t.Errorf("line = %d, want 3", d.Line)
	}

	area, ok := FindNode(d, "area")
	if !ok {
		t.Fatal("area not found")
	}
	vals, err := GetFloats(area, 1, 4)
	if err != nil {
		t.Fatalf("GetFloats: %v", err)
	}
	if vals[2] != 10 || vals[3] != 10 {
		t.Errorf("area = %v", vals)
	}

	layer, _ := FindNode(d, "layer")
	name, _ := GetString(layer, 1)
	if name != "metal 1" {
		t.Errorf("layer name = %q", name)
	}
	if !HasFlag(layer, "horizontal") {
		t.Error("horizontal flag not found")
	}
	if v, ok := Value(layer, "pitch"); !ok || v != "1.0" {
		t.Errorf("pitch = %q, %v", v, ok)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unclosed", "(a (b c)", "unclosed list"},
		{"stray close", "a )", "unexpected ')'"},
		{"string", `(a "b`, "unterminated string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	l := NewList(Atom("net"), Atom("a b"), NewList(Atom("layer"), Atom("1")))
	if got, want := l.String(), `(net "a b" (layer 1))`; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
	exprs, err := ParseString(l.String())
	if err != nil {
		t.Fatal(err)
	}
	if exprs[0].String() != l.String() {
		t.Errorf("reparse = %s", exprs[0])
	}
}

func TestFindAllNodes(t *testing.T) {
	exprs, err := ParseString("(g (pin a) (obs) (pin b) x)")
	if err != nil {
		t.Fatal(err)
	}
	pins := FindAllNodes(exprs[0], "pin")
	if len(pins) != 2 {
		t.Fatalf("got %d pins", len(pins))
	}
	if n, _ := GetString(pins[1], 1); n != "b" {
		t.Errorf("second pin = %q", n)
	}
	if _, err := GetInt(pins[0], 1); err == nil {
		t.Error("expected int parse error")
	}
}
