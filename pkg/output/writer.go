package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/wrcad/xictools-sub010/pkg/sexp"
)

// Write emits the route file:
//
//	(routes DESIGN (run "ID")
//	  (net NAME
//	    (regular (wire LAYER X1 Y1 X2 Y2) (via LAYER X Y [VIANAME]) ...)
//	    (special (wire LAYER X1 Y1 X2 Y2) ...)))
func Write(w io.Writer, design, runID string, paths []NetPaths) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "(routes %s (run %s)\n", sexp.Atom(design), strconv.Quote(runID))
	for _, np := range paths {
		fmt.Fprintf(bw, "  (net %s\n", sexp.Atom(np.Name))
		fmt.Fprintf(bw, "    %s", section("regular", np.Regular))
		if len(np.Special) > 0 {
			fmt.Fprintf(bw, "\n    %s", section("special", np.Special))
		}
		bw.WriteString(")\n")
	}
	bw.WriteString(")\n")
	return bw.Flush()
}

func section(name string, elems []Element) *sexp.List {
	l := sexp.NewList(sexp.Atom(name))
	for _, e := range elems {
		l.Append(elementSexp(e))
	}
	return l
}

func elementSexp(e Element) *sexp.List {
	if e.Via {
		l := sexp.NewList(sexp.Atom("via"), num(float64(e.Layer)), num(e.X1), num(e.Y1))
		if e.ViaName != "" {
			l.Append(sexp.Atom(e.ViaName))
		}
		return l
	}
	return sexp.NewList(sexp.Atom("wire"), num(float64(e.Layer)), num(e.X1), num(e.Y1), num(e.X2), num(e.Y2))
}

func num(v float64) sexp.Atom {
	return sexp.Atom(strconv.FormatFloat(v, 'g', -1, 64))
}

// File is a parsed route file.
type File struct {
	Design string
	RunID  string
	Nets   []NetPaths
}

// Read parses a route file written by Write.
func Read(r io.Reader) (*File, error) {
	exprs, err := sexp.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("output: parse routes: %w", err)
	}
	for _, e := range exprs {
		top, ok := e.(*sexp.List)
		if !ok || top.Head() != "routes" {
			continue
		}
		f := &File{}
		f.Design, _ = sexp.GetString(top, 1)
		if run, ok := sexp.FindNode(top, "run"); ok {
			f.RunID, _ = sexp.GetString(run, 1)
		}
		for _, n := range sexp.FindAllNodes(top, "net") {
			np := NetPaths{}
			np.Name, _ = sexp.GetString(n, 1)
			if np.Regular, err = readSection(n, "regular"); err != nil {
				return nil, fmt.Errorf("output: net %s: %w", np.Name, err)
			}
			if np.Special, err = readSection(n, "special"); err != nil {
				return nil, fmt.Errorf("output: net %s: %w", np.Name, err)
			}
			f.Nets = append(f.Nets, np)
		}
		return f, nil
	}
	return nil, fmt.Errorf("output: no (routes ...) form found")
}

func readSection(net *sexp.List, name string) ([]Element, error) {
	sec, ok := sexp.FindNode(net, name)
	if !ok {
		return nil, nil
	}
	var out []Element
	for _, it := range sec.Items()[1:] {
		l, ok := it.(*sexp.List)
		if !ok {
			continue
		}
		layer, err := sexp.GetInt(l, 1)
		if err != nil {
			return nil, err
		}
		switch l.Head() {
		case "via":
			v, err := sexp.GetFloats(l, 2, 2)
			if err != nil {
				return nil, err
			}
			e := Element{Layer: layer, X1: v[0], Y1: v[1], X2: v[0], Y2: v[1], Via: true}
			e.ViaName, _ = sexp.GetString(l, 4)
			out = append(out, e)
		case "wire":
			v, err := sexp.GetFloats(l, 2, 4)
			if err != nil {
				return nil, err
			}
			out = append(out, Element{Layer: layer, X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]})
		default:
			return nil, fmt.Errorf("unknown element %q", l.Head())
		}
	}
	return out, nil
}
