package db

import (
	"fmt"
	"io"
	"os"

	"github.com/wrcad/xictools-sub010/pkg/geom"
	"github.com/wrcad/xictools-sub010/pkg/sexp"
)

// Load reads a design in the s-expression design format:
//
//	(design NAME
//	  (area X1 Y1 X2 Y2)
//	  (layer NAME (direction horizontal|vertical) (pitch P [PY]) (width W) (spacing S))
//	  (via NAME (lower LAYER) (size W [H]))
//	  (gate NAME (cell CELL)
//	    (pin NAME (net NET) (rect LAYER X1 Y1 X2 Y2) ...)
//	    (obs (rect LAYER X1 Y1 X2 Y2) ...))
//	  (pin NAME (net NET) (rect LAYER X1 Y1 X2 Y2) ...)
//	  (net NAME [critical] [global] [ignore])
//	  (obstruction (rect LAYER X1 Y1 X2 Y2) ...))
//
// Nets are numbered in order of first mention.
func Load(r io.Reader) (*Design, error) {
	exprs, err := sexp.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("db: parse design: %w", err)
	}
	for _, e := range exprs {
		if l, ok := e.(*sexp.List); ok && l.Head() == "design" {
			return fromSexp(l)
		}
	}
	return nil, fmt.Errorf("db: no (design ...) form found")
}

// LoadFile reads a design from path.
func LoadFile(path string) (*Design, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("db: open design: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func fromSexp(top *sexp.List) (*Design, error) {
	name, _ := sexp.GetString(top, 1)
	tech := &Tech{}

	for _, l := range sexp.FindAllNodes(top, "layer") {
		layer, err := parseLayer(l)
		if err != nil {
			return nil, err
		}
		tech.Layers = append(tech.Layers, layer)
	}
	for _, v := range sexp.FindAllNodes(top, "via") {
		via, err := parseVia(tech, v)
		if err != nil {
			return nil, err
		}
		tech.Vias = append(tech.Vias, via)
	}

	areaNode, ok := sexp.FindNode(top, "area")
	if !ok {
		return nil, fmt.Errorf("db: design %s: missing area", name)
	}
	a, err := sexp.GetFloats(areaNode, 1, 4)
	if err != nil {
		return nil, fmt.Errorf("db: area: %w", err)
	}
	d := NewDesign(name, tech, geom.NewRect(a[0], a[1], a[2], a[3]))

	// Declared nets and pins are processed in file order so that net
	// numbering follows first mention.
	for _, it := range top.Items() {
		l, ok := it.(*sexp.List)
		if !ok {
			continue
		}
		switch l.Head() {
		case "net":
			nn, err := sexp.GetString(l, 1)
			if err != nil {
				return nil, fmt.Errorf("db: net: %w", err)
			}
			n := d.AddNet(nn)
			if sexp.HasFlag(l, "critical") {
				n.Set(NetCritical)
			}
			if sexp.HasFlag(l, "global") {
				n.Set(NetGlobal)
			}
			if sexp.HasFlag(l, "ignore") {
				n.Set(NetIgnored)
			}
		case "gate":
			if err := parseGate(d, l); err != nil {
				return nil, err
			}
		case "pin":
			pn, err := sexp.GetString(l, 1)
			if err != nil {
				return nil, fmt.Errorf("db: pin: %w", err)
			}
			netName, _ := sexp.Value(l, "net")
			shapes, err := parseRects(tech, l)
			if err != nil {
				return nil, fmt.Errorf("db: pin %s: %w", pn, err)
			}
			d.AddPort(pn, netName, shapes...)
		case "obstruction":
			shapes, err := parseRects(tech, l)
			if err != nil {
				return nil, fmt.Errorf("db: obstruction: %w", err)
			}
			d.Obstructions = append(d.Obstructions, shapes...)
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func parseLayer(l *sexp.List) (Layer, error) {
	name, err := sexp.GetString(l, 1)
	if err != nil {
		return Layer{}, fmt.Errorf("db: layer: %w", err)
	}
	layer := Layer{Name: name}
	if v, ok := sexp.Value(l, "direction"); ok {
		if layer.Direction, err = ParseDirection(v); err != nil {
			return Layer{}, err
		}
	} else if sexp.HasFlag(l, "vertical") {
		layer.Direction = Vertical
	}
	if p, ok := sexp.FindNode(l, "pitch"); ok {
		if layer.PitchX, err = sexp.GetFloat(p, 1); err != nil {
			return Layer{}, fmt.Errorf("db: layer %s pitch: %w", name, err)
		}
		layer.PitchY = layer.PitchX
		if p.Len() > 2 {
			if layer.PitchY, err = sexp.GetFloat(p, 2); err != nil {
				return Layer{}, fmt.Errorf("db: layer %s pitch: %w", name, err)
			}
		}
	}
	if w, ok := sexp.FindNode(l, "width"); ok {
		if layer.Width, err = sexp.GetFloat(w, 1); err != nil {
			return Layer{}, fmt.Errorf("db: layer %s width: %w", name, err)
		}
	}
	if s, ok := sexp.FindNode(l, "spacing"); ok {
		if layer.Spacing, err = sexp.GetFloat(s, 1); err != nil {
			return Layer{}, fmt.Errorf("db: layer %s spacing: %w", name, err)
		}
	}
	return layer, nil
}

func parseVia(tech *Tech, l *sexp.List) (Via, error) {
	name, err := sexp.GetString(l, 1)
	if err != nil {
		return Via{}, fmt.Errorf("db: via: %w", err)
	}
	v := Via{Name: name}
	lower, ok := sexp.Value(l, "lower")
	if !ok {
		return Via{}, fmt.Errorf("db: via %s: missing lower layer", name)
	}
	if v.Lower, err = tech.LayerIndex(lower); err != nil {
		return Via{}, fmt.Errorf("db: via %s: %w", name, err)
	}
	if s, ok := sexp.FindNode(l, "size"); ok {
		if v.Width, err = sexp.GetFloat(s, 1); err != nil {
			return Via{}, fmt.Errorf("db: via %s size: %w", name, err)
		}
		v.Height = v.Width
		if s.Len() > 2 {
			if v.Height, err = sexp.GetFloat(s, 2); err != nil {
				return Via{}, fmt.Errorf("db: via %s size: %w", name, err)
			}
		}
	}
	return v, nil
}

func parseGate(d *Design, l *sexp.List) error {
	name, err := sexp.GetString(l, 1)
	if err != nil {
		return fmt.Errorf("db: gate: %w", err)
	}
	cell, _ := sexp.Value(l, "cell")
	g := d.AddGate(name, cell)
	for _, p := range sexp.FindAllNodes(l, "pin") {
		pn, err := sexp.GetString(p, 1)
		if err != nil {
			return fmt.Errorf("db: gate %s pin: %w", name, err)
		}
		netName, _ := sexp.Value(p, "net")
		shapes, err := parseRects(d.Tech, p)
		if err != nil {
			return fmt.Errorf("db: gate %s pin %s: %w", name, pn, err)
		}
		d.AddPin(g, pn, netName, shapes...)
	}
	for _, o := range sexp.FindAllNodes(l, "obs") {
		shapes, err := parseRects(d.Tech, o)
		if err != nil {
			return fmt.Errorf("db: gate %s obs: %w", name, err)
		}
		g.Obs = append(g.Obs, shapes...)
	}
	return nil
}

func parseRects(tech *Tech, l *sexp.List) ([]Shape, error) {
	var out []Shape
	for _, r := range sexp.FindAllNodes(l, "rect") {
		ref, err := sexp.GetString(r, 1)
		if err != nil {
			return nil, err
		}
		layer, err := tech.LayerIndex(ref)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.Line, err)
		}
		c, err := sexp.GetFloats(r, 2, 4)
		if err != nil {
			return nil, err
		}
		out = append(out, Shape{Layer: layer, Rect: geom.NewRect(c[0], c[1], c[2], c[3])})
	}
	return out, nil
}
