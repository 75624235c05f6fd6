// Package db is the design database the router reads from and commits to:
// the technology stack, gates with pin and obstruction geometry, nets with
// their terminals, and the committed route segments of every net.
package db

import (
	"fmt"

	"github.com/wrcad/xictools-sub010/pkg/geom"
)

// Shape is a rectangle on one layer.
type Shape struct {
	Layer int
	Rect  geom.Rect
}

// GridPoint addresses one cell of the routing grid.
type GridPoint struct {
	X, Y, Layer int
}

func (p GridPoint) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Layer)
}

// PortCell is the cell name given to gates that stand for top-level pins.
const PortCell = "PIN"

// Gate is a placed cell instance or a top-level port.
type Gate struct {
	Name string
	Cell string
	Pins []*Pin
	Obs  []Shape
}

// Bounds returns the extent of all gate geometry.
func (g *Gate) Bounds() geom.Rect {
	r := geom.EmptyRect()
	for _, p := range g.Pins {
		for _, s := range p.Shapes {
			r = r.Union(s.Rect)
		}
	}
	for _, s := range g.Obs {
		r = r.Union(s.Rect)
	}
	return r
}

// Pin is a gate terminal. Node is nil for unconnected pins.
type Pin struct {
	Name   string
	Gate   *Gate
	Node   *Node
	Shapes []Shape
}

// Node is one terminal of a net. Taps and Extend are filled in by grid
// translation: Taps are cells inside the pin geometry, Extend the halo
// cells that reach the pin by a stub or an offset via.
type Node struct {
	Net    *Net
	Pin    *Pin
	Taps   []GridPoint
	Extend []GridPoint

	// Geometry is the pin geometry after tap expansion and clipping.
	Geometry []Shape

	// NumTaps is the number of reachable grid positions.
	NumTaps int

	// Branch is the point of the net trunk nearest to this node.
	Branch GridPoint
}

// Name returns "gate/pin" for diagnostics.
func (n *Node) Name() string {
	if n.Pin == nil {
		return "?"
	}
	if n.Pin.Gate == nil || n.Pin.Gate.Cell == PortCell {
		return n.Pin.Name
	}
	return n.Pin.Gate.Name + "/" + n.Pin.Name
}

// Shapes returns the node geometry, expanded when available.
func (n *Node) Shapes() []Shape {
	if n.Geometry != nil {
		return n.Geometry
	}
	if n.Pin == nil {
		return nil
	}
	return n.Pin.Shapes
}

// NetFlags carries per-net routing state.
type NetFlags uint16

const (
	NetGlobal NetFlags = 1 << iota
	NetCritical
	NetIgnored
	NetPending
	NetAbandoned
	NetVerticalTrunk
	NetStub
)

// Net is a set of nodes to be connected.
type Net struct {
	Name   string
	Number int
	Nodes  []*Node
	Flags  NetFlags

	// Bounding box of the node taps in grid units.
	XMin, XMax, YMin, YMax int

	// Trunk position: a y coordinate for horizontal trunks, x for vertical.
	Trunk int

	Routes []*Route

	// NoRipup lists nets this net may not rip up.
	NoRipup []*Net

	// Order is the declaration index, used to break ordering ties.
	Order int
}

func (n *Net) Has(f NetFlags) bool { return n.Flags&f != 0 }
func (n *Net) Set(f NetFlags)      { n.Flags |= f }
func (n *Net) Clear(f NetFlags)    { n.Flags &^= f }

// Routable reports whether the net has something to connect.
func (n *Net) Routable() bool {
	if n.Has(NetIgnored) {
		return false
	}
	return len(n.Nodes) >= 2 || (n.Has(NetGlobal) && len(n.Nodes) == 1)
}

// InNoRipup reports whether other is protected from this net.
func (n *Net) InNoRipup(other *Net) bool {
	for _, x := range n.NoRipup {
		if x == other {
			return true
		}
	}
	return false
}

// AddNoRipup protects other from being ripped up by this net.
func (n *Net) AddNoRipup(other *Net) {
	if !n.InNoRipup(other) {
		n.NoRipup = append(n.NoRipup, other)
	}
}

// Design is the placed netlist plus technology.
type Design struct {
	Name         string
	Tech         *Tech
	Area         geom.Rect
	Gates        []*Gate
	Nets         []*Net
	Obstructions []Shape

	byName map[string]*Net
}

// NewDesign returns an empty design over tech.
func NewDesign(name string, tech *Tech, area geom.Rect) *Design {
	return &Design{Name: name, Tech: tech, Area: area, byName: make(map[string]*Net)}
}

// Net returns the named net, or nil.
func (d *Design) Net(name string) *Net {
	return d.byName[name]
}

// NetByNumber returns the net with number n, or nil.
func (d *Design) NetByNumber(n int) *Net {
	if n < 1 || n > len(d.Nets) {
		return nil
	}
	return d.Nets[n-1]
}

// AddNet returns the named net, creating it at the end of the declaration
// order when it does not exist.
func (d *Design) AddNet(name string) *Net {
	if n, ok := d.byName[name]; ok {
		return n
	}
	n := &Net{Name: name, Number: len(d.Nets) + 1, Order: len(d.Nets)}
	d.Nets = append(d.Nets, n)
	d.byName[name] = n
	return n
}

// AddGate appends a gate.
func (d *Design) AddGate(name, cell string) *Gate {
	g := &Gate{Name: name, Cell: cell}
	d.Gates = append(d.Gates, g)
	return g
}

// AddPin adds a pin to g and, when netName is not empty, connects it to
// that net through a new node.
func (d *Design) AddPin(g *Gate, name, netName string, shapes ...Shape) *Pin {
	p := &Pin{Name: name, Gate: g, Shapes: shapes}
	g.Pins = append(g.Pins, p)
	if netName != "" {
		n := d.AddNet(netName)
		node := &Node{Net: n, Pin: p}
		p.Node = node
		n.Nodes = append(n.Nodes, node)
	}
	return p
}

// AddPort adds a top-level pin as a single-pin gate.
func (d *Design) AddPort(name, netName string, shapes ...Shape) *Pin {
	g := d.AddGate(name, PortCell)
	return d.AddPin(g, name, netName, shapes...)
}

// Validate checks cross references after loading.
func (d *Design) Validate() error {
	if d.Tech == nil {
		return fmt.Errorf("db: design %s has no technology", d.Name)
	}
	if err := d.Tech.Validate(); err != nil {
		return err
	}
	if d.Area.IsEmpty() {
		return fmt.Errorf("db: design %s has an empty area", d.Name)
	}
	check := func(s Shape, owner string) error {
		if s.Layer < 0 || s.Layer >= d.Tech.NumLayers() {
			return fmt.Errorf("%w: layer %d in %s", ErrUnknownLayer, s.Layer, owner)
		}
		return nil
	}
	for _, g := range d.Gates {
		for _, p := range g.Pins {
			for _, s := range p.Shapes {
				if err := check(s, g.Name+"/"+p.Name); err != nil {
					return err
				}
			}
		}
		for _, s := range g.Obs {
			if err := check(s, g.Name); err != nil {
				return err
			}
		}
	}
	for _, s := range d.Obstructions {
		if err := check(s, "obstruction"); err != nil {
			return err
		}
	}
	return nil
}
