package db

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrUnknownLayer is returned when a layer reference does not resolve.
var ErrUnknownLayer = errors.New("db: unknown layer")

// Direction is the preferred routing orientation of a layer.
type Direction int

const (
	Horizontal Direction = iota
	Vertical
)

func (d Direction) String() string {
	if d == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// ParseDirection accepts "horizontal"/"h" and "vertical"/"v".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "horizontal", "h", "H", "HORIZONTAL":
		return Horizontal, nil
	case "vertical", "v", "V", "VERTICAL":
		return Vertical, nil
	}
	return Horizontal, fmt.Errorf("db: invalid direction %q", s)
}

// Layer is one routing layer, numbered bottom-up from zero.
type Layer struct {
	Name      string
	Direction Direction
	PitchX    float64 // spacing of vertical tracks
	PitchY    float64 // spacing of horizontal tracks
	Width     float64
	Spacing   float64
}

// Via connects layer Lower to layer Lower+1. Width and Height are the metal
// footprint of the via on both layers.
type Via struct {
	Name   string
	Lower  int
	Width  float64
	Height float64
}

// Tech is the technology description consumed by the router.
type Tech struct {
	Layers []Layer
	Vias   []Via
}

// NumLayers returns the number of routing layers.
func (t *Tech) NumLayers() int { return len(t.Layers) }

// LayerIndex resolves a layer name or a decimal index.
func (t *Tech) LayerIndex(ref string) (int, error) {
	for i, l := range t.Layers {
		if l.Name == ref {
			return i, nil
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 0 && n < len(t.Layers) {
		return n, nil
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownLayer, ref)
}

// RouteHalfWidth returns half the wire width on layer l.
func (t *Tech) RouteHalfWidth(l int) float64 {
	return t.Layers[l].Width / 2
}

// ViaHalfWidth returns half the largest via footprint that lands on layer l.
// A layer with no via falls back to the wire half width.
func (t *Tech) ViaHalfWidth(l int) float64 {
	h := 0.0
	for _, v := range t.Vias {
		if v.Lower == l || v.Lower+1 == l {
			h = math.Max(h, math.Max(v.Width, v.Height)/2)
		}
	}
	if h == 0 {
		return t.RouteHalfWidth(l)
	}
	return h
}

// ViaHalfSize returns the half footprint of the primary via on layer l
// along x and y.
func (t *Tech) ViaHalfSize(l int) (float64, float64) {
	for _, v := range t.Vias {
		if v.Lower == l || v.Lower+1 == l {
			return v.Width / 2, v.Height / 2
		}
	}
	h := t.RouteHalfWidth(l)
	return h, h
}

// Clearance is the distance from an obstacle edge inside which a grid point
// cannot hold a wire or via of layer l.
func (t *Tech) Clearance(l int) float64 {
	return t.Layers[l].Spacing + math.Max(t.ViaHalfWidth(l), t.RouteHalfWidth(l))
}

// ViaVariant returns the via between lower and lower+1. When alt is set and
// a second via is defined for the same cut, that one is returned.
func (t *Tech) ViaVariant(lower int, alt bool) (Via, bool) {
	var found []Via
	for _, v := range t.Vias {
		if v.Lower == lower {
			found = append(found, v)
		}
	}
	switch {
	case len(found) == 0:
		return Via{}, false
	case alt && len(found) > 1:
		return found[1], true
	}
	return found[0], true
}

// Validate checks that the stack is usable for routing.
func (t *Tech) Validate() error {
	if len(t.Layers) == 0 {
		return errors.New("db: technology has no layers")
	}
	for i, l := range t.Layers {
		if l.PitchX <= 0 || l.PitchY <= 0 {
			return fmt.Errorf("db: layer %s: pitch must be positive", l.Name)
		}
		if l.Width <= 0 {
			return fmt.Errorf("db: layer %s: width must be positive", l.Name)
		}
		if l.Spacing < 0 {
			return fmt.Errorf("db: layer %d: negative spacing", i)
		}
	}
	for _, v := range t.Vias {
		if v.Lower < 0 || v.Lower+1 >= len(t.Layers) {
			return fmt.Errorf("db: via %s: lower layer %d out of range", v.Name, v.Lower)
		}
	}
	return nil
}
