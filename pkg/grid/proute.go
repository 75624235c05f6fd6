package grid

// PRoute flags.
const (
	PRPredMask  uint16 = 0x007
	PRProcessed uint16 = 0x008
	PRConflict  uint16 = 0x010
	PRSource    uint16 = 0x020
	PRTarget    uint16 = 0x040
	PRCost      uint16 = 0x080
	PRBlocked   uint16 = 0x100
)

// MaxRT is the cost of an unreached cell.
const MaxRT uint32 = 10000000

// PRoute is the search state of one cell. Data is the path cost when
// PRCost is set and the occupying net number otherwise.
type PRoute struct {
	Flags uint16
	Data  uint32
}

// Pred returns the move back toward the source, if any.
func (p *PRoute) Pred() (Dir, bool) {
	c := p.Flags & PRPredMask
	if c == 0 {
		return 0, false
	}
	return Dir(c - 1), true
}

// SetPred records the move back toward the source.
func (p *PRoute) SetPred(d Dir) {
	p.Flags = p.Flags&^PRPredMask | uint16(d+1)
}

// ClearPred forgets the predecessor.
func (p *PRoute) ClearPred() {
	p.Flags &^= PRPredMask
}

// Cost returns the path cost, or MaxRT when the cell has none.
func (p *PRoute) Cost() uint32 {
	if p.Flags&PRCost == 0 {
		return MaxRT
	}
	return p.Data
}

// PRoute returns the search state of (x, y, l), allocating the working
// arrays on first use.
func (g *Grid) PRoute(x, y, l int) *PRoute {
	if g.proute == nil {
		g.proute = make([][]PRoute, g.NumLayers)
		for i := range g.proute {
			g.proute[i] = make([]PRoute, g.NumX*g.NumY)
		}
	}
	return &g.proute[l][g.index(x, y)]
}

// ReleasePRoute discards the search state.
func (g *Grid) ReleasePRoute() {
	g.proute = nil
}
