package grid

import "github.com/wrcad/xictools-sub010/pkg/db"

// NIFlags tells which way a stub or offset points.
type NIFlags uint8

const (
	StubNS NIFlags = 1 << iota
	StubEW
	OffsetNS
	OffsetEW

	StubMask   = StubNS | StubEW
	OffsetMask = OffsetNS | OffsetEW
)

// NodeInfo is the sparse metadata of a cell that can contact a node.
// Stub and Offset are signed distances in physical units, positive toward
// north or east.
type NodeInfo struct {
	// NodeLoc is the node that currently owns the cell.
	NodeLoc *db.Node
	// NodeSav is the owner before the current route attempt.
	NodeSav *db.Node
	Stub    float64
	Offset  float64
	Flags   NIFlags
}

const slabSize = 1024

// nodeArena hands out NodeInfo records from fixed-size slabs. Records never
// move, so pointers returned by at stay valid until reset.
type nodeArena struct {
	slabs [][]NodeInfo
	n     int32
}

func (a *nodeArena) alloc() int32 {
	if int(a.n)%slabSize == 0 && int(a.n)/slabSize == len(a.slabs) {
		a.slabs = append(a.slabs, make([]NodeInfo, slabSize))
	}
	h := a.n
	a.n++
	return h
}

func (a *nodeArena) at(h int32) *NodeInfo {
	return &a.slabs[h/slabSize][h%slabSize]
}

func (a *nodeArena) reset() {
	a.slabs = nil
	a.n = 0
}

// NodeInfo returns the metadata at (x, y, l), or nil when the cell has none.
func (g *Grid) NodeInfo(x, y, l int) *NodeInfo {
	if l >= len(g.nodeInfo) || g.nodeInfo[l] == nil {
		return nil
	}
	h := g.nodeInfo[l][g.index(x, y)]
	if h == 0 {
		return nil
	}
	return g.arena.at(h - 1)
}

// EnsureNodeInfo returns the metadata at (x, y, l), allocating it.
func (g *Grid) EnsureNodeInfo(x, y, l int) *NodeInfo {
	if g.nodeInfo[l] == nil {
		g.nodeInfo[l] = make([]int32, g.NumX*g.NumY)
	}
	i := g.index(x, y)
	if g.nodeInfo[l][i] == 0 {
		g.nodeInfo[l][i] = g.arena.alloc() + 1
	}
	return g.arena.at(g.nodeInfo[l][i] - 1)
}

// ClearNodeInfo drops the metadata at (x, y, l). The arena record is not
// reclaimed until Reset.
func (g *Grid) ClearNodeInfo(x, y, l int) {
	if l < len(g.nodeInfo) && g.nodeInfo[l] != nil {
		g.nodeInfo[l][g.index(x, y)] = 0
	}
}

// NodeAt returns the current owner of (x, y, l), or nil.
func (g *Grid) NodeAt(x, y, l int) *db.Node {
	if ni := g.NodeInfo(x, y, l); ni != nil {
		return ni.NodeLoc
	}
	return nil
}

// CountPinLayers sets PinLayers to one more than the highest layer holding
// node metadata and frees the metadata arrays above it.
func (g *Grid) CountPinLayers() int {
	g.PinLayers = 0
	for l := g.NumLayers - 1; l >= 0; l-- {
		if g.layerHasNodeInfo(l) {
			g.PinLayers = l + 1
			break
		}
	}
	for l := g.PinLayers; l < g.NumLayers; l++ {
		g.nodeInfo[l] = nil
	}
	return g.PinLayers
}

func (g *Grid) layerHasNodeInfo(l int) bool {
	for _, h := range g.nodeInfo[l] {
		if h != 0 && g.arena.at(h-1).NodeLoc != nil {
			return true
		}
	}
	return false
}
