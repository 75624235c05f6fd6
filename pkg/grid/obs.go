package grid

import "fmt"

// Bits of the per-cell obstruction word. The low bits hold a net number
// while NoNet is clear; under NoNet they hold the Obstruct* construction
// marks instead.
const (
	NetNumMask uint32 = 0x003fffff
	RoutedNet  uint32 = 0x00400000
	BlockedN   uint32 = 0x00800000
	BlockedS   uint32 = 0x01000000
	BlockedE   uint32 = 0x02000000
	BlockedW   uint32 = 0x04000000
	BlockedU   uint32 = 0x08000000
	BlockedD   uint32 = 0x10000000
	NoNet      uint32 = 0x20000000

	BlockedMask = BlockedN | BlockedS | BlockedE | BlockedW | BlockedU | BlockedD

	// DRCBlockage marks a free cell made unusable by a neighboring via.
	// It carries no net number.
	DRCBlockage = NoNet | RoutedNet

	// RoutedNetMask selects the net identity of a routed cell.
	RoutedNetMask = NetNumMask | RoutedNet | NoNet

	ObstructN    uint32 = 0x8
	ObstructS    uint32 = 0x4
	ObstructE    uint32 = 0x2
	ObstructW    uint32 = 0x1
	ObstructMask uint32 = 0xf
)

// MaxNetNum is the largest net number the obstruction word can hold.
const MaxNetNum = int(NetNumMask)

// Dir is one of the six moves out of a grid cell.
type Dir uint8

const (
	North Dir = iota
	South
	East
	West
	Up
	Down
)

// Dirs lists all six moves.
var Dirs = [6]Dir{North, South, East, West, Up, Down}

var dirNames = [6]string{"N", "S", "E", "W", "U", "D"}

func (d Dir) String() string {
	if int(d) < len(dirNames) {
		return dirNames[d]
	}
	return fmt.Sprintf("Dir(%d)", d)
}

// Opposite returns the reverse move.
func (d Dir) Opposite() Dir {
	return d ^ 1
}

// Delta returns the cell offset of the move.
func (d Dir) Delta() (dx, dy, dl int) {
	switch d {
	case North:
		return 0, 1, 0
	case South:
		return 0, -1, 0
	case East:
		return 1, 0, 0
	case West:
		return -1, 0, 0
	case Up:
		return 0, 0, 1
	case Down:
		return 0, 0, -1
	}
	return 0, 0, 0
}

// Lateral reports whether the move stays on the same layer.
func (d Dir) Lateral() bool {
	return d < Up
}

// Blocked returns the obstruction bit that forbids the move.
func (d Dir) Blocked() uint32 {
	return BlockedN << d
}

// IsFree reports whether w holds no net and no obstruction.
func IsFree(w uint32) bool {
	return w&(NetNumMask|NoNet|RoutedNet) == 0
}

// IsObstructed reports whether w is unusable by any net.
func IsObstructed(w uint32) bool {
	return w&NoNet != 0
}

// IsFullObstruction reports whether w is NoNet without directional marks.
func IsFullObstruction(w uint32) bool {
	return w&NoNet != 0 && w&RoutedNet == 0 && w&ObstructMask == 0
}

// IsDRC reports whether w is a via DRC blockage.
func IsDRC(w uint32) bool {
	return w&(NoNet|RoutedNet) == DRCBlockage
}

// NetNum returns the net number held by w, or zero under NoNet.
func NetNum(w uint32) int {
	if w&NoNet != 0 {
		return 0
	}
	return int(w & NetNumMask)
}

// IsRouted reports whether w holds a committed route.
func IsRouted(w uint32) bool {
	return w&(RoutedNet|NoNet) == RoutedNet
}
