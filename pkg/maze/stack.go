package maze

const blockSize = 512

// point is a stacked cell with the cost it had when pushed. An entry whose
// cost no longer matches the cell is stale and skipped.
type point struct {
	x, y, l int32
	cost    uint32
}

// pointStack is a LIFO of points stored in fixed-size blocks. Blocks are
// kept after pops and reused.
type pointStack struct {
	blocks [][]point
	n      int
}

func (s *pointStack) push(p point) {
	b := s.n / blockSize
	if b == len(s.blocks) {
		s.blocks = append(s.blocks, make([]point, blockSize))
	}
	s.blocks[b][s.n%blockSize] = p
	s.n++
}

func (s *pointStack) pop() point {
	s.n--
	return s.blocks[s.n/blockSize][s.n%blockSize]
}

func (s *pointStack) len() int { return s.n }

func (s *pointStack) clear() { s.n = 0 }

// each calls fn for every stacked point, bottom first.
func (s *pointStack) each(fn func(point)) {
	for i := 0; i < s.n; i++ {
		fn(s.blocks[i/blockSize][i%blockSize])
	}
}
