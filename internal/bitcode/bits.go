// Package bitcode implements the code-word algebra shared by the renderer,
// the decoder, and the code generator: bit-location layout, 90-degree code
// rotation, and Hamming distance.
package bitcode

import "math/bits"

// Location is a signed grid coordinate of one code bit, relative to the
// layout's border_start (raw_x - border_start, raw_y - border_start). It
// may be negative: data bits can live outside the inner border ring for
// Standard/Circle layouts.
type Location struct {
	X, Y int
}

// CellKind mirrors layout.CellKind without importing the layout package,
// avoiding an import cycle (layout depends on bitcode for Location sizing).
type CellKind int

const (
	CellData CellKind = iota
	CellBlack
	CellWhite
	CellIgnored
)

func (k CellKind) String() string {
	switch k {
	case CellData:
		return "Data"
	case CellBlack:
		return "Black"
	case CellWhite:
		return "White"
	case CellIgnored:
		return "Ignored"
	default:
		return "Unknown"
	}
}

// GridSource is the minimal view of a layout this package needs to compute
// bit locations: a square grid of cell kinds and the border offset.
type GridSource interface {
	Size() int
	Border() int
	CellAt(x, y int) CellKind
}

// Locations produces the quadrant-scan bit-location order: the top-left
// triangle in reading order for Data cells, then three 90-degree rotations
// of that list (each step rotates the previous step's block by a further 90
// degrees), then the center cell if the grid size is odd
// and that cell is Data. All coordinates are finally shifted by -BorderStart.
func Locations(g GridSource) []Location {
	size := g.Size()

	var first []Location
	for y := 0; y <= size/2; y++ {
		for x := y; x < size-1-y; x++ {
			if g.CellAt(x, y) == CellData {
				first = append(first, Location{X: x, Y: y})
			}
		}
	}

	locs := make([]Location, len(first))
	copy(locs, first)

	for step := 0; step < 3; step++ {
		start := len(locs) - len(first)
		for i := 0; i < len(first); i++ {
			px, py := locs[start+i].X, locs[start+i].Y
			locs = append(locs, Location{X: size - 1 - py, Y: px})
		}
	}

	if size%2 == 1 {
		c := size / 2
		if g.CellAt(c, c) == CellData {
			locs = append(locs, Location{X: c, Y: c})
		}
	}

	bs := g.Border()
	for i := range locs {
		locs[i].X -= bs
		locs[i].Y -= bs
	}
	return locs
}

// Rotate90 rotates a code word by 90 degrees. For nbits % 4 == 0 this is a
// left rotation of all bits by nbits/4. For nbits % 4 == 1 the
// least-significant bit is the center pixel and is preserved unrotated; the
// remaining nbits-1 bits are rotated as a group.
func Rotate90(w uint64, nbits int) uint64 {
	p := uint(nbits)
	l := uint(0)
	if nbits%4 == 1 {
		p = uint(nbits - 1)
		l = 1
	}
	result := ((w >> l) << (p/4 + l)) | ((w >> (3*p/4 + l)) << l) | (w & uint64(l))
	return result & ((uint64(1) << uint(nbits)) - 1)
}

// HammingDistance returns the population count of a XOR b.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// HammingDistanceAtLeast returns true as soon as the Hamming distance
// between a and b is known to reach threshold, accumulating popcount over
// 16-bit chunks to allow early exit.
func HammingDistanceAtLeast(a, b uint64, threshold int) bool {
	x := a ^ b
	total := 0
	for shift := uint(0); shift < 64; shift += 16 {
		total += bits.OnesCount16(uint16(x >> shift))
		if total >= threshold {
			return true
		}
	}
	return total >= threshold
}
