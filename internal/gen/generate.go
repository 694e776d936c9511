// Package gen implements the tag-family code generator: a greedy lexicode
// search over 2^nbits candidate code words, reproducing the deterministic
// iteration order and acceptance criteria of the reference generator tool.
package gen

import (
	"github.com/quadtag/apriltag/internal/bitcode"
	"github.com/quadtag/apriltag/internal/layout"
	"github.com/quadtag/apriltag/internal/neighbor"
	"github.com/quadtag/apriltag/internal/render"
)

// prime is the additive step of the lexicode search's linear scan order.
const prime = 982_451_653

// Progress reports search progress to an optional callback, for long runs
// over large nbits.
type Progress struct {
	Iteration uint64
	Total     uint64
	Accepted  int
}

// Generate runs the greedy lexicode search for a layout, accepting code
// words that clear the visual-complexity bound and whose Hamming distance
// to every previously accepted code (and all of its rotations), and to
// its own 90-degree rotations, is at least minHamming. progress may be nil.
func Generate(l *layout.Layout, minHamming, minComplexity int, progress func(Progress)) []uint64 {
	nbits := l.NBits
	var mask uint64
	if nbits >= 64 {
		mask = ^uint64(0)
	} else {
		mask = (uint64(1) << uint(nbits)) - 1
	}

	seed := int64(nbits)*10000 + int64(minHamming)*100 + int64(minComplexity)
	v0 := uint64(javaRandomNextLong(seed)) & mask

	total := uint64(1) << uint(nbits)
	var codelist []uint64
	idx := neighbor.New()

	v := v0
	for iter := uint64(0); iter < total; iter++ {
		v = (v + prime) & mask

		if !isComplexEnough(l, v) {
			continue
		}

		rv1 := bitcode.Rotate90(v, nbits)
		rv2 := bitcode.Rotate90(rv1, nbits)
		rv3 := bitcode.Rotate90(rv2, nbits)

		if !bitcode.HammingDistanceAtLeast(v, rv1, minHamming) ||
			!bitcode.HammingDistanceAtLeast(v, rv2, minHamming) ||
			!bitcode.HammingDistanceAtLeast(v, rv3, minHamming) ||
			!bitcode.HammingDistanceAtLeast(rv1, rv2, minHamming) ||
			!bitcode.HammingDistanceAtLeast(rv1, rv3, minHamming) ||
			!bitcode.HammingDistanceAtLeast(rv2, rv3, minHamming) {
			continue
		}

		if idx.AnyCloserThan(v, minHamming) {
			continue
		}

		codelist = append(codelist, v)
		idx.Insert(v)
		idx.Insert(rv1)
		idx.Insert(rv2)
		idx.Insert(rv3)

		if progress != nil {
			progress(Progress{Iteration: iter, Total: total, Accepted: len(codelist)})
		}
	}

	return codelist
}

// isComplexEnough renders code and requires its 4-connected black/white
// transition count (Ising energy) to be at least a third of the maximum
// possible energy for its non-transparent area.
func isComplexEnough(l *layout.Layout, code uint64) bool {
	tag := render.Render(l, code)
	size := tag.GridSize

	energy := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size-1; x++ {
			if isBWTransition(tag.Pixel(x, y), tag.Pixel(x+1, y)) {
				energy++
			}
		}
	}
	for x := 0; x < size; x++ {
		for y := 0; y < size-1; y++ {
			if isBWTransition(tag.Pixel(x, y), tag.Pixel(x, y+1)) {
				energy++
			}
		}
	}

	area := 0
	for _, p := range tag.Pixels {
		if p == render.Black || p == render.White {
			area++
		}
	}

	return 3*energy >= 2*area
}

func isBWTransition(a, b render.Pixel) bool {
	return (a == render.Black && b == render.White) || (a == render.White && b == render.Black)
}

// javaRandomNextLong reproduces java.util.Random(seed).nextLong(): a 48-bit
// LCG with state = state*0x5DEECE66D + 0xB, combining two 32-bit draws.
func javaRandomNextLong(seed int64) int64 {
	state := uint64(seed^0x5DEECE66D) & ((1 << 48) - 1)

	state = (state*0x5DEECE66D + 0xB) & ((1 << 48) - 1)
	hi := int32(state >> 16)

	state = (state*0x5DEECE66D + 0xB) & ((1 << 48) - 1)
	lo := int32(state >> 16)

	return (int64(hi) << 32) + int64(lo)
}
