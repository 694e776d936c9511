// Package quickdecode builds and queries a bucketed lookup table that maps
// a sampled code word to an accepted family code within a bounded
// Hamming distance, trying all 4 rotations of the canonical quadrant-scan
// bit order.
package quickdecode

import (
	"math/bits"

	"github.com/quadtag/apriltag/internal/bitcode"
	"github.com/quadtag/apriltag/internal/family"
)

// QuickDecode is a 4-chunk bucket-sorted index over a family's code table.
type QuickDecode struct {
	nbits        uint32
	chunkMask    uint32
	shifts       [4]uint32
	chunkOffsets [4][]uint16
	chunkIDs     [4][]uint16
	maxHamming   uint32
}

// Result is a successful quick-decode match.
type Result struct {
	ID       int
	Hamming  int
	Rotation int
}

// New builds a quick-decode table from a family's accepted code list,
// accepting matches up to maxHamming bit errors.
func New(f *family.TagFamily, maxHamming uint32) *QuickDecode {
	nbits := uint32(f.Layout.NBits)
	chunkSize := (nbits + 3) / 4
	capacity := uint32(1) << chunkSize
	chunkMask := capacity - 1
	shifts := [4]uint32{0, chunkSize, 2 * chunkSize, 3 * chunkSize}
	ncodes := len(f.Codes)

	var chunkOffsets [4][]uint16
	var chunkIDs [4][]uint16
	for j := 0; j < 4; j++ {
		chunkOffsets[j] = make([]uint16, capacity+1)
		chunkIDs[j] = make([]uint16, ncodes)
	}

	for j := 0; j < 4; j++ {
		counts := make([]uint16, capacity)
		for _, code := range f.Codes {
			val := uint32(code>>shifts[j]) & chunkMask
			counts[val]++
		}

		chunkOffsets[j][0] = 0
		for v := uint32(0); v < capacity; v++ {
			chunkOffsets[j][v+1] = chunkOffsets[j][v] + counts[v]
		}

		pos := make([]uint16, capacity+1)
		copy(pos, chunkOffsets[j])
		for idx, code := range f.Codes {
			val := uint32(code>>shifts[j]) & chunkMask
			chunkIDs[j][pos[val]] = uint16(idx)
			pos[val]++
		}
	}

	return &QuickDecode{
		nbits:        nbits,
		chunkMask:    chunkMask,
		shifts:       shifts,
		chunkOffsets: chunkOffsets,
		chunkIDs:     chunkIDs,
		maxHamming:   maxHamming,
	}
}

// Decode searches all 4 rotations of rcode and returns the first accepted
// code within maxHamming encountered in rotation-then-chunk order, which is
// not necessarily the closest one.
func (qd *QuickDecode) Decode(f *family.TagFamily, rcode uint64) (Result, bool) {
	nbits := int(qd.nbits)

	for rotation := 0; rotation < 4; rotation++ {
		for j := 0; j < 4; j++ {
			val := uint32(rcode>>qd.shifts[j]) & qd.chunkMask
			start := qd.chunkOffsets[j][val]
			end := qd.chunkOffsets[j][val+1]

			for k := start; k < end; k++ {
				id := int(qd.chunkIDs[j][k])
				h := bits.OnesCount64(f.Codes[id] ^ rcode)
				if uint32(h) <= qd.maxHamming {
					return Result{ID: id, Hamming: h, Rotation: rotation}, true
				}
			}
		}

		rcode = bitcode.Rotate90(rcode, nbits)
	}

	return Result{}, false
}
