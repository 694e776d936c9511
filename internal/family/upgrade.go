package family

import "github.com/quadtag/apriltag/internal/bitcode"

// UpgradeCode remaps a legacy row-major-ordered classic-family code word
// into the quadrant-scan bit order described by locs. Classic-era families
// (Tag16h5, Tag25h9, Tag36h11) were generated with row-major bit ordering;
// this reproduces that one-time remap at family-construction time.
func UpgradeCode(oldCode uint64, locs []bitcode.Location, dataSize int) uint64 {
	var code uint64
	for _, loc := range locs {
		code <<= 1
		bitIdx := (dataSize - loc.X) + (dataSize-loc.Y)*dataSize
		if oldCode&(uint64(1)<<uint(bitIdx)) != 0 {
			code |= 1
		}
	}
	return code
}

// UpgradeCodes applies UpgradeCode to every entry of oldCodes.
func UpgradeCodes(oldCodes []uint64, locs []bitcode.Location, dataSize int) []uint64 {
	out := make([]uint64, len(oldCodes))
	for i, c := range oldCodes {
		out[i] = UpgradeCode(c, locs, dataSize)
	}
	return out
}
