// Package cluster builds connected components over a ternary-thresholded
// image and extracts gradient boundary points between adjacent black/white
// components, grouped into per-edge clusters for quad fitting.
package cluster

import (
	"github.com/quadtag/apriltag/internal/imagebuf"
	"github.com/quadtag/apriltag/internal/unionfind"
)

// ConnectedComponents unions same-valued adjacent pixels of a ternary
// thresholded image (0, 255, or 127 "unknown" which never connects).
// Diagonal connectivity is asymmetric: only white (255) pixels connect
// diagonally, and only under guard conditions that avoid redundant unions
// already implied by straight-line connectivity.
func ConnectedComponents(threshed *imagebuf.Image) *unionfind.UnionFind {
	w, h := threshed.Width, threshed.Height
	uf := unionfind.New(w * h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := threshed.Get(x, y)
			if v == 127 {
				continue
			}

			id := uint32(y*w + x)

			if x > 0 && threshed.Get(x-1, y) == v {
				uf.Union(id, id-1)
			}

			if y > 0 {
				up := threshed.Get(x, y-1)
				left := byte(127)
				upperLeft := byte(127)
				if x > 0 {
					left = threshed.Get(x-1, y)
					upperLeft = threshed.Get(x-1, y-1)
				}
				if up == v && !(left == v && upperLeft == v) {
					uf.Union(id, id-uint32(w))
				}
			}

			if v == 255 && x > 0 && y > 0 {
				ul := threshed.Get(x-1, y-1)
				left := threshed.Get(x-1, y)
				up := threshed.Get(x, y-1)
				if ul == v && left != v && up != v {
					uf.Union(id, id-uint32(w)-1)
				}
			}

			if v == 255 && x+1 < w && y > 0 {
				ur := threshed.Get(x+1, y-1)
				up := threshed.Get(x, y-1)
				if ur == v && up != v {
					uf.Union(id, uint32((y-1)*w+(x+1)))
				}
			}
		}
	}

	return uf
}
