package cluster

import (
	"sort"

	"github.com/quadtag/apriltag/internal/imagebuf"
	"github.com/quadtag/apriltag/internal/unionfind"
)

// minComponentSize is the minimum connected-component size (in pixels) for
// a pixel to be eligible as an edge-point source.
const minComponentSize = 25

// Pt is a boundary edge point between two opposite-colored components, in
// half-pixel fixed-point coordinates, carrying the local gradient direction.
type Pt struct {
	X, Y   uint16
	Gx, Gy int16
	Slope  float32
}

// Cluster is a set of edge points sharing the same pair of component
// representatives — a candidate quad edge.
type Cluster struct {
	Points []Pt
}

var neighborOffsets = [4][2]int{{1, 0}, {0, 1}, {-1, 1}, {1, 1}}

// GradientClusters extracts boundary points between adjacent opposite-color
// components (both at least minComponentSize pixels) and groups them by the
// ordered pair of component representatives, keeping only clusters with at
// least minClusterSize points. Clusters are returned sorted by descending
// size for deterministic downstream processing of the largest candidates
// first.
func GradientClusters(threshed *imagebuf.Image, uf *unionfind.UnionFind, minClusterSize int) []Cluster {
	w, h := threshed.Width, threshed.Height

	clusterMap := make(map[uint64][]Pt)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v0 := threshed.Get(x, y)
			if v0 == 127 {
				continue
			}

			id0 := uint32(y*w + x)
			if uf.SetSize(id0) < minComponentSize {
				continue
			}

			for _, off := range neighborOffsets {
				dx, dy := off[0], off[1]
				nx, ny := x+dx, y+dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}

				v1 := threshed.Get(nx, ny)
				if int(v0)+int(v1) != 255 {
					continue
				}

				id1 := uint32(ny*w + nx)
				if uf.SetSize(id1) < minComponentSize {
					continue
				}

				rep0, rep1 := uint64(uf.Find(id0)), uint64(uf.Find(id1))
				var key uint64
				if rep0 < rep1 {
					key = (rep0 << 32) | rep1
				} else {
					key = (rep1 << 32) | rep0
				}

				gx := int16(dx) * (int16(v1) - int16(v0))
				gy := int16(dy) * (int16(v1) - int16(v0))

				pt := Pt{
					X:  uint16(2*x + dx),
					Y:  uint16(2*y + dy),
					Gx: gx,
					Gy: gy,
				}
				clusterMap[key] = append(clusterMap[key], pt)
			}
		}
	}

	var clusters []Cluster
	for _, pts := range clusterMap {
		if len(pts) >= minClusterSize {
			clusters = append(clusters, Cluster{Points: pts})
		}
	}

	sort.Slice(clusters, func(i, j int) bool {
		return len(clusters[i].Points) > len(clusters[j].Points)
	})

	return clusters
}
