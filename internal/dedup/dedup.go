// Package dedup removes duplicate detections of the same tag that arise
// when a tag's border is detected as more than one quad, keeping the
// higher-confidence detection under a deterministic tie-break.
package dedup

import "math"

// Detection is a single decoded, pose-ready tag detection.
type Detection struct {
	FamilyName     string
	ID             int
	Hamming        int
	DecisionMargin float32
	Corners        [4][2]float64
	Center         [2]float64
}

// Deduplicate removes detections that share a family and ID and whose quad
// polygons overlap, keeping the better of each overlapping pair. It
// mutates and truncates detections in place.
func Deduplicate(detections []Detection) []Detection {
	i := 0
	for i < len(detections) {
		j := i + 1
		for j < len(detections) {
			if detections[i].FamilyName == detections[j].FamilyName &&
				detections[i].ID == detections[j].ID &&
				polygonsOverlap(detections[i].Corners, detections[j].Corners) {

				if isBetter(detections[j], detections[i]) {
					detections[i], detections[j] = detections[j], detections[i]
				}
				last := len(detections) - 1
				detections[j] = detections[last]
				detections = detections[:last]
				continue
			}
			j++
		}
		i++
	}
	return detections
}

// isBetter reports whether a is a better detection than b: lower Hamming
// distance wins, then higher decision margin, then a deterministic
// lexicographic comparison of corners as a last-resort tiebreaker.
func isBetter(a, b Detection) bool {
	if a.Hamming != b.Hamming {
		return a.Hamming < b.Hamming
	}
	if math.Abs(float64(a.DecisionMargin-b.DecisionMargin)) > 1e-6 {
		return a.DecisionMargin > b.DecisionMargin
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(a.Corners[i][j]-b.Corners[i][j]) > 1e-10 {
				return a.Corners[i][j] < b.Corners[i][j]
			}
		}
	}
	return false
}

// polygonsOverlap tests two convex quadrilaterals for overlap via the
// separating axis theorem over all 8 candidate edge normals.
func polygonsOverlap(p, q [4][2]float64) bool {
	for _, poly := range [2][4][2]float64{p, q} {
		for i := 0; i < 4; i++ {
			j := (i + 1) % 4
			edgeX := poly[j][0] - poly[i][0]
			edgeY := poly[j][1] - poly[i][1]

			nx := -edgeY
			ny := edgeX

			pMin, pMax := projectPolygon(p, nx, ny)
			qMin, qMax := projectPolygon(q, nx, ny)

			if pMax < qMin || qMax < pMin {
				return false
			}
		}
	}
	return true
}

func projectPolygon(poly [4][2]float64, nx, ny float64) (float64, float64) {
	min := math.MaxFloat64
	max := -math.MaxFloat64
	for _, pt := range poly {
		d := pt[0]*nx + pt[1]*ny
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}
