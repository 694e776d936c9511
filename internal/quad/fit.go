package quad

import (
	"math"
	"sort"

	"github.com/quadtag/apriltag/internal/cluster"
)

// lineFitPt holds cumulative weighted moments up to and including one
// point, enabling O(1) moment lookup over any contiguous (possibly
// wrapping) range of the angularly sorted point list.
type lineFitPt struct {
	mx, my, mxx, mxy, myy, w float64
}

// fittedLine is a line through point (px, py) with unit normal (nx, ny).
type fittedLine struct {
	px, py, nx, ny float64
}

// FitQuads fits a quad to each cluster independently and returns the
// successful results, filtering out clusters that do not converge to a
// valid quadrilateral. Clusters are processed in order; callers that want
// the two opt-in parallel stages described for the detector pipeline should
// call FitQuad per cluster from their own worker pool instead.
func FitQuads(clusters []cluster.Cluster, imageWidth, imageHeight int, params ThreshParams, normalBorder, reversedBorder bool) []Quad {
	maxPerimeter := 2 * (imageWidth + imageHeight)
	var out []Quad
	for i := range clusters {
		if q, ok := FitQuad(&clusters[i], params, maxPerimeter, normalBorder, reversedBorder); ok {
			out = append(out, q)
		}
	}
	return out
}

// FitQuad attempts to fit a single quad from one cluster of edge points.
func FitQuad(c *cluster.Cluster, params ThreshParams, maxPerimeter int, normalBorder, reversedBorder bool) (Quad, bool) {
	sz := len(c.Points)

	if sz < params.MinClusterPixels || sz < 24 {
		return Quad{}, false
	}
	if sz > maxPerimeter {
		return Quad{}, false
	}

	isReversed, dot := checkBorderDirection(c.Points)
	if math.Abs(dot) < 1e-300 {
		return Quad{}, false
	}
	if isReversed && !reversedBorder {
		return Quad{}, false
	}
	if !isReversed && !normalBorder {
		return Quad{}, false
	}

	sortByAngle(c.Points)

	lfps := buildLineFitPts(c.Points)

	cornersIdx, ok := findCorners(c.Points, lfps, params)
	if !ok {
		return Quad{}, false
	}

	corners, ok := computeQuadCorners(lfps, cornersIdx)
	if !ok {
		return Quad{}, false
	}

	if !validateQuad(corners) {
		return Quad{}, false
	}

	return Quad{Corners: corners, ReversedBorder: isReversed}, true
}

// checkBorderDirection computes the sum, over every edge point, of its
// position relative to the cluster centroid dotted with its gradient
// direction: negative indicates a reversed border (white inside the edge,
// black outside).
func checkBorderDirection(points []cluster.Pt) (bool, float64) {
	n := float64(len(points))
	var sx, sy float64
	for _, p := range points {
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	cx, cy := sx/n, sy/n

	var dot float64
	for _, p := range points {
		dx := float64(p.X) - cx
		dy := float64(p.Y) - cy
		dot += dx*float64(p.Gx) + dy*float64(p.Gy)
	}
	return dot < 0, dot
}

// sortByAngle orders points by a monotonic angle proxy around the center of
// their bounding box, nudged by a small fixed jitter, avoiding ties on axis-aligned synthetic
// test clusters.
func sortByAngle(points []cluster.Pt) {
	if len(points) == 0 {
		return
	}
	xmin, xmax := points[0].X, points[0].X
	ymin, ymax := points[0].Y, points[0].Y
	for _, p := range points {
		if p.X < xmin {
			xmin = p.X
		}
		if p.X > xmax {
			xmax = p.X
		}
		if p.Y < ymin {
			ymin = p.Y
		}
		if p.Y > ymax {
			ymax = p.Y
		}
	}

	cx := (float64(xmin)+float64(xmax))/2.0 + 0.05118
	cy := (float64(ymin)+float64(ymax))/2.0 - 0.028581

	for i := range points {
		dx := float64(points[i].X) - cx
		dy := float64(points[i].Y) - cy
		points[i].Slope = slopeProxy(dx, dy)
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Slope < points[j].Slope
	})
}

// slopeProxy maps an angle to a monotonic value in [0, 4] without trig,
// using the ratio of absolute coordinates within each quadrant.
func slopeProxy(dx, dy float64) float32 {
	adx, ady := math.Abs(dx), math.Abs(dy)

	switch {
	case dy > 0 && dx > 0:
		return float32(ady / (ady + adx))
	case dy > 0:
		return float32(1.0 + adx/(ady+adx))
	case dx < 0:
		return float32(2.0 + ady/(ady+adx))
	default:
		return float32(3.0 + adx/(ady+adx))
	}
}

func buildLineFitPts(points []cluster.Pt) []lineFitPt {
	lfps := make([]lineFitPt, len(points))
	var cum lineFitPt
	for i, p := range points {
		x := float64(p.X) / 2.0
		y := float64(p.Y) / 2.0
		w := math.Sqrt(float64(p.Gx)*float64(p.Gx)+float64(p.Gy)*float64(p.Gy)) + 1.0

		cum.mx += w * x
		cum.my += w * y
		cum.mxx += w * x * x
		cum.mxy += w * x * y
		cum.myy += w * y * y
		cum.w += w

		lfps[i] = cum
	}
	return lfps
}

// rangeMoments returns the cumulative moments over the inclusive,
// possibly-wrapping range [i0, i1] of an angularly sorted point list.
func rangeMoments(lfps []lineFitPt, i0, i1 int) lineFitPt {
	sz := len(lfps)
	last := lfps[sz-1]

	if i0 <= i1 {
		end := lfps[i1]
		if i0 == 0 {
			return end
		}
		start := lfps[i0-1]
		return lineFitPt{
			mx:  end.mx - start.mx,
			my:  end.my - start.my,
			mxx: end.mxx - start.mxx,
			mxy: end.mxy - start.mxy,
			myy: end.myy - start.myy,
			w:   end.w - start.w,
		}
	}

	var tail lineFitPt
	if i0 == 0 {
		tail = last
	} else {
		start := lfps[i0-1]
		tail = lineFitPt{
			mx:  last.mx - start.mx,
			my:  last.my - start.my,
			mxx: last.mxx - start.mxx,
			mxy: last.mxy - start.mxy,
			myy: last.myy - start.myy,
			w:   last.w - start.w,
		}
	}
	head := lfps[i1]
	return lineFitPt{
		mx:  tail.mx + head.mx,
		my:  tail.my + head.my,
		mxx: tail.mxx + head.mxx,
		mxy: tail.mxy + head.mxy,
		myy: tail.myy + head.myy,
		w:   tail.w + head.w,
	}
}

// fitLine fits a line through weighted moments via the 2x2 scatter matrix's
// eigen-decomposition, returning the line (oriented along the larger
// eigenvalue's direction, normal along the smaller) and its MSE.
func fitLine(m lineFitPt) (fittedLine, float64, bool) {
	if m.w < 1e-10 {
		return fittedLine{}, 0, false
	}

	ex := m.mx / m.w
	ey := m.my / m.w
	cxx := m.mxx/m.w - ex*ex
	cxy := m.mxy/m.w - ex*ey
	cyy := m.myy/m.w - ey*ey

	disc := math.Sqrt((cxx-cyy)*(cxx-cyy) + 4.0*cxy*cxy)
	eigSmall := 0.5 * (cxx + cyy - disc)
	eigLarge := 0.5 * (cxx + cyy + disc)

	if eigLarge < 1e-10 {
		return fittedLine{}, 0, false
	}

	nx0 := cxy
	ny0 := eigSmall - cxx
	len0 := math.Sqrt(nx0*nx0 + ny0*ny0)

	var nx, ny float64
	if len0 > 1e-10 {
		nx, ny = nx0, ny0
	} else if cxx > cyy {
		nx, ny = 0.0, 1.0
	} else {
		nx, ny = 1.0, 0.0
	}
	length := math.Sqrt(nx*nx + ny*ny)

	mse := eigSmall
	if mse < 0 {
		mse = 0
	}

	return fittedLine{px: ex, py: ey, nx: nx / length, ny: ny / length}, mse, true
}

// findCorners locates 4 indices into the angularly sorted point list that
// best partition it into quad edge segments, via smoothed line-fit-error
// local maxima followed by an exhaustive search over their combinations.
func findCorners(points []cluster.Pt, lfps []lineFitPt, params ThreshParams) ([4]int, bool) {
	sz := len(points)
	ksz := min(20, max(1, sz/12))

	errors := make([]float64, sz)
	for i := 0; i < sz; i++ {
		i0 := (i + sz - ksz) % sz
		i1 := (i + ksz) % sz
		moments := rangeMoments(lfps, i0, i1)
		_, mse, ok := fitLine(moments)
		if ok {
			errors[i] = mse
		}
	}

	smoothErrors(errors)

	type maxEntry struct {
		idx int
		err float64
	}
	var maxima []maxEntry
	for i := 0; i < sz; i++ {
		prev := errors[(i+sz-1)%sz]
		next := errors[(i+1)%sz]
		if errors[i] >= prev && errors[i] > next {
			maxima = append(maxima, maxEntry{i, errors[i]})
		}
	}

	if len(maxima) < 4 {
		return [4]int{}, false
	}

	if len(maxima) > params.MaxNMaxima {
		sort.Slice(maxima, func(i, j int) bool { return maxima[i].err > maxima[j].err })
		maxima = maxima[:params.MaxNMaxima]
		sort.Slice(maxima, func(i, j int) bool { return maxima[i].idx < maxima[j].idx })
	}

	nm := len(maxima)
	bestErr := math.MaxFloat64
	var best [4]int
	found := false

	for m0 := 0; m0 < nm; m0++ {
		for m1 := m0 + 1; m1 < nm; m1++ {
			for m2 := m1 + 1; m2 < nm; m2++ {
				for m3 := m2 + 1; m3 < nm; m3++ {
					indices := [4]int{maxima[m0].idx, maxima[m1].idx, maxima[m2].idx, maxima[m3].idx}
					if err, ok := evaluateQuadCombination(lfps, indices, params); ok && err < bestErr {
						bestErr = err
						best = indices
						found = true
					}
				}
			}
		}
	}

	return best, found
}

func evaluateQuadCombination(lfps []lineFitPt, indices [4]int, params ThreshParams) (float64, bool) {
	totalErr := 0.0
	var prevLine fittedLine
	havePrev := false

	for seg := 0; seg < 4; seg++ {
		i0 := indices[seg]
		i1 := indices[(seg+1)%4]
		moments := rangeMoments(lfps, i0, i1)
		line, mse, ok := fitLine(moments)
		if !ok {
			return 0, false
		}
		if mse > params.MaxLineFitMSE {
			return 0, false
		}

		if havePrev {
			dot := math.Abs(prevLine.nx*line.nx + prevLine.ny*line.ny)
			if dot > params.CosCriticalRad {
				return 0, false
			}
		}

		totalErr += mse
		prevLine = line
		havePrev = true
	}

	firstMoments := rangeMoments(lfps, indices[0], indices[1])
	firstLine, _, ok := fitLine(firstMoments)
	if !ok {
		return 0, false
	}
	dot := math.Abs(prevLine.nx*firstLine.nx + prevLine.ny*firstLine.ny)
	if dot > params.CosCriticalRad {
		return 0, false
	}

	return totalErr, true
}

// smoothErrors applies a fixed 3-tap [0.1665, 0.667, 0.1665] low-pass
// filter, wrapping at the ends.
func smoothErrors(errors []float64) {
	sz := len(errors)
	if sz < 3 {
		return
	}
	kernel := [3]float64{0.1665, 0.6670, 0.1665}
	orig := make([]float64, sz)
	copy(orig, errors)

	for i := 0; i < sz; i++ {
		prev := orig[(i+sz-1)%sz]
		curr := orig[i]
		next := orig[(i+1)%sz]
		errors[i] = kernel[0]*prev + kernel[1]*curr + kernel[2]*next
	}
}

func computeQuadCorners(lfps []lineFitPt, indices [4]int) ([4][2]float64, bool) {
	var lines [4]fittedLine
	for seg := 0; seg < 4; seg++ {
		i0 := indices[seg]
		i1 := indices[(seg+1)%4]
		moments := rangeMoments(lfps, i0, i1)
		line, _, ok := fitLine(moments)
		if !ok {
			return [4][2]float64{}, false
		}
		lines[seg] = line
	}

	var corners [4][2]float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		cx, cy, ok := intersectLines(lines[i], lines[j])
		if !ok {
			return [4][2]float64{}, false
		}
		corners[i] = [2]float64{cx, cy}
	}
	return corners, true
}

// intersectLines solves for the intersection of two fitted lines given as
// a point and a unit normal, using the lines' (perpendicular) directions.
func intersectLines(l0, l1 fittedLine) (float64, float64, bool) {
	a00 := l0.ny
	a01 := -l1.ny
	a10 := -l0.nx
	a11 := l1.nx

	b0 := l1.px - l0.px
	b1 := l1.py - l0.py

	det := a00*a11 - a10*a01
	if math.Abs(det) < 0.001 {
		return 0, 0, false
	}

	lambda := (a11*b0 - a01*b1) / det
	cx := l0.px + lambda*a00
	cy := l0.py + lambda*a10
	return cx, cy, true
}

// validateQuad requires a positive-area (counter-clockwise) winding and
// convexity at every corner.
func validateQuad(corners [4][2]float64) bool {
	if quadArea(corners) <= 0 {
		return false
	}
	for i := 0; i < 4; i++ {
		p0 := corners[i]
		p1 := corners[(i+1)%4]
		p2 := corners[(i+2)%4]
		cross := (p1[0]-p0[0])*(p2[1]-p1[1]) - (p1[1]-p0[1])*(p2[0]-p1[0])
		if cross < 0 {
			return false
		}
	}
	return true
}

func quadArea(corners [4][2]float64) float64 {
	area := 0.0
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		area += corners[i][0] * corners[j][1]
		area -= corners[j][0] * corners[i][1]
	}
	return area / 2.0
}
