// Package refine improves an initial quad fit by snapping each edge to the
// strongest nearby gradient in the (undecimated) source image, sampling
// perpendicular to the edge at points along its length and re-fitting.
package refine

import (
	"math"

	"github.com/quadtag/apriltag/internal/imagebuf"
	"github.com/quadtag/apriltag/internal/quad"
)

type refinedLine struct {
	px, py, nx, ny float64
}

// RefineEdges mutates quad's corners in place, snapping each edge to the
// image's strongest local gradient. quadDecimate is the detector's
// decimation factor, which sets how far the search extends perpendicular
// to each edge (wider for more heavily decimated images).
func RefineEdges(q *quad.Quad, img *imagebuf.Image, quadDecimate float64) {
	rng := quadDecimate + 1.0

	var lines [4]refinedLine

	for edge := 0; edge < 4; edge++ {
		a := q.Corners[edge]
		b := q.Corners[(edge+1)%4]

		dx := b[0] - a[0]
		dy := b[1] - a[1]
		edgeLen := math.Sqrt(dx*dx + dy*dy)

		nx := dy / edgeLen
		ny := -dx / edgeLen

		if q.ReversedBorder {
			nx = -nx
			ny = -ny
		}

		nsamples := 16
		if alt := int(edgeLen / 8.0); alt > nsamples {
			nsamples = alt
		}

		var mx, my, mxx, mxy, myy, nTotal float64

		for s := 0; s < nsamples; s++ {
			alpha := (1.0 + float64(s)) / (float64(nsamples) + 1.0)
			x0 := alpha*b[0] + (1.0-alpha)*a[0]
			y0 := alpha*b[1] + (1.0-alpha)*a[1]

			var mn, mcount float64
			steps := int(2.0 * rng * 4.0)
			for step := 0; step <= steps; step++ {
				n := -rng + float64(step)*0.25

				gx := x0 + n*nx
				gy := y0 + n*ny

				g1 := img.Interpolate(gx+nx, gy+ny)
				g2 := img.Interpolate(gx-nx, gy-ny)

				if g1 < g2 {
					continue
				}

				weight := (g2 - g1) * (g2 - g1)
				mn += weight * n
				mcount += weight
			}

			if mcount < 1e-10 {
				continue
			}

			n0 := mn / mcount
			bestx := x0 + n0*nx
			besty := y0 + n0*ny

			mx += bestx
			my += besty
			mxx += bestx * bestx
			mxy += bestx * besty
			myy += besty * besty
			nTotal++
		}

		if nTotal < 2.0 {
			cx := (a[0] + b[0]) / 2.0
			cy := (a[1] + b[1]) / 2.0
			lines[edge] = refinedLine{px: cx, py: cy, nx: nx, ny: ny}
			continue
		}

		ex := mx / nTotal
		ey := my / nTotal
		cxx := mxx/nTotal - ex*ex
		cxy := mxy/nTotal - ex*ey
		cyy := myy/nTotal - ey*ey

		theta := 0.5 * math.Atan2(-2.0*cxy, cyy-cxx)
		lines[edge] = refinedLine{px: ex, py: ey, nx: math.Cos(theta), ny: math.Sin(theta)}
	}

	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		if cx, cy, ok := intersectLinesRaw(lines[i], lines[j]); ok {
			q.Corners[i] = [2]float64{cx, cy}
		}
	}
}

func intersectLinesRaw(l0, l1 refinedLine) (float64, float64, bool) {
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
