// Package homography computes and applies the planar homography between
// tag-space and pixel-space, used both to decode sampled bits and as the
// starting point for pose estimation.
package homography

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 projective transform from tag-space to pixel-space.
type Homography struct {
	Data [3][3]float64
}

var tagPts = [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

// FromQuadCorners computes the homography mapping the canonical tag-space
// square ((-1,-1)..(1,1), corners in the same winding as Corners) onto the
// four pixel-space corners, via an 8x9 direct linear transform solved by
// Gaussian elimination with partial pivoting.
func FromQuadCorners(corners [4][2]float64) (Homography, bool) {
	a := mat.NewDense(8, 9, nil)
	for i := 0; i < 4; i++ {
		tx, ty := tagPts[i][0], tagPts[i][1]
		px, py := corners[i][0], corners[i][1]

		row0 := i * 2
		a.Set(row0, 0, tx)
		a.Set(row0, 1, ty)
		a.Set(row0, 2, 1.0)
		a.Set(row0, 6, -tx*px)
		a.Set(row0, 7, -ty*px)
		a.Set(row0, 8, px)

		row1 := i*2 + 1
		a.Set(row1, 3, tx)
		a.Set(row1, 4, ty)
		a.Set(row1, 5, 1.0)
		a.Set(row1, 6, -tx*py)
		a.Set(row1, 7, -ty*py)
		a.Set(row1, 8, py)
	}

	for col := 0; col < 8; col++ {
		maxVal := math.Abs(a.At(col, col))
		maxRow := col
		for row := col + 1; row < 8; row++ {
			v := math.Abs(a.At(row, col))
			if v > maxVal {
				maxVal = v
				maxRow = row
			}
		}
		if maxVal < 1e-10 {
			return Homography{}, false
		}

		if maxRow != col {
			swapRows(a, col, maxRow)
		}

		pivot := a.At(col, col)
		for row := col + 1; row < 8; row++ {
			factor := a.At(row, col) / pivot
			for c := col; c < 9; c++ {
				a.Set(row, c, a.At(row, c)-factor*a.At(col, c))
			}
		}
	}

	var h [9]float64
	h[8] = 1.0
	for row := 7; row >= 0; row-- {
		sum := a.At(row, 8)
		for c := row + 1; c < 8; c++ {
			sum -= a.At(row, c) * h[c]
		}
		h[row] = sum / a.At(row, row)
	}

	return Homography{Data: [3][3]float64{
		{h[0], h[1], h[2]},
		{h[3], h[4], h[5]},
		{h[6], h[7], h[8]},
	}}, true
}

func swapRows(m *mat.Dense, i, j int) {
	r, c := m.Dims()
	_ = r
	ri := mat.Row(nil, i, m)
	rj := mat.Row(nil, j, m)
	for k := 0; k < c; k++ {
		m.Set(i, k, rj[k])
		m.Set(j, k, ri[k])
	}
}

// Project maps a tag-space point to pixel-space.
func (h Homography) Project(x, y float64) (float64, float64) {
	d := &h.Data
	xx := d[0][0]*x + d[0][1]*y + d[0][2]
	yy := d[1][0]*x + d[1][1]*y + d[1][2]
	zz := d[2][0]*x + d[2][1]*y + d[2][2]
	return xx / zz, yy / zz
}

// Inverse computes the inverse homography via the classical adjugate
// formula, returning false for a (numerically) singular matrix.
func (h Homography) Inverse() (Homography, bool) {
	m := &h.Data
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])

	if math.Abs(det) < 1e-10 {
		return Homography{}, false
	}

	invDet := 1.0 / det
	var inv [3][3]float64

	inv[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) * invDet
	inv[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) * invDet
	inv[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) * invDet
	inv[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) * invDet
	inv[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) * invDet
	inv[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) * invDet
	inv[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) * invDet
	inv[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) * invDet
	inv[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) * invDet

	return Homography{Data: inv}, true
}
