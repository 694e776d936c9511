// Package decode samples a quad's interior against its homography to
// recover a bit code, using gray-level border models to set an adaptive
// per-pixel threshold, and resolves the sampled code against a family's
// quick-decode table.
package decode

import (
	"math"

	"github.com/quadtag/apriltag/internal/family"
	"github.com/quadtag/apriltag/internal/homography"
	"github.com/quadtag/apriltag/internal/imagebuf"
	"github.com/quadtag/apriltag/internal/quickdecode"
)

// Result is a successful tag decode.
type Result struct {
	FamilyName     string
	ID             int
	Hamming        int
	DecisionMargin float32
	Rotation       int
}

// grayModel is a spatially-varying intensity model fit by least squares:
// intensity(x, y) = c[0]*x + c[1]*y + c[2].
type grayModel struct {
	a [3][3]float64
	b [3]float64
	c [3]float64
}

func (g *grayModel) add(x, y, gray float64) {
	g.a[0][0] += x * x
	g.a[0][1] += x * y
	g.a[0][2] += x
	g.a[1][1] += y * y
	g.a[1][2] += y
	g.a[2][2] += 1.0
	g.b[0] += x * gray
	g.b[1] += y * gray
	g.b[2] += gray
}

func (g *grayModel) solve() {
	g.a[1][0] = g.a[0][1]
	g.a[2][0] = g.a[0][2]
	g.a[2][1] = g.a[1][2]

	var aug [3][4]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			aug[i][j] = g.a[i][j]
		}
		aug[i][3] = g.b[i]
	}

	for col := 0; col < 3; col++ {
		maxVal := math.Abs(aug[col][col])
		maxRow := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(aug[row][col]) > maxVal {
				maxVal = math.Abs(aug[row][col])
				maxRow = row
			}
		}
		if maxVal < 1e-20 {
			return
		}
		if maxRow != col {
			aug[col], aug[maxRow] = aug[maxRow], aug[col]
		}
		pivot := aug[col][col]
		for row := col + 1; row < 3; row++ {
			factor := aug[row][col] / pivot
			for c := col; c < 4; c++ {
				aug[row][c] -= factor * aug[col][c]
			}
		}
	}

	for row := 2; row >= 0; row-- {
		sum := aug[row][3]
		for c := row + 1; c < 3; c++ {
			sum -= aug[row][c] * g.c[c]
		}
		if math.Abs(aug[row][row]) > 1e-20 {
			g.c[row] = sum / aug[row][row]
		}
	}
}

func (g *grayModel) interpolate(x, y float64) float64 {
	return g.c[0]*x + g.c[1]*y + g.c[2]
}

type borderPattern struct {
	sx, sy, dx, dy float64
	isWhite        bool
}

// DecodeQuad samples img against h for the given family's border and data
// cells, builds a gray-level model of white and black to threshold against,
// checks border polarity, extracts a bit code (optionally Laplacian-
// sharpened), and resolves it via qd.
func DecodeQuad(img *imagebuf.Image, f *family.TagFamily, qd *quickdecode.QuickDecode, h homography.Homography, reversedBorder bool, decodeSharpening float64) (Result, bool) {
	w := float64(f.Layout.BorderWidth)
	totalWidth := f.Layout.GridSize

	var whiteModel, blackModel grayModel

	patterns := [8]borderPattern{
		{-0.5, 0.5, 0.0, 1.0, true},
		{0.5, 0.5, 0.0, 1.0, false},
		{w + 0.5, 0.5, 0.0, 1.0, true},
		{w - 0.5, 0.5, 0.0, 1.0, false},
		{0.5, -0.5, 1.0, 0.0, true},
		{0.5, 0.5, 1.0, 0.0, false},
		{0.5, w + 0.5, 1.0, 0.0, true},
		{0.5, w - 0.5, 1.0, 0.0, false},
	}

	for _, pat := range patterns {
		n := int(w)
		for step := 0; step < n; step++ {
			bx := pat.sx + pat.dx*float64(step)
			by := pat.sy + pat.dy*float64(step)

			tagx := 2.0 * (bx/w - 0.5)
			tagy := 2.0 * (by/w - 0.5)

			px, py := h.Project(tagx, tagy)

			if px < 0.0 || py < 0.0 || px >= float64(img.Width)-1.0 || py >= float64(img.Height)-1.0 {
				continue
			}

			gray := img.Interpolate(px, py)

			if pat.isWhite {
				whiteModel.add(tagx, tagy, gray)
			} else {
				blackModel.add(tagx, tagy, gray)
			}
		}
	}

	whiteModel.solve()
	blackModel.solve()

	whiteAtCenter := whiteModel.interpolate(0.0, 0.0)
	blackAtCenter := blackModel.interpolate(0.0, 0.0)

	if !reversedBorder && whiteAtCenter <= blackAtCenter {
		return Result{}, false
	}
	if reversedBorder && whiteAtCenter >= blackAtCenter {
		return Result{}, false
	}

	nbits := f.Layout.NBits
	bitLocs := f.BitLocations

	values := make([][]float64, totalWidth)
	for i := range values {
		values[i] = make([]float64, totalWidth)
	}

	for i := 0; i < nbits; i++ {
		bx := float64(bitLocs[i].X) + 0.5
		by := float64(bitLocs[i].Y) + 0.5

		tagx := 2.0 * (bx/w - 0.5)
		tagy := 2.0 * (by/w - 0.5)

		px, py := h.Project(tagx, tagy)
		pixelVal := img.Interpolate(px, py)
		thresh := (blackModel.interpolate(tagx, tagy) + whiteModel.interpolate(tagx, tagy)) / 2.0

		gx := bitLocs[i].X + f.Layout.BorderStart
		gy := bitLocs[i].Y + f.Layout.BorderStart
		if gx < totalWidth && gy < totalWidth {
			values[gy][gx] = pixelVal - thresh
		}
	}

	if decodeSharpening > 0.0 && totalWidth >= 3 {
		orig := make([][]float64, totalWidth)
		for i := range orig {
			orig[i] = append([]float64(nil), values[i]...)
		}
		for i := 0; i < nbits; i++ {
			gx := bitLocs[i].X + f.Layout.BorderStart
			gy := bitLocs[i].Y + f.Layout.BorderStart
			if gx >= 1 && gx+1 < totalWidth && gy >= 1 && gy+1 < totalWidth {
				laplacian := 4.0*orig[gy][gx] - orig[gy-1][gx] - orig[gy+1][gx] - orig[gy][gx-1] - orig[gy][gx+1]
				values[gy][gx] += decodeSharpening * laplacian
			}
		}
	}

	var rcode uint64
	var whiteScore, blackScore float64
	whiteCount, blackCount := 1.0, 1.0

	for i := 0; i < nbits; i++ {
		rcode <<= 1
		gx := bitLocs[i].X + f.Layout.BorderStart
		gy := bitLocs[i].Y + f.Layout.BorderStart
		v := 0.0
		if gx < totalWidth && gy < totalWidth {
			v = values[gy][gx]
		}

		if v > 0.0 {
			rcode |= 1
			whiteScore += v
			whiteCount++
		} else {
			blackScore -= v
			blackCount++
		}
	}

	decisionMargin := float32(math.Min(whiteScore/whiteCount, blackScore/blackCount))
	if decisionMargin < 0.0 {
		return Result{}, false
	}

	match, ok := qd.Decode(f, rcode)
	if !ok {
		return Result{}, false
	}

	return Result{
		FamilyName:     f.Config.Name,
		ID:             match.ID,
		Hamming:        match.Hamming,
		DecisionMargin: decisionMargin,
		Rotation:       match.Rotation,
	}, true
}
