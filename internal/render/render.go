// Package render converts a layout and a code word into a pixel grid.
package render

import "github.com/quadtag/apriltag/internal/layout"

// Pixel is a rendered tag pixel value.
type Pixel int

const (
	Black Pixel = iota
	White
	Transparent
)

// Tag is a rendered N x N grid of pixels.
type Tag struct {
	GridSize int
	Pixels   []Pixel
}

// Pixel returns the value at (x, y).
func (t *Tag) Pixel(x, y int) Pixel { return t.Pixels[y*t.GridSize+x] }

// ToRGBA converts the rendered tag to 4-bytes-per-pixel RGBA data.
// Black = (0,0,0,255), White = (255,255,255,255), Transparent = (0,0,0,0).
func (t *Tag) ToRGBA() []byte {
	out := make([]byte, 0, len(t.Pixels)*4)
	for _, p := range t.Pixels {
		switch p {
		case Black:
			out = append(out, 0, 0, 0, 255)
		case White:
			out = append(out, 255, 255, 255, 255)
		default:
			out = append(out, 0, 0, 0, 0)
		}
	}
	return out
}

// Render renders a code word into a pixel grid using the quadrant-scan
// procedure: four passes each rotate the working grid 90 degrees and fill
// the top strip y in [0, size/2], x in [y, size-1-y) consuming the code
// MSB-first for Data cells; an odd grid's center cell is filled last; a
// final rotation restores the original orientation.
func Render(l *layout.Layout, code uint64) *Tag {
	size := l.GridSize
	im := newGrid(size)

	for pass := 0; pass < 4; pass++ {
		im = rotate90Image(im, size)
		top := size / 2
		for y := 0; y <= top; y++ {
			xEnd := size - 1 - y
			for x := y; x < xEnd; x++ {
				im[y][x] = resolveCell(l, x, y, &code)
			}
		}
	}

	if size%2 == 1 {
		mid := size / 2
		im[mid][mid] = resolveCenterCell(l, mid, mid, code)
	}

	im = rotate90Image(im, size)

	pixels := make([]Pixel, 0, size*size)
	for y := 0; y < size; y++ {
		pixels = append(pixels, im[y]...)
	}
	return &Tag{GridSize: size, Pixels: pixels}
}

func resolveCell(l *layout.Layout, x, y int, code *uint64) Pixel {
	switch l.Cell(x, y) {
	case layout.CellData:
		bit := (*code >> uint(l.NBits-1)) & 1
		*code <<= 1
		if bit != 0 {
			return White
		}
		return Black
	case layout.CellBlack:
		return Black
	case layout.CellWhite:
		return White
	default:
		return Transparent
	}
}

// resolveCenterCell handles the odd-size grid's lone center cell. Unlike
// resolveCell it does not shift code afterward: the center cell is always
// the last one consumed during a render.
func resolveCenterCell(l *layout.Layout, x, y int, code uint64) Pixel {
	switch l.Cell(x, y) {
	case layout.CellData:
		bit := (code >> uint(l.NBits-1)) & 1
		if bit != 0 {
			return White
		}
		return Black
	case layout.CellBlack:
		return Black
	case layout.CellWhite:
		return White
	default:
		return Transparent
	}
}

func newGrid(size int) [][]Pixel {
	g := make([][]Pixel, size)
	for i := range g {
		row := make([]Pixel, size)
		for j := range row {
			row[j] = Transparent
		}
		g[i] = row
	}
	return g
}

// rotate90Image rotates a 2D grid 90 degrees counter-clockwise (top row
// becomes left column): (y,x) -> (size-1-x,y).
func rotate90Image(im [][]Pixel, size int) [][]Pixel {
	out := newGrid(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			out[size-1-x][y] = im[y][x]
		}
	}
	return out
}
