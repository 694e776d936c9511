// Package layout parses and validates tag layouts: square grids of cell
// kinds with 4-fold rotational symmetry and a detectable border ring.
package layout

import (
	"fmt"
	"math"

	"github.com/quadtag/apriltag/internal/bitcode"
)

// CellKind is the kind of a single grid cell.
type CellKind = bitcode.CellKind

const (
	CellData    = bitcode.CellData
	CellBlack   = bitcode.CellBlack
	CellWhite   = bitcode.CellWhite
	CellIgnored = bitcode.CellIgnored
)

// Layout is a parsed N x N grid of cell kinds.
type Layout struct {
	GridSize       int
	Cells          []CellKind
	NBits          int
	BorderStart    int
	BorderWidth    int
	ReversedBorder bool
}

// Size implements bitcode.GridSource.
func (l *Layout) Size() int { return l.GridSize }

// Border implements bitcode.GridSource, exposing the BorderStart field
// under the name the interface requires.
func (l *Layout) Border() int { return l.BorderStart }

// CellAt implements bitcode.GridSource.
func (l *Layout) CellAt(x, y int) CellKind { return l.Cells[y*l.GridSize+x] }

// Cell returns the cell kind at grid position (x, y).
func (l *Layout) Cell(x, y int) CellKind { return l.Cells[y*l.GridSize+x] }

// BitLocations returns this layout's bit-location list in quadrant-scan order.
func (l *Layout) BitLocations() []bitcode.Location {
	return bitcode.Locations(l)
}

var charToKind = map[byte]CellKind{
	'd': CellData,
	'b': CellBlack,
	'w': CellWhite,
	'x': CellIgnored,
}

// FromDataString parses a layout from a string of {d,b,w,x} characters, one
// per cell, in row-major order.
func FromDataString(data string) (*Layout, error) {
	n := len(data)
	gridSize := int(math.Sqrt(float64(n)))
	if gridSize*gridSize != n {
		return nil, &Error{Kind: NotSquare, Len: n}
	}

	cells := make([]CellKind, n)
	nbits := 0
	for i := 0; i < n; i++ {
		k, ok := charToKind[data[i]]
		if !ok {
			return nil, &Error{Kind: InvalidChar, Char: rune(data[i]), Pos: i}
		}
		cells[i] = k
		if k == CellData {
			nbits++
		}
	}

	if err := checkSymmetry(cells, gridSize); err != nil {
		return nil, err
	}
	borderStart, reversed, err := detectBorder(cells, gridSize)
	if err != nil {
		return nil, err
	}
	if err := checkBorderRings(cells, gridSize, borderStart, reversed); err != nil {
		return nil, err
	}

	return &Layout{
		GridSize:       gridSize,
		Cells:          cells,
		NBits:          nbits,
		BorderStart:    borderStart,
		BorderWidth:    gridSize - 2*borderStart,
		ReversedBorder: reversed,
	}, nil
}

func checkSymmetry(cells []CellKind, size int) error {
	for y := 0; y < size/2; y++ {
		for x := y; x < size-1-y; x++ {
			a := cells[y*size+x]
			b := cells[x*size+(size-1-y)]
			c := cells[(size-1-y)*size+(size-1-x)]
			d := cells[(size-1-x)*size+y]
			if a != b || a != c || a != d {
				return &Error{Kind: NotSymmetric}
			}
		}
	}
	return nil
}

func detectBorder(cells []CellKind, size int) (int, bool, error) {
	for i := 0; i < (size-1)/2; i++ {
		outer := cells[i*size+i]
		inner := cells[(i+1)*size+(i+1)]
		switch {
		case outer == CellWhite && inner == CellBlack:
			return i + 1, false, nil
		case outer == CellBlack && inner == CellWhite:
			return i + 1, true, nil
		}
	}
	return 0, false, &Error{Kind: NoBorder}
}

func checkBorderRings(cells []CellKind, size, borderStart int, reversed bool) error {
	outsideType, insideType := CellWhite, CellBlack
	if reversed {
		outsideType, insideType = CellBlack, CellWhite
	}

	outerRow := borderStart - 1
	innerRow := borderStart

	for x := outerRow; x < size-outerRow; x++ {
		if cells[outerRow*size+x] != outsideType {
			return &Error{Kind: InvalidBorder, Detail: fmt.Sprintf("outer ring cell (%d, %d) should be %s", x, outerRow, outsideType)}
		}
	}
	for x := innerRow; x < size-innerRow; x++ {
		if cells[innerRow*size+x] != insideType {
			return &Error{Kind: InvalidBorder, Detail: fmt.Sprintf("inner ring cell (%d, %d) should be %s", x, innerRow, insideType)}
		}
	}
	return nil
}
