package bitcode

import "testing"

func TestRotate90ClosureOverFourApplications(t *testing.T) {
	for _, nbits := range []int{16, 21, 25, 36, 41, 49, 48, 52} {
		for _, c := range []uint64{0, 1, 0x1234, (1 << uint(nbits)) - 1} {
			w := c
			for i := 0; i < 4; i++ {
				w = Rotate90(w, nbits)
			}
			if w != c {
				t.Fatalf("nbits=%d code=%#x: after 4 rotations got %#x", nbits, c, w)
			}
		}
	}
}

func TestHammingDistance(t *testing.T) {
	if d := HammingDistance(0b1010, 0b0101); d != 4 {
		t.Fatalf("got %d, want 4", d)
	}
	if d := HammingDistance(5, 5); d != 0 {
		t.Fatalf("got %d, want 0", d)
	}
}

func TestHammingDistanceAtLeastMatchesExact(t *testing.T) {
	cases := []struct{ a, b uint64 }{
		{0, 0}, {0xFFFF, 0}, {0x1234, 0x4321}, {1 << 40, 1 << 41},
	}
	for _, c := range cases {
		exact := HammingDistance(c.a, c.b)
		for threshold := 0; threshold <= exact+1; threshold++ {
			got := HammingDistanceAtLeast(c.a, c.b, threshold)
			want := exact >= threshold
			if got != want {
				t.Fatalf("a=%#x b=%#x threshold=%d: got %v, want %v", c.a, c.b, threshold, got, want)
			}
		}
	}
}

type fakeGrid struct {
	size        int
	borderStart int
	cells       []CellKind
}

func (g *fakeGrid) Size() int   { return g.size }
func (g *fakeGrid) Border() int { return g.borderStart }
func (g *fakeGrid) CellAt(x, y int) CellKind {
	return g.cells[y*g.size+x]
}

// A minimal 4x4 grid with a 2x2 all-Data interior and a Black border ring,
// used to sanity-check Locations' count.
func newTestGrid() *fakeGrid {
	size := 4
	cells := make([]CellKind, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x == 0 || y == 0 || x == size-1 || y == size-1 {
				cells[y*size+x] = CellBlack
			} else {
				cells[y*size+x] = CellData
			}
		}
	}
	return &fakeGrid{size: size, borderStart: 0, cells: cells}
}

func TestLocationsCountMatchesDataCells(t *testing.T) {
	g := newTestGrid()
	locs := Locations(g)
	if len(locs) != 4 {
		t.Fatalf("got %d locations, want 4", len(locs))
	}
}
