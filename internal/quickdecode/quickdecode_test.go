package quickdecode

import (
	"testing"

	"github.com/quadtag/apriltag/internal/bitcode"
	"github.com/quadtag/apriltag/internal/family"
)

func testFamily(t *testing.T, codes []uint64) *family.TagFamily {
	t.Helper()
	cfg := family.Config{
		Name:       "testfam",
		MinHamming: 5,
		Layout:     family.LayoutConfig{Type: "classic", GridSize: 8},
	}
	f, err := family.FromConfigAndCodes(cfg, codes)
	if err != nil {
		t.Fatalf("FromConfigAndCodes: %v", err)
	}
	return f
}

func TestQuickDecodeFindsExactMatch(t *testing.T) {
	f := testFamily(t, []uint64{0xa5a5, 0x1234, 0xbeef})
	qd := New(f, 2)

	res, ok := qd.Decode(f, f.Codes[0])
	if !ok {
		t.Fatal("expected a match")
	}
	if res.ID != 0 || res.Hamming != 0 || res.Rotation != 0 {
		t.Fatalf("got %+v, want id=0 hamming=0 rotation=0", res)
	}
}

func TestQuickDecodeWithOneBitError(t *testing.T) {
	f := testFamily(t, []uint64{0xa5a5, 0x1234, 0xbeef})
	qd := New(f, 2)

	corrupted := f.Codes[0] ^ 1
	res, ok := qd.Decode(f, corrupted)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.ID != 0 || res.Hamming != 1 {
		t.Fatalf("got %+v, want id=0 hamming=1", res)
	}
}

func TestQuickDecodeTooManyErrorsReturnsFalse(t *testing.T) {
	f := testFamily(t, []uint64{0xa5a5, 0x1234, 0xbeef})
	qd := New(f, 1)

	_, ok := qd.Decode(f, 0xAAAA)
	if ok {
		t.Fatal("expected no match at maxHamming=1 for an arbitrary far code")
	}
}

func TestQuickDecodeRotatedCode(t *testing.T) {
	f := testFamily(t, []uint64{0xa5a5, 0x1234, 0xbeef})
	qd := New(f, 2)

	rotated := bitcode.Rotate90(f.Codes[0], 16)
	res, ok := qd.Decode(f, rotated)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.ID != 0 || res.Hamming != 0 {
		t.Fatalf("got %+v, want id=0 hamming=0", res)
	}
}
