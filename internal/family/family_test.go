package family

import (
	"encoding/binary"
	"testing"
)

func TestParseBinCodesRoundTrip(t *testing.T) {
	codes := []uint64{0x1234, 0xdeadbeef, 0, 0xffffffffffffffff}
	buf := make([]byte, len(codes)*8)
	for i, c := range codes {
		binary.LittleEndian.PutUint64(buf[i*8:], c)
	}
	got, err := ParseBinCodes(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(codes) {
		t.Fatalf("got %d codes, want %d", len(got), len(codes))
	}
	for i := range codes {
		if got[i] != codes[i] {
			t.Fatalf("code %d: got %#x, want %#x", i, got[i], codes[i])
		}
	}
}

func TestParseBinCodesRejectsMisalignedLength(t *testing.T) {
	_, err := ParseBinCodes([]byte{1, 2, 3})
	var fe *Error
	if !asFamilyError(err, &fe) || fe.Kind != InvalidBinary {
		t.Fatalf("got %v", err)
	}
}

func TestFromTOMLAndBinClassic(t *testing.T) {
	toml := `
name = "demo16h5"
min_hamming = 5

[layout]
type = "classic"
grid_size = 8
`
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 0x27c8)

	f, err := FromTOMLAndBin(toml, buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Config.Name != "demo16h5" || f.Config.MinHamming != 5 {
		t.Fatalf("unexpected config: %+v", f.Config)
	}
	if f.Layout.NBits != 16 || f.Layout.GridSize != 8 {
		t.Fatalf("unexpected layout: %+v", f.Layout)
	}
	if len(f.Codes) != 1 || f.Codes[0] != 0x27c8 {
		t.Fatalf("unexpected codes: %v", f.Codes)
	}
	if len(f.BitLocations) != 16 {
		t.Fatalf("got %d bit locations, want 16", len(f.BitLocations))
	}
}

func TestFromTOMLAndBinCustomLayout(t *testing.T) {
	toml := `
name = "custom_test"
min_hamming = 3

[layout]
type = "custom"
grid_size = 8
data = "wwwwwwwwwbbbbbbwwbddddbwwbddddbwwbddddbwwbddddbwwbbbbbbwwwwwwwww"
`
	f, err := FromTOMLAndBin(toml, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Layout.NBits != 16 {
		t.Fatalf("unexpected nbits: %d", f.Layout.NBits)
	}
}

func TestRegistryUnknownFamily(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nonexistent")
	var fe *Error
	if !asFamilyError(err, &fe) || fe.Kind != UnknownFamily {
		t.Fatalf("got %v", err)
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 0x27c8)
	f, err := FromTOMLAndBin(`
name = "demo16h5"
min_hamming = 5

[layout]
type = "classic"
grid_size = 8
`, buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Register("demo16h5", f)
	got, err := r.Get("demo16h5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != f {
		t.Fatal("got different family back")
	}
}

func asFamilyError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
