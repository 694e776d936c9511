package apriltag

import (
	"errors"
	"math"
	"testing"

	"github.com/quadtag/apriltag/internal/family"
	"github.com/quadtag/apriltag/internal/homography"
	"github.com/quadtag/apriltag/internal/layout"
	"github.com/quadtag/apriltag/internal/render"
)

func TestNewDetectorConfigDefaults(t *testing.T) {
	cfg := NewDetectorConfig()
	if cfg.QuadDecimate != 2.0 {
		t.Errorf("QuadDecimate = %v, want 2.0", cfg.QuadDecimate)
	}
	if cfg.QuadSigma != 0 {
		t.Errorf("QuadSigma = %v, want 0", cfg.QuadSigma)
	}
	if !cfg.RefineEdges {
		t.Error("RefineEdges = false, want true")
	}
	if cfg.DecodeSharpening != 0.25 {
		t.Errorf("DecodeSharpening = %v, want 0.25", cfg.DecodeSharpening)
	}
	if cfg.MinClusterPixels != 5 {
		t.Errorf("MinClusterPixels = %v, want 5", cfg.MinClusterPixels)
	}
	if cfg.MaxNMaxima != 10 {
		t.Errorf("MaxNMaxima = %v, want 10", cfg.MaxNMaxima)
	}
	if cfg.MinWhiteBlackDiff != 5 {
		t.Errorf("MinWhiteBlackDiff = %v, want 5", cfg.MinWhiteBlackDiff)
	}
	if cfg.Deglitch {
		t.Error("Deglitch = true, want false")
	}
	wantCos := math.Cos(10 * math.Pi / 180)
	if cfg.CosCriticalRad != wantCos {
		t.Errorf("CosCriticalRad = %v, want %v", cfg.CosCriticalRad, wantCos)
	}
}

func TestDetectEmptyImageReturnsNoDetections(t *testing.T) {
	img := NewImage(64, 64)
	for i := range img.Buf {
		img.Buf[i] = 200
	}

	det := NewDetector(NewDetectorConfig())
	if got := det.Detect(img); len(got) != 0 {
		t.Errorf("Detect(blank) = %d detections, want 0", len(got))
	}
}

func TestDetectWithNoFamiliesReturnsNoDetections(t *testing.T) {
	l, err := layout.Classic(8)
	if err != nil {
		t.Fatalf("layout.Classic: %v", err)
	}
	img := renderTestImage(t, l, 0xACF3, 12, 24)

	det := NewDetector(NewDetectorConfig())
	if got := det.Detect(img); len(got) != 0 {
		t.Errorf("Detect with no registered families = %d detections, want 0", len(got))
	}
}

func TestDetectRendersAndDecodesClassicTag(t *testing.T) {
	const code = uint64(0xACF3)

	l, err := layout.Classic(8)
	if err != nil {
		t.Fatalf("layout.Classic: %v", err)
	}
	fam, err := family.FromConfigAndCodes(family.Config{
		Name:       "demo8",
		MinHamming: 4,
		Layout:     family.LayoutConfig{Type: "classic", GridSize: 8},
	}, []uint64{code})
	if err != nil {
		t.Fatalf("family.FromConfigAndCodes: %v", err)
	}
	if fam.Layout.NBits != l.NBits {
		t.Fatalf("family layout NBits = %d, want %d", fam.Layout.NBits, l.NBits)
	}

	img := renderTestImage(t, l, code, 12, 24)

	cfg := NewDetectorConfig()
	cfg.QuadDecimate = 1 // exercise the pipeline without the decimate rescale path

	det := NewDetector(cfg)
	det.AddFamily(fam, 2)

	dets := det.Detect(img)
	if len(dets) != 1 {
		t.Fatalf("Detect = %d detections, want 1", len(dets))
	}
	if dets[0].ID != 0 {
		t.Errorf("ID = %d, want 0", dets[0].ID)
	}
	if dets[0].Hamming != 0 {
		t.Errorf("Hamming = %d, want 0", dets[0].Hamming)
	}
	if dets[0].FamilyName != "demo8" {
		t.Errorf("FamilyName = %q, want %q", dets[0].FamilyName, "demo8")
	}
}

func TestComputeDetectionGeometryIdentitySquare(t *testing.T) {
	corners := [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	h, ok := homography.FromQuadCorners(corners)
	if !ok {
		t.Fatal("FromQuadCorners failed on an identity square")
	}

	center, got := computeDetectionGeometry(h, 0)
	if math.Abs(center[0]) > 1e-6 || math.Abs(center[1]) > 1e-6 {
		t.Errorf("center = %v, want (0,0)", center)
	}
	for i, want := range corners {
		if math.Abs(got[i][0]-want[0]) > 1e-6 || math.Abs(got[i][1]-want[1]) > 1e-6 {
			t.Errorf("corner %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestComputeDetectionGeometryRotates(t *testing.T) {
	corners := [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	h, ok := homography.FromQuadCorners(corners)
	if !ok {
		t.Fatal("FromQuadCorners failed on an identity square")
	}

	_, got := computeDetectionGeometry(h, 1)
	want := [4][2]float64{{1, -1}, {1, 1}, {-1, 1}, {-1, -1}}
	for i := range want {
		if math.Abs(got[i][0]-want[i][0]) > 1e-6 || math.Abs(got[i][1]-want[i][1]) > 1e-6 {
			t.Errorf("corner %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoadFamilyInvalidTOMLReturnsFamilyError(t *testing.T) {
	_, err := LoadFamily("not valid toml [[[", nil)
	if err == nil {
		t.Fatal("LoadFamily with invalid TOML: got nil error")
	}
	var famErr *FamilyError
	if !errors.As(err, &famErr) {
		t.Fatalf("error is not a *FamilyError: %v", err)
	}
}

func TestCodeHammingDistance(t *testing.T) {
	if d := CodeHammingDistance(0b1010, 0b1010); d != 0 {
		t.Errorf("HammingDistance(equal) = %d, want 0", d)
	}
	if d := CodeHammingDistance(0b1010, 0b0010); d != 1 {
		t.Errorf("HammingDistance(one bit) = %d, want 1", d)
	}
}

// renderTestImage renders code under l and pastes it, cellPx pixels per
// grid cell, into the center of a blank white canvas with the given
// margin on every side.
func renderTestImage(t *testing.T, l *layout.Layout, code uint64, cellPx, margin int) *Image {
	t.Helper()
	tag := render.Render(l, code)
	tagPx := tag.GridSize * cellPx
	canvas := tagPx + 2*margin

	img := NewImage(canvas, canvas)
	for i := range img.Buf {
		img.Buf[i] = 255
	}
	for gy := 0; gy < tag.GridSize; gy++ {
		for gx := 0; gx < tag.GridSize; gx++ {
			v := byte(255)
			if tag.Pixel(gx, gy) == render.Black {
				v = 0
			}
			for dy := 0; dy < cellPx; dy++ {
				for dx := 0; dx < cellPx; dx++ {
					img.Set(margin+gx*cellPx+dx, margin+gy*cellPx+dy, v)
				}
			}
		}
	}
	return img
}
