package decode

import "testing"

func TestGrayModelConstantField(t *testing.T) {
	var gm grayModel
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			gm.add(float64(i), float64(j), 100.0)
		}
	}
	gm.solve()
	v := gm.interpolate(5.0, 5.0)
	if abs(v-100.0) > 1e-6 {
		t.Fatalf("v = %f, want 100", v)
	}
}

func TestGrayModelLinearGradient(t *testing.T) {
	var gm grayModel
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			x := float64(i) / 10.0
			y := float64(j) / 10.0
			gm.add(x, y, 50.0*x+30.0*y+10.0)
		}
	}
	gm.solve()
	v := gm.interpolate(0.5, 0.5)
	expected := 50.0*0.5 + 30.0*0.5 + 10.0
	if abs(v-expected) > 1e-6 {
		t.Fatalf("v = %f, expected = %f", v, expected)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
