// Package threshold implements the detector's pre-threshold image
// preparation (decimation, Gaussian blur/unsharp) and the tile-based
// adaptive ternary threshold that follows it.
package threshold

import (
	"math"

	"github.com/quadtag/apriltag/internal/imagebuf"
	"github.com/quadtag/apriltag/internal/pool"
)

// Decimate downsamples img by averaging each f x f block. f <= 1 returns a
// copy of img unchanged. Partial trailing blocks are truncated, matching
// integer division of the output dimensions.
func Decimate(img *imagebuf.Image, f int) *imagebuf.Image {
	if f <= 1 {
		return cloneImage(img)
	}

	outW, outH := img.Width/f, img.Height/f
	out := imagebuf.New(outW, outH)
	area := f * f

	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			sum := 0
			for dy := 0; dy < f; dy++ {
				for dx := 0; dx < f; dx++ {
					sum += int(img.Get(ox*f+dx, oy*f+dy))
				}
			}
			out.Set(ox, oy, byte(sum/area))
		}
	}
	return out
}

// gaussianKernel builds a normalized 1D Gaussian kernel of odd size ksz.
func gaussianKernel(sigma float64, ksz int) []float64 {
	half := ksz / 2
	kernel := make([]float64, ksz)
	sum := 0.0
	for i := 0; i < ksz; i++ {
		x := float64(i - half)
		v := math.Exp(-x * x / (2 * sigma * sigma))
		kernel[i] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func gaussianBlur(img *imagebuf.Image, sigma float64, ksz int) *imagebuf.Image {
	kernel := gaussianKernel(sigma, ksz)
	half := ksz / 2
	w, h := img.Width, img.Height

	// tmp holds only the horizontal pass; it never leaves this function, so
	// it is drawn from the scratch pool instead of allocated fresh.
	tmpBuf := pool.Get(w * h)
	defer pool.Put(tmpBuf)
	tmp := imagebuf.FromBuf(w, h, w, tmpBuf)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.0
			for k := 0; k < ksz; k++ {
				sx := clampInt(x+k-half, 0, w-1)
				sum += float64(img.Get(sx, y)) * kernel[k]
			}
			tmp.Set(x, y, byte(math.Round(sum)))
		}
	}

	out := imagebuf.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.0
			for k := 0; k < ksz; k++ {
				sy := clampInt(y+k-half, 0, h-1)
				sum += float64(tmp.Get(x, sy)) * kernel[k]
			}
			out.Set(x, y, byte(math.Round(sum)))
		}
	}
	return out
}

// ApplySigma applies a Gaussian blur (quadSigma > 0), an unsharp-mask
// sharpen (quadSigma < 0), or nothing (quadSigma == 0).
func ApplySigma(img *imagebuf.Image, quadSigma float64) *imagebuf.Image {
	if quadSigma == 0 {
		return cloneImage(img)
	}

	sigma := math.Abs(quadSigma)
	ksz := int(4.0 * sigma)
	if ksz%2 == 0 {
		ksz++
	}
	if ksz <= 1 {
		return cloneImage(img)
	}

	blurred := gaussianBlur(img, sigma, ksz)
	if quadSigma > 0 {
		return blurred
	}

	out := imagebuf.New(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := 2*int(img.Get(x, y)) - int(blurred.Get(x, y))
			out.Set(x, y, byte(clampInt(v, 0, 255)))
		}
	}
	return out
}

func cloneImage(img *imagebuf.Image) *imagebuf.Image {
	out := imagebuf.New(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			out.Set(x, y, img.Get(x, y))
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
