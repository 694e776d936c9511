package threshold

import (
	"github.com/quadtag/apriltag/internal/imagebuf"
	"github.com/quadtag/apriltag/internal/pool"
)

// tileSize is the side length of the adaptive-threshold tile grid.
const tileSize = 4

// Threshold produces a ternary image: 0 (black), 255 (white), or 127
// (unknown). It uses tile-based min/max adaptive thresholding, expanding
// each tile's range across its 3x3 tile neighborhood, to tolerate spatially
// varying illumination.
func Threshold(img *imagebuf.Image, minWhiteBlackDiff int, deglitch bool) *imagebuf.Image {
	w, h := img.Width, img.Height
	tw, th := w/tileSize, h/tileSize

	if tw == 0 || th == 0 {
		return imagebuf.New(w, h)
	}

	// Tile min/max and their 3x3-expanded neighborhoods are scratch that
	// never outlives this call; draw them from the pool instead of
	// allocating four fresh tw*th buffers on every threshold call.
	tileMin := pool.Get(tw * th)
	defer pool.Put(tileMin)
	tileMax := pool.Get(tw * th)
	defer pool.Put(tileMax)
	for i := range tileMin {
		tileMin[i] = 255
	}

	for ty := 0; ty < th; ty++ {
		for tx := 0; tx < tw; tx++ {
			lo, hi := byte(255), byte(0)
			for dy := 0; dy < tileSize; dy++ {
				for dx := 0; dx < tileSize; dx++ {
					v := img.Get(tx*tileSize+dx, ty*tileSize+dy)
					if v < lo {
						lo = v
					}
					if v > hi {
						hi = v
					}
				}
			}
			tileMin[ty*tw+tx] = lo
			tileMax[ty*tw+tx] = hi
		}
	}

	dilatedMax := pool.Get(tw * th)
	defer pool.Put(dilatedMax)
	erodedMin := pool.Get(tw * th)
	defer pool.Put(erodedMin)

	for ty := 0; ty < th; ty++ {
		for tx := 0; tx < tw; tx++ {
			hi, lo := byte(0), byte(255)
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := tx+dx, ty+dy
					if nx >= 0 && nx < tw && ny >= 0 && ny < th {
						idx := ny*tw + nx
						if tileMax[idx] > hi {
							hi = tileMax[idx]
						}
						if tileMin[idx] < lo {
							lo = tileMin[idx]
						}
					}
				}
			}
			idx := ty*tw + tx
			dilatedMax[idx] = hi
			erodedMin[idx] = lo
		}
	}

	out := imagebuf.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tx := minInt(x/tileSize, tw-1)
			ty := minInt(y/tileSize, th-1)
			idx := ty*tw + tx
			lo, hi := int(erodedMin[idx]), int(dilatedMax[idx])

			var val byte
			if hi-lo < minWhiteBlackDiff {
				val = 127
			} else {
				thresh := lo + (hi-lo)/2
				if int(img.Get(x, y)) > thresh {
					val = 255
				} else {
					val = 0
				}
			}
			out.Set(x, y, val)
		}
	}

	if deglitch {
		deglitchImage(out)
	}
	return out
}

// deglitchImage performs a morphological close (dilate then erode) with a
// 3x3 structuring element, filling isolated dark pixels; isolated bright
// pixels are left in place.
func deglitchImage(img *imagebuf.Image) {
	dilatedBuf := pool.Get(img.Width * img.Height)
	defer pool.Put(dilatedBuf)
	dilated := imagebuf.FromBuf(img.Width, img.Height, img.Width, dilatedBuf)
	morphOpInto(dilated, img, true)

	erodedBuf := pool.Get(img.Width * img.Height)
	defer pool.Put(erodedBuf)
	eroded := imagebuf.FromBuf(img.Width, img.Height, img.Width, erodedBuf)
	morphOpInto(eroded, dilated, false)

	copy(img.Buf, eroded.Buf)
}

// morphOpInto writes the 3x3 dilation (or erosion) of img into out, both
// already sized to img's dimensions.
func morphOpInto(out *imagebuf.Image, img *imagebuf.Image, dilate bool) {
	w, h := img.Width, img.Height

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			best := img.Get(x, y)
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						v := img.Get(nx, ny)
						if dilate {
							if v > best {
								best = v
							}
						} else if v < best {
							best = v
						}
					}
				}
			}
			out.Set(x, y, best)
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
