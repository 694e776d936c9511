// Package quad fits quadrilaterals to edge-point clusters: angular sorting
// around the cluster's bounding-box center, cumulative-moment line fitting over
// candidate segments, corner detection via smoothed line-fit-error local
// maxima, an exhaustive 4-combination search over those candidates, and
// final corner geometry via line intersection with a convexity check.
package quad

import "math"

// ThreshParams controls quad-fitting thresholds.
type ThreshParams struct {
	MinClusterPixels  int
	MaxNMaxima        int
	CosCriticalRad    float64
	MaxLineFitMSE     float64
	MinWhiteBlackDiff int
	Deglitch          bool
}

// DefaultThreshParams returns the reference default parameter set.
func DefaultThreshParams() ThreshParams {
	return ThreshParams{
		MinClusterPixels:  5,
		MaxNMaxima:        10,
		CosCriticalRad:    math.Cos(10 * math.Pi / 180),
		MaxLineFitMSE:     10.0,
		MinWhiteBlackDiff: 5,
		Deglitch:          false,
	}
}

// Quad is a detected quadrilateral: four corners in pixel coordinates with
// counter-clockwise winding, plus the polarity of its border.
type Quad struct {
	Corners        [4][2]float64
	ReversedBorder bool
}
