package apriltag

import (
	"github.com/quadtag/apriltag/internal/bitcode"
	"github.com/quadtag/apriltag/internal/cluster"
	"github.com/quadtag/apriltag/internal/decode"
	"github.com/quadtag/apriltag/internal/dedup"
	"github.com/quadtag/apriltag/internal/family"
	"github.com/quadtag/apriltag/internal/homography"
	"github.com/quadtag/apriltag/internal/imagebuf"
	"github.com/quadtag/apriltag/internal/layout"
	"github.com/quadtag/apriltag/internal/parallel"
	"github.com/quadtag/apriltag/internal/pose"
	"github.com/quadtag/apriltag/internal/quad"
	"github.com/quadtag/apriltag/internal/quickdecode"
	"github.com/quadtag/apriltag/internal/refine"
	"github.com/quadtag/apriltag/internal/threshold"
)

// Image is the grayscale buffer the detector operates on.
type Image = imagebuf.Image

// NewImage allocates a zeroed width x height grayscale image.
func NewImage(width, height int) *Image {
	return imagebuf.New(width, height)
}

// LayoutError reports why a tag layout string failed to parse or validate.
type LayoutError = layout.Error

// FamilyError reports why a tag family failed to load.
type FamilyError = family.Error

// Pose is a camera-frame rigid transform: camera <- tag.
type Pose = pose.Pose

// PoseParams holds camera intrinsics and tag geometry needed to estimate a
// detection's pose.
type PoseParams = pose.Params

// TagFamily is a loaded set of accepted tag codes plus the bit layout they
// are sampled against.
type TagFamily = family.TagFamily

// LoadFamily parses a family's TOML configuration and its packed binary
// code table (little-endian uint64 entries) into a ready-to-register
// TagFamily.
func LoadFamily(tomlConfig string, binCodes []byte) (*TagFamily, error) {
	return family.FromTOMLAndBin(tomlConfig, binCodes)
}

// Registry is a name-keyed set of loaded families, for applications that
// manage more families than they register with any one Detector.
type Registry = family.Registry

// NewRegistry returns an empty family registry.
func NewRegistry() *Registry {
	return family.NewRegistry()
}

// Detection is a single decoded tag: its family and id, decode confidence,
// and pixel-space geometry.
type Detection struct {
	FamilyName     string
	ID             int
	Hamming        int
	DecisionMargin float32
	Corners        [4][2]float64
	Center         [2]float64
}

// DetectorConfig controls the detection pipeline's preprocessing and quad
// acceptance thresholds. NewDetectorConfig returns the reference defaults.
type DetectorConfig struct {
	// QuadDecimate downsamples the input image by this factor before
	// thresholding and clustering, trading accuracy for speed. 1 disables
	// decimation.
	QuadDecimate float64
	// QuadSigma blurs (positive) or sharpens (negative) the decimated
	// image before thresholding. 0 disables it.
	QuadSigma float64
	// RefineEdges re-fits each quad's edges against the original
	// (non-decimated) image gradient before decoding.
	RefineEdges bool
	// DecodeSharpening is the strength of the Laplacian sharpening applied
	// to the sampled bit values before they are read into a code. Values
	// <= 0 disable it.
	DecodeSharpening float64

	MinWhiteBlackDiff int
	MinClusterPixels  int
	MaxNMaxima        int
	CosCriticalRad    float64
	MaxLineFitMSE     float64
	Deglitch          bool

	// Parallel enables concurrent quad fitting and decoding across
	// clusters and quads. Output order is unaffected.
	Parallel bool
}

// NewDetectorConfig returns the reference default configuration.
func NewDetectorConfig() DetectorConfig {
	p := quad.DefaultThreshParams()
	return DetectorConfig{
		QuadDecimate:      2.0,
		QuadSigma:         0,
		RefineEdges:       true,
		DecodeSharpening:  0.25,
		MinWhiteBlackDiff: p.MinWhiteBlackDiff,
		MinClusterPixels:  p.MinClusterPixels,
		MaxNMaxima:        p.MaxNMaxima,
		CosCriticalRad:    p.CosCriticalRad,
		MaxLineFitMSE:     p.MaxLineFitMSE,
		Deglitch:          p.Deglitch,
		Parallel:          true,
	}
}

func (c DetectorConfig) threshParams() quad.ThreshParams {
	return quad.ThreshParams{
		MinClusterPixels:  c.MinClusterPixels,
		MaxNMaxima:        c.MaxNMaxima,
		CosCriticalRad:    c.CosCriticalRad,
		MaxLineFitMSE:     c.MaxLineFitMSE,
		MinWhiteBlackDiff: c.MinWhiteBlackDiff,
		Deglitch:          c.Deglitch,
	}
}

type registeredFamily struct {
	family *family.TagFamily
	qd     *quickdecode.QuickDecode
}

// Detector holds a configuration and a set of registered tag families, and
// runs the full detection pipeline against input images.
type Detector struct {
	config   DetectorConfig
	families []registeredFamily
}

// NewDetector returns a Detector with no families registered.
func NewDetector(config DetectorConfig) *Detector {
	return &Detector{config: config}
}

// AddFamily registers f for decoding, accepting sampled codes within
// maxHamming bit errors of one of f's accepted codes.
func (d *Detector) AddFamily(f *family.TagFamily, maxHamming int) {
	d.families = append(d.families, registeredFamily{
		family: f,
		qd:     quickdecode.New(f, uint32(maxHamming)),
	})
}

// quadCandidate pairs a fitted quad with its homography, computed once and
// shared across every family tried against it.
type quadCandidate struct {
	quad quad.Quad
	h    homography.Homography
	ok   bool
}

// Detect runs the full pipeline against img: preprocessing, thresholding,
// clustering, quad fitting, optional edge refinement, and per-family
// decoding, and returns deduplicated detections.
func (d *Detector) Detect(img *Image) []Detection {
	f := int(d.config.QuadDecimate)
	decimated := threshold.Decimate(img, f)
	sharpened := threshold.ApplySigma(decimated, d.config.QuadSigma)
	threshed := threshold.Threshold(sharpened, d.config.MinWhiteBlackDiff, d.config.Deglitch)

	uf := cluster.ConnectedComponents(threshed)
	clusters := cluster.GradientClusters(threshed, uf, d.config.MinClusterPixels)
	uf.Release()

	hasNormal, hasReversed := false, false
	for _, rf := range d.families {
		if rf.family.Layout.ReversedBorder {
			hasReversed = true
		} else {
			hasNormal = true
		}
	}

	quads := d.fitQuads(clusters, threshed.Width, threshed.Height, hasNormal, hasReversed)

	decimFactor := float64(f)
	if f > 1 {
		for i := range quads {
			for c := 0; c < 4; c++ {
				quads[i].Corners[c][0] *= decimFactor
				quads[i].Corners[c][1] *= decimFactor
			}
		}
	}

	if d.config.RefineEdges {
		for i := range quads {
			refine.RefineEdges(&quads[i], img, d.config.QuadDecimate)
		}
	}

	candidates := d.buildCandidates(quads)
	detections := d.decodeCandidates(img, candidates)

	ddet := make([]dedup.Detection, len(detections))
	for i, det := range detections {
		ddet[i] = dedup.Detection{
			FamilyName:     det.FamilyName,
			ID:             det.ID,
			Hamming:        det.Hamming,
			DecisionMargin: det.DecisionMargin,
			Corners:        det.Corners,
			Center:         det.Center,
		}
	}
	ddet = dedup.Deduplicate(ddet)

	out := make([]Detection, len(ddet))
	for i, det := range ddet {
		out[i] = Detection(det)
	}
	return out
}

func (d *Detector) fitQuads(clusters []cluster.Cluster, w, h int, hasNormal, hasReversed bool) []quad.Quad {
	if !d.config.Parallel {
		return quad.FitQuads(clusters, w, h, d.config.threshParams(), hasNormal, hasReversed)
	}

	params := d.config.threshParams()
	maxPerimeter := 2 * (w + h)
	return parallel.RunFiltered(len(clusters), func() struct{} { return struct{}{} },
		func(_ struct{}, i int) (quad.Quad, bool) {
			return quad.FitQuad(&clusters[i], params, maxPerimeter, hasNormal, hasReversed)
		})
}

func (d *Detector) buildCandidates(quads []quad.Quad) []quadCandidate {
	build := func(_ struct{}, i int) quadCandidate {
		h, ok := homography.FromQuadCorners(quads[i].Corners)
		return quadCandidate{quad: quads[i], h: h, ok: ok}
	}
	if !d.config.Parallel {
		out := make([]quadCandidate, len(quads))
		for i := range quads {
			out[i] = build(struct{}{}, i)
		}
		return out
	}
	return parallel.Run(len(quads), func() struct{} { return struct{}{} }, build)
}

// decodeWork is one (quad, family) pairing eligible for decoding: the
// quad's border polarity matches the family's expected layout.
type decodeWork struct {
	candidate *quadCandidate
	rf        *registeredFamily
}

func (d *Detector) decodeCandidates(img *Image, candidates []quadCandidate) []Detection {
	var work []decodeWork
	for i := range candidates {
		if !candidates[i].ok {
			continue
		}
		for j := range d.families {
			if candidates[i].quad.ReversedBorder != d.families[j].family.Layout.ReversedBorder {
				continue
			}
			work = append(work, decodeWork{candidate: &candidates[i], rf: &d.families[j]})
		}
	}

	decodeOne := func(_ struct{}, i int) (Detection, bool) {
		w := work[i]
		result, ok := decode.DecodeQuad(img, w.rf.family, w.rf.qd, w.candidate.h, w.candidate.quad.ReversedBorder, d.config.DecodeSharpening)
		if !ok {
			return Detection{}, false
		}
		center, corners := computeDetectionGeometry(w.candidate.h, result.Rotation)
		return Detection{
			FamilyName:     result.FamilyName,
			ID:             result.ID,
			Hamming:        result.Hamming,
			DecisionMargin: result.DecisionMargin,
			Corners:        corners,
			Center:         center,
		}, true
	}

	if !d.config.Parallel {
		out := make([]Detection, 0, len(work))
		for i := range work {
			if det, ok := decodeOne(struct{}{}, i); ok {
				out = append(out, det)
			}
		}
		return out
	}
	return parallel.RunFiltered(len(work), func() struct{} { return struct{}{} }, decodeOne)
}

var baseCorners = [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

// computeDetectionGeometry projects a quad's tag-space center and corners
// into pixel space through h, rotating the corner order by rotation to
// match the family's decoded orientation.
func computeDetectionGeometry(h homography.Homography, rotation int) ([2]float64, [4][2]float64) {
	cx, cy := h.Project(0, 0)
	center := [2]float64{cx, cy}

	var corners [4][2]float64
	for i := 0; i < 4; i++ {
		src := baseCorners[(i+rotation)%4]
		x, y := h.Project(src[0], src[1])
		corners[i] = [2]float64{x, y}
	}
	return center, corners
}

// EstimateTagPose estimates a detection's camera-frame pose from its
// corners and the given camera intrinsics and tag size. It returns the best
// pose with its object-space error and, when orthogonal iteration finds a
// second local minimum, the other pose and its error; otherwise the second
// pose is nil and its error is +Inf. A degenerate quad gets an error of +Inf.
func EstimateTagPose(d Detection, params PoseParams) (Pose, float64, *Pose, float64) {
	return pose.EstimateTagPose(dedup.Detection(d), params)
}

// CodeHammingDistance reports the Hamming distance between two equal-width
// bit codes, useful for comparing a sampled code against a family's table
// directly rather than through QuickDecode.
func CodeHammingDistance(a, b uint64) int {
	return bitcode.HammingDistance(a, b)
}
