// Package pose estimates a tag's 3D camera-frame pose from its detected
// quad corners and camera intrinsics: an initial SO(3) decomposition of
// the tag homography, refined by orthogonal iteration, with a search for
// the orientation-ambiguity's second local minimum.
package pose

import (
	"math"

	"github.com/quadtag/apriltag/internal/dedup"
	"github.com/quadtag/apriltag/internal/homography"
)

// Pose is a camera-frame rigid transform: camera <- tag.
type Pose struct {
	R [3][3]float64 // row-major rotation
	T [3]float64
}

// Params holds camera intrinsics and tag geometry needed for pose
// estimation.
type Params struct {
	TagSize float64
	Fx, Fy  float64
	Cx, Cy  float64
}

var identity3 = [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func matMul(a, b [3][3]float64) [3][3]float64 {
	var c [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			c[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j] + a[i][2]*b[2][j]
		}
	}
	return c
}

func matVec(m [3][3]float64, v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

func matTranspose(m [3][3]float64) [3][3]float64 {
	return [3][3]float64{
		{m[0][0], m[1][0], m[2][0]},
		{m[0][1], m[1][1], m[2][1]},
		{m[0][2], m[1][2], m[2][2]},
	}
}

func matDet(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

func matInv(m [3][3]float64) ([3][3]float64, bool) {
	det := matDet(m)
	if math.Abs(det) < 1e-10 {
		return [3][3]float64{}, false
	}
	invDet := 1.0 / det
	return [3][3]float64{
		{
			(m[1][1]*m[2][2] - m[1][2]*m[2][1]) * invDet,
			(m[0][2]*m[2][1] - m[0][1]*m[2][2]) * invDet,
			(m[0][1]*m[1][2] - m[0][2]*m[1][1]) * invDet,
		},
		{
			(m[1][2]*m[2][0] - m[1][0]*m[2][2]) * invDet,
			(m[0][0]*m[2][2] - m[0][2]*m[2][0]) * invDet,
			(m[0][2]*m[1][0] - m[0][0]*m[1][2]) * invDet,
		},
		{
			(m[1][0]*m[2][1] - m[1][1]*m[2][0]) * invDet,
			(m[0][1]*m[2][0] - m[0][0]*m[2][1]) * invDet,
			(m[0][0]*m[1][1] - m[0][1]*m[1][0]) * invDet,
		},
	}, true
}

func vecNorm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func outer(a, b [3]float64) [3][3]float64 {
	return [3][3]float64{
		{a[0] * b[0], a[0] * b[1], a[0] * b[2]},
		{a[1] * b[0], a[1] * b[1], a[1] * b[2]},
		{a[2] * b[0], a[2] * b[1], a[2] * b[2]},
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// svd3x3 computes M = U * diag(S) * V^T via Jacobi eigendecomposition of
// M^T*M, returning singular values in decreasing order.
func svd3x3(m [3][3]float64) ([3][3]float64, [3]float64, [3][3]float64) {
	mt := matTranspose(m)
	ata := matMul(mt, m)

	v := identity3

	for iter := 0; iter < 100; iter++ {
		maxVal := 0.0
		p, q := 0, 1
		for i := 0; i < 3; i++ {
			for j := i + 1; j < 3; j++ {
				if math.Abs(ata[i][j]) > maxVal {
					maxVal = math.Abs(ata[i][j])
					p, q = i, j
				}
			}
		}
		if maxVal < 1e-15 {
			break
		}

		theta := 0.5 * math.Atan2(2.0*ata[p][q], ata[p][p]-ata[q][q])
		c := math.Cos(theta)
		s := math.Sin(theta)

		newAta := ata
		for i := 0; i < 3; i++ {
			newAta[i][p] = c*ata[i][p] + s*ata[i][q]
			newAta[i][q] = -s*ata[i][p] + c*ata[i][q]
		}
		tmp := newAta
		for j := 0; j < 3; j++ {
			newAta[p][j] = c*tmp[p][j] + s*tmp[q][j]
			newAta[q][j] = -s*tmp[p][j] + c*tmp[q][j]
		}
		ata = newAta

		newV := v
		for i := 0; i < 3; i++ {
			newV[i][p] = c*v[i][p] + s*v[i][q]
			newV[i][q] = -s*v[i][p] + c*v[i][q]
		}
		v = newV
	}

	eigenvalues := [3]float64{ata[0][0], ata[1][1], ata[2][2]}

	order := [3]int{0, 1, 2}
	if eigenvalues[order[0]] < eigenvalues[order[1]] {
		order[0], order[1] = order[1], order[0]
	}
	if eigenvalues[order[1]] < eigenvalues[order[2]] {
		order[1], order[2] = order[2], order[1]
	}
	if eigenvalues[order[0]] < eigenvalues[order[1]] {
		order[0], order[1] = order[1], order[0]
	}

	sigma := [3]float64{
		math.Sqrt(math.Max(eigenvalues[order[0]], 0.0)),
		math.Sqrt(math.Max(eigenvalues[order[1]], 0.0)),
		math.Sqrt(math.Max(eigenvalues[order[2]], 0.0)),
	}

	var vSorted [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			vSorted[i][j] = v[i][order[j]]
		}
	}

	if matDet(vSorted) < 0.0 {
		for i := 0; i < 3; i++ {
			vSorted[i][2] = -vSorted[i][2]
		}
	}

	mv := matMul(m, vSorted)
	var u [3][3]float64
	for j := 0; j < 3; j++ {
		if sigma[j] > 1e-10 {
			for i := 0; i < 3; i++ {
				u[i][j] = mv[i][j] / sigma[j]
			}
		}
	}

	if sigma[2] < 1e-10 {
		u0 := [3]float64{u[0][0], u[1][0], u[2][0]}
		u1 := [3]float64{u[0][1], u[1][1], u[2][1]}
		if sigma[1] < 1e-10 {
			perp := [3]float64{1.0, 0.0, 0.0}
			if math.Abs(u0[0]) >= 0.9 {
				perp = [3]float64{0.0, 1.0, 0.0}
			}
			u1raw := cross(u0, perp)
			n1 := vecNorm(u1raw)
			if n1 > 1e-10 {
				u1 := [3]float64{u1raw[0] / n1, u1raw[1] / n1, u1raw[2] / n1}
				u2 := cross(u0, u1)
				for i := 0; i < 3; i++ {
					u[i][1] = u1[i]
					u[i][2] = u2[i]
				}
			}
		} else {
			u2 := cross(u0, u1)
			for i := 0; i < 3; i++ {
				u[i][2] = u2[i]
			}
		}
	}

	return u, sigma, vSorted
}

// projectToSO3 projects m onto the nearest proper rotation via SVD, with
// a sign correction if the naive U*V^T has negative determinant.
func projectToSO3(m [3][3]float64) [3][3]float64 {
	u, _, v := svd3x3(m)
	vt := matTranspose(v)
	r := matMul(u, vt)
	if matDet(r) < 0.0 {
		uFixed := u
		for i := 0; i < 3; i++ {
			uFixed[i][2] = -uFixed[i][2]
		}
		r = matMul(uFixed, vt)
	}
	return r
}

func homographyToPose(h homography.Homography, params Params) Pose {
	fx, fy, cx, cy := params.Fx, params.Fy, params.Cx, params.Cy
	hd := h.Data

	c0 := [3]float64{
		(hd[0][0] - cx*hd[2][0]) / fx,
		(hd[1][0] - cy*hd[2][0]) / fy,
		hd[2][0],
	}
	c1 := [3]float64{
		(hd[0][1] - cx*hd[2][1]) / fx,
		(hd[1][1] - cy*hd[2][1]) / fy,
		hd[2][1],
	}
	c2 := [3]float64{
		(hd[0][2] - cx*hd[2][2]) / fx,
		(hd[1][2] - cy*hd[2][2]) / fy,
		hd[2][2],
	}

	scale := (vecNorm(c0) + vecNorm(c1)) / 2.0
	for i := 0; i < 3; i++ {
		c0[i] /= scale
		c1[i] /= scale
		c2[i] /= scale
	}

	r0 := c0
	r1 := [3]float64{-c1[0], -c1[1], -c1[2]}
	r2 := cross(r0, r1)

	rRaw := [3][3]float64{
		{r0[0], r1[0], r2[0]},
		{r0[1], r1[1], r2[1]},
		{r0[2], r1[2], r2[2]},
	}
	r := projectToSO3(rRaw)

	t := [3]float64{
		c2[0] * params.TagSize / 2.0,
		c2[1] * params.TagSize / 2.0,
		c2[2] * params.TagSize / 2.0,
	}

	return Pose{R: r, T: t}
}

// EstimateTagPose computes the best and (if one exists) second-best pose
// for a detection's quad, returning (bestPose, bestErr, altPose, altErr).
// altPose is nil when no second local minimum is found.
func EstimateTagPose(det dedup.Detection, params Params) (Pose, float64, *Pose, float64) {
	h, ok := homography.FromQuadCorners(det.Corners)
	if !ok {
		return Pose{R: identity3, T: [3]float64{0, 0, 1}}, math.Inf(1), nil, math.Inf(1)
	}

	s := params.TagSize / 2.0
	tagPts := [4][3]float64{{-s, s, 0}, {s, s, 0}, {s, -s, 0}, {-s, -s, 0}}

	var v [4][3]float64
	for i := 0; i < 4; i++ {
		v[i] = [3]float64{
			(det.Corners[i][0] - params.Cx) / params.Fx,
			(det.Corners[i][1] - params.Cy) / params.Fy,
			1.0,
		}
	}

	initial := homographyToPose(h, params)

	pose1, err1 := orthogonalIteration(v, tagPts, initial.R, initial.T, 50)

	pose2, err2 := findSecondMinimum(v, tagPts, pose1)

	if pose2 != nil && err2 < err1 {
		p1 := pose1
		return *pose2, err2, &p1, err1
	}
	if pose2 != nil {
		return pose1, err1, pose2, err2
	}
	return pose1, err1, nil, math.Inf(1)
}

func orthogonalIteration(imageRays, tagPts [4][3]float64, rInit [3][3]float64, tInit [3]float64, nIters int) (Pose, float64) {
	const n = 4

	var fOps [4][3][3]float64
	for i := 0; i < n; i++ {
		vv := dot(imageRays[i], imageRays[i])
		fOps[i] = outer(imageRays[i], imageRays[i])
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				fOps[i][r][c] /= vv
			}
		}
	}

	var pMean [3]float64
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			pMean[j] += tagPts[i][j]
		}
	}
	for j := 0; j < 3; j++ {
		pMean[j] /= float64(n)
	}

	var pRes [4][3]float64
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			pRes[i][j] = tagPts[i][j] - pMean[j]
		}
	}

	var fMean [3][3]float64
	for i := 0; i < n; i++ {
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				fMean[r][c] += fOps[i][r][c]
			}
		}
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			fMean[r][c] /= float64(n)
		}
	}
	iMinusFMean := identity3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			iMinusFMean[r][c] -= fMean[r][c]
		}
	}
	m1inv, ok := matInv(iMinusFMean)
	if !ok {
		m1inv = identity3
	}

	r := rInit
	t := tInit

	for iter := 0; iter < nIters; iter++ {
		var m2 [3]float64
		for i := 0; i < n; i++ {
			rp := matVec(r, tagPts[i])
			fRp := matVec(fOps[i], rp)
			for j := 0; j < 3; j++ {
				m2[j] += (fRp[j] - rp[j]) / float64(n)
			}
		}
		t = matVec(m1inv, m2)

		var q [4][3]float64
		var qMean [3]float64
		for i := 0; i < n; i++ {
			rp := matVec(r, tagPts[i])
			rpT := [3]float64{rp[0] + t[0], rp[1] + t[1], rp[2] + t[2]}
			q[i] = matVec(fOps[i], rpT)
			for j := 0; j < 3; j++ {
				qMean[j] += q[i][j]
			}
		}
		for j := 0; j < 3; j++ {
			qMean[j] /= float64(n)
		}

		var m3 [3][3]float64
		for i := 0; i < n; i++ {
			qRes := [3]float64{q[i][0] - qMean[0], q[i][1] - qMean[1], q[i][2] - qMean[2]}
			op := outer(qRes, pRes[i])
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					m3[a][b] += op[a][b]
				}
			}
		}

		r = projectToSO3(m3)
	}

	err := computeError(fOps, r, t, tagPts)

	return Pose{R: r, T: t}, err
}

func computeError(fOps [4][3][3]float64, r [3][3]float64, t [3]float64, tagPts [4][3]float64) float64 {
	err := 0.0
	for i := 0; i < 4; i++ {
		rp := matVec(r, tagPts[i])
		rpT := [3]float64{rp[0] + t[0], rp[1] + t[1], rp[2] + t[2]}
		fRpT := matVec(fOps[i], rpT)
		for j := 0; j < 3; j++ {
			diff := rpT[j] - fRpT[j]
			err += diff * diff
		}
	}
	return err
}

func findSecondMinimum(imageRays, tagPts [4][3]float64, pose1 Pose) (*Pose, float64) {
	tDir := pose1.T
	tNorm := vecNorm(tDir)
	if tNorm < 1e-10 {
		return nil, math.MaxFloat64
	}
	nrm := [3]float64{tDir[0] / tNorm, tDir[1] / tNorm, tDir[2] / tNorm}

	nn := outer(nrm, nrm)
	var reflect [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			reflect[i][j] = 2.0*nn[i][j] - identity3[i][j]
		}
	}
	r2 := matMul(reflect, pose1.R)

	rt := matTranspose(pose1.R)
	diffRot := matMul(rt, r2)
	trace := diffRot[0][0] + diffRot[1][1] + diffRot[2][2]
	cosAngle := math.Max(-1.0, math.Min(1.0, (trace-1.0)/2.0))
	angle := math.Acos(cosAngle)

	if angle < 0.1 {
		return nil, math.MaxFloat64
	}

	pose2, err2 := orthogonalIteration(imageRays, tagPts, r2, pose1.T, 50)

	return &pose2, err2
}
