package perspective

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"texswap/pkg/geometry"
)

// unitSquare are the texture-space corners matched to TL, TR, BR, BL.
var unitSquare = [4]geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}

// ComputeHomography solves the direct linear transform mapping the unit
// square onto quad. The image points are normalised (centroid at the origin,
// mean distance sqrt 2) before the SVD. The null vector is taken as the right
// singular vector of the smallest singular value and scaled so h22 = 1.
// Degenerate quads yield the identity.
func (m *Mapper) ComputeHomography(quad geometry.Quad) geometry.Homography {
	dst := quad.Points()
	norm, ok := normalizer(dst[:])
	if !ok {
		return geometry.IdentityHomography()
	}

	a := mat.NewDense(8, 9, nil)
	for i, s := range unitSquare {
		d, _ := norm.Apply(dst[i])
		u, v := s.X, s.Y
		a.SetRow(2*i, []float64{u, v, 1, 0, 0, 0, -d.X * u, -d.X * v, -d.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, u, v, 1, -d.Y * u, -d.Y * v, -d.Y})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return geometry.IdentityHomography()
	}
	// a unique solution needs rank 8
	sv := svd.Values(nil)
	if sv[len(sv)-1] < 1e-12*sv[0] {
		return geometry.IdentityHomography()
	}

	var v mat.Dense
	svd.VTo(&v)
	var hn geometry.Matrix3
	for i := 0; i < 9; i++ {
		hn[i] = v.At(i, 8)
	}

	denorm, _ := geometry.Invert3x3(norm)
	h := denorm.Mul(hn)
	if math.Abs(h[8]) > m.params.DegenerateDet {
		s := h[8]
		for i := range h {
			h[i] /= s
		}
	}

	out, _ := geometry.NewHomography(h)
	return out
}

// normalizer returns the similarity transform taking pts to zero mean and
// mean distance sqrt(2) from the origin.
func normalizer(pts []geometry.Point2D) (geometry.Matrix3, bool) {
	c := geometry.Centroid(pts)
	mean := 0.0
	for _, p := range pts {
		mean += p.Distance(c)
	}
	mean /= float64(len(pts))
	if mean < 1e-9 {
		return geometry.Identity3(), false
	}
	s := math.Sqrt2 / mean
	return geometry.Matrix3{
		s, 0, -s * c.X,
		0, s, -s * c.Y,
		0, 0, 1,
	}, true
}
