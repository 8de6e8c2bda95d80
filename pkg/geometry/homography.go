package geometry

import "math"

// DegenerateDeterminant is the determinant magnitude below which a 3x3 matrix
// is treated as non-invertible.
const DegenerateDeterminant = 1e-10

// Matrix3 is a row-major 3x3 matrix:
// [0 1 2]
// [3 4 5]
// [6 7 8]
type Matrix3 [9]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Matrix3 {
	return Matrix3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Determinant returns the determinant of m.
func (m Matrix3) Determinant() float64 {
	a, b, c, d, e, f, g, h, i := m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8]
	return a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
}

// Mul returns m * other.
func (m Matrix3) Mul(other Matrix3) Matrix3 {
	var out Matrix3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = m[r*3]*other[c] + m[r*3+1]*other[3+c] + m[r*3+2]*other[6+c]
		}
	}
	return out
}

// Apply maps a point through the projective transform. The second return is
// false when the point maps to infinity.
func (m Matrix3) Apply(p Point2D) (Point2D, bool) {
	w := m[6]*p.X + m[7]*p.Y + m[8]
	if w == 0 {
		return Point2D{}, false
	}
	return Point2D{
		X: (m[0]*p.X + m[1]*p.Y + m[2]) / w,
		Y: (m[3]*p.X + m[4]*p.Y + m[5]) / w,
	}, true
}

// Invert3x3 inverts m via adjugate and determinant. When |det| is below
// DegenerateDeterminant it returns the identity and false.
func Invert3x3(m Matrix3) (Matrix3, bool) {
	a, b, c, d, e, f, g, h, i := m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8]

	det := m.Determinant()
	if math.Abs(det) < DegenerateDeterminant {
		return Identity3(), false
	}

	return Matrix3{
		(e*i - f*h) / det, (c*h - b*i) / det, (b*f - c*e) / det,
		(f*g - d*i) / det, (a*i - c*g) / det, (c*d - a*f) / det,
		(d*h - e*g) / det, (b*g - a*h) / det, (a*e - b*d) / det,
	}, true
}

// Homography pairs a projective transform with its inverse. Matrix maps
// normalized texture coordinates in [0,1]² to image pixels; Inverse maps
// image pixels back to texture space.
type Homography struct {
	Matrix  Matrix3 `json:"matrix"`
	Inverse Matrix3 `json:"inverse"`
}

// IdentityHomography is the documented fallback for degenerate geometry.
func IdentityHomography() Homography {
	return Homography{Matrix: Identity3(), Inverse: Identity3()}
}

// NewHomography builds a Homography from its forward matrix. Invertible is
// false when the inverse fell back to identity.
func NewHomography(m Matrix3) (h Homography, invertible bool) {
	inv, ok := Invert3x3(m)
	return Homography{Matrix: m, Inverse: inv}, ok
}
