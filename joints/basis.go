package joints

import "github.com/golang/geo/r3"

// orthonormalComplement returns two unit vectors b, c such that (axis, b, c)
// is a right-handed orthonormal triad, given axis is already unit length.
func orthonormalComplement(axis r3.Vector) (r3.Vector, r3.Vector) {
	ref := r3.Vector{X: 1, Y: 0, Z: 0}
	if abs(axis.X) > 0.9 {
		ref = r3.Vector{X: 0, Y: 1, Z: 0}
	}
	b := axis.Cross(ref).Normalize()
	c := axis.Cross(b).Normalize()
	return b, c
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func setCol6(m interface {
	Set(i, j int, v float64)
}, col int, angular, linear r3.Vector) {
	m.Set(0, col, angular.X)
	m.Set(1, col, angular.Y)
	m.Set(2, col, angular.Z)
	m.Set(3, col, linear.X)
	m.Set(4, col, linear.Y)
	m.Set(5, col, linear.Z)
}
