package joints

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kynetic-labs/rbdyn/rbutil"
	"github.com/kynetic-labs/rbdyn/rerr"
	"github.com/kynetic-labs/rbdyn/spatial"
)

// SE3Floating is a six-degree-of-freedom free joint whose orientation is
// stored as a full 3x3 rotation matrix (row-major, 9 entries) rather than a
// quaternion or SPQuat, for collaborators that prefer to avoid quaternion
// algebra entirely. Configuration is (R[0..8], px,py,pz), nq=12; velocity is
// the body-fixed twist, nv=6, nc=0. NormalizeConfiguration re-orthonormalizes
// the matrix via Gram-Schmidt.
type SE3Floating struct{}

func (SE3Floating) Kind() Kind { return KindSE3Floating }
func (SE3Floating) NQ() int    { return 12 }
func (SE3Floating) NV() int    { return 6 }
func (SE3Floating) NC() int    { return 0 }

func se3Rows(q []float64) (r0, r1, r2 r3.Vector) {
	return r3.Vector{X: q[0], Y: q[1], Z: q[2]},
		r3.Vector{X: q[3], Y: q[4], Z: q[5]},
		r3.Vector{X: q[6], Y: q[7], Z: q[8]}
}

func se3ToQuat(q []float64) quat.Number {
	r0, r1, r2 := se3Rows(q)
	m00, m01, m02 := r0.X, r0.Y, r0.Z
	m10, m11, m12 := r1.X, r1.Y, r1.Z
	m20, m21, m22 := r2.X, r2.Y, r2.Z
	tr := m00 + m11 + m22
	var w, x, y, z float64
	if tr > 0 {
		s := math.Sqrt(rbutil.Clamp(tr+1, 0, math.Inf(1))) * 2
		w = 0.25 * s
		x = (m21 - m12) / s
		y = (m02 - m20) / s
		z = (m10 - m01) / s
	} else if m00 > m11 && m00 > m22 {
		s := math.Sqrt(rbutil.Clamp(1+m00-m11-m22, 0, math.Inf(1))) * 2
		w = (m21 - m12) / s
		x = 0.25 * s
		y = (m01 + m10) / s
		z = (m02 + m20) / s
	} else if m11 > m22 {
		s := math.Sqrt(rbutil.Clamp(1+m11-m00-m22, 0, math.Inf(1))) * 2
		w = (m02 - m20) / s
		x = (m01 + m10) / s
		y = 0.25 * s
		z = (m12 + m21) / s
	} else {
		s := math.Sqrt(rbutil.Clamp(1+m22-m00-m11, 0, math.Inf(1))) * 2
		w = (m10 - m01) / s
		x = (m02 + m20) / s
		y = (m12 + m21) / s
		z = 0.25 * s
	}
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

func (SE3Floating) Transform(before, after spatial.Frame, q []float64) spatial.Transform {
	pos := r3.Vector{X: q[9], Y: q[10], Z: q[11]}
	return spatial.NewTransform(after, before, se3ToQuat(q), pos)
}

func (SE3Floating) Twist(before, after spatial.Frame, q, v []float64) spatial.Twist {
	return spatial.NewTwist(after, before, after,
		r3.Vector{X: v[0], Y: v[1], Z: v[2]},
		r3.Vector{X: v[3], Y: v[4], Z: v[5]})
}

func (SE3Floating) BiasAcceleration(before, after spatial.Frame, q, v []float64) spatial.SpatialAcceleration {
	return spatial.NewSpatialAcceleration(after, before, after, r3.Vector{}, r3.Vector{})
}

func (SE3Floating) MotionSubspace(after spatial.Frame, q []float64) *mat.Dense {
	s := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		s.Set(i, i, 1)
	}
	return s
}

func (SE3Floating) ConstraintWrenchSubspace(after spatial.Frame, q []float64) *mat.Dense {
	return mat.NewDense(6, 0, nil)
}

func (SE3Floating) ZeroConfiguration(q []float64) {
	for i := range q {
		q[i] = 0
	}
	q[0], q[4], q[8] = 1, 1, 1
}

func (SE3Floating) RandConfiguration(q []float64, rng *rand.Rand) {
	qf := QuaternionFloating{}
	tmp := make([]float64, 7)
	qf.RandConfiguration(tmp, rng)
	rot := quat.Number{Real: tmp[0], Imag: tmp[1], Jmag: tmp[2], Kmag: tmp[3]}
	r0, r1, r2 := quatRows(rot)
	q[0], q[1], q[2] = r0.X, r0.Y, r0.Z
	q[3], q[4], q[5] = r1.X, r1.Y, r1.Z
	q[6], q[7], q[8] = r2.X, r2.Y, r2.Z
	q[9], q[10], q[11] = tmp[4], tmp[5], tmp[6]
}

func quatRows(q quat.Number) (r0, r1, r2 r3.Vector) {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return r3.Vector{X: 1 - 2*(y*y+z*z), Y: 2 * (x*y - z*w), Z: 2 * (x*z + y*w)},
		r3.Vector{X: 2 * (x*y + z*w), Y: 1 - 2*(x*x+z*z), Z: 2 * (y*z - x*w)},
		r3.Vector{X: 2 * (x*z - y*w), Y: 2 * (y*z + x*w), Z: 1 - 2*(x*x+y*y)}
}

// NormalizeConfiguration re-orthonormalizes the rotation matrix columns via
// Gram-Schmidt.
func (SE3Floating) NormalizeConfiguration(q []float64) error {
	r0, r1, r2 := se3Rows(q)
	c0 := r3.Vector{X: r0.X, Y: r1.X, Z: r2.X}
	c1 := r3.Vector{X: r0.Y, Y: r1.Y, Z: r2.Y}
	c2 := r3.Vector{X: r0.Z, Y: r1.Z, Z: r2.Z}
	n0 := c0.Norm()
	if n0 == 0 {
		return rerr.NewConfigurationOutOfRangeError("se3-floating: degenerate rotation matrix")
	}
	c0 = c0.Mul(1 / n0)
	c1 = c1.Sub(c0.Mul(c0.Dot(c1)))
	n1 := c1.Norm()
	if n1 == 0 {
		return rerr.NewConfigurationOutOfRangeError("se3-floating: degenerate rotation matrix")
	}
	c1 = c1.Mul(1 / n1)
	c2 = c0.Cross(c1)
	q[0], q[3], q[6] = c0.X, c0.Y, c0.Z
	q[1], q[4], q[7] = c1.X, c1.Y, c1.Z
	q[2], q[5], q[8] = c2.X, c2.Y, c2.Z
	return nil
}

func (SE3Floating) VelocityToConfigurationDerivative(q, v, qdot []float64) {
	r0, r1, r2 := se3Rows(q)
	omega := r3.Vector{X: v[0], Y: v[1], Z: v[2]}
	// Ṙ = R * skew(ω); row i of Ṙ is row i of R crossed appropriately:
	// (R*skew(ω)) row_i = row_i(R) x ω  (since skew(ω)*x = ω x x acting on
	// columns, and rows of R*skew(ω) are rows of R transformed the same way).
	rdot0 := omega.Cross(r0).Mul(-1)
	rdot1 := omega.Cross(r1).Mul(-1)
	rdot2 := omega.Cross(r2).Mul(-1)
	qdot[0], qdot[1], qdot[2] = rdot0.X, rdot0.Y, rdot0.Z
	qdot[3], qdot[4], qdot[5] = rdot1.X, rdot1.Y, rdot1.Z
	qdot[6], qdot[7], qdot[8] = rdot2.X, rdot2.Y, rdot2.Z

	lin := r3.Vector{X: v[3], Y: v[4], Z: v[5]}
	pdot := r3.Vector{
		X: r0.Dot(lin),
		Y: r1.Dot(lin),
		Z: r2.Dot(lin),
	}
	// ṗ = R*v expressed via rows: since r0,r1,r2 are rows of R, R*v has
	// components row_i . v.
	qdot[9], qdot[10], qdot[11] = pdot.X, pdot.Y, pdot.Z
}

func (SE3Floating) ConfigurationDerivativeToVelocity(q, qdot, v []float64) {
	r0, r1, r2 := se3Rows(q)
	rdot0, rdot1, rdot2 := se3Rows(qdot)

	// Since row_k(Ṙ) = row_k(R) x ω for body-fixed ω, summing
	// rdot_k x r_k over the orthonormal row basis recovers 2ω.
	omega := rdot0.Cross(r0).Add(rdot1.Cross(r1)).Add(rdot2.Cross(r2)).Mul(0.5)
	v[0], v[1], v[2] = omega.X, omega.Y, omega.Z

	pdot := r3.Vector{X: qdot[9], Y: qdot[10], Z: qdot[11]}
	lin := r3.Vector{X: r0.X*pdot.X + r1.X*pdot.Y + r2.X*pdot.Z,
		Y: r0.Y*pdot.X + r1.Y*pdot.Y + r2.Y*pdot.Z,
		Z: r0.Z*pdot.X + r1.Z*pdot.Y + r2.Z*pdot.Z}
	v[3], v[4], v[5] = lin.X, lin.Y, lin.Z
}

var _ Model = SE3Floating{}
