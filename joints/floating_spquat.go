package joints

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kynetic-labs/rbdyn/spatial"
)

// SPQuatFloating is a six-degree-of-freedom free joint whose orientation is
// parametrized by the stereographic projection of a unit quaternion: a
// three-vector s with q_w=(1-|s|^2)/(1+|s|^2), q_xyz=2s/(1+|s|^2). Every
// finite s maps to a unit quaternion, so unlike QuaternionFloating this
// parametrization never needs renormalization; it is singular only at
// q_w=-1 (the limit |s| -> infinity, the identity rotation with the opposite
// quaternion sign), which no finite s reaches. Configuration is (sx,sy,sz,px,py,pz), nq=6;
// velocity is the body-fixed twist, nv=6, nc=0.
type SPQuatFloating struct{}

func (SPQuatFloating) Kind() Kind { return KindSPQuatFloating }
func (SPQuatFloating) NQ() int    { return 6 }
func (SPQuatFloating) NV() int    { return 6 }
func (SPQuatFloating) NC() int    { return 0 }

func spquatToQuat(s r3.Vector) quat.Number {
	n := s.Dot(s)
	d := 1 + n
	return quat.Number{Real: (1 - n) / d, Imag: 2 * s.X / d, Jmag: 2 * s.Y / d, Kmag: 2 * s.Z / d}
}

func (SPQuatFloating) Transform(before, after spatial.Frame, q []float64) spatial.Transform {
	s := r3.Vector{X: q[0], Y: q[1], Z: q[2]}
	pos := r3.Vector{X: q[3], Y: q[4], Z: q[5]}
	return spatial.NewTransform(after, before, spquatToQuat(s), pos)
}

func (SPQuatFloating) Twist(before, after spatial.Frame, q, v []float64) spatial.Twist {
	return spatial.NewTwist(after, before, after,
		r3.Vector{X: v[0], Y: v[1], Z: v[2]},
		r3.Vector{X: v[3], Y: v[4], Z: v[5]})
}

func (SPQuatFloating) BiasAcceleration(before, after spatial.Frame, q, v []float64) spatial.SpatialAcceleration {
	return spatial.NewSpatialAcceleration(after, before, after, r3.Vector{}, r3.Vector{})
}

func (SPQuatFloating) MotionSubspace(after spatial.Frame, q []float64) *mat.Dense {
	s := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		s.Set(i, i, 1)
	}
	return s
}

func (SPQuatFloating) ConstraintWrenchSubspace(after spatial.Frame, q []float64) *mat.Dense {
	return mat.NewDense(6, 0, nil)
}

func (SPQuatFloating) ZeroConfiguration(q []float64) {
	q[0], q[1], q[2], q[3], q[4], q[5] = 0, 0, 0, 0, 0, 0
}

func (SPQuatFloating) RandConfiguration(q []float64, rng *rand.Rand) {
	for i := 0; i < 6; i++ {
		q[i] = (rng.Float64()*2 - 1) * 2
	}
}

// NormalizeConfiguration is a no-op: every finite s already corresponds to
// a unit quaternion by construction.
func (SPQuatFloating) NormalizeConfiguration(q []float64) error { return nil }

func (SPQuatFloating) VelocityToConfigurationDerivative(q, v, qdot []float64) {
	s := r3.Vector{X: q[0], Y: q[1], Z: q[2]}
	quatQ := spquatToQuat(s)
	omega := quat.Number{Real: 0, Imag: v[0], Jmag: v[1], Kmag: v[2]}
	dq := quat.Scale(0.5, quat.Mul(quatQ, omega))

	d := 1 + quatQ.Real
	qim := r3.Vector{X: quatQ.Imag, Y: quatQ.Jmag, Z: quatQ.Kmag}
	dqim := r3.Vector{X: dq.Imag, Y: dq.Jmag, Z: dq.Kmag}
	sdot := dqim.Mul(1 / d).Sub(qim.Mul(dq.Real / (d * d)))
	qdot[0], qdot[1], qdot[2] = sdot.X, sdot.Y, sdot.Z

	lin := r3.Vector{X: v[3], Y: v[4], Z: v[5]}
	pdot := rotateByQuat(quatQ, lin)
	qdot[3], qdot[4], qdot[5] = pdot.X, pdot.Y, pdot.Z
}

func (SPQuatFloating) ConfigurationDerivativeToVelocity(q, qdot, v []float64) {
	s := r3.Vector{X: q[0], Y: q[1], Z: q[2]}
	sdot := r3.Vector{X: qdot[0], Y: qdot[1], Z: qdot[2]}
	n := s.Dot(s)
	d := 1 + n
	sdotDotS := s.Dot(sdot)

	dqw := -4 * sdotDotS / (d * d)
	dqim := sdot.Mul(d).Sub(s.Mul(2 * sdotDotS)).Mul(2 / (d * d))
	dq := quat.Number{Real: dqw, Imag: dqim.X, Jmag: dqim.Y, Kmag: dqim.Z}

	quatQ := spquatToQuat(s)
	omega := quat.Scale(2, quat.Mul(quat.Conj(quatQ), dq))
	v[0], v[1], v[2] = omega.Imag, omega.Jmag, omega.Kmag

	pdot := r3.Vector{X: qdot[3], Y: qdot[4], Z: qdot[5]}
	lin := rotateByQuat(quat.Conj(quatQ), pdot)
	v[3], v[4], v[5] = lin.X, lin.Y, lin.Z
}

var _ Model = SPQuatFloating{}
