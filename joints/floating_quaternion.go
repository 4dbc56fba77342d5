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

// QuaternionFloating is the six-degree-of-freedom free joint parametrized
// by a unit quaternion plus position: q = (qw,qx,qy,qz,px,py,pz), nq=7.
// Velocity v = (ωx,ωy,ωz,vx,vy,vz) is the body-fixed twist of the
// successor relative to the predecessor, nv=6, nc=0. This is the canonical
// floating joint used when a mechanism's floating base does not otherwise
// specify a parametrization.
type QuaternionFloating struct{}

func (QuaternionFloating) Kind() Kind { return KindQuaternionFloating }
func (QuaternionFloating) NQ() int    { return 7 }
func (QuaternionFloating) NV() int    { return 6 }
func (QuaternionFloating) NC() int    { return 0 }

func configQuat(q []float64) quat.Number {
	return quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
}

func (QuaternionFloating) Transform(before, after spatial.Frame, q []float64) spatial.Transform {
	rot := configQuat(q)
	pos := r3.Vector{X: q[4], Y: q[5], Z: q[6]}
	return spatial.NewTransform(after, before, rot, pos)
}

func (QuaternionFloating) Twist(before, after spatial.Frame, q, v []float64) spatial.Twist {
	return spatial.NewTwist(after, before, after,
		r3.Vector{X: v[0], Y: v[1], Z: v[2]},
		r3.Vector{X: v[3], Y: v[4], Z: v[5]})
}

func (QuaternionFloating) BiasAcceleration(before, after spatial.Frame, q, v []float64) spatial.SpatialAcceleration {
	return spatial.NewSpatialAcceleration(after, before, after, r3.Vector{}, r3.Vector{})
}

func (QuaternionFloating) MotionSubspace(after spatial.Frame, q []float64) *mat.Dense {
	s := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		s.Set(i, i, 1)
	}
	return s
}

func (QuaternionFloating) ConstraintWrenchSubspace(after spatial.Frame, q []float64) *mat.Dense {
	return mat.NewDense(6, 0, nil)
}

func (QuaternionFloating) ZeroConfiguration(q []float64) {
	q[0], q[1], q[2], q[3], q[4], q[5], q[6] = 1, 0, 0, 0, 0, 0, 0
}

func (QuaternionFloating) RandConfiguration(q []float64, rng *rand.Rand) {
	u1, u2, u3 := rng.Float64(), rng.Float64(), rng.Float64()
	q[0] = math.Sqrt(1-u1) * math.Sin(2*math.Pi*u2)
	q[1] = math.Sqrt(1-u1) * math.Cos(2*math.Pi*u2)
	q[2] = math.Sqrt(u1) * math.Sin(2*math.Pi*u3)
	q[3] = math.Sqrt(u1) * math.Cos(2*math.Pi*u3)
	q[4] = rng.Float64()*2 - 1
	q[5] = rng.Float64()*2 - 1
	q[6] = rng.Float64()*2 - 1
}

func (QuaternionFloating) NormalizeConfiguration(q []float64) error {
	n := math.Sqrt(rbutil.Square(q[0]) + rbutil.Square(q[1]) + rbutil.Square(q[2]) + rbutil.Square(q[3]))
	if rbutil.NearlyEqual(n, 0, 1e-12) || math.IsNaN(n) {
		return rerr.NewConfigurationOutOfRangeError("quaternion-floating: zero quaternion cannot be normalized")
	}
	q[0] /= n
	q[1] /= n
	q[2] /= n
	q[3] /= n
	return nil
}

// VelocityToConfigurationDerivative implements the quaternion kinematic
// equation q̇ = 1/2 q ⊗ (0,ω) and ṗ = R(q)·v, consistent with v being the
// body-fixed twist returned by Twist.
func (QuaternionFloating) VelocityToConfigurationDerivative(q, v, qdot []float64) {
	quatQ := configQuat(q)
	omega := quat.Number{Real: 0, Imag: v[0], Jmag: v[1], Kmag: v[2]}
	dq := quat.Scale(0.5, quat.Mul(quatQ, omega))
	qdot[0], qdot[1], qdot[2], qdot[3] = dq.Real, dq.Imag, dq.Jmag, dq.Kmag

	lin := r3.Vector{X: v[3], Y: v[4], Z: v[5]}
	pdot := rotateByQuat(quatQ, lin)
	qdot[4], qdot[5], qdot[6] = pdot.X, pdot.Y, pdot.Z
}

// ConfigurationDerivativeToVelocity inverts VelocityToConfigurationDerivative:
// ω = 2·conj(q)⊗q̇ and v_linear = R(q)^T·ṗ.
func (QuaternionFloating) ConfigurationDerivativeToVelocity(q, qdot, v []float64) {
	quatQ := configQuat(q)
	dq := quat.Number{Real: qdot[0], Imag: qdot[1], Jmag: qdot[2], Kmag: qdot[3]}
	omega := quat.Scale(2, quat.Mul(quat.Conj(quatQ), dq))
	v[0], v[1], v[2] = omega.Imag, omega.Jmag, omega.Kmag

	pdot := r3.Vector{X: qdot[4], Y: qdot[5], Z: qdot[6]}
	lin := rotateByQuat(quat.Conj(quatQ), pdot)
	v[3], v[4], v[5] = lin.X, lin.Y, lin.Z
}

func rotateByQuat(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Real: 0, Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

var _ Model = QuaternionFloating{}
