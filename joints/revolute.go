package joints

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kynetic-labs/rbdyn/spatial"
)

// Revolute is a one-DOF rotational joint about a fixed axis expressed in
// frame_after. nq=1, nv=1, nc=5.
type Revolute struct {
	Axis r3.Vector
}

// NewRevolute builds a Revolute joint about the given axis, which need not
// be pre-normalized.
func NewRevolute(axis r3.Vector) *Revolute {
	return &Revolute{Axis: axis.Normalize()}
}

func (r *Revolute) Kind() Kind { return KindRevolute }
func (r *Revolute) NQ() int    { return 1 }
func (r *Revolute) NV() int    { return 1 }
func (r *Revolute) NC() int    { return 5 }

func (r *Revolute) Transform(before, after spatial.Frame, q []float64) spatial.Transform {
	theta := q[0]
	s, c := math.Sincos(theta / 2)
	rot := quat.Number{Real: c, Imag: r.Axis.X * s, Jmag: r.Axis.Y * s, Kmag: r.Axis.Z * s}
	return spatial.NewTransform(after, before, rot, r3.Vector{})
}

func (r *Revolute) Twist(before, after spatial.Frame, q, v []float64) spatial.Twist {
	return spatial.NewTwist(after, before, after, r.Axis.Mul(v[0]), r3.Vector{})
}

func (r *Revolute) BiasAcceleration(before, after spatial.Frame, q, v []float64) spatial.SpatialAcceleration {
	return spatial.NewSpatialAcceleration(after, before, after, r3.Vector{}, r3.Vector{})
}

func (r *Revolute) MotionSubspace(after spatial.Frame, q []float64) *mat.Dense {
	s := mat.NewDense(6, 1, nil)
	setCol6(s, 0, r.Axis, r3.Vector{})
	return s
}

func (r *Revolute) ConstraintWrenchSubspace(after spatial.Frame, q []float64) *mat.Dense {
	b, c := orthonormalComplement(r.Axis)
	t := mat.NewDense(6, 5, nil)
	setCol6(t, 0, b, r3.Vector{})
	setCol6(t, 1, c, r3.Vector{})
	setCol6(t, 2, r3.Vector{}, r3.Vector{X: 1})
	setCol6(t, 3, r3.Vector{}, r3.Vector{Y: 1})
	setCol6(t, 4, r3.Vector{}, r3.Vector{Z: 1})
	return t
}

func (r *Revolute) ZeroConfiguration(q []float64)                    { q[0] = 0 }
func (r *Revolute) RandConfiguration(q []float64, rng *rand.Rand)    { q[0] = (rng.Float64()*2 - 1) * math.Pi }
func (r *Revolute) NormalizeConfiguration(q []float64) error         { return nil }
func (r *Revolute) VelocityToConfigurationDerivative(q, v, qdot []float64) { qdot[0] = v[0] }
func (r *Revolute) ConfigurationDerivativeToVelocity(q, qdot, v []float64) { v[0] = qdot[0] }

var _ Model = (*Revolute)(nil)
