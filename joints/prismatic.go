package joints

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kynetic-labs/rbdyn/spatial"
)

// Prismatic is a one-DOF translational joint along a fixed axis expressed
// in frame_after. nq=1, nv=1, nc=5.
type Prismatic struct {
	Axis r3.Vector
}

// NewPrismatic builds a Prismatic joint along the given axis, which need
// not be pre-normalized.
func NewPrismatic(axis r3.Vector) *Prismatic {
	return &Prismatic{Axis: axis.Normalize()}
}

func (p *Prismatic) Kind() Kind { return KindPrismatic }
func (p *Prismatic) NQ() int    { return 1 }
func (p *Prismatic) NV() int    { return 1 }
func (p *Prismatic) NC() int    { return 5 }

func (p *Prismatic) Transform(before, after spatial.Frame, q []float64) spatial.Transform {
	return spatial.NewTransform(after, before, quat.Number{Real: 1}, p.Axis.Mul(q[0]))
}

func (p *Prismatic) Twist(before, after spatial.Frame, q, v []float64) spatial.Twist {
	return spatial.NewTwist(after, before, after, r3.Vector{}, p.Axis.Mul(v[0]))
}

func (p *Prismatic) BiasAcceleration(before, after spatial.Frame, q, v []float64) spatial.SpatialAcceleration {
	return spatial.NewSpatialAcceleration(after, before, after, r3.Vector{}, r3.Vector{})
}

func (p *Prismatic) MotionSubspace(after spatial.Frame, q []float64) *mat.Dense {
	s := mat.NewDense(6, 1, nil)
	setCol6(s, 0, r3.Vector{}, p.Axis)
	return s
}

func (p *Prismatic) ConstraintWrenchSubspace(after spatial.Frame, q []float64) *mat.Dense {
	b, c := orthonormalComplement(p.Axis)
	t := mat.NewDense(6, 5, nil)
	setCol6(t, 0, r3.Vector{}, b)
	setCol6(t, 1, r3.Vector{}, c)
	setCol6(t, 2, r3.Vector{X: 1}, r3.Vector{})
	setCol6(t, 3, r3.Vector{Y: 1}, r3.Vector{})
	setCol6(t, 4, r3.Vector{Z: 1}, r3.Vector{})
	return t
}

func (p *Prismatic) ZeroConfiguration(q []float64)                 { q[0] = 0 }
func (p *Prismatic) RandConfiguration(q []float64, rng *rand.Rand) { q[0] = rng.Float64()*2 - 1 }
func (p *Prismatic) NormalizeConfiguration(q []float64) error      { return nil }
func (p *Prismatic) VelocityToConfigurationDerivative(q, v, qdot []float64) { qdot[0] = v[0] }
func (p *Prismatic) ConfigurationDerivativeToVelocity(q, qdot, v []float64) { v[0] = qdot[0] }

var _ Model = (*Prismatic)(nil)
