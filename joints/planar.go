package joints

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kynetic-labs/rbdyn/spatial"
)

// Planar is a three-DOF joint: translation in a plane plus rotation about
// the plane's normal, all expressed in frame_after. Configuration is
// (x, y, theta); nq=3, nv=3, nc=3.
type Planar struct {
	Normal, X, Y r3.Vector // orthonormal triad; Normal is the rotation axis
}

// NewPlanar builds a Planar joint with the given plane normal; X and Y are
// derived to form a right-handed orthonormal triad with it.
func NewPlanar(normal r3.Vector) *Planar {
	n := normal.Normalize()
	x, y := orthonormalComplement(n)
	return &Planar{Normal: n, X: x, Y: y}
}

func (p *Planar) Kind() Kind { return KindPlanar }
func (p *Planar) NQ() int    { return 3 }
func (p *Planar) NV() int    { return 3 }
func (p *Planar) NC() int    { return 3 }

func (p *Planar) Transform(before, after spatial.Frame, q []float64) spatial.Transform {
	x, y, theta := q[0], q[1], q[2]
	s, c := math.Sincos(theta / 2)
	rot := quat.Number{Real: c, Imag: p.Normal.X * s, Jmag: p.Normal.Y * s, Kmag: p.Normal.Z * s}
	trans := p.X.Mul(x).Add(p.Y.Mul(y))
	return spatial.NewTransform(after, before, rot, trans)
}

func (p *Planar) Twist(before, after spatial.Frame, q, v []float64) spatial.Twist {
	angular := p.Normal.Mul(v[2])
	linear := p.X.Mul(v[0]).Add(p.Y.Mul(v[1]))
	return spatial.NewTwist(after, before, after, angular, linear)
}

func (p *Planar) BiasAcceleration(before, after spatial.Frame, q, v []float64) spatial.SpatialAcceleration {
	return spatial.NewSpatialAcceleration(after, before, after, r3.Vector{}, r3.Vector{})
}

func (p *Planar) MotionSubspace(after spatial.Frame, q []float64) *mat.Dense {
	s := mat.NewDense(6, 3, nil)
	setCol6(s, 0, r3.Vector{}, p.X)
	setCol6(s, 1, r3.Vector{}, p.Y)
	setCol6(s, 2, p.Normal, r3.Vector{})
	return s
}

func (p *Planar) ConstraintWrenchSubspace(after spatial.Frame, q []float64) *mat.Dense {
	t := mat.NewDense(6, 3, nil)
	setCol6(t, 0, p.X, r3.Vector{})
	setCol6(t, 1, p.Y, r3.Vector{})
	setCol6(t, 2, r3.Vector{}, p.Normal)
	return t
}

func (p *Planar) ZeroConfiguration(q []float64) { q[0], q[1], q[2] = 0, 0, 0 }

func (p *Planar) RandConfiguration(q []float64, rng *rand.Rand) {
	q[0] = rng.Float64()*2 - 1
	q[1] = rng.Float64()*2 - 1
	q[2] = (rng.Float64()*2 - 1) * math.Pi
}

func (p *Planar) NormalizeConfiguration(q []float64) error { return nil }

func (p *Planar) VelocityToConfigurationDerivative(q, v, qdot []float64) {
	qdot[0], qdot[1], qdot[2] = v[0], v[1], v[2]
}

func (p *Planar) ConfigurationDerivativeToVelocity(q, qdot, v []float64) {
	v[0], v[1], v[2] = qdot[0], qdot[1], qdot[2]
}

var _ Model = (*Planar)(nil)
