package joints

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kynetic-labs/rbdyn/spatial"
)

// Fixed is a zero-DOF joint: frame_after is rigidly bolted to frame_before.
// nq=0, nv=0, nc=6.
type Fixed struct{}

func (Fixed) Kind() Kind { return KindFixed }
func (Fixed) NQ() int    { return 0 }
func (Fixed) NV() int    { return 0 }
func (Fixed) NC() int    { return 6 }

func (Fixed) Transform(before, after spatial.Frame, q []float64) spatial.Transform {
	return spatial.NewTransform(after, before, quat.Number{Real: 1}, r3.Vector{})
}

func (Fixed) Twist(before, after spatial.Frame, q, v []float64) spatial.Twist {
	return spatial.NewTwist(after, before, after, r3.Vector{}, r3.Vector{})
}

func (Fixed) BiasAcceleration(before, after spatial.Frame, q, v []float64) spatial.SpatialAcceleration {
	return spatial.NewSpatialAcceleration(after, before, after, r3.Vector{}, r3.Vector{})
}

func (Fixed) MotionSubspace(after spatial.Frame, q []float64) *mat.Dense {
	return mat.NewDense(6, 0, nil)
}

func (Fixed) ConstraintWrenchSubspace(after spatial.Frame, q []float64) *mat.Dense {
	t := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		t.Set(i, i, 1)
	}
	return t
}

func (Fixed) ZeroConfiguration(q []float64)                            {}
func (Fixed) RandConfiguration(q []float64, rng *rand.Rand)            {}
func (Fixed) NormalizeConfiguration(q []float64) error                 { return nil }
func (Fixed) VelocityToConfigurationDerivative(q, v, qdot []float64)   {}
func (Fixed) ConfigurationDerivativeToVelocity(q, qdot, v []float64)   {}

var _ Model = Fixed{}
