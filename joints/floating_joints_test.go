package joints

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/test"

	"github.com/kynetic-labs/rbdyn/spatial"
)

func TestQuaternionFloatingSizingAndZero(t *testing.T) {
	f := QuaternionFloating{}
	test.That(t, f.NQ(), test.ShouldEqual, 7)
	test.That(t, f.NV(), test.ShouldEqual, 6)
	test.That(t, f.NC(), test.ShouldEqual, 0)

	q := make([]float64, f.NQ())
	f.ZeroConfiguration(q)
	test.That(t, q[0], test.ShouldAlmostEqual, 1, 1e-9)
	for _, x := range q[1:] {
		test.That(t, x, test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func TestQuaternionFloatingVelocityRoundTrip(t *testing.T) {
	f := QuaternionFloating{}
	q := []float64{0.8, 0.1, -0.2, 0.3, 1, 2, 3}
	test.That(t, f.NormalizeConfiguration(q), test.ShouldBeNil)

	v := []float64{0.1, -0.2, 0.3, 1, -1, 0.5}
	qdot := make([]float64, f.NQ())
	f.VelocityToConfigurationDerivative(q, v, qdot)
	back := make([]float64, f.NV())
	f.ConfigurationDerivativeToVelocity(q, qdot, back)
	for i := range v {
		test.That(t, back[i], test.ShouldAlmostEqual, v[i], 1e-9)
	}
}

func TestQuaternionFloatingNormalizeRejectsZero(t *testing.T) {
	f := QuaternionFloating{}
	q := []float64{0, 0, 0, 0, 0, 0, 0}
	test.That(t, f.NormalizeConfiguration(q), test.ShouldNotBeNil)
}

func TestQuaternionFloatingRandProducesUnitQuat(t *testing.T) {
	f := QuaternionFloating{}
	rng := rand.New(rand.NewSource(7))
	q := make([]float64, f.NQ())
	f.RandConfiguration(q, rng)
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	test.That(t, n, test.ShouldAlmostEqual, 1, 1e-9)
}

func TestQuaternionFloatingTwistMatchesVelocity(t *testing.T) {
	f := QuaternionFloating{}
	before, after := spatial.NewFrame("before"), spatial.NewFrame("after")
	v := []float64{1, 2, 3, 4, 5, 6}
	tw := f.Twist(before, after, nil, v)
	test.That(t, tw.Angular, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, tw.Linear, test.ShouldResemble, r3.Vector{X: 4, Y: 5, Z: 6})
}

func TestSPQuatFloatingVelocityRoundTrip(t *testing.T) {
	f := SPQuatFloating{}
	q := []float64{0.1, -0.2, 0.05, 1, 2, 3}
	v := []float64{0.2, -0.1, 0.3, 0.5, -0.5, 1}
	qdot := make([]float64, f.NQ())
	f.VelocityToConfigurationDerivative(q, v, qdot)
	back := make([]float64, f.NV())
	f.ConfigurationDerivativeToVelocity(q, qdot, back)
	for i := range v {
		test.That(t, back[i], test.ShouldAlmostEqual, v[i], 1e-6)
	}
}

func TestSPQuatFloatingIsAlwaysUnitQuaternion(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	f := SPQuatFloating{}
	q := make([]float64, f.NQ())
	f.RandConfiguration(q, rng)
	s := r3.Vector{X: q[0], Y: q[1], Z: q[2]}
	quatQ := spquatToQuat(s)
	n := quat.Abs(quatQ)
	test.That(t, n, test.ShouldAlmostEqual, 1, 1e-9)
}

func TestSE3FloatingSizingAndZero(t *testing.T) {
	f := SE3Floating{}
	test.That(t, f.NQ(), test.ShouldEqual, 12)
	test.That(t, f.NV(), test.ShouldEqual, 6)

	q := make([]float64, f.NQ())
	f.ZeroConfiguration(q)
	tf := f.Transform(spatial.NewFrame("before"), spatial.NewFrame("after"), q)
	test.That(t, tf.Rotation.Real, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, tf.Translation, test.ShouldResemble, r3.Vector{})
}

func TestSE3FloatingVelocityRoundTrip(t *testing.T) {
	f := SE3Floating{}
	rng := rand.New(rand.NewSource(11))
	q := make([]float64, f.NQ())
	f.RandConfiguration(q, rng)

	v := []float64{0.1, -0.2, 0.3, 1, -1, 0.5}
	qdot := make([]float64, f.NQ())
	f.VelocityToConfigurationDerivative(q, v, qdot)
	back := make([]float64, f.NV())
	f.ConfigurationDerivativeToVelocity(q, qdot, back)
	for i := range v {
		test.That(t, back[i], test.ShouldAlmostEqual, v[i], 1e-9)
	}
}

func TestSE3FloatingNormalizeOrthonormalizes(t *testing.T) {
	f := SE3Floating{}
	// slightly skewed, non-orthonormal rows
	q := []float64{1, 0.1, 0, 0, 1, 0, 0, 0.1, 1, 0, 0, 0}
	test.That(t, f.NormalizeConfiguration(q), test.ShouldBeNil)
	r0, r1, r2 := se3Rows(q)
	test.That(t, r0.Norm(), test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, r1.Norm(), test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, r0.Dot(r1), test.ShouldAlmostEqual, 0, 1e-9)
	cross := r0.Cross(r1)
	test.That(t, r2.X, test.ShouldAlmostEqual, cross.X, 1e-9)
	test.That(t, r2.Y, test.ShouldAlmostEqual, cross.Y, 1e-9)
	test.That(t, r2.Z, test.ShouldAlmostEqual, cross.Z, 1e-9)
}
