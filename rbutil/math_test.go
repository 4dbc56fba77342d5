package rbutil

import (
	"testing"

	"go.viam.com/test"
)

func TestSquare(t *testing.T) {
	test.That(t, Square(3), test.ShouldAlmostEqual, 9.0, 1e-9)
	test.That(t, Square(-2), test.ShouldAlmostEqual, 4.0, 1e-9)
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(5, 0, 10), test.ShouldAlmostEqual, 5.0, 1e-9)
	test.That(t, Clamp(-1, 0, 10), test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, Clamp(11, 0, 10), test.ShouldAlmostEqual, 10.0, 1e-9)
}

func TestNearlyEqual(t *testing.T) {
	test.That(t, NearlyEqual(1.0, 1.0000001, 1e-6), test.ShouldBeTrue)
	test.That(t, NearlyEqual(1.0, 1.1, 1e-6), test.ShouldBeFalse)
}

func TestConfigurationDistance(t *testing.T) {
	test.That(t, ConfigurationDistance([]float64{0, 0}, []float64{3, 4}), test.ShouldAlmostEqual, 5.0, 1e-9)
	test.That(t, ConfigurationDistance([]float64{1, 2, 3}, []float64{1, 2, 3}), test.ShouldAlmostEqual, 0.0, 1e-9)
}
