package rerr

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestFrameMismatchErrorAsType(t *testing.T) {
	err := NewFrameMismatchError("spatial.Compose", "a", "b")
	var fm *FrameMismatchError
	test.That(t, errors.As(err, &fm), test.ShouldBeTrue)
	test.That(t, fm.Op, test.ShouldEqual, "spatial.Compose")
}

func TestStaleStateErrorCarriesVersions(t *testing.T) {
	err := NewStaleStateError(1, 2)
	var stale *StaleStateError
	test.That(t, errors.As(err, &stale), test.ShouldBeTrue)
	test.That(t, stale.WantVersion, test.ShouldEqual, uint64(1))
	test.That(t, stale.GotVersion, test.ShouldEqual, uint64(2))
}

func TestDimensionMismatchErrorMessage(t *testing.T) {
	err := NewDimensionMismatchError("dynamics.InverseDynamics", 3, 1, 2, 1)
	test.That(t, err.Error(), test.ShouldContainSubstring, "want 3x1")
	test.That(t, err.Error(), test.ShouldContainSubstring, "got 2x1")
}
