// Package joints implements the per-type joint kinematics described by the
// mechanism model: configuration/velocity sizing, joint transform, joint
// twist, bias acceleration, motion and constraint-wrench subspaces, and
// configuration handling (zero/random/normalize, velocity<->configuration
// derivative maps). Each joint type implements the Model interface and
// reports a Kind tag; a mechanism sweep calls a joint's Model once per joint
// rather than once per scalar.
package joints

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/kynetic-labs/rbdyn/spatial"
)

// Kind tags which joint variant a Model implements.
type Kind int

const (
	KindRevolute Kind = iota
	KindPrismatic
	KindPlanar
	KindFixed
	KindQuaternionFloating
	KindSPQuatFloating
	KindSE3Floating
)

func (k Kind) String() string {
	switch k {
	case KindRevolute:
		return "revolute"
	case KindPrismatic:
		return "prismatic"
	case KindPlanar:
		return "planar"
	case KindFixed:
		return "fixed"
	case KindQuaternionFloating:
		return "quaternion-floating"
	case KindSPQuatFloating:
		return "spquat-floating"
	case KindSE3Floating:
		return "se3-floating"
	default:
		return "unknown"
	}
}

// Model is the per-type joint behavior. A single Model value is reused by
// every joint of that type in a mechanism; the frames a particular joint
// occurrence connects (frame_before on the predecessor, frame_after on the
// successor) are supplied as arguments rather than stored on the Model, so
// the same Model can back many joints.
//
// All methods are side-effect-free except the ones explicitly documented to
// write into a caller-supplied slice in place.
type Model interface {
	Kind() Kind
	NQ() int
	NV() int
	NC() int // constraint dimension, 6-NV for non-loop joint types

	// Transform returns the transform frame_after -> frame_before implied
	// by configuration q (length NQ()).
	Transform(before, after spatial.Frame, q []float64) spatial.Transform

	// Twist returns the twist of `after` relative to `before`, expressed in
	// `after`, implied by configuration q and velocity v (length NV()).
	Twist(before, after spatial.Frame, q, v []float64) spatial.Twist

	// BiasAcceleration returns the part of the joint's spatial acceleration
	// independent of v̇ (the Coriolis-like term for non-constant motion
	// subspaces; zero for joints whose subspace doesn't depend on q).
	BiasAcceleration(before, after spatial.Frame, q, v []float64) spatial.SpatialAcceleration

	// MotionSubspace returns the 6xNV() matrix (angular rows 0-2, linear
	// rows 3-5) whose columns span the joint's instantaneous twist space,
	// expressed in `after`.
	MotionSubspace(after spatial.Frame, q []float64) *mat.Dense

	// ConstraintWrenchSubspace returns the 6xNC() matrix spanning wrenches
	// the joint transmits, expressed in `after`.
	ConstraintWrenchSubspace(after spatial.Frame, q []float64) *mat.Dense

	// ZeroConfiguration writes the identity configuration into q in place.
	ZeroConfiguration(q []float64)
	// RandConfiguration writes a random configuration into q in place.
	RandConfiguration(q []float64, rng *rand.Rand)
	// NormalizeConfiguration renormalizes q in place (e.g. quaternion to
	// unit length); returns ConfigurationOutOfRangeError if not possible.
	NormalizeConfiguration(q []float64) error

	// VelocityToConfigurationDerivative writes q̇ (length NQ()) from q and v.
	VelocityToConfigurationDerivative(q, v, qdotOut []float64)
	// ConfigurationDerivativeToVelocity writes v (length NV()) from q and q̇.
	ConfigurationDerivativeToVelocity(q, qdot, vOut []float64)
}
