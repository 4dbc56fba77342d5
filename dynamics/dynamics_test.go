package dynamics

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/test"

	"github.com/kynetic-labs/rbdyn/joints"
	"github.com/kynetic-labs/rbdyn/mechanism"
	"github.com/kynetic-labs/rbdyn/spatial"
	"github.com/kynetic-labs/rbdyn/state"
)

func unitBoxInertia(mass float64) spatial.SpatialInertia {
	tensor := mat.NewSymDense(3, nil)
	tensor.SetSym(0, 0, 1)
	tensor.SetSym(1, 1, 1)
	tensor.SetSym(2, 2, 1)
	return spatial.NewSpatialInertia(spatial.NewFrame("inertia"), mass, r3.Vector{}, tensor)
}

// buildChain attaches n revolute joints about Z, each offset by a unit
// translation along its predecessor's X axis, mirroring the double-pendulum
// scenario: mass concentrated at each link with a unit rotational inertia.
func buildChain(t *testing.T, n int, gravity [3]float64) (*mechanism.Mechanism, []*mechanism.Body, []*mechanism.Joint) {
	t.Helper()
	m := mechanism.New("chain", gravity)
	bodies := make([]*mechanism.Body, n)
	jts := make([]*mechanism.Joint, n)
	parent := m.Root()
	for i := 0; i < n; i++ {
		name := "link"
		before := spatial.NewFrame(name + "/before")
		after := spatial.NewFrame(name + "/after")
		child := mechanism.NewBody("", unitBoxInertia(1))
		jointPose := spatial.NewTransform(before, parent.DefaultFrame, quat.Number{Real: 1}, r3.Vector{X: 1})
		successorPose := spatial.NewTransform(child.DefaultFrame, after, quat.Number{Real: 1}, r3.Vector{})
		j, err := m.Attach(parent, child, joints.NewRevolute(r3.Vector{Z: 1}), before, after, jointPose, successorPose, "")
		test.That(t, err, test.ShouldBeNil)
		bodies[i] = child
		jts[i] = j
		parent = child
	}
	return m, bodies, jts
}

func TestMassMatrixSymmetricAndPositiveDefinite(t *testing.T) {
	m, _, _ := buildChain(t, 3, [3]float64{0, 0, -9.81})
	s := state.New(m)
	mm, err := MassMatrix(s)
	test.That(t, err, test.ShouldBeNil)

	n, _ := mm.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			test.That(t, mm.At(i, j), test.ShouldAlmostEqual, mm.At(j, i), 1e-9)
		}
	}

	var chol mat.Cholesky
	test.That(t, chol.Factorize(mm), test.ShouldBeTrue)
}

func TestInverseDynamicsZeroMotionIsGravityTorqueOnly(t *testing.T) {
	m, _, _ := buildChain(t, 1, [3]float64{0, 0, -9.81})
	s := state.New(m)
	nv := m.NV()
	tau, _, err := InverseDynamics(s, make([]float64, nv), nil)
	test.That(t, err, test.ShouldBeNil)
	// a single link with no offset com about the joint axis (com at body
	// origin) carries no gravity torque about its own rotation axis.
	test.That(t, tau[0], test.ShouldAlmostEqual, 0, 1e-9)
}

func TestInverseDynamicsRejectsWrongSizedVDot(t *testing.T) {
	m, _, _ := buildChain(t, 2, [3]float64{})
	s := state.New(m)
	_, _, err := InverseDynamics(s, make([]float64, 1), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestForwardInverseDynamicsRoundTrip(t *testing.T) {
	m, _, j := buildChain(t, 2, [3]float64{0, 0, -9.81})
	s := state.New(m)
	test.That(t, s.SetVelocity(j[0], []float64{0.3}), test.ShouldBeNil)
	test.That(t, s.SetVelocity(j[1], []float64{-0.5}), test.ShouldBeNil)

	wantVDot := []float64{1.2, -0.7}
	tau, _, err := InverseDynamics(s, wantVDot, nil)
	test.That(t, err, test.ShouldBeNil)

	result, err := ForwardDynamics(s, tau, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(result.VDot), test.ShouldEqual, 2)
	for i, want := range wantVDot {
		test.That(t, result.VDot[i], test.ShouldAlmostEqual, want, 1e-6)
	}
}

func TestForwardDynamicsRejectsWrongSizedTau(t *testing.T) {
	m, _, _ := buildChain(t, 2, [3]float64{})
	s := state.New(m)
	_, err := ForwardDynamics(s, make([]float64, 1), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

// TestInverseDynamicsMatchesClosedFormPendulumTorque checks a single
// revolute joint carrying a point mass a fixed distance from the joint axis
// (the offset lives in successorPose, so it rotates with q, unlike
// buildChain's flywheel-style offset in jointPose) against the closed-form
// static-holding torque of a simple pendulum, tau = m*g*L*sin(q).
func TestInverseDynamicsMatchesClosedFormPendulumTorque(t *testing.T) {
	const mass, length, g = 1.0, 1.0, 9.81
	m := mechanism.New("pendulum", [3]float64{0, 0, -g})
	before := spatial.NewFrame("joint/before")
	after := spatial.NewFrame("joint/after")
	bob := mechanism.NewBody("bob", spatial.NewSpatialInertia(spatial.NewFrame("bob-inertia"), mass, r3.Vector{}, mat.NewSymDense(3, nil)))
	jointPose := spatial.NewTransform(before, m.Root().DefaultFrame, quat.Number{Real: 1}, r3.Vector{})
	successorPose := spatial.NewTransform(bob.DefaultFrame, after, quat.Number{Real: 1}, r3.Vector{Z: -length})
	j, err := m.Attach(m.Root(), bob, joints.NewRevolute(r3.Vector{Y: 1}), before, after, jointPose, successorPose, "joint")
	test.That(t, err, test.ShouldBeNil)

	for _, q := range []float64{0, 0.3, math.Pi / 2, 2.1} {
		s := state.New(m)
		test.That(t, s.SetConfiguration(j, []float64{q}), test.ShouldBeNil)
		tau, _, err := InverseDynamics(s, []float64{0}, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tau[0], test.ShouldAlmostEqual, mass*g*length*math.Sin(q), 1e-9)
	}
}

// TestForwardDynamicsSatisfiesLoopConstraint builds a four-bar-style
// mechanism (two independent revolute chains off the root joined by a
// six-constraint loop joint) and checks the KKT residual K*vdot+k of the
// loop constraint vanishes at the solved acceleration.
func TestForwardDynamicsSatisfiesLoopConstraint(t *testing.T) {
	m := mechanism.New("fourbar", [3]float64{0, 0, -9.81})
	attach := func(parent *mechanism.Body, name string) (*mechanism.Body, *mechanism.Joint) {
		before := spatial.NewFrame(name + "/before")
		after := spatial.NewFrame(name + "/after")
		child := mechanism.NewBody(name, unitBoxInertia(1))
		jointPose := spatial.NewTransform(before, parent.DefaultFrame, quat.Number{Real: 1}, r3.Vector{X: 1})
		successorPose := spatial.NewTransform(child.DefaultFrame, after, quat.Number{Real: 1}, r3.Vector{})
		j, err := m.Attach(parent, child, joints.NewRevolute(r3.Vector{Z: 1}), before, after, jointPose, successorPose, name)
		test.That(t, err, test.ShouldBeNil)
		return child, j
	}
	linkA, jA := attach(m.Root(), "linkA")
	linkB, jB := attach(linkA, "linkB")
	linkC, jC := attach(m.Root(), "linkC")
	linkD, jD := attach(linkC, "linkD")

	loopBefore := spatial.NewFrame("loop/before")
	loopAfter := spatial.NewFrame("loop/after")
	loopJointPose := spatial.NewTransform(loopBefore, linkB.DefaultFrame, quat.Number{Real: 1}, r3.Vector{})
	loopSuccessorPose := spatial.NewTransform(linkD.DefaultFrame, loopAfter, quat.Number{Real: 1}, r3.Vector{})
	_, err := m.AttachLoop(linkB, linkD, joints.Fixed{}, loopBefore, loopAfter, loopJointPose, loopSuccessorPose, "loop")
	test.That(t, err, test.ShouldBeNil)

	s := state.New(m)
	test.That(t, s.SetConfiguration(jA, []float64{0.2}), test.ShouldBeNil)
	test.That(t, s.SetConfiguration(jB, []float64{0.3}), test.ShouldBeNil)
	test.That(t, s.SetConfiguration(jC, []float64{-0.1}), test.ShouldBeNil)
	test.That(t, s.SetConfiguration(jD, []float64{0.4}), test.ShouldBeNil)
	test.That(t, s.SetVelocity(jA, []float64{0.5}), test.ShouldBeNil)
	test.That(t, s.SetVelocity(jB, []float64{-0.3}), test.ShouldBeNil)
	test.That(t, s.SetVelocity(jC, []float64{0.2}), test.ShouldBeNil)
	test.That(t, s.SetVelocity(jD, []float64{-0.4}), test.ShouldBeNil)

	tau := []float64{1, -1, 0.5, -0.5}
	result, err := ForwardDynamics(s, tau, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(result.Lambda), test.ShouldEqual, 6)

	k, kBias, err := buildConstraintJacobian(s, 0)
	test.That(t, err, test.ShouldBeNil)
	for r, row := range k {
		residual := kBias[r]
		for c, kv := range row {
			residual += kv * result.VDot[c]
		}
		test.That(t, residual, test.ShouldAlmostEqual, 0, 1e-6)
	}
}

// TestEnergyBalanceMatchesAppliedPower checks the power-balance invariant
// for a loop-free mechanism: d/dt(KE+PE) equals the power the joint
// torques deliver, tau.v, since gravity's own contribution is already
// folded into d(PE)/dt and bias/constraint forces do no work. Verified by
// a single small Euler step and a finite difference of KE+PE across it.
func TestEnergyBalanceMatchesAppliedPower(t *testing.T) {
	m, _, j := buildChain(t, 2, [3]float64{0, 0, -9.81})
	s := state.New(m)
	test.That(t, s.SetConfiguration(j[0], []float64{0.4}), test.ShouldBeNil)
	test.That(t, s.SetConfiguration(j[1], []float64{-0.3}), test.ShouldBeNil)
	test.That(t, s.SetVelocity(j[0], []float64{0.6}), test.ShouldBeNil)
	test.That(t, s.SetVelocity(j[1], []float64{-0.4}), test.ShouldBeNil)

	tau := []float64{0.5, -0.2}
	result, err := ForwardDynamics(s, tau, nil)
	test.That(t, err, test.ShouldBeNil)

	ke1, err := s.KineticEnergy()
	test.That(t, err, test.ShouldBeNil)
	pe1, err := s.GravitationalPotentialEnergy()
	test.That(t, err, test.ShouldBeNil)

	const dt = 1e-6
	test.That(t, s.SetConfiguration(j[0], []float64{0.4 + dt*0.6}), test.ShouldBeNil)
	test.That(t, s.SetConfiguration(j[1], []float64{-0.3 + dt*-0.4}), test.ShouldBeNil)
	test.That(t, s.SetVelocity(j[0], []float64{0.6 + dt*result.VDot[0]}), test.ShouldBeNil)
	test.That(t, s.SetVelocity(j[1], []float64{-0.4 + dt*result.VDot[1]}), test.ShouldBeNil)

	ke2, err := s.KineticEnergy()
	test.That(t, err, test.ShouldBeNil)
	pe2, err := s.GravitationalPotentialEnergy()
	test.That(t, err, test.ShouldBeNil)

	dEnergy := (ke2 + pe2 - ke1 - pe1) / dt
	power := tau[0]*0.6 + tau[1]*-0.4
	test.That(t, dEnergy, test.ShouldAlmostEqual, power, 1e-4)
}

// TestForwardDynamicsWithBaumgarteGainStillSatisfiesStabilizedConstraint
// builds the same loop-closed mechanism as
// TestForwardDynamicsSatisfiesLoopConstraint, where the two chains land the
// loop joint's frame_after at different poses (simulating the kind of drift
// a caller integrating a loop-closed mechanism over time would see), and
// checks that a nonzero Baumgarte gain changes the solve yet the resulting
// acceleration still satisfies the gain-stabilized residual exactly.
func TestForwardDynamicsWithBaumgarteGainStillSatisfiesStabilizedConstraint(t *testing.T) {
	m := mechanism.New("fourbar", [3]float64{0, 0, -9.81})
	attach := func(parent *mechanism.Body, name string) (*mechanism.Body, *mechanism.Joint) {
		before := spatial.NewFrame(name + "/before")
		after := spatial.NewFrame(name + "/after")
		child := mechanism.NewBody(name, unitBoxInertia(1))
		jointPose := spatial.NewTransform(before, parent.DefaultFrame, quat.Number{Real: 1}, r3.Vector{X: 1})
		successorPose := spatial.NewTransform(child.DefaultFrame, after, quat.Number{Real: 1}, r3.Vector{})
		j, err := m.Attach(parent, child, joints.NewRevolute(r3.Vector{Z: 1}), before, after, jointPose, successorPose, name)
		test.That(t, err, test.ShouldBeNil)
		return child, j
	}
	linkA, jA := attach(m.Root(), "linkA")
	linkB, jB := attach(linkA, "linkB")
	linkC, jC := attach(m.Root(), "linkC")
	linkD, jD := attach(linkC, "linkD")

	loopBefore := spatial.NewFrame("loop/before")
	loopAfter := spatial.NewFrame("loop/after")
	loopJointPose := spatial.NewTransform(loopBefore, linkB.DefaultFrame, quat.Number{Real: 1}, r3.Vector{})
	loopSuccessorPose := spatial.NewTransform(linkD.DefaultFrame, loopAfter, quat.Number{Real: 1}, r3.Vector{})
	_, err := m.AttachLoop(linkB, linkD, joints.Fixed{}, loopBefore, loopAfter, loopJointPose, loopSuccessorPose, "loop")
	test.That(t, err, test.ShouldBeNil)

	s := state.New(m)
	test.That(t, s.SetConfiguration(jA, []float64{0.2}), test.ShouldBeNil)
	test.That(t, s.SetConfiguration(jB, []float64{0.3}), test.ShouldBeNil)
	test.That(t, s.SetConfiguration(jC, []float64{-0.1}), test.ShouldBeNil)
	test.That(t, s.SetConfiguration(jD, []float64{0.4}), test.ShouldBeNil)

	tau := []float64{1, -1, 0.5, -0.5}
	unstabilized, err := ForwardDynamics(s, tau, nil)
	test.That(t, err, test.ShouldBeNil)

	const gain = 10.0
	stabilized, err := ForwardDynamics(s, tau, nil, WithBaumgarteGain(gain))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stabilized.VDot[0], test.ShouldNotEqual, unstabilized.VDot[0])

	k, kBias, err := buildConstraintJacobian(s, gain)
	test.That(t, err, test.ShouldBeNil)
	for r, row := range k {
		residual := kBias[r]
		for c, kv := range row {
			residual += kv * stabilized.VDot[c]
		}
		test.That(t, residual, test.ShouldAlmostEqual, 0, 1e-6)
	}
}

// TestMassMatrixInvariantUnderFixedJointRemoval checks that collapsing a
// fixed joint via RemoveFixedJoints does not change the mass matrix seen by
// the remaining, unaffected degrees of freedom: rigidly welding a body's
// inertia into its parent is a physical no-op.
func TestMassMatrixInvariantUnderFixedJointRemoval(t *testing.T) {
	m := mechanism.New("withfixed", [3]float64{0, 0, -9.81})
	before1 := spatial.NewFrame("j1/before")
	after1 := spatial.NewFrame("j1/after")
	link1 := mechanism.NewBody("link1", unitBoxInertia(1))
	jointPose1 := spatial.NewTransform(before1, m.Root().DefaultFrame, quat.Number{Real: 1}, r3.Vector{X: 1})
	successorPose1 := spatial.NewTransform(link1.DefaultFrame, after1, quat.Number{Real: 1}, r3.Vector{})
	j1, err := m.Attach(m.Root(), link1, joints.NewRevolute(r3.Vector{Z: 1}), before1, after1, jointPose1, successorPose1, "j1")
	test.That(t, err, test.ShouldBeNil)

	beforeF := spatial.NewFrame("jf/before")
	afterF := spatial.NewFrame("jf/after")
	fixedBody := mechanism.NewBody("fixedbody", unitBoxInertia(0.5))
	jointPoseF := spatial.NewTransform(beforeF, link1.DefaultFrame, quat.Number{Real: 1}, r3.Vector{X: 0.5})
	successorPoseF := spatial.NewTransform(fixedBody.DefaultFrame, afterF, quat.Number{Real: 1}, r3.Vector{})
	_, err = m.Attach(link1, fixedBody, joints.Fixed{}, beforeF, afterF, jointPoseF, successorPoseF, "jf")
	test.That(t, err, test.ShouldBeNil)

	sBefore := state.New(m)
	test.That(t, sBefore.SetConfiguration(j1, []float64{0.3}), test.ShouldBeNil)
	mmBefore, err := MassMatrix(sBefore)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, m.RemoveFixedJoints(), test.ShouldBeNil)
	sAfter := state.New(m)
	test.That(t, sAfter.SetConfiguration(j1, []float64{0.3}), test.ShouldBeNil)
	mmAfter, err := MassMatrix(sAfter)
	test.That(t, err, test.ShouldBeNil)

	n, _ := mmBefore.Dims()
	na, _ := mmAfter.Dims()
	test.That(t, na, test.ShouldEqual, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			test.That(t, mmAfter.At(i, j), test.ShouldAlmostEqual, mmBefore.At(i, j), 1e-9)
		}
	}
}

func TestForwardDynamicsWithExternalWrenchChangesResult(t *testing.T) {
	m, bodies, _ := buildChain(t, 1, [3]float64{0, 0, -9.81})
	s := state.New(m)
	nv := m.NV()
	tau := make([]float64, nv)

	baseline, err := ForwardDynamics(s, tau, nil)
	test.That(t, err, test.ShouldBeNil)

	ext := map[*mechanism.Body]spatial.Wrench{
		bodies[0]: spatial.NewWrench(bodies[0].DefaultFrame, m.Root().DefaultFrame, m.Root().DefaultFrame,
			r3.Vector{Z: 5}, r3.Vector{}),
	}
	withExt, err := ForwardDynamics(s, tau, ext)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, withExt.VDot[0], test.ShouldNotEqual, baseline.VDot[0])
}
