package mechanism

import (
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/test"

	"github.com/kynetic-labs/rbdyn/joints"
	"github.com/kynetic-labs/rbdyn/spatial"
)

func unitInertia(mass float64) spatial.SpatialInertia {
	tensor := mat.NewSymDense(3, nil)
	tensor.SetSym(0, 0, 1)
	tensor.SetSym(1, 1, 1)
	tensor.SetSym(2, 2, 1)
	return spatial.NewSpatialInertia(spatial.NewFrame("inertia"), mass, r3.Vector{}, tensor)
}

func attachRevolute(t *testing.T, m *Mechanism, parent *Body, name string) (*Body, *Joint) {
	t.Helper()
	before := spatial.NewFrame(name + "/before")
	after := spatial.NewFrame(name + "/after")
	child := NewBody(name, unitInertia(1))
	jointPose := spatial.NewTransform(before, parent.DefaultFrame, quatIdentity(), r3.Vector{X: 1})
	successorPose := spatial.NewTransform(child.DefaultFrame, after, quatIdentity(), r3.Vector{})
	j, err := m.Attach(parent, child, joints.NewRevolute(r3.Vector{Z: 1}), before, after, jointPose, successorPose, name)
	test.That(t, err, test.ShouldBeNil)
	return child, j
}

func quatIdentity() quat.Number { return quat.Number{Real: 1} }

func TestAttachBuildsSpanningTree(t *testing.T) {
	m := New("robot", [3]float64{0, 0, -9.81})
	link1, _ := attachRevolute(t, m, m.Root(), "joint1")
	_, _ = attachRevolute(t, m, link1, "joint2")

	test.That(t, len(m.Bodies()), test.ShouldEqual, 3)
	test.That(t, len(m.TreeJoints()), test.ShouldEqual, 2)
	test.That(t, m.NQ(), test.ShouldEqual, 2)
	test.That(t, m.NV(), test.ShouldEqual, 2)
	test.That(t, link1.ParentJoint().Predecessor, test.ShouldEqual, m.Root())
}

func TestAttachRejectsDoubleAttach(t *testing.T) {
	m := New("robot", [3]float64{})
	link1, _ := attachRevolute(t, m, m.Root(), "joint1")

	before := spatial.NewFrame("x/before")
	after := spatial.NewFrame("x/after")
	jointPose := spatial.NewTransform(before, m.Root().DefaultFrame, quatIdentity(), r3.Vector{})
	successorPose := spatial.NewTransform(link1.DefaultFrame, after, quatIdentity(), r3.Vector{})
	_, err := m.Attach(m.Root(), link1, joints.Fixed{}, before, after, jointPose, successorPose, "x")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAttachLoopRequiresNonzeroNC(t *testing.T) {
	m := New("robot", [3]float64{})
	link1, _ := attachRevolute(t, m, m.Root(), "joint1")
	link2, _ := attachRevolute(t, m, link1, "joint2")

	before := spatial.NewFrame("loop/before")
	after := spatial.NewFrame("loop/after")
	_, err := m.AttachLoop(link1, link2, joints.QuaternionFloating{}, before, after, spatial.Identity(before), spatial.Identity(after), "loop")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRemoveFixedJointsMergesInertiaAndReparents(t *testing.T) {
	m := New("robot", [3]float64{})
	link1, j1 := attachRevolute(t, m, m.Root(), "joint1")
	_ = j1

	before := spatial.NewFrame("fixed/before")
	after := spatial.NewFrame("fixed/after")
	fixedChild := NewBody("bracket", unitInertia(2))
	jointPose := spatial.NewTransform(before, link1.DefaultFrame, quatIdentity(), r3.Vector{X: 1})
	successorPose := spatial.NewTransform(fixedChild.DefaultFrame, after, quatIdentity(), r3.Vector{})
	_, err := m.Attach(link1, fixedChild, joints.Fixed{}, before, after, jointPose, successorPose, "bracketJoint")
	test.That(t, err, test.ShouldBeNil)

	grandchild, _ := attachRevolute(t, m, fixedChild, "joint3")
	beforeVersion := m.Version

	test.That(t, m.RemoveFixedJoints(), test.ShouldBeNil)
	test.That(t, m.Version > beforeVersion, test.ShouldBeTrue)
	test.That(t, len(m.Bodies()), test.ShouldEqual, 3) // root, link1, grandchild
	test.That(t, grandchild.ParentJoint().Predecessor, test.ShouldEqual, link1)
	test.That(t, link1.Inertia.Mass, test.ShouldAlmostEqual, 3.0, 1e-9) // 1 + 2
}

func TestChangeJointTypeReindexes(t *testing.T) {
	m := New("robot", [3]float64{})
	link1, j1 := attachRevolute(t, m, m.Root(), "joint1")
	_, _ = attachRevolute(t, m, link1, "joint2")
	test.That(t, m.NV(), test.ShouldEqual, 2)

	test.That(t, m.ChangeJointType(j1, joints.Fixed{}), test.ShouldBeNil)
	test.That(t, m.NV(), test.ShouldEqual, 1)
	test.That(t, j1.VLen, test.ShouldEqual, 0)
}

func TestChangeJointTypeRejectsForeignJoint(t *testing.T) {
	m1 := New("robot1", [3]float64{})
	_, j1 := attachRevolute(t, m1, m1.Root(), "joint1")

	m2 := New("robot2", [3]float64{})
	err := m2.ChangeJointType(j1, joints.Fixed{})
	test.That(t, err, test.ShouldNotBeNil)
}
