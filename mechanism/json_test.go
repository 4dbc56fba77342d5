package mechanism

import (
	"testing"

	"go.viam.com/test"
)

func TestLoadResolvesOutOfOrderJoints(t *testing.T) {
	raw := []byte(`{
		"name": "arm",
		"gravity": [0, 0, -9.81],
		"bodies": [
			{"name": "link2", "mass": 1, "inertia": [1,1,1,0,0,0]},
			{"name": "link1", "mass": 1, "inertia": [1,1,1,0,0,0]}
		],
		"joints": [
			{"name": "joint2", "parent": "link1", "child": "link2", "kind": "revolute", "axis": [0,0,1]},
			{"name": "joint1", "parent": "world", "child": "link1", "kind": "revolute", "axis": [0,0,1]}
		]
	}`)

	m, err := Load(raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Name, test.ShouldEqual, "arm")
	test.That(t, len(m.Bodies()), test.ShouldEqual, 3)
	test.That(t, m.NV(), test.ShouldEqual, 2)
	test.That(t, m.GravityVec, test.ShouldResemble, [3]float64{0, 0, -9.81})
}

func TestLoadRejectsUnknownChildBody(t *testing.T) {
	raw := []byte(`{
		"name": "arm",
		"bodies": [],
		"joints": [
			{"name": "joint1", "parent": "world", "child": "ghost", "kind": "revolute", "axis": [0,0,1]}
		]
	}`)
	_, err := Load(raw)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadRejectsCyclicParentChain(t *testing.T) {
	raw := []byte(`{
		"name": "arm",
		"bodies": [
			{"name": "link1", "mass": 1},
			{"name": "link2", "mass": 1}
		],
		"joints": [
			{"name": "joint1", "parent": "link2", "child": "link1", "kind": "fixed"},
			{"name": "joint2", "parent": "link1", "child": "link2", "kind": "fixed"}
		]
	}`)
	_, err := Load(raw)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadRejectsUnsupportedKind(t *testing.T) {
	raw := []byte(`{
		"name": "arm",
		"bodies": [
			{"name": "link1", "mass": 1}
		],
		"joints": [
			{"name": "joint1", "parent": "world", "child": "link1", "kind": "screw"}
		]
	}`)
	_, err := Load(raw)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("RBDYN_TEST_MASS", "3.5")
	raw := []byte(`{
		"name": "arm",
		"bodies": [
			{"name": "link1", "mass": ${RBDYN_TEST_MASS}}
		],
		"joints": [
			{"name": "joint1", "parent": "world", "child": "link1", "kind": "fixed"}
		]
	}`)
	m, err := Load(raw)
	test.That(t, err, test.ShouldBeNil)
	link1 := m.Bodies()[1]
	test.That(t, link1.Inertia.Mass, test.ShouldAlmostEqual, 3.5, 1e-9)
}
