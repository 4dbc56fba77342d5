package mechanism

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/kynetic-labs/rbdyn/joints"
	"github.com/kynetic-labs/rbdyn/rerr"
	"github.com/kynetic-labs/rbdyn/spatial"
)

// Mechanism is a rooted tree of bodies connected by spanning-tree joints,
// plus any number of non-tree loop joints. The tree is tracked in a
// gonum/graph directed graph (node i corresponds to body index i); every
// reindex rebuilds it from the current bodies/joints and runs a topological
// sort over it to order TreeJoints, which is what every forward/backward
// recursive sweep in the dynamics algorithms relies on: a predecessor must
// always appear before its successor. All geometry and state live on Body
// and Joint.
//
// Every construction call (Attach, AttachLoop, RemoveFixedJoints,
// ChangeJointType) that changes the configuration/velocity index layout
// bumps Version. A MechanismState built against an older version is stale
// and must be rebuilt.
type Mechanism struct {
	Name string
	// GravityVec is the world-frame gravitational acceleration vector
	// (e.g. {0,0,-9.81}), used by InverseDynamics and ForwardDynamics.
	GravityVec [3]float64
	tree       *simple.DirectedGraph

	bodies []*Body
	joints []*Joint // spanning-tree joints, kept in topological order by reindex
	loops  []*Joint

	nq, nv  int
	Version uint64
}

// New creates a mechanism with a single root body carrying no inertia.
func New(name string, gravity [3]float64) *Mechanism {
	root := NewBody(name+"/world", spatial.Zero(spatial.NewFrame(name+"/world")))
	root.index = 0
	m := &Mechanism{
		Name:       name,
		tree:       simple.NewDirectedGraph(),
		bodies:     []*Body{root},
		GravityVec: gravity,
	}
	m.tree.AddNode(simple.Node(0))
	return m
}

// Root returns the mechanism's root body.
func (m *Mechanism) Root() *Body { return m.bodies[0] }

// Bodies returns all bodies in attach order (index order).
func (m *Mechanism) Bodies() []*Body { return m.bodies }

// TreeJoints returns the spanning-tree joints in topological order.
func (m *Mechanism) TreeJoints() []*Joint { return m.joints }

// LoopJoints returns the non-tree loop-closing joints.
func (m *Mechanism) LoopJoints() []*Joint { return m.loops }

// NQ returns the total configuration dimension over spanning-tree joints.
func (m *Mechanism) NQ() int { return m.nq }

// NV returns the total velocity dimension over spanning-tree joints.
func (m *Mechanism) NV() int { return m.nv }

// Attach adds successor as a new spanning-tree body, connected to an
// already-attached predecessor by a new joint. successor must not already
// belong to any mechanism. jointPose places frameBefore on predecessor;
// successorPose places successor's own default frame on frameAfter.
func (m *Mechanism) Attach(predecessor *Body, successor *Body, model joints.Model,
	frameBefore, frameAfter spatial.Frame, jointPose, successorPose spatial.Transform, name string,
) (*Joint, error) {
	if !predecessor.IsAttached() || m.bodies[predecessor.index] != predecessor {
		return nil, rerr.NewTopologyError("attach: predecessor is not a member of this mechanism")
	}
	if successor.IsAttached() {
		return nil, rerr.NewTopologyError("attach: successor is already attached; use AttachLoop to close a loop")
	}
	if !jointPose.From.Equal(frameBefore) || !jointPose.To.Equal(predecessor.DefaultFrame) {
		return nil, rerr.NewFrameMismatchError("attach joint_pose", predecessor.DefaultFrame.Name(), jointPose.To.Name())
	}
	if !successorPose.To.Equal(frameAfter) || !successorPose.From.Equal(successor.DefaultFrame) {
		return nil, rerr.NewFrameMismatchError("attach successor_pose", frameAfter.Name(), successorPose.To.Name())
	}

	successor.index = len(m.bodies)
	m.bodies = append(m.bodies, successor)

	j := &Joint{
		Name: newJointName(name), Model: model,
		Predecessor: predecessor, Successor: successor,
		FrameBefore: frameBefore, FrameAfter: frameAfter,
		JointPose: jointPose, SuccessorPose: successorPose,
	}
	successor.parentJoint = j
	predecessor.children = append(predecessor.children, successor.index)
	m.joints = append(m.joints, j)

	m.reindex()
	return j, nil
}

// AttachLoop adds a non-tree joint between two bodies that already belong
// to the mechanism, closing a kinematic loop. Loop joints own no
// configuration/velocity indices; their model must have NC() > 0 so it
// contributes a constraint wrench subspace to forward dynamics.
func (m *Mechanism) AttachLoop(predecessor, successor *Body, model joints.Model,
	frameBefore, frameAfter spatial.Frame, jointPose, successorPose spatial.Transform, name string,
) (*Joint, error) {
	if !predecessor.IsAttached() || m.bodies[predecessor.index] != predecessor {
		return nil, rerr.NewTopologyError("attach_loop: predecessor is not a member of this mechanism")
	}
	if !successor.IsAttached() || m.bodies[successor.index] != successor {
		return nil, rerr.NewTopologyError("attach_loop: successor is not a member of this mechanism")
	}
	if model.NC() == 0 {
		return nil, rerr.NewRedundantConstraintError("attach_loop: joint model transmits no constraint wrench (nc=0)")
	}
	j := &Joint{
		Name: newJointName(name), Model: model,
		Predecessor: predecessor, Successor: successor,
		FrameBefore: frameBefore, FrameAfter: frameAfter,
		JointPose: jointPose, SuccessorPose: successorPose,
		IsLoop: true,
	}
	m.loops = append(m.loops, j)
	return j, nil
}

// RemoveFixedJoints collapses every Fixed spanning-tree joint, merging its
// successor body's inertia (and auxiliary frames) into its predecessor and
// re-parenting the successor's children directly onto the predecessor. The
// root body is never removed. Bumps Version.
func (m *Mechanism) RemoveFixedJoints() error {
	changed := true
	for changed {
		changed = false
		for i, j := range m.joints {
			if j.Model.Kind() != joints.KindFixed {
				continue
			}
			for _, lj := range m.loops {
				if lj.Predecessor == j.Successor || lj.Successor == j.Successor {
					return rerr.NewTopologyError("remove_fixed_joints: cannot merge a body that terminates a loop joint")
				}
			}

			pred, succ := j.Predecessor, j.Successor
			fixedPose, err := spatial.Compose(j.JointPose, spatial.MustCompose(j.Model.Transform(j.FrameBefore, j.FrameAfter, nil), j.SuccessorPose))
			if err != nil {
				return errors.Wrap(err, "remove_fixed_joints: compose")
			}
			mergedInertia, err := succ.Inertia.TransformedBy(fixedPose)
			if err != nil {
				return errors.Wrap(err, "remove_fixed_joints: transform inertia")
			}
			combined, err := pred.Inertia.Add(mergedInertia)
			if err != nil {
				return errors.Wrap(err, "remove_fixed_joints: combine inertia")
			}
			pred.Inertia = combined

			for _, aux := range succ.AuxFrames {
				toDefault, err := spatial.Compose(fixedPose, aux.ToDefault)
				if err != nil {
					return errors.Wrap(err, "remove_fixed_joints: aux frame")
				}
				pred.AuxFrames = append(pred.AuxFrames, AuxFrame{Frame: aux.Frame, ToDefault: toDefault})
			}

			for _, childIdx := range succ.children {
				cj := m.bodies[childIdx].parentJoint
				cj.Predecessor = pred
				cj.JointPose = spatial.MustCompose(fixedPose, cj.JointPose)
			}

			m.removeBody(i, succ.index)
			changed = true
			break
		}
	}
	m.rebuildChildren()
	m.reindex()
	return nil
}

// removeBody deletes spanning-tree joint at joints[jointIdx] and the body
// it introduced, compacting indices. Child-index bookkeeping is left to a
// rebuildChildren pass, and the graph to reindex's resyncTree, since
// compaction shifts every later body's index.
func (m *Mechanism) removeBody(jointIdx, bodyIdx int) {
	m.joints = append(m.joints[:jointIdx], m.joints[jointIdx+1:]...)
	m.bodies = append(m.bodies[:bodyIdx], m.bodies[bodyIdx+1:]...)
	for newIdx := bodyIdx; newIdx < len(m.bodies); newIdx++ {
		m.bodies[newIdx].index = newIdx
	}
}

// rebuildChildren recomputes every body's child-index list from the
// current spanning-tree joints, recovering from the index shifts that
// body removal causes.
func (m *Mechanism) rebuildChildren() {
	for _, b := range m.bodies {
		b.children = nil
	}
	for _, j := range m.joints {
		j.Predecessor.children = append(j.Predecessor.children, j.Successor.index)
	}
}

// ChangeJointType replaces a spanning-tree joint's model, typically to
// lock (Fixed) or free up a degree of freedom, and reassigns
// configuration/velocity indices. Bumps Version.
func (m *Mechanism) ChangeJointType(j *Joint, model joints.Model) error {
	found := false
	for _, tj := range m.joints {
		if tj == j {
			found = true
			break
		}
	}
	if !found {
		return rerr.NewTopologyError("change_joint_type: joint is not a spanning-tree member of this mechanism")
	}
	j.Model = model
	m.reindex()
	return nil
}

// resyncTree rebuilds the graph from scratch against the current
// bodies/joints, which is simpler and safer than patching edges in place
// after an index-compacting removal.
func (m *Mechanism) resyncTree() {
	m.tree = simple.NewDirectedGraph()
	for i := range m.bodies {
		m.tree.AddNode(simple.Node(int64(i)))
	}
	for _, j := range m.joints {
		m.tree.SetEdge(m.tree.NewEdge(simple.Node(int64(j.Predecessor.index)), simple.Node(int64(j.Successor.index))))
	}
}

// reindex rebuilds the tree graph, orders the spanning-tree joints by a
// topological sort over it, and reassigns configuration/velocity indices
// along that order.
func (m *Mechanism) reindex() {
	m.resyncTree()

	order, err := topo.Sort(m.tree)
	if err != nil {
		panic("mechanism: spanning tree is cyclic: " + err.Error())
	}
	sorted := make([]*Joint, 0, len(m.joints))
	for _, n := range order {
		idx := int(n.ID())
		if idx == m.Root().index {
			continue
		}
		if pj := m.bodies[idx].parentJoint; pj != nil {
			sorted = append(sorted, pj)
		}
	}
	m.joints = sorted

	q, v := 0, 0
	for _, j := range m.joints {
		j.QIndex, j.QLen = q, j.Model.NQ()
		j.VIndex, j.VLen = v, j.Model.NV()
		q += j.QLen
		v += j.VLen
	}
	m.nq, m.nv = q, v
	m.Version++
}
