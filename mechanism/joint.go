package mechanism

import (
	"github.com/google/uuid"

	"github.com/kynetic-labs/rbdyn/joints"
	"github.com/kynetic-labs/rbdyn/spatial"
)

// Joint is a mechanism-level joint: identity, the predecessor and successor
// bodies it connects, the joint model governing their relative motion, the
// two joint-local frames frame_before/frame_after, the fixed placements of
// those frames on the predecessor/successor, and (for spanning-tree joints)
// the configuration/velocity index ranges this joint owns in a
// MechanismState's q and v vectors.
type Joint struct {
	Name  string
	Model joints.Model

	Predecessor *Body
	Successor   *Body

	FrameBefore spatial.Frame // on the predecessor
	FrameAfter  spatial.Frame // on the successor

	// JointPose places FrameBefore on the predecessor: FrameBefore -> Predecessor.DefaultFrame.
	JointPose spatial.Transform
	// SuccessorPose places the successor's own default frame on FrameAfter: Successor.DefaultFrame -> FrameAfter.
	SuccessorPose spatial.Transform

	// IsLoop is true for a non-tree joint closing a kinematic loop. Loop
	// joints do not own configuration/velocity indices; their motion is
	// fully determined by the tree and they contribute only a constraint
	// wrench subspace to forward dynamics.
	IsLoop bool

	QIndex, QLen int
	VIndex, VLen int
}

func newJointName(name string) string {
	if name == "" {
		return uuid.NewString()
	}
	return name
}

// QSlice returns this joint's configuration segment of q.
func (j *Joint) QSlice(q []float64) []float64 { return q[j.QIndex : j.QIndex+j.QLen] }

// VSlice returns this joint's velocity segment of v.
func (j *Joint) VSlice(v []float64) []float64 { return v[j.VIndex : j.VIndex+j.VLen] }
