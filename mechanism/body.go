// Package mechanism implements the topological container described by the
// mechanism data model: a root body, a spanning tree of joints, and a set
// of non-tree loop joints. Construction (attach, remove_fixed_joints,
// change_joint_type) is only valid before a state is built against the
// mechanism; every construction operation that reassigns configuration or
// velocity indices bumps a version counter that MechanismState uses to
// detect staleness.
package mechanism

import (
	"github.com/google/uuid"

	"github.com/kynetic-labs/rbdyn/spatial"
)

// AuxFrame is a body-fixed frame other than the body's default frame, with
// its fixed transform to that default frame.
type AuxFrame struct {
	Frame     spatial.Frame
	ToDefault spatial.Transform // AuxFrame -> body's default frame
}

// Body is a rigid body: identity, spatial inertia expressed in its default
// body-fixed frame, and any number of auxiliary body-fixed frames. The root
// body of a mechanism carries no inertia.
type Body struct {
	Name         string
	DefaultFrame spatial.Frame
	Inertia      spatial.SpatialInertia
	AuxFrames    []AuxFrame

	// index is this body's position in the mechanism's body list, or -1 if
	// the body has not yet been attached. Tree-joint invariant: for any
	// tree joint, predecessor.index < successor.index.
	index int
	// parentJoint is the tree joint whose successor is this body, or nil
	// for the root.
	parentJoint *Joint
	// children lists the indices of bodies whose tree-joint predecessor is
	// this body, in attach order.
	children []int
}

// NewBody allocates an unattached body with a fresh default frame. The
// inertia's mass, center of mass and central inertia are taken as given in
// that default frame, and its Expressed frame is set to it. Attach the body
// to a mechanism with Mechanism.Attach.
func NewBody(name string, inertia spatial.SpatialInertia) *Body {
	if name == "" {
		name = uuid.NewString()
	}
	frame := spatial.NewFrame(name)
	inertia.Expressed = frame
	return &Body{Name: name, DefaultFrame: frame, Inertia: inertia, index: -1}
}

// Index returns the body's position in its mechanism, or -1 if unattached.
func (b *Body) Index() int { return b.index }

// IsAttached reports whether the body has been placed in a mechanism.
func (b *Body) IsAttached() bool { return b.index >= 0 }

// ParentJoint returns the tree joint whose successor is this body, or nil
// for the root or an unattached body.
func (b *Body) ParentJoint() *Joint { return b.parentJoint }

// Children returns the indices of this body's tree-joint children.
func (b *Body) Children() []int { return b.children }

// AddAuxFrame registers a body-fixed auxiliary frame at the given transform
// from that frame to the body's default frame.
func (b *Body) AddAuxFrame(name string, toDefault spatial.Transform) spatial.Frame {
	f := spatial.NewFrame(name)
	b.AuxFrames = append(b.AuxFrames, AuxFrame{Frame: f, ToDefault: toDefault})
	return f
}
