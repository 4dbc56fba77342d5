package state

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/kynetic-labs/rbdyn/mechanism"
	"github.com/kynetic-labs/rbdyn/spatial"
)

// RelativeTransform returns the transform from.DefaultFrame -> to.DefaultFrame.
func (s *MechanismState) RelativeTransform(from, to *mechanism.Body) (spatial.Transform, error) {
	fromToRoot, err := s.TransformToRoot(from)
	if err != nil {
		return spatial.Transform{}, err
	}
	toToRoot, err := s.TransformToRoot(to)
	if err != nil {
		return spatial.Transform{}, err
	}
	return spatial.RelativeTransform(fromToRoot, toToRoot)
}

// RelativeTwist returns the twist of body relative to base, expressed in
// the mechanism root frame: twist(body,root) - twist(base,root), evaluated
// about the same common root-origin reference point so the subtraction is
// a valid spatial-vector difference.
func (s *MechanismState) RelativeTwist(body, base *mechanism.Body) (spatial.Twist, error) {
	bodyTwist, err := s.TwistWRTWorld(body)
	if err != nil {
		return spatial.Twist{}, err
	}
	baseTwist, err := s.TwistWRTWorld(base)
	if err != nil {
		return spatial.Twist{}, err
	}
	return spatial.NewTwist(body.DefaultFrame, base.DefaultFrame, s.mech.Root().DefaultFrame,
		bodyTwist.Angular.Sub(baseTwist.Angular), bodyTwist.Linear.Sub(baseTwist.Linear)), nil
}

// CenterOfMass returns the mechanism's total center of mass, expressed in
// the root frame.
func (s *MechanismState) CenterOfMass() (r3.Vector, error) {
	var firstMoment r3.Vector
	var totalMass float64
	for _, b := range s.mech.Bodies() {
		inertia, err := s.InertiaInWorld(b)
		if err != nil {
			return r3.Vector{}, err
		}
		firstMoment = firstMoment.Add(inertia.Com.Mul(inertia.Mass))
		totalMass += inertia.Mass
	}
	if totalMass == 0 {
		return r3.Vector{}, nil
	}
	return firstMoment.Mul(1 / totalMass), nil
}

// Momentum returns the mechanism's total spatial momentum about the root
// origin, expressed in root axes.
func (s *MechanismState) Momentum() (spatial.Momentum, error) {
	root := s.mech.Root()
	total := spatial.Momentum{Body: root.DefaultFrame, Expressed: root.DefaultFrame}
	for _, b := range s.mech.Bodies() {
		inertia, err := s.InertiaInWorld(b)
		if err != nil {
			return spatial.Momentum{}, err
		}
		tw, err := s.TwistWRTWorld(b)
		if err != nil {
			return spatial.Momentum{}, err
		}
		twistInInertiaFrame := spatial.NewTwist(inertia.Expressed, root.DefaultFrame, inertia.Expressed, tw.Angular, tw.Linear)
		mom, err := inertia.Apply(twistInInertiaFrame)
		if err != nil {
			return spatial.Momentum{}, errors.Wrap(err, "state: Momentum")
		}
		total, err = total.Add(spatial.Momentum{Body: root.DefaultFrame, Expressed: root.DefaultFrame, Angular: mom.Angular, Linear: mom.Linear})
		if err != nil {
			return spatial.Momentum{}, errors.Wrap(err, "state: Momentum")
		}
	}
	return total, nil
}

// KineticEnergy returns 1/2 * sum_B twist(B)·(I_world(B)·twist(B)).
func (s *MechanismState) KineticEnergy() (float64, error) {
	root := s.mech.Root()
	var total float64
	for _, b := range s.mech.Bodies() {
		inertia, err := s.InertiaInWorld(b)
		if err != nil {
			return 0, err
		}
		tw, err := s.TwistWRTWorld(b)
		if err != nil {
			return 0, err
		}
		twistInInertiaFrame := spatial.NewTwist(inertia.Expressed, root.DefaultFrame, inertia.Expressed, tw.Angular, tw.Linear)
		mom, err := inertia.Apply(twistInInertiaFrame)
		if err != nil {
			return 0, err
		}
		total += 0.5 * (tw.Angular.Dot(mom.Angular) + tw.Linear.Dot(mom.Linear))
	}
	return total, nil
}

// GravitationalPotentialEnergy returns -sum_B mass(B)*gravity·com(B), the
// usual convention under which gravity does positive work as a body falls
// along gravity.
func (s *MechanismState) GravitationalPotentialEnergy() (float64, error) {
	g := r3.Vector{X: s.mech.GravityVec[0], Y: s.mech.GravityVec[1], Z: s.mech.GravityVec[2]}
	var total float64
	for _, b := range s.mech.Bodies() {
		inertia, err := s.InertiaInWorld(b)
		if err != nil {
			return 0, err
		}
		total -= inertia.Mass * g.Dot(inertia.Com)
	}
	return total, nil
}

// GeometricJacobian returns the Jacobian of body relative to base,
// expressed in the root frame, with one column per velocity index in
// [0,NV()): column i is the partial twist contribution of velocity index i
// if that index lies on the kinematic path from base to body, else zero.
func (s *MechanismState) GeometricJacobian(body, base *mechanism.Body) (spatial.GeometricJacobian, error) {
	if err := s.refreshKinematics(); err != nil {
		return spatial.GeometricJacobian{}, err
	}
	root := s.mech.Root()
	jac := spatial.NewGeometricJacobian(body.DefaultFrame, base.DefaultFrame, root.DefaultFrame, s.mech.NV())

	onPath := s.pathSigns(body, base)
	for _, j := range s.mech.TreeJoints() {
		bodyOnPath, ok := onPath[j.Successor.Index()]
		if !ok {
			continue
		}
		subspace := s.motionSubspace[j.Successor.Index()]
		_, nv := subspace.Dims()
		for c := 0; c < nv; c++ {
			t := spatial.NewTwist(body.DefaultFrame, base.DefaultFrame, root.DefaultFrame,
				r3.Vector{X: subspace.At(0, c), Y: subspace.At(1, c), Z: subspace.At(2, c)}.Mul(float64(bodyOnPath)),
				r3.Vector{X: subspace.At(3, c), Y: subspace.At(4, c), Z: subspace.At(5, c)}.Mul(float64(bodyOnPath)))
			if err := jac.SetColumnTwist(j.VIndex+c, t); err != nil {
				return spatial.GeometricJacobian{}, errors.Wrap(err, "state: GeometricJacobian")
			}
		}
	}
	return jac, nil
}

// pathSigns walks from body and base up to their common ancestor, marking
// every tree joint's successor index encountered with +1 (on body's side)
// or -1 (on base's side); joints not on the path are absent from the map.
func (s *MechanismState) pathSigns(body, base *mechanism.Body) map[int]int {
	ancestorsOf := func(b *mechanism.Body) []*mechanism.Body {
		var chain []*mechanism.Body
		for b != nil {
			chain = append(chain, b)
			b = s.parentBody(b)
		}
		return chain
	}
	bodyChain := ancestorsOf(body)
	baseChain := ancestorsOf(base)
	baseSet := map[int]bool{}
	for _, b := range baseChain {
		baseSet[b.Index()] = true
	}
	var common *mechanism.Body
	for _, b := range bodyChain {
		if baseSet[b.Index()] {
			common = b
			break
		}
	}
	marks := map[int]int{}
	for _, b := range bodyChain {
		if common != nil && b.Index() == common.Index() {
			break
		}
		marks[b.Index()] = 1
	}
	for _, b := range baseChain {
		if common != nil && b.Index() == common.Index() {
			break
		}
		marks[b.Index()] = -1
	}
	return marks
}

func (s *MechanismState) parentBody(b *mechanism.Body) *mechanism.Body {
	j := b.ParentJoint()
	if j == nil {
		return nil
	}
	return j.Predecessor
}
