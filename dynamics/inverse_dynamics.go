package dynamics

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/kynetic-labs/rbdyn/mechanism"
	"github.com/kynetic-labs/rbdyn/rerr"
	"github.com/kynetic-labs/rbdyn/spatial"
	"github.com/kynetic-labs/rbdyn/state"
)

// InverseDynamics computes the joint torques tau (length nv) that produce
// the requested joint accelerations vdot, under gravity and the supplied
// per-body external wrenches (world frame; a body absent from extWrenches
// carries none), by the Recursive Newton-Euler Algorithm. It also returns
// every spanning-tree joint's net transmitted wrench. Loop joints do not
// participate; their reaction forces are the province of ForwardDynamics.
func InverseDynamics(
	s *state.MechanismState, vdot []float64, extWrenches map[*mechanism.Body]spatial.Wrench,
) ([]float64, map[*mechanism.Joint]spatial.Wrench, error) {
	mech := s.Mechanism()
	if len(vdot) != mech.NV() {
		return nil, nil, rerr.NewDimensionMismatchError("dynamics.InverseDynamics", mech.NV(), 1, len(vdot), 1)
	}
	root := mech.Root()
	rootFrame := root.DefaultFrame

	accel := make(map[int]spatial.SpatialAcceleration, len(mech.Bodies()))
	netWrench := make(map[int]spatial.Wrench, len(mech.Bodies()))

	g := r3.Vector{X: mech.GravityVec[0], Y: mech.GravityVec[1], Z: mech.GravityVec[2]}
	accel[root.Index()] = spatial.NewSpatialAcceleration(rootFrame, rootFrame, rootFrame, r3.Vector{}, g.Mul(-1))

	// Forward sweep: propagate spatial acceleration root -> leaves.
	for _, j := range mech.TreeJoints() {
		pred, succ := j.Predecessor, j.Successor
		predToRoot, err := s.TransformToRoot(pred)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}
		qSeg, vSeg := j.QSlice(s.Configuration()), j.VSlice(s.Velocity())
		beforeToRoot, err := spatial.Compose(predToRoot, j.JointPose)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}
		afterToRoot, err := spatial.Compose(beforeToRoot, j.Model.Transform(j.FrameBefore, j.FrameAfter, qSeg))
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}

		jointTwistAtRoot, err := j.Model.Twist(j.FrameBefore, j.FrameAfter, qSeg, vSeg).ChangeFrame(afterToRoot)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}
		jointBiasAtRoot, err := j.Model.BiasAcceleration(j.FrameBefore, j.FrameAfter, qSeg, vSeg).ChangeFrame(afterToRoot)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}
		predTwist, err := s.TwistWRTWorld(pred)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}
		coriolis, err := spatial.CrossMotion(predTwist, jointTwistAtRoot)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}

		sj, err := s.MotionSubspaceWorld(succ)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}
		jointAccel := subspaceCombination(succ.DefaultFrame, rootFrame, sj, vdot[j.VIndex:j.VIndex+j.VLen])

		predAccel := accel[pred.Index()]
		accel[succ.Index()] = spatial.NewSpatialAcceleration(succ.DefaultFrame, rootFrame, rootFrame,
			predAccel.Angular.Add(jointAccel.Angular).Add(jointBiasAtRoot.Angular).Add(coriolis.Angular),
			predAccel.Linear.Add(jointAccel.Linear).Add(jointBiasAtRoot.Linear).Add(coriolis.Linear))

		inertia, err := s.InertiaInWorld(succ)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}
		twist, err := s.TwistWRTWorld(succ)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}
		momentum, err := inertia.Apply(twist)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}
		iAccel, err := inertia.Apply(spatial.NewTwist(succ.DefaultFrame, rootFrame, rootFrame, accel[succ.Index()].Angular, accel[succ.Index()].Linear))
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}
		bias := crossForce(twist, momentum.Angular, momentum.Linear)

		net := spatial.NewWrench(succ.DefaultFrame, rootFrame, rootFrame,
			iAccel.Angular.Add(bias.Torque), iAccel.Linear.Add(bias.Force))
		if ext, ok := extWrenches[succ]; ok {
			net = spatial.NewWrench(net.Body, net.Base, net.Expressed, net.Torque.Sub(ext.Torque), net.Force.Sub(ext.Force))
		}
		netWrench[succ.Index()] = net
	}

	tau := make([]float64, mech.NV())
	jointWrench := make(map[*mechanism.Joint]spatial.Wrench, len(mech.TreeJoints()))
	joints := mech.TreeJoints()
	for i := len(joints) - 1; i >= 0; i-- {
		j := joints[i]
		succ := j.Successor
		total := netWrench[succ.Index()]
		for _, childIdx := range succ.Children() {
			childJoint := mech.Bodies()[childIdx].ParentJoint()
			var err error
			total, err = total.Add(jointWrench[childJoint])
			if err != nil {
				return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
			}
		}
		jointWrench[j] = total

		sj, err := s.MotionSubspaceWorld(succ)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: InverseDynamics")
		}
		for c := 0; c < j.VLen; c++ {
			angular := r3.Vector{X: sj.At(0, c), Y: sj.At(1, c), Z: sj.At(2, c)}
			linear := r3.Vector{X: sj.At(3, c), Y: sj.At(4, c), Z: sj.At(5, c)}
			tau[j.VIndex+c] = angular.Dot(total.Torque) + linear.Dot(total.Force)
		}
	}
	return tau, jointWrench, nil
}

// subspaceCombination builds the spatial acceleration S*coeffs for a
// world-frame motion subspace matrix S (6 x len(coeffs)).
func subspaceCombination(body, root spatial.Frame, subspace *mat.Dense, coeffs []float64) spatial.SpatialAcceleration {
	var angular, linear r3.Vector
	_, nv := subspace.Dims()
	for c := 0; c < nv; c++ {
		w := coeffs[c]
		angular = angular.Add(r3.Vector{X: subspace.At(0, c), Y: subspace.At(1, c), Z: subspace.At(2, c)}.Mul(w))
		linear = linear.Add(r3.Vector{X: subspace.At(3, c), Y: subspace.At(4, c), Z: subspace.At(5, c)}.Mul(w))
	}
	return spatial.NewSpatialAcceleration(body, root, root, angular, linear)
}

// crossForce computes the spatial bias force v x* h for velocity twist v and
// force-space vector h=(hAngular,hLinear) (a momentum or a wrench), the dual
// of spatial.CrossMotion: (v x* h).torque = w x hAngular + vo x hLinear,
// (v x* h).force = w x hLinear, where w,vo are v's angular/linear parts.
func crossForce(v spatial.Twist, hAngular, hLinear r3.Vector) spatial.Wrench {
	return spatial.NewWrench(v.Body, v.Base, v.Expressed,
		v.Angular.Cross(hAngular).Add(v.Linear.Cross(hLinear)),
		v.Angular.Cross(hLinear))
}
