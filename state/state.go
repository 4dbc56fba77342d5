// Package state implements the lazily-refreshed per-body kinematic cache
// described by the mechanism state model: configuration q, velocity v,
// acceleration v̇, and memoized transforms/twists/bias accelerations/world
// inertias/composite-rigid-body inertias/motion subspaces, each guarded by
// a dirty bit and refreshed in a single topological sweep on first read
// after invalidation.
//
// Every cached spatial quantity for body B is evaluated about a single
// common reference point — the origin of the mechanism's root frame — and
// expressed in the root frame's axes, following Featherstone's spatial
// vector convention: this is what makes the propagation formulas plain
// vector addition (v_B = v_P + v_joint) rather than per-body point
// transport at every step.
package state

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/kynetic-labs/rbdyn/mechanism"
	"github.com/kynetic-labs/rbdyn/rerr"
	"github.com/kynetic-labs/rbdyn/spatial"
)

// group tags one lazily-refreshed cache dimension.
type group int

const (
	groupTransform group = iota
	groupTwist
	groupBias
	groupInertiaWorld
	groupCRB
	groupSubspace
	numGroups
)

// MechanismState is a mechanism's configuration, velocity, acceleration,
// and per-body kinematic cache. It borrows its mechanism by reference; the
// mechanism must not be mutated while a state is live. A state built
// against an older mechanism version than the mechanism's current one is
// stale: the joint setters and every cached-quantity read fail on it with
// StaleStateError.
type MechanismState struct {
	mech    *mechanism.Mechanism
	version uint64

	q    []float64
	v    []float64
	vdot []float64

	valid [numGroups][]bool

	transform      []spatial.Transform         // body index -> body.Default -> root
	afterToRoot    []spatial.Transform         // body index -> parent joint's frame_after -> root
	twist          []spatial.Twist             // body index -> spatial velocity about root origin, in root axes
	bias           []spatial.SpatialAcceleration
	inertiaWorld   []spatial.SpatialInertia
	crb            []spatial.SpatialInertia
	motionSubspace []*mat.Dense // body index -> 6 x nv(J) in root axes; nil for root
}

// New builds a state over mechanism m, sized to m's current configuration
// and velocity dimensions, at the zero configuration and zero velocity.
func New(m *mechanism.Mechanism) *MechanismState {
	n := len(m.Bodies())
	s := &MechanismState{
		mech:    m,
		version: m.Version,
		q:       make([]float64, m.NQ()),
		v:       make([]float64, m.NV()),
		vdot:    make([]float64, m.NV()),

		transform:      make([]spatial.Transform, n),
		afterToRoot:    make([]spatial.Transform, n),
		twist:          make([]spatial.Twist, n),
		bias:           make([]spatial.SpatialAcceleration, n),
		inertiaWorld:   make([]spatial.SpatialInertia, n),
		crb:            make([]spatial.SpatialInertia, n),
		motionSubspace: make([]*mat.Dense, n),
	}
	for g := group(0); g < numGroups; g++ {
		s.valid[g] = make([]bool, n)
	}
	s.ZeroConfiguration()
	return s
}

// checkFresh returns StaleStateError if the mechanism's topology has
// changed since this state was built.
func (s *MechanismState) checkFresh() error {
	if s.mech.Version != s.version {
		return rerr.NewStaleStateError(s.version, s.mech.Version)
	}
	return nil
}

// Mechanism returns the mechanism this state was built against.
func (s *MechanismState) Mechanism() *mechanism.Mechanism { return s.mech }

// Configuration returns the live configuration vector. Callers must not
// resize it; write through SetConfiguration or the returned slice's
// elements directly followed by SetDirty (or a joint-scoped setter).
func (s *MechanismState) Configuration() []float64 { return s.q }

// Velocity returns the live velocity vector.
func (s *MechanismState) Velocity() []float64 { return s.v }

// Acceleration returns the live acceleration vector v̇.
func (s *MechanismState) Acceleration() []float64 { return s.vdot }

func (s *MechanismState) invalidate(groups ...group) {
	for _, g := range groups {
		row := s.valid[g]
		for i := range row {
			row[i] = false
		}
	}
}

// SetDirty invalidates every cache group, forcing a full refresh on next
// read.
func (s *MechanismState) SetDirty() {
	s.invalidate(groupTransform, groupTwist, groupBias, groupInertiaWorld, groupCRB, groupSubspace)
}

// SetConfiguration writes j's configuration segment and invalidates the
// groups that depend on q.
func (s *MechanismState) SetConfiguration(j *mechanism.Joint, values []float64) error {
	if err := s.checkFresh(); err != nil {
		return err
	}
	copy(j.QSlice(s.q), values)
	s.invalidate(groupTransform, groupTwist, groupBias, groupInertiaWorld, groupCRB, groupSubspace)
	return nil
}

// SetVelocity writes j's velocity segment and invalidates the groups that
// depend on v.
func (s *MechanismState) SetVelocity(j *mechanism.Joint, values []float64) error {
	if err := s.checkFresh(); err != nil {
		return err
	}
	copy(j.VSlice(s.v), values)
	s.invalidate(groupTwist, groupBias)
	return nil
}

// SetAcceleration writes v̇ directly; callers of ForwardDynamics use this
// to stash the solved acceleration for downstream reads.
func (s *MechanismState) SetAcceleration(vdot []float64) error {
	if err := s.checkFresh(); err != nil {
		return err
	}
	copy(s.vdot, vdot)
	return nil
}

// ZeroConfiguration sets q to the identity configuration of every tree
// joint and zeros v and v̇.
func (s *MechanismState) ZeroConfiguration() {
	for _, j := range s.mech.TreeJoints() {
		j.Model.ZeroConfiguration(j.QSlice(s.q))
	}
	for i := range s.v {
		s.v[i] = 0
	}
	for i := range s.vdot {
		s.vdot[i] = 0
	}
	s.SetDirty()
}

// RandConfiguration samples a random configuration and velocity.
func (s *MechanismState) RandConfiguration(rng *rand.Rand) {
	for _, j := range s.mech.TreeJoints() {
		j.Model.RandConfiguration(j.QSlice(s.q), rng)
	}
	for i := range s.v {
		s.v[i] = rng.NormFloat64()
	}
	s.SetDirty()
}

// refreshKinematics performs the single topological forward sweep
// computing transform-to-root, spatial twist, bias acceleration, and
// world-frame motion subspace for every body, per the state cache's
// refresh formulas.
func (s *MechanismState) refreshKinematics() error {
	if err := s.checkFresh(); err != nil {
		return err
	}
	root := s.mech.Root()
	rootIdx := root.Index()
	if !s.valid[groupTransform][rootIdx] {
		s.transform[rootIdx] = spatial.Identity(root.DefaultFrame)
		s.twist[rootIdx] = spatial.NewTwist(root.DefaultFrame, root.DefaultFrame, root.DefaultFrame, r3.Vector{}, r3.Vector{})
		s.bias[rootIdx] = spatial.NewSpatialAcceleration(root.DefaultFrame, root.DefaultFrame, root.DefaultFrame, r3.Vector{}, r3.Vector{})
		s.valid[groupTransform][rootIdx] = true
		s.valid[groupTwist][rootIdx] = true
		s.valid[groupBias][rootIdx] = true
	}

	for _, j := range s.mech.TreeJoints() {
		pred, succ := j.Predecessor, j.Successor
		pi, si := pred.Index(), succ.Index()
		qSeg, vSeg := j.QSlice(s.q), j.VSlice(s.v)

		if !s.valid[groupTransform][si] {
			jointTransform := j.Model.Transform(j.FrameBefore, j.FrameAfter, qSeg)
			beforeToRoot, err := spatial.Compose(s.transform[pi], j.JointPose)
			if err != nil {
				return errors.Wrap(err, "state: refresh transform")
			}
			afterToRoot, err := spatial.Compose(beforeToRoot, jointTransform)
			if err != nil {
				return errors.Wrap(err, "state: refresh transform")
			}
			bodyToRoot, err := spatial.Compose(afterToRoot, j.SuccessorPose)
			if err != nil {
				return errors.Wrap(err, "state: refresh transform")
			}
			s.afterToRoot[si] = afterToRoot
			s.transform[si] = bodyToRoot
			s.valid[groupTransform][si] = true
		}

		if !s.valid[groupTwist][si] {
			jointTwist := j.Model.Twist(j.FrameBefore, j.FrameAfter, qSeg, vSeg)
			jointTwistAtRoot, err := jointTwist.ChangeFrame(s.afterToRoot[si])
			if err != nil {
				return errors.Wrap(err, "state: refresh twist")
			}
			pt := s.twist[pi]
			s.twist[si] = spatial.NewTwist(succ.DefaultFrame, root.DefaultFrame, root.DefaultFrame,
				pt.Angular.Add(jointTwistAtRoot.Angular), pt.Linear.Add(jointTwistAtRoot.Linear))
			s.valid[groupTwist][si] = true
		}

		if !s.valid[groupBias][si] {
			jointBias := j.Model.BiasAcceleration(j.FrameBefore, j.FrameAfter, qSeg, vSeg)
			jointTwist := j.Model.Twist(j.FrameBefore, j.FrameAfter, qSeg, vSeg)
			jointTwistAtRoot, err := jointTwist.ChangeFrame(s.afterToRoot[si])
			if err != nil {
				return errors.Wrap(err, "state: refresh bias")
			}
			jointBiasAtRoot, err := jointBias.ChangeFrame(s.afterToRoot[si])
			if err != nil {
				return errors.Wrap(err, "state: refresh bias")
			}
			coriolis, err := spatial.CrossMotion(s.twist[pi], jointTwistAtRoot)
			if err != nil {
				return errors.Wrap(err, "state: refresh bias")
			}
			pb := s.bias[pi]
			s.bias[si] = spatial.NewSpatialAcceleration(succ.DefaultFrame, root.DefaultFrame, root.DefaultFrame,
				pb.Angular.Add(jointBiasAtRoot.Angular).Add(coriolis.Angular),
				pb.Linear.Add(jointBiasAtRoot.Linear).Add(coriolis.Linear))
			s.valid[groupBias][si] = true
		}

		if !s.valid[groupSubspace][si] {
			local := j.Model.MotionSubspace(j.FrameAfter, qSeg)
			_, nv := local.Dims()
			world := mat.NewDense(6, nv, nil)
			for c := 0; c < nv; c++ {
				angular := r3.Vector{X: local.At(0, c), Y: local.At(1, c), Z: local.At(2, c)}
				linear := r3.Vector{X: local.At(3, c), Y: local.At(4, c), Z: local.At(5, c)}
				t := spatial.NewTwist(j.FrameAfter, j.FrameBefore, j.FrameAfter, angular, linear)
				tw, err := t.ChangeFrame(s.afterToRoot[si])
				if err != nil {
					return errors.Wrap(err, "state: refresh subspace")
				}
				world.Set(0, c, tw.Angular.X)
				world.Set(1, c, tw.Angular.Y)
				world.Set(2, c, tw.Angular.Z)
				world.Set(3, c, tw.Linear.X)
				world.Set(4, c, tw.Linear.Y)
				world.Set(5, c, tw.Linear.Z)
			}
			s.motionSubspace[si] = world
			s.valid[groupSubspace][si] = true
		}
	}
	return nil
}

func (s *MechanismState) refreshInertiaWorld() error {
	if err := s.refreshKinematics(); err != nil {
		return err
	}
	for _, b := range s.mech.Bodies() {
		i := b.Index()
		if s.valid[groupInertiaWorld][i] {
			continue
		}
		w, err := b.Inertia.TransformedBy(s.transform[i])
		if err != nil {
			return errors.Wrap(err, "state: refresh inertia-in-world")
		}
		s.inertiaWorld[i] = w
		s.valid[groupInertiaWorld][i] = true
	}
	return nil
}

func (s *MechanismState) refreshCRB() error {
	if err := s.refreshInertiaWorld(); err != nil {
		return err
	}
	bodies := s.mech.Bodies()
	for i := len(bodies) - 1; i >= 0; i-- {
		b := bodies[i]
		if s.valid[groupCRB][i] {
			continue
		}
		acc := s.inertiaWorld[i]
		for _, childIdx := range b.Children() {
			var err error
			acc, err = acc.Add(s.crb[childIdx])
			if err != nil {
				return errors.Wrap(err, "state: refresh crb")
			}
		}
		s.crb[i] = acc
		s.valid[groupCRB][i] = true
	}
	return nil
}

// TransformToRoot returns the refreshed body.Default -> root transform for
// body b, refreshing the kinematics cache group first if needed.
func (s *MechanismState) TransformToRoot(b *mechanism.Body) (spatial.Transform, error) {
	if err := s.refreshKinematics(); err != nil {
		return spatial.Transform{}, err
	}
	return s.transform[b.Index()], nil
}

// TwistWRTWorld returns the refreshed spatial twist of body b about the
// mechanism root's origin, expressed in root axes.
func (s *MechanismState) TwistWRTWorld(b *mechanism.Body) (spatial.Twist, error) {
	if err := s.refreshKinematics(); err != nil {
		return spatial.Twist{}, err
	}
	return s.twist[b.Index()], nil
}

// BiasAcceleration returns body b's cached bias spatial acceleration
// (independent of v̇, gravity not included).
func (s *MechanismState) BiasAcceleration(b *mechanism.Body) (spatial.SpatialAcceleration, error) {
	if err := s.refreshKinematics(); err != nil {
		return spatial.SpatialAcceleration{}, err
	}
	return s.bias[b.Index()], nil
}

// InertiaInWorld returns body b's spatial inertia expressed in root axes.
func (s *MechanismState) InertiaInWorld(b *mechanism.Body) (spatial.SpatialInertia, error) {
	if err := s.refreshInertiaWorld(); err != nil {
		return spatial.SpatialInertia{}, err
	}
	return s.inertiaWorld[b.Index()], nil
}

// CompositeInertia returns body b's composite-rigid-body inertia (its own
// world inertia plus that of every body in its tree-joint subtree).
func (s *MechanismState) CompositeInertia(b *mechanism.Body) (spatial.SpatialInertia, error) {
	if err := s.refreshCRB(); err != nil {
		return spatial.SpatialInertia{}, err
	}
	return s.crb[b.Index()], nil
}

// MotionSubspaceWorld returns the 6xnv(J) motion subspace of body b's
// parent tree joint, expressed in root axes. Returns nil for the root.
func (s *MechanismState) MotionSubspaceWorld(b *mechanism.Body) (*mat.Dense, error) {
	if err := s.refreshKinematics(); err != nil {
		return nil, err
	}
	return s.motionSubspace[b.Index()], nil
}
