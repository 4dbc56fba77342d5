package spatial

import (
	"github.com/golang/geo/r3"

	"github.com/kynetic-labs/rbdyn/rerr"
)

// Wrench is a 6-vector of torque+force acting between Body and Base,
// expressed in the Expressed frame.
type Wrench struct {
	Body, Base, Expressed Frame
	Torque, Force         r3.Vector
}

// NewWrench builds a Wrench.
func NewWrench(body, base, expressed Frame, torque, force r3.Vector) Wrench {
	return Wrench{Body: body, Base: base, Expressed: expressed, Torque: torque, Force: force}
}

// Add sums two wrenches sharing the same Expressed frame; Body/Base are not
// required to match since wrenches at a single point accumulate regardless
// of which bodies produced them (e.g. summing child-joint reaction wrenches
// during RNEA's backward sweep).
func (w Wrench) Add(other Wrench) (Wrench, error) {
	if !w.Expressed.Equal(other.Expressed) {
		return Wrench{}, rerr.NewFrameMismatchError("Wrench.Add", w.Expressed, other.Expressed)
	}
	return Wrench{
		Body: w.Body, Base: w.Base, Expressed: w.Expressed,
		Torque: w.Torque.Add(other.Torque),
		Force:  w.Force.Add(other.Force),
	}, nil
}

// ChangeFrame re-expresses w using the coadjoint (dual adjoint) transform:
// T.From must equal w.Expressed, result is expressed in T.To.
func (w Wrench) ChangeFrame(t Transform) (Wrench, error) {
	if !t.From.Equal(w.Expressed) {
		return Wrench{}, rerr.NewFrameMismatchError("Wrench.ChangeFrame", t.From, w.Expressed)
	}
	torque, force := coadjointApply(t, w.Torque, w.Force)
	return Wrench{Body: w.Body, Base: w.Base, Expressed: t.To, Torque: torque, Force: force}, nil
}

// Power returns the scalar power w*t for a wrench and twist expressed in
// the same frame describing the same (body,base) pair.
func (w Wrench) Power(t Twist) (float64, error) {
	if !w.Expressed.Equal(t.Expressed) {
		return 0, rerr.NewFrameMismatchError("Wrench.Power", w.Expressed, t.Expressed)
	}
	if !(w.Body.Equal(t.Body) && w.Base.Equal(t.Base)) {
		return 0, rerr.NewFrameMismatchError("Wrench.Power", w.Body, t.Body)
	}
	return w.Torque.Dot(t.Angular) + w.Force.Dot(t.Linear), nil
}

// coadjointApply transfers a (torque,force) wrench from T.From to T.To:
// force rotates with R, torque picks up the moment contributed by the
// translated reference point, p x force_new.
func coadjointApply(t Transform, torque, force r3.Vector) (r3.Vector, r3.Vector) {
	newForce := t.ApplyVector(force)
	newTorque := t.ApplyVector(torque).Add(t.Translation.Cross(newForce))
	return newTorque, newForce
}

// Momentum is the 6-vector angular+linear momentum of Body, expressed in
// the Expressed frame.
type Momentum struct {
	Body, Expressed Frame
	Angular, Linear r3.Vector
}

// NewMomentum builds a Momentum.
func NewMomentum(body, expressed Frame, angular, linear r3.Vector) Momentum {
	return Momentum{Body: body, Expressed: expressed, Angular: angular, Linear: linear}
}

// Add sums two momenta of the same body expressed in the same frame.
func (m Momentum) Add(other Momentum) (Momentum, error) {
	if !m.Expressed.Equal(other.Expressed) {
		return Momentum{}, rerr.NewFrameMismatchError("Momentum.Add", m.Expressed, other.Expressed)
	}
	return Momentum{
		Body: m.Body, Expressed: m.Expressed,
		Angular: m.Angular.Add(other.Angular),
		Linear:  m.Linear.Add(other.Linear),
	}, nil
}
