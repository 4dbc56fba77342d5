package spatial

import (
	"github.com/golang/geo/r3"

	"github.com/kynetic-labs/rbdyn/rerr"
)

// Twist is the angular+linear velocity of Body relative to Base, expressed
// in the Expressed frame. Twist(A,B,F) + Twist(B,C,F) == Twist(A,C,F); the
// three frame fields must all agree before two twists can be combined.
type Twist struct {
	Body, Base, Expressed Frame
	Angular, Linear       r3.Vector
}

// NewTwist builds a Twist with the given triple and components.
func NewTwist(body, base, expressed Frame, angular, linear r3.Vector) Twist {
	return Twist{Body: body, Base: base, Expressed: expressed, Angular: angular, Linear: linear}
}

// Add returns t+other, requiring identical (Body,Base,Expressed) triples.
func (t Twist) Add(other Twist) (Twist, error) {
	if !t.sameTriple(other) {
		return Twist{}, rerr.NewFrameMismatchError("Twist.Add", t.tripleString(), other.tripleString())
	}
	return Twist{
		Body: t.Body, Base: t.Base, Expressed: t.Expressed,
		Angular: t.Angular.Add(other.Angular),
		Linear:  t.Linear.Add(other.Linear),
	}, nil
}

// Compose chains twists along a kinematic path: Twist(A,B,F) composed with
// Twist(B,C,F) yields Twist(A,C,F), per the triple-composition invariant
// twist(A,C,F) = twist(A,B,F) + twist(B,C,F).
func (t Twist) Compose(next Twist) (Twist, error) {
	if !t.Base.Equal(next.Body) || !t.Expressed.Equal(next.Expressed) {
		return Twist{}, rerr.NewFrameMismatchError("Twist.Compose", t.Base, next.Body)
	}
	return Twist{
		Body: t.Body, Base: next.Base, Expressed: t.Expressed,
		Angular: t.Angular.Add(next.Angular),
		Linear:  t.Linear.Add(next.Linear),
	}, nil
}

// ChangeFrame re-expresses t in a different Expressed frame using the
// adjoint transform Ad(T): T.From must equal t.Expressed, and the result is
// expressed in T.To.
func (t Twist) ChangeFrame(tf Transform) (Twist, error) {
	if !tf.From.Equal(t.Expressed) {
		return Twist{}, rerr.NewFrameMismatchError("Twist.ChangeFrame", tf.From, t.Expressed)
	}
	angular, linear := adjointApply(tf, t.Angular, t.Linear)
	return Twist{Body: t.Body, Base: t.Base, Expressed: tf.To, Angular: angular, Linear: linear}, nil
}

func (t Twist) sameTriple(o Twist) bool {
	return t.Body.Equal(o.Body) && t.Base.Equal(o.Base) && t.Expressed.Equal(o.Expressed)
}

func (t Twist) tripleString() string {
	return t.Body.String() + "," + t.Base.String() + "," + t.Expressed.String()
}

// SpatialAcceleration has the same algebraic shape as Twist (angular+linear
// 6-vector with a body/base/expressed-in triple) but represents the time
// derivative of a twist rather than the twist itself; bias accelerations
// and joint accelerations are both SpatialAcceleration values.
type SpatialAcceleration struct {
	Body, Base, Expressed Frame
	Angular, Linear       r3.Vector
}

// NewSpatialAcceleration builds a SpatialAcceleration with the given triple
// and components.
func NewSpatialAcceleration(body, base, expressed Frame, angular, linear r3.Vector) SpatialAcceleration {
	return SpatialAcceleration{Body: body, Base: base, Expressed: expressed, Angular: angular, Linear: linear}
}

// Add sums two spatial accelerations sharing a triple.
func (a SpatialAcceleration) Add(other SpatialAcceleration) (SpatialAcceleration, error) {
	if !(a.Body.Equal(other.Body) && a.Base.Equal(other.Base) && a.Expressed.Equal(other.Expressed)) {
		return SpatialAcceleration{}, rerr.NewFrameMismatchError("SpatialAcceleration.Add", a.Expressed, other.Expressed)
	}
	return SpatialAcceleration{
		Body: a.Body, Base: a.Base, Expressed: a.Expressed,
		Angular: a.Angular.Add(other.Angular),
		Linear:  a.Linear.Add(other.Linear),
	}, nil
}

// ChangeFrame re-expresses a in a different frame via Ad(T), matching
// Twist.ChangeFrame.
func (a SpatialAcceleration) ChangeFrame(tf Transform) (SpatialAcceleration, error) {
	if !tf.From.Equal(a.Expressed) {
		return SpatialAcceleration{}, rerr.NewFrameMismatchError("SpatialAcceleration.ChangeFrame", tf.From, a.Expressed)
	}
	angular, linear := adjointApply(tf, a.Angular, a.Linear)
	return SpatialAcceleration{Body: a.Body, Base: a.Base, Expressed: tf.To, Angular: angular, Linear: linear}, nil
}

// CrossMotion computes the spatial "Coriolis" motion cross product v x w used
// by the bias-acceleration recurrence: (v x w).angular = v.angular x w.angular,
// (v x w).linear = v.angular x w.linear + v.linear x w.angular.
func CrossMotion(v, w Twist) (SpatialAcceleration, error) {
	if !v.Expressed.Equal(w.Expressed) {
		return SpatialAcceleration{}, rerr.NewFrameMismatchError("CrossMotion", v.Expressed, w.Expressed)
	}
	return SpatialAcceleration{
		Body: w.Body, Base: w.Base, Expressed: v.Expressed,
		Angular: v.Angular.Cross(w.Angular),
		Linear:  v.Angular.Cross(w.Linear).Add(v.Linear.Cross(w.Angular)),
	}, nil
}

// adjointApply implements Ad(T) for a motion vector (angular,linear)
// expressed in T.From, returning the same physical motion expressed in
// T.To, per the Modern-Robotics convention Ad_T = [[R,0],[p x R, R]] for
// T.Apply(p) = R*p + t (t = translation).
func adjointApply(t Transform, angular, linear r3.Vector) (r3.Vector, r3.Vector) {
	rAngular := t.ApplyVector(angular)
	rLinear := t.ApplyVector(linear)
	return rAngular, t.Translation.Cross(rAngular).Add(rLinear)
}
