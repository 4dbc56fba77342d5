package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kynetic-labs/rbdyn/rerr"
)

// Transform is a rigid transform from frame From to frame To: for a point p
// expressed in From, Transform.Apply(p) returns that same point expressed in
// To, via ToPoint = Rotation.Rotate(FromPoint) + Translation. Translation is
// therefore the position of From's origin expressed in To's coordinates.
//
// Rotation is kept as a unit quaternion; routine operations never
// renormalize it on their own (per the spatial-algebra contract), only
// Renormalize does.
type Transform struct {
	From, To    Frame
	Rotation    quat.Number
	Translation r3.Vector
}

// Identity returns the transform from f to f: zero translation, identity
// rotation.
func Identity(f Frame) Transform {
	return Transform{From: f, To: f, Rotation: quat.Number{Real: 1}, Translation: r3.Vector{}}
}

// NewTransform builds a Transform from an (unnormalized) rotation quaternion
// and a translation.
func NewTransform(from, to Frame, rot quat.Number, trans r3.Vector) Transform {
	return Transform{From: from, To: to, Rotation: rot, Translation: trans}
}

// Apply rotates and translates a point expressed in T.From into T.To.
func (t Transform) Apply(p r3.Vector) r3.Vector {
	return rotateVector(t.Rotation, p).Add(t.Translation)
}

// ApplyVector rotates (without translating) a free vector, e.g. a direction
// or a velocity component, expressed in T.From into T.To.
func (t Transform) ApplyVector(v r3.Vector) r3.Vector {
	return rotateVector(t.Rotation, v)
}

// Inverse returns Transform.To -> Transform.From.
func (t Transform) Inverse() Transform {
	rInv := quat.Conj(t.Rotation)
	return Transform{
		From:        t.To,
		To:          t.From,
		Rotation:    rInv,
		Translation: rotateVector(rInv, t.Translation).Mul(-1),
	}
}

// Compose returns the transform outer∘inner: outer.From must equal
// inner.To (outer's inner frame matches inner's destination frame), and the
// result goes inner.From -> outer.To. This is the "outer-transform-first"
// convention documented for the module: Compose(T(b->c), T(a->b)) = T(a->c).
func Compose(outer, inner Transform) (Transform, error) {
	if !outer.From.Equal(inner.To) {
		return Transform{}, rerr.NewFrameMismatchError("spatial.Compose", outer.From, inner.To)
	}
	return Transform{
		From:        inner.From,
		To:          outer.To,
		Rotation:    quat.Mul(outer.Rotation, inner.Rotation),
		Translation: rotateVector(outer.Rotation, inner.Translation).Add(outer.Translation),
	}, nil
}

// MustCompose is Compose but panics on frame mismatch; useful for
// construction code that has already validated frames.
func MustCompose(outer, inner Transform) Transform {
	out, err := Compose(outer, inner)
	if err != nil {
		panic(err)
	}
	return out
}

// Renormalize returns t with its rotation rescaled to unit length. Routine
// operations do not call this implicitly; callers invoke it explicitly at
// the cadence they choose.
func (t Transform) Renormalize() Transform {
	t.Rotation = normalizeQuat(t.Rotation)
	return t
}

// RelativeTransform composes a->world and world->b to produce a->b,
// provided both inputs share the same To frame (their common "root").
func RelativeTransform(aToRoot, bToRoot Transform) (Transform, error) {
	if !aToRoot.To.Equal(bToRoot.To) {
		return Transform{}, rerr.NewFrameMismatchError("spatial.RelativeTransform", aToRoot.To, bToRoot.To)
	}
	return Compose(bToRoot.Inverse(), aToRoot)
}

func rotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Real: 0, Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func normalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}
