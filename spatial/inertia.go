package spatial

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kynetic-labs/rbdyn/rerr"
)

// SpatialInertia is the 6x6 operator mapping a twist to a momentum for a
// rigid body, expressed about the origin of Expressed. It is stored in its
// physical parameters (mass, center of mass, rotational inertia about the
// center of mass) rather than as a dense matrix so that transforming it
// between frames reduces to transforming a point and rotating a 3x3 tensor,
// both of which are exact operations.
type SpatialInertia struct {
	Expressed Frame
	Mass      float64
	// Com is the center of mass position expressed in Expressed.
	Com r3.Vector
	// CentralInertia is the 3x3 symmetric rotational inertia tensor about
	// the center of mass, with axes aligned to Expressed.
	CentralInertia *mat.SymDense
}

// NewSpatialInertia builds a SpatialInertia from mass, center of mass, and
// central rotational inertia.
func NewSpatialInertia(expressed Frame, mass float64, com r3.Vector, centralInertia *mat.SymDense) SpatialInertia {
	return SpatialInertia{Expressed: expressed, Mass: mass, Com: com, CentralInertia: centralInertia}
}

// Zero returns the (degenerate) inertia of a massless body, used for the
// root body which carries no inertia.
func Zero(expressed Frame) SpatialInertia {
	return SpatialInertia{Expressed: expressed, Mass: 0, Com: r3.Vector{}, CentralInertia: mat.NewSymDense(3, nil)}
}

func skew(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

// originInertia returns the 3x3 rotational inertia about Expressed's
// origin (parallel-axis shifted from the central inertia).
func (si SpatialInertia) originInertia() *mat.SymDense {
	cx := skew(si.Com)
	var cxcx mat.Dense
	cxcx.Mul(cx, cx)

	out := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			out.SetSym(i, j, si.CentralInertia.At(i, j)-si.Mass*cxcx.At(i, j))
		}
	}
	return out
}

// Dense6 returns the full 6x6 spatial inertia matrix in angular-first
// ordering: [[Ibar, m*cx],[m*cx^T, m*I3]], where Ibar is the rotational
// inertia about Expressed's origin and cx = skew(Com).
func (si SpatialInertia) Dense6() *mat.SymDense {
	ibar := si.originInertia()
	mcx := skew(si.Com)
	out := mat.NewSymDense(6, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			out.SetSym(i, j, ibar.At(i, j))
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.SetSym(i, 3+j, si.Mass*mcx.At(i, j))
		}
	}
	for i := 0; i < 3; i++ {
		out.SetSym(3+i, 3+i, si.Mass)
	}
	return out
}

func mat3Apply(m *mat.SymDense, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// Apply computes the momentum of a twist under this inertia: the twist must
// be expressed in si.Expressed and describe the body's motion relative to
// some base (the base is carried through unchanged onto the momentum).
func (si SpatialInertia) Apply(t Twist) (Momentum, error) {
	if !t.Expressed.Equal(si.Expressed) {
		return Momentum{}, rerr.NewFrameMismatchError("SpatialInertia.Apply", si.Expressed, t.Expressed)
	}
	w, v := t.Angular, t.Linear
	ibar := si.originInertia()
	angularMom := mat3Apply(ibar, w).Add(si.Com.Cross(v).Mul(si.Mass))
	linearMom := v.Mul(si.Mass).Add(w.Cross(si.Com).Mul(si.Mass))
	return Momentum{Body: t.Body, Expressed: si.Expressed, Angular: angularMom, Linear: linearMom}, nil
}

// Add sums two inertias expressed about the same origin, recombining mass
// and first/second moments to a single center of mass and central inertia.
// Used by CRBA's composite-inertia accumulation and by remove_fixed_joints
// merging.
func (si SpatialInertia) Add(other SpatialInertia) (SpatialInertia, error) {
	if !si.Expressed.Equal(other.Expressed) {
		return SpatialInertia{}, rerr.NewFrameMismatchError("SpatialInertia.Add", si.Expressed, other.Expressed)
	}
	totalMass := si.Mass + other.Mass
	if totalMass == 0 {
		return Zero(si.Expressed), nil
	}
	firstMoment := si.Com.Mul(si.Mass).Add(other.Com.Mul(other.Mass))
	com := firstMoment.Mul(1 / totalMass)
	originCombined := addSym(si.originInertia(), other.originInertia())

	cx := skew(com)
	var cxcx mat.Dense
	cxcx.Mul(cx, cx)
	centralInertia := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			centralInertia.SetSym(i, j, originCombined.At(i, j)+totalMass*cxcx.At(i, j))
		}
	}
	return SpatialInertia{Expressed: si.Expressed, Mass: totalMass, Com: com, CentralInertia: centralInertia}, nil
}

func addSym(a, b *mat.SymDense) *mat.SymDense {
	n, _ := a.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, a.At(i, j)+b.At(i, j))
		}
	}
	return out
}

// TransformedBy returns the equivalent inertia expressed in t.To, given
// this inertia is expressed in t.From (which must equal si.Expressed). The
// center of mass transforms as a point and the central inertia tensor
// rotates with t.Rotation; mass is invariant.
func (si SpatialInertia) TransformedBy(t Transform) (SpatialInertia, error) {
	if !t.From.Equal(si.Expressed) {
		return SpatialInertia{}, rerr.NewFrameMismatchError("SpatialInertia.TransformedBy", t.From, si.Expressed)
	}
	newCom := t.Apply(si.Com)
	newCentral := rotateSym(t.Rotation, si.CentralInertia)
	return SpatialInertia{Expressed: t.To, Mass: si.Mass, Com: newCom, CentralInertia: newCentral}, nil
}

// rotateSym computes R * m * R^T for a 3x3 symmetric m and rotation
// quaternion q.
func rotateSym(q quat.Number, m *mat.SymDense) *mat.SymDense {
	r := quatToRotMat(q)
	var tmp, result mat.Dense
	tmp.Mul(r, m)
	result.Mul(&tmp, r.T())

	out := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			out.SetSym(i, j, result.At(i, j))
		}
	}
	return out
}

// quatToRotMat converts a unit quaternion to its 3x3 rotation matrix.
func quatToRotMat(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}
