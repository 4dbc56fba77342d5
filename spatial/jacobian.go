package spatial

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/kynetic-labs/rbdyn/rerr"
)

// GeometricJacobian is a 6xn matrix whose columns are the twist of Body
// relative to Base, expressed in Expressed, per unit velocity of each of n
// degrees of freedom along a kinematic path. Rows 0-2 are angular, 3-5 are
// linear, matching Twist's (Angular,Linear) ordering.
type GeometricJacobian struct {
	Body, Base, Expressed Frame
	Mat                   *mat.Dense // 6 x n
}

// NewGeometricJacobian allocates a zeroed Jacobian with n columns.
func NewGeometricJacobian(body, base, expressed Frame, n int) GeometricJacobian {
	return GeometricJacobian{Body: body, Base: base, Expressed: expressed, Mat: mat.NewDense(6, n, nil)}
}

// SetColumnTwist writes twist (which must already be expressed in
// j.Expressed and describe j.Body w.r.t. j.Base) into column c.
func (j GeometricJacobian) SetColumnTwist(c int, t Twist) error {
	if !(t.Body.Equal(j.Body) && t.Base.Equal(j.Base) && t.Expressed.Equal(j.Expressed)) {
		return rerr.NewFrameMismatchError("GeometricJacobian.SetColumnTwist", j.Expressed, t.Expressed)
	}
	j.Mat.Set(0, c, t.Angular.X)
	j.Mat.Set(1, c, t.Angular.Y)
	j.Mat.Set(2, c, t.Angular.Z)
	j.Mat.Set(3, c, t.Linear.X)
	j.Mat.Set(4, c, t.Linear.Y)
	j.Mat.Set(5, c, t.Linear.Z)
	return nil
}

// ColumnTwist reads column c back out as a Twist.
func (j GeometricJacobian) ColumnTwist(c int) Twist {
	return Twist{
		Body: j.Body, Base: j.Base, Expressed: j.Expressed,
		Angular: r3.Vector{X: j.Mat.At(0, c), Y: j.Mat.At(1, c), Z: j.Mat.At(2, c)},
		Linear:  r3.Vector{X: j.Mat.At(3, c), Y: j.Mat.At(4, c), Z: j.Mat.At(5, c)},
	}
}

// NumCols returns n.
func (j GeometricJacobian) NumCols() int {
	_, n := j.Mat.Dims()
	return n
}

// MulVec computes the Twist resulting from applying a velocity vector v
// (length n) through the Jacobian.
func (j GeometricJacobian) MulVec(v *mat.VecDense) (Twist, error) {
	if n, want := v.Len(), j.NumCols(); n != want {
		return Twist{}, rerr.NewDimensionMismatchError("GeometricJacobian.MulVec", want, 1, n, 1)
	}
	var out mat.VecDense
	out.MulVec(j.Mat, v)
	return Twist{
		Body: j.Body, Base: j.Base, Expressed: j.Expressed,
		Angular: r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)},
		Linear:  r3.Vector{X: out.AtVec(3), Y: out.AtVec(4), Z: out.AtVec(5)},
	}, nil
}
