// Package dynamics implements the joint-space dynamics algorithms built on
// top of a state.MechanismState's kinematic cache: the CRBA mass matrix,
// RNEA inverse dynamics, and KKT-based forward dynamics with loop-joint
// constraints.
package dynamics

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/kynetic-labs/rbdyn/rerr"
	"github.com/kynetic-labs/rbdyn/state"
)

// MassMatrix computes the nv x nv joint-space mass matrix M by the
// Composite Rigid-Body Algorithm. For every spanning-tree joint J, it forms
// F = I^c(body(J))*S_J (world frame) and, for every ancestor A of body(J) up
// to the root, sets M[range(A),range(J)] = S_A^T * F, filling the symmetric
// counterpart by reflection. Loop joints contribute nothing here.
func MassMatrix(s *state.MechanismState) (*mat.SymDense, error) {
	mech := s.Mechanism()
	nv := mech.NV()
	m := mat.NewSymDense(nv, nil)

	for _, j := range mech.TreeJoints() {
		body := j.Successor
		crb, err := s.CompositeInertia(body)
		if err != nil {
			return nil, errors.Wrap(err, "dynamics: MassMatrix")
		}
		sj, err := s.MotionSubspaceWorld(body)
		if err != nil {
			return nil, errors.Wrap(err, "dynamics: MassMatrix")
		}

		var f mat.Dense
		f.Mul(crb.Dense6(), sj)

		for a := body; ; {
			aj := a.ParentJoint()
			if aj == nil {
				break
			}
			sa, err := s.MotionSubspaceWorld(aj.Successor)
			if err != nil {
				return nil, errors.Wrap(err, "dynamics: MassMatrix")
			}
			var block mat.Dense
			block.Mul(sa.T(), &f)
			rows, cols := block.Dims()
			for r := 0; r < rows; r++ {
				for c := 0; c < cols; c++ {
					m.SetSym(aj.VIndex+r, j.VIndex+c, block.At(r, c))
				}
			}
			a = aj.Predecessor
		}
	}
	return m, nil
}

// choleskyMassMatrix factors M and reports SingularInertiaError if it is not
// positive definite, the condition ForwardDynamics relies on to solve for v̇.
func choleskyMassMatrix(m *mat.SymDense) (*mat.Cholesky, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(m); !ok {
		return nil, rerr.NewSingularInertiaError("mass matrix is not positive definite")
	}
	return &chol, nil
}
