package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/kynetic-labs/rbdyn/mechanism"
	"github.com/kynetic-labs/rbdyn/rerr"
	"github.com/kynetic-labs/rbdyn/spatial"
	"github.com/kynetic-labs/rbdyn/state"
)

// ForwardDynamicsOption configures an optional behavior of ForwardDynamics.
type ForwardDynamicsOption func(*forwardDynamicsOptions)

type forwardDynamicsOptions struct {
	baumgarteGain float64
}

// WithBaumgarteGain adds Baumgarte stabilization to the loop-constraint
// bias: each loop joint's position-level drift (the gap between where its
// predecessor-side and successor-side frame_after land, measured along that
// joint's own constrained directions) is scaled by gain and folded into k,
// pulling the solve back toward the nominal closed configuration instead of
// letting drift accumulate unchecked over repeated integration. gain=0 (the
// default when this option is omitted) disables stabilization entirely.
func WithBaumgarteGain(gain float64) ForwardDynamicsOption {
	return func(o *forwardDynamicsOptions) { o.baumgarteGain = gain }
}

// ForwardDynamicsResult is the outcome of a forward-dynamics solve: the
// joint accelerations v̇ and, when the mechanism carries loop joints, the
// constraint-force multipliers λ (one per row of the stacked constraint
// Jacobian, in loop-joint order).
type ForwardDynamicsResult struct {
	VDot   []float64
	Lambda []float64
}

// ForwardDynamics computes v̇ (and, with loop joints, λ) satisfying
//
//	M·v̇ + c(q,v) = τ − Kᵀ·λ
//	K·v̇ + k(q,v) = 0
//
// via CRBA for M, RNEA at v̇=0 for c, and each loop joint's constraint-wrench
// subspace mapped through the relative geometric Jacobian of its successor
// w.r.t. its predecessor for K and k. The system is solved by a
// Cholesky-based Schur complement: M = L·Lᵀ, A = K·M⁻¹·Kᵀ,
// A·λ = K·M⁻¹·(τ−c) + k, v̇ = M⁻¹·(τ−c−Kᵀ·λ). With no loop joints it reduces
// to M·v̇ = τ−c.
func ForwardDynamics(
	s *state.MechanismState, tau []float64, extWrenches map[*mechanism.Body]spatial.Wrench,
	opts ...ForwardDynamicsOption,
) (ForwardDynamicsResult, error) {
	var cfg forwardDynamicsOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	mech := s.Mechanism()
	nv := mech.NV()
	if len(tau) != nv {
		return ForwardDynamicsResult{}, rerr.NewDimensionMismatchError("dynamics.ForwardDynamics", nv, 1, len(tau), 1)
	}

	m, err := MassMatrix(s)
	if err != nil {
		return ForwardDynamicsResult{}, err
	}
	chol, err := choleskyMassMatrix(m)
	if err != nil {
		return ForwardDynamicsResult{}, err
	}

	tauBias, _, err := InverseDynamics(s, make([]float64, nv), extWrenches)
	if err != nil {
		return ForwardDynamicsResult{}, errors.Wrap(err, "dynamics: ForwardDynamics")
	}

	rhs := mat.NewVecDense(nv, nil)
	for i := 0; i < nv; i++ {
		rhs.SetVec(i, tau[i]-tauBias[i])
	}
	x := mat.NewVecDense(nv, nil)
	if err := chol.SolveVecTo(x, rhs); err != nil {
		return ForwardDynamicsResult{}, errors.Wrap(err, "dynamics: ForwardDynamics: solve M x = tau-c")
	}

	k, kBias, err := buildConstraintJacobian(s, cfg.baumgarteGain)
	if err != nil {
		return ForwardDynamicsResult{}, err
	}
	ncTotal := len(k)
	if ncTotal == 0 {
		vdot := make([]float64, nv)
		for i := 0; i < nv; i++ {
			vdot[i] = x.AtVec(i)
		}
		return ForwardDynamicsResult{VDot: vdot}, nil
	}

	kMat := assembleMgl64(k, nv)
	kDense := mglToGonum(kMat)

	var minvKt mat.Dense
	kt := mat.DenseCopyOf(kDense.T())
	if err := chol.SolveTo(&minvKt, kt); err != nil {
		return ForwardDynamicsResult{}, errors.Wrap(err, "dynamics: ForwardDynamics: solve M X = Kt")
	}

	var aDense mat.Dense
	aDense.Mul(kDense, &minvKt)
	aSym := mat.NewSymDense(ncTotal, nil)
	for i := 0; i < ncTotal; i++ {
		for j := i; j < ncTotal; j++ {
			aSym.SetSym(i, j, 0.5*(aDense.At(i, j)+aDense.At(j, i)))
		}
	}
	var aChol mat.Cholesky
	if ok := aChol.Factorize(aSym); !ok {
		return ForwardDynamicsResult{}, rerr.NewRedundantConstraintError("constraint Schur complement is not positive definite")
	}

	var kx mat.VecDense
	kx.MulVec(kDense, x)
	lambdaRHS := mat.NewVecDense(ncTotal, nil)
	for i := 0; i < ncTotal; i++ {
		lambdaRHS.SetVec(i, kx.AtVec(i)+kBias[i])
	}
	lambda := mat.NewVecDense(ncTotal, nil)
	if err := aChol.SolveVecTo(lambda, lambdaRHS); err != nil {
		return ForwardDynamicsResult{}, rerr.NewRedundantConstraintError("failed to solve for constraint multipliers")
	}

	var ktLambda mat.VecDense
	ktLambda.MulVec(kt, lambda)
	var minvKtLambda mat.VecDense
	if err := chol.SolveVecTo(&minvKtLambda, &ktLambda); err != nil {
		return ForwardDynamicsResult{}, errors.Wrap(err, "dynamics: ForwardDynamics: solve M y = Kt lambda")
	}

	vdot := make([]float64, nv)
	lambdaOut := make([]float64, ncTotal)
	for i := 0; i < nv; i++ {
		vdot[i] = x.AtVec(i) - minvKtLambda.AtVec(i)
	}
	for i := 0; i < ncTotal; i++ {
		lambdaOut[i] = lambda.AtVec(i)
	}
	return ForwardDynamicsResult{VDot: vdot, Lambda: lambdaOut}, nil
}

// buildConstraintJacobian assembles, for every loop joint, its rows of the
// stacked constraint Jacobian K and the matching bias-residual rows k, by
// mapping the joint's constraint-wrench subspace (expressed at its own
// frame_after) into world axes and contracting it against the relative
// geometric Jacobian of successor w.r.t. predecessor.
func buildConstraintJacobian(s *state.MechanismState, baumgarteGain float64) ([][]float64, []float64, error) {
	mech := s.Mechanism()
	nv := mech.NV()
	var rows [][]float64
	var bias []float64

	for _, lj := range mech.LoopJoints() {
		pred, succ := lj.Predecessor, lj.Successor
		succToRoot, err := s.TransformToRoot(succ)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: buildConstraintJacobian")
		}
		afterToRoot, err := spatial.Compose(succToRoot, lj.SuccessorPose.Inverse())
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: buildConstraintJacobian")
		}

		var rotErrLocal, posErrLocal r3.Vector
		if baumgarteGain != 0 {
			predToRoot, err := s.TransformToRoot(pred)
			if err != nil {
				return nil, nil, errors.Wrap(err, "dynamics: buildConstraintJacobian")
			}
			beforeToRoot, err := spatial.Compose(predToRoot, lj.JointPose)
			if err != nil {
				return nil, nil, errors.Wrap(err, "dynamics: buildConstraintJacobian")
			}
			nominalQ := make([]float64, lj.Model.NQ())
			lj.Model.ZeroConfiguration(nominalQ)
			expectedAfterToRoot, err := spatial.Compose(beforeToRoot, lj.Model.Transform(lj.FrameBefore, lj.FrameAfter, nominalQ))
			if err != nil {
				return nil, nil, errors.Wrap(err, "dynamics: buildConstraintJacobian")
			}
			poseError, err := spatial.Compose(expectedAfterToRoot.Inverse(), afterToRoot)
			if err != nil {
				return nil, nil, errors.Wrap(err, "dynamics: buildConstraintJacobian")
			}
			rotErrLocal = rotationVector(poseError.Rotation)
			posErrLocal = poseError.Translation
		}

		phiLocal := lj.Model.ConstraintWrenchSubspace(lj.FrameAfter, nil)
		_, ncCols := phiLocal.Dims()

		jac, err := s.GeometricJacobian(succ, pred)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: buildConstraintJacobian")
		}

		predBias, err := s.BiasAcceleration(pred)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: buildConstraintJacobian")
		}
		succBias, err := s.BiasAcceleration(succ)
		if err != nil {
			return nil, nil, errors.Wrap(err, "dynamics: buildConstraintJacobian")
		}
		relBiasAngular := succBias.Angular.Sub(predBias.Angular)
		relBiasLinear := succBias.Linear.Sub(predBias.Linear)

		for c := 0; c < ncCols; c++ {
			torque := r3.Vector{X: phiLocal.At(0, c), Y: phiLocal.At(1, c), Z: phiLocal.At(2, c)}
			force := r3.Vector{X: phiLocal.At(3, c), Y: phiLocal.At(4, c), Z: phiLocal.At(5, c)}
			w, err := spatial.NewWrench(lj.FrameAfter, lj.FrameBefore, lj.FrameAfter, torque, force).ChangeFrame(afterToRoot)
			if err != nil {
				return nil, nil, errors.Wrap(err, "dynamics: buildConstraintJacobian")
			}

			row := make([]float64, nv)
			for vi := 0; vi < nv; vi++ {
				col := jac.ColumnTwist(vi)
				row[vi] = w.Torque.Dot(col.Angular) + w.Force.Dot(col.Linear)
			}
			rows = append(rows, row)
			residual := w.Torque.Dot(relBiasAngular) + w.Force.Dot(relBiasLinear)
			if baumgarteGain != 0 {
				residual += baumgarteGain * (torque.Dot(rotErrLocal) + force.Dot(posErrLocal))
			}
			bias = append(bias, residual)
		}
	}
	return rows, bias, nil
}

// rotationVector returns the axis-angle rotation vector (angle*axis) of a
// unit quaternion, via the exact quaternion logarithm rather than a
// small-angle approximation, so it stays accurate for the larger residuals
// that show up before a loop-closed mechanism has settled.
func rotationVector(q quat.Number) r3.Vector {
	im := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	n := im.Norm()
	if n < 1e-12 {
		return r3.Vector{}
	}
	angle := 2 * math.Atan2(n, q.Real)
	return im.Mul(angle / n)
}

// assembleMgl64 copies the constraint-Jacobian rows into an mgl64.MatMxN
// scratch matrix before handing off to gonum/mat for the linear solve,
// mirroring how the teacher model keeps its Jacobian as an *mgl64.MatMxN
// alongside the gonum-backed algebra used elsewhere in this package.
func assembleMgl64(rows [][]float64, nv int) *mgl64.MatMxN {
	m := mgl64.NewMatrix(len(rows), nv)
	for r, row := range rows {
		for c, v := range row {
			m.Set(r, c, v)
		}
	}
	return m
}

func mglToGonum(m *mgl64.MatMxN) *mat.Dense {
	rows, cols := m.NumRows(), m.NumCols()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out.Set(r, c, m.At(r, c))
		}
	}
	return out
}
