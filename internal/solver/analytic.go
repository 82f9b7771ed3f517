package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/projpred/internal/model"
	"github.com/banshee-data/projpred/internal/monitoring"
)

// solveAnalytic projects every draw in one batched least-squares solve.
// Column s of F = X·θᵀ holds the fitted values of draw s; solving
// X⊥·B = F column-wise gives θ⊥ = Bᵀ.
func (s *Solver) solveAnalytic(st *model.Structure) (*Result, error) {
	theta, err := s.refData.PosteriorMatrix(s.ref.TermNames)
	if err != nil {
		return nil, err
	}

	var f mat.Dense
	f.Mul(s.ref.X, theta.T()) // obs × samples

	var b mat.Dense
	if err := solveLeastSquares(&b, st.X, &f); err != nil {
		return nil, err
	}
	thetaPerp := mat.DenseCopyOf(b.T())

	muRef := s.predictiveMeans(s.ref.X, theta)
	muPerp := s.predictiveMeans(st.X, thetaPerp)
	return &Result{
		ThetaPerp: thetaPerp,
		Loss:      s.family.Divergence(muRef, muPerp),
	}, nil
}

// solveLeastSquares solves a·dst = b. An ill-conditioned a only logs: gonum
// still fills dst and reports the condition number as mat.Condition.
func solveLeastSquares(dst *mat.Dense, a, b mat.Matrix) error {
	err := dst.Solve(a, b)
	var cond mat.Condition
	if errors.As(err, &cond) && !math.IsInf(float64(cond), 1) {
		monitoring.Logf("solver: least-squares design is ill-conditioned (condition number %.3g); projected draws may be inaccurate", float64(cond))
		return nil
	}
	if err != nil {
		return fmt.Errorf("least-squares solve: %w", err)
	}
	return nil
}
