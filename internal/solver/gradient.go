package solver

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/projpred/internal/model"
)

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
)

// solveGradient minimises the family divergence between the reference and
// submodel predictive means with Adam, jointly over all draws. Each draw
// starts from the reference draw of the selected terms.
func (s *Solver) solveGradient(ctx context.Context, st *model.Structure) (*Result, error) {
	theta, err := s.refData.PosteriorMatrix(s.ref.TermNames)
	if err != nil {
		return nil, err
	}
	thetaPerp, err := s.refData.PosteriorMatrix(st.TermNames)
	if err != nil {
		return nil, err
	}
	muRef := s.predictiveMeans(s.ref.X, theta)

	samples, q := thetaPerp.Dims()
	n := st.NumObs
	var (
		eta    = mat.NewDense(samples, n, nil)
		muPerp = mat.NewDense(samples, n, nil)
		gMu    = mat.NewDense(samples, n, nil)
		grad   = mat.NewDense(samples, q, nil)
		m      = make([]float64, samples*q)
		v      = make([]float64, samples*q)
	)
	params := thetaPerp.RawMatrix().Data
	g := grad.RawMatrix().Data

	for t := 1; t <= s.opts.NumIters; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		eta.Mul(thetaPerp, st.X.T())
		etaData := eta.RawMatrix().Data
		muData := muPerp.RawMatrix().Data
		for i, e := range etaData {
			muData[i] = s.link.Inverse(e)
		}
		s.family.DivergenceGrad(gMu, muRef, muPerp)
		gData := gMu.RawMatrix().Data
		for i, e := range etaData {
			gData[i] *= s.link.Deriv(e)
		}
		grad.Mul(gMu, st.X)

		c1 := 1 - math.Pow(adamBeta1, float64(t))
		c2 := 1 - math.Pow(adamBeta2, float64(t))
		for i, gi := range g {
			m[i] = adamBeta1*m[i] + (1-adamBeta1)*gi
			v[i] = adamBeta2*v[i] + (1-adamBeta2)*gi*gi
			params[i] -= s.opts.LearningRate * (m[i] / c1) / (math.Sqrt(v[i]/c2) + adamEpsilon)
		}
	}

	return &Result{
		ThetaPerp: thetaPerp,
		Loss:      s.family.Divergence(muRef, s.predictiveMeans(st.X, thetaPerp)),
	}, nil
}
