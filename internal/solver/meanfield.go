package solver

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/banshee-data/projpred/internal/model"
	"github.com/banshee-data/projpred/internal/monitoring"
)

// solveMeanField fits the restricted model to every posterior-predictive
// sample by minimising its negative log-likelihood with Nelder–Mead. The
// dispersion is optimised on the log scale, which keeps it positive.
// Samples run in parallel and write only their own output row.
func (s *Solver) solveMeanField(ctx context.Context, st *model.Structure) (*Result, error) {
	pp, ok := s.refData.PosteriorPredictive[s.ref.ResponseName]
	if !ok {
		return nil, fmt.Errorf("reference has no posterior-predictive draws for %q: %w", s.ref.ResponseName, model.ErrInvalidArgument)
	}
	samples, n, q := s.refData.NumSamples(), st.NumObs, st.NumTerms
	if pp.Len() != samples*n {
		return nil, fmt.Errorf("posterior predictive has %d values, want %d×%d: %w", pp.Len(), samples, n, model.ErrShapeMismatch)
	}

	init, err := s.refData.PosteriorMean(st.TermNames)
	if err != nil {
		return nil, err
	}
	sigma, err := s.referenceDispersion()
	if err != nil {
		return nil, err
	}
	init = append(init, math.Log(floats.Sum(sigma)/float64(len(sigma))))

	thetaPerp := mat.NewDense(samples, q, nil)
	dispPerp := make([]float64, samples)
	losses := make([]float64, samples)
	var nonConverged atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i := 0; i < samples; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			obs := pp.Data[i*n : (i+1)*n]
			x, f, ok, err := s.fitSample(st, obs, init)
			if err != nil {
				return fmt.Errorf("predictive sample %d: %w", i, err)
			}
			if !ok {
				nonConverged.Add(1)
			}
			thetaPerp.SetRow(i, x[:q])
			dispPerp[i] = math.Exp(x[q])
			losses[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		ThetaPerp:    thetaPerp,
		DispPerp:     dispPerp,
		Loss:         floats.Sum(losses) / float64(samples),
		NonConverged: int(nonConverged.Load()),
	}
	if res.NonConverged > 0 {
		monitoring.Logf("solver: %d of %d predictive samples did not converge (mean loss %.6g)", res.NonConverged, samples, res.Loss)
	}
	return res, nil
}

// fitSample minimises the negative log-likelihood of one predictive sample.
// The returned point is used whether or not the optimiser converged.
func (s *Solver) fitSample(st *model.Structure, obs, init []float64) (x []float64, f float64, converged bool, err error) {
	q := st.NumTerms
	mu := make([]float64, st.NumObs)
	muVec := mat.NewVecDense(st.NumObs, mu)
	disp := make([]float64, 1)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			muVec.MulVec(st.X, mat.NewVecDense(q, x[:q]))
			for i, v := range mu {
				mu[i] = s.link.Inverse(v)
			}
			disp[0] = math.Exp(x[q])
			return s.family.NegLogLikelihood(obs, mu, disp)
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: s.opts.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-8,
			Iterations: 100,
		},
	}
	res, err := optimize.Minimize(problem, append([]float64(nil), init...), settings, &optimize.NelderMead{})
	if res == nil {
		if err == nil {
			err = fmt.Errorf("optimizer returned no result")
		}
		return nil, 0, false, err
	}
	return res.X, res.F, isConverged(res.Status, err), nil
}

func isConverged(status optimize.Status, err error) bool {
	if err != nil {
		return false
	}
	switch status {
	case optimize.Failure, optimize.IterationLimit, optimize.RuntimeLimit, optimize.FunctionEvaluationLimit:
		return false
	}
	return true
}
