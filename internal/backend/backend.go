// Package backend evaluates a fitted GLM at explicit parameter assignments
// ("points"): pointwise log-likelihood of the observed data and draws from
// the posterior predictive distribution. It stands in for the external
// modelling backend that fitted the reference model.
package backend

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/projpred/internal/family"
	"github.com/banshee-data/projpred/internal/model"
)

// Point is a full parameter assignment, one value per named variable.
type Point map[string]float64

// Evaluator computes pointwise log-likelihood values for every observed
// variable of a model at a given point.
type Evaluator interface {
	LogLikelihood(point Point) (map[string][]float64, error)
}

// GLM evaluates a generalized linear model over the reference design.
// Coefficients missing from a point are treated as zero, which is how a
// submodel is evaluated against the reference design matrix.
type GLM struct {
	ref    *model.Structure
	family family.Family
	link   family.Link
}

// NewGLM builds a backend over the reference structure.
func NewGLM(ref *model.Structure, fam family.Family) (*GLM, error) {
	link, err := family.LookupLink(ref.Link)
	if err != nil {
		return nil, err
	}
	return &GLM{ref: ref, family: fam, link: link}, nil
}

// Mean writes the mean-scale prediction for point into dst (len NumObs).
func (g *GLM) Mean(point Point, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, g.ref.NumObs)
	}
	beta := make([]float64, g.ref.NumTerms)
	for j, name := range g.ref.TermNames {
		beta[j] = point[name]
	}
	eta := mat.NewVecDense(g.ref.NumObs, dst)
	eta.MulVec(g.ref.X, mat.NewVecDense(len(beta), beta))
	for i, v := range dst {
		dst[i] = g.link.Inverse(v)
	}
	return dst
}

// Dispersion extracts the dispersion parameters from point. The
// log-transformed variable takes precedence over the natural one.
func (g *GLM) Dispersion(point Point) ([]float64, error) {
	if !g.family.HasDispersion() {
		return nil, nil
	}
	if v, ok := point[g.ref.LogDispersionName()]; ok {
		return []float64{math.Exp(v)}, nil
	}
	if v, ok := point[g.ref.DispersionName()]; ok {
		return []float64{v}, nil
	}
	return nil, fmt.Errorf("point has no %q or %q: %w", g.ref.DispersionName(), g.ref.LogDispersionName(), model.ErrInvalidArgument)
}

// LogLikelihood returns the pointwise log-likelihood of the observed
// response, keyed by response name.
func (g *GLM) LogLikelihood(point Point) (map[string][]float64, error) {
	disp, err := g.Dispersion(point)
	if err != nil {
		return nil, err
	}
	mu := g.Mean(point, nil)
	ll := make([]float64, g.ref.NumObs)
	g.family.LogLikelihood(ll, g.ref.Y, mu, disp)
	return map[string][]float64{g.ref.ResponseName: ll}, nil
}

// PosteriorPredictive draws one replicated response vector per posterior
// sample and returns them flattened (chain, draw, obs).
func (g *GLM) PosteriorPredictive(id *model.InferenceData, seed uint64) ([]float64, error) {
	points, err := PointsFromPosterior(id)
	if err != nil {
		return nil, err
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	n := g.ref.NumObs
	out := make([]float64, len(points)*n)
	mu := make([]float64, n)
	for s, p := range points {
		disp, err := g.Dispersion(p)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", s, err)
		}
		g.Mean(p, mu)
		row := out[s*n : (s+1)*n]
		for i, m := range mu {
			row[i] = g.family.Rand(m, disp, src)
		}
	}
	return out, nil
}

// PointsFromPosterior converts every (chain, draw) sample of the posterior
// into a Point, in chain-major order.
func PointsFromPosterior(id *model.InferenceData) ([]Point, error) {
	s := id.NumSamples()
	points := make([]Point, s)
	for i := range points {
		points[i] = make(Point, len(id.Posterior))
	}
	for name, arr := range id.Posterior {
		if arr.Len() != s {
			return nil, fmt.Errorf("posterior %q has %d samples, want %d: %w", name, arr.Len(), s, model.ErrShapeMismatch)
		}
		for i, v := range arr.Data {
			points[i][name] = v
		}
	}
	return points, nil
}

// LogLikelihoodAt evaluates ev at every point and returns, per observed
// variable, the flat (sample, obs) log-likelihood.
func LogLikelihoodAt(ev Evaluator, points []Point) (map[string][]float64, error) {
	out := make(map[string][]float64)
	for s, p := range points {
		ll, err := ev.LogLikelihood(p)
		if err != nil {
			return nil, fmt.Errorf("log-likelihood at sample %d: %w", s, err)
		}
		for name, v := range ll {
			if s == 0 {
				out[name] = make([]float64, 0, len(points)*len(v))
			}
			out[name] = append(out[name], v...)
		}
	}
	return out, nil
}
