package testutil

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/projpred/internal/model"
)

// GaussianFixture describes a synthetic linear-Gaussian reference model.
// The posterior is the flat-prior conjugate posterior around the OLS fit,
// which is close enough to an MCMC fit for projection tests.
type GaussianFixture struct {
	NumObs int
	Chains int
	Draws  int
	// Coefs holds the true coefficients, intercept first; covariates are
	// named x1, x2, ... in order.
	Coefs    []float64
	Sigma    float64
	Response string
	Seed     uint64
	// WithPredictive adds a posterior-predictive group to the bundle.
	WithPredictive bool
}

// DefaultGaussianFixture is two covariates plus intercept, one chain of 100
// draws and 50 observations.
func DefaultGaussianFixture() GaussianFixture {
	return GaussianFixture{
		NumObs:   50,
		Chains:   1,
		Draws:    100,
		Coefs:    []float64{1, 2, -1},
		Sigma:    1,
		Response: "y",
		Seed:     1,
	}
}

// TermNames returns the fixture's term names, intercept first.
func (f GaussianFixture) TermNames() []string {
	names := []string{model.InterceptName}
	for j := 1; j < len(f.Coefs); j++ {
		names = append(names, fmt.Sprintf("x%d", j))
	}
	return names
}

// Build simulates data and posterior draws and returns the reference
// structure with its inference data.
func (f GaussianFixture) Build(t testing.TB) (*model.Structure, *model.InferenceData) {
	t.Helper()
	rf := f.ReferenceFile(t)
	st, id, err := rf.Build()
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}
	return st, id
}

// ReferenceFile simulates the fixture in the on-disk exchange format.
func (f GaussianFixture) ReferenceFile(t testing.TB) *model.ReferenceFile {
	t.Helper()
	src := rand.NewPCG(f.Seed, f.Seed+1)
	std := distuv.UnitNormal
	std.Src = src

	n, p := f.NumObs, len(f.Coefs)
	x := mat.NewDense(n, p, nil)
	y := make([]float64, n)
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		row[0] = 1
		mu := f.Coefs[0]
		for j := 1; j < p; j++ {
			row[j] = std.Rand()
			mu += f.Coefs[j] * row[j]
		}
		y[i] = mu + f.Sigma*std.Rand()
		x.SetRow(i, row)
		rows[i] = row
	}

	var betaHat mat.VecDense
	if err := betaHat.SolveVec(x, mat.NewVecDense(n, y)); err != nil {
		t.Fatalf("fixture OLS: %v", err)
	}
	var fitted mat.VecDense
	fitted.MulVec(x, &betaHat)
	var rss float64
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		rss += r * r
	}
	dof := float64(n - p)
	s2 := rss / dof

	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		t.Fatal("fixture design is not full rank")
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		t.Fatalf("fixture covariance: %v", err)
	}
	z, ok := distmv.NewNormal(make([]float64, p), &cov, src)
	if !ok {
		t.Fatal("fixture covariance is not positive definite")
	}
	chi := distuv.ChiSquared{K: dof, Src: src}

	names := f.TermNames()
	samples := f.Chains * f.Draws
	vars := make(map[string][]float64, p+1)
	for _, name := range names {
		vars[name] = make([]float64, samples)
	}
	sigmaName := f.Response + "_sigma"
	vars[sigmaName] = make([]float64, samples)
	draw := make([]float64, p)
	for s := 0; s < samples; s++ {
		sigma := math.Sqrt(s2 * dof / chi.Rand())
		z.Rand(draw)
		for j, name := range names {
			vars[name][s] = betaHat.AtVec(j) + sigma*draw[j]
		}
		vars[sigmaName][s] = sigma
	}

	rf := &model.ReferenceFile{
		Response:  f.Response,
		Family:    "gaussian",
		Link:      "identity",
		TermNames: names,
		X:         rows,
		Y:         y,
	}
	rf.Posterior.Chains = f.Chains
	rf.Posterior.Draws = f.Draws
	rf.Posterior.Vars = vars

	if f.WithPredictive {
		pp := make([]float64, samples*n)
		for s := 0; s < samples; s++ {
			for i := 0; i < n; i++ {
				mu := 0.0
				for j, name := range names {
					mu += rows[i][j] * vars[name][s]
				}
				pp[s*n+i] = mu + vars[sigmaName][s]*std.Rand()
			}
		}
		rf.PosteriorPredictive = map[string][]float64{f.Response: pp}
	}
	return rf
}
