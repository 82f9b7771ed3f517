package family

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/projpred/internal/model"
)

// GaussianName is the registry identifier of the Gaussian family.
const GaussianName = "gaussian"

// Gaussian is the normal family with a single scale parameter sigma.
type Gaussian struct{}

func (Gaussian) Name() string        { return GaussianName }
func (Gaussian) HasDispersion() bool { return true }
func (Gaussian) NumDispersion() int  { return 1 }

// DispersionNames returns the single scale variable "<response>_sigma".
func (Gaussian) DispersionNames(response string) []string {
	return []string{response + "_sigma"}
}

// ClosedForm reports whether the least-squares projection is exact, which
// holds under the identity link only.
func (Gaussian) ClosedForm(link Link) bool { return link.Name == "identity" }

// Divergence is the KL divergence between two normals sharing a unit scale,
// averaged over samples and observations: mean(0.5 (muRef - muPerp)^2).
func (Gaussian) Divergence(muRef, muPerp *mat.Dense) float64 {
	r, c := muRef.Dims()
	if r*c == 0 {
		return 0
	}
	var diff mat.Dense
	diff.Sub(muRef, muPerp)
	d := diff.RawMatrix().Data
	return 0.5 * floats.Dot(d, d) / float64(r*c)
}

// DivergenceGrad writes -(muRef - muPerp) / (samples·obs) into grad.
func (Gaussian) DivergenceGrad(grad, muRef, muPerp *mat.Dense) {
	r, c := muRef.Dims()
	grad.Sub(muPerp, muRef)
	grad.Scale(1/float64(r*c), grad)
}

// ProjectDispersion applies the analytic Gaussian solution per sample:
//
//	sigma_perp^2 = sigma^2 + (f - f_perp)ᵀ(f - f_perp) / n
//
// with f = X·theta and f_perp = X_perp·theta_perp. The returned slice has
// one entry per reference dispersion draw.
func (Gaussian) ProjectDispersion(in DispersionInput) ([]float64, error) {
	s, _ := in.Theta.Dims()
	sp, _ := in.ThetaPerp.Dims()
	if s != sp || s != len(in.Sigma) {
		return nil, fmt.Errorf("dispersion projection: %d reference draws, %d projected draws, %d sigma draws: %w",
			s, sp, len(in.Sigma), model.ErrShapeMismatch)
	}
	n, _ := in.X.Dims()
	if np, _ := in.XPerp.Dims(); np != n {
		return nil, fmt.Errorf("dispersion projection: X has %d rows, X_perp has %d: %w", n, np, model.ErrShapeMismatch)
	}

	// Columns of f and fPerp are per-sample fitted values.
	var f, fPerp mat.Dense
	f.Mul(in.X, in.Theta.T())
	fPerp.Mul(in.XPerp, in.ThetaPerp.T())
	f.Sub(&f, &fPerp)

	out := make([]float64, s)
	col := make([]float64, n)
	for j := 0; j < s; j++ {
		mat.Col(col, j, &f)
		resid := floats.Dot(col, col) / float64(n)
		out[j] = math.Sqrt(in.Sigma[j]*in.Sigma[j] + resid)
	}
	return out, nil
}

// NegLogLikelihood returns -Σ log N(obs_i | mu_i, sigma) with sigma = disp[0].
// A non-positive sigma yields +Inf.
func (Gaussian) NegLogLikelihood(obs, mu, disp []float64) float64 {
	sigma := disp[0]
	if !(sigma > 0) {
		return math.Inf(1)
	}
	var nll float64
	for i, y := range obs {
		nll -= distuv.Normal{Mu: mu[i], Sigma: sigma}.LogProb(y)
	}
	return nll
}

// LogLikelihood writes log N(obs_i | mu_i, sigma) into dst.
func (Gaussian) LogLikelihood(dst, obs, mu, disp []float64) {
	sigma := disp[0]
	for i, y := range obs {
		dst[i] = distuv.Normal{Mu: mu[i], Sigma: sigma}.LogProb(y)
	}
}

// Rand draws from N(mu, sigma).
func (Gaussian) Rand(mu float64, disp []float64, src rand.Source) float64 {
	return distuv.Normal{Mu: mu, Sigma: disp[0], Src: src}.Rand()
}
