package elpd

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ar1Chains returns chains × draws values of a unit-variance AR(1) process,
// chain-major, each chain started from its stationary distribution.
func ar1Chains(chains, draws int, phi float64, seed uint64) []float64 {
	std := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed+1)}
	innov := math.Sqrt(1 - phi*phi)
	out := make([]float64, chains*draws)
	for c := 0; c < chains; c++ {
		x := std.Rand()
		for d := 0; d < draws; d++ {
			out[c*draws+d] = x
			x = phi*x + innov*std.Rand()
		}
	}
	return out
}

// ar1LogLik is a samples × obs log-likelihood of N(y | mu_s, 1) where mu_s
// wanders as an AR(1) process within each chain.
func ar1LogLik(chains, draws, obs int, phi float64, seed uint64) *mat.Dense {
	mu := ar1Chains(chains, draws, phi, seed)
	std := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed+7, seed+8)}
	y := make([]float64, obs)
	for i := range y {
		y[i] = std.Rand()
	}
	ll := mat.NewDense(chains*draws, obs, nil)
	for s, m := range mu {
		for i, v := range y {
			ll.Set(s, i, distuv.Normal{Mu: 0.2 * m, Sigma: 1}.LogProb(v))
		}
	}
	return ll
}

func TestEssMean_Independent(t *testing.T) {
	const chains, draws = 4, 1000
	x := ar1Chains(chains, draws, 0, 3)
	ess := essMean(splitChains(x, chains, draws))
	assert.InDelta(t, chains*draws, ess, 0.2*chains*draws)
}

func TestEssMean_Autocorrelated(t *testing.T) {
	const chains, draws, phi = 4, 2000, 0.9
	x := ar1Chains(chains, draws, phi, 5)
	ess := essMean(splitChains(x, chains, draws))
	// (1 - phi) / (1 + phi) of the draws for AR(1)
	want := chains * draws * (1 - phi) / (1 + phi)
	assert.InDelta(t, want, ess, 0.4*want)
}

func TestEssMean_ConstantChains(t *testing.T) {
	assert.True(t, math.IsNaN(essMean([][]float64{{1, 1, 1, 1}, {1, 1, 1, 1}})))
}

func TestSplitChains(t *testing.T) {
	got := splitChains([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 2, 5)
	assert.Equal(t, [][]float64{{1, 2}, {4, 5}, {6, 7}, {9, 10}}, got)
}

func TestRelativeEff(t *testing.T) {
	cols := [][]float64{ar1Chains(1, 100, 0.9, 1)}
	assert.Equal(t, 1.0, relativeEff(cols, 1))
	// draws do not divide into chains
	assert.Equal(t, 1.0, relativeEff(cols, 3))
	// constant likelihood has no defined ESS
	assert.Equal(t, 1.0, relativeEff([][]float64{make([]float64, 40)}, 4))
}

func TestPSISSmooth_RelEffLengthensTail(t *testing.T) {
	std := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(1, 2)}
	ratios := make([]float64, 400)
	lowest := 0
	for i := range ratios {
		ratios[i] = std.Rand()
		if ratios[i] < ratios[lowest] {
			lowest = i
		}
	}

	// Smoothing replaces exactly the tail; everything else keeps its
	// offset from the lowest ratio.
	smoothed := func(reff float64) int {
		lw, k := PSISSmooth(ratios, reff)
		require.False(t, math.IsInf(k, 0))
		n := 0
		for i := range lw {
			if math.Abs((lw[i]-lw[lowest])-(ratios[i]-ratios[lowest])) > 1e-9 {
				n++
			}
		}
		return n
	}
	// min(0.2·S, 3·sqrt(S/reff)) with S = 400
	assert.Equal(t, 60, smoothed(1))
	assert.Equal(t, 80, smoothed(0.25))
	assert.Equal(t, 60, smoothed(math.NaN()))
}

func TestLOO_MultiChainRelEff(t *testing.T) {
	const chains, draws, obs = 4, 500, 20
	ll := ar1LogLik(chains, draws, obs, 0.95, 11)

	multi, err := LOO(ll, chains, 0)
	require.NoError(t, err)
	assert.Less(t, multi.RelEff, 0.5)
	assert.Greater(t, multi.RelEff, 0.0)
	assert.False(t, math.IsNaN(multi.ELPD))

	single, err := LOO(ll, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, single.RelEff)
	assert.Equal(t, single.LPPD, multi.LPPD)

	iid, err := LOO(ar1LogLik(chains, draws, obs, 0, 12), chains, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, iid.RelEff, 0.3)
}
