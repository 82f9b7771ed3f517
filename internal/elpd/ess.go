package elpd

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// relativeEff returns the mean relative effective sample size of the
// likelihood draws exp(loglik[:, i]) across observations, the r_eff that
// sets the PSIS tail length. Samples are chain-major with draws per chain
// in order. A single chain, or an estimate that is not finite and positive,
// gives 1.
func relativeEff(cols [][]float64, chains int) float64 {
	if chains <= 1 || len(cols) == 0 {
		return 1
	}
	s := len(cols[0])
	if s%chains != 0 || s/chains < 4 {
		return 1
	}
	draws := s / chains

	lik := make([]float64, s)
	var sum float64
	for _, col := range cols {
		// ESS is scale invariant; shifting by the max avoids underflow.
		top := floats.Max(col)
		for t, v := range col {
			lik[t] = math.Exp(v - top)
		}
		sum += essMean(splitChains(lik, chains, draws)) / float64(s)
	}
	reff := sum / float64(len(cols))
	if math.IsNaN(reff) || math.IsInf(reff, 0) || reff <= 0 {
		return 1
	}
	return reff
}

// splitChains cuts each chain into its first and last draws/2 values,
// dropping the middle draw of odd-length chains.
func splitChains(x []float64, chains, draws int) [][]float64 {
	half := draws / 2
	out := make([][]float64, 0, 2*chains)
	for c := 0; c < chains; c++ {
		chain := x[c*draws : (c+1)*draws]
		out = append(out, chain[:half], chain[draws-half:])
	}
	return out
}

// essMean is the multi-chain effective sample size of Vehtari et al. (2021)
// with Geyer's initial monotone sequence. All chains must have equal length.
func essMean(chains [][]float64) float64 {
	m := len(chains)
	n := len(chains[0])
	nf := float64(n)

	means := make([]float64, m)
	for c, x := range chains {
		means[c] = floats.Sum(x) / nf
	}
	// mean over chains of the biased autocovariance at lag t
	acov := func(t int) float64 {
		var total float64
		for c, x := range chains {
			var a float64
			for i := 0; i+t < n; i++ {
				a += (x[i] - means[c]) * (x[i+t] - means[c])
			}
			total += a / nf
		}
		return total / float64(m)
	}

	meanVar := acov(0) * nf / (nf - 1)
	varPlus := meanVar * (nf - 1) / nf
	if m > 1 {
		varPlus += stat.Variance(means, nil)
	}
	if varPlus == 0 {
		return math.NaN()
	}

	rho := make([]float64, n)
	rho[0] = 1
	rhoEven, rhoOdd := 1.0, 1-(meanVar-acov(1))/varPlus
	rho[1] = rhoOdd
	t := 1
	for t < n-3 && rhoEven+rhoOdd > 0 {
		rhoEven = 1 - (meanVar-acov(t+1))/varPlus
		rhoOdd = 1 - (meanVar-acov(t+2))/varPlus
		if rhoEven+rhoOdd >= 0 {
			rho[t+1], rho[t+2] = rhoEven, rhoOdd
		}
		t += 2
	}
	maxT := t - 2
	if rhoEven > 0 {
		rho[maxT+1] = rhoEven
	}
	for t = 1; t <= maxT-2; t += 2 {
		if rho[t+1]+rho[t+2] > rho[t-1]+rho[t] {
			rho[t+1] = (rho[t-1] + rho[t]) / 2
			rho[t+2] = rho[t+1]
		}
	}

	ess := float64(m) * nf
	tau := -1 + 2*floats.Sum(rho[:maxT+1]) + rho[maxT+1]
	tau = math.Max(tau, 1/math.Log10(ess))
	return ess / tau
}
