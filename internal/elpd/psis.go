// Package elpd estimates expected log predictive density with Pareto-smoothed
// importance-sampling leave-one-out cross-validation (PSIS-LOO) and builds
// the comparison table used to rank submodels against their reference.
package elpd

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Smallest normal float64; log weights below log(tiny) never form the tail.
var logTiny = math.Log(0x1p-1022)

// PSISSmooth Pareto-smooths a vector of log importance ratios and returns the
// normalised smoothed log weights together with the Pareto shape estimate k.
// reff is the relative effective sample size of the draws; it lengthens the
// fitted tail when below 1, and values that are not positive and finite
// count as 1. k is +Inf when the tail is too short to fit.
func PSISSmooth(logRatios []float64, reff float64) ([]float64, float64) {
	n := len(logRatios)
	x := make([]float64, n)
	copy(x, logRatios)
	if n == 0 {
		return x, math.Inf(1)
	}
	floats.AddConst(-floats.Max(x), x)

	if reff <= 0 || math.IsNaN(reff) || math.IsInf(reff, 0) {
		reff = 1
	}
	tailLen := int(math.Ceil(math.Min(0.2*float64(n), 3*math.Sqrt(float64(n)/reff))))
	k := math.Inf(1)

	order := argsort(x)
	if cut := n - tailLen - 1; cut >= 0 {
		xcutoff := math.Max(x[order[cut]], logTiny)
		expCutoff := math.Exp(xcutoff)

		var tail []int
		for i, v := range x {
			if v > xcutoff {
				tail = append(tail, i)
			}
		}
		if len(tail) > 4 {
			sort.Slice(tail, func(a, b int) bool { return x[tail[a]] < x[tail[b]] })
			exceed := make([]float64, len(tail))
			for i, idx := range tail {
				exceed[i] = math.Exp(x[idx]) - expCutoff
			}
			var sigma float64
			k, sigma = gpdFit(exceed)
			if !math.IsInf(k, 0) && !math.IsNaN(k) {
				m := float64(len(tail))
				for i, idx := range tail {
					q := gpInv((float64(i)+0.5)/m, k, sigma)
					x[idx] = math.Log(q + expCutoff)
				}
				for i, v := range x {
					if v > 0 {
						x[i] = 0
					}
				}
			} else {
				k = math.Inf(1)
			}
		}
	}

	floats.AddConst(-floats.LogSumExp(x), x)
	return x, k
}

// gpdFit estimates the generalized Pareto shape and scale of the sorted
// exceedances x with the empirical Bayes method of Zhang and Stephens (2009),
// including the weakly informative prior on k used by PSIS.
func gpdFit(x []float64) (float64, float64) {
	const (
		priorBs = 3.0
		priorK  = 10.0
	)
	n := len(x)
	nf := float64(n)
	m := 30 + int(math.Sqrt(nf))

	quartile := x[int(nf/4+0.5)-1]
	b := make([]float64, m)
	for j := range b {
		b[j] = 1 - math.Sqrt(float64(m)/(float64(j+1)-0.5))
		b[j] /= priorBs * quartile
		b[j] += 1 / x[n-1]
	}

	lenScale := make([]float64, m)
	for j, bj := range b {
		var s float64
		for _, v := range x {
			s += math.Log1p(-bj * v)
		}
		kj := s / nf
		lenScale[j] = nf * (math.Log(-(bj / kj)) - kj - 1)
	}

	weights := make([]float64, 0, m)
	kept := make([]float64, 0, m)
	for j := range b {
		var denom float64
		for l := range lenScale {
			denom += math.Exp(lenScale[l] - lenScale[j])
		}
		w := 1 / denom
		if w >= 10*epsilon {
			weights = append(weights, w)
			kept = append(kept, b[j])
		}
	}
	if len(weights) == 0 {
		return math.NaN(), math.NaN()
	}
	floats.Scale(1/floats.Sum(weights), weights)
	bPost := floats.Dot(kept, weights)

	var kPost float64
	for _, v := range x {
		kPost += math.Log1p(-bPost * v)
	}
	kPost /= nf
	sigma := -kPost / bPost
	kPost = (nf*kPost + priorK*0.5) / (nf + priorK)
	return kPost, sigma
}

// gpInv is the generalized Pareto quantile function.
func gpInv(p, k, sigma float64) float64 {
	if sigma <= 0 || p <= 0 || p >= 1 {
		return math.NaN()
	}
	var q float64
	if math.Abs(k) < epsilon {
		q = -math.Log1p(-p)
	} else {
		q = math.Expm1(-k*math.Log1p(-p)) / k
	}
	return q * sigma
}

const epsilon = 2.220446049250313e-16

func argsort(x []float64) []int {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })
	return idx
}
