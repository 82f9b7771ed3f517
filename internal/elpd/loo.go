package elpd

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultWarnK is the Pareto k above which a pointwise estimate is flagged
// as unreliable.
const DefaultWarnK = 0.7

// ErrTooFewSamples is returned when the log-likelihood has fewer than two
// posterior samples.
var ErrTooFewSamples = errors.New("elpd: need at least two posterior samples")

// Estimate is a leave-one-out ELPD summary.
type Estimate struct {
	ELPD       float64 `json:"elpd_loo"`
	SE         float64 `json:"se"`
	PLoo       float64 `json:"p_loo"`
	LPPD       float64 `json:"lppd"`
	NumSamples int     `json:"n_samples"`
	NumObs     int     `json:"n_data_points"`
	RelEff     float64 `json:"r_eff"`
	Warning    bool    `json:"warning"`

	// Pointwise holds the per-observation elpd contributions; Compare uses it
	// for the standard error of differences.
	Pointwise []float64 `json:"-"`
	ParetoK   []float64 `json:"-"`
}

// LOO computes the PSIS-LOO estimate from a samples × observations
// log-likelihood matrix whose rows are chain-major over chains chains. With
// more than one chain the PSIS tail length is corrected by the relative
// effective sample size of the likelihood draws. Observations whose Pareto
// k exceeds warnK set the Warning flag; a non-positive warnK selects
// DefaultWarnK.
func LOO(loglik mat.Matrix, chains int, warnK float64) (*Estimate, error) {
	if warnK <= 0 {
		warnK = DefaultWarnK
	}
	s, n := loglik.Dims()
	if s < 2 {
		return nil, ErrTooFewSamples
	}
	if n == 0 {
		return nil, fmt.Errorf("elpd: log-likelihood has no observations")
	}

	est := &Estimate{
		NumSamples: s,
		NumObs:     n,
		Pointwise:  make([]float64, n),
		ParetoK:    make([]float64, n),
	}

	cols := make([][]float64, n)
	for i := range cols {
		cols[i] = mat.Col(nil, i, loglik)
		for t, v := range cols[i] {
			if math.IsNaN(v) {
				return nil, fmt.Errorf("elpd: NaN log-likelihood at sample %d, observation %d", t, i)
			}
		}
	}
	est.RelEff = relativeEff(cols, chains)

	ratios := make([]float64, s)
	logS := math.Log(float64(s))
	for i, col := range cols {
		for t, v := range col {
			ratios[t] = -v
		}
		lw, k := PSISSmooth(ratios, est.RelEff)
		floats.Add(lw, col)
		est.Pointwise[i] = floats.LogSumExp(lw)
		est.ParetoK[i] = k
		if k > warnK {
			est.Warning = true
		}
		est.LPPD += floats.LogSumExp(col) - logS
	}

	est.ELPD = floats.Sum(est.Pointwise)
	est.SE = math.Sqrt(float64(n) * stat.PopVariance(est.Pointwise, nil))
	est.PLoo = est.LPPD - est.ELPD
	return est, nil
}
