package model

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// InferenceData is the posterior bundle of a model. Posterior variables are
// (chain, draw) arrays; log-likelihood and posterior-predictive variables are
// (chain, draw, observation) arrays. Samples are stored chain-major, so the
// flat sample index of (c, d) is c*Draws + d.
type InferenceData struct {
	Chains int
	Draws  int

	Posterior           map[string]Array
	LogLikelihood       map[string]Array
	PosteriorPredictive map[string]Array
	ObservedData        map[string][]float64
}

// NewInferenceData returns an empty bundle with the given sample layout.
func NewInferenceData(chains, draws int) *InferenceData {
	return &InferenceData{
		Chains:              chains,
		Draws:               draws,
		Posterior:           make(map[string]Array),
		LogLikelihood:       make(map[string]Array),
		PosteriorPredictive: make(map[string]Array),
		ObservedData:        make(map[string][]float64),
	}
}

// NumSamples returns chains × draws.
func (id *InferenceData) NumSamples() int { return id.Chains * id.Draws }

// AddPosterior stores a flat chain-major draw vector under name.
func (id *InferenceData) AddPosterior(name string, data []float64) error {
	arr, err := NewArray(data, id.Chains, id.Draws)
	if err != nil {
		return fmt.Errorf("posterior %q: %w", name, err)
	}
	id.Posterior[name] = arr
	return nil
}

// AddLogLikelihood stores a flat (chain, draw, obs) vector under name.
func (id *InferenceData) AddLogLikelihood(name string, data []float64, numObs int) error {
	arr, err := NewArray(data, id.Chains, id.Draws, numObs)
	if err != nil {
		return fmt.Errorf("log_likelihood %q: %w", name, err)
	}
	id.LogLikelihood[name] = arr
	return nil
}

// AddPosteriorPredictive stores a flat (chain, draw, obs) vector under name.
func (id *InferenceData) AddPosteriorPredictive(name string, data []float64, numObs int) error {
	arr, err := NewArray(data, id.Chains, id.Draws, numObs)
	if err != nil {
		return fmt.Errorf("posterior_predictive %q: %w", name, err)
	}
	id.PosteriorPredictive[name] = arr
	return nil
}

// PosteriorNames returns the posterior variable names in sorted order.
func (id *InferenceData) PosteriorNames() []string {
	names := make([]string, 0, len(id.Posterior))
	for name := range id.Posterior {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PosteriorMatrix stacks the named posterior variables into a samples ×
// len(names) matrix, one row per (chain, draw) in chain-major order.
func (id *InferenceData) PosteriorMatrix(names []string) (*mat.Dense, error) {
	s := id.NumSamples()
	if s == 0 || len(names) == 0 {
		return nil, fmt.Errorf("empty posterior selection (%d samples, %d names): %w", s, len(names), ErrInvalidArgument)
	}
	out := mat.NewDense(s, len(names), nil)
	for j, name := range names {
		arr, ok := id.Posterior[name]
		if !ok {
			return nil, fmt.Errorf("posterior has no variable %q: %w", name, ErrInvalidArgument)
		}
		if arr.Len() != s {
			return nil, fmt.Errorf("posterior %q has %d samples, want %d: %w", name, arr.Len(), s, ErrShapeMismatch)
		}
		out.SetCol(j, arr.Data)
	}
	return out, nil
}

// PosteriorMean returns the mean over all samples of each named variable.
func (id *InferenceData) PosteriorMean(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for j, name := range names {
		arr, ok := id.Posterior[name]
		if !ok {
			return nil, fmt.Errorf("posterior has no variable %q: %w", name, ErrInvalidArgument)
		}
		out[j] = arr.Mean()
	}
	return out, nil
}

// PooledLogLikelihood returns the named log-likelihood as a samples × obs
// matrix, or the first variable when name is empty.
func (id *InferenceData) PooledLogLikelihood(name string) (*mat.Dense, error) {
	if name == "" {
		if keys := sortedKeys(id.LogLikelihood); len(keys) > 0 {
			name = keys[0]
		}
	}
	arr, ok := id.LogLikelihood[name]
	if !ok {
		return nil, fmt.Errorf("log_likelihood has no variable %q: %w", name, ErrInvalidArgument)
	}
	if len(arr.Shape) != 3 {
		return nil, fmt.Errorf("log_likelihood %q has rank %d, want 3: %w", name, len(arr.Shape), ErrShapeMismatch)
	}
	return mat.NewDense(arr.Shape[0]*arr.Shape[1], arr.Shape[2], arr.Data), nil
}

func sortedKeys(m map[string]Array) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy whose group maps can be extended without touching
// id. Array data is shared.
func (id *InferenceData) Clone() *InferenceData {
	out := NewInferenceData(id.Chains, id.Draws)
	for k, v := range id.Posterior {
		out.Posterior[k] = v
	}
	for k, v := range id.LogLikelihood {
		out.LogLikelihood[k] = v
	}
	for k, v := range id.PosteriorPredictive {
		out.PosteriorPredictive[k] = v
	}
	for k, v := range id.ObservedData {
		out.ObservedData[k] = v
	}
	return out
}
