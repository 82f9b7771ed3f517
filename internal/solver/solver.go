// Package solver projects reference posterior draws onto a restricted
// design. A Solver serves a single projection request and moves through
// INITIALIZED → OPTIMIZING → DONE, or FAILED when a strategy errors.
//
// Three strategies are available:
//
//   - analytic: closed-form least squares, batched over draws (Gaussian,
//     identity link)
//   - gradient: Adam on the Gaussian KL surrogate between reference and
//     submodel predictive means, jointly over all draws
//   - mean_field: Nelder–Mead on the negative log-likelihood of each
//     posterior-predictive sample, one optimisation per sample
package solver

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/projpred/internal/family"
	"github.com/banshee-data/projpred/internal/model"
	"github.com/banshee-data/projpred/internal/monitoring"
)

// Method selects the projection strategy.
type Method string

const (
	MethodAnalytic  Method = "analytic"
	MethodGradient  Method = "gradient"
	MethodMeanField Method = "mean_field"
)

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodAnalytic, MethodGradient, MethodMeanField:
		return m, nil
	}
	return "", fmt.Errorf("unknown projection method %q (want analytic, gradient or mean_field): %w", s, model.ErrInvalidArgument)
}

// State is the lifecycle state of a Solver.
type State int

const (
	StateInitialized State = iota
	StateOptimizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "INITIALIZED"
	case StateOptimizing:
		return "OPTIMIZING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options tune the iterative strategies. Zero values select defaults.
type Options struct {
	NumIters       int     // Adam iterations (gradient)
	LearningRate   float64 // Adam step size (gradient)
	Workers        int     // parallel optimisations (mean_field)
	MaxEvaluations int     // objective evaluations per sample (mean_field)
}

// DefaultOptions returns the defaults used when a field is zero.
func DefaultOptions() Options {
	return Options{
		NumIters:       200,
		LearningRate:   0.01,
		Workers:        runtime.NumCPU(),
		MaxEvaluations: 4000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.NumIters <= 0 {
		o.NumIters = d.NumIters
	}
	if o.LearningRate <= 0 {
		o.LearningRate = d.LearningRate
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	if o.MaxEvaluations <= 0 {
		o.MaxEvaluations = d.MaxEvaluations
	}
	return o
}

// Result holds the projected draws of one request.
type Result struct {
	// ThetaPerp is samples × restricted terms, chain-major.
	ThetaPerp *mat.Dense
	// DispPerp is set when the strategy estimates dispersion itself
	// (mean_field); otherwise SolveDispersion derives it.
	DispPerp []float64
	// Loss is the mean objective value across draws or samples.
	Loss float64
	// NonConverged counts per-sample optimisations that hit a limit.
	NonConverged int
}

// Solver projects the reference draws onto a restricted structure.
type Solver struct {
	ref     *model.Structure
	refData *model.InferenceData
	family  family.Family
	link    family.Link
	method  Method
	opts    Options
	state   State
}

// New validates the family/method combination and returns a Solver in the
// INITIALIZED state. Unsupported combinations fail with ErrUnsupported.
func New(ref *model.Structure, refData *model.InferenceData, fam family.Family, method Method, opts Options) (*Solver, error) {
	link, err := family.LookupLink(ref.Link)
	if err != nil {
		return nil, err
	}
	switch method {
	case MethodAnalytic:
		cf, ok := fam.(family.ClosedFormer)
		if !ok || !cf.ClosedForm(link) {
			return nil, fmt.Errorf("analytic projection needs a closed-form family, got %s with %s link: %w", fam.Name(), link.Name, model.ErrUnsupported)
		}
	case MethodGradient:
	case MethodMeanField:
		if !fam.HasDispersion() || fam.NumDispersion() != 1 {
			return nil, fmt.Errorf("mean-field projection for the %s family: %w", fam.Name(), model.ErrNotImplemented)
		}
	default:
		if _, err := ParseMethod(string(method)); err != nil {
			return nil, err
		}
	}
	return &Solver{
		ref:     ref,
		refData: refData,
		family:  fam,
		link:    link,
		method:  method,
		opts:    opts.withDefaults(),
		state:   StateInitialized,
	}, nil
}

// State returns the current lifecycle state.
func (s *Solver) State() State { return s.state }

// Method returns the configured strategy.
func (s *Solver) Method() Method { return s.method }

// Solve runs the configured strategy against st. A Solver serves one
// request; calling Solve twice is an error.
func (s *Solver) Solve(ctx context.Context, st *model.Structure) (*Result, error) {
	if s.state != StateInitialized {
		return nil, fmt.Errorf("solver is %s, want %s: %w", s.state, StateInitialized, model.ErrInvalidArgument)
	}
	if st.NumObs != s.ref.NumObs {
		s.state = StateFailed
		return nil, fmt.Errorf("restricted structure has %d observations, reference has %d: %w", st.NumObs, s.ref.NumObs, model.ErrShapeMismatch)
	}
	s.state = StateOptimizing
	start := time.Now()

	var (
		res *Result
		err error
	)
	switch s.method {
	case MethodAnalytic:
		res, err = s.solveAnalytic(st)
	case MethodGradient:
		res, err = s.solveGradient(ctx, st)
	case MethodMeanField:
		res, err = s.solveMeanField(ctx, st)
	}
	if err != nil {
		s.state = StateFailed
		return nil, fmt.Errorf("%s projection onto %v: %w", s.method, st.CommonTerms, err)
	}

	if r, c := res.ThetaPerp.Dims(); r != s.refData.NumSamples() || c != st.NumTerms {
		panic(fmt.Sprintf("solver: projected draws are %d×%d, want %d×%d", r, c, s.refData.NumSamples(), st.NumTerms))
	}
	s.state = StateDone
	monitoring.Debugf("solver: %s onto %v done in %v (loss=%.6g, non-converged=%d)",
		s.method, st.CommonTerms, time.Since(start), res.Loss, res.NonConverged)
	return res, nil
}

// SolveDispersion returns the projected dispersion draws for res. It
// returns nil for families without dispersion and the strategy's own
// estimate when it produced one.
func (s *Solver) SolveDispersion(st *model.Structure, res *Result) ([]float64, error) {
	if !s.family.HasDispersion() {
		return nil, nil
	}
	if res.DispPerp != nil {
		return res.DispPerp, nil
	}
	theta, err := s.refData.PosteriorMatrix(s.ref.TermNames)
	if err != nil {
		return nil, err
	}
	sigma, err := s.referenceDispersion()
	if err != nil {
		return nil, err
	}
	return s.family.ProjectDispersion(family.DispersionInput{
		X:         s.ref.X,
		Theta:     theta,
		XPerp:     st.X,
		ThetaPerp: res.ThetaPerp,
		Sigma:     sigma,
	})
}

// referenceDispersion returns the reference dispersion draws, reading the
// natural variable first and falling back to the log-transformed one.
func (s *Solver) referenceDispersion() ([]float64, error) {
	names := s.family.DispersionNames(s.ref.ResponseName)
	if len(names) != 1 {
		return nil, fmt.Errorf("%d dispersion parameters for the %s family: %w", len(names), s.family.Name(), model.ErrNotImplemented)
	}
	if arr, ok := s.refData.Posterior[names[0]]; ok {
		return append([]float64(nil), arr.Data...), nil
	}
	if arr, ok := s.refData.Posterior[s.ref.LogDispersionName()]; ok {
		return arr.Exp().Data, nil
	}
	return nil, fmt.Errorf("reference posterior has no %q: %w", names[0], model.ErrInvalidArgument)
}

// predictiveMeans returns link^-1(theta · Xᵀ), samples × obs.
func (s *Solver) predictiveMeans(x, theta *mat.Dense) *mat.Dense {
	var mu mat.Dense
	mu.Mul(theta, x.T())
	raw := mu.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		for j, v := range row {
			row[j] = s.link.Inverse(v)
		}
	}
	return &mu
}
