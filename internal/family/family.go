// Package family defines the distribution-family capability used by the
// projection engine: a divergence between predictive means, the projection
// of dispersion parameters and the observation likelihood. Adding a family
// means adding one implementation and registering it.
package family

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/projpred/internal/model"
)

// Family is the per-distribution capability set.
type Family interface {
	// Name is the identifier the family is registered under.
	Name() string

	// HasDispersion reports whether the family carries dispersion
	// parameters that must be projected alongside the coefficients.
	HasDispersion() bool

	// NumDispersion is the number of non-negative dispersion parameters
	// appended after the coefficients in an optimisation vector.
	NumDispersion() int

	// DispersionNames names the posterior variables of the dispersion
	// parameters for the given response.
	DispersionNames(response string) []string

	// Divergence is the loss between reference and submodel predictive
	// means, both samples × observations.
	Divergence(muRef, muPerp *mat.Dense) float64

	// DivergenceGrad writes the derivative of Divergence with respect to
	// muPerp into grad, which has the same shape as muPerp.
	DivergenceGrad(grad, muRef, muPerp *mat.Dense)

	// ProjectDispersion projects the reference dispersion draws onto the
	// submodel, one value per posterior sample.
	ProjectDispersion(in DispersionInput) ([]float64, error)

	// NegLogLikelihood is the negative log-likelihood of obs given the mean
	// vector mu and dispersion parameters disp.
	NegLogLikelihood(obs, mu, disp []float64) float64

	// LogLikelihood writes the pointwise log-likelihood of obs into dst.
	LogLikelihood(dst, obs, mu, disp []float64)

	// Rand draws one observation with mean mu from src.
	Rand(mu float64, disp []float64, src rand.Source) float64
}

// ClosedFormer is implemented by families whose coefficient projection has
// a closed-form least-squares solution under the given link.
type ClosedFormer interface {
	ClosedForm(link Link) bool
}

// DispersionInput carries the reference and projected draws needed to
// project dispersion parameters. Coefficient matrices are samples × terms.
type DispersionInput struct {
	X         *mat.Dense
	Theta     *mat.Dense
	XPerp     *mat.Dense
	ThetaPerp *mat.Dense
	Sigma     []float64
}

// Registry maps family identifiers to constructors.
type Registry struct {
	mu       sync.RWMutex
	families map[string]func() Family
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]func() Family)}
}

// Register adds a family constructor. An existing entry is replaced.
func (r *Registry) Register(name string, ctor func() Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[name] = ctor
}

// Lookup returns a new instance of the named family.
func (r *Registry) Lookup(name string) (Family, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.families[name]
	if !ok {
		return nil, fmt.Errorf("the %q family has not yet been implemented: %w", name, model.ErrNotImplemented)
	}
	return ctor(), nil
}

// Names lists the registered families in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register(GaussianName, func() Family { return Gaussian{} })
	return r
}()

// Lookup returns the named family from the default registry.
func Lookup(name string) (Family, error) { return defaultRegistry.Lookup(name) }

// Register adds a family to the default registry.
func Register(name string, ctor func() Family) { defaultRegistry.Register(name, ctor) }
