package model

import "github.com/banshee-data/projpred/internal/elpd"

// ModelData is the snapshot of a reference model or a projected submodel.
// A restricted ModelData is produced once per projection and never mutated
// afterwards; the reference is never modified by a projection.
type ModelData struct {
	Structure *Structure
	IData     *InferenceData

	// DistToRefModel is the projection loss; zero for the reference itself.
	DistToRefModel float64
	ELPD           *elpd.Estimate

	// NonConverged counts per-sample optimisations that stopped without
	// reporting convergence.
	NonConverged int
}

// ModelSize returns the number of covariates, excluding the intercept.
func (m *ModelData) ModelSize() int { return m.Structure.ModelSize }

// TermNames returns the term names of the model, intercept first.
func (m *ModelData) TermNames() []string { return m.Structure.TermNames }
