package submodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/projpred/internal/backend"
	"github.com/banshee-data/projpred/internal/model"
)

// InferenceDataBuilder turns projected parameter draws into the inference
// data of a submodel. Log-likelihood is evaluated by the reference backend
// against the reference design, with dropped terms fixed at zero.
type InferenceDataBuilder struct {
	ref     *model.Structure
	refData *model.InferenceData
	eval    backend.Evaluator
}

// NewInferenceDataBuilder returns a builder over the reference model.
func NewInferenceDataBuilder(ref *model.Structure, refData *model.InferenceData, eval backend.Evaluator) *InferenceDataBuilder {
	return &InferenceDataBuilder{ref: ref, refData: refData, eval: eval}
}

// Create builds the inference data of st. thetaPerp is samples × terms in
// chain-major order; dispPerp holds one dispersion value per sample and is
// ignored when nil.
func (b *InferenceDataBuilder) Create(st *model.Structure, thetaPerp *mat.Dense, dispPerp []float64) (*model.InferenceData, error) {
	chains, draws := b.refData.Chains, b.refData.Draws
	samples := chains * draws
	r, c := thetaPerp.Dims()
	if r*c != samples*st.NumTerms || c != st.NumTerms {
		return nil, fmt.Errorf("projected draws are %d×%d, want %d×%d (%d chains, %d draws): %w",
			r, c, samples, st.NumTerms, chains, draws, model.ErrShapeMismatch)
	}

	id := model.NewInferenceData(chains, draws)
	for j, name := range st.TermNames {
		if err := id.AddPosterior(name, mat.Col(nil, j, thetaPerp)); err != nil {
			return nil, err
		}
	}

	if dispPerp != nil {
		if len(dispPerp) != samples {
			return nil, fmt.Errorf("projected dispersion has %d draws, want %d: %w", len(dispPerp), samples, model.ErrShapeMismatch)
		}
		logDisp := make([]float64, samples)
		for i, v := range dispPerp {
			logDisp[i] = math.Log(v)
		}
		if err := id.AddPosterior(st.DispersionName(), append([]float64(nil), dispPerp...)); err != nil {
			return nil, err
		}
		if err := id.AddPosterior(st.LogDispersionName(), logDisp); err != nil {
			return nil, err
		}
	}

	points, err := backend.PointsFromPosterior(id)
	if err != nil {
		return nil, err
	}
	ll, err := backend.LogLikelihoodAt(b.eval, points)
	if err != nil {
		return nil, err
	}
	for name, data := range ll {
		if err := id.AddLogLikelihood(name, data, st.NumObs); err != nil {
			return nil, err
		}
	}

	for name, obs := range b.refData.ObservedData {
		id.ObservedData[name] = obs
	}
	if _, ok := id.ObservedData[st.ResponseName]; !ok {
		id.ObservedData[st.ResponseName] = st.Y
	}
	return id, nil
}
