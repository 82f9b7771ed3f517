package submodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/projpred/internal/backend"
	"github.com/banshee-data/projpred/internal/family"
	"github.com/banshee-data/projpred/internal/model"
	"github.com/banshee-data/projpred/internal/testutil"
)

func newBuilder(t *testing.T) (*model.Structure, *model.InferenceData, *InferenceDataBuilder) {
	t.Helper()
	ref, id := testutil.DefaultGaussianFixture().Build(t)
	glm, err := backend.NewGLM(ref, family.Gaussian{})
	require.NoError(t, err)
	return ref, id, NewInferenceDataBuilder(ref, id, glm)
}

func constantDraws(samples int, row ...float64) *mat.Dense {
	m := mat.NewDense(samples, len(row), nil)
	for i := 0; i < samples; i++ {
		m.SetRow(i, row)
	}
	return m
}

func TestInferenceDataBuilder_Shapes(t *testing.T) {
	ref, refData, b := newBuilder(t)
	st, err := NewStructureFactory(ref).Create([]string{"x1"})
	require.NoError(t, err)

	sigma := make([]float64, 100)
	for i := range sigma {
		sigma[i] = 1.5
	}
	id, err := b.Create(st, constantDraws(100, 1, 2), sigma)
	require.NoError(t, err)

	assert.Equal(t, refData.Chains, id.Chains)
	assert.Equal(t, refData.Draws, id.Draws)
	for _, name := range []string{"Intercept", "x1"} {
		require.Contains(t, id.Posterior, name)
		assert.Equal(t, []int{1, 100}, id.Posterior[name].Shape)
	}
	assert.NotContains(t, id.Posterior, "x2")
	require.Contains(t, id.LogLikelihood, "y")
	assert.Equal(t, []int{1, 100, 50}, id.LogLikelihood["y"].Shape)
	assert.Equal(t, ref.Y, id.ObservedData["y"])

	assert.Equal(t, 1.5, id.Posterior["y_sigma"].At(0, 7))
	assert.InDelta(t, math.Log(1.5), id.Posterior["y_sigma_log__"].At(0, 7), 1e-15)
}

func TestInferenceDataBuilder_LogLikelihoodValues(t *testing.T) {
	ref, _, b := newBuilder(t)
	st, err := NewStructureFactory(ref).Create(nil)
	require.NoError(t, err)

	sigma := make([]float64, 100)
	for i := range sigma {
		sigma[i] = 2
	}
	id, err := b.Create(st, constantDraws(100, 0.5), sigma)
	require.NoError(t, err)

	ll := id.LogLikelihood["y"]
	for _, obs := range []int{0, 13, 49} {
		z := (ref.Y[obs] - 0.5) / 2
		want := -0.5*z*z - math.Log(2) - 0.5*math.Log(2*math.Pi)
		assert.InDelta(t, want, ll.At(0, 3, obs), 1e-12)
	}
}

func TestInferenceDataBuilder_WithoutDispersion(t *testing.T) {
	ref, refData, b := newBuilder(t)
	st, err := NewStructureFactory(ref).Create([]string{"x2"})
	require.NoError(t, err)

	// a Gaussian point without a scale cannot be evaluated
	_, err = b.Create(st, constantDraws(100, 0, 1), nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.Contains(t, refData.Posterior, "y_sigma", "reference draws are left alone")
}

func TestInferenceDataBuilder_ShapeMismatch(t *testing.T) {
	ref, _, b := newBuilder(t)
	st, err := NewStructureFactory(ref).Create([]string{"x1"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		theta *mat.Dense
		disp  []float64
	}{
		{"too few draws", constantDraws(99, 1, 2), nil},
		{"too many terms", constantDraws(100, 1, 2, 3), nil},
		{"dispersion length", constantDraws(100, 1, 2), []float64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := b.Create(st, tt.theta, tt.disp)
			assert.ErrorIs(t, err, model.ErrShapeMismatch)
			assert.Nil(t, id)
		})
	}
}
