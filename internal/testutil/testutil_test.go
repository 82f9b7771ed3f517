package testutil

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/projpred/internal/model"
)

func TestAssertHelpers_PassingPaths(t *testing.T) {
	t.Parallel()

	AssertNoError(t, nil)
	AssertError(t, errors.New("boom"))
	AssertErrorIs(t, errors.Join(model.ErrNotImplemented), model.ErrNotImplemented)
}

func TestGaussianFixture_Shapes(t *testing.T) {
	t.Parallel()

	f := DefaultGaussianFixture()
	f.Chains = 2
	f.Draws = 30
	f.WithPredictive = true
	st, id := f.Build(t)

	assert.Equal(t, []string{"Intercept", "x1", "x2"}, st.TermNames)
	assert.Equal(t, []string{"x1", "x2"}, st.CommonTerms)
	assert.Equal(t, 50, st.NumObs)
	assert.Equal(t, 2, st.ModelSize)
	assert.Equal(t, 60, st.NumDraws)
	require.NoError(t, st.Validate())

	for _, name := range []string{"Intercept", "x1", "x2", "y_sigma"} {
		arr, ok := id.Posterior[name]
		require.True(t, ok, "missing posterior %s", name)
		assert.Equal(t, []int{2, 30}, arr.Shape)
	}
	pp, ok := id.PosteriorPredictive["y"]
	require.True(t, ok)
	assert.Equal(t, []int{2, 30, 50}, pp.Shape)
	assert.Len(t, id.ObservedData["y"], 50)
}

func TestGaussianFixture_PosteriorCentredOnTruth(t *testing.T) {
	t.Parallel()

	f := DefaultGaussianFixture()
	f.NumObs = 400
	f.Draws = 400
	_, id := f.Build(t)

	means, err := id.PosteriorMean([]string{"Intercept", "x1", "x2", "y_sigma"})
	require.NoError(t, err)
	want := []float64{1, 2, -1, 1}
	for j := range want {
		assert.InDelta(t, want[j], means[j], 0.25, "posterior mean %d", j)
	}
	for _, v := range id.Posterior["y_sigma"].Data {
		assert.True(t, v > 0 && !math.IsInf(v, 0))
	}
}

func TestGaussianFixture_Deterministic(t *testing.T) {
	t.Parallel()

	f := DefaultGaussianFixture()
	_, a := f.Build(t)
	_, b := f.Build(t)
	assert.Equal(t, a.Posterior["x1"].Data, b.Posterior["x1"].Data)
}
