package backend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/projpred/internal/family"
	"github.com/banshee-data/projpred/internal/model"
	"github.com/banshee-data/projpred/internal/testutil"
)

func newGLM(t *testing.T) (*GLM, *model.Structure, *model.InferenceData) {
	t.Helper()
	ref, id := testutil.DefaultGaussianFixture().Build(t)
	glm, err := NewGLM(ref, family.Gaussian{})
	require.NoError(t, err)
	return glm, ref, id
}

func TestNewGLM_UnknownLink(t *testing.T) {
	ref, _ := testutil.DefaultGaussianFixture().Build(t)
	ref.Link = "cloglog"
	_, err := NewGLM(ref, family.Gaussian{})
	assert.ErrorIs(t, err, model.ErrNotImplemented)
}

func TestGLM_MeanTreatsMissingTermsAsZero(t *testing.T) {
	glm, ref, _ := newGLM(t)

	mu := glm.Mean(Point{"Intercept": 2}, nil)
	require.Len(t, mu, ref.NumObs)
	for _, v := range mu {
		assert.Equal(t, 2.0, v)
	}

	mu = glm.Mean(Point{"Intercept": 1, "x2": 3}, mu)
	for i, v := range mu {
		assert.InDelta(t, 1+3*ref.X.At(i, 2), v, 1e-12)
	}
}

func TestGLM_Dispersion(t *testing.T) {
	glm, _, _ := newGLM(t)

	d, err := glm.Dispersion(Point{"y_sigma": 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, d)

	// the log-transformed variable wins
	d, err = glm.Dispersion(Point{"y_sigma": 2, "y_sigma_log__": math.Log(3)})
	require.NoError(t, err)
	assert.InDelta(t, 3, d[0], 1e-12)

	_, err = glm.Dispersion(Point{"Intercept": 1})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestGLM_LogLikelihood(t *testing.T) {
	glm, ref, _ := newGLM(t)
	ll, err := glm.LogLikelihood(Point{"Intercept": 0, "y_sigma": 1})
	require.NoError(t, err)
	require.Contains(t, ll, "y")
	for i, v := range ll["y"] {
		want := -0.5*ref.Y[i]*ref.Y[i] - 0.5*math.Log(2*math.Pi)
		assert.InDelta(t, want, v, 1e-12)
	}
}

func TestPointsFromPosterior(t *testing.T) {
	id := model.NewInferenceData(2, 2)
	require.NoError(t, id.AddPosterior("a", []float64{1, 2, 3, 4}))
	require.NoError(t, id.AddPosterior("b", []float64{5, 6, 7, 8}))

	points, err := PointsFromPosterior(id)
	require.NoError(t, err)
	require.Len(t, points, 4)
	assert.Equal(t, Point{"a": 3, "b": 7}, points[2])

	id.Posterior["c"] = model.Array{Shape: []int{1}, Data: []float64{1}}
	_, err = PointsFromPosterior(id)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestLogLikelihoodAt(t *testing.T) {
	glm, ref, id := newGLM(t)
	points, err := PointsFromPosterior(id)
	require.NoError(t, err)

	ll, err := LogLikelihoodAt(glm, points)
	require.NoError(t, err)
	require.Len(t, ll["y"], len(points)*ref.NumObs)

	single, err := glm.LogLikelihood(points[7])
	require.NoError(t, err)
	assert.Equal(t, single["y"], ll["y"][7*ref.NumObs:8*ref.NumObs])

	_, err = LogLikelihoodAt(glm, []Point{{"Intercept": 1}})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestGLM_PosteriorPredictive(t *testing.T) {
	glm, ref, id := newGLM(t)

	pp, err := glm.PosteriorPredictive(id, 5)
	require.NoError(t, err)
	require.Len(t, pp, id.NumSamples()*ref.NumObs)

	again, err := glm.PosteriorPredictive(id, 5)
	require.NoError(t, err)
	assert.Equal(t, pp, again, "same seed, same draws")

	other, err := glm.PosteriorPredictive(id, 6)
	require.NoError(t, err)
	assert.NotEqual(t, pp, other)

	// replicated data should look like the observed response
	assert.InDelta(t, stat.Mean(ref.Y, nil), stat.Mean(pp, nil), 0.3)

	delete(id.Posterior, "y_sigma")
	_, err = glm.PosteriorPredictive(id, 5)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}
