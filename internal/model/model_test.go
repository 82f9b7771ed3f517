package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/projpred/internal/fsutil"
)

func TestNewArray(t *testing.T) {
	arr, err := NewArray([]float64{0, 1, 2, 3, 4, 5}, 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, arr.Len())
	assert.Equal(t, 5.0, arr.At(0, 1, 2))
	assert.Equal(t, 3.0, arr.At(0, 1, 0))
	assert.Equal(t, 2.5, arr.Mean())

	_, err = NewArray([]float64{1, 2, 3}, 2, 2)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = NewArray(nil, -1)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	assert.Panics(t, func() { arr.At(0, 2, 0) })
	assert.Panics(t, func() { arr.At(0, 1) })
}

func TestArray_LogExp(t *testing.T) {
	arr, err := NewArray([]float64{1, math.E, 4}, 1, 3)
	require.NoError(t, err)
	logged := arr.Log()
	assert.InDeltaSlice(t, []float64{0, 1, math.Log(4)}, logged.Data, 1e-15)
	assert.Equal(t, arr.Shape, logged.Shape)
	assert.InDeltaSlice(t, arr.Data, logged.Exp().Data, 1e-14)
	assert.Equal(t, 1.0, arr.Data[0], "Log must not modify the receiver")
	assert.Equal(t, 0.0, Array{}.Mean())
}

func newTestStructure(t *testing.T) *Structure {
	t.Helper()
	st, err := NewStructure(StructureConfig{
		X:            mat.NewDense(3, 3, []float64{1, 0.5, 2, 1, -1, 0, 1, 2, 1}),
		Y:            []float64{1, 2, 3},
		TermNames:    []string{"Intercept", "a", "b"},
		ResponseName: "y",
		Family:       "gaussian",
		NumDraws:     4,
	})
	require.NoError(t, err)
	return st
}

func TestNewStructure(t *testing.T) {
	st := newTestStructure(t)
	assert.True(t, st.HasIntercept)
	assert.Equal(t, []string{"a", "b"}, st.CommonTerms)
	assert.Equal(t, 3, st.NumObs)
	assert.Equal(t, 3, st.NumTerms)
	assert.Equal(t, 2, st.ModelSize)
	assert.Equal(t, "identity", st.Link)
	assert.Equal(t, 2, st.TermIndex("b"))
	assert.Equal(t, -1, st.TermIndex("c"))
	assert.True(t, st.HasTerm("a"))
	assert.False(t, st.HasTerm("Intercept"))
	assert.Equal(t, "y_sigma", st.DispersionName())
	assert.Equal(t, "y_sigma_log__", st.LogDispersionName())
	assert.NoError(t, st.Validate())
	assert.Equal(t, "y ~ [a b] (gaussian, obs=3, size=2)", st.String())
}

func TestNewStructure_Errors(t *testing.T) {
	x := mat.NewDense(2, 2, nil)
	tests := []struct {
		name string
		cfg  StructureConfig
		want error
	}{
		{"nil X", StructureConfig{Y: []float64{1}, ResponseName: "y"}, ErrInvalidArgument},
		{"rows", StructureConfig{X: x, Y: []float64{1}, TermNames: []string{"Intercept", "a"}, ResponseName: "y"}, ErrShapeMismatch},
		{"cols", StructureConfig{X: x, Y: []float64{1, 2}, TermNames: []string{"Intercept"}, ResponseName: "y"}, ErrShapeMismatch},
		{"duplicate", StructureConfig{X: x, Y: []float64{1, 2}, TermNames: []string{"a", "a"}, ResponseName: "y"}, ErrInvalidArgument},
		{"response", StructureConfig{X: x, Y: []float64{1, 2}, TermNames: []string{"Intercept", "a"}}, ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStructure(tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStructure_Validate(t *testing.T) {
	st := newTestStructure(t)
	broken := *st
	broken.NumTerms = 2
	assert.ErrorIs(t, broken.Validate(), ErrShapeMismatch)

	broken = *st
	broken.NumObs = 5
	assert.ErrorIs(t, broken.Validate(), ErrShapeMismatch)

	broken = *st
	broken.ModelSize = 1
	assert.ErrorIs(t, broken.Validate(), ErrShapeMismatch)
}

func TestInferenceData(t *testing.T) {
	id := NewInferenceData(2, 3)
	assert.Equal(t, 6, id.NumSamples())
	require.NoError(t, id.AddPosterior("b", []float64{1, 2, 3, 4, 5, 6}))
	require.NoError(t, id.AddPosterior("a", []float64{0, 0, 0, 1, 1, 1}))
	assert.ErrorIs(t, id.AddPosterior("c", []float64{1}), ErrShapeMismatch)
	assert.Equal(t, []string{"a", "b"}, id.PosteriorNames())

	// chain 1, draw 0 is flat sample 3
	assert.Equal(t, 4.0, id.Posterior["b"].At(1, 0))

	m, err := id.PosteriorMatrix([]string{"b", "a"})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, [2]int{6, 2}, [2]int{r, c})
	assert.Equal(t, []float64{4, 1}, m.RawRowView(3))

	_, err = id.PosteriorMatrix([]string{"z"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = id.PosteriorMatrix(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	means, err := id.PosteriorMean([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 3.5}, means)
	_, err = id.PosteriorMean([]string{"z"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInferenceData_LogLikelihood(t *testing.T) {
	id := NewInferenceData(1, 2)
	ll := []float64{-1, -2, -3, -4, -5, -6}
	require.NoError(t, id.AddLogLikelihood("y", ll, 3))
	assert.ErrorIs(t, id.AddLogLikelihood("y", ll, 4), ErrShapeMismatch)
	require.NoError(t, id.AddPosteriorPredictive("y", ll, 3))
	assert.ErrorIs(t, id.AddPosteriorPredictive("y", ll[:5], 3), ErrShapeMismatch)

	for _, name := range []string{"y", ""} {
		m, err := id.PooledLogLikelihood(name)
		require.NoError(t, err)
		assert.Equal(t, -6.0, m.At(1, 2))
	}
	_, err := id.PooledLogLikelihood("z")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	id.LogLikelihood["flat"] = Array{Shape: []int{6}, Data: ll}
	_, err = id.PooledLogLikelihood("flat")
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestInferenceData_Clone(t *testing.T) {
	id := NewInferenceData(1, 2)
	require.NoError(t, id.AddPosterior("a", []float64{1, 2}))
	id.ObservedData["y"] = []float64{3}

	c := id.Clone()
	require.NoError(t, c.AddPosterior("b", []float64{3, 4}))
	c.ObservedData["z"] = nil

	assert.Len(t, id.Posterior, 1)
	assert.Len(t, id.ObservedData, 1)
	assert.Equal(t, id.Posterior["a"], c.Posterior["a"])
}

func TestTerms(t *testing.T) {
	names := Names("x2", "x1")
	assert.True(t, names.ByName())
	assert.False(t, names.BySize())
	assert.Equal(t, []string{"x2", "x1"}, names.List())
	assert.Equal(t, "names[x2 x1]", names.String())

	empty := Names()
	assert.True(t, empty.ByName())
	assert.Empty(t, empty.List())

	size := Size(3)
	assert.True(t, size.BySize())
	assert.Equal(t, 3, size.Count())
	assert.Equal(t, "size(3)", size.String())

	var unset Terms
	assert.False(t, unset.ByName())
	assert.False(t, unset.BySize())
	assert.Equal(t, "unset", unset.String())
}

func TestModelData(t *testing.T) {
	st := newTestStructure(t)
	md := &ModelData{Structure: st}
	assert.Equal(t, 2, md.ModelSize())
	assert.Equal(t, []string{"Intercept", "a", "b"}, md.TermNames())
}

func writeReference(t *testing.T, fsys *fsutil.MemoryFileSystem, rf ReferenceFile) {
	t.Helper()
	data, err := json.Marshal(rf)
	require.NoError(t, err)
	require.NoError(t, fsys.WriteFile("/ref.json", data, 0o644))
}

func sampleReference() ReferenceFile {
	rf := ReferenceFile{
		Response:  "y",
		Family:    "gaussian",
		TermNames: []string{"Intercept", "x1"},
		X:         [][]float64{{1, 0.5}, {1, -0.5}, {1, 2}},
		Y:         []float64{1, 0, 3},
	}
	rf.Posterior.Chains = 1
	rf.Posterior.Draws = 2
	rf.Posterior.Vars = map[string][]float64{
		"Intercept": {0.1, 0.2},
		"x1":        {1.1, 0.9},
		"y_sigma":   {1, 1.2},
	}
	rf.PosteriorPredictive = map[string][]float64{"y": {1, 2, 3, 4, 5, 6}}
	return rf
}

func TestLoadReference(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writeReference(t, fsys, sampleReference())

	st, id, err := LoadReference(fsys, "/ref.json")
	require.NoError(t, err)
	assert.Equal(t, 3, st.NumObs)
	assert.Equal(t, 1, st.ModelSize)
	assert.Equal(t, 2, st.NumDraws)
	assert.Equal(t, "identity", st.Link)
	assert.Equal(t, 2.0, st.X.At(2, 1))
	assert.Equal(t, []float64{1, 0, 3}, id.ObservedData["y"])
	assert.Equal(t, []int{1, 2, 3}, id.PosteriorPredictive["y"].Shape)
	assert.Equal(t, 1.2, id.Posterior["y_sigma"].At(0, 1))
}

func TestLoadReference_Errors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	_, _, err := LoadReference(fsys, "/missing.json")
	assert.Error(t, err)

	require.NoError(t, fsys.WriteFile("/bad.json", []byte("{"), 0o644))
	_, _, err = LoadReference(fsys, "/bad.json")
	assert.Error(t, err)

	tests := []struct {
		name   string
		mutate func(*ReferenceFile)
		want   error
	}{
		{"no rows", func(rf *ReferenceFile) { rf.X = nil }, ErrInvalidArgument},
		{"ragged", func(rf *ReferenceFile) { rf.X[1] = []float64{1} }, ErrShapeMismatch},
		{"no draws", func(rf *ReferenceFile) { rf.Posterior.Draws = 0 }, ErrInvalidArgument},
		{"short posterior", func(rf *ReferenceFile) { rf.Posterior.Vars["x1"] = []float64{1} }, ErrShapeMismatch},
		{"short predictive", func(rf *ReferenceFile) { rf.PosteriorPredictive["y"] = []float64{1} }, ErrShapeMismatch},
		{"names", func(rf *ReferenceFile) { rf.TermNames = []string{"Intercept"} }, ErrShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf := sampleReference()
			tt.mutate(&rf)
			writeReference(t, fsys, rf)
			_, _, err := LoadReference(fsys, "/ref.json")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
