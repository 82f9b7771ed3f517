package model

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/projpred/internal/fsutil"
)

// ReferenceFile is the on-disk exchange format produced by the external
// modelling layer for an already-fitted reference model. Posterior and
// posterior-predictive vectors are flattened chain-major.
type ReferenceFile struct {
	Response  string      `json:"response"`
	Family    string      `json:"family"`
	Link      string      `json:"link,omitempty"`
	TermNames []string    `json:"term_names"`
	X         [][]float64 `json:"x"`
	Y         []float64   `json:"y"`

	Posterior struct {
		Chains int                  `json:"chains"`
		Draws  int                  `json:"draws"`
		Vars   map[string][]float64 `json:"vars"`
	} `json:"posterior"`

	PosteriorPredictive map[string][]float64 `json:"posterior_predictive,omitempty"`
}

// LoadReference reads a ReferenceFile from path and converts it into a
// reference Structure and its InferenceData.
func LoadReference(fsys fsutil.FileSystem, path string) (*Structure, *InferenceData, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read reference model: %w", err)
	}
	var rf ReferenceFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, nil, fmt.Errorf("failed to parse reference model JSON: %w", err)
	}
	return rf.Build()
}

// Build converts the decoded file into model values.
func (rf *ReferenceFile) Build() (*Structure, *InferenceData, error) {
	if len(rf.X) == 0 {
		return nil, nil, fmt.Errorf("reference model has no observations: %w", ErrInvalidArgument)
	}
	cols := len(rf.X[0])
	x := mat.NewDense(len(rf.X), cols, nil)
	for i, row := range rf.X {
		if len(row) != cols {
			return nil, nil, fmt.Errorf("design row %d has %d columns, want %d: %w", i, len(row), cols, ErrShapeMismatch)
		}
		x.SetRow(i, row)
	}

	chains, draws := rf.Posterior.Chains, rf.Posterior.Draws
	if chains <= 0 || draws <= 0 {
		return nil, nil, fmt.Errorf("posterior layout %d×%d is empty: %w", chains, draws, ErrInvalidArgument)
	}

	st, err := NewStructure(StructureConfig{
		X:            x,
		Y:            rf.Y,
		TermNames:    rf.TermNames,
		ResponseName: rf.Response,
		Family:       rf.Family,
		Link:         rf.Link,
		NumDraws:     chains * draws,
	})
	if err != nil {
		return nil, nil, err
	}

	id := NewInferenceData(chains, draws)
	for name, v := range rf.Posterior.Vars {
		if err := id.AddPosterior(name, v); err != nil {
			return nil, nil, err
		}
	}
	for name, v := range rf.PosteriorPredictive {
		if err := id.AddPosteriorPredictive(name, v, st.NumObs); err != nil {
			return nil, nil, err
		}
	}
	id.ObservedData[st.ResponseName] = append([]float64(nil), rf.Y...)
	return st, id, nil
}
