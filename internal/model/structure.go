package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// InterceptName is the term name of the design-matrix column of ones.
const InterceptName = "Intercept"

// Structure describes the design of a reference model or submodel: its
// design matrix, response and term bookkeeping. A Structure is treated as
// immutable once built; restricted structures are always new values.
type Structure struct {
	X            *mat.Dense
	Y            []float64
	ResponseName string
	Family       string
	Link         string

	// TermNames lists one name per column of X, intercept first.
	TermNames []string
	// CommonTerms lists the covariates of the model, excluding the intercept.
	CommonTerms []string

	NumObs       int
	NumTerms     int
	ModelSize    int
	NumDraws     int
	HasIntercept bool
}

// StructureConfig carries the inputs supplied by the external modelling
// layer when building a reference structure.
type StructureConfig struct {
	X            *mat.Dense
	Y            []float64
	TermNames    []string
	ResponseName string
	Family       string
	Link         string
	NumDraws     int
}

// NewStructure validates cfg and builds a Structure from it. The design
// matrix and response are used as given, not copied.
func NewStructure(cfg StructureConfig) (*Structure, error) {
	if cfg.X == nil {
		return nil, fmt.Errorf("design matrix is nil: %w", ErrInvalidArgument)
	}
	rows, cols := cfg.X.Dims()
	if rows != len(cfg.Y) {
		return nil, fmt.Errorf("design matrix has %d rows but response has %d values: %w", rows, len(cfg.Y), ErrShapeMismatch)
	}
	if cols != len(cfg.TermNames) {
		return nil, fmt.Errorf("design matrix has %d columns but %d term names were given: %w", cols, len(cfg.TermNames), ErrShapeMismatch)
	}
	seen := make(map[string]bool, len(cfg.TermNames))
	for _, name := range cfg.TermNames {
		if seen[name] {
			return nil, fmt.Errorf("duplicate term name %q: %w", name, ErrInvalidArgument)
		}
		seen[name] = true
	}
	if cfg.ResponseName == "" {
		return nil, fmt.Errorf("response name is empty: %w", ErrInvalidArgument)
	}

	hasIntercept := len(cfg.TermNames) > 0 && cfg.TermNames[0] == InterceptName
	common := cfg.TermNames
	if hasIntercept {
		common = cfg.TermNames[1:]
	}

	link := cfg.Link
	if link == "" {
		link = "identity"
	}

	return &Structure{
		X:            cfg.X,
		Y:            cfg.Y,
		ResponseName: cfg.ResponseName,
		Family:       cfg.Family,
		Link:         link,
		TermNames:    append([]string(nil), cfg.TermNames...),
		CommonTerms:  append([]string{}, common...),
		NumObs:       rows,
		NumTerms:     cols,
		ModelSize:    len(common),
		NumDraws:     cfg.NumDraws,
		HasIntercept: hasIntercept,
	}, nil
}

// TermIndex returns the column of X holding the named term, or -1.
func (s *Structure) TermIndex(name string) int {
	for i, t := range s.TermNames {
		if t == name {
			return i
		}
	}
	return -1
}

// HasTerm reports whether name is one of the model's covariates.
func (s *Structure) HasTerm(name string) bool {
	for _, t := range s.CommonTerms {
		if t == name {
			return true
		}
	}
	return false
}

// DispersionName is the posterior variable holding the response scale.
func (s *Structure) DispersionName() string {
	return s.ResponseName + "_sigma"
}

// LogDispersionName is the log-transformed variant of DispersionName.
func (s *Structure) LogDispersionName() string {
	return s.ResponseName + "_sigma_log__"
}

// Validate checks the dimensional invariants of the structure.
func (s *Structure) Validate() error {
	rows, cols := s.X.Dims()
	if rows != s.NumObs {
		return fmt.Errorf("X has %d rows, want %d: %w", rows, s.NumObs, ErrShapeMismatch)
	}
	if cols != s.NumTerms || cols != len(s.TermNames) {
		return fmt.Errorf("X has %d columns, want %d (%d term names): %w", cols, s.NumTerms, len(s.TermNames), ErrShapeMismatch)
	}
	if s.HasIntercept && s.NumTerms != s.ModelSize+1 {
		return fmt.Errorf("num_terms %d != model_size %d + 1: %w", s.NumTerms, s.ModelSize, ErrShapeMismatch)
	}
	if s.HasIntercept && s.TermNames[0] != InterceptName {
		return fmt.Errorf("first term is %q, want %q: %w", s.TermNames[0], InterceptName, ErrInvalidArgument)
	}
	return nil
}

// String summarises the structure for diagnostics.
func (s *Structure) String() string {
	return fmt.Sprintf("%s ~ %v (%s, obs=%d, size=%d)", s.ResponseName, s.CommonTerms, s.Family, s.NumObs, s.ModelSize)
}
