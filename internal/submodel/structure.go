package submodel

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/projpred/internal/model"
)

// StructureFactory creates restricted structures from a reference.
type StructureFactory struct {
	ref *model.Structure
}

// NewStructureFactory returns a factory over ref.
func NewStructureFactory(ref *model.Structure) *StructureFactory {
	return &StructureFactory{ref: ref}
}

// Create builds the submodel over termNames. The intercept is always
// prepended, so the design matrix has len(termNames)+1 columns. Every name
// must be a covariate of the reference model.
func (f *StructureFactory) Create(termNames []string) (*model.Structure, error) {
	seen := make(map[string]bool, len(termNames))
	for _, name := range termNames {
		if !f.ref.HasTerm(name) {
			return nil, fmt.Errorf("term %q is not in the reference model %v: %w", name, f.ref.CommonTerms, model.ErrInvalidArgument)
		}
		if seen[name] {
			return nil, fmt.Errorf("term %q given twice: %w", name, model.ErrInvalidArgument)
		}
		seen[name] = true
	}

	n := f.ref.NumObs
	cols := len(termNames) + 1
	x := mat.NewDense(n, cols, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
	}
	for j, name := range termNames {
		col := f.ref.TermIndex(name)
		for i := 0; i < n; i++ {
			x.Set(i, j+1, f.ref.X.At(i, col))
		}
	}

	names := append([]string{model.InterceptName}, termNames...)
	st := &model.Structure{
		X:            x,
		Y:            f.ref.Y,
		ResponseName: f.ref.ResponseName,
		Family:       f.ref.Family,
		Link:         f.ref.Link,
		TermNames:    names,
		CommonTerms:  append([]string{}, termNames...),
		NumObs:       n,
		NumTerms:     cols,
		ModelSize:    len(termNames),
		NumDraws:     f.ref.NumDraws,
		HasIntercept: true,
	}

	// internal consistency, not user input
	if r, c := st.X.Dims(); r != f.ref.NumObs || c != len(termNames)+1 {
		panic(fmt.Sprintf("submodel: design matrix is %d×%d, want %d×%d", r, c, f.ref.NumObs, len(termNames)+1))
	}
	return st, nil
}

// CreateSize builds the submodel over the first size covariates of the
// reference, in reference order. A size equal to the reference model size
// reproduces the reference design.
func (f *StructureFactory) CreateSize(size int) (*model.Structure, error) {
	if size < 0 || size > f.ref.ModelSize {
		return nil, fmt.Errorf("model size %d is outside [0, %d]: %w", size, f.ref.ModelSize, model.ErrInvalidArgument)
	}
	return f.Create(f.ref.CommonTerms[:size])
}
