package model

import "fmt"

type termsKind int

const (
	termsUnset termsKind = iota
	termsNames
	termsSize
)

// Terms selects the covariates of a submodel, either by name or by count.
// The zero value selects nothing and is rejected by the projector.
type Terms struct {
	kind  termsKind
	names []string
	size  int
}

// Names selects covariates by name, in the given order. No names selects the
// intercept-only model.
func Names(names ...string) Terms {
	return Terms{kind: termsNames, names: append([]string{}, names...)}
}

// Size selects the given number of covariates, excluding the intercept.
func Size(n int) Terms {
	return Terms{kind: termsSize, size: n}
}

// ByName reports whether the selection is a list of names.
func (t Terms) ByName() bool { return t.kind == termsNames }

// BySize reports whether the selection is a covariate count.
func (t Terms) BySize() bool { return t.kind == termsSize }

// List returns a copy of the selected names.
func (t Terms) List() []string { return append([]string{}, t.names...) }

// Count returns the requested covariate count for a size selection.
func (t Terms) Count() int { return t.size }

func (t Terms) String() string {
	switch t.kind {
	case termsNames:
		return fmt.Sprintf("names%v", t.names)
	case termsSize:
		return fmt.Sprintf("size(%d)", t.size)
	default:
		return "unset"
	}
}
