package model

import "errors"

// Error taxonomy shared by every projection package. Callers match with
// errors.Is; producers wrap with fmt.Errorf("...: %w", ErrX).
var (
	// ErrInvalidArgument reports bad user input: unknown term names, an
	// out-of-range model size or an unset terms argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotImplemented reports a feature that exists as an extension point
	// only, such as non-Gaussian dispersion projection or the search heuristic.
	ErrNotImplemented = errors.New("not implemented")

	// ErrShapeMismatch reports element counts that disagree with the
	// reference (chain, draw, ...) layout.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnsupported reports a family/method combination that cannot run.
	ErrUnsupported = errors.New("unsupported configuration")
)
