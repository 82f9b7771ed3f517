package family

import (
	"fmt"
	"math"

	"github.com/banshee-data/projpred/internal/model"
)

// Link maps the linear predictor onto the mean scale.
type Link struct {
	Name string
	// Inverse maps eta to mu.
	Inverse func(eta float64) float64
	// Deriv is d mu / d eta evaluated at eta.
	Deriv func(eta float64) float64
}

var links = map[string]Link{
	"identity": {
		Name:    "identity",
		Inverse: func(eta float64) float64 { return eta },
		Deriv:   func(float64) float64 { return 1 },
	},
	"log": {
		Name:    "log",
		Inverse: math.Exp,
		Deriv:   math.Exp,
	},
	"logit": {
		Name:    "logit",
		Inverse: logistic,
		Deriv: func(eta float64) float64 {
			p := logistic(eta)
			return p * (1 - p)
		},
	},
}

func logistic(eta float64) float64 { return 1 / (1 + math.Exp(-eta)) }

// LookupLink returns the named link. An empty name selects identity.
func LookupLink(name string) (Link, error) {
	if name == "" {
		name = "identity"
	}
	l, ok := links[name]
	if !ok {
		return Link{}, fmt.Errorf("link %q: %w", name, model.ErrNotImplemented)
	}
	return l, nil
}
