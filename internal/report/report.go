// Package report renders the ELPD-versus-model-size comparison of a
// projection run, as a static PNG chart or an interactive HTML page.
package report

import (
	"errors"
	"fmt"

	"github.com/banshee-data/projpred/internal/elpd"
)

// ErrNoSubmodels is returned when a comparison has only the reference row.
var ErrNoSubmodels = errors.New("report: comparison has no submodels")

// comparison splits comparison rows into the reference and its submodels.
func comparison(rows []elpd.Row) (elpd.Row, []elpd.Row, error) {
	if len(rows) == 0 {
		return elpd.Row{}, nil, fmt.Errorf("report: empty comparison")
	}
	if len(rows) == 1 {
		return elpd.Row{}, nil, ErrNoSubmodels
	}
	return rows[0], rows[1:], nil
}
