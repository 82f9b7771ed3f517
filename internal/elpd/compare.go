package elpd

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Entry is one model taking part in a comparison.
type Entry struct {
	Name     string
	Size     int
	Estimate *Estimate
}

// Row is one line of a comparison table. Diff is reference ELPD minus the
// row's ELPD, so larger values mean a worse submodel; DSE is the standard
// error of that difference.
type Row struct {
	Name    string  `json:"name"`
	Size    int     `json:"size"`
	ELPD    float64 `json:"elpd_loo"`
	SE      float64 `json:"se"`
	Diff    float64 `json:"elpd_diff"`
	DSE     float64 `json:"dse"`
	Warning bool    `json:"warning"`
}

// Compare builds the comparison table: the reference first, then submodels
// in ascending size order (ties keep their input order).
func Compare(ref Entry, subs []Entry) ([]Row, error) {
	if ref.Estimate == nil {
		return nil, fmt.Errorf("elpd: reference %q has no estimate", ref.Name)
	}
	rows := make([]Row, 0, len(subs)+1)
	rows = append(rows, Row{
		Name:    ref.Name,
		Size:    ref.Size,
		ELPD:    ref.Estimate.ELPD,
		SE:      ref.Estimate.SE,
		Warning: ref.Estimate.Warning,
	})

	ordered := append([]Entry(nil), subs...)
	sort.SliceStable(ordered, func(a, b int) bool { return ordered[a].Size < ordered[b].Size })

	n := len(ref.Estimate.Pointwise)
	diff := make([]float64, n)
	for _, sub := range ordered {
		if sub.Estimate == nil {
			return nil, fmt.Errorf("elpd: submodel %q has no estimate", sub.Name)
		}
		if len(sub.Estimate.Pointwise) != n {
			return nil, fmt.Errorf("elpd: submodel %q has %d pointwise values, reference has %d",
				sub.Name, len(sub.Estimate.Pointwise), n)
		}
		floats.SubTo(diff, ref.Estimate.Pointwise, sub.Estimate.Pointwise)
		rows = append(rows, Row{
			Name:    sub.Name,
			Size:    sub.Size,
			ELPD:    sub.Estimate.ELPD,
			SE:      sub.Estimate.SE,
			Diff:    ref.Estimate.ELPD - sub.Estimate.ELPD,
			DSE:     math.Sqrt(float64(n) * stat.PopVariance(diff, nil)),
			Warning: sub.Estimate.Warning,
		})
	}
	return rows, nil
}
