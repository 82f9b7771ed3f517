package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/projpred/internal/elpd"
)

// CompareHTML renders the comparison as an interactive line chart: submodel
// ELPD by size, its ±se band, and the reference ELPD as a mark line.
func CompareHTML(rows []elpd.Row) ([]byte, error) {
	ref, subs, err := comparison(rows)
	if err != nil {
		return nil, err
	}

	x := make([]string, len(subs))
	mid := make([]opts.LineData, len(subs))
	upper := make([]opts.LineData, len(subs))
	lower := make([]opts.LineData, len(subs))
	for i, r := range subs {
		x[i] = strconv.Itoa(r.Size)
		mid[i] = opts.LineData{Value: r.ELPD, Name: r.Name}
		upper[i] = opts.LineData{Value: r.ELPD + r.SE}
		lower[i] = opts.LineData{Value: r.ELPD - r.SE}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Submodel comparison", Width: "900px", Height: "540px"}),
		charts.WithTitleOpts(opts.Title{Title: "Submodel comparison", Subtitle: fmt.Sprintf("%s elpd_loo=%.2f se=%.2f", ref.Name, ref.ELPD, ref.SE)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Submodel size", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ELPD (LOO)", NameLocation: "middle", NameGap: 50, Scale: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("elpd_loo", mid,
			charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: ref.Name, YAxis: ref.ELPD}),
		).
		AddSeries("+se", upper, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"})).
		AddSeries("-se", lower, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))

	page := components.NewPage()
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
