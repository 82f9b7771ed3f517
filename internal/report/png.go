package report

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/projpred/internal/elpd"
)

// offset separates the ±dse bars from the ±se bars at the same size.
const offset = 0.1

var (
	elpdColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	diffColor = color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}
	refColor  = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
)

type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// ComparePNG draws submodel ELPD against model size with ±se bars, the
// same points with ±dse bars slightly offset, and the reference ELPD as a
// dashed line. It returns the encoded PNG.
func ComparePNG(rows []elpd.Row) ([]byte, error) {
	ref, subs, err := comparison(rows)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = "Submodel comparison"
	p.X.Label.Text = "Submodel size"
	p.Y.Label.Text = "ELPD (LOO)"

	se := errorPoints{XYs: make(plotter.XYs, len(subs)), YErrors: make(plotter.YErrors, len(subs))}
	dse := errorPoints{XYs: make(plotter.XYs, len(subs)), YErrors: make(plotter.YErrors, len(subs))}
	minX, maxX := float64(subs[0].Size), float64(subs[0].Size)
	for i, r := range subs {
		x := float64(r.Size)
		se.XYs[i] = plotter.XY{X: x, Y: r.ELPD}
		se.YErrors[i].Low, se.YErrors[i].High = r.SE, r.SE
		dse.XYs[i] = plotter.XY{X: x + offset, Y: r.ELPD}
		dse.YErrors[i].Low, dse.YErrors[i].High = r.DSE, r.DSE
		minX, maxX = min(minX, x), max(maxX, x+offset)
	}

	line, points, err := plotter.NewLinePoints(se.XYs)
	if err != nil {
		return nil, fmt.Errorf("elpd line: %w", err)
	}
	line.LineStyle.Color = elpdColor
	line.LineStyle.Width = vg.Points(1)
	points.GlyphStyle.Color = elpdColor
	points.GlyphStyle.Shape = draw.CircleGlyph{}

	seBars, err := plotter.NewYErrorBars(se)
	if err != nil {
		return nil, fmt.Errorf("se bars: %w", err)
	}
	seBars.LineStyle.Color = elpdColor

	diffPoints, err := plotter.NewScatter(dse.XYs)
	if err != nil {
		return nil, fmt.Errorf("dse points: %w", err)
	}
	diffPoints.GlyphStyle.Color = diffColor
	diffPoints.GlyphStyle.Shape = draw.TriangleGlyph{}

	dseBars, err := plotter.NewYErrorBars(dse)
	if err != nil {
		return nil, fmt.Errorf("dse bars: %w", err)
	}
	dseBars.LineStyle.Color = diffColor

	refLine := plotter.NewFunction(func(float64) float64 { return ref.ELPD })
	refLine.LineStyle.Color = refColor
	refLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	refLine.XMin, refLine.XMax = minX-0.5, maxX+0.5

	p.Add(plotter.NewGrid(), line, points, seBars, diffPoints, dseBars, refLine)
	p.Legend.Add("elpd ± se", line, points)
	p.Legend.Add("elpd ± dse", diffPoints)
	p.Legend.Add(ref.Name, refLine)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	p.X.Min, p.X.Max = minX-0.5, maxX+0.5

	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	return buf.Bytes(), nil
}
