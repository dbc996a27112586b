// Package qcplot renders the drift-correction quality-control figure of a
// run and its optional HTML companion.
package qcplot

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/gaze.driftcorr/internal/drift"
	"github.com/banshee-data/gaze.driftcorr/internal/units"
)

const (
	rows, cols = 5, 3

	figWidth  = 20 * vg.Inch
	figHeight = 24 * vg.Inch
)

var (
	lightGrey  = color.RGBA{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff}
	lightBlue  = color.RGBA{R: 0x95, G: 0xd0, B: 0xfc, A: 0x60}
	darkBlue   = color.RGBA{R: 0x03, G: 0x35, B: 0x6e, A: 0xff}
	lightGreen = color.RGBA{R: 0x96, G: 0xf9, B: 0x7b, A: 0xff}
	navy       = color.RGBA{R: 0x01, G: 0x15, B: 0x3e, A: 0xff}
	green      = color.RGBA{R: 0x01, G: 0xff, B: 0x07, A: 0xff}
	orange     = color.RGBA{R: 0xf9, G: 0x73, B: 0x06, A: 0xff}
	nanColor   = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
)

// Figure is the input of Render for one run.
type Figure struct {
	Title    string // e.g. "sub-01 ses-001 run-1"
	Trials   []drift.Trial
	Result   *drift.Result
	Geometry units.Geometry
}

// column returns the appended metric column of that name, or NaNs.
func (f Figure) column(name string) []float64 {
	for _, c := range f.Result.Columns {
		if c.Name == name && c.Values != nil {
			return c.Values
		}
	}
	out := make([]float64, len(f.Trials))
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func (f Figure) onsets() []float64 {
	out := make([]float64, len(f.Trials))
	for i, tr := range f.Trials {
		out[i] = tr.Onset
	}
	return out
}

// runDuration bounds the time axes: the last onset plus a margin.
func (f Figure) runDuration() float64 {
	if len(f.Trials) == 0 {
		if n := f.Result.Streams.All.Len(); n > 0 {
			return f.Result.Streams.All.Times[n-1]
		}
		return 1
	}
	return f.Trials[len(f.Trials)-1].Onset + 20
}

// xy pairs xs and ys, dropping points with a NaN coordinate. keep maps each
// returned point back to its input index.
func xy(xs, ys []float64) (pts plotter.XYs, keep []int) {
	n := min(len(xs), len(ys))
	pts = make(plotter.XYs, 0, n)
	keep = make([]int, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) || math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
		keep = append(keep, i)
	}
	return pts, keep
}

func newPanel(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Legend.Top = true
	p.Legend.Left = false
	return p
}

// limit sets the axis range, widened to fit any data already added.
func limit(p *plot.Plot, xmax, ymin, ymax float64) {
	p.X.Min = math.Min(p.X.Min, 0)
	p.X.Max = math.Max(p.X.Max, xmax)
	p.Y.Min = math.Min(p.Y.Min, ymin)
	p.Y.Max = math.Max(p.Y.Max, ymax)
}

func addScatter(p *plot.Plot, xs, ys []float64, c color.Color, radius vg.Length, label string) error {
	pts, _ := xy(xs, ys)
	if len(pts) == 0 {
		return nil
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = radius
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(s)
	if label != "" {
		p.Legend.Add(label, s)
	}
	return nil
}

// addColoured draws a scatter whose points take their colour from values
// through cmap. NaN values are drawn grey.
func addColoured(p *plot.Plot, xs, ys, values []float64, cmap palette.ColorMap, radius vg.Length) error {
	pts, keep := xy(xs, ys)
	if len(pts) == 0 {
		return nil
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: colourAt(cmap, values[keep[i]]), Radius: radius, Shape: draw.CircleGlyph{}}
	}
	p.Add(s)
	return nil
}

func colourAt(cmap palette.ColorMap, v float64) color.Color {
	if math.IsNaN(v) {
		return nanColor
	}
	v = math.Max(cmap.Min(), math.Min(cmap.Max(), v))
	c, err := cmap.At(v)
	if err != nil {
		return nanColor
	}
	return c
}

// rangeOf returns the finite min and max of values, or (0, 1) when there
// are none or they are all equal.
func rangeOf(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if math.IsInf(lo, 0) || lo == hi {
		return 0, 1
	}
	return lo, hi
}

// metricColours builds a Kindlmann colour map spanning values. When
// reversed, values are mirrored within their range so high values take the
// dark end of the map.
func metricColours(values []float64, reversed bool) (palette.ColorMap, []float64) {
	lo, hi := rangeOf(values)
	cmap := moreland.Kindlmann()
	cmap.SetMin(lo)
	cmap.SetMax(hi)
	if !reversed {
		return cmap, values
	}
	mirrored := make([]float64, len(values))
	for i, v := range values {
		mirrored[i] = lo + hi - v
	}
	return cmap, mirrored
}

// Render draws the 5x3 QC mosaic as a PNG.
//
// Row 1 shows per-trial confidence ratios, fixation compliance and the
// reference sample counts. Row 2 shows raw gaze in grey behind the
// drift-corrected gaze coloured by confidence. Rows 3 to 5 show the clean
// stream behind the fixation references, coloured in turn by fixation
// confidence, distance to the previous trial and trial compliance.
func Render(w io.Writer, f Figure) error {
	if f.Result == nil {
		return fmt.Errorf("qcplot: no result to render")
	}
	panels, err := f.panels()
	if err != nil {
		return err
	}

	img := vgimg.New(figWidth, figHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(panels, tiles, dc)
	for j := range panels {
		for i, p := range panels[j] {
			p.Draw(canvases[j][i])
		}
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("qcplot: encode png: %w", err)
	}
	return nil
}

func (f Figure) panels() ([][]*plot.Plot, error) {
	res := f.Result
	g := f.Geometry
	dur := f.runDuration()
	onsets := f.onsets()
	grid := make([][]*plot.Plot, rows)
	for j := range grid {
		grid[j] = make([]*plot.Plot, cols)
	}
	title := func(s string) string { return f.Title + " " + s }

	// Row 1
	conf := newPanel(title("trialwise_confidence"))
	if err := addScatter(conf, onsets, f.column("trial_gaze_confidence_ratio_0.9"), darkBlue, 3, "> 0.9"); err != nil {
		return nil, err
	}
	if err := addScatter(conf, onsets, f.column("trial_gaze_confidence_ratio_0.75"), lightGreen, 3, "> 0.75"); err != nil {
		return nil, err
	}
	limit(conf, dur, -0.1, 1.1)

	comp := newPanel(title("trialwise_fixCompliance"))
	for _, c := range []struct {
		name  string
		label string
		col   color.Color
	}{
		{"trial_fixation_compliance_ratio_0.5", "< 0.5 deg", navy},
		{"trial_fixation_compliance_ratio_1.0", "< 1.0 deg", green},
		{"trial_fixation_compliance_ratio_2.0", "< 2.0 deg", orange},
	} {
		if err := addScatter(comp, onsets, f.column(c.name), c.col, 3, c.label); err != nil {
			return nil, err
		}
	}
	limit(comp, dur, -0.1, 1.1)

	refTimes := make([]float64, len(res.References))
	refX := make([]float64, len(res.References))
	refY := make([]float64, len(res.References))
	refCounts := make([]float64, len(res.References))
	for i, r := range res.References {
		refTimes[i], refX[i], refY[i] = r.Time, r.X, r.Y
		refCounts[i] = float64(r.SampleCount)
	}
	counts := newPanel(title("fixation_samples"))
	if err := addScatter(counts, refTimes, refCounts, darkBlue, 3, ""); err != nil {
		return nil, err
	}
	limit(counts, dur, 0, 1)
	grid[0] = []*plot.Plot{conf, comp, counts}

	// Row 2
	all := res.Streams.All
	confMap := moreland.SmoothBlueRed()
	confMap.SetMin(0)
	confMap.SetMax(1)
	gazeRows := []struct {
		name      string
		raw, corr []float64
		lo, hi    float64
	}{
		{"gaze_x", all.X, res.Corrected.X, -1.5, 2},
		{"gaze_y", all.Y, res.Corrected.Y, -1.5, 2},
		{"dist2center_deg", res.RawDistance, res.CorrectedDistance, -0.1, 20},
	}
	for i, gr := range gazeRows {
		p := newPanel(title(gr.name))
		if err := addScatter(p, all.Times, gr.raw, lightGrey, 1, ""); err != nil {
			return nil, err
		}
		if err := addColoured(p, all.Times, gr.corr, all.Conf, confMap, 1); err != nil {
			return nil, err
		}
		limit(p, dur, gr.lo, gr.hi)
		grid[1][i] = p
	}

	// Rows 3 to 5
	clean := res.Streams.Clean
	cleanDist := g.FromCenterAll(clean.X, clean.Y, true)
	refDist := g.FromCenterAll(refX, refY, true)

	cutoff := "0.75"
	if res.Threshold == 0.9 {
		cutoff = "0.9"
	}
	metrics := []struct {
		key      string
		column   string
		reversed bool
	}{
		{"col=fix_confidence", "fix_gaze_confidence_ratio_" + cutoff, true},
		{"col=dist2previous", "median_dist_to_previous_trial_in_deg", false},
		{"col=trial_fix_compliance", "trial_fixation_compliance_ratio_1.0", true},
	}
	for k, m := range metrics {
		perTrial := f.column(m.column)
		values := make([]float64, len(res.References))
		for i, r := range res.References {
			values[i] = math.NaN()
			if r.TrialIndex < len(perTrial) {
				values[i] = perTrial[r.TrialIndex]
			}
		}
		cmap, shades := metricColours(values, m.reversed)

		refPanels := []struct {
			name   string
			clean  []float64
			ref    []float64
			lo, hi float64
		}{
			{"fix_distance_x", clean.X, refX, -2, 2},
			{"fix_distance_y", clean.Y, refY, -2, 2},
			{"dist2center_deg", cleanDist, refDist, -0.1, 15},
		}
		for i, rp := range refPanels {
			p := newPanel(title(rp.name + " " + m.key))
			if err := addScatter(p, clean.Times, rp.clean, lightBlue, 2, ""); err != nil {
				return nil, err
			}
			if err := addColoured(p, refTimes, rp.ref, shades, cmap, 3); err != nil {
				return nil, err
			}
			limit(p, dur, rp.lo, rp.hi)
			grid[2+k][i] = p
		}
	}
	return grid, nil
}
