package qcplot

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// maxHTMLPoints caps the samples drawn per gaze series in the HTML report.
const maxHTMLPoints = 4000

type series struct {
	name string
	xs   []float64
	ys   []float64
	size int
}

// scatterData pairs xs and ys into echarts points, skipping non-finite
// values and keeping at most every stride-th point.
func scatterData(xs, ys []float64, stride int) []opts.ScatterData {
	if stride < 1 {
		stride = 1
	}
	n := min(len(xs), len(ys))
	data := make([]opts.ScatterData, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		x, y := xs[i], ys[i]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			continue
		}
		data = append(data, opts.ScatterData{Value: []interface{}{x, y}})
	}
	return data
}

func (f Figure) scatterChart(title, yName string, ymin, ymax float64, ss ...series) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: f.Title, Width: "1100px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: f.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: 0, Max: f.runDuration(), Name: "time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: ymin, Max: ymax, Name: yName, NameLocation: "middle", NameGap: 40}),
	)
	for _, s := range ss {
		stride := 1
		if n := len(s.xs); n > maxHTMLPoints {
			stride = n/maxHTMLPoints + 1
		}
		scatter.AddSeries(s.name, scatterData(s.xs, s.ys, stride), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: s.size}))
	}
	return scatter
}

// RenderHTML writes an interactive page with the per-trial metrics, the
// raw and corrected distance to centre and the fixation references.
func RenderHTML(w io.Writer, f Figure) error {
	if f.Result == nil {
		return fmt.Errorf("qcplot: no result to render")
	}
	res := f.Result
	onsets := f.onsets()

	refTimes := make([]float64, len(res.References))
	refX := make([]float64, len(res.References))
	refY := make([]float64, len(res.References))
	refPrev := make([]float64, len(res.References))
	for i, r := range res.References {
		refTimes[i], refX[i], refY[i] = r.Time, r.X, r.Y
		refPrev[i] = r.DistanceToPrevious
	}

	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("%s drift correction", f.Title))
	page.AddCharts(
		f.scatterChart("Trial confidence", "ratio", -0.1, 1.1,
			series{"> 0.9", onsets, f.column("trial_gaze_confidence_ratio_0.9"), 6},
			series{"> 0.75", onsets, f.column("trial_gaze_confidence_ratio_0.75"), 6},
		),
		f.scatterChart("Trial fixation compliance", "ratio", -0.1, 1.1,
			series{"< 0.5 deg", onsets, f.column("trial_fixation_compliance_ratio_0.5"), 6},
			series{"< 1.0 deg", onsets, f.column("trial_fixation_compliance_ratio_1.0"), 6},
			series{"< 2.0 deg", onsets, f.column("trial_fixation_compliance_ratio_2.0"), 6},
		),
		f.scatterChart("Fixation distances", "deg", 0, 5,
			series{"to previous trial", onsets, f.column("median_dist_to_previous_trial_in_deg"), 6},
			series{"to fixation", onsets, f.column("median_dist_to_fixation_in_deg"), 6},
		),
		f.scatterChart("Distance to centre", "deg", 0, 20,
			series{"raw", res.Streams.All.Times, res.RawDistance, 2},
			series{"corrected", res.Streams.All.Times, res.CorrectedDistance, 2},
		),
		f.scatterChart("Fixation references", "normalised offset", -2, 2,
			series{"x", refTimes, refX, 6},
			series{"y", refTimes, refY, 6},
			series{"step (deg)", refTimes, refPrev, 4},
		),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("qcplot: render html: %w", err)
	}
	return nil
}
