package drift

import (
	"fmt"
	"math"

	"github.com/banshee-data/gaze.driftcorr/internal/units"
)

// ComplianceThresholds are the visual-angle radii, in degrees, at which
// fixation compliance is reported.
var ComplianceThresholds = [4]float64{0.5, 1.0, 2.0, 3.0}

// Confidence levels reported as sample ratios regardless of the run's
// filtering threshold.
const (
	highConfidence = 0.9
	midConfidence  = 0.75
)

// BucketMetrics summarises the samples of one trial period.
type BucketMetrics struct {
	Count  int     // samples in the period, any confidence
	Conf90 float64 // share of Count above 0.9 confidence
	Conf75 float64 // share of Count above 0.75 confidence

	// Passing counts samples above the run's confidence threshold. The
	// fields below only consider those samples and are NaN when Passing
	// is zero.
	Passing          int
	MedianX, MedianY float64 // raw normalised positions
	// Compliance is the share of samples whose drift-corrected position lies
	// within ComplianceThresholds[k] degrees of the screen centre.
	Compliance [4]float64
	// Dist2Med is the share of samples whose raw position lies within
	// ComplianceThresholds[k] degrees of the period's median position.
	Dist2Med [4]float64
}

// TrialMetrics pairs the image period with the fixation period of a trial.
// The fixation period is the image, the following interval, or both,
// depending on the strategy.
type TrialMetrics struct {
	TrialNumber int
	Image       BucketMetrics
	Fixation    BucketMetrics
}

// MetricsTable holds TrialMetrics in trial order with lookup by number.
type MetricsTable struct {
	rows     []TrialMetrics
	index    map[int]int
	fallback int
}

// Rows returns the metrics in trial order.
func (m *MetricsTable) Rows() []TrialMetrics { return m.rows }

// Lookup returns the metrics of trial number n.
func (m *MetricsTable) Lookup(n int) (TrialMetrics, bool) {
	i, ok := m.index[n]
	if !ok {
		return TrialMetrics{}, false
	}
	return m.rows[i], true
}

// Fallback returns the metrics of the first trial whose fixation period had
// any sample above threshold. It stands in for lagged lookups that land
// before the first trial.
func (m *MetricsTable) Fallback() (TrialMetrics, bool) {
	if m.fallback < 0 {
		return TrialMetrics{}, false
	}
	return m.rows[m.fallback], true
}

// Lagged returns the metrics of trial n-k. When no such trial exists the
// fallback trial is used instead; ok is false if neither exists.
func (m *MetricsTable) Lagged(n, k int) (TrialMetrics, bool) {
	if tm, ok := m.Lookup(n - k); ok {
		return tm, true
	}
	return m.Fallback()
}

// AggregateMetrics computes per-trial metrics over the all stream.
// correctedDist holds, for each sample of all, the visual angle between its
// drift-corrected position and the screen centre.
//
// Each trial owns the samples in (onset, onset+duration+ISI). Those before
// the image offset form the image period; those after the ISI blink buffer
// form the interval. Samples between offset and the buffer end, and samples
// before a trial's onset, belong to no period.
func AggregateMetrics(trials []Trial, all Stream, correctedDist []float64, threshold float64, s Strategy, t Timing, g units.Geometry) (*MetricsTable, error) {
	if err := checkTrialsSorted(trials); err != nil {
		return nil, err
	}
	if err := checkSorted("sample time", all.Times); err != nil {
		return nil, err
	}
	if len(correctedDist) != all.Len() {
		return nil, fmt.Errorf("%w: %d corrected distances for %d samples", ErrMalformedInput, len(correctedDist), all.Len())
	}

	m := &MetricsTable{
		rows:     make([]TrialMetrics, 0, len(trials)),
		index:    make(map[int]int, len(trials)),
		fallback: -1,
	}
	isiBuffer := s.ISIBuffer(t)
	cur := newStreamCursor(all.Times)
	var image, isi, fix []int

	for _, tr := range trials {
		if _, dup := m.index[tr.Number]; dup {
			return nil, fmt.Errorf("%w: duplicate TrialNumber %d", ErrMalformedInput, tr.Number)
		}

		offset := tr.Offset()
		isiOnset := offset + isiBuffer
		isiOffset := offset + t.ISIDuration
		image, isi = image[:0], isi[:0]

		for {
			j, ok := cur.next(isiOffset)
			if !ok {
				break
			}
			ts := all.Times[j]
			if ts <= tr.Onset {
				continue
			}
			if ts < offset {
				image = append(image, j)
			} else if ts > isiOnset {
				isi = append(isi, j)
			}
		}

		fix = fix[:0]
		if s.IncludesImage() {
			fix = append(fix, image...)
		}
		if s.IncludesISI() {
			fix = append(fix, isi...)
		}

		tm := TrialMetrics{
			TrialNumber: tr.Number,
			Image:       summarise(image, all, correctedDist, threshold, g),
			Fixation:    summarise(fix, all, correctedDist, threshold, g),
		}
		if m.fallback < 0 && tm.Fixation.Passing > 0 {
			m.fallback = len(m.rows)
		}
		m.index[tr.Number] = len(m.rows)
		m.rows = append(m.rows, tm)
	}
	return m, nil
}

func summarise(idx []int, all Stream, correctedDist []float64, threshold float64, g units.Geometry) BucketMetrics {
	b := BucketMetrics{Count: len(idx)}

	confs := make([]float64, len(idx))
	var xs, ys, dists []float64
	for k, j := range idx {
		confs[k] = all.Conf[j]
		if all.Conf[j] > threshold {
			xs = append(xs, all.X[j])
			ys = append(ys, all.Y[j])
			dists = append(dists, correctedDist[j])
		}
	}
	b.Conf90 = fractionAbove(confs, highConfidence)
	b.Conf75 = fractionAbove(confs, midConfidence)
	b.Passing = len(xs)

	if b.Passing == 0 {
		b.MedianX, b.MedianY = math.NaN(), math.NaN()
		for k := range ComplianceThresholds {
			b.Compliance[k] = math.NaN()
			b.Dist2Med[k] = math.NaN()
		}
		return b
	}

	b.MedianX, b.MedianY = median(xs), median(ys)
	toMedian := make([]float64, len(xs))
	for k := range xs {
		toMedian[k] = g.FromCenter(xs[k]-b.MedianX, ys[k]-b.MedianY, true)
	}
	for k, limit := range ComplianceThresholds {
		b.Compliance[k] = fractionBelow(dists, limit)
		b.Dist2Med[k] = fractionBelow(toMedian, limit)
	}
	return b
}
