package drift

import (
	"errors"
	"fmt"

	"github.com/banshee-data/gaze.driftcorr/internal/gaze"
	"github.com/banshee-data/gaze.driftcorr/internal/monitoring"
	"github.com/banshee-data/gaze.driftcorr/internal/units"
)

// DefaultConfidenceThreshold is the pupil confidence a sample must exceed
// to count as clean.
const DefaultConfidenceThreshold = 0.9

// DefaultObservedSampleIndex selects the recording sample whose timestamp
// decides which clock the tracker was on.
const DefaultObservedSampleIndex = 10

// Options configures Process.
type Options struct {
	Strategy            Strategy
	ConfidenceThreshold float64
	Timing              Timing
	Geometry            units.Geometry
	ObservedSampleIndex int
	// FailOnEmptyLog turns an empty session log into a run error instead
	// of falling back to the observed sample time.
	FailOnEmptyLog bool
}

// DefaultOptions returns the settings used for the image-recognition task.
func DefaultOptions() Options {
	return Options{
		Strategy:            DefaultStrategy,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Timing:              DefaultTiming(),
		Geometry:            units.DefaultGeometry(),
		ObservedSampleIndex: DefaultObservedSampleIndex,
	}
}

// RunInput is everything Process needs for one run.
type RunInput struct {
	Label   string // used to prefix log lines
	Run     string // run identifier as it appears in the session log
	Log     *RunLog
	Player  gaze.PlayerState
	Samples []gaze.Sample
	Trials  []Trial
}

// Result carries the outputs of every stage.
type Result struct {
	Onset float64
	// OnsetFallback is set when the session log was empty and the onset
	// was taken from the samples themselves.
	OnsetFallback bool
	Strategy      Strategy
	Threshold     float64

	Streams    Normalized
	References []FixationReference
	Corrected  Corrected

	RawDistance       []float64 // degrees from centre, uncorrected
	CorrectedDistance []float64 // degrees from centre, drift corrected

	Metrics *MetricsTable
	Columns []Column
}

// Process runs onset reconciliation, normalisation, reference extraction,
// correction and metric aggregation for one run.
func Process(in RunInput, opts Options) (*Result, error) {
	logf := monitoring.RunLogf(in.Label)

	observed, err := gaze.ObservedTime(in.Samples, opts.ObservedSampleIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	res := &Result{
		Strategy:  opts.Strategy,
		Threshold: opts.ConfidenceThreshold,
	}
	res.Onset, err = ReconcileOnset(in.Log, in.Run, in.Player, observed)
	switch {
	case errors.Is(err, ErrEmptyLog):
		if opts.FailOnEmptyLog {
			return nil, err
		}
		logf("warning: %v, using sample time %.3f as task onset", err, observed)
		res.OnsetFallback = true
	case err != nil:
		return nil, err
	}

	res.Streams = Normalize(in.Samples, res.Onset, opts.ConfidenceThreshold)
	all := res.Streams.All
	if all.Len() == 0 {
		logf("warning: no samples after task onset %.3f", res.Onset)
	}

	res.References, err = ExtractReferences(in.Trials, res.Streams.Clean, opts.Strategy, opts.Timing, opts.Geometry)
	if err != nil {
		return nil, err
	}
	if len(res.References) == 0 {
		logf("warning: no fixation reference in %d trials, gaze left uncorrected", len(in.Trials))
	}

	res.Corrected, err = Correct(res.References, all, opts.Strategy.Lookback)
	if err != nil {
		return nil, err
	}

	res.RawDistance = opts.Geometry.FromCenterAll(all.X, all.Y, false)
	res.CorrectedDistance = opts.Geometry.FromCenterAll(res.Corrected.X, res.Corrected.Y, false)

	res.Metrics, err = AggregateMetrics(in.Trials, all, res.CorrectedDistance, opts.ConfidenceThreshold, opts.Strategy, opts.Timing, opts.Geometry)
	if err != nil {
		return nil, err
	}
	res.Columns = res.Metrics.Columns(in.Trials, opts.Strategy, opts.ConfidenceThreshold, opts.Timing, opts.Geometry)

	logf("%d/%d samples clean, %d references over %d trials (%s)",
		res.Streams.Clean.Len(), all.Len(), len(res.References), len(in.Trials), opts.Strategy)
	return res, nil
}
