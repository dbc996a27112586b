package drift

import (
	"fmt"
	"strings"
)

// Window selects which part of a trial is taken as fixation.
type Window int

const (
	// WindowImage is the stimulus display period [onset, onset+duration).
	WindowImage Window = iota
	// WindowISI is the inter-stimulus interval following the image.
	WindowISI
	// WindowImageISI spans the image and the following interval.
	WindowImageISI
)

func (w Window) String() string {
	switch w {
	case WindowImage:
		return "image"
	case WindowISI:
		return "isi"
	case WindowImageISI:
		return "image+isi"
	default:
		return fmt.Sprintf("Window(%d)", int(w))
	}
}

// Strategy pairs a fixation window with the lags used when applying it.
//
// Lookback is the number of references the corrector skips back from the
// most recent one: 0 corrects with the latest reference, 1 with the one
// before it. TrialLookback is the trial lag the metrics use when comparing a
// trial's gaze with the fixation that corrected it.
type Strategy struct {
	Name          string
	Window        Window
	Lookback      int
	TrialLookback int
}

// The five supported strategies.
var (
	CurrentImage     = Strategy{Name: "current_image", Window: WindowImage, Lookback: 0, TrialLookback: 0}
	PreviousImage    = Strategy{Name: "previous_image", Window: WindowImage, Lookback: 1, TrialLookback: 1}
	PreviousISI      = Strategy{Name: "previous_isi", Window: WindowISI, Lookback: 0, TrialLookback: 1}
	CurrentImageISI  = Strategy{Name: "current_image+isi", Window: WindowImageISI, Lookback: 0, TrialLookback: 0}
	PreviousImageISI = Strategy{Name: "previous_image+isi", Window: WindowImageISI, Lookback: 1, TrialLookback: 1}
)

// DefaultStrategy is used when no strategy is configured.
var DefaultStrategy = PreviousImageISI

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{CurrentImage, PreviousImage, PreviousISI, CurrentImageISI, PreviousImageISI}
}

// ParseStrategy resolves a strategy by name.
func ParseStrategy(name string) (Strategy, error) {
	for _, s := range Strategies() {
		if s.Name == name {
			return s, nil
		}
	}
	return Strategy{}, fmt.Errorf("unknown drift correction strategy %q (valid: %s)", name, StrategyNames())
}

// StrategyNames returns a comma-separated list for error and help messages.
func StrategyNames() string {
	names := make([]string, 0, 5)
	for _, s := range Strategies() {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

func (s Strategy) String() string { return s.Name }

// IncludesImage reports whether gaze during the image counts as fixation.
func (s Strategy) IncludesImage() bool {
	return s.Window == WindowImage || s.Window == WindowImageISI
}

// IncludesISI reports whether gaze during the inter-stimulus interval counts
// as fixation.
func (s Strategy) IncludesISI() bool {
	return s.Window == WindowISI || s.Window == WindowImageISI
}

// ISIBuffer is the leading part of the interval skipped for blinks. A window
// spanning image and interval is continuous, so nothing is skipped.
func (s Strategy) ISIBuffer(t Timing) float64 {
	if s.Window == WindowImageISI {
		return 0
	}
	return t.BlinkGuard
}

// FixationDuration is the nominal length of the fixation bucket, used to
// turn sample counts into ratios of the expected count.
func (s Strategy) FixationDuration(t Timing) float64 {
	switch s.Window {
	case WindowImageISI:
		return t.ISIDuration + t.ImageDuration
	case WindowImage:
		return t.ImageDuration
	default:
		return t.ISIDuration - s.ISIBuffer(t)
	}
}

// Timing holds the trial-structure constants of the task.
type Timing struct {
	ISIDuration        float64 // seconds of fixation following each image
	SaccadeGuard       float64 // seconds dropped before a window ends
	BlinkGuard         float64 // seconds dropped at the start of an ISI window
	ImageDuration      float64 // nominal image duration, seconds
	SampleRate         float64 // nominal tracker rate, Hz
	MinFixationSamples int     // fewest clean samples that yield a reference
}

// DefaultTiming returns the constants of the image-recognition task.
func DefaultTiming() Timing {
	return Timing{
		ISIDuration:        1.49,
		SaccadeGuard:       0.1,
		BlinkGuard:         0.6,
		ImageDuration:      2.98,
		SampleRate:         250,
		MinFixationSamples: 21,
	}
}

// span is a fixation window: samples strictly inside (start+buffer,
// end-guard) qualify, and the window is exhausted once time reaches end.
type span struct {
	start, end, buffer, guard float64
}

func (sp span) contains(t float64) bool {
	return t > sp.start+sp.buffer && t < sp.end-sp.guard
}

// fixationSpan returns the reference window for a trial.
func (s Strategy) fixationSpan(tr Trial, t Timing) span {
	switch s.Window {
	case WindowISI:
		start := tr.Onset + tr.Duration
		return span{start: start, end: start + t.ISIDuration, buffer: t.BlinkGuard, guard: t.SaccadeGuard}
	case WindowImageISI:
		return span{start: tr.Onset, end: tr.Onset + tr.Duration + t.ISIDuration, guard: t.SaccadeGuard}
	default:
		return span{start: tr.Onset, end: tr.Onset + tr.Duration, guard: t.SaccadeGuard}
	}
}
