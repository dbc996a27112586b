package drift

import (
	"github.com/banshee-data/gaze.driftcorr/internal/units"
)

// FixationReference is the median gaze offset over one trial's fixation
// window. References are sparse: trials with too few clean samples produce
// none.
type FixationReference struct {
	X, Y               float64 // median offset from screen centre, normalised units
	Time               float64 // time of the first qualifying sample
	SampleCount        int
	DistanceToPrevious float64 // degrees from the previous reference (or centre)
	TrialIndex         int     // row of the trial in the event table
}

// ExtractReferences computes one reference per trial whose fixation window
// holds at least Timing.MinFixationSamples clean samples. clean must carry
// centre-relative offsets, as produced by Normalize.
//
// Trials and clean samples are both visited in time order, so a single
// cursor walks the clean stream once across all trials.
func ExtractReferences(trials []Trial, clean Stream, s Strategy, t Timing, g units.Geometry) ([]FixationReference, error) {
	if err := checkTrialsSorted(trials); err != nil {
		return nil, err
	}
	if err := checkSorted("clean time", clean.Times); err != nil {
		return nil, err
	}

	var refs []FixationReference
	cur := newStreamCursor(clean.Times)
	var xs, ys []float64

	for i, tr := range trials {
		sp := s.fixationSpan(tr, t)
		xs, ys = xs[:0], ys[:0]
		first := 0.0

		for {
			j, ok := cur.next(sp.end)
			if !ok {
				break
			}
			if !sp.contains(clean.Times[j]) {
				continue
			}
			if len(xs) == 0 {
				first = clean.Times[j]
			}
			xs = append(xs, clean.X[j])
			ys = append(ys, clean.Y[j])
		}

		if len(xs) < t.MinFixationSamples {
			continue
		}

		ref := FixationReference{
			X:           median(xs),
			Y:           median(ys),
			Time:        first,
			SampleCount: len(xs),
			TrialIndex:  i,
		}
		prevX, prevY := 0.0, 0.0
		if len(refs) > 0 {
			prevX, prevY = refs[len(refs)-1].X, refs[len(refs)-1].Y
		}
		ref.DistanceToPrevious = g.Angle(ref.X, ref.Y, prevX, prevY, true)
		refs = append(refs, ref)
	}
	return refs, nil
}
