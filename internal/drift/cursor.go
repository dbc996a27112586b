package drift

import (
	"fmt"
	"math"
)

// streamCursor walks a time-sorted stream forward without ever rewinding.
// Trials are visited in order too, so one pass over the stream serves every
// trial.
type streamCursor struct {
	times []float64
	pos   int
}

func newStreamCursor(times []float64) *streamCursor {
	return &streamCursor{times: times}
}

// next returns the index of the next sample earlier than before and
// consumes it. It returns false, consuming nothing, once the next sample is
// at or after before.
func (c *streamCursor) next(before float64) (int, bool) {
	if c.pos >= len(c.times) || c.times[c.pos] >= before {
		return 0, false
	}
	i := c.pos
	c.pos++
	return i, true
}

// checkSorted verifies that values never decrease.
func checkSorted(what string, values []float64) error {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] || math.IsNaN(values[i]) {
			return fmt.Errorf("%w: %s[%d]=%v follows %v", ErrNotMonotonic, what, i, values[i], values[i-1])
		}
	}
	return nil
}

// checkTrialsSorted verifies trial onsets never decrease.
func checkTrialsSorted(trials []Trial) error {
	onsets := make([]float64, len(trials))
	for i, tr := range trials {
		onsets[i] = tr.Onset
	}
	return checkSorted("trial onset", onsets)
}
