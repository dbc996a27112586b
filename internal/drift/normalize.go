package drift

import "github.com/banshee-data/gaze.driftcorr/internal/gaze"

// Stream is a column-oriented run of gaze samples sorted by time.
type Stream struct {
	Times []float64 // seconds from task onset
	X     []float64
	Y     []float64
	Conf  []float64
}

// Len returns the number of samples.
func (s Stream) Len() int { return len(s.Times) }

func (s *Stream) add(t, x, y, c float64) {
	s.Times = append(s.Times, t)
	s.X = append(s.X, x)
	s.Y = append(s.Y, y)
	s.Conf = append(s.Conf, c)
}

// Normalized is the output of Normalize.
type Normalized struct {
	// Kept holds the post-onset samples with ResetTime filled in.
	Kept []gaze.Sample
	// All carries normalised positions of every kept sample.
	All Stream
	// Clean carries the samples above the confidence threshold, with X and
	// Y expressed as offsets from the screen centre.
	Clean Stream
}

// Normalize re-anchors sample timestamps to onset, drops samples at or
// before onset, and splits the rest into the all and clean streams. Input
// order is preserved; samples are not re-sorted.
func Normalize(samples []gaze.Sample, onset, threshold float64) Normalized {
	n := Normalized{
		Kept: make([]gaze.Sample, 0, len(samples)),
	}
	for _, s := range samples {
		t := s.Timestamp - onset
		if t <= 0 {
			continue
		}
		x, y, c := s.X(), s.Y(), s.Confidence

		s.ResetTime = t
		n.Kept = append(n.Kept, s)
		n.All.add(t, x, y, c)

		if c > threshold {
			n.Clean.add(t, x-0.5, y-0.5, c)
		}
	}
	return n
}
