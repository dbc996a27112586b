package drift

import "math"

func isNaN(v float64) bool { return math.IsNaN(v) }

// cleanRun builds a clean stream of n samples starting at start, spaced
// step apart, all at offset (x, y).
func cleanRun(start, step float64, n int, x, y float64) Stream {
	var s Stream
	for i := 0; i < n; i++ {
		s.add(start+float64(i)*step, x, y, 1)
	}
	return s
}

func concatStreams(parts ...Stream) Stream {
	var out Stream
	for _, p := range parts {
		for i := range p.Times {
			out.add(p.Times[i], p.X[i], p.Y[i], p.Conf[i])
		}
	}
	return out
}
