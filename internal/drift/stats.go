package drift

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// median returns the middle value of xs, averaging the two central values
// for even lengths. It returns NaN for an empty slice. xs is not modified.
func median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// fractionBelow returns the share of xs strictly below limit, or NaN when xs
// is empty.
func fractionBelow(xs []float64, limit float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return float64(floats.Count(func(v float64) bool { return v < limit }, xs)) / float64(len(xs))
}

// fractionAbove returns the share of xs strictly above limit, or NaN when xs
// is empty.
func fractionAbove(xs []float64, limit float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return float64(floats.Count(func(v float64) bool { return v > limit }, xs)) / float64(len(xs))
}
