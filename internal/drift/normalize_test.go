package drift

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/gaze.driftcorr/internal/gaze"
)

func sample(ts, x, y, conf float64) gaze.Sample {
	return gaze.Sample{Timestamp: ts, NormPos: [2]float64{x, y}, Confidence: conf}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	samples := []gaze.Sample{
		sample(99.0, 0.5, 0.5, 0.95),
		sample(100.0, 0.5, 0.5, 0.95), // exactly at onset
		sample(100.5, 0.6, 0.5, 0.9),  // not above threshold
		sample(101.0, 0.75, 0.25, 0.95),
		sample(100.75, 0.4, 0.5, 0.2), // out of order, kept in place
	}

	n := Normalize(samples, 100, 0.9)

	if diff := cmp.Diff([]float64{0.5, 1.0, 0.75}, n.All.Times); diff != "" {
		t.Errorf("all times mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float64{0.6, 0.75, 0.4}, n.All.X)
	assert.Equal(t, []float64{0.9, 0.95, 0.2}, n.All.Conf)

	assert.Len(t, n.Kept, 3)
	for i, s := range n.Kept {
		assert.Equal(t, n.All.Times[i], s.ResetTime)
	}
	assert.Equal(t, 101.0, n.Kept[1].Timestamp)

	assert.Equal(t, 1, n.Clean.Len())
	assert.Equal(t, []float64{1.0}, n.Clean.Times)
	assert.Equal(t, []float64{0.25}, n.Clean.X)
	assert.Equal(t, []float64{-0.25}, n.Clean.Y)
}

func TestNormalize_AllBeforeOnset(t *testing.T) {
	t.Parallel()

	n := Normalize([]gaze.Sample{sample(1, 0.5, 0.5, 1), sample(2, 0.5, 0.5, 1)}, 5, 0.9)
	assert.Equal(t, 0, n.All.Len())
	assert.Equal(t, 0, n.Clean.Len())
	assert.Empty(t, n.Kept)
}

func TestMedian(t *testing.T) {
	t.Parallel()

	in := []float64{3, 1, 2}
	assert.Equal(t, 2.0, median(in))
	assert.Equal(t, []float64{3, 1, 2}, in, "input must not be reordered")
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
	assert.True(t, isNaN(median(nil)))
}

func TestFractions(t *testing.T) {
	t.Parallel()

	xs := []float64{0.1, 0.5, 0.9, 1.0}
	assert.Equal(t, 0.25, fractionBelow(xs, 0.5))
	assert.Equal(t, 0.25, fractionAbove(xs, 0.9))
	assert.True(t, isNaN(fractionBelow(nil, 1)))
	assert.True(t, isNaN(fractionAbove(nil, 1)))
}
