package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaze.driftcorr/internal/units"
)

func TestExtractReferences_KnownMedian(t *testing.T) {
	t.Parallel()

	var clean Stream
	// 21 samples inside the image window with x = 0, 0.001, ... 0.020.
	for i := 0; i < 21; i++ {
		clean.add(1.0+float64(i)*0.01, float64(20-i)*0.001, 0.02, 1)
	}
	trials := []Trial{{Number: 1, Onset: 0, Duration: 2.98}}
	g := units.DefaultGeometry()

	refs, err := ExtractReferences(trials, clean, CurrentImage, DefaultTiming(), g)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	ref := refs[0]
	assert.InDelta(t, 0.010, ref.X, 1e-12)
	assert.InDelta(t, 0.02, ref.Y, 1e-12)
	assert.Equal(t, 1.0, ref.Time)
	assert.Equal(t, 21, ref.SampleCount)
	assert.Equal(t, 0, ref.TrialIndex)
	assert.InDelta(t, g.FromCenter(ref.X, ref.Y, true), ref.DistanceToPrevious, 1e-9)
}

func TestExtractReferences_TooFewSamples(t *testing.T) {
	t.Parallel()

	trials := []Trial{{Number: 1, Onset: 0, Duration: 2.98}}
	refs, err := ExtractReferences(trials, cleanRun(1.0, 0.01, 20, 0.01, 0), CurrentImage, DefaultTiming(), units.DefaultGeometry())
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestExtractReferences_WindowBounds(t *testing.T) {
	t.Parallel()

	trials := []Trial{{Number: 1, Onset: 0, Duration: 2.98}}
	// 20 samples inside plus one at onset and one inside the saccade guard;
	// neither boundary sample qualifies.
	clean := concatStreams(
		cleanRun(0, 1, 1, 0, 0),
		cleanRun(1.0, 0.01, 20, 0, 0),
		cleanRun(2.9, 1, 1, 0, 0),
	)
	refs, err := ExtractReferences(trials, clean, CurrentImage, DefaultTiming(), units.DefaultGeometry())
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestExtractReferences_ISIWindow(t *testing.T) {
	t.Parallel()

	trials := []Trial{{Number: 1, Onset: 0, Duration: 2.98}}
	clean := concatStreams(
		cleanRun(1.0, 0.01, 30, 0.3, 0.3),  // image, ignored
		cleanRun(3.0, 0.01, 10, 0.2, 0.2),  // blink guard, ignored
		cleanRun(3.6, 0.01, 25, 0.01, 0.0), // inside (3.58, 4.37)
	)
	refs, err := ExtractReferences(trials, clean, PreviousISI, DefaultTiming(), units.DefaultGeometry())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, 25, refs[0].SampleCount)
	assert.Equal(t, 3.6, refs[0].Time)
	assert.Equal(t, 0.01, refs[0].X)
}

func TestExtractReferences_SparseAcrossTrials(t *testing.T) {
	t.Parallel()

	trials := []Trial{
		{Number: 1, Onset: 0, Duration: 2.98},
		{Number: 2, Onset: 4.47, Duration: 2.98},
		{Number: 3, Onset: 8.94, Duration: 2.98},
	}
	clean := concatStreams(
		cleanRun(1.0, 0.01, 25, 0.02, 0.0),
		cleanRun(5.0, 0.01, 5, 0.5, 0.5),
		cleanRun(9.5, 0.01, 25, -0.02, 0.01),
	)
	g := units.DefaultGeometry()
	refs, err := ExtractReferences(trials, clean, CurrentImage, DefaultTiming(), g)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, 0, refs[0].TrialIndex)
	assert.Equal(t, 2, refs[1].TrialIndex)
	assert.InDelta(t, g.Angle(-0.02, 0.01, 0.02, 0.0, true), refs[1].DistanceToPrevious, 1e-9)
}

func TestExtractReferences_ThreeSampleScenario(t *testing.T) {
	t.Parallel()

	var clean Stream
	clean.add(1.0, 0, 0, 1)
	clean.add(1.1, 0.01, 0, 1)
	clean.add(1.2, -0.01, 0, 1)
	trials := []Trial{{Number: 1, Onset: 0, Duration: 2.98}}

	refs, err := ExtractReferences(trials, clean, CurrentImage, DefaultTiming(), units.DefaultGeometry())
	require.NoError(t, err)
	assert.Empty(t, refs)

	all := Stream{
		Times: []float64{1.0, 1.1, 1.2},
		X:     []float64{0.5, 0.51, 0.49},
		Y:     []float64{0.5, 0.5, 0.5},
		Conf:  []float64{1, 1, 1},
	}
	out, err := Correct(refs, all, CurrentImage.Lookback)
	require.NoError(t, err)
	assert.Equal(t, all.X, out.X)
	assert.Equal(t, all.Y, out.Y)
}

func TestExtractReferences_Unsorted(t *testing.T) {
	t.Parallel()

	trials := []Trial{{Number: 1, Onset: 5}, {Number: 2, Onset: 1}}
	_, err := ExtractReferences(trials, Stream{}, CurrentImage, DefaultTiming(), units.DefaultGeometry())
	assert.ErrorIs(t, err, ErrNotMonotonic)

	clean := Stream{Times: []float64{2, 1}, X: []float64{0, 0}, Y: []float64{0, 0}, Conf: []float64{1, 1}}
	_, err = ExtractReferences(nil, clean, CurrentImage, DefaultTiming(), units.DefaultGeometry())
	assert.ErrorIs(t, err, ErrNotMonotonic)
}
