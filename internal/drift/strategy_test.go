package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	for _, s := range Strategies() {
		got, err := ParseStrategy(s.Name)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStrategy("next_image")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "previous_isi")
}

func TestStrategyTable(t *testing.T) {
	cases := []struct {
		s             Strategy
		image, isi    bool
		lookback      int
		trialLookback int
	}{
		{CurrentImage, true, false, 0, 0},
		{PreviousImage, true, false, 1, 1},
		{PreviousISI, false, true, 0, 1},
		{CurrentImageISI, true, true, 0, 0},
		{PreviousImageISI, true, true, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.s.Name, func(t *testing.T) {
			assert.Equal(t, tc.image, tc.s.IncludesImage())
			assert.Equal(t, tc.isi, tc.s.IncludesISI())
			assert.Equal(t, tc.lookback, tc.s.Lookback)
			assert.Equal(t, tc.trialLookback, tc.s.TrialLookback)
		})
	}
	assert.Equal(t, PreviousImageISI, DefaultStrategy)
}

func TestStrategyDurations(t *testing.T) {
	tm := DefaultTiming()
	assert.Equal(t, 0.0, CurrentImageISI.ISIBuffer(tm))
	assert.Equal(t, 0.6, PreviousISI.ISIBuffer(tm))
	assert.Equal(t, 0.6, CurrentImage.ISIBuffer(tm))

	assert.InDelta(t, 4.47, PreviousImageISI.FixationDuration(tm), 1e-12)
	assert.InDelta(t, 2.98, PreviousImage.FixationDuration(tm), 1e-12)
	assert.InDelta(t, 0.89, PreviousISI.FixationDuration(tm), 1e-12)
}

func TestFixationSpan(t *testing.T) {
	tm := DefaultTiming()
	tr := Trial{Number: 1, Onset: 10, Duration: 3}

	img := CurrentImage.fixationSpan(tr, tm)
	assert.Equal(t, span{start: 10, end: 13, guard: 0.1}, img)
	assert.True(t, img.contains(10.01))
	assert.False(t, img.contains(10))
	assert.False(t, img.contains(12.95))

	isi := PreviousISI.fixationSpan(tr, tm)
	assert.Equal(t, 13.0, isi.start)
	assert.InDelta(t, 14.49, isi.end, 1e-12)
	assert.False(t, isi.contains(13.5), "blink guard")
	assert.True(t, isi.contains(13.7))
	assert.False(t, isi.contains(14.45), "saccade guard")

	both := CurrentImageISI.fixationSpan(tr, tm)
	assert.Equal(t, 10.0, both.start)
	assert.InDelta(t, 14.49, both.end, 1e-12)
	assert.True(t, both.contains(13.2))
}

func TestWindowString(t *testing.T) {
	assert.Equal(t, "image", WindowImage.String())
	assert.Equal(t, "isi", WindowISI.String())
	assert.Equal(t, "image+isi", WindowImageISI.String())
	assert.Equal(t, "Window(9)", Window(9).String())
}
