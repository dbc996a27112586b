package gaze

import (
	"bytes"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaze.driftcorr/internal/fsutil"
)

func TestLoadRecording(t *testing.T) {
	t.Parallel()

	fsys := fsutil.NewMemoryFileSystem()
	var buf bytes.Buffer
	require.NoError(t, EncodeRecording(&buf, fixtureSamples(), FormatJSONGzip))
	fsys.WriteFile("sub-01/ses-001/run_1.pupil/gaze.json.gz", buf.Bytes())

	got, err := LoadRecording(fsys, "sub-01/ses-001/run_1.pupil/gaze.json.gz")
	require.NoError(t, err)
	assert.Len(t, got, len(fixtureSamples()))

	_, err = LoadRecording(fsys, "missing.json")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = LoadRecording(fsys, "gaze.npz")
	assert.ErrorIs(t, err, ErrMalformed)

	fsys.WriteFile("broken.json", []byte("{not json"))
	_, err = LoadRecording(fsys, "broken.json")
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "broken.json")
}

func TestLoadPlayerState(t *testing.T) {
	t.Parallel()

	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("info.player.json", []byte(`{"start_time_synced_s": 100.5, "start_time_system_s": 1600000000.25}`))

	ps, err := LoadPlayerState(fsys, "info.player.json")
	require.NoError(t, err)
	assert.Equal(t, 100.5, ps.StartTimeSynced)
	assert.Equal(t, 1600000000.25, ps.StartTimeSystem)

	_, err = LoadPlayerState(fsys, "nope.json")
	assert.Error(t, err)
}
