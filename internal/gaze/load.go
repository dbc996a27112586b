package gaze

import (
	"fmt"

	"github.com/banshee-data/gaze.driftcorr/internal/fsutil"
)

// LoadRecording opens path on fsys and decodes it according to its
// extension.
func LoadRecording(fsys fsutil.FileSystem, path string) ([]Sample, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	samples, err := DecodeRecording(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// LoadPlayerState reads the info.player.json file at path.
func LoadPlayerState(fsys fsutil.FileSystem, path string) (PlayerState, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return PlayerState{}, fmt.Errorf("open player state: %w", err)
	}
	defer f.Close()

	ps, err := DecodePlayerState(f)
	if err != nil {
		return PlayerState{}, fmt.Errorf("%s: %w", path, err)
	}
	return ps, nil
}
