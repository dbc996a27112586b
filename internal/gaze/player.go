package gaze

import (
	"encoding/json"
	"fmt"
	"io"
)

// PlayerState holds the two clock bases the recorder noted at start-up.
type PlayerState struct {
	StartTimeSynced float64 `json:"start_time_synced_s"`
	StartTimeSystem float64 `json:"start_time_system_s"`
}

// DecodePlayerState reads an info.player.json document.
func DecodePlayerState(r io.Reader) (PlayerState, error) {
	var raw struct {
		Synced *float64 `json:"start_time_synced_s"`
		System *float64 `json:"start_time_system_s"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return PlayerState{}, fmt.Errorf("%w: decode player state: %v", ErrMalformed, err)
	}
	if raw.Synced == nil || raw.System == nil {
		return PlayerState{}, fmt.Errorf("%w: player state lacks start_time_synced_s/start_time_system_s", ErrMalformed)
	}
	return PlayerState{StartTimeSynced: *raw.Synced, StartTimeSystem: *raw.System}, nil
}
