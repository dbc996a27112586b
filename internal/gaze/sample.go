// Package gaze holds the eye-tracker sample model and the readers for the
// per-run recording and player-state files.
package gaze

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned when a recording or player-state file cannot be
// decoded.
var ErrMalformed = errors.New("malformed gaze input")

// Ellipse is the pupil ellipse fit in eye-camera pixels.
type Ellipse struct {
	Axes   [2]float64 `json:"axes"`
	Angle  float64    `json:"angle"`
	Center [2]float64 `json:"center"`
}

// Pupil is the pupil datum the gaze estimate was derived from.
type Pupil struct {
	NormPos  [2]float64 `json:"norm_pos"`
	Diameter float64    `json:"diameter"`
	Ellipse  Ellipse    `json:"ellipse"`
}

// Sample is one 2D gaze estimate. Timestamp is on the tracker clock;
// ResetTime is filled in once the sample has been re-anchored to task onset.
type Sample struct {
	Timestamp  float64    `json:"timestamp"`
	NormPos    [2]float64 `json:"norm_pos"`
	Confidence float64    `json:"confidence"`
	Pupil      Pupil      `json:"base_data"`

	ResetTime float64 `json:"-" cbor:"-"`
}

// X is the normalised horizontal gaze position.
func (s Sample) X() float64 { return s.NormPos[0] }

// Y is the normalised vertical gaze position.
func (s Sample) Y() float64 { return s.NormPos[1] }

// ObservedTime returns the tracker timestamp used to decide which clock the
// recording is on. It is the sample at index, or the last sample when the
// recording is shorter than that.
func ObservedTime(samples []Sample, index int) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("%w: recording has no samples", ErrMalformed)
	}
	if index < 0 {
		index = 0
	}
	if index >= len(samples) {
		index = len(samples) - 1
	}
	return samples[index].Timestamp, nil
}
