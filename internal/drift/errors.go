package drift

import "errors"

var (
	// ErrMissingOnset means the run never appeared in the run log, so its
	// onset cannot be placed on the tracker clock.
	ErrMissingOnset = errors.New("run onset missing from log")

	// ErrEmptyLog means the run log had no lines. Process falls back to the
	// observed tracker time unless Options.FailOnEmptyLog is set.
	ErrEmptyLog = errors.New("run log is empty")

	// ErrMalformedInput covers unparseable logs, tables and recordings.
	ErrMalformedInput = errors.New("malformed input")

	// ErrNotMonotonic means a stream or trial table is not sorted by time.
	ErrNotMonotonic = errors.New("input not sorted by time")
)
