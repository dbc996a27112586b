package events

import (
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/gaze.driftcorr/internal/drift"
)

// Manifest column names.
const (
	colSubject        = "subject"
	colSession        = "session"
	colRun            = "run"
	colFileNumber     = "file_number"
	colTask           = "task"
	colThreshold      = "pupilConf_thresh"
	colDoNotUse       = "DO_NOT_USE"
	colFailsDriftCorr = "Fails_DriftCorr"
)

// ManifestEntry is one run listed in the QC manifest.
type ManifestEntry struct {
	Subject    string // sub-XX
	Session    string // ses-XXX
	Run        string // run-X
	FileNumber string // acquisition timestamp of the session file
	Task       string // task-XXX

	// Threshold overrides the confidence threshold for this run; NaN when
	// the manifest leaves it blank.
	Threshold      float64
	DoNotUse       bool
	FailsDriftCorr bool
}

// Label identifies the run in logs and the ledger.
func (e ManifestEntry) Label() string {
	return e.Subject + "_" + e.Session + "_" + e.Task + "_" + e.Run + "_" + e.FileNumber
}

// ConfidenceThreshold returns the run's override, or def when unset.
func (e ManifestEntry) ConfidenceThreshold(def float64) float64 {
	if math.IsNaN(e.Threshold) {
		return def
	}
	return e.Threshold
}

// ReadManifest parses the QC manifest TSV. The identifying columns are
// required; threshold and flag columns are optional.
func ReadManifest(r io.Reader) ([]ManifestEntry, error) {
	t, err := ReadTable(r)
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int)
	for _, name := range []string{colSubject, colSession, colRun, colFileNumber, colTask} {
		c := t.Column(name)
		if c < 0 {
			return nil, fmt.Errorf("%w: manifest lacks column %q", drift.ErrMalformedInput, name)
		}
		idx[name] = c
	}
	optional := func(row []string, name string) (float64, error) {
		c := t.Column(name)
		if c < 0 {
			return math.NaN(), nil
		}
		return ParseFloat(row[c])
	}

	entries := make([]ManifestEntry, 0, t.Len())
	for i, row := range t.Rows {
		e := ManifestEntry{
			Subject:    row[idx[colSubject]],
			Session:    row[idx[colSession]],
			Run:        row[idx[colRun]],
			FileNumber: row[idx[colFileNumber]],
			Task:       row[idx[colTask]],
		}
		var dnu, fails float64
		if e.Threshold, err = optional(row, colThreshold); err == nil {
			if dnu, err = optional(row, colDoNotUse); err == nil {
				fails, err = optional(row, colFailsDriftCorr)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: manifest row %d: %v", drift.ErrMalformedInput, i+1, err)
		}
		e.DoNotUse = dnu == 1
		e.FailsDriftCorr = fails == 1
		entries = append(entries, e)
	}
	return entries, nil
}

// Filter drops runs flagged DO_NOT_USE and, for the final export, runs that
// failed drift correction QC.
func Filter(entries []ManifestEntry, final bool) []ManifestEntry {
	var out []ManifestEntry
	for _, e := range entries {
		if e.DoNotUse || (final && e.FailsDriftCorr) {
			continue
		}
		out = append(out, e)
	}
	return out
}
