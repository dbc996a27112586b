// Package bids builds the dataset paths of a run and writes the
// BIDS-formatted outputs.
package bids

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/banshee-data/gaze.driftcorr/internal/events"
	"github.com/banshee-data/gaze.driftcorr/internal/fsutil"
)

// Output directories, relative to the output root.
const (
	QCDir             = "QC_gaze"
	FigureDir         = "DC_gaze"
	EnhancedEventsDir = "Events_files_enhanced"
	FinalGazeDir      = "final_bids_DriftCor"

	manifestQC    = "QCed_file_list.tsv"
	manifestFinal = "QCed_finalbids_list.tsv"
)

// Layout locates inputs under InDir (the source data) and OutDir (where
// deserialised recordings live and results are written).
type Layout struct {
	InDir           string
	OutDir          string
	RecordingSuffix string   // e.g. "_gaze2D.json.gz"
	UnsuffixedTasks []string // tasks whose files carry no run suffix
}

// RunPaths are the files read and written for one run.
type RunPaths struct {
	Recording  string
	Events     string
	Log        string
	PlayerInfo string

	Figure         string // QC mode output
	FigureHTML     string // optional QC companion
	EnhancedEvents string // final mode output
	GazeExport     string
	// GazeExportAlt is used when GazeExport already exists, which happens
	// when a session repeats a run.
	GazeExportAlt string
}

// ManifestPath is the QC manifest read in the given mode.
func (l Layout) ManifestPath(final bool) string {
	name := manifestQC
	if final {
		name = manifestFinal
	}
	return filepath.Join(l.OutDir, QCDir, name)
}

func (l Layout) unsuffixed(task string) bool {
	return slices.Contains(l.UnsuffixedTasks, task)
}

func checkComponent(field, v string) error {
	if v == "" || v == "." || v == ".." || strings.ContainsAny(v, `/\`) {
		return fmt.Errorf("invalid %s %q in manifest", field, v)
	}
	return nil
}

// Paths builds the run's paths from its manifest entry.
func (l Layout) Paths(e events.ManifestEntry) (RunPaths, error) {
	for _, c := range []struct{ field, v string }{
		{"subject", e.Subject},
		{"session", e.Session},
		{"run", e.Run},
		{"file_number", e.FileNumber},
		{"task", e.Task},
	} {
		if err := checkComponent(c.field, c.v); err != nil {
			return RunPaths{}, err
		}
	}

	sub, ses, run, fnum, task := e.Subject, e.Session, e.Run, e.FileNumber, e.Task
	inSes := filepath.Join(l.InDir, sub, ses)
	prefix := sub + "_" + ses

	var p RunPaths
	p.Recording = filepath.Join(l.OutDir, sub, ses, fmt.Sprintf("%s_%s_%s_%s%s", prefix, run, fnum, task, l.RecordingSuffix))
	p.Log = filepath.Join(inSes, fmt.Sprintf("%s_%s.log", prefix, fnum))

	pupilDir := filepath.Join(inSes, fmt.Sprintf("%s_%s.pupil", prefix, fnum))
	if l.unsuffixed(task) {
		p.Events = filepath.Join(inSes, fmt.Sprintf("%s_%s_%s_events.tsv", prefix, fnum, task))
		p.PlayerInfo = filepath.Join(pupilDir, task, "000", "info.player.json")
	} else {
		p.Events = filepath.Join(inSes, fmt.Sprintf("%s_%s_%s_%s_events.tsv", prefix, fnum, task, run))
		p.PlayerInfo = filepath.Join(pupilDir, task+"_"+run, "000", "info.player.json")
	}

	p.Figure = filepath.Join(l.OutDir, FigureDir, fmt.Sprintf("%s_%s_%s_%s_DCplot.png", prefix, run, fnum, task))
	p.FigureHTML = strings.TrimSuffix(p.Figure, ".png") + ".html"
	p.EnhancedEvents = filepath.Join(l.OutDir, EnhancedEventsDir, fmt.Sprintf("%s_%s_%s_%s_events.tsv", prefix, fnum, task, run))

	gazeDir := filepath.Join(l.OutDir, FinalGazeDir, sub, ses)
	p.GazeExport = filepath.Join(gazeDir, fmt.Sprintf("%s_%s_%s_eyetrack.tsv.gz", prefix, task, run))
	p.GazeExportAlt = filepath.Join(gazeDir, fmt.Sprintf("%s_%s_%s_%s_eyetrack.tsv.gz", prefix, task, fnum, run))
	return p, nil
}

// Output is the file whose presence marks the run as done in the given mode.
func (p RunPaths) Output(final bool) string {
	if final {
		return p.EnhancedEvents
	}
	return p.Figure
}

// GazeExportTarget picks the export name, falling back to the name with
// the file number when the plain one is taken.
func (p RunPaths) GazeExportTarget(fsys fsutil.FileSystem) string {
	if fsys.Exists(p.GazeExport) {
		return p.GazeExportAlt
	}
	return p.GazeExport
}

// WriteFile creates the parent directory of path and writes it atomically.
func WriteFile(fsys fsutil.FileSystem, path string, write func(w io.Writer) error) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := fsys.WriteAtomic(path, write); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
