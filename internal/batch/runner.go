// Package batch drives drift correction over every run of a QC manifest.
//
// Each run is processed behind its own fault boundary: an error or panic
// marks that run failed and the batch carries on. A run whose output file
// already exists is not recomputed.
package batch

import (
	"context"
	"fmt"
	"io"
	"math"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/gaze.driftcorr/internal/bids"
	"github.com/banshee-data/gaze.driftcorr/internal/config"
	"github.com/banshee-data/gaze.driftcorr/internal/drift"
	"github.com/banshee-data/gaze.driftcorr/internal/events"
	"github.com/banshee-data/gaze.driftcorr/internal/fsutil"
	"github.com/banshee-data/gaze.driftcorr/internal/gaze"
	"github.com/banshee-data/gaze.driftcorr/internal/ledger"
	"github.com/banshee-data/gaze.driftcorr/internal/monitoring"
	"github.com/banshee-data/gaze.driftcorr/internal/qcplot"
	"github.com/banshee-data/gaze.driftcorr/internal/timeutil"
	"github.com/banshee-data/gaze.driftcorr/internal/units"
	"github.com/banshee-data/gaze.driftcorr/internal/version"
)

// Runner holds what every run of a batch shares. Runs never write to it.
type Runner struct {
	FS     fsutil.FileSystem
	Layout bids.Layout
	Config *config.DriftConfig
	// Final selects the export mode (enhanced events and BIDS gaze) over
	// the QC figure mode.
	Final   bool
	Workers int
	HTML    bool           // also write the interactive QC page
	Ledger  *ledger.Ledger // optional
	Clock   timeutil.Clock
}

// NewRunner builds a runner over the real filesystem using cfg for the
// layout and worker count.
func NewRunner(inDir, outDir string, cfg *config.DriftConfig, final bool) *Runner {
	return &Runner{
		FS: fsutil.OSFileSystem{},
		Layout: bids.Layout{
			InDir:           inDir,
			OutDir:          outDir,
			RecordingSuffix: cfg.GetRecordingSuffix(),
			UnsuffixedTasks: cfg.GetUnsuffixedTasks(),
		},
		Config:  cfg,
		Final:   final,
		Workers: cfg.GetWorkers(),
		HTML:    cfg.GetQCHTML(),
		Clock:   timeutil.RealClock{},
	}
}

// Outcome is the result of one run.
type Outcome struct {
	Entry      events.ManifestEntry
	Status     ledger.Status
	Reason     string
	Threshold  float64
	References int
	Samples    int
	Err        error
	Duration   time.Duration
}

// Summary collects the outcomes of a batch in manifest order.
type Summary struct {
	Outcomes []Outcome
	Counts   map[ledger.Status]int
	// Err combines the errors of every failed run; nil when none failed.
	Err error
}

func (s *Summary) String() string {
	statuses := make([]string, 0, len(s.Counts))
	for st := range s.Counts {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	parts := make([]string, len(statuses))
	for i, st := range statuses {
		parts[i] = fmt.Sprintf("%s=%d", st, s.Counts[ledger.Status(st)])
	}
	return fmt.Sprintf("%d runs: %s", len(s.Outcomes), strings.Join(parts, " "))
}

func (r *Runner) mode() string {
	if r.Final {
		return "final"
	}
	return "qc"
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

// Run reads the manifest of the runner's mode and processes every entry.
// The returned error covers only the manifest itself; per-run failures are
// reported in the summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	path := r.Layout.ManifestPath(r.Final)
	f, err := r.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	entries, err := events.ReadManifest(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	monitoring.Logf("manifest %s lists %d runs, %d eligible for %s mode",
		path, len(entries), len(events.Filter(entries, r.Final)), r.mode())
	return r.RunEntries(ctx, entries), nil
}

// RunEntries processes entries concurrently with at most Workers runs in
// flight. Entries excluded by the manifest flags are reported as skipped.
func (r *Runner) RunEntries(ctx context.Context, entries []events.ManifestEntry) *Summary {
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	outcomes := make([]Outcome, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entries {
		g.Go(func() error {
			outcomes[i] = r.runOne(ctx, e)
			r.record(outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	sum := &Summary{Outcomes: outcomes, Counts: make(map[ledger.Status]int)}
	for _, o := range outcomes {
		sum.Counts[o.Status]++
		if o.Status == ledger.StatusFailed {
			sum.Err = multierr.Append(sum.Err, fmt.Errorf("%s: %w", o.Entry.Label(), o.Err))
		}
	}
	monitoring.Logf("%s", sum)
	return sum
}

// runOne is the fault boundary of a single run.
func (r *Runner) runOne(ctx context.Context, e events.ManifestEntry) (out Outcome) {
	logf := monitoring.RunLogf(e.Label())
	start := r.clock().Now()
	out = Outcome{Entry: e, Threshold: math.NaN()}
	defer func() {
		if p := recover(); p != nil {
			out.Status = ledger.StatusFailed
			out.Err = fmt.Errorf("panic: %v", p)
			logf("panic: %v\n%s", p, debug.Stack())
		}
		if out.Err != nil && out.Reason == "" {
			out.Reason = out.Err.Error()
		}
		out.Duration = r.clock().Since(start)
		switch out.Status {
		case ledger.StatusFailed:
			logf("could not process: %v", out.Err)
		case ledger.StatusProcessed:
			logf("processed in %s", out.Duration.Round(time.Millisecond))
		default:
			logf("%s: %s", out.Status, out.Reason)
		}
	}()

	switch {
	case e.DoNotUse:
		out.Status, out.Reason = ledger.StatusSkipped, "flagged DO_NOT_USE"
		return out
	case r.Final && e.FailsDriftCorr:
		out.Status, out.Reason = ledger.StatusSkipped, "flagged Fails_DriftCorr"
		return out
	}
	if err := ctx.Err(); err != nil {
		out.Status, out.Reason = ledger.StatusSkipped, err.Error()
		return out
	}

	paths, err := r.Layout.Paths(e)
	if err != nil {
		out.Status, out.Err = ledger.StatusFailed, err
		return out
	}
	if r.FS.Exists(paths.Output(r.Final)) {
		out.Status, out.Reason = ledger.StatusAlreadyProcessed, paths.Output(r.Final)+" exists"
		return out
	}

	res, err := r.process(e, paths)
	if err != nil {
		out.Status, out.Err = ledger.StatusFailed, err
		return out
	}
	out.Status = ledger.StatusProcessed
	out.Threshold = res.Threshold
	out.References = len(res.References)
	out.Samples = res.Streams.All.Len()
	return out
}

// process runs the pipeline and writes the outputs. Nothing is written
// before the pipeline has succeeded, and the file marking the run done is
// written last.
func (r *Runner) process(e events.ManifestEntry, p bids.RunPaths) (*drift.Result, error) {
	table, err := r.readEvents(p.Events)
	if err != nil {
		return nil, err
	}
	trials, err := table.Trials()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Events, err)
	}
	samples, err := gaze.LoadRecording(r.FS, p.Recording)
	if err != nil {
		return nil, err
	}
	runLog, err := r.readLog(p.Log)
	if err != nil {
		return nil, err
	}
	player, err := gaze.LoadPlayerState(r.FS, p.PlayerInfo)
	if err != nil {
		return nil, err
	}

	opts := r.Config.DriftOptions()
	opts.ConfidenceThreshold = e.ConfidenceThreshold(opts.ConfidenceThreshold)
	res, err := drift.Process(drift.RunInput{
		Label:   e.Label(),
		Run:     e.Run,
		Log:     runLog,
		Player:  player,
		Samples: samples,
		Trials:  trials,
	}, opts)
	if err != nil {
		return nil, err
	}

	if r.Final {
		return res, r.writeFinal(table, res, p)
	}
	return res, r.writeQC(e, trials, res, p, opts.Geometry)
}

func (r *Runner) readEvents(path string) (*events.Table, error) {
	f, err := r.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: events: %v", drift.ErrMalformedInput, err)
	}
	defer f.Close()
	t, err := events.ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (r *Runner) readLog(path string) (*drift.RunLog, error) {
	f, err := r.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: session log: %v", drift.ErrMalformedInput, err)
	}
	defer f.Close()
	rl, err := drift.ParseRunLog(f, r.Config.GetRunAliases())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rl, nil
}

func (r *Runner) writeFinal(table *events.Table, res *drift.Result, p bids.RunPaths) error {
	if err := table.AppendMetrics(res.Columns); err != nil {
		return err
	}
	target := p.GazeExportTarget(r.FS)
	if err := bids.WriteFile(r.FS, target, func(w io.Writer) error {
		return bids.WriteGazeExport(w, res.Streams.Kept, res.Corrected)
	}); err != nil {
		return err
	}
	// The enhanced events file marks the run done. Without it the export
	// goes too.
	if err := bids.WriteFile(r.FS, p.EnhancedEvents, table.Write); err != nil {
		if rmErr := r.FS.Remove(target); rmErr != nil {
			err = multierr.Append(err, fmt.Errorf("remove %s: %w", target, rmErr))
		}
		return err
	}
	return nil
}

func (r *Runner) writeQC(e events.ManifestEntry, trials []drift.Trial, res *drift.Result, p bids.RunPaths, g units.Geometry) error {
	fig := qcplot.Figure{
		Title:    strings.Join([]string{e.Subject, e.Session, e.Run}, " "),
		Trials:   trials,
		Result:   res,
		Geometry: g,
	}
	if r.HTML {
		if err := bids.WriteFile(r.FS, p.FigureHTML, func(w io.Writer) error {
			return qcplot.RenderHTML(w, fig)
		}); err != nil {
			return err
		}
	}
	return bids.WriteFile(r.FS, p.Figure, func(w io.Writer) error {
		return qcplot.Render(w, fig)
	})
}

func (r *Runner) record(o Outcome) {
	if r.Ledger == nil {
		return
	}
	now := r.Ledger.Now()
	_, err := r.Ledger.Record(ledger.Entry{
		Subject:    o.Entry.Subject,
		Session:    o.Entry.Session,
		Run:        o.Entry.Run,
		Task:       o.Entry.Task,
		FileNumber: o.Entry.FileNumber,
		Mode:       r.mode(),
		Status:     o.Status,
		Reason:     o.Reason,
		Strategy:   r.Config.GetStrategy().Name,
		Threshold:  o.Threshold,
		References: o.References,
		Samples:    o.Samples,
		Version:    version.Version,
		StartedAt:  now.Add(-o.Duration),
		FinishedAt: now,
	})
	if err != nil {
		monitoring.Logf("[%s] ledger: %v", o.Entry.Label(), err)
	}
}
