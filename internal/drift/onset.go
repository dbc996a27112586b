package drift

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/gaze.driftcorr/internal/gaze"
	"github.com/banshee-data/gaze.driftcorr/internal/monitoring"
)

// Markers written by the stimulus software into the session log.
const (
	markerTTL0         = "fMRI TTL 0"
	markerDataSaved    = "saved wide-format data to "
	markerVideoGame    = "class 'src.tasks.videogame.VideoGameMultiLevel'"
	markerLocalizer    = "class 'src.tasks.localizers.FLoc'"
	markerRetinotopy   = "class 'src.tasks.retinotopy.Retinotopy'"
	noTriggerTimestamp = -1.0
)

// RunLog is the digest of a session log: for each run, the time of the last
// TTL 0 trigger seen before the run was announced.
type RunLog struct {
	Onsets map[string]float64
	Lines  int
}

// ParseRunLog scans a tab-separated session log. aliases maps localizer and
// retinotopy task names, as printed in the log, to run identifiers; names
// without an alias are skipped.
func ParseRunLog(r io.Reader, aliases map[string]string) (*RunLog, error) {
	rl := &RunLog{Onsets: make(map[string]float64)}
	var ttl0 trigger

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		rl.Lines++
		line := strings.TrimRight(sc.Text(), "\r\n ")

		switch {
		case strings.Contains(line, markerTTL0):
			field, _, _ := strings.Cut(line, "\t")
			ttl0 = trigger{raw: strings.TrimSpace(field), line: rl.Lines, seen: true}

		case strings.Contains(line, markerDataSaved):
			fields := strings.Split(line, "\t")
			if run, ok := secondToLast(strings.Split(fields[len(fields)-1], "_")); ok {
				if err := rl.assign(run, ttl0); err != nil {
					return nil, err
				}
			}

		case strings.Contains(line, markerVideoGame):
			if name, ok := secondToLast(strings.Split(line, ": ")); ok {
				parts := strings.Split(name, "_")
				if err := rl.assign(parts[len(parts)-1], ttl0); err != nil {
					return nil, err
				}
			}

		case strings.Contains(line, markerLocalizer), strings.Contains(line, markerRetinotopy):
			name, ok := secondToLast(strings.Split(line, ": "))
			if !ok {
				continue
			}
			run, ok := aliases[name]
			if !ok {
				monitoring.Logf("run log line %d: no run alias for task %q", rl.Lines, name)
				continue
			}
			if err := rl.assign(run, ttl0); err != nil {
				return nil, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read run log: %v", ErrMalformedInput, err)
	}
	return rl, nil
}

// trigger is the last TTL 0 line seen. Its timestamp is only parsed once a
// run marker takes it as onset.
type trigger struct {
	raw  string
	line int
	seen bool
}

func (rl *RunLog) assign(run string, t trigger) error {
	if !t.seen {
		rl.Onsets[run] = noTriggerTimestamp
		return nil
	}
	v, err := strconv.ParseFloat(t.raw, 64)
	if err != nil {
		return fmt.Errorf("%w: line %d: TTL timestamp %q: %v", ErrMalformedInput, t.line, t.raw, err)
	}
	rl.Onsets[run] = v
	return nil
}

func secondToLast(parts []string) (string, bool) {
	if len(parts) < 2 {
		return "", false
	}
	return parts[len(parts)-2], true
}

// ReconcileOnset returns the run's task onset on the same clock as the gaze
// samples. sampleTime is one observed tracker timestamp from the recording.
//
// The recorder may stamp samples on either its synchronised or its system
// clock; whichever start time is nearer decides the basis. If the logged
// onset and the samples disagree, the onset is shifted by the difference
// between the two bases.
//
// An empty log yields sampleTime itself together with ErrEmptyLog, which
// callers may treat as a warning.
func ReconcileOnset(rl *RunLog, run string, ps gaze.PlayerState, sampleTime float64) (float64, error) {
	if rl == nil || rl.Lines == 0 {
		return sampleTime, ErrEmptyLog
	}
	onset, ok := rl.Onsets[run]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingOnset, run)
	}

	sync, system := ps.StartTimeSynced, ps.StartTimeSystem
	samplesOnSync := sq(sampleTime-sync) < sq(sampleTime-system)
	onsetOnSync := sq(onset-sync) < sq(onset-system)
	if samplesOnSync != onsetOnSync {
		if onsetOnSync {
			onset += system - sync
		} else {
			onset += sync - system
		}
	}
	return onset, nil
}

func sq(v float64) float64 { return v * v }
