package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/banshee-data/gaze.driftcorr/internal/drift"
	"github.com/banshee-data/gaze.driftcorr/internal/gaze"
	"github.com/banshee-data/gaze.driftcorr/internal/units"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/driftcorr.defaults.json"

// DriftConfig is the root configuration of the drift-correction tool. All
// fields are optional; the Get* accessors supply defaults for absent ones,
// so partial files are safe.
type DriftConfig struct {
	// Gaze filtering and strategy
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	Strategy            *string  `json:"strategy,omitempty"`
	MinFixationSamples  *int     `json:"min_fixation_samples,omitempty"`

	// Trial timing, seconds
	ISIDuration   *float64 `json:"isi_duration_s,omitempty"`
	SaccadeGuard  *float64 `json:"saccade_guard_s,omitempty"`
	BlinkGuard    *float64 `json:"blink_guard_s,omitempty"`
	ImageDuration *float64 `json:"image_duration_s,omitempty"`
	SampleRate    *float64 `json:"sample_rate_hz,omitempty"`

	// Screen geometry, pixels
	ScreenWidth     *float64 `json:"screen_width_px,omitempty"`
	ScreenHeight    *float64 `json:"screen_height_px,omitempty"`
	ViewingDistance *float64 `json:"viewing_distance_px,omitempty"`

	// Onset reconciliation
	OnsetSampleIndex *int              `json:"onset_sample_index,omitempty"`
	FailOnEmptyLog   *bool             `json:"fail_on_empty_log,omitempty"`
	RunAliases       map[string]string `json:"run_aliases,omitempty"`

	// Dataset layout
	RecordingSuffix *string  `json:"recording_suffix,omitempty"`
	UnsuffixedTasks []string `json:"unsuffixed_tasks,omitempty"`

	// Batch
	Workers *int  `json:"workers,omitempty"`
	QCHTML  *bool `json:"qc_html,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Defaults not carried by the drift package.
const (
	defaultRecordingSuffix = "_gaze2D.json.gz"
	defaultWorkers         = 4
)

var defaultUnsuffixedTasks = []string{"task-bar", "task-rings", "task-wedges", "task-flocdef", "task-flocalt"}

// Localizer and retinotopy tasks run once per session.
var defaultRunAliases = map[string]string{
	"task-flocdef": "run-01",
	"task-flocalt": "run-01",
	"task-bar":     "run-01",
	"task-rings":   "run-01",
	"task-wedges":  "run-01",
}

// EmptyDriftConfig returns a DriftConfig with all fields unset.
func EmptyDriftConfig() *DriftConfig {
	return &DriftConfig{}
}

// DefaultDriftConfig returns a DriftConfig with every field set to its
// default, as written to DefaultConfigPath.
func DefaultDriftConfig() *DriftConfig {
	timing := drift.DefaultTiming()
	g := units.DefaultGeometry()
	return &DriftConfig{
		ConfidenceThreshold: ptrFloat64(drift.DefaultConfidenceThreshold),
		Strategy:            ptrString(drift.DefaultStrategy.Name),
		MinFixationSamples:  ptrInt(timing.MinFixationSamples),
		ISIDuration:         ptrFloat64(timing.ISIDuration),
		SaccadeGuard:        ptrFloat64(timing.SaccadeGuard),
		BlinkGuard:          ptrFloat64(timing.BlinkGuard),
		ImageDuration:       ptrFloat64(timing.ImageDuration),
		SampleRate:          ptrFloat64(timing.SampleRate),
		ScreenWidth:         ptrFloat64(g.ScreenWidth),
		ScreenHeight:        ptrFloat64(g.ScreenHeight),
		ViewingDistance:     ptrFloat64(g.ViewingDistance),
		OnsetSampleIndex:    ptrInt(drift.DefaultObservedSampleIndex),
		FailOnEmptyLog:      ptrBool(false),
		RecordingSuffix:     ptrString(defaultRecordingSuffix),
		RunAliases:          maps.Clone(defaultRunAliases),
		UnsuffixedTasks:     append([]string(nil), defaultUnsuffixedTasks...),
		Workers:             ptrInt(defaultWorkers),
		QCHTML:              ptrBool(false),
	}
}

// LoadDriftConfig loads a DriftConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults.
func LoadDriftConfig(path string) (*DriftConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDriftConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *DriftConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from cmd/driftcorr/ and deeper
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadDriftConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *DriftConfig) Validate() error {
	if c.ConfidenceThreshold != nil {
		if v := *c.ConfidenceThreshold; v < 0 || v > 1 {
			return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", v)
		}
	}

	if c.Strategy != nil {
		if _, err := drift.ParseStrategy(*c.Strategy); err != nil {
			return err
		}
	}

	if c.MinFixationSamples != nil && *c.MinFixationSamples < 1 {
		return fmt.Errorf("min_fixation_samples must be positive, got %d", *c.MinFixationSamples)
	}

	positive := []struct {
		name string
		v    *float64
	}{
		{"isi_duration_s", c.ISIDuration},
		{"image_duration_s", c.ImageDuration},
		{"sample_rate_hz", c.SampleRate},
		{"screen_width_px", c.ScreenWidth},
		{"screen_height_px", c.ScreenHeight},
		{"viewing_distance_px", c.ViewingDistance},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", p.name, *p.v)
		}
	}

	if c.SaccadeGuard != nil && *c.SaccadeGuard < 0 {
		return fmt.Errorf("saccade_guard_s must be non-negative, got %f", *c.SaccadeGuard)
	}
	if c.BlinkGuard != nil && *c.BlinkGuard < 0 {
		return fmt.Errorf("blink_guard_s must be non-negative, got %f", *c.BlinkGuard)
	}
	if c.GetBlinkGuard()+c.GetSaccadeGuard() >= c.GetISIDuration() {
		return fmt.Errorf("blink_guard_s + saccade_guard_s leave no interval within isi_duration_s")
	}

	if c.OnsetSampleIndex != nil && *c.OnsetSampleIndex < 0 {
		return fmt.Errorf("onset_sample_index must be non-negative, got %d", *c.OnsetSampleIndex)
	}

	if c.RecordingSuffix != nil {
		if _, err := gaze.FormatFromPath(*c.RecordingSuffix); err != nil {
			return err
		}
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}

	return nil
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *DriftConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return drift.DefaultConfidenceThreshold
	}
	return *c.ConfidenceThreshold
}

// GetStrategy resolves the configured strategy. Unknown names fall back to
// the default; Validate reports them.
func (c *DriftConfig) GetStrategy() drift.Strategy {
	if c.Strategy == nil {
		return drift.DefaultStrategy
	}
	s, err := drift.ParseStrategy(*c.Strategy)
	if err != nil {
		return drift.DefaultStrategy
	}
	return s
}

// GetMinFixationSamples returns the min_fixation_samples value or the default.
func (c *DriftConfig) GetMinFixationSamples() int {
	if c.MinFixationSamples == nil {
		return drift.DefaultTiming().MinFixationSamples
	}
	return *c.MinFixationSamples
}

// GetISIDuration returns the isi_duration_s value or the default.
func (c *DriftConfig) GetISIDuration() float64 {
	if c.ISIDuration == nil {
		return drift.DefaultTiming().ISIDuration
	}
	return *c.ISIDuration
}

// GetSaccadeGuard returns the saccade_guard_s value or the default.
func (c *DriftConfig) GetSaccadeGuard() float64 {
	if c.SaccadeGuard == nil {
		return drift.DefaultTiming().SaccadeGuard
	}
	return *c.SaccadeGuard
}

// GetBlinkGuard returns the blink_guard_s value or the default.
func (c *DriftConfig) GetBlinkGuard() float64 {
	if c.BlinkGuard == nil {
		return drift.DefaultTiming().BlinkGuard
	}
	return *c.BlinkGuard
}

// GetImageDuration returns the image_duration_s value or the default.
func (c *DriftConfig) GetImageDuration() float64 {
	if c.ImageDuration == nil {
		return drift.DefaultTiming().ImageDuration
	}
	return *c.ImageDuration
}

// GetSampleRate returns the sample_rate_hz value or the default.
func (c *DriftConfig) GetSampleRate() float64 {
	if c.SampleRate == nil {
		return drift.DefaultTiming().SampleRate
	}
	return *c.SampleRate
}

// GetGeometry returns the screen geometry, defaulting each field.
func (c *DriftConfig) GetGeometry() units.Geometry {
	g := units.DefaultGeometry()
	if c.ScreenWidth != nil {
		g.ScreenWidth = *c.ScreenWidth
	}
	if c.ScreenHeight != nil {
		g.ScreenHeight = *c.ScreenHeight
	}
	if c.ViewingDistance != nil {
		g.ViewingDistance = *c.ViewingDistance
	}
	return g
}

// GetOnsetSampleIndex returns the onset_sample_index value or the default.
func (c *DriftConfig) GetOnsetSampleIndex() int {
	if c.OnsetSampleIndex == nil {
		return drift.DefaultObservedSampleIndex
	}
	return *c.OnsetSampleIndex
}

// GetFailOnEmptyLog returns the fail_on_empty_log value or the default.
func (c *DriftConfig) GetFailOnEmptyLog() bool {
	if c.FailOnEmptyLog == nil {
		return false
	}
	return *c.FailOnEmptyLog
}

// GetRunAliases returns the task to run-id mapping for localizer and
// retinotopy runs. A configured mapping replaces the defaults entirely.
func (c *DriftConfig) GetRunAliases() map[string]string {
	if c.RunAliases == nil {
		return maps.Clone(defaultRunAliases)
	}
	return c.RunAliases
}

// GetRecordingSuffix returns the recording_suffix value or the default.
func (c *DriftConfig) GetRecordingSuffix() string {
	if c.RecordingSuffix == nil {
		return defaultRecordingSuffix
	}
	return *c.RecordingSuffix
}

// GetUnsuffixedTasks returns the tasks whose files carry no run suffix.
func (c *DriftConfig) GetUnsuffixedTasks() []string {
	if c.UnsuffixedTasks == nil {
		return defaultUnsuffixedTasks
	}
	return c.UnsuffixedTasks
}

// GetWorkers returns the workers value or the default.
func (c *DriftConfig) GetWorkers() int {
	if c.Workers == nil {
		return defaultWorkers
	}
	return *c.Workers
}

// GetQCHTML returns the qc_html value or the default.
func (c *DriftConfig) GetQCHTML() bool {
	if c.QCHTML == nil {
		return false
	}
	return *c.QCHTML
}

// DriftOptions assembles the pipeline options.
func (c *DriftConfig) DriftOptions() drift.Options {
	return drift.Options{
		Strategy:            c.GetStrategy(),
		ConfidenceThreshold: c.GetConfidenceThreshold(),
		Timing: drift.Timing{
			ISIDuration:        c.GetISIDuration(),
			SaccadeGuard:       c.GetSaccadeGuard(),
			BlinkGuard:         c.GetBlinkGuard(),
			ImageDuration:      c.GetImageDuration(),
			SampleRate:         c.GetSampleRate(),
			MinFixationSamples: c.GetMinFixationSamples(),
		},
		Geometry:            c.GetGeometry(),
		ObservedSampleIndex: c.GetOnsetSampleIndex(),
		FailOnEmptyLog:      c.GetFailOnEmptyLog(),
	}
}
