package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaze.driftcorr/internal/drift"
	"github.com/banshee-data/gaze.driftcorr/internal/units"
)

func TestEmptyDriftConfig_Defaults(t *testing.T) {
	cfg := EmptyDriftConfig()

	if cfg.GetConfidenceThreshold() != 0.9 {
		t.Errorf("GetConfidenceThreshold() = %f, want 0.9", cfg.GetConfidenceThreshold())
	}
	if cfg.GetStrategy() != drift.PreviousImageISI {
		t.Errorf("GetStrategy() = %v, want previous_image+isi", cfg.GetStrategy())
	}
	if cfg.GetMinFixationSamples() != 21 {
		t.Errorf("GetMinFixationSamples() = %d, want 21", cfg.GetMinFixationSamples())
	}
	if cfg.GetOnsetSampleIndex() != 10 {
		t.Errorf("GetOnsetSampleIndex() = %d, want 10", cfg.GetOnsetSampleIndex())
	}
	if cfg.GetFailOnEmptyLog() {
		t.Error("GetFailOnEmptyLog() = true, want false")
	}
	if cfg.GetRecordingSuffix() != "_gaze2D.json.gz" {
		t.Errorf("GetRecordingSuffix() = %q", cfg.GetRecordingSuffix())
	}
	if cfg.GetWorkers() != 4 {
		t.Errorf("GetWorkers() = %d, want 4", cfg.GetWorkers())
	}
	assert.Equal(t, units.DefaultGeometry(), cfg.GetGeometry())
	assert.Contains(t, cfg.GetUnsuffixedTasks(), "task-flocdef")
	assert.Equal(t, "run-01", cfg.GetRunAliases()["task-wedges"])
	assert.Equal(t, drift.DefaultOptions(), cfg.DriftOptions())
}

func TestDefaultDriftConfig_MatchesEmpty(t *testing.T) {
	def := DefaultDriftConfig()
	require.NoError(t, def.Validate())
	assert.Equal(t, EmptyDriftConfig().DriftOptions(), def.DriftOptions())
	assert.Equal(t, EmptyDriftConfig().GetUnsuffixedTasks(), def.GetUnsuffixedTasks())
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	assert.Equal(t, DefaultDriftConfig().DriftOptions(), cfg.DriftOptions())
	assert.Equal(t, "run-01", cfg.GetRunAliases()["task-flocdef"])
}

func TestLoadDriftConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "confidence_threshold": 0.75,
  "strategy": "current_image",
  "screen_width_px": 1920,
  "blink_guard_s": 0.5,
  "fail_on_empty_log": true,
  "run_aliases": {"task-wedges": "run-02"},
  "recording_suffix": "_gaze2D.cbor",
  "workers": 2
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadDriftConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	opts := cfg.DriftOptions()
	assert.Equal(t, 0.75, opts.ConfidenceThreshold)
	assert.Equal(t, drift.CurrentImage, opts.Strategy)
	assert.Equal(t, 1920.0, opts.Geometry.ScreenWidth)
	assert.Equal(t, 1024.0, opts.Geometry.ScreenHeight, "unset fields keep defaults")
	assert.Equal(t, 0.5, opts.Timing.BlinkGuard)
	assert.Equal(t, 1.49, opts.Timing.ISIDuration)
	assert.True(t, opts.FailOnEmptyLog)
	assert.Equal(t, map[string]string{"task-wedges": "run-02"}, cfg.GetRunAliases())
	assert.Equal(t, "_gaze2D.cbor", cfg.GetRecordingSuffix())
	assert.Equal(t, 2, cfg.GetWorkers())
}

func TestLoadDriftConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("cfg.yaml", "{}"), ".json extension"},
		{"missing", filepath.Join(tmpDir, "nope.json"), "failed to stat"},
		{"bad json", write("bad.json", "{"), "failed to parse"},
		{"threshold range", write("thr.json", `{"confidence_threshold": 1.5}`), "confidence_threshold"},
		{"unknown strategy", write("strat.json", `{"strategy": "next_image"}`), "next_image"},
		{"zero duration", write("isi.json", `{"isi_duration_s": 0}`), "isi_duration_s"},
		{"guards too long", write("guard.json", `{"blink_guard_s": 1.45}`), "no interval"},
		{"isi shorter than default guards", write("short_isi.json", `{"isi_duration_s": 0.5}`), "no interval"},
		{"saccade guard too long", write("saccade.json", `{"saccade_guard_s": 0.9}`), "no interval"},
		{"bad suffix", write("suffix.json", `{"recording_suffix": "_gaze2D.npz"}`), "unsupported recording"},
		{"workers", write("workers.json", `{"workers": 0}`), "workers"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadDriftConfig(tc.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadDriftConfig_TooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.json")
	require.NoError(t, os.WriteFile(p, make([]byte, 1024*1024+1), 0644))
	_, err := LoadDriftConfig(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestValidate_GuardsWithinShortISI(t *testing.T) {
	cfg := &DriftConfig{ISIDuration: ptrFloat64(0.5)}
	require.Error(t, cfg.Validate())

	cfg.BlinkGuard = ptrFloat64(0.2)
	assert.NoError(t, cfg.Validate())
}

func TestGetStrategy_InvalidFallsBack(t *testing.T) {
	cfg := &DriftConfig{Strategy: ptrString("bogus")}
	assert.Equal(t, drift.DefaultStrategy, cfg.GetStrategy())
	assert.Error(t, cfg.Validate())
}
