package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaze.driftcorr/internal/bids"
	"github.com/banshee-data/gaze.driftcorr/internal/ledger"
	"github.com/banshee-data/gaze.driftcorr/internal/monitoring"
)

func restoreLogger(t *testing.T) {
	old := monitoring.Logf
	t.Cleanup(func() { monitoring.SetLogger(old) })
}

func writeManifest(t *testing.T, out, body string) {
	t.Helper()
	path := filepath.Join(out, bids.QCDir, "QCed_file_list.tsv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

const header = "subject\tsession\trun\tfile_number\ttask\tpupilConf_thresh\tDO_NOT_USE\tFails_DriftCorr\n"

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-version"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "driftcorr")
}

func TestRun_MissingDirs(t *testing.T) {
	t.Setenv(envIn, "")
	t.Setenv(envOut, "")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), nil, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "-in and -out are required")
}

func TestRun_BadConfig(t *testing.T) {
	restoreLogger(t)
	dir := t.TempDir()
	cfg := filepath.Join(dir, "tuning.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"strategy": "next_image"}`), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-quiet", "-in", dir, "-out", dir, "-config", cfg}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "load config")
}

func TestRun_SkippedOnly(t *testing.T) {
	restoreLogger(t)
	in, out := t.TempDir(), t.TempDir()
	writeManifest(t, out, header+"sub-01\tses-001\trun-1\t20210101-101010\ttask-things\t\t1\t\n")
	ledgerPath := filepath.Join(t.TempDir(), "runs.db")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-quiet", "-in", in, "-out", out, "-ledger", ledgerPath}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "1 runs: skipped=1")

	l, err := ledger.Open(ledgerPath, nil)
	require.NoError(t, err)
	defer l.Close()
	entries, err := l.List(ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.StatusSkipped, entries[0].Status)
}

func TestRun_LedgerReport(t *testing.T) {
	restoreLogger(t)
	in, out := t.TempDir(), t.TempDir()
	writeManifest(t, out, header+
		"sub-01\tses-001\trun-1\t20210101-101010\ttask-things\t\t1\t\n"+
		"sub-01\tses-001\trun-2\t20210101-101010\ttask-things\t\t\t\n")
	ledgerPath := filepath.Join(t.TempDir(), "runs.db")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-quiet", "-in", in, "-out", out, "-ledger", ledgerPath}, &stdout, &stderr)
	require.Equal(t, 1, code)

	stdout.Reset()
	stderr.Reset()
	code = run(context.Background(), []string{"-ledger", ledgerPath, "-ledger-report"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, []string{"2 recorded runs", "  failed=1", "  skipped=1"}, lines[:3])
	assert.True(t, strings.HasPrefix(lines[3], "finished_at\tsubject"))
	rows := strings.Join(lines[4:], "\n")
	assert.Contains(t, rows, "\trun-1\tqc\tskipped\tflagged DO_NOT_USE")
	assert.Contains(t, rows, "\trun-2\tqc\tfailed\t")
}

func TestRun_LedgerReportNeedsLedger(t *testing.T) {
	t.Setenv(envLedger, "")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-ledger-report"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "-ledger-report needs -ledger")
}

func TestRun_FailedRunExitCode(t *testing.T) {
	restoreLogger(t)
	in, out := t.TempDir(), t.TempDir()
	writeManifest(t, out, header+"sub-01\tses-001\trun-1\t20210101-101010\ttask-things\t\t\t\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-quiet", "-workers", "2", "-in", in, "-out", out}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "failed=1")
	assert.Contains(t, stderr.String(), "sub-01_ses-001_task-things_run-1")
}

func TestRun_EnvDefaults(t *testing.T) {
	restoreLogger(t)
	in, out := t.TempDir(), t.TempDir()
	writeManifest(t, out, header)
	t.Setenv(envIn, in)
	t.Setenv(envOut, out)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-quiet"}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "0 runs")
}

func TestParseFlags_NegativeWorkers(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseFlags([]string{"-in", "a", "-out", "b", "-workers", "-1"}, &stderr)
	assert.Error(t, err)
}
