package ledger

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaze.driftcorr/internal/timeutil"
)

func openTest(t *testing.T) (*Ledger, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, clock
}

func TestRecordAndList(t *testing.T) {
	l, clock := openTest(t)

	started := clock.Now()
	clock.Advance(3 * time.Second)
	rec, err := l.Record(Entry{
		Subject: "sub-01", Session: "ses-001", Run: "run-1", Task: "task-things", FileNumber: "20210101-101010",
		Mode: "qc", Status: StatusProcessed, Strategy: "previous_image+isi", Threshold: 0.9,
		References: 180, Samples: 89000, Version: "dev", StartedAt: started,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, started.Add(3*time.Second), rec.FinishedAt)

	clock.Advance(time.Second)
	_, err = l.Record(Entry{
		Subject: "sub-01", Session: "ses-002", Run: "run-2", Task: "task-things",
		Mode: "qc", Status: StatusFailed, Reason: "missing onset", Threshold: math.NaN(),
	})
	require.NoError(t, err)

	all, err := l.List(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	got := all[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, StatusProcessed, got.Status)
	assert.Equal(t, 0.9, got.Threshold)
	assert.Equal(t, 180, got.References)
	assert.Equal(t, 89000, got.Samples)
	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.FinishedAt.Equal(rec.FinishedAt))

	assert.True(t, math.IsNaN(all[1].Threshold))
	assert.Equal(t, "missing onset", all[1].Reason)
	assert.Equal(t, all[1].StartedAt, all[1].FinishedAt)
}

func TestList_Filter(t *testing.T) {
	l, _ := openTest(t)

	for _, e := range []Entry{
		{Subject: "sub-01", Session: "ses-001", Status: StatusProcessed},
		{Subject: "sub-01", Session: "ses-002", Status: StatusAlreadyProcessed},
		{Subject: "sub-02", Session: "ses-001", Status: StatusSkipped},
		{Subject: "sub-02", Session: "ses-001", Status: StatusProcessed},
	} {
		_, err := l.Record(e)
		require.NoError(t, err)
	}

	tests := []struct {
		name string
		f    Filter
		want int
	}{
		{"all", Filter{}, 4},
		{"subject", Filter{Subject: "sub-02"}, 2},
		{"session", Filter{Session: "ses-001"}, 3},
		{"status", Filter{Status: StatusProcessed}, 2},
		{"combined", Filter{Subject: "sub-01", Status: StatusProcessed}, 1},
		{"limit", Filter{Limit: 3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.List(tt.f)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	counts, err := l.Counts()
	require.NoError(t, err)
	assert.Equal(t, map[Status]int{StatusProcessed: 2, StatusAlreadyProcessed: 1, StatusSkipped: 1}, counts)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := Open(path, nil)
	require.NoError(t, err)
	_, err = l.Record(Entry{Subject: "sub-01", Status: StatusProcessed})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// Migrations already applied: reopening must not fail or lose rows.
	l, err = Open(path, nil)
	require.NoError(t, err)
	defer l.Close()

	got, err := l.List(Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecord_DuplicateID(t *testing.T) {
	l, _ := openTest(t)

	e, err := l.Record(Entry{Subject: "sub-01", Status: StatusProcessed})
	require.NoError(t, err)
	_, err = l.Record(e)
	assert.Error(t, err)
}
