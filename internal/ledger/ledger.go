// Package ledger records every batch run attempt in a sqlite database.
package ledger

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/gaze.driftcorr/internal/monitoring"
	"github.com/banshee-data/gaze.driftcorr/internal/timeutil"
)

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Status is the outcome of one run attempt.
type Status string

const (
	StatusProcessed        Status = "processed"
	StatusSkipped          Status = "skipped"
	StatusFailed           Status = "failed"
	StatusAlreadyProcessed Status = "already_processed"
)

// Entry is one row of the runs table.
type Entry struct {
	ID         string
	Subject    string
	Session    string
	Run        string
	Task       string
	FileNumber string
	Mode       string // "qc" or "final"
	Status     Status
	Reason     string
	Strategy   string
	Threshold  float64 // NaN when no threshold applied
	References int
	Samples    int
	Version    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ledger wraps the sqlite handle.
type Ledger struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the ledger at path and migrates it to
// the latest schema. Use ":memory:" for a throwaway ledger.
func Open(path string, clock timeutil.Clock) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// sqlite serialises writers; one connection also keeps :memory: alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Ledger{db: db, clock: clock}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load ledger migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	// m is not closed: that would close db as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// Close releases the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Now is the ledger clock's current time.
func (l *Ledger) Now() time.Time {
	return l.clock.Now()
}

// Record stores e, assigning an ID and a finish time when they are unset.
// The stored entry is returned.
func (l *Ledger) Record(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = l.clock.Now()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = e.FinishedAt
	}
	var threshold interface{}
	if !math.IsNaN(e.Threshold) {
		threshold = e.Threshold
	}

	_, err := l.db.Exec(`
		INSERT INTO runs (
			run_id, subject, session, run, task, file_number, mode, status, reason,
			strategy, threshold, references_found, samples_kept, tool_version,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Subject, e.Session, e.Run, e.Task, e.FileNumber, e.Mode, string(e.Status), e.Reason,
		e.Strategy, threshold, e.References, e.Samples, e.Version,
		e.StartedAt.UTC().Format(timeFormat), e.FinishedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record run %s: %w", e.ID, err)
	}
	return e, nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Subject string
	Session string
	Status  Status
	Limit   int
}

// List returns recorded runs, oldest first.
func (l *Ledger) List(f Filter) ([]Entry, error) {
	query := `
		SELECT run_id, subject, session, run, task, file_number, mode, status, reason,
			strategy, threshold, references_found, samples_kept, tool_version,
			started_at, finished_at
		FROM runs WHERE 1=1`
	var args []interface{}
	if f.Subject != "" {
		query += " AND subject = ?"
		args = append(args, f.Subject)
	}
	if f.Session != "" {
		query += " AND session = ?"
		args = append(args, f.Session)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	query += " ORDER BY finished_at, rowid"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			status            string
			threshold         sql.NullFloat64
			started, finished string
		)
		if err := rows.Scan(&e.ID, &e.Subject, &e.Session, &e.Run, &e.Task, &e.FileNumber, &e.Mode, &status, &e.Reason,
			&e.Strategy, &threshold, &e.References, &e.Samples, &e.Version, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.Status = Status(status)
		e.Threshold = math.NaN()
		if threshold.Valid {
			e.Threshold = threshold.Float64
		}
		if e.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", e.ID, err)
		}
		if e.FinishedAt, err = time.Parse(timeFormat, finished); err != nil {
			return nil, fmt.Errorf("run %s finished_at: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of recorded runs per status.
func (l *Ledger) Counts() (map[Status]int, error) {
	rows, err := l.db.Query(`SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[Status(s)] = n
	}
	return out, rows.Err()
}
