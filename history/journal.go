// Package history keeps an append-only sqlite journal of finished runs.
//
// The journal is purely diagnostic. The booking flow never reads it back,
// so nothing recorded here can change how a later run behaves.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"classbook"
)

// Journal records finished runs using SQLite.
type Journal struct {
	db *sql.DB
}

// Entry is one recorded run.
type Entry struct {
	ID         uuid.UUID
	Outcome    string
	Message    string
	Stage      string
	Location   string
	Class      string
	Time       string
	TargetDate time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewJournal opens the journal at the given database path, creating the
// schema on first use.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	journal := &Journal{db: db}
	if err := journal.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return journal, nil
}

// initSchema creates the runs table if it doesn't exist.
func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		outcome TEXT NOT NULL,
		message TEXT NOT NULL,
		stage TEXT NOT NULL,
		location TEXT NOT NULL,
		class TEXT NOT NULL,
		time TEXT NOT NULL,
		target_date TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);
	`

	_, err := j.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append records one finished run.
func (j *Journal) Append(ctx context.Context, res *classbook.RunResult) error {
	query := `
		INSERT INTO runs (
			run_id, outcome, message, stage, location, class, time,
			target_date, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := j.db.ExecContext(ctx, query,
		res.ID.String(),
		string(res.Outcome),
		res.Message,
		string(res.Stage),
		res.Target.Location,
		res.Target.Class,
		res.Target.Time,
		formatTime(res.Target.Date(res.StartedAt)),
		formatTime(res.StartedAt),
		formatTime(res.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// List returns the most recent runs, newest first. A non-positive limit
// returns everything.
func (j *Journal) List(limit int) ([]Entry, error) {
	query := `
		SELECT run_id, outcome, message, stage, location, class, time,
		       target_date, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := j.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var idStr, targetDateStr, startedAtStr, finishedAtStr string
		var entry Entry

		err := rows.Scan(
			&idStr, &entry.Outcome, &entry.Message, &entry.Stage,
			&entry.Location, &entry.Class, &entry.Time,
			&targetDateStr, &startedAtStr, &finishedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		entry.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run ID: %w", err)
		}
		entry.TargetDate = parseTime(targetDateStr)
		entry.StartedAt = parseTime(startedAtStr)
		entry.FinishedAt = parseTime(finishedAtStr)

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}

	return entries, nil
}

// Truncate strips the monotonic clock so stored and reloaded times compare
// equal.
func formatTime(t time.Time) string {
	return t.Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
