package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/branchq/pkg/model"

	_ "modernc.org/sqlite"
)

// schema contains the DDL for the journal tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS visit_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		branch_id  TEXT NOT NULL,
		visit_id   TEXT NOT NULL,
		ticket     TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL,
		at         TEXT NOT NULL,
		params     TEXT NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS archived_visits (
		visit_id    TEXT PRIMARY KEY,
		branch_id   TEXT NOT NULL,
		ticket      TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		snapshot    TEXT NOT NULL,
		archived_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS published_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id    TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		destination TEXT NOT NULL DEFAULT '',
		broadcast   INTEGER NOT NULL DEFAULT 0,
		sender_id   TEXT NOT NULL DEFAULT '',
		at          TEXT NOT NULL,
		params      TEXT NOT NULL DEFAULT '{}',
		body        TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_visit_events_visit_id ON visit_events(visit_id)`,
	`CREATE INDEX IF NOT EXISTS idx_visit_events_branch_id ON visit_events(branch_id)`,
	`CREATE INDEX IF NOT EXISTS idx_archived_visits_branch_id ON archived_visits(branch_id)`,
}

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteJournal opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteJournal(dbPath string, logger *slog.Logger) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteJournal{
		db:     db,
		logger: logger.With("component", "journal"),
	}, nil
}

// Close closes the underlying database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Migrate creates all required tables and indexes.
func (j *SQLiteJournal) Migrate(ctx context.Context) error {
	j.logger.Debug("sql", "op", "migrate")
	for _, stmt := range schema {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (j *SQLiteJournal) AppendEvent(ctx context.Context, branchID string, v *model.Visit, ev model.LifecycleEvent) error {
	j.logger.Debug("sql", "op", "insert", "table", "visit_events", "visit_id", v.ID, "event", ev.Type)

	paramsJSON, err := json.Marshal(ev.Parameters)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	if ev.Parameters == nil {
		paramsJSON = []byte("{}")
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO visit_events (branch_id, visit_id, ticket, event_type, at, params)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		branchID, v.ID, v.Ticket, string(ev.Type),
		ev.At.Format(time.RFC3339Nano), string(paramsJSON),
	)
	return err
}

func (j *SQLiteJournal) VisitEvents(ctx context.Context, visitID string) ([]Entry, error) {
	j.logger.Debug("sql", "op", "select", "table", "visit_events", "visit_id", visitID)

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, branch_id, visit_id, ticket, event_type, at, params
		 FROM visit_events WHERE visit_id = ? ORDER BY id`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var eventType, paramsJSON string
		if err := rows.Scan(&e.ID, &e.BranchID, &e.VisitID, &e.Ticket, &eventType, &e.At, &paramsJSON); err != nil {
			return nil, err
		}
		e.EventType = model.EventType(eventType)
		if err := json.Unmarshal([]byte(paramsJSON), &e.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *SQLiteJournal) ArchiveVisit(ctx context.Context, branchID string, v *model.Visit) error {
	j.logger.Debug("sql", "op", "upsert", "table", "archived_visits", "visit_id", v.ID)

	snapshot, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal visit: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO archived_visits (visit_id, branch_id, ticket, status, snapshot, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(visit_id) DO UPDATE SET status = excluded.status,
		   snapshot = excluded.snapshot, archived_at = excluded.archived_at`,
		v.ID, branchID, v.Ticket, string(v.Status), string(snapshot),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (j *SQLiteJournal) ArchivedVisit(ctx context.Context, visitID string) (*model.Visit, error) {
	j.logger.Debug("sql", "op", "select", "table", "archived_visits", "visit_id", visitID)

	var snapshot string
	err := j.db.QueryRowContext(ctx,
		`SELECT snapshot FROM archived_visits WHERE visit_id = ?`, visitID,
	).Scan(&snapshot)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var v model.Visit
	if err := json.Unmarshal([]byte(snapshot), &v); err != nil {
		return nil, fmt.Errorf("unmarshal visit: %w", err)
	}
	return &v, nil
}
