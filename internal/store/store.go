// Package store persists the redaction log and processing sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/NarendraPati1/deIdentifier/internal/pipeline"
)

// Store is the SQLite-backed redaction log.
type Store struct {
	db *sql.DB
}

// Redaction is one logged file: who processed it, when, and its rendered
// columns.
type Redaction struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	UserID      string            `json:"user_id"`
	Filename    string            `json:"filename"`
	ProcessedAt time.Time         `json:"processed_at"`
	Fields      map[string]string `json:"fields"`
}

// SessionRow is one logged processing session.
type SessionRow struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"session_name"`
	FilesProcessed int       `json:"files_processed"`
	PIIItems       int       `json:"pii_items"`
	PHIItems       int       `json:"phi_items"`
	ProcessingTime float64   `json:"processing_time"`
	CreatedAt      time.Time `json:"created_at"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes"`
}

// Open opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) migrate() error {
	var cols strings.Builder
	for _, c := range pipeline.Columns {
		fmt.Fprintf(&cols, ",\n\t%s TEXT NOT NULL DEFAULT ''", c.Name)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS processing_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_name TEXT NOT NULL,
	files_processed INTEGER NOT NULL,
	pii_items INTEGER NOT NULL,
	phi_items INTEGER NOT NULL,
	processing_time REAL NOT NULL,
	created_at TEXT NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS redactions (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES processing_sessions(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	processed_at TEXT NOT NULL` + cols.String() + `
)`,
		`CREATE INDEX IF NOT EXISTS idx_redactions_user ON redactions(user_id, processed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON processing_sessions(user_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveSession appends the session and one redaction row per completed file.
func (s *Store) SaveSession(ctx context.Context, sess pipeline.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	created := sess.CreatedAt.UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `INSERT INTO processing_sessions
		(id, user_id, session_name, files_processed, pii_items, phi_items, processing_time, created_at, status, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Name, sess.FilesProcessed, sess.PIIItems, sess.PHIItems,
		sess.ProcessingTime, created, "completed",
		fmt.Sprintf("Processed %d files with redactions log", sess.FilesProcessed),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	names := make([]string, 0, len(pipeline.Columns))
	for _, c := range pipeline.Columns {
		names = append(names, c.Name)
	}
	query := fmt.Sprintf(`INSERT INTO redactions (id, session_id, user_id, filename, processed_at, %s)
		VALUES (?, ?, ?, ?, ?%s)`,
		strings.Join(names, ", "), strings.Repeat(", ?", len(names)))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare redaction insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range sess.Records {
		if rec.Status != pipeline.RecordCompleted {
			continue
		}
		row := rec.Row()
		args := []any{uuid.NewString(), sess.ID, sess.UserID, rec.Filename, created}
		for _, v := range row[1:] {
			args = append(args, v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert redaction %s: %w", rec.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// History returns a user's redaction log, newest first.
func (s *Store) History(ctx context.Context, userID string) ([]Redaction, error) {
	names := make([]string, 0, len(pipeline.Columns))
	for _, c := range pipeline.Columns {
		names = append(names, c.Name)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, session_id, user_id, filename, processed_at, %s
		FROM redactions WHERE user_id = ? ORDER BY processed_at DESC, rowid DESC`, strings.Join(names, ", ")), userID)
	if err != nil {
		return nil, fmt.Errorf("query redactions: %w", err)
	}
	defer rows.Close()

	var out []Redaction
	for rows.Next() {
		var r Redaction
		var processed string
		values := make([]string, len(names))
		dest := []any{&r.ID, &r.SessionID, &r.UserID, &r.Filename, &processed}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan redaction: %w", err)
		}
		r.ProcessedAt, _ = time.Parse(time.RFC3339Nano, processed)
		r.Fields = make(map[string]string, len(names))
		for i, n := range names {
			r.Fields[n] = values[i]
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Sessions returns a user's processing sessions, newest first.
func (s *Store) Sessions(ctx context.Context, userID string) ([]SessionRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, session_name, files_processed, pii_items, phi_items,
		processing_time, created_at, status, notes
		FROM processing_sessions WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		var created string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.FilesProcessed, &r.PIIItems, &r.PHIItems,
			&r.ProcessingTime, &created, &r.Status, &r.Notes); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}
