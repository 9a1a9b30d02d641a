// Package history keeps a local ledger of export attempts in SQLite. Rows
// are observational — the session controller has no dependency on this
// package; the CLI records a row once a session settles and the history
// command reads them back.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// Record is one settled export attempt.
type Record struct {
	ID          string
	ProjectID   string
	FinalStep   string
	Link        string
	Message     string
	AuthRetries int
	CreatedAt   time.Time
}

// Store wraps the history database. Single writer — the CLI process.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at dbPath and applies
// pending migrations. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("history: creating state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}

	// Sole-writer process; a single connection sidesteps SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("history database ready", slog.String("path", dbPath))

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("history: %s: %w", p, err)
		}
	}

	return nil
}

// Record inserts one settled export attempt. The ID is assigned here.
func (s *Store) Record(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_attempts
			(id, project_id, final_step, link, message, auth_retries, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectID, rec.FinalStep, rec.Link, rec.Message,
		rec.AuthRetries, rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("history: recording attempt: %w", err)
	}

	s.logger.Debug("export attempt recorded",
		slog.String("id", rec.ID),
		slog.String("project_id", rec.ProjectID),
		slog.String("final_step", rec.FinalStep),
	)

	return nil
}

// List returns the most recent attempts, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, final_step, link, message, auth_retries, created_at
			FROM export_attempts ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: listing attempts: %w", err)
	}
	defer rows.Close()

	var out []Record

	for rows.Next() {
		var (
			rec     Record
			created string
		)

		if err := rows.Scan(&rec.ID, &rec.ProjectID, &rec.FinalStep,
			&rec.Link, &rec.Message, &rec.AuthRetries, &created); err != nil {
			return nil, fmt.Errorf("history: scanning attempt: %w", err)
		}

		if t, parseErr := time.Parse(time.RFC3339, created); parseErr == nil {
			rec.CreatedAt = t
		}

		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating attempts: %w", err)
	}

	return out, nil
}
