package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gridscope/internal/domain"
	"gridscope/internal/repository"

	_ "modernc.org/sqlite"
)

// DefaultListLimit caps ListRuns when no positive limit is given
const DefaultListLimit = 50

// Repository implements repository.HistoryRepository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.HistoryRepository = (*Repository)(nil)

// New opens (creating if needed) the history database at dbPath
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if !strings.HasPrefix(dbPath, ":memory:") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database exists per connection
	if strings.HasPrefix(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS calculation_runs (
		id TEXT PRIMARY KEY,
		case_label TEXT NOT NULL,
		method TEXT NOT NULL,
		converged INTEGER NOT NULL DEFAULT 0,
		node_count INTEGER NOT NULL DEFAULT 0,
		link_count INTEGER NOT NULL DEFAULT 0,
		stats JSON,
		error TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON calculation_runs(created_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// RecordRun stores a run, assigning an id and timestamp when missing
func (r *Repository) RecordRun(ctx context.Context, run *repository.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	args, err := insertArgs(run)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO calculation_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]repository.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM calculation_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]repository.Run, 0)
	for rows.Next() {
		var row runRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run, err := row.toRun()
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given id
func (r *Repository) GetRun(ctx context.Context, id string) (*repository.Run, error) {
	var row runRow
	err := r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM calculation_runs WHERE id = ?`, id,
	).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return row.toRun()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
