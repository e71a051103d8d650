package repository

import (
	"context"
	"time"

	"gridscope/internal/domain"
)

// Run is one recorded power-flow calculation
type Run struct {
	ID        string        `json:"id"`
	Case      string        `json:"case"`
	Method    string        `json:"method"`
	Converged bool          `json:"converged"`
	Nodes     int           `json:"nodes"`
	Links     int           `json:"links"`
	Stats     *domain.Stats `json:"stats,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// HistoryRepository defines access to recorded calculation runs
type HistoryRepository interface {
	// RecordRun stores a run. A run without an ID is assigned one.
	RecordRun(ctx context.Context, run *Run) error

	// ListRuns returns up to limit runs, newest first
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// GetRun returns a single run or domain.ErrRunNotFound
	GetRun(ctx context.Context, id string) (*Run, error)

	// Close releases resources
	Close() error
}
