package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gridscope/internal/domain"
	"gridscope/internal/repository"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target interface{}) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals a value to a nullable JSON string
func marshalToNull(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Run Row Scanner
// ============================================================================
//
// Column order must match between runColumns, scanArgs() and insertArgs().

// runColumns is the column list for run queries
const runColumns = `id, case_label, method, converged, node_count, link_count, stats, error, created_at`

// runRow holds all columns from a run query for scanning
type runRow struct {
	ID        string
	Case      string
	Method    string
	Converged bool
	Nodes     int
	Links     int
	StatsJSON sql.NullString
	Error     sql.NullString
	CreatedAt time.Time
}

// scanArgs returns pointers to all fields for sql.Scan()
func (r *runRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.Case,
		&r.Method,
		&r.Converged,
		&r.Nodes,
		&r.Links,
		&r.StatsJSON,
		&r.Error,
		&r.CreatedAt,
	}
}

// toRun converts the scanned row to a repository.Run
func (r *runRow) toRun() (*repository.Run, error) {
	run := &repository.Run{
		ID:        r.ID,
		Case:      r.Case,
		Method:    r.Method,
		Converged: r.Converged,
		Nodes:     r.Nodes,
		Links:     r.Links,
		Error:     nullToString(r.Error),
		CreatedAt: r.CreatedAt.UTC(),
	}

	if r.StatsJSON.Valid {
		run.Stats = &domain.Stats{}
		if err := unmarshalJSONField(r.StatsJSON, run.Stats); err != nil {
			return nil, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	return run, nil
}

// insertArgs returns the values for an INSERT using runColumns
func insertArgs(run *repository.Run) ([]interface{}, error) {
	var stats interface{}
	if run.Stats != nil {
		stats = run.Stats
	}
	statsJSON, err := marshalToNull(stats)
	if err != nil {
		return nil, fmt.Errorf("marshal stats: %w", err)
	}
	return []interface{}{
		run.ID,
		run.Case,
		run.Method,
		run.Converged,
		run.Nodes,
		run.Links,
		statsJSON,
		stringToNull(run.Error),
		run.CreatedAt.UTC(),
	}, nil
}
