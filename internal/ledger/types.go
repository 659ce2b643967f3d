package ledger

import (
	"context"
	"database/sql"
	"time"
)

// #region entry
// Entry is a single row in the xp_ledger table. One is appended for every
// accepted award call, including awards whose delta is zero.
type Entry struct {
	ID           string
	UserID       string
	OccurredAt   time.Time
	DeltaXP      float64
	XPTotalAfter float64
	Dims         map[string]float64 // raw magnitudes as supplied by the caller
	Quality      float64            // clamped quality actually applied
	Kinds        []string
	Note         string // provenance, e.g. the calling subsystem
}

// #endregion entry

// #region sighting
// Sighting is the slice of an entry the novelty detector needs.
type Sighting struct {
	OccurredAt time.Time
	Kinds      []string
}

// #endregion sighting

// #region db-interfaces
// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// #endregion db-interfaces
