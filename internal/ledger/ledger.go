package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region schema
// Schema creates the append-only ledger table. The state store applies it
// alongside its own tables so both live in one database and can share a
// transaction.
const Schema = `
CREATE TABLE IF NOT EXISTS xp_ledger (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	occurred_at    TEXT NOT NULL,
	delta_xp       REAL NOT NULL,
	xp_total_after REAL NOT NULL,
	dims_json      TEXT NOT NULL,
	quality        REAL NOT NULL,
	kinds_json     TEXT NOT NULL,
	note           TEXT
);

CREATE INDEX IF NOT EXISTS idx_xp_ledger_user_time ON xp_ledger(user_id, occurred_at);
`

// TimeLayout is fixed-width so lexical order in SQL equals time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// #endregion schema

// #region append
// Append writes entry using ex, which is normally the transaction that also
// writes the user's state row.
func Append(ctx context.Context, ex Execer, entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	if entry.Dims == nil {
		entry.Dims = map[string]float64{}
	}

	dimsJSON, err := json.Marshal(entry.Dims)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal dims: %w", err)
	}
	kindsJSON, err := json.Marshal(entry.Kinds)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal kinds: %w", err)
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO xp_ledger (id, user_id, occurred_at, delta_xp, xp_total_after, dims_json, quality, kinds_json, note)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		FormatTime(entry.OccurredAt),
		entry.DeltaXP,
		entry.XPTotalAfter,
		string(dimsJSON),
		entry.Quality,
		string(kindsJSON),
		nullIfEmpty(entry.Note),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("append ledger entry: %w", err)
	}
	return entry, nil
}

// #endregion append

// #region ledger
// Ledger answers read queries over xp_ledger.
type Ledger struct {
	q Querier
}

// New wraps a database handle.
func New(q Querier) *Ledger {
	return &Ledger{q: q}
}

// RecentKinds returns sightings for userID in [since, until], newest first,
// at most limit rows.
func (l *Ledger) RecentKinds(ctx context.Context, userID string, since, until time.Time, limit int) ([]Sighting, error) {
	rows, err := l.q.QueryContext(ctx,
		`SELECT occurred_at, kinds_json FROM xp_ledger
		 WHERE user_id = ? AND occurred_at >= ? AND occurred_at <= ?
		 ORDER BY occurred_at DESC LIMIT ?`,
		userID, FormatTime(since), FormatTime(until), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent kinds: %w", err)
	}
	defer rows.Close()

	var out []Sighting
	for rows.Next() {
		var occurredStr, kindsJSON string
		if err := rows.Scan(&occurredStr, &kindsJSON); err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		s := Sighting{}
		s.OccurredAt, err = ParseTime(occurredStr)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(kindsJSON), &s.Kinds); err != nil {
			return nil, fmt.Errorf("unmarshal kinds: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// List returns the most recent entries for userID, newest first.
func (l *Ledger) List(ctx context.Context, userID string, limit int) ([]Entry, error) {
	rows, err := l.q.QueryContext(ctx,
		`SELECT id, user_id, occurred_at, delta_xp, xp_total_after, dims_json, quality, kinds_json, note
		 FROM xp_ledger WHERE user_id = ? ORDER BY occurred_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var occurredStr, dimsJSON, kindsJSON string
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &occurredStr, &e.DeltaXP, &e.XPTotalAfter,
			&dimsJSON, &e.Quality, &kindsJSON, &note); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.OccurredAt, err = ParseTime(occurredStr); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dimsJSON), &e.Dims); err != nil {
			return nil, fmt.Errorf("unmarshal dims: %w", err)
		}
		if err := json.Unmarshal([]byte(kindsJSON), &e.Kinds); err != nil {
			return nil, fmt.Errorf("unmarshal kinds: %w", err)
		}
		e.Note = note.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sum totals delta_xp over every entry for userID.
func Sum(ctx context.Context, q Querier, userID string) (float64, int, error) {
	var sum float64
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta_xp), 0), COUNT(*) FROM xp_ledger WHERE user_id = ?`, userID,
	).Scan(&sum, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, count, nil
}

// #endregion ledger

// #region helpers
// FormatTime renders t in the ledger's fixed-width UTC layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime is the inverse of FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
