package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/ledger"
	_ "modernc.org/sqlite"
)

// #region errors
var (
	// ErrNotFound is returned by Load when the user has no state row yet.
	ErrNotFound = errors.New("user state not found")
	// ErrConflict is returned by CommitAward when the row changed since it was loaded.
	ErrConflict = errors.New("user state version conflict")
)

// #endregion errors

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS user_state (
	user_id            TEXT PRIMARY KEY,
	version            INTEGER NOT NULL,
	xp_total           REAL NOT NULL,
	seed_xp            REAL NOT NULL,
	dim_scores_json    TEXT NOT NULL,
	session_xp         REAL NOT NULL DEFAULT 0,
	daily_xp           REAL NOT NULL DEFAULT 0,
	weekly_xp          REAL NOT NULL DEFAULT 0,
	repeats_today_json TEXT NOT NULL,
	last_reset_day     TEXT,
	last_reset_week    TEXT,
	last_milestone_hit INTEGER NOT NULL DEFAULT 0,
	last_adp_at        TEXT,
	session_started_at TEXT,
	last_event_at      TEXT,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store manages per-user progression state and the award ledger in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection serializes writers inside this process and keeps
	// ":memory:" databases coherent. Cross-process races are caught by the
	// version check in CommitAward.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection. The caller owns migrations.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the state and ledger schema to db.
func Migrate(db *sql.DB) error {
	return migrate(db)
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate state: %w", err)
	}
	if _, err := db.Exec(ledger.Schema); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	return nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. ledger reads).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region load
// Load reads the state row for userID. It returns ErrNotFound if none exists.
func (s *Store) Load(ctx context.Context, userID string) (UserState, error) {
	return load(ctx, s.db, userID)
}

func load(ctx context.Context, q ledger.Querier, userID string) (UserState, error) {
	var st UserState
	var dimsJSON, repeatsJSON, createdStr, updatedStr string
	var resetDay, resetWeek, adpAt, sessionAt, eventAt sql.NullString

	err := q.QueryRowContext(ctx,
		`SELECT user_id, version, xp_total, seed_xp, dim_scores_json, session_xp, daily_xp, weekly_xp,
		        repeats_today_json, last_reset_day, last_reset_week, last_milestone_hit,
		        last_adp_at, session_started_at, last_event_at, created_at, updated_at
		 FROM user_state WHERE user_id = ?`, userID,
	).Scan(&st.UserID, &st.Version, &st.XPTotal, &st.SeedXP, &dimsJSON, &st.SessionXP, &st.DailyXP, &st.WeeklyXP,
		&repeatsJSON, &resetDay, &resetWeek, &st.LastMilestoneHit,
		&adpAt, &sessionAt, &eventAt, &createdStr, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return UserState{}, ErrNotFound
	}
	if err != nil {
		return UserState{}, fmt.Errorf("load state %s: %w", userID, err)
	}

	if err := json.Unmarshal([]byte(dimsJSON), &st.DimScores); err != nil {
		return UserState{}, fmt.Errorf("unmarshal dim scores: %w", err)
	}
	if err := json.Unmarshal([]byte(repeatsJSON), &st.RepeatsToday); err != nil {
		return UserState{}, fmt.Errorf("unmarshal repeats: %w", err)
	}
	if st.RepeatsToday == nil {
		st.RepeatsToday = map[string]int{}
	}
	st.LastResetDay = resetDay.String
	st.LastResetWeek = resetWeek.String
	st.LastADPAt = parseNullTime(adpAt)
	st.SessionStartedAt = parseNullTime(sessionAt)
	st.LastEventAt = parseNullTime(eventAt)
	st.CreatedAt, _ = ledger.ParseTime(createdStr)
	st.UpdatedAt, _ = ledger.ParseTime(updatedStr)

	return st, nil
}

// #endregion load

// #region commit-award
// CommitAward writes next and appends entry in one transaction.
//
// next.Version must be the version that was loaded (0 for a user that did
// not exist). If another writer committed in between, nothing is written
// and ErrConflict is returned. On success the stored version is
// next.Version+1 and the appended entry (with its generated ID) is returned.
func (s *Store) CommitAward(ctx context.Context, next UserState, entry ledger.Entry) (ledger.Entry, error) {
	dimsJSON, err := json.Marshal(next.DimScores)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("marshal dim scores: %w", err)
	}
	repeats := next.RepeatsToday
	if repeats == nil {
		repeats = map[string]int{}
	}
	repeatsJSON, err := json.Marshal(repeats)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("marshal repeats: %w", err)
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = next.UpdatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if next.Version == 0 {
		res, err = tx.ExecContext(ctx,
			`INSERT INTO user_state (user_id, version, xp_total, seed_xp, dim_scores_json, session_xp, daily_xp, weekly_xp,
			        repeats_today_json, last_reset_day, last_reset_week, last_milestone_hit,
			        last_adp_at, session_started_at, last_event_at, created_at, updated_at)
			 VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id) DO NOTHING`,
			next.UserID, next.XPTotal, next.SeedXP, string(dimsJSON), next.SessionXP, next.DailyXP, next.WeeklyXP,
			string(repeatsJSON), nullIfEmpty(next.LastResetDay), nullIfEmpty(next.LastResetWeek), next.LastMilestoneHit,
			nullTime(next.LastADPAt), nullTime(next.SessionStartedAt), nullTime(next.LastEventAt),
			ledger.FormatTime(next.CreatedAt), ledger.FormatTime(next.UpdatedAt),
		)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE user_state SET version = version + 1, xp_total = ?, dim_scores_json = ?,
			        session_xp = ?, daily_xp = ?, weekly_xp = ?, repeats_today_json = ?,
			        last_reset_day = ?, last_reset_week = ?, last_milestone_hit = ?,
			        last_adp_at = ?, session_started_at = ?, last_event_at = ?, updated_at = ?
			 WHERE user_id = ? AND version = ?`,
			next.XPTotal, string(dimsJSON),
			next.SessionXP, next.DailyXP, next.WeeklyXP, string(repeatsJSON),
			nullIfEmpty(next.LastResetDay), nullIfEmpty(next.LastResetWeek), next.LastMilestoneHit,
			nullTime(next.LastADPAt), nullTime(next.SessionStartedAt), nullTime(next.LastEventAt),
			ledger.FormatTime(next.UpdatedAt),
			next.UserID, next.Version,
		)
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("write state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ledger.Entry{}, ErrConflict
	}

	entry.UserID = next.UserID
	appended, err := ledger.Append(ctx, tx, entry)
	if err != nil {
		return ledger.Entry{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, fmt.Errorf("commit: %w", err)
	}
	return appended, nil
}

// #endregion commit-award

// #region reconcile
// Reconcile compares xp_total - seed_xp against the ledger sum for userID.
// Both reads run in one transaction so a concurrent award is seen by both
// or by neither.
func (s *Store) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("begin reconcile: %w", err)
	}
	defer tx.Rollback()

	st, err := load(ctx, tx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	sum, count, err := ledger.Sum(ctx, tx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{
		UserID:    userID,
		XPTotal:   st.XPTotal,
		SeedXP:    st.SeedXP,
		LedgerSum: sum,
		Entries:   count,
		Drift:     (st.XPTotal - st.SeedXP) - sum,
	}, nil
}

// #endregion reconcile

// #region list-users
// ListUsers returns user IDs ordered by most recent update.
func (s *Store) ListUsers(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM user_state ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// #endregion list-users

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return ledger.FormatTime(t)
}

func parseNullTime(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	t, err := ledger.ParseTime(ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// #endregion helpers
