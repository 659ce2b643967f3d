package state

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/ledger"
	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var now = time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

func seeded(userID string) UserState {
	st := NewUserState(userID, DefaultSeed(), now)
	st.LastResetDay = "2026-03-04"
	st.LastResetWeek = "2026-W10"
	st.SessionStartedAt = now
	st.LastEventAt = now
	return st
}

func TestLoadNotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.Load(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitInsertAndLoad(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	st := seeded("u1")
	st.XPTotal = 1207.5
	st.DimScores[DimSIP] = 37.25
	st.SessionXP, st.DailyXP, st.WeeklyXP = 7.5, 7.5, 7.5
	st.RepeatsToday["first_insight"] = 1
	st.LastADPAt = now.Add(-time.Hour)

	entry, err := s.CommitAward(ctx, st, ledger.Entry{
		OccurredAt:   now,
		DeltaXP:      7.5,
		XPTotalAfter: 1207.5,
		Dims:         map[string]float64{"SIP": 5},
		Quality:      1,
		Kinds:        []string{"first_insight"},
		Note:         "test",
	})
	if err != nil {
		t.Fatalf("CommitAward: %v", err)
	}
	if entry.ID == "" || entry.UserID != "u1" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	got, err := s.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("expected version 1, got %d", got.Version)
	}
	if got.XPTotal != 1207.5 || got.SeedXP != 1200 {
		t.Errorf("unexpected totals: xp=%f seed=%f", got.XPTotal, got.SeedXP)
	}
	if got.DimScores[DimSIP] != 37.25 || got.DimScores[DimHPP] != 50 {
		t.Errorf("unexpected scores: %v", got.DimScores)
	}
	if got.RepeatsToday["first_insight"] != 1 {
		t.Errorf("unexpected repeats: %v", got.RepeatsToday)
	}
	if got.LastResetDay != "2026-03-04" || got.LastResetWeek != "2026-W10" {
		t.Errorf("unexpected reset markers: %q %q", got.LastResetDay, got.LastResetWeek)
	}
	if !got.LastADPAt.Equal(now.Add(-time.Hour)) {
		t.Errorf("unexpected last_adp_at: %v", got.LastADPAt)
	}
	if !got.LastEventAt.Equal(now) {
		t.Errorf("unexpected last_event_at: %v", got.LastEventAt)
	}
}

func TestCommitUpdateBumpsVersion(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if _, err := s.CommitAward(ctx, seeded("u1"), ledger.Entry{Kinds: []string{"a"}}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	cur, _ := s.Load(ctx, "u1")
	cur.XPTotal += 3
	if _, err := s.CommitAward(ctx, cur, ledger.Entry{DeltaXP: 3, Kinds: []string{"b"}}); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	got, _ := s.Load(ctx, "u1")
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}
	if got.XPTotal != 1203 {
		t.Fatalf("expected 1203, got %f", got.XPTotal)
	}
}

func TestCommitStaleVersionConflicts(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	s.CommitAward(ctx, seeded("u1"), ledger.Entry{Kinds: []string{"a"}})
	a, _ := s.Load(ctx, "u1")
	b, _ := s.Load(ctx, "u1")

	a.XPTotal += 1
	if _, err := s.CommitAward(ctx, a, ledger.Entry{DeltaXP: 1, Kinds: []string{"a"}}); err != nil {
		t.Fatalf("commit a: %v", err)
	}
	b.XPTotal += 2
	_, err := s.CommitAward(ctx, b, ledger.Entry{DeltaXP: 2, Kinds: []string{"b"}})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// The losing writer must not leave a ledger row behind.
	rec, err := s.Reconcile(ctx, "u1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rec.Entries != 2 || !rec.Consistent() {
		t.Fatalf("expected 2 consistent entries, got %+v", rec)
	}
}

func TestCommitDuplicateInsertConflicts(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if _, err := s.CommitAward(ctx, seeded("u1"), ledger.Entry{Kinds: []string{"a"}}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := s.CommitAward(ctx, seeded("u1"), ledger.Entry{Kinds: []string{"a"}})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for second first-time insert, got %v", err)
	}
}

func TestCommitLedgerFailureRollsBackState(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	s.CommitAward(ctx, seeded("u1"), ledger.Entry{Kinds: []string{"a"}})
	if _, err := s.DB().Exec("DROP TABLE xp_ledger"); err != nil {
		t.Fatalf("drop ledger: %v", err)
	}

	cur, _ := s.Load(ctx, "u1")
	cur.XPTotal += 10
	if _, err := s.CommitAward(ctx, cur, ledger.Entry{DeltaXP: 10, Kinds: []string{"b"}}); err == nil {
		t.Fatal("expected error when ledger table is missing")
	}

	got, _ := s.Load(ctx, "u1")
	if got.XPTotal != 1200 || got.Version != 1 {
		t.Fatalf("state must be unchanged after failed pair commit, got xp=%f version=%d", got.XPTotal, got.Version)
	}
}

func TestReconcileNotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.Reconcile(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReconcileDetectsDrift(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	s.CommitAward(ctx, seeded("u1"), ledger.Entry{Kinds: []string{"a"}})
	s.DB().Exec("UPDATE user_state SET xp_total = xp_total + 5 WHERE user_id = 'u1'")

	rec, err := s.Reconcile(ctx, "u1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rec.Consistent() {
		t.Fatal("expected drift to be detected")
	}
	if rec.Drift != 5 {
		t.Fatalf("expected drift 5, got %f", rec.Drift)
	}
}

func TestReconcileConsistentDuringCommits(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	if _, err := s.CommitAward(ctx, seeded("u1"), ledger.Entry{Kinds: []string{"a"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			cur, err := s.Load(ctx, "u1")
			if err != nil {
				t.Errorf("Load: %v", err)
				return
			}
			cur.XPTotal += 1.5
			if _, err := s.CommitAward(ctx, cur, ledger.Entry{DeltaXP: 1.5, XPTotalAfter: cur.XPTotal, Kinds: []string{"a"}}); err != nil {
				t.Errorf("commit %d: %v", i, err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		rec, err := s.Reconcile(ctx, "u1")
		if err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if !rec.Consistent() {
			t.Fatalf("reconcile %d saw drift %f (xp=%f sum=%f)", i, rec.Drift, rec.XPTotal, rec.LedgerSum)
		}
	}
	wg.Wait()
}

func TestListUsers(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	s.CommitAward(ctx, seeded("u1"), ledger.Entry{Kinds: []string{"a"}})
	s.CommitAward(ctx, seeded("u2"), ledger.Entry{Kinds: []string{"a"}})

	ids, err := s.ListUsers(ctx, 10)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 users, got %v", ids)
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestLoadOnClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(filepath.Join(dir, "test.db"))
	s.Close()

	_, err := s.Load(context.Background(), "u1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected storage error on closed DB, got %v", err)
	}
}

func TestLoad_BadScoresJSON(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	ts := ledger.FormatTime(now)
	db.Exec(`INSERT INTO user_state (user_id, version, xp_total, seed_xp, dim_scores_json, repeats_today_json, created_at, updated_at)
	         VALUES ('bad', 1, 0, 0, 'not-json', '{}', ?, ?)`, ts, ts)

	s := NewStoreWithDB(db)
	if _, err := s.Load(context.Background(), "bad"); err == nil {
		t.Fatal("expected unmarshal error for bad scores JSON")
	}
}

func TestParseDimension(t *testing.T) {
	d, err := ParseDimension(" sip ")
	if err != nil || d != DimSIP {
		t.Fatalf("expected SIP, got %q %v", d, err)
	}
	if _, err := ParseDimension("XYZ"); err == nil {
		t.Fatal("expected error for unknown dimension")
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := seeded("u1")
	a.RepeatsToday["k"] = 1
	b := a.Clone()
	b.DimScores[DimSIP] = 99
	b.RepeatsToday["k"] = 5
	if a.DimScores[DimSIP] != 50 || a.RepeatsToday["k"] != 1 {
		t.Fatal("clone must not alias maps")
	}
}
