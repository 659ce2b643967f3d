// Package replay runs recorded award fixtures against a fresh engine and
// compares the outcomes with their expectations.
package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/api"
	"github.com/danielpatrickdp/progression-engine/internal/config"
	"github.com/danielpatrickdp/progression-engine/internal/ledger"
	"github.com/danielpatrickdp/progression-engine/internal/orchestrator"
	"github.com/danielpatrickdp/progression-engine/internal/state"
)

// #region types

// Result captures the outcome of replaying one event.
type Result struct {
	Event    string
	UserID   string
	Response api.AwardResponse
	Err      error
	Mismatch []string // empty when every expectation held
}

// Passed reports whether the event met its expectation.
func (r Result) Passed() bool { return len(r.Mismatch) == 0 }

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Events     int
	Passed     int
	Failed     int
	Rejected   int
	TotalDelta float64
	Users      map[string]state.Reconciliation
}

// Clean reports whether every event passed and every ledger reconciles.
func (s Summary) Clean() bool {
	if s.Failed > 0 {
		return false
	}
	for _, r := range s.Users {
		if !r.Consistent() {
			return false
		}
	}
	return true
}

// #endregion types

// #region replay

// Run replays f through a new engine on an in-memory database. Each event
// is pinned to its own timestamp and the engine clock follows the latest
// timestamp seen, so an out-of-order event is rejected as it would be live.
func Run(ctx context.Context, f *Fixture, logger *slog.Logger) ([]Result, Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := config.Default()
	cfg.Engine = f.Engine
	engCfg, err := cfg.Orchestrator()
	if err != nil {
		return nil, Summary{}, fmt.Errorf("fixture engine config: %w", err)
	}

	store, err := state.NewStore(":memory:")
	if err != nil {
		return nil, Summary{}, err
	}
	defer store.Close()

	var clock time.Time
	eng := orchestrator.New(store, ledger.New(store.DB()), engCfg,
		orchestrator.WithLogger(logger),
		orchestrator.WithClock(func() time.Time { return clock }))

	results := make([]Result, 0, len(f.Events))
	users := map[string]bool{}
	for i := range f.Events {
		ev := &f.Events[i]
		res := Result{Event: ev.Label(i), UserID: ev.UserID}
		if ev.At.After(clock) {
			clock = ev.At
		}
		out, err := eng.Award(ctx, ev.ToRequest().ToEngine())
		if err != nil {
			res.Err = err
		} else {
			res.Response = api.FromAward(out)
			users[ev.UserID] = true
		}
		res.Mismatch = compare(ev.Expect, res, f.Tolerance)
		results = append(results, res)
	}

	sum := Summarize(results)
	sum.Users = make(map[string]state.Reconciliation, len(users))
	for u := range users {
		rec, err := eng.Reconcile(ctx, u)
		if err != nil {
			return results, sum, fmt.Errorf("reconcile %s: %w", u, err)
		}
		sum.Users[u] = rec
	}
	return results, sum, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{Events: len(results)}
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
		if r.Err != nil {
			s.Rejected++
			continue
		}
		s.TotalDelta += r.Response.DeltaXP
	}
	return s
}

// #endregion replay

// #region compare

func compare(want *Expectation, got Result, tol float64) []string {
	if want == nil {
		if got.Err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", got.Err)}
		}
		return nil
	}
	if want.Error != "" || got.Err != nil {
		return compareError(want.Error, got.Err)
	}

	var out []string
	r := got.Response
	num := func(name string, w *float64, g float64) {
		if w != nil && math.Abs(*w-g) > tol {
			out = append(out, fmt.Sprintf("%s: want %.6f, got %.6f", name, *w, g))
		}
	}
	num("delta_xp", want.DeltaXP, r.DeltaXP)
	num("new_xp_total", want.NewXPTotal, r.NewXPTotal)
	num("progress_percent", want.Percent, r.ProgressPercent)
	if want.PassesGates != nil && *want.PassesGates != r.PassesGates {
		out = append(out, fmt.Sprintf("passes_gates: want %v, got %v", *want.PassesGates, r.PassesGates))
	}
	if want.BlockedReason != nil && *want.BlockedReason != r.BlockedReason {
		out = append(out, fmt.Sprintf("blocked_reason: want %q, got %q", *want.BlockedReason, r.BlockedReason))
	}
	if want.Novel != nil && *want.Novel != r.Novel {
		out = append(out, fmt.Sprintf("novel: want %v, got %v", *want.Novel, r.Novel))
	}
	if want.Milestone != nil && *want.Milestone != r.Milestone {
		out = append(out, fmt.Sprintf("milestone: want %d, got %d", *want.Milestone, r.Milestone))
	}
	return out
}

func compareError(want string, err error) []string {
	if err == nil {
		return []string{fmt.Sprintf("want %s error, got success", want)}
	}
	var target error
	switch want {
	case "invalid":
		target = orchestrator.ErrInvalidInput
	case "transient":
		target = orchestrator.ErrTransient
	case "":
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	default:
		return []string{fmt.Sprintf("unknown expected error %q", want)}
	}
	if !errors.Is(err, target) {
		return []string{fmt.Sprintf("want %s error, got %v", want, err)}
	}
	return nil
}

// #endregion compare
