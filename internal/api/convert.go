package api

import (
	"github.com/danielpatrickdp/progression-engine/internal/ledger"
	"github.com/danielpatrickdp/progression-engine/internal/orchestrator"
	"github.com/danielpatrickdp/progression-engine/internal/state"
)

// #region to-engine

// ToEngine converts a wire request to the engine's form.
func (r AwardRequest) ToEngine() orchestrator.AwardRequest {
	q := 1.0
	if r.Quality != nil {
		q = *r.Quality
	}
	out := orchestrator.AwardRequest{
		UserID:  r.UserID,
		Dims:    r.Dims,
		Quality: q,
		Kinds:   r.Kinds,
		Source:  r.Source,
	}
	if r.At != nil {
		out.At = r.At.UTC()
	}
	return out
}

// #endregion to-engine

// #region from-engine

// FromAward converts an engine result to its wire form.
func FromAward(res orchestrator.AwardResult) AwardResponse {
	contribs := make([]Contributor, len(res.TopContributors))
	for i, c := range res.TopContributors {
		contribs[i] = Contributor{Dimension: string(c.Dimension), XP: c.XP}
	}
	return AwardResponse{
		DeltaXP:         res.DeltaXP,
		NewXPTotal:      res.NewXPTotal,
		ProgressPercent: res.ProgressPercent,
		TopContributors: contribs,
		PassesGates:     res.PassesGates,
		BlockedReason:   res.BlockedReason,
		Novel:           res.Novel,
		Milestone:       res.Milestone,
		EntryID:         res.EntryID,
		Attempts:        res.Attempts,
	}
}

// FromSnapshot converts an engine snapshot to its wire form.
func FromSnapshot(s orchestrator.Snapshot) StateResponse {
	st := s.State
	dims := make(map[string]float64, len(st.DimScores))
	for d, v := range st.DimScores {
		dims[string(d)] = v
	}
	repeats := make(map[string]int, len(st.RepeatsToday))
	for k, v := range st.RepeatsToday {
		repeats[k] = v
	}
	out := StateResponse{
		UserID:           st.UserID,
		XPTotal:          st.XPTotal,
		SeedXP:           st.SeedXP,
		ProgressPercent:  s.Percent,
		DimScores:        dims,
		SessionXP:        st.SessionXP,
		DailyXP:          st.DailyXP,
		WeeklyXP:         st.WeeklyXP,
		RepeatsToday:     repeats,
		LastResetDay:     st.LastResetDay,
		LastResetWeek:    st.LastResetWeek,
		LastMilestoneHit: st.LastMilestoneHit,
		PassesGates:      s.Gate.Pass,
		BlockedReason:    s.Gate.Reason,
		Version:          st.Version,
		UpdatedAt:        st.UpdatedAt,
	}
	if !st.LastADPAt.IsZero() {
		at := st.LastADPAt
		out.LastADPAt = &at
	}
	return out
}

// FromEntries converts ledger entries to their wire form.
func FromEntries(userID string, entries []ledger.Entry) LedgerResponse {
	out := LedgerResponse{UserID: userID, Entries: make([]LedgerEntry, len(entries))}
	for i, e := range entries {
		out.Entries[i] = LedgerEntry{
			ID:           e.ID,
			OccurredAt:   e.OccurredAt,
			DeltaXP:      e.DeltaXP,
			XPTotalAfter: e.XPTotalAfter,
			Dims:         e.Dims,
			Quality:      e.Quality,
			Kinds:        e.Kinds,
			Source:       e.Note,
		}
	}
	return out
}

// FromReconciliation converts a reconciliation report to its wire form.
func FromReconciliation(r state.Reconciliation) ReconcileResponse {
	return ReconcileResponse{
		UserID:     r.UserID,
		XPTotal:    r.XPTotal,
		SeedXP:     r.SeedXP,
		LedgerSum:  r.LedgerSum,
		Entries:    r.Entries,
		Drift:      r.Drift,
		Consistent: r.Consistent(),
	}
}

// #endregion from-engine
