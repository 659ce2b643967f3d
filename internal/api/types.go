// Package api defines the wire shapes shared by the gRPC and HTTP edges.
package api

import (
	"time"
)

// #region award

// AwardRequest is the wire form of an award.
type AwardRequest struct {
	UserID  string             `json:"user_id"`
	Dims    map[string]float64 `json:"dims"`
	Quality *float64           `json:"quality,omitempty"` // absent means 1.0
	Kinds   []string           `json:"kinds"`
	Source  string             `json:"source,omitempty"`
	At      *time.Time         `json:"at,omitempty"`
}

// Contributor is one dimension's share of the delta.
type Contributor struct {
	Dimension string  `json:"dimension"`
	XP        float64 `json:"xp"`
}

// AwardResponse is the wire form of an award result.
type AwardResponse struct {
	DeltaXP         float64       `json:"delta_xp"`
	NewXPTotal      float64       `json:"new_xp_total"`
	ProgressPercent float64       `json:"progress_percent"`
	TopContributors []Contributor `json:"top_contributors"`
	PassesGates     bool          `json:"passes_gates"`
	BlockedReason   string        `json:"blocked_reason,omitempty"`
	Novel           bool          `json:"novel"`
	Milestone       int           `json:"milestone,omitempty"`
	EntryID         string        `json:"entry_id"`
	Attempts        int           `json:"attempts"`
}

// #endregion award

// #region reads

// UserRequest addresses one user's read endpoints.
type UserRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// StateResponse is a user's progression snapshot.
type StateResponse struct {
	UserID           string             `json:"user_id"`
	XPTotal          float64            `json:"xp_total"`
	SeedXP           float64            `json:"seed_xp"`
	ProgressPercent  float64            `json:"progress_percent"`
	DimScores        map[string]float64 `json:"dim_scores"`
	SessionXP        float64            `json:"session_xp"`
	DailyXP          float64            `json:"daily_xp"`
	WeeklyXP         float64            `json:"weekly_xp"`
	RepeatsToday     map[string]int     `json:"repeats_today"`
	LastResetDay     string             `json:"last_reset_day"`
	LastResetWeek    string             `json:"last_reset_week"`
	LastMilestoneHit int                `json:"last_milestone_hit"`
	LastADPAt        *time.Time         `json:"last_adp_at,omitempty"`
	PassesGates      bool               `json:"passes_gates"`
	BlockedReason    string             `json:"blocked_reason,omitempty"`
	Version          int64              `json:"version"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// LedgerEntry is one append-only award record.
type LedgerEntry struct {
	ID           string             `json:"id"`
	OccurredAt   time.Time          `json:"occurred_at"`
	DeltaXP      float64            `json:"delta_xp"`
	XPTotalAfter float64            `json:"xp_total_after"`
	Dims         map[string]float64 `json:"dims"`
	Quality      float64            `json:"quality"`
	Kinds        []string           `json:"kinds"`
	Source       string             `json:"source,omitempty"`
}

// LedgerResponse lists entries newest first.
type LedgerResponse struct {
	UserID  string        `json:"user_id"`
	Entries []LedgerEntry `json:"entries"`
}

// ReconcileResponse compares xp_total against the ledger.
type ReconcileResponse struct {
	UserID     string  `json:"user_id"`
	XPTotal    float64 `json:"xp_total"`
	SeedXP     float64 `json:"seed_xp"`
	LedgerSum  float64 `json:"ledger_sum"`
	Entries    int     `json:"entries"`
	Drift      float64 `json:"drift"`
	Consistent bool    `json:"consistent"`
}

// ErrorResponse is the HTTP error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// #endregion reads
