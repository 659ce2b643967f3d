package state

import (
	"fmt"
	"strings"
	"time"
)

// #region dimension
// Dimension is one axis of the fixed set of tracked competencies.
type Dimension string

const (
	DimSIP Dimension = "SIP"
	DimCMP Dimension = "CMP"
	DimPCP Dimension = "PCP"
	DimHPP Dimension = "HPP"
	DimCOV Dimension = "COV"
	DimLVP Dimension = "LVP"
	DimADP Dimension = "ADP"
)

// Dimensions lists every recognized dimension in canonical order.
// Iteration over scores always follows this order so results are deterministic.
var Dimensions = [...]Dimension{DimSIP, DimCMP, DimPCP, DimHPP, DimCOV, DimLVP, DimADP}

// Valid reports whether d is a member of the recognized set.
func (d Dimension) Valid() bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// ParseDimension accepts a dimension code case-insensitively.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown dimension %q", s)
	}
	return d, nil
}

// #endregion dimension

// #region scores
// Scores maps each dimension to its smoothed contribution magnitude.
type Scores map[Dimension]float64

// NeutralScores returns a score map with every dimension set to v.
func NeutralScores(v float64) Scores {
	s := make(Scores, len(Dimensions))
	for _, d := range Dimensions {
		s[d] = v
	}
	return s
}

// Clone returns an independent copy.
func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// #endregion scores

// #region user-state
// UserState is the durable per-user progression record.
type UserState struct {
	UserID string

	XPTotal float64
	SeedXP  float64 // xp_total at creation, used for ledger reconciliation

	DimScores Scores

	SessionXP float64
	DailyXP   float64
	WeeklyXP  float64

	RepeatsToday map[string]int

	LastResetDay     string // YYYY-MM-DD in the engine's location
	LastResetWeek    string // ISO week, YYYY-Www
	LastMilestoneHit int    // percent tier, advisory
	LastADPAt        time.Time

	SessionStartedAt time.Time
	LastEventAt      time.Time

	// Version is the optimistic-concurrency counter. Zero means the row
	// has never been written.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so pipeline stages never alias the loaded record.
func (u UserState) Clone() UserState {
	out := u
	if u.DimScores != nil {
		out.DimScores = u.DimScores.Clone()
	}
	out.RepeatsToday = make(map[string]int, len(u.RepeatsToday))
	for k, v := range u.RepeatsToday {
		out.RepeatsToday[k] = v
	}
	return out
}

// #endregion user-state

// #region seed
// Seed holds the defaults applied when a user's state is created lazily.
type Seed struct {
	XPTotal      float64
	NeutralScore float64
}

// DefaultSeed starts every user at the logistic midpoint with neutral dimensions.
func DefaultSeed() Seed {
	return Seed{
		XPTotal:      1200,
		NeutralScore: 50,
	}
}

// NewUserState builds the first-access record for userID.
func NewUserState(userID string, seed Seed, now time.Time) UserState {
	return UserState{
		UserID:       userID,
		XPTotal:      seed.XPTotal,
		SeedXP:       seed.XPTotal,
		DimScores:    NeutralScores(seed.NeutralScore),
		RepeatsToday: map[string]int{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// #endregion seed

// #region reconciliation
// Reconciliation compares the stored total against the ledger.
type Reconciliation struct {
	UserID    string
	XPTotal   float64
	SeedXP    float64
	LedgerSum float64
	Entries   int
	Drift     float64 // (XPTotal - SeedXP) - LedgerSum
}

// Consistent reports whether drift is within floating-point tolerance.
func (r Reconciliation) Consistent() bool {
	const tolerance = 1e-6
	return r.Drift < tolerance && r.Drift > -tolerance
}

// #endregion reconciliation
