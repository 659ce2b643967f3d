package gate

import (
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/state"
)

// #region check-kind
// CheckKind enumerates the conditions a tier can require.
type CheckKind string

const (
	// CheckMinScore requires a dimension's EWMA to be at least Min.
	CheckMinScore CheckKind = "min_score"
	// CheckRecentADP requires an ADP-touching event within Within.
	CheckRecentADP CheckKind = "recent_adp"
)

// #endregion check-kind

// #region check
// Check is a single requirement inside a tier.
type Check struct {
	Kind      CheckKind
	Dimension state.Dimension // CheckMinScore only
	Min       float64         // CheckMinScore only
	Within    time.Duration   // CheckRecentADP only
	Reason    string          // reported when the check fails
}

// #endregion check

// #region tier
// Tier applies its checks to every percent at or above MinPercent.
type Tier struct {
	MinPercent float64
	Checks     []Check
}

// Ladder is evaluated most restrictive tier first; only the first tier whose
// MinPercent is reached applies. Below every tier the gate passes.
type Ladder []Tier

// DefaultLadder returns the standard milestone gates.
func DefaultLadder() Ladder {
	return Ladder{
		{
			MinPercent: 0.85,
			Checks: []Check{
				{Kind: CheckMinScore, Dimension: state.DimHPP, Min: 70, Reason: "HPP below threshold"},
				{Kind: CheckRecentADP, Within: 14 * 24 * time.Hour, Reason: "no ADP in 14 days"},
			},
		},
		{
			MinPercent: 0.70,
			Checks: []Check{
				{Kind: CheckMinScore, Dimension: state.DimSIP, Min: 65, Reason: "SIP below threshold"},
				{Kind: CheckMinScore, Dimension: state.DimPCP, Min: 60, Reason: "PCP below threshold"},
			},
		},
	}
}

// #endregion tier

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Pass    bool
	Reason  string  // first failing check; empty on pass
	Tier    float64 // MinPercent of the tier that applied; 0 when none did
	Applied bool    // a tier applied at all
}

// #endregion gate-decision
