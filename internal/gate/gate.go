package gate

import (
	"fmt"
	"sort"
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/state"
)

// #region gate
// Gate evaluates whether milestone-gated capabilities unlock.
type Gate struct {
	ladder Ladder
}

// NewGate creates a gate from ladder. Tiers are re-ordered most restrictive
// first so configuration order does not matter.
func NewGate(ladder Ladder) *Gate {
	l := make(Ladder, len(ladder))
	copy(l, ladder)
	sort.SliceStable(l, func(i, j int) bool { return l[i].MinPercent > l[j].MinPercent })
	return &Gate{ladder: l}
}

// Evaluate picks the highest tier reached by percent and runs its checks in
// order; the first failing check wins. It never fails: a dimension missing
// from scores reads as 0.
func (g *Gate) Evaluate(percent float64, scores state.Scores, lastADPAt, now time.Time) GateDecision {
	for _, tier := range g.ladder {
		if percent < tier.MinPercent {
			continue
		}
		dec := GateDecision{Pass: true, Tier: tier.MinPercent, Applied: true}
		for _, c := range tier.Checks {
			if !c.passes(scores, lastADPAt, now) {
				dec.Pass = false
				dec.Reason = c.reason()
				return dec
			}
		}
		return dec
	}
	return GateDecision{Pass: true}
}

// #endregion gate

// #region helpers
func (c Check) passes(scores state.Scores, lastADPAt, now time.Time) bool {
	switch c.Kind {
	case CheckMinScore:
		return scores[c.Dimension] >= c.Min
	case CheckRecentADP:
		if lastADPAt.IsZero() {
			return false
		}
		return now.Sub(lastADPAt) <= c.Within
	default:
		// Unknown checks are rejected at config load; treat as unmet.
		return false
	}
}

func (c Check) reason() string {
	if c.Reason != "" {
		return c.Reason
	}
	switch c.Kind {
	case CheckMinScore:
		return fmt.Sprintf("%s below threshold", c.Dimension)
	case CheckRecentADP:
		return fmt.Sprintf("no ADP in %d days", int(c.Within.Hours()/24))
	default:
		return fmt.Sprintf("unmet check %q", c.Kind)
	}
}

// #endregion helpers
