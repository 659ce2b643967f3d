// Package progress maps cumulative XP onto a normalized completion curve.
package progress

import "math"

// #region config
// Config holds the logistic curve parameters and milestone tiers.
type Config struct {
	Midpoint   float64 // xp_total at which percent is 0.5
	Scale      float64 // logistic spread
	Milestones []int   // ascending percent tiers, e.g. 25, 50, 70, 85
}

// DefaultConfig returns the standard curve.
func DefaultConfig() Config {
	return Config{
		Midpoint:   1200,
		Scale:      250,
		Milestones: []int{25, 50, 70, 85},
	}
}

// #endregion config

// #region percent
// Percent returns 1/(1+exp(-(xp-midpoint)/scale)), strictly inside (0,1) for
// any finite xp.
func Percent(xp float64, cfg Config) float64 {
	scale := cfg.Scale
	if scale <= 0 {
		scale = DefaultConfig().Scale
	}
	p := 1 / (1 + math.Exp(-(xp-cfg.Midpoint)/scale))
	// exp saturates in float64; keep the open interval.
	if p >= 1 {
		p = math.Nextafter(1, 0)
	}
	if p <= 0 {
		p = math.SmallestNonzeroFloat64
	}
	return p
}

// #endregion percent

// #region milestone
// Milestone returns the highest tier in cfg.Milestones reached by percent,
// or 0 if none.
func Milestone(percent float64, cfg Config) int {
	reached := 0
	pct := percent * 100
	for _, tier := range cfg.Milestones {
		if pct >= float64(tier) && tier > reached {
			reached = tier
		}
	}
	return reached
}

// #endregion milestone
