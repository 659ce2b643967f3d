package update

import "github.com/danielpatrickdp/progression-engine/internal/state"

// #region update-config
// UpdateConfig holds the smoothing and bonus parameters for Apply.
type UpdateConfig struct {
	Alpha            float64 // EWMA weight of the newest observation (default 0.3)
	DiversityBonus   float64 // multiplier when an event touches many dimensions (default 1.1)
	DiversityMinDims int     // bonus applies when positive dims exceed this count (default 2)
}

// DefaultUpdateConfig returns the standard smoothing parameters.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		Alpha:            0.3,
		DiversityBonus:   1.1,
		DiversityMinDims: 2,
	}
}

// #endregion update-config

// #region contribution
// Contribution is one dimension's scaled share of an event, before caps.
type Contribution struct {
	Dimension state.Dimension
	XP        float64
}

// #endregion contribution

// #region update-result
// UpdateResult bundles everything returned by Apply.
type UpdateResult struct {
	Scores        state.Scores   // new EWMA map; untouched dimensions keep their old value
	Contributions []Contribution // in canonical dimension order
	EventTotal    float64        // sum of contributions
	Quality       float64        // quality after clamping
	Diversity     bool           // diversity bonus applied
	TouchedADP    bool
}

// #endregion update-result
