package update

import (
	"github.com/danielpatrickdp/progression-engine/internal/state"
)

// #region update-function
// Apply is a pure function that scales an event's raw dimension magnitudes
// and folds them into the per-dimension EWMA.
//
// Only dimensions with a positive raw value participate; everything else is
// skipped with no EWMA movement and no XP. multiplier is the novelty factor
// for the whole event; it is applied per dimension so the EWMA observes the
// same value that is summed into EventTotal.
func Apply(scores state.Scores, dims map[state.Dimension]float64, quality, multiplier float64, config UpdateConfig) UpdateResult {
	q := Clamp01(quality)
	if multiplier <= 0 {
		multiplier = 1
	}

	positive := 0
	for _, d := range state.Dimensions {
		if dims[d] > 0 {
			positive++
		}
	}
	diversity := positive > config.DiversityMinDims && config.DiversityBonus > 0

	out := scores.Clone()
	if out == nil {
		out = state.Scores{}
	}
	res := UpdateResult{Quality: q, Diversity: diversity}

	for _, d := range state.Dimensions {
		v := dims[d]
		if !(v > 0) {
			continue
		}

		scaled := v * q
		if diversity {
			scaled *= config.DiversityBonus
		}
		scaled *= multiplier

		res.EventTotal += scaled
		res.Contributions = append(res.Contributions, Contribution{Dimension: d, XP: scaled})
		out[d] = config.Alpha*scaled + (1-config.Alpha)*out[d]
		if d == state.DimADP {
			res.TouchedADP = true
		}
	}

	res.Scores = out
	return res
}

// #endregion update-function

// #region helpers
// Clamp01 clamps v into [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
