package orchestrator

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/state"
)

const defaultSource = "unknown"

// #region event
// event is a validated AwardRequest.
type event struct {
	userID  string
	dims    map[state.Dimension]float64
	quality float64
	kinds   []string
	source  string
	at      time.Time
}

// rawDims returns the dims keyed by canonical code for the ledger.
func (ev event) rawDims() map[string]float64 {
	out := make(map[string]float64, len(ev.dims))
	for d, v := range ev.dims {
		out[string(d)] = v
	}
	return out
}

// #endregion event

// #region validate
// validate rejects a request before any state is read. Unknown dimension
// codes and non-finite magnitudes are rejected; non-positive magnitudes are
// accepted and later contribute nothing.
func validate(req AwardRequest) (event, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return event{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}

	kinds := make([]string, 0, len(req.Kinds))
	seen := make(map[string]bool, len(req.Kinds))
	for _, k := range req.Kinds {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return event{}, fmt.Errorf("%w: kinds must contain at least one label", ErrInvalidInput)
	}

	dims := make(map[state.Dimension]float64, len(req.Dims))
	codes := make([]string, 0, len(req.Dims))
	for code := range req.Dims {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		v := req.Dims[code]
		d, err := state.ParseDimension(code)
		if err != nil {
			return event{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return event{}, fmt.Errorf("%w: dimension %s is not a finite number", ErrInvalidInput, d)
		}
		if _, dup := dims[d]; dup {
			return event{}, fmt.Errorf("%w: dimension %s given more than once", ErrInvalidInput, d)
		}
		dims[d] = v
	}

	if math.IsNaN(req.Quality) {
		return event{}, fmt.Errorf("%w: quality is not a number", ErrInvalidInput)
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = defaultSource
	}

	return event{
		userID:  userID,
		dims:    dims,
		quality: req.Quality,
		kinds:   kinds,
		source:  source,
		at:      req.At,
	}, nil
}

// #endregion validate
