package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/caps"
	"github.com/danielpatrickdp/progression-engine/internal/gate"
	"github.com/danielpatrickdp/progression-engine/internal/ledger"
	"github.com/danielpatrickdp/progression-engine/internal/novelty"
	"github.com/danielpatrickdp/progression-engine/internal/progress"
	"github.com/danielpatrickdp/progression-engine/internal/rollover"
	"github.com/danielpatrickdp/progression-engine/internal/state"
	"github.com/danielpatrickdp/progression-engine/internal/update"
)

// #region errors
var (
	// ErrInvalidInput marks a rejected request; nothing was written.
	ErrInvalidInput = errors.New("invalid award request")
	// ErrTransient marks a storage or conflict failure; nothing was committed
	// and the caller may retry.
	ErrTransient = errors.New("transient award failure")
)

// #endregion errors

// #region collaborators
// StateStore is the per-user record store. *state.Store satisfies it.
type StateStore interface {
	Load(ctx context.Context, userID string) (state.UserState, error)
	CommitAward(ctx context.Context, next state.UserState, entry ledger.Entry) (ledger.Entry, error)
	Reconcile(ctx context.Context, userID string) (state.Reconciliation, error)
}

// LedgerReader serves novelty lookups and history. *ledger.Ledger satisfies it.
type LedgerReader interface {
	novelty.KindSource
	List(ctx context.Context, userID string, limit int) ([]ledger.Entry, error)
}

// #endregion collaborators

// #region config
// Config bundles every stage's parameters.
type Config struct {
	Seed        state.Seed
	Update      update.UpdateConfig
	Novelty     novelty.Config
	Limits      caps.Limits
	Rollover    rollover.Config
	Progress    progress.Config
	Gates       gate.Ladder
	MaxAttempts int // total attempts on version conflict
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		Seed:        state.DefaultSeed(),
		Update:      update.DefaultUpdateConfig(),
		Novelty:     novelty.DefaultConfig(),
		Limits:      caps.DefaultLimits(),
		Rollover:    rollover.DefaultConfig(),
		Progress:    progress.DefaultConfig(),
		Gates:       gate.DefaultLadder(),
		MaxAttempts: maxRetries + 1,
	}
}

// #endregion config

// #region request
// AwardRequest is one caller-supplied progress event.
type AwardRequest struct {
	UserID  string
	Dims    map[string]float64 // dimension code -> raw magnitude; may be empty
	Quality float64            // clamped to [0,1]
	Kinds   []string           // non-empty
	Source  string             // provenance, defaults to "unknown"

	// At pins the event time. Zero means the engine clock. It may not be
	// in the future or earlier than the user's last event.
	At time.Time
}

// #endregion request

// #region result
// Contributor is one dimension's share of the committed delta.
type Contributor struct {
	Dimension state.Dimension
	XP        float64
}

// AwardResult is returned for every accepted award.
type AwardResult struct {
	DeltaXP         float64
	NewXPTotal      float64
	ProgressPercent float64
	TopContributors []Contributor // at most 3, descending
	PassesGates     bool
	BlockedReason   string

	Novel     bool
	Milestone int // tier newly crossed by this award, 0 if none
	EntryID   string
	Attempts  int
	Stages    []caps.Stage
}

// Snapshot is a read-only view of a user's progression.
type Snapshot struct {
	State   state.UserState
	Percent float64
	Gate    gate.GateDecision
}

// #endregion result
