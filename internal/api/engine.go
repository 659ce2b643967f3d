package api

import (
	"context"

	"github.com/danielpatrickdp/progression-engine/internal/ledger"
	"github.com/danielpatrickdp/progression-engine/internal/orchestrator"
	"github.com/danielpatrickdp/progression-engine/internal/state"
)

// Engine is the surface both transports serve. *orchestrator.Engine
// satisfies it.
type Engine interface {
	Award(ctx context.Context, req orchestrator.AwardRequest) (orchestrator.AwardResult, error)
	State(ctx context.Context, userID string) (orchestrator.Snapshot, error)
	Ledger(ctx context.Context, userID string, limit int) ([]ledger.Entry, error)
	Reconcile(ctx context.Context, userID string) (state.Reconciliation, error)
}

var _ Engine = (*orchestrator.Engine)(nil)
