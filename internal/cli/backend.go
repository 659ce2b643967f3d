package cli

import (
	"context"

	"github.com/danielpatrickdp/progression-engine/internal/api"
	"github.com/danielpatrickdp/progression-engine/internal/app"
	"github.com/danielpatrickdp/progression-engine/internal/rpc"
	"github.com/danielpatrickdp/progression-engine/internal/telemetry"
)

// backend is what the read and award commands talk to: either a local
// database or a remote service.
type backend interface {
	Award(ctx context.Context, req api.AwardRequest) (api.AwardResponse, error)
	State(ctx context.Context, userID string) (api.StateResponse, error)
	Ledger(ctx context.Context, userID string, limit int) (api.LedgerResponse, error)
	Reconcile(ctx context.Context, userID string) (api.ReconcileResponse, error)
	Close() error
}

// open returns the remote client when --addr is set, and the local
// database otherwise.
func (o *RootOptions) open() (backend, error) {
	if o.Addr != "" {
		c, err := rpc.NewClient(o.Addr, telemetry.DialOption())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "connect", err)
		}
		return c, nil
	}
	l, err := app.Open(o.cfg, o.logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	return localBackend{l}, nil
}

// localBackend converts between the engine and wire forms.
type localBackend struct {
	*app.Local
}

func (b localBackend) Award(ctx context.Context, req api.AwardRequest) (api.AwardResponse, error) {
	res, err := b.Engine.Award(ctx, req.ToEngine())
	if err != nil {
		return api.AwardResponse{}, err
	}
	return api.FromAward(res), nil
}

func (b localBackend) State(ctx context.Context, userID string) (api.StateResponse, error) {
	snap, err := b.Engine.State(ctx, userID)
	if err != nil {
		return api.StateResponse{}, err
	}
	return api.FromSnapshot(snap), nil
}

func (b localBackend) Ledger(ctx context.Context, userID string, limit int) (api.LedgerResponse, error) {
	entries, err := b.Engine.Ledger(ctx, userID, limit)
	if err != nil {
		return api.LedgerResponse{}, err
	}
	return api.FromEntries(userID, entries), nil
}

func (b localBackend) Reconcile(ctx context.Context, userID string) (api.ReconcileResponse, error) {
	rec, err := b.Engine.Reconcile(ctx, userID)
	if err != nil {
		return api.ReconcileResponse{}, err
	}
	return api.FromReconciliation(rec), nil
}
