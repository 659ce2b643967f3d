// Package app wires storage, the engine and both transports into a
// running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielpatrickdp/progression-engine/internal/config"
	"github.com/danielpatrickdp/progression-engine/internal/ledger"
	"github.com/danielpatrickdp/progression-engine/internal/orchestrator"
	"github.com/danielpatrickdp/progression-engine/internal/rpc"
	"github.com/danielpatrickdp/progression-engine/internal/server"
	"github.com/danielpatrickdp/progression-engine/internal/state"
	"github.com/danielpatrickdp/progression-engine/internal/telemetry"
)

// ServiceName identifies the process in traces.
const ServiceName = "progression-engine"

const shutdownTimeout = 10 * time.Second

// #region open

// Local is an engine over a local SQLite database.
type Local struct {
	Store  *state.Store
	Engine *orchestrator.Engine
}

// Open opens cfg.DBPath and builds an engine over it.
func Open(cfg config.Config, logger *slog.Logger, opts ...orchestrator.Option) (*Local, error) {
	engCfg, err := cfg.Orchestrator()
	if err != nil {
		return nil, err
	}
	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	opts = append([]orchestrator.Option{orchestrator.WithLogger(logger)}, opts...)
	return &Local{
		Store:  store,
		Engine: orchestrator.New(store, ledger.New(store.DB()), engCfg, opts...),
	}, nil
}

// Close closes the database.
func (l *Local) Close() error {
	return l.Store.Close()
}

// #endregion open

// #region serve

// Serve runs the gRPC and HTTP servers until ctx is cancelled or either
// server fails, then shuts both down.
func Serve(ctx context.Context, cfg config.Config, logger *slog.Logger, version string) error {
	shutdownTracing, err := telemetry.Setup(ctx, ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", "err", err)
		}
	}()

	local, err := Open(cfg, logger)
	if err != nil {
		return err
	}
	defer local.Close()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	grpcSrv := rpc.NewGRPCServer(rpc.NewServer(local.Engine, logger), logger, telemetry.ServerOption())

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(local.Engine, local.Store.DB(), version, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("server failed", "err", runErr)
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	grpcSrv.GracefulStop()
	return runErr
}

// #endregion serve
