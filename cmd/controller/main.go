package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/danielpatrickdp/progression-engine/internal/app"
	"github.com/danielpatrickdp/progression-engine/internal/config"
	"github.com/danielpatrickdp/progression-engine/internal/logging"
)

var version = "dev"

// #region main
func main() {
	cfg, err := config.Load(os.Getenv("PROGRESSION_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("progression controller starting", "version", version, "db", cfg.DBPath,
		"grpc", cfg.GRPCAddr, "http", cfg.HTTPAddr)
	if err := app.Serve(ctx, cfg, logger, version); err != nil {
		logger.Error("controller stopped", "err", err)
		os.Exit(1)
	}
}

// #endregion main
