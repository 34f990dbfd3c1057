// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package main runs the CaseLedger server.
//
// CaseLedger watches the alert collection written by CCTV anomaly
// detectors and opens one case on the case registry contract for every
// alert, then marks the alert processed. It also serves the dashboard API:
// alerts, cases, mailing lists and broadcasts, and IPFS upload.
//
// # Startup order
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. Logging
//  3. Alert store (MongoDB, or in-memory for development)
//  4. Ledger client (Ethereum JSON-RPC behind a circuit breaker, or in-memory)
//  5. Intent log (BadgerDB)
//  6. Sync loop, mail and IPFS clients, HTTP API
//  7. Supervisor tree
//
// SIGINT or SIGTERM cancels the root context; the tree stops every service
// and the stores are closed on the way out.
//
// # Example
//
//	export MONGODB_URI=mongodb://localhost:27017
//	export LEDGER_RPC_URL=http://localhost:8545
//	export LEDGER_CONTRACT_ADDRESS=0x...
//	export LEDGER_PRIVATE_KEY=...
//	./caseledger
//
// Everything in memory, no external services:
//
//	STORE_MODE=memory LEDGER_MODE=memory ./caseledger
//
// Put dead-lettered alerts back in front of the sync loop:
//
//	./caseledger requeue 65f1a0c2e4b0a1b2c3d4e5f6
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/caseledger/internal/api"
	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/metrics"
	"github.com/tomtom215/caseledger/internal/supervisor"
	"github.com/tomtom215/caseledger/internal/supervisor/services"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if len(os.Args) > 1 && os.Args[1] == "requeue" {
		if err := runRequeue(cfg, os.Args[2:]); err != nil {
			logging.Fatal().Err(err).Msg("Requeue failed")
		}
		return
	}

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	logging.Info().
		Str("version", version).
		Str("store_mode", cfg.Store.Mode).
		Str("ledger_mode", cfg.Ledger.Mode).
		Bool("sync_enabled", cfg.Sync.Enabled).
		Msg("Starting CaseLedger")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := build(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer app.close()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(app.compactor)
	if app.runner != nil {
		tree.AddSyncService(services.NewCaseSyncService(app.runner))
		logging.Info().Dur("interval", cfg.Sync.Interval).Msg("Case sync loop added to supervisor tree")
	}

	handler := api.NewHandler(app.deps(), api.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ConfirmTimeout: cfg.Ledger.ConfirmTimeout,
	})
	router := api.NewRouter(handler, api.NewChiMiddlewareFromSecurity(&cfg.Security))
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// Ledger writes answer only after confirmation.
		WriteTimeout: cfg.Server.Timeout + cfg.Ledger.ConfirmTimeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}
	logging.Info().Msg("CaseLedger stopped")
}
