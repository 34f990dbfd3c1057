// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/caseledger/internal/alertstore"
	"github.com/tomtom215/caseledger/internal/api"
	"github.com/tomtom215/caseledger/internal/casesync"
	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/intent"
	"github.com/tomtom215/caseledger/internal/ipfs"
	"github.com/tomtom215/caseledger/internal/ledger"
	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/notify"
)

// alertBackend is what both store implementations provide.
type alertBackend interface {
	alertstore.Store
	alertstore.Repository
	alertstore.Directory
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// app holds the components main wires into the supervisor tree.
type app struct {
	store     alertBackend
	ledger    ledger.Client
	eth       *ledger.EthClient // nil in memory mode
	intents   *intent.BadgerLog
	compactor *intent.Compactor
	runner    *casesync.Runner // nil when sync is disabled
	mail      *notify.Broadcaster
	pinner    ipfs.Pinner
	checks    map[string]api.ReadinessCheck
}

func build(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{checks: make(map[string]api.ReadinessCheck)}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if err := a.openStore(ctx, &cfg.Store); err != nil {
		return nil, err
	}
	if err := a.openLedger(ctx, cfg); err != nil {
		return nil, err
	}

	a.intents, err = intent.Open(&cfg.Intent)
	if err != nil {
		return nil, fmt.Errorf("open intent log: %w", err)
	}
	a.compactor = intent.NewCompactor(a.intents, cfg.Intent.GCInterval)
	logging.Info().Str("path", cfg.Intent.Path).Interface("stats", a.intents.Stats()).Msg("Intent log opened")

	if cfg.Sync.Enabled {
		syncer := casesync.NewSyncer(a.store, a.ledger, a.intents, casesync.Options{
			MaxAttempts:    cfg.Sync.MaxAttempts,
			ConfirmTimeout: cfg.Ledger.ConfirmTimeout,
		})
		a.runner = casesync.NewRunner(syncer, cfg.Sync.Interval, nil)
	} else {
		logging.Warn().Msg("Case sync loop disabled (SYNC_ENABLED=false)")
	}

	if err := a.openMail(&cfg.Mail); err != nil {
		return nil, err
	}
	if err := a.openIPFS(&cfg.IPFS, &cfg.Breaker); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg *config.StoreConfig) error {
	switch cfg.Mode {
	case config.ModeMemory:
		a.store = alertstore.NewMemoryStore()
		logging.Warn().Msg("Using in-memory alert store; alerts are lost on restart")
	default:
		store, err := alertstore.NewMongoStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect alert store: %w", err)
		}
		a.store = store
		logging.Info().
			Str("uri", logging.RedactURI(cfg.URI)).
			Str("database", cfg.Database).
			Msg("Alert store connected")
	}
	a.checks["store"] = a.store.Ping
	return nil
}

func (a *app) openLedger(ctx context.Context, cfg *config.Config) error {
	if cfg.Ledger.Mode == config.ModeMemory {
		a.ledger = ledger.NewMemoryClient()
		logging.Warn().Msg("Using in-memory ledger; cases are lost on restart")
		return nil
	}

	eth, err := ledger.NewEthClient(ctx, &cfg.Ledger)
	if err != nil {
		return fmt.Errorf("connect ledger: %w", err)
	}
	a.eth = eth
	a.ledger = ledger.NewBreakerClient(eth, &cfg.Breaker)
	a.checks["ledger"] = eth.Ping
	logging.Info().
		Str("rpc", logging.RedactURI(cfg.Ledger.RPCURL)).
		Str("contract", cfg.Ledger.ContractAddress).
		Str("from", eth.From()).
		Msg("Ledger client connected")
	return nil
}

func (a *app) openMail(cfg *config.MailConfig) error {
	if !cfg.Enabled {
		logging.Info().Msg("Mail disabled (SMTP_ENABLED=false)")
		return nil
	}
	tmpl, err := notify.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		return fmt.Errorf("load mail template: %w", err)
	}
	sender := cfg.FromName
	if sender == "" {
		sender = cfg.From
	}
	a.mail = notify.NewBroadcaster(a.store, notify.NewSMTPMailer(cfg), tmpl, cfg.SendRate, sender)
	logging.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("Mail broadcaster ready")
	return nil
}

func (a *app) openIPFS(cfg *config.IPFSConfig, bcfg *config.BreakerConfig) error {
	if !cfg.Enabled {
		logging.Info().Msg("IPFS upload disabled (IPFS_ENABLED=false)")
		return nil
	}
	client, err := ipfs.NewPinataClient(cfg, bcfg)
	if err != nil {
		return fmt.Errorf("create pinata client: %w", err)
	}
	a.pinner = client
	logging.Info().Str("api", cfg.APIURL).Msg("IPFS pinning ready")
	return nil
}

// deps hands the components to the API. Typed nils must not leak into
// the interfaces, or the handlers would not see them as absent.
func (a *app) deps() api.Deps {
	d := api.Deps{
		Alerts:     a.store,
		Recipients: a.store,
		Ledger:     a.ledger,
		Intents:    a.intents,
		Pinner:     a.pinner,
		Checks:     a.checks,
	}
	if a.runner != nil {
		d.Sync = a.runner
	}
	if a.mail != nil {
		d.Broadcaster = a.mail
	}
	return d
}

func (a *app) close() {
	if a.intents != nil {
		if err := a.intents.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing intent log")
		}
	}
	if a.eth != nil {
		a.eth.Close()
	}
	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.Close(ctx); err != nil {
			logging.Error().Err(err).Msg("Error closing alert store")
		}
	}
}
