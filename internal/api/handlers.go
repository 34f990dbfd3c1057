// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package api serves the CaseLedger HTTP API: alert ingestion and browsing,
// ledger case reads and writes, mailing lists and broadcasts, IPFS upload,
// and sync loop status.
//
// Handler methods are split across files by area:
//   - handlers.go: Handler, Deps, constructor
//   - handlers_health.go: liveness and readiness
//   - handlers_alerts.go: alerts and dashboard stats
//   - handlers_cases.go: ledger cases
//   - handlers_recipients.go: residents, authorities, broadcasts
//   - handlers_upload.go: IPFS upload
//   - handlers_sync.go: sync loop status and manual trigger
package api

import (
	"context"
	"time"

	"github.com/tomtom215/caseledger/internal/alertstore"
	"github.com/tomtom215/caseledger/internal/casesync"
	"github.com/tomtom215/caseledger/internal/intent"
	"github.com/tomtom215/caseledger/internal/ipfs"
	"github.com/tomtom215/caseledger/internal/ledger"
	"github.com/tomtom215/caseledger/internal/models"
	"github.com/tomtom215/caseledger/internal/notify"
)

// SyncController is the part of casesync.Runner the API uses.
type SyncController interface {
	Status() casesync.Status
	Trigger(ctx context.Context) (casesync.Outcome, error)
}

// Broadcaster sends a notice to one audience.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind models.RecipientKind, n notify.Notice) (*notify.Report, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Deps are the components behind the handlers. Broadcaster, Pinner and
// Sync may be nil; their endpoints then answer NOT_CONFIGURED.
type Deps struct {
	Alerts      alertstore.Repository
	Recipients  alertstore.Directory
	Ledger      ledger.Client
	Intents     intent.Log
	Sync        SyncController
	Broadcaster Broadcaster
	Pinner      ipfs.Pinner
	Checks      map[string]ReadinessCheck
}

// Options are request limits.
type Options struct {
	// MaxUploadBytes caps multipart bodies (uploads and mail attachments).
	MaxUploadBytes int64
	// ConfirmTimeout bounds how long a ledger write waits for its receipt.
	ConfirmTimeout time.Duration
}

const (
	defaultMaxUploadBytes = 50 << 20
	defaultConfirmTimeout = 2 * time.Minute
	maxJSONBytes          = 1 << 20
)

// Handler holds the dependencies of every endpoint.
type Handler struct {
	deps      Deps
	opts      Options
	startTime time.Time
}

// NewHandler returns a handler over deps.
//
//	h := api.NewHandler(api.Deps{Alerts: store, Recipients: store, Ledger: client}, api.Options{})
//	srv := &http.Server{Handler: api.NewRouter(h, api.NewChiMiddleware(nil)).SetupChi()}
func NewHandler(deps Deps, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = defaultConfirmTimeout
	}
	return &Handler{deps: deps, opts: opts, startTime: time.Now()}
}
