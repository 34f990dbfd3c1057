// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package casesync turns detector alerts into ledger cases.
//
// One cycle takes the newest unprocessed alert, submits createCase with the
// footage fingerprint, waits for the receipt and then flags the alert as
// processed. The intent log records the transaction between submission and
// the store update so a cycle interrupted at any point resumes without
// creating a second case.
package casesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/caseledger/internal/alertstore"
	"github.com/tomtom215/caseledger/internal/fingerprint"
	"github.com/tomtom215/caseledger/internal/intent"
	"github.com/tomtom215/caseledger/internal/ledger"
	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/metrics"
	"github.com/tomtom215/caseledger/internal/models"
)

// Outcome is the result of one cycle.
type Outcome string

const (
	// OutcomeIdle means no unprocessed alert was found.
	OutcomeIdle Outcome = "idle"
	// OutcomeCreated means a new case was confirmed and the alert marked.
	OutcomeCreated Outcome = "created"
	// OutcomeRecovered means an earlier submission was finished.
	OutcomeRecovered Outcome = "recovered"
	// OutcomeFailed means the cycle stopped early; the alert stays eligible.
	OutcomeFailed Outcome = "failed"
	// OutcomeDeadLettered means the alert was taken out of selection.
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// Options tunes a Syncer.
type Options struct {
	// MaxAttempts dead-letters an alert once the contract has refused it
	// this many times, by reverting or by failing simulation at submit.
	// Transport errors, timeouts and dropped transactions never count;
	// the alert is retried every cycle until the ledger is back. Zero
	// retries rejections forever too.
	MaxAttempts int

	// ConfirmTimeout bounds each wait for a receipt.
	ConfirmTimeout time.Duration
}

// Syncer runs single cycles. It holds no lock; callers serialize cycles
// (Runner does).
type Syncer struct {
	store   alertstore.Store
	ledger  ledger.Client
	intents intent.Log
	opts    Options
}

// NewSyncer wires a Syncer. A zero ConfirmTimeout defaults to two minutes.
func NewSyncer(store alertstore.Store, client ledger.Client, intents intent.Log, opts Options) *Syncer {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 2 * time.Minute
	}
	return &Syncer{store: store, ledger: client, intents: intents, opts: opts}
}

// RunCycle processes at most one alert. A non-nil error always comes with
// OutcomeFailed.
func (s *Syncer) RunCycle(ctx context.Context) (Outcome, error) {
	alert, err := s.store.FindNewestUnprocessed(ctx)
	if err != nil {
		metrics.RecordSyncError("find")
		return OutcomeFailed, fmt.Errorf("find unprocessed alert: %w", err)
	}
	if alert == nil {
		return OutcomeIdle, nil
	}

	log := logging.Ctx(ctx).With().Str("alert_id", alert.ID).Logger()
	ctx = logging.ContextWithLogger(ctx, log)

	if err := alert.Validate(); err != nil {
		// Retrying cannot fill in missing fields.
		return s.deadLetter(ctx, &log, alert, err.Error())
	}

	fp := fingerprint.Digest(alert.FootageURL)

	rec, err := s.intents.Get(ctx, alert.ID)
	switch {
	case errors.Is(err, intent.ErrRecordNotFound):
		rec = nil
	case err != nil:
		metrics.RecordSyncError("intent")
		return OutcomeFailed, fmt.Errorf("read intent: %w", err)
	}

	if rec != nil {
		switch {
		case rec.State == intent.StateConfirmed:
			log.Info().Str("tx_hash", rec.TxHash).Msg("Case already confirmed, marking alert")
			return s.finish(ctx, &log, alert, OutcomeRecovered)
		case rec.State == intent.StateSubmitted && rec.TxHash != "":
			log.Info().Str("tx_hash", rec.TxHash).Int("attempts", rec.Attempts).Msg("Resuming wait on submitted case")
			return s.await(ctx, &log, alert, fp, ledger.TxHandle{Hash: rec.TxHash}, OutcomeRecovered)
		}
	}

	return s.submit(ctx, &log, alert, fp)
}

func (s *Syncer) submit(ctx context.Context, log *zerolog.Logger, alert *models.Alert, fp string) (Outcome, error) {
	dateTime := alert.DateTime()
	tx, err := s.ledger.CreateCase(ctx, alert.Location, fp, dateTime)
	if err != nil {
		metrics.RecordSyncError("submit")
		if errors.Is(err, ledger.ErrUnavailable) || ctx.Err() != nil {
			return OutcomeFailed, fmt.Errorf("submit case: %w", err)
		}
		return s.fail(ctx, log, alert, "submit", err, intent.Failure{Fingerprint: fp})
	}

	log.Info().
		Str("tx_hash", tx.Hash).
		Str("location", alert.Location).
		Str("fingerprint", fp).
		Str("date_time", dateTime).
		Msg("Case submitted")

	if err := s.intents.RecordSubmitted(ctx, alert.ID, fp, tx.Hash); err != nil {
		// The transaction is already in flight; waiting on it is still
		// the best move.
		metrics.RecordSyncError("intent")
		log.Error().Err(err).Str("tx_hash", tx.Hash).Msg("Failed to record submitted case")
	}

	return s.await(ctx, log, alert, fp, tx, OutcomeCreated)
}

func (s *Syncer) await(ctx context.Context, log *zerolog.Logger, alert *models.Alert, fp string, tx ledger.TxHandle, success Outcome) (Outcome, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.ConfirmTimeout)
	defer cancel()

	rcpt, err := s.ledger.AwaitConfirmation(waitCtx, tx)
	if err != nil {
		metrics.RecordSyncError("confirm")
		// A revert or a dropped transaction frees the alert for a fresh
		// submission. Anything else may still be mined, so the hash is
		// kept, even if RecordSubmitted never landed.
		keep := !errors.Is(err, ledger.ErrTxFailed) && !errors.Is(err, ledger.ErrTxDropped)
		return s.fail(ctx, log, alert, "confirm", fmt.Errorf("tx %s: %w", tx.Hash, err), intent.Failure{
			Fingerprint: fp,
			TxHash:      tx.Hash,
			KeepTx:      keep,
		})
	}

	if err := s.intents.RecordConfirmed(ctx, alert.ID, rcpt.BlockNumber); err != nil {
		metrics.RecordSyncError("intent")
		log.Error().Err(err).Str("tx_hash", tx.Hash).Msg("Failed to record confirmed case")
	}

	log.Info().
		Str("tx_hash", rcpt.TxHash).
		Uint64("block", rcpt.BlockNumber).
		Msg("Case confirmed")

	return s.finish(ctx, log, alert, success)
}

func (s *Syncer) finish(ctx context.Context, log *zerolog.Logger, alert *models.Alert, outcome Outcome) (Outcome, error) {
	if err := s.store.MarkProcessed(ctx, alert.ID); err != nil {
		metrics.RecordSyncError("mark")
		return OutcomeFailed, fmt.Errorf("mark alert processed: %w", err)
	}

	if err := s.intents.Resolve(ctx, alert.ID, intent.StateCompleted); err != nil {
		metrics.RecordSyncError("intent")
		log.Warn().Err(err).Msg("Failed to resolve intent record")
	}

	log.Info().Str("outcome", string(outcome)).Msg("Alert processed")
	return outcome, nil
}

func (s *Syncer) fail(ctx context.Context, log *zerolog.Logger, alert *models.Alert, stage string, cause error, f intent.Failure) (Outcome, error) {
	f.Reason = cause.Error()
	f.Permanent = ledger.Permanent(cause)

	rec, err := s.intents.RecordFailure(ctx, alert.ID, f)
	if err != nil {
		metrics.RecordSyncError("intent")
		log.Error().Err(err).Str("tx_hash", f.TxHash).Msg("Failed to record attempt")
		return OutcomeFailed, fmt.Errorf("%s: %w", stage, cause)
	}

	log.Warn().
		Err(cause).
		Str("stage", stage).
		Bool("rejected", f.Permanent).
		Int("attempt", rec.Attempts).
		Int("rejections", rec.Rejections).
		Int("max_attempts", s.opts.MaxAttempts).
		Msg("Case attempt failed")

	if f.Permanent && s.opts.MaxAttempts > 0 && rec.Rejections >= s.opts.MaxAttempts {
		reason := fmt.Sprintf("%s rejected %d times: %v", stage, rec.Rejections, cause)
		return s.deadLetter(ctx, log, alert, reason)
	}
	return OutcomeFailed, fmt.Errorf("%s: %w", stage, cause)
}

func (s *Syncer) deadLetter(ctx context.Context, log *zerolog.Logger, alert *models.Alert, reason string) (Outcome, error) {
	if err := s.store.MarkDeadLettered(ctx, alert.ID, reason); err != nil {
		metrics.RecordSyncError("dead_letter")
		return OutcomeFailed, fmt.Errorf("dead-letter alert: %w", err)
	}
	if err := s.intents.Resolve(ctx, alert.ID, intent.StateDeadLettered); err != nil {
		metrics.RecordSyncError("intent")
		log.Warn().Err(err).Msg("Failed to resolve intent record")
	}

	log.Error().Str("reason", reason).Msg("Alert dead-lettered")
	return OutcomeDeadLettered, nil
}
