// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/caseledger/internal/alertstore"
	"github.com/tomtom215/caseledger/internal/api"
	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/logging"
)

// runRequeue implements "caseledger requeue <alert-id>...". It opens only
// the alert store, so it can run next to a live server.
func runRequeue(cfg *config.Config, ids []string) error {
	if len(ids) == 0 {
		return errors.New("usage: caseledger requeue <alert-id>...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.ConnectTimeout+time.Minute)
	defer cancel()

	a := &app{checks: make(map[string]api.ReadinessCheck)}
	defer a.close()
	if err := a.openStore(ctx, &cfg.Store); err != nil {
		return err
	}
	return requeueAlerts(ctx, a.store, ids)
}

// requeueAlerts clears the dead-letter flag on every id and reports each
// one that could not be requeued.
func requeueAlerts(ctx context.Context, repo alertstore.Repository, ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := repo.RequeueAlert(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("requeue %s: %w", id, err))
			continue
		}
		logging.Info().Str("alert_id", id).Msg("Alert requeued")
	}
	return errors.Join(errs...)
}
