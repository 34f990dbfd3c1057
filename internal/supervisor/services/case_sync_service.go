// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/caseledger/internal/casesync"
	"github.com/tomtom215/caseledger/internal/logging"
)

// Loop is satisfied by *casesync.Runner.
type Loop interface {
	Run(ctx context.Context) error
}

// CaseSyncService runs the alert-to-case loop under supervision.
type CaseSyncService struct {
	loop Loop
	name string
}

// NewCaseSyncService wraps loop.
func NewCaseSyncService(loop Loop) *CaseSyncService {
	return &CaseSyncService{loop: loop, name: "case-sync"}
}

// Serve implements suture.Service. Run only returns on cancellation or
// when another Run is active, which is a wiring bug and stops the service
// for good.
func (s *CaseSyncService) Serve(ctx context.Context) error {
	err := s.loop.Run(ctx)
	switch {
	case errors.Is(err, casesync.ErrAlreadyRunning):
		logging.Error().Err(err).Msg("Case sync loop started twice, not restarting")
		return suture.ErrDoNotRestart
	case err != nil && ctx.Err() == nil:
		return fmt.Errorf("case sync loop: %w", err)
	}
	return err
}

// String names the service in supervisor events.
func (s *CaseSyncService) String() string {
	return s.name
}
