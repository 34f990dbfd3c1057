// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/caseledger/internal/casesync"
)

type countingCycles struct {
	n atomic.Int32
}

func (c *countingCycles) RunCycle(context.Context) (casesync.Outcome, error) {
	c.n.Add(1)
	return casesync.OutcomeIdle, nil
}

type loopFunc func(ctx context.Context) error

func (f loopFunc) Run(ctx context.Context) error { return f(ctx) }

func TestCaseSyncServiceRunsLoop(t *testing.T) {
	t.Parallel()

	cycles := &countingCycles{}
	runner := casesync.NewRunner(cycles, 5*time.Millisecond, nil)
	svc := NewCaseSyncService(runner)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for cycles.n.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("loop did not cycle")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if svc.String() != "case-sync" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestCaseSyncServiceAlreadyRunning(t *testing.T) {
	t.Parallel()

	svc := NewCaseSyncService(loopFunc(func(context.Context) error { return casesync.ErrAlreadyRunning }))
	if err := svc.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve = %v, want ErrDoNotRestart", err)
	}
}

func TestCaseSyncServiceUnexpectedExit(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	svc := NewCaseSyncService(loopFunc(func(context.Context) error { return boom }))
	if err := svc.Serve(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Serve = %v", err)
	}
}
