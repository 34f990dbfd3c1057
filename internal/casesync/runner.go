// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package casesync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/metrics"
)

// ErrAlreadyRunning is returned by Run when the loop is already active.
var ErrAlreadyRunning = errors.New("casesync: runner is already running")

// CycleRunner runs one cycle. *Syncer implements it.
type CycleRunner interface {
	RunCycle(ctx context.Context) (Outcome, error)
}

// Status is a snapshot of the runner for the API.
type Status struct {
	Running       bool              `json:"running"`
	Interval      string            `json:"interval"`
	Cycles        int64             `json:"cycles"`
	Outcomes      map[Outcome]int64 `json:"outcomes"`
	LastCycleAt   *time.Time        `json:"last_cycle_at,omitempty"`
	LastDuration  string            `json:"last_duration,omitempty"`
	LastOutcome   Outcome           `json:"last_outcome,omitempty"`
	LastError     string            `json:"last_error,omitempty"`
	LastSuccessAt *time.Time        `json:"last_success_at,omitempty"`
}

// Runner repeats cycles with a fixed delay measured from the end of one
// cycle to the start of the next, so cycles never overlap.
type Runner struct {
	cycles   CycleRunner
	interval time.Duration
	clock    Clock

	// cycleMu serializes loop cycles and manual triggers.
	cycleMu sync.Mutex

	mu       sync.RWMutex
	running  bool
	count    int64
	outcomes map[Outcome]int64
	lastAt   time.Time
	lastDur  time.Duration
	lastOut  Outcome
	lastErr  error
	lastOK   time.Time
}

// NewRunner returns a runner. A nil clock means SystemClock.
func NewRunner(cycles CycleRunner, interval time.Duration, clock Clock) *Runner {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Runner{
		cycles:   cycles,
		interval: interval,
		clock:    clock,
		outcomes: make(map[Outcome]int64),
	}
}

// Run runs the first cycle immediately and then one cycle per interval
// until ctx is canceled. Cycle errors are logged and never stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	logging.Info().Dur("interval", r.interval).Msg("Case sync loop started")

	for {
		if err := ctx.Err(); err != nil {
			logging.Info().Msg("Case sync loop stopped")
			return err
		}

		r.Trigger(ctx) //nolint:errcheck // logged inside

		select {
		case <-ctx.Done():
			logging.Info().Msg("Case sync loop stopped")
			return ctx.Err()
		case <-r.clock.After(r.interval):
		}
	}
}

// Trigger runs one cycle now, waiting for any cycle in progress to finish
// first.
func (r *Runner) Trigger(ctx context.Context) (Outcome, error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	ctx = logging.ContextWithNewCorrelationID(ctx)
	start := r.clock.Now()

	outcome, err := r.safeCycle(ctx)
	duration := r.clock.Now().Sub(start)

	metrics.RecordSyncCycle(string(outcome), duration, err)
	r.record(start, duration, outcome, err)

	switch {
	case err != nil:
		logging.Ctx(ctx).Error().Err(err).Str("outcome", string(outcome)).Dur("duration", duration).Msg("Sync cycle failed")
	case outcome != OutcomeIdle:
		logging.Ctx(ctx).Info().Str("outcome", string(outcome)).Dur("duration", duration).Msg("Sync cycle finished")
	}
	return outcome, err
}

func (r *Runner) safeCycle(ctx context.Context) (outcome Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			logging.Ctx(ctx).Error().Str("stack", string(debug.Stack())).Msg("Sync cycle panicked")
			outcome, err = OutcomeFailed, fmt.Errorf("cycle panic: %v", p)
		}
	}()
	return r.cycles.RunCycle(ctx)
}

func (r *Runner) record(at time.Time, d time.Duration, outcome Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	r.outcomes[outcome]++
	r.lastAt = at
	r.lastDur = d
	r.lastOut = outcome
	r.lastErr = err
	if err == nil {
		r.lastOK = at
	}
}

// Status returns a snapshot of the loop.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Status{
		Running:     r.running,
		Interval:    r.interval.String(),
		Cycles:      r.count,
		Outcomes:    make(map[Outcome]int64, len(r.outcomes)),
		LastOutcome: r.lastOut,
	}
	for k, v := range r.outcomes {
		s.Outcomes[k] = v
	}
	if !r.lastAt.IsZero() {
		at := r.lastAt
		s.LastCycleAt = &at
		s.LastDuration = r.lastDur.String()
	}
	if r.lastErr != nil {
		s.LastError = r.lastErr.Error()
	}
	if !r.lastOK.IsZero() {
		ok := r.lastOK
		s.LastSuccessAt = &ok
	}
	return s
}
