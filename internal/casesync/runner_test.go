// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package casesync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// eventLog records the order of cycle and wait events.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// stepClock fires every After immediately and advances its own time.
type stepClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
	log   *eventLog
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	if c.log != nil {
		c.log.add("wait")
	}
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// blockingClock never fires.
type blockingClock struct{}

func (blockingClock) Now() time.Time                       { return time.Now() }
func (blockingClock) After(time.Duration) <-chan time.Time { return nil }

type scriptedCycles struct {
	mu       sync.Mutex
	log      *eventLog
	calls    int
	inFlight int
	maxSeen  int
	stopAt   int
	cancel   context.CancelFunc
	panicAt  int
	results  []Outcome
}

func (s *scriptedCycles) RunCycle(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.inFlight++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	s.mu.Unlock()

	s.log.add("start")
	defer func() {
		s.log.add("end")
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
		if call == s.stopAt {
			s.cancel()
		}
	}()

	if call == s.panicAt {
		panic("nil map write")
	}
	if call <= len(s.results) {
		if s.results[call-1] == OutcomeFailed {
			return OutcomeFailed, errors.New("ledger down")
		}
		return s.results[call-1], nil
	}
	return OutcomeIdle, nil
}

func TestRunnerSerializesCycles(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := &eventLog{}
	clock := &stepClock{log: log}
	cycles := &scriptedCycles{log: log, stopAt: 3, cancel: cancel}
	r := NewRunner(cycles, 5*time.Second, clock)

	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	got := strings.Join(log.snapshot(), ",")
	want := "start,end,wait,start,end,wait,start,end"
	if !strings.HasPrefix(got, want) {
		t.Errorf("events = %s, want prefix %s", got, want)
	}
	if cycles.maxSeen != 1 {
		t.Errorf("max concurrent cycles = %d, want 1", cycles.maxSeen)
	}
	for _, d := range clock.waits {
		if d != 5*time.Second {
			t.Errorf("wait = %v, want 5s", d)
		}
	}
	if r.Status().Running {
		t.Error("Running should be false after Run returns")
	}
}

func TestRunnerSurvivesFailuresAndPanics(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycles := &scriptedCycles{
		log:     &eventLog{},
		stopAt:  4,
		cancel:  cancel,
		panicAt: 2,
		results: []Outcome{OutcomeFailed, "", OutcomeCreated, OutcomeIdle},
	}
	r := NewRunner(cycles, time.Second, &stepClock{})

	r.Run(ctx) //nolint:errcheck

	st := r.Status()
	if st.Cycles != 4 {
		t.Fatalf("cycles = %d, want 4", st.Cycles)
	}
	if st.Outcomes[OutcomeFailed] != 2 || st.Outcomes[OutcomeCreated] != 1 || st.Outcomes[OutcomeIdle] != 1 {
		t.Errorf("outcomes = %v", st.Outcomes)
	}
	if st.LastOutcome != OutcomeIdle || st.LastError != "" || st.LastSuccessAt == nil {
		t.Errorf("status = %+v", st)
	}
}

func TestRunnerPanicIsReported(t *testing.T) {
	t.Parallel()

	cycles := &scriptedCycles{log: &eventLog{}, panicAt: 1}
	r := NewRunner(cycles, time.Second, &stepClock{})

	outcome, err := r.Trigger(context.Background())
	if outcome != OutcomeFailed || err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("Trigger = %s, %v", outcome, err)
	}
	if st := r.Status(); !strings.Contains(st.LastError, "nil map write") {
		t.Errorf("LastError = %q", st.LastError)
	}
}

func TestRunnerRejectsSecondRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(&scriptedCycles{log: &eventLog{}}, time.Hour, blockingClock{})

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !r.Status().Running {
		if time.Now().After(deadline) {
			t.Fatal("runner did not start")
		}
		time.Sleep(time.Millisecond)
	}

	if err := r.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestRunnerStopsBeforeFirstCycleWhenCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cycles := &scriptedCycles{log: &eventLog{}}
	r := NewRunner(cycles, time.Second, &stepClock{})
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if cycles.calls != 0 {
		t.Errorf("calls = %d, want 0", cycles.calls)
	}
}
