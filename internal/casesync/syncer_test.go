// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package casesync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/caseledger/internal/alertstore"
	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/fingerprint"
	"github.com/tomtom215/caseledger/internal/intent"
	"github.com/tomtom215/caseledger/internal/ledger"
	"github.com/tomtom215/caseledger/internal/models"
)

type fixture struct {
	store   *alertstore.MemoryStore
	ledger  *ledger.MemoryClient
	intents *intent.BadgerLog
	syncer  *Syncer
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	intents, err := intent.OpenInMemory(&config.IntentConfig{CompletedTTL: time.Hour})
	if err != nil {
		t.Fatalf("open intent log: %v", err)
	}
	t.Cleanup(func() { intents.Close() }) //nolint:errcheck

	if opts.ConfirmTimeout == 0 {
		opts.ConfirmTimeout = time.Second
	}
	f := &fixture{
		store:   alertstore.NewMemoryStore(),
		ledger:  ledger.NewMemoryClient(),
		intents: intents,
	}
	f.syncer = NewSyncer(f.store, f.ledger, f.intents, opts)
	return f
}

func (f *fixture) addAlert(t *testing.T, footage, location string, created time.Time) string {
	t.Helper()
	id, err := f.store.InsertAlert(context.Background(), &models.Alert{
		FootageURL:  footage,
		Location:    location,
		AnomalyDate: "2025-04-10",
		AnomalyTime: "10:15",
		CreatedAt:   created,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func (f *fixture) alert(t *testing.T, id string) *models.Alert {
	t.Helper()
	a, err := f.store.GetAlert(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func (f *fixture) cycle(t *testing.T, want Outcome) error {
	t.Helper()
	got, err := f.syncer.RunCycle(context.Background())
	if got != want {
		t.Fatalf("outcome = %s (err %v), want %s", got, err, want)
	}
	return err
}

func TestCycleCreatesCaseAndMarksAlert(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 5})
	id := f.addAlert(t, "f1.mp4", "Zone 7", time.Now())

	if err := f.cycle(t, OutcomeCreated); err != nil {
		t.Fatal(err)
	}

	created := f.ledger.CreatedCases()
	if len(created) != 1 {
		t.Fatalf("createCase calls = %d, want 1", len(created))
	}
	want := ledger.SubmittedCase{Location: "Zone 7", VideoHash: fingerprint.Digest("f1.mp4"), DateTime: "2025-04-10 10:15"}
	if created[0] != want {
		t.Errorf("createCase(%+v), want %+v", created[0], want)
	}
	if !f.alert(t, id).CreatedContract {
		t.Error("alert not marked processed")
	}

	// The alert is never resubmitted once marked.
	for i := 0; i < 3; i++ {
		f.cycle(t, OutcomeIdle) //nolint:errcheck
	}
	if n := f.ledger.Calls(ledger.MethodCreateCase); n != 1 {
		t.Errorf("createCase calls = %d, want 1", n)
	}

	if _, err := f.intents.Get(context.Background(), id); !errors.Is(err, intent.ErrRecordNotFound) {
		t.Errorf("intent record still open: %v", err)
	}
}

func TestCycleSelectsNewestAlert(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	base := time.Date(2025, 4, 10, 10, 0, 0, 0, time.UTC)
	older := f.addAlert(t, "a1.mp4", "Zone 1", base)
	newer := f.addAlert(t, "a2.mp4", "Zone 2", base.Add(10*time.Second))

	f.cycle(t, OutcomeCreated) //nolint:errcheck
	if !f.alert(t, newer).CreatedContract || f.alert(t, older).CreatedContract {
		t.Fatal("first cycle should take the newest alert")
	}

	f.cycle(t, OutcomeCreated) //nolint:errcheck
	if !f.alert(t, older).CreatedContract {
		t.Error("second cycle should take the remaining alert")
	}
	if cases := f.ledger.CreatedCases(); cases[0].Location != "Zone 2" || cases[1].Location != "Zone 1" {
		t.Errorf("order = %+v", cases)
	}
}

func TestCycleIdleOnEmptyStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	if err := f.cycle(t, OutcomeIdle); err != nil {
		t.Fatal(err)
	}
	if f.ledger.Calls(ledger.MethodCreateCase) != 0 || f.store.MarkCalls() != 0 {
		t.Error("idle cycle must not touch the ledger or the store")
	}
}

func TestCycleSubmitFailureLeavesAlertEligible(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 5})
	id := f.addAlert(t, "f1.mp4", "Zone 7", time.Now())
	f.ledger.Configure(func(m *ledger.MemoryClient) { m.SubmitErr = errors.New("dial tcp: connection refused") })

	if err := f.cycle(t, OutcomeFailed); err == nil {
		t.Fatal("expected error")
	}
	if f.alert(t, id).CreatedContract {
		t.Fatal("failed submission must not mark the alert")
	}

	f.ledger.Configure(func(m *ledger.MemoryClient) { m.SubmitErr = nil })
	f.cycle(t, OutcomeCreated) //nolint:errcheck
	if !f.alert(t, id).CreatedContract {
		t.Error("retry should mark the alert")
	}
}

func TestCycleStoreQueryFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	f.addAlert(t, "f1.mp4", "Zone 7", time.Now())
	f.store.FailFind = errors.New("connection reset")

	if err := f.cycle(t, OutcomeFailed); err == nil {
		t.Fatal("expected error")
	}
	if f.ledger.Calls(ledger.MethodCreateCase) != 0 {
		t.Error("no submission after a failed query")
	}
}

func TestCycleMarkFailureDoesNotDuplicateCase(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 5})
	id := f.addAlert(t, "f1.mp4", "Zone 7", time.Now())
	f.store.FailMark = errors.New("write concern timeout")

	f.cycle(t, OutcomeFailed) //nolint:errcheck
	rec, err := f.intents.Get(context.Background(), id)
	if err != nil || rec.State != intent.StateConfirmed {
		t.Fatalf("intent = %+v, %v; want confirmed", rec, err)
	}

	f.store.FailMark = nil
	f.cycle(t, OutcomeRecovered) //nolint:errcheck

	if n := f.ledger.Calls(ledger.MethodCreateCase); n != 1 {
		t.Errorf("createCase calls = %d, want 1", n)
	}
	if !f.alert(t, id).CreatedContract {
		t.Error("alert not marked after recovery")
	}
}

func TestCycleResumesPendingTransaction(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 5, ConfirmTimeout: 10 * time.Millisecond})
	id := f.addAlert(t, "f1.mp4", "Zone 7", time.Now())
	f.ledger.Configure(func(m *ledger.MemoryClient) { m.HoldConfirmations = true })

	f.cycle(t, OutcomeFailed) //nolint:errcheck
	rec, err := f.intents.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != intent.StateSubmitted || rec.TxHash == "" || rec.Attempts != 1 {
		t.Fatalf("intent = %+v", rec)
	}

	f.ledger.Configure(func(m *ledger.MemoryClient) { m.HoldConfirmations = false })
	f.cycle(t, OutcomeRecovered) //nolint:errcheck

	if n := f.ledger.Calls(ledger.MethodCreateCase); n != 1 {
		t.Errorf("createCase calls = %d, want 1 (no resubmission)", n)
	}
	if !f.alert(t, id).CreatedContract {
		t.Error("alert not marked")
	}
}

func TestCycleRevertAllowsResubmission(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 5})
	id := f.addAlert(t, "f1.mp4", "Zone 7", time.Now())
	f.ledger.Configure(func(m *ledger.MemoryClient) { m.RevertNext = 1 })

	err := f.cycle(t, OutcomeFailed)
	if !errors.Is(err, ledger.ErrTxFailed) {
		t.Fatalf("err = %v, want ErrTxFailed", err)
	}
	rec, _ := f.intents.Get(context.Background(), id)
	if rec == nil || rec.State != intent.StateFailed || rec.TxHash != "" {
		t.Fatalf("intent = %+v", rec)
	}

	f.cycle(t, OutcomeCreated) //nolint:errcheck
	total, _ := f.ledger.GetTotalCases(context.Background())
	if total != 1 || f.ledger.Calls(ledger.MethodCreateCase) != 2 {
		t.Errorf("total = %d, createCase calls = %d", total, f.ledger.Calls(ledger.MethodCreateCase))
	}
}

func TestCycleDeadLettersAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 3})
	stuck := f.addAlert(t, "stuck.mp4", "Zone 9", time.Now())
	older := f.addAlert(t, "older.mp4", "Zone 1", time.Now().Add(-time.Minute))
	f.ledger.Configure(func(m *ledger.MemoryClient) {
		m.SubmitErr = fmt.Errorf("%w: execution reverted: location required", ledger.ErrRejected)
	})

	f.cycle(t, OutcomeFailed)       //nolint:errcheck
	f.cycle(t, OutcomeFailed)       //nolint:errcheck
	f.cycle(t, OutcomeDeadLettered) //nolint:errcheck

	a := f.alert(t, stuck)
	if !a.DeadLettered || a.CreatedContract || a.SyncError == "" {
		t.Fatalf("alert = %+v", a)
	}

	// The dead-lettered alert no longer blocks the older one.
	f.ledger.Configure(func(m *ledger.MemoryClient) { m.SubmitErr = nil })
	f.cycle(t, OutcomeCreated) //nolint:errcheck
	if !f.alert(t, older).CreatedContract {
		t.Error("older alert should be processed next")
	}
	f.cycle(t, OutcomeIdle) //nolint:errcheck
}

func TestCycleRevertsCountTowardDeadLetter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 2})
	id := f.addAlert(t, "f1.mp4", "Zone 7", time.Now())
	f.ledger.Configure(func(m *ledger.MemoryClient) { m.RevertNext = 2 })

	f.cycle(t, OutcomeFailed)       //nolint:errcheck
	f.cycle(t, OutcomeDeadLettered) //nolint:errcheck

	if a := f.alert(t, id); !a.DeadLettered || a.CreatedContract {
		t.Errorf("alert = %+v", a)
	}
}

func TestCycleOutageLongerThanMaxAttemptsStillCreatesCase(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 5})
	id := f.addAlert(t, "f1.mp4", "Zone 7", time.Now())
	f.ledger.Configure(func(m *ledger.MemoryClient) { m.SubmitErr = errors.New("dial tcp: connection refused") })

	for i := 0; i < 12; i++ {
		if err := f.cycle(t, OutcomeFailed); err == nil {
			t.Fatalf("cycle %d: expected error", i)
		}
	}
	if a := f.alert(t, id); a.DeadLettered {
		t.Fatalf("transport errors dead-lettered the alert: %+v", a)
	}
	rec, err := f.intents.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Attempts != 12 || rec.Rejections != 0 {
		t.Errorf("intent = %+v, want 12 attempts and no rejections", rec)
	}

	f.ledger.Configure(func(m *ledger.MemoryClient) { m.SubmitErr = nil })
	f.cycle(t, OutcomeCreated) //nolint:errcheck
	if !f.alert(t, id).CreatedContract {
		t.Error("alert not recorded after the node came back")
	}
	if total, _ := f.ledger.GetTotalCases(context.Background()); total != 1 {
		t.Errorf("total cases = %d, want 1", total)
	}
}

func TestCycleConfirmationTimeoutsNeverDeadLetter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 2, ConfirmTimeout: 5 * time.Millisecond})
	id := f.addAlert(t, "f1.mp4", "Zone 7", time.Now())
	f.ledger.Configure(func(m *ledger.MemoryClient) { m.HoldConfirmations = true })

	for i := 0; i < 5; i++ {
		err := f.cycle(t, OutcomeFailed)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("cycle %d: err = %v, want DeadlineExceeded", i, err)
		}
	}
	if f.alert(t, id).DeadLettered {
		t.Fatal("a slow chain must not dead-letter the alert")
	}

	f.ledger.Configure(func(m *ledger.MemoryClient) { m.HoldConfirmations = false })
	f.cycle(t, OutcomeRecovered) //nolint:errcheck
	if n := f.ledger.Calls(ledger.MethodCreateCase); n != 1 {
		t.Errorf("createCase calls = %d, want 1", n)
	}
}

func TestCycleDroppedTransactionIsResubmitted(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 1})
	id := f.addAlert(t, "f1.mp4", "Zone 7", time.Now())
	f.ledger.Configure(func(m *ledger.MemoryClient) { m.DropNext = 1 })

	err := f.cycle(t, OutcomeFailed)
	if !errors.Is(err, ledger.ErrTxDropped) {
		t.Fatalf("err = %v, want ErrTxDropped", err)
	}
	rec, _ := f.intents.Get(context.Background(), id)
	if rec == nil || rec.State != intent.StateFailed || rec.TxHash != "" {
		t.Fatalf("intent = %+v, want failed without a hash", rec)
	}

	f.cycle(t, OutcomeCreated) //nolint:errcheck
	if n := f.ledger.Calls(ledger.MethodCreateCase); n != 2 {
		t.Errorf("createCase calls = %d, want 2", n)
	}
	if a := f.alert(t, id); !a.CreatedContract || a.DeadLettered {
		t.Errorf("alert = %+v", a)
	}
}

// lossyIntents drops RecordSubmitted writes.
type lossyIntents struct {
	intent.Log
}

func (lossyIntents) RecordSubmitted(context.Context, string, string, string) error {
	return errors.New("badger: write failed")
}

func TestCycleKeepsHashWhenSubmitRecordIsLost(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 5, ConfirmTimeout: 5 * time.Millisecond})
	id := f.addAlert(t, "f1.mp4", "Zone 7", time.Now())
	f.syncer = NewSyncer(f.store, f.ledger, lossyIntents{f.intents}, Options{MaxAttempts: 5, ConfirmTimeout: 5 * time.Millisecond})
	f.ledger.Configure(func(m *ledger.MemoryClient) { m.HoldConfirmations = true })

	f.cycle(t, OutcomeFailed) //nolint:errcheck
	rec, err := f.intents.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != intent.StateSubmitted || rec.TxHash == "" {
		t.Fatalf("intent = %+v, want the in-flight hash", rec)
	}

	f.ledger.Configure(func(m *ledger.MemoryClient) { m.HoldConfirmations = false })
	f.cycle(t, OutcomeRecovered) //nolint:errcheck
	if n := f.ledger.Calls(ledger.MethodCreateCase); n != 1 {
		t.Errorf("createCase calls = %d, want 1 (no duplicate case)", n)
	}
}

// unavailableLedger rejects submissions the way an open breaker does.
type unavailableLedger struct {
	*ledger.MemoryClient
}

func (unavailableLedger) CreateCase(context.Context, string, string, string) (ledger.TxHandle, error) {
	return ledger.TxHandle{}, ledger.ErrUnavailable
}

func TestCycleBreakerRejectionIsNotAnAttempt(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 1})
	id := f.addAlert(t, "f1.mp4", "Zone 7", time.Now())
	f.syncer = NewSyncer(f.store, unavailableLedger{f.ledger}, f.intents, Options{MaxAttempts: 1})

	for i := 0; i < 3; i++ {
		if err := f.cycle(t, OutcomeFailed); !errors.Is(err, ledger.ErrUnavailable) {
			t.Fatalf("err = %v, want ErrUnavailable", err)
		}
	}
	if f.alert(t, id).DeadLettered {
		t.Error("breaker rejections must not dead-letter")
	}
	if _, err := f.intents.Get(context.Background(), id); !errors.Is(err, intent.ErrRecordNotFound) {
		t.Errorf("intent = %v, want none", err)
	}
}

func TestCycleDeadLettersIncompleteAlert(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{MaxAttempts: 5})
	id, err := f.store.InsertAlert(context.Background(), &models.Alert{FootageURL: "f1.mp4", CreatedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	f.cycle(t, OutcomeDeadLettered) //nolint:errcheck
	if a := f.alert(t, id); !a.DeadLettered {
		t.Errorf("alert = %+v", a)
	}
	if f.ledger.Calls(ledger.MethodCreateCase) != 0 {
		t.Error("incomplete alert must not be submitted")
	}
}
