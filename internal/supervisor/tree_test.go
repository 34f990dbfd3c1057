// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/caseledger/internal/config"
)

// mockService runs until canceled, optionally failing its first starts.
type mockService struct {
	name     string
	starts   atomic.Int32
	failures int32
}

func (m *mockService) Serve(ctx context.Context) error {
	if n := m.starts.Add(1); n <= m.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) String() string { return m.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForStarts(t *testing.T, svc *mockService, n int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for svc.starts.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("%s started %d times, want %d", svc.name, svc.starts.Load(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewSupervisorTreeDefaults(t *testing.T) {
	t.Parallel()

	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if tree.Root() == nil {
		t.Fatal("nil root")
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults", tree.config)
	}
}

func TestTreeConfigFrom(t *testing.T) {
	t.Parallel()

	got := TreeConfigFrom(&config.SupervisorConfig{
		FailureThreshold: 3,
		FailureDecay:     10,
		FailureBackoff:   time.Second,
		ShutdownTimeout:  5 * time.Second,
	})
	want := TreeConfig{FailureThreshold: 3, FailureDecay: 10, FailureBackoff: time.Second, ShutdownTimeout: 5 * time.Second}
	if got != want {
		t.Errorf("TreeConfigFrom = %+v, want %+v", got, want)
	}
}

func TestSupervisorTreeRunsEveryLayer(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	data := &mockService{name: "intent-compactor"}
	syncSvc := &mockService{name: "case-sync"}
	api := &mockService{name: "http-server"}
	tree.AddDataService(data)
	tree.AddSyncService(syncSvc)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for _, svc := range []*mockService{data, syncSvc, api} {
		waitForStarts(t, svc, 1)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("tree stopped with %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestSupervisorTreeRestartsFailedSyncService(t *testing.T) {
	t.Parallel()

	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	flaky := &mockService{name: "case-sync", failures: 2}
	api := &mockService{name: "http-server"}
	tree.AddSyncService(flaky)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitForStarts(t, flaky, 3)
	waitForStarts(t, api, 1)
	if api.starts.Load() != 1 {
		t.Errorf("api restarted %d times; failures must stay in the sync layer", api.starts.Load()-1)
	}
}
