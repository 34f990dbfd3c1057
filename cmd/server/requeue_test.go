// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/caseledger/internal/alertstore"
	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/models"
)

func TestRequeueAlerts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := alertstore.NewMemoryStore()
	insert := func() string {
		id, err := store.InsertAlert(ctx, &models.Alert{
			FootageURL: "https://ipfs.io/ipfs/QmX", Location: "Gate 3",
			AnomalyDate: "2024-03-01", AnomalyTime: "09:00:00",
		})
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	stuck, live := insert(), insert()
	if err := store.MarkDeadLettered(ctx, stuck, "rejected 5 times"); err != nil {
		t.Fatal(err)
	}

	err := requeueAlerts(ctx, store, []string{stuck, live})
	if !errors.Is(err, alertstore.ErrNotDeadLettered) {
		t.Fatalf("err = %v, want ErrNotDeadLettered for the live alert", err)
	}

	a, err := store.GetAlert(ctx, stuck)
	if err != nil {
		t.Fatal(err)
	}
	if a.DeadLettered || a.SyncError != "" {
		t.Errorf("alert = %+v, want requeued", a)
	}
}

func TestRunRequeueNeedsIDs(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Store: config.StoreConfig{Mode: config.ModeMemory}}
	if err := runRequeue(cfg, nil); err == nil {
		t.Fatal("expected usage error")
	}
	if err := runRequeue(cfg, []string{"nope"}); !errors.Is(err, alertstore.ErrInvalidID) {
		t.Errorf("err = %v, want ErrInvalidID", err)
	}
}
