// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

//go:build integration

package alertstore

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/models"
	"github.com/tomtom215/caseledger/internal/testinfra"
)

func newIntegrationStore(t *testing.T) *MongoStore {
	t.Helper()
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	container, err := testinfra.NewMongoContainer(ctx)
	if err != nil {
		t.Fatalf("start mongo: %v", err)
	}
	t.Cleanup(func() { testinfra.CleanupContainer(t, ctx, container) })

	store, err := NewMongoStore(ctx, &config.StoreConfig{
		URI:                   container.URI,
		Database:              "cctv_test",
		AlertsCollection:      "alerts",
		ResidentsCollection:   "residents",
		AuthoritiesCollection: "authorities",
		ConnectTimeout:        20 * time.Second,
		OperationTimeout:      10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewMongoStore: %v", err)
	}
	t.Cleanup(func() { store.Close(context.Background()) }) //nolint:errcheck
	return store
}

func TestMongoStoreDetectorDocuments(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	// Documents shaped exactly like the detector inserts them: string flag,
	// no createdAt.
	for _, footage := range []string{"first.mp4", "second.mp4"} {
		_, err := store.alerts.InsertOne(ctx, bson.M{
			"alert":           true,
			"footageUrl":      footage,
			"location":        "Gate 3",
			"anomalyDate":     "2024-03-01",
			"anomalyTime":     "09:00:00",
			"coordinates":     "12.97,77.59",
			"createdContract": "false",
		})
		if err != nil {
			t.Fatal(err)
		}
		time.Sleep(1100 * time.Millisecond) // distinct ObjectID seconds
	}

	got, err := store.FindNewestUnprocessed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.FootageURL != "second.mp4" {
		t.Fatalf("got %+v, want second.mp4", got)
	}

	if err := store.MarkProcessed(ctx, got.ID); err != nil {
		t.Fatal(err)
	}
	next, err := store.FindNewestUnprocessed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || next.FootageURL != "first.mp4" {
		t.Fatalf("got %+v, want first.mp4", next)
	}

	if err := store.MarkDeadLettered(ctx, next.ID, "gave up"); err != nil {
		t.Fatal(err)
	}
	none, err := store.FindNewestUnprocessed(ctx)
	if err != nil || none != nil {
		t.Fatalf("got %v, %v; want nil, nil", none, err)
	}

	counts, err := store.CountAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Total != 2 || counts.Processed != 1 || counts.DeadLettered != 1 || counts.Pending != 0 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestMongoStoreOrdersMixedDocuments(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	// API insert with createdAt an hour back, then a detector insert now.
	apiID, err := store.InsertAlert(ctx, &models.Alert{
		FootageURL:  "api.mp4",
		Location:    "Lobby",
		AnomalyDate: "2024-03-01",
		AnomalyTime: "08:00:00",
		CreatedAt:   time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.alerts.InsertOne(ctx, bson.M{
		"alert":           true,
		"footageUrl":      "detector.mp4",
		"location":        "Gate 3",
		"anomalyDate":     "2024-03-01",
		"anomalyTime":     "09:00:00",
		"createdContract": "false",
	}); err != nil {
		t.Fatal(err)
	}

	got, err := store.FindNewestUnprocessed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.FootageURL != "detector.mp4" {
		t.Fatalf("got %+v, want the newer detector document", got)
	}

	list, err := store.ListAlerts(ctx, models.AlertFilter{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].FootageURL != "detector.mp4" || list[1].ID != apiID {
		t.Fatalf("ListAlerts order = %+v", list)
	}

	page, err := store.ListAlerts(ctx, models.AlertFilter{Limit: 1, Offset: 1})
	if err != nil || len(page) != 1 || page[0].ID != apiID {
		t.Fatalf("second page = %+v, %v", page, err)
	}
}

func TestMongoStoreRequeueAlert(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	id, err := store.InsertAlert(ctx, &models.Alert{
		FootageURL:  "stuck.mp4",
		Location:    "Lobby",
		AnomalyDate: "2024-03-01",
		AnomalyTime: "10:00:00",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.RequeueAlert(ctx, id); err != ErrNotDeadLettered {
		t.Fatalf("requeue of a live alert = %v", err)
	}
	if err := store.MarkDeadLettered(ctx, id, "rejected 5 times"); err != nil {
		t.Fatal(err)
	}
	if err := store.RequeueAlert(ctx, id); err != nil {
		t.Fatalf("RequeueAlert: %v", err)
	}

	got, err := store.FindNewestUnprocessed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != id || got.DeadLettered || got.SyncError != "" {
		t.Fatalf("got %+v, want the requeued alert", got)
	}
	if err := store.RequeueAlert(ctx, "65f1a0c2e4b0a1b2c3d4e5f6"); err != ErrNotFound {
		t.Errorf("requeue of unknown id = %v", err)
	}
}

func TestMongoStoreCRUDAndRecipients(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	id, err := store.InsertAlert(ctx, &models.Alert{
		FootageURL:  "https://ipfs.io/ipfs/QmX",
		Location:    "Lobby",
		AnomalyDate: "2024-03-01",
		AnomalyTime: "10:00:00",
	})
	if err != nil {
		t.Fatal(err)
	}

	a, err := store.GetAlert(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if a.Location != "Lobby" || a.CreatedContract {
		t.Errorf("GetAlert = %+v", a)
	}

	list, err := store.ListAlerts(ctx, models.AlertFilter{Limit: 10})
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAlerts = %v, %v", list, err)
	}

	if err := store.DeleteAlert(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetAlert(ctx, id); err != ErrNotFound {
		t.Errorf("GetAlert after delete = %v", err)
	}

	if _, err := store.AddRecipient(ctx, &models.Recipient{
		Kind: models.KindAuthority, Name: "Precinct 9", Email: "p9@police.example", Locality: "North",
	}); err != nil {
		t.Fatal(err)
	}
	auths, err := store.ListRecipients(ctx, models.KindAuthority)
	if err != nil || len(auths) != 1 || auths[0].Email != "p9@police.example" {
		t.Fatalf("ListRecipients = %v, %v", auths, err)
	}
}
