// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package alertstore reads and updates the alert documents produced by the
// camera detectors, and keeps the resident and authority mailing lists.
//
// Two implementations are provided: MongoStore for production and
// MemoryStore for tests and local runs without a database.
package alertstore

import (
	"context"
	"errors"

	"github.com/tomtom215/caseledger/internal/models"
)

var (
	// ErrNotFound is returned when no document matches an id.
	ErrNotFound = errors.New("alertstore: not found")

	// ErrInvalidID is returned for ids that are not 24-char hex ObjectIDs.
	ErrInvalidID = errors.New("alertstore: invalid id")

	// ErrNotDeadLettered is returned when requeueing an alert that was
	// never taken out of selection.
	ErrNotDeadLettered = errors.New("alertstore: alert is not dead-lettered")
)

// Store is what the sync loop needs.
type Store interface {
	// FindNewestUnprocessed returns the most recently created alert whose
	// case has not been created yet, or (nil, nil) when there is none.
	// Dead-lettered alerts are never returned.
	FindNewestUnprocessed(ctx context.Context) (*models.Alert, error)

	// MarkProcessed sets createdContract=true on the alert.
	MarkProcessed(ctx context.Context, id string) error

	// MarkDeadLettered takes the alert out of selection, keeping reason.
	MarkDeadLettered(ctx context.Context, id, reason string) error
}

// Repository is the alert CRUD surface used by the API.
type Repository interface {
	InsertAlert(ctx context.Context, alert *models.Alert) (string, error)
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error)
	DeleteAlert(ctx context.Context, id string) error
	CountAlerts(ctx context.Context) (models.AlertCounts, error)

	// RequeueAlert clears the dead-letter flag and reason so the sync
	// loop picks the alert up again.
	RequeueAlert(ctx context.Context, id string) error
}

// Directory holds the mailing lists.
type Directory interface {
	AddRecipient(ctx context.Context, r *models.Recipient) (string, error)
	ListRecipients(ctx context.Context, kind models.RecipientKind) ([]models.Recipient, error)
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
