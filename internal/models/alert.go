// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package models holds the domain types shared by the store, the ledger
// client, the sync loop and the HTTP API.
package models

import (
	"errors"
	"strings"
	"time"
)

// Alert is one anomaly detection written by a camera detector.
//
// Field names on the wire match the detector's documents (camelCase) so the
// same JSON can be posted to the ingestion endpoint.
type Alert struct {
	ID          string `json:"id"`
	FootageURL  string `json:"footageUrl"`
	Location    string `json:"location"`
	AnomalyDate string `json:"anomalyDate"`
	AnomalyTime string `json:"anomalyTime"`
	Coordinates string `json:"coordinates,omitempty"` // "lat,lng"

	// CreatedContract is true once a confirmed ledger case exists.
	CreatedContract bool `json:"createdContract"`

	// DeadLettered alerts were rejected by the contract too often and are no
	// longer selected until requeued.
	DeadLettered bool   `json:"deadLettered,omitempty"`
	SyncError    string `json:"syncError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// ErrIncompleteAlert is returned by Validate for alerts missing case fields.
var ErrIncompleteAlert = errors.New("alert is missing required fields")

// DateTime is the case timestamp: "<anomalyDate> <anomalyTime>".
func (a *Alert) DateTime() string {
	return a.AnomalyDate + " " + a.AnomalyTime
}

// Validate reports fields the case cannot be created without.
func (a *Alert) Validate() error {
	var missing []string
	if strings.TrimSpace(a.FootageURL) == "" {
		missing = append(missing, "footageUrl")
	}
	if strings.TrimSpace(a.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(a.AnomalyDate) == "" {
		missing = append(missing, "anomalyDate")
	}
	if strings.TrimSpace(a.AnomalyTime) == "" {
		missing = append(missing, "anomalyTime")
	}
	if len(missing) > 0 {
		return &IncompleteAlertError{Missing: missing}
	}
	return nil
}

// IncompleteAlertError lists the missing fields. It matches
// ErrIncompleteAlert with errors.Is.
type IncompleteAlertError struct {
	Missing []string
}

func (e *IncompleteAlertError) Error() string {
	return "alert is missing " + strings.Join(e.Missing, ", ")
}

func (e *IncompleteAlertError) Is(target error) bool {
	return target == ErrIncompleteAlert
}

// AlertCounts summarises the alert collection for the dashboard.
type AlertCounts struct {
	Total        int64 `json:"total"`
	Processed    int64 `json:"processed"`
	Pending      int64 `json:"pending"`
	DeadLettered int64 `json:"dead_lettered"`
}

// AlertFilter narrows ListAlerts.
type AlertFilter struct {
	// Processed filters on CreatedContract when non-nil.
	Processed *bool
	Limit     int
	Offset    int
}
