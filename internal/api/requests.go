// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// createAlertRequest is what a detector posts.
type createAlertRequest struct {
	FootageURL  string `json:"footageUrl" validate:"required,max=2048"`
	Location    string `json:"location" validate:"required,max=256"`
	AnomalyDate string `json:"anomalyDate" validate:"required,max=32"`
	AnomalyTime string `json:"anomalyTime" validate:"required,max=32"`
	Coordinates string `json:"coordinates" validate:"omitempty,coordinates"`
}

type listAlertsRequest struct {
	Limit  int `validate:"gte=0,lte=1000"`
	Offset int `validate:"gte=0"`
}

type addEvidenceRequest struct {
	MediaHash   string `json:"mediaHash" validate:"required,max=256"`
	Description string `json:"description" validate:"required,max=1024"`
	DateTime    string `json:"dateTime" validate:"omitempty,max=64"`
}

type addQueryRequest struct {
	Question string `json:"question" validate:"required,max=1024"`
	Answer   string `json:"answer" validate:"max=4096"`
}

type assignAuthorityRequest struct {
	Authority string `json:"authority" validate:"required,eth_addr"`
}

type addRecipientRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Locality string `json:"locality" validate:"max=200"`
}

type mailRequest struct {
	Subject  string `json:"subject" validate:"max=200"`
	Message  string `json:"message" validate:"max=10000"`
	Location string `json:"location" validate:"max=256"`
	Date     string `json:"date" validate:"max=64"`
}

// getIntParam returns the integer query parameter key, or def when it is
// absent or malformed.
func getIntParam(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getBoolParam returns nil when key is absent or not a bool.
func getBoolParam(r *http.Request, key string) *bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

// caseIDParam parses the {id} path segment.
func caseIDParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
}
