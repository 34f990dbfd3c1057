// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/caseledger/internal/casesync"
	"github.com/tomtom215/caseledger/internal/intent"
	"github.com/tomtom215/caseledger/internal/ledger"
)

// SyncStatusResponse is the body of GET /sync/status.
type SyncStatusResponse struct {
	Runner  *casesync.Status `json:"runner,omitempty"`
	Pending []*intent.Record `json:"pending"`
	Intents intent.Stats     `json:"intents"`
}

// SyncStatus reports the loop state and every unresolved intent.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	resp := SyncStatusResponse{Pending: []*intent.Record{}}
	if h.deps.Sync != nil {
		st := h.deps.Sync.Status()
		resp.Runner = &st
	}
	if h.deps.Intents != nil {
		pending, err := h.deps.Intents.Pending(r.Context())
		if err != nil {
			respondError(w, r, http.StatusInternalServerError, ErrCodeStore, "Could not read intent log", err)
			return
		}
		if pending != nil {
			resp.Pending = pending
		}
		resp.Intents = h.deps.Intents.Stats()
	}
	respondSuccess(w, r, http.StatusOK, resp, start)
}

// TriggerSync runs one cycle now, after any cycle in progress, and
// returns its outcome. A cycle that stopped on an error answers 503 when
// the ledger breaker is open and 502 otherwise, with the outcome in the
// error details.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.deps.Sync == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeNotConfigured, "Sync loop is disabled", nil)
		return
	}

	outcome, err := h.deps.Sync.Trigger(r.Context())
	if err != nil {
		details := map[string]interface{}{"outcome": string(outcome)}
		if errors.Is(err, ledger.ErrUnavailable) {
			respondErrorDetails(w, r, http.StatusServiceUnavailable, ErrCodeLedgerUnavailable,
				"Ledger is unavailable; the alert will be retried", details, err)
			return
		}
		respondErrorDetails(w, r, http.StatusBadGateway, ErrCodeSyncFailed,
			"Sync cycle failed; the alert will be retried", details, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]string{"outcome": string(outcome)}, start)
}
