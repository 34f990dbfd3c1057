// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/caseledger/internal/alertstore"
	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/models"
)

// respondStoreError maps alertstore errors to HTTP.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, alertstore.ErrInvalidID):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid id", nil)
	case errors.Is(err, alertstore.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Alert not found", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeStore, "Alert store error", err)
	}
}

// ListAlerts returns alerts newest first.
//
// Query: limit (default 100, max 1000), offset, processed (true|false).
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := listAlertsRequest{
		Limit:  getIntParam(r, "limit", 100),
		Offset: getIntParam(r, "offset", 0),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidation(w, apiErr)
		return
	}

	alerts, err := h.deps.Alerts.ListAlerts(r.Context(), models.AlertFilter{
		Processed: getBoolParam(r, "processed"),
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, alerts, start)
}

// GetAlert returns one alert.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	alert, err := h.deps.Alerts.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, alert, start)
}

// CreateAlert stores a detector alert. The sync loop picks it up on its
// next cycle.
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req createAlertRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidation(w, apiErr)
		return
	}

	id, err := h.deps.Alerts.InsertAlert(r.Context(), &models.Alert{
		FootageURL:  req.FootageURL,
		Location:    req.Location,
		AnomalyDate: req.AnomalyDate,
		AnomalyTime: req.AnomalyTime,
		Coordinates: req.Coordinates,
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("alert_id", id).
		Str("location", sanitizeLogValue(req.Location)).
		Msg("Alert ingested")
	respondSuccess(w, r, http.StatusCreated, map[string]string{"id": id}, start)
}

// DeleteAlert removes an alert.
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id := chi.URLParam(r, "id")
	if err := h.deps.Alerts.DeleteAlert(r.Context(), id); err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]string{"deleted": id}, start)
}

// RequeueAlert puts a dead-lettered alert back in front of the sync loop.
// The alert's intent was resolved when it was dead-lettered, so the next
// cycle starts a fresh submission.
func (h *Handler) RequeueAlert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id := chi.URLParam(r, "id")
	err := h.deps.Alerts.RequeueAlert(r.Context(), id)
	if errors.Is(err, alertstore.ErrNotDeadLettered) {
		respondError(w, r, http.StatusConflict, ErrCodeConflict, "Alert is not dead-lettered", nil)
		return
	}
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("alert_id", id).Msg("Alert requeued")
	respondSuccess(w, r, http.StatusOK, map[string]string{"requeued": id}, start)
}

// DashboardStats combines alert counts, the ledger case total and the
// mailing list sizes. A ledger failure leaves TotalCases at zero rather
// than failing the whole card set.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	counts, err := h.deps.Alerts.CountAlerts(ctx)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	stats := models.DashboardStats{Alerts: counts}

	if total, err := h.deps.Ledger.GetTotalCases(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Dashboard could not read ledger case total")
	} else {
		stats.TotalCases = total
	}

	residents, err := h.deps.Recipients.ListRecipients(ctx, models.KindResident)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	authorities, err := h.deps.Recipients.ListRecipients(ctx, models.KindAuthority)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	stats.Residents = len(residents)
	stats.Authorities = len(authorities)

	respondSuccess(w, r, http.StatusOK, stats, start)
}
