// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/tomtom215/caseledger/internal/models"
)

const readinessTimeout = 3 * time.Second

// HealthLive answers as long as the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthReady runs every readiness check and returns 503 if any fails.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.deps.Checks))
	for name := range h.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ready := true
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.deps.Checks[name](ctx); err != nil {
			ready = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	status, body := http.StatusOK, "success"
	if !ready {
		status, body = http.StatusServiceUnavailable, "error"
	}
	resp := &models.APIResponse{
		Status:   body,
		Data:     map[string]interface{}{"ready": ready, "checks": checks},
		Metadata: models.Metadata{Timestamp: time.Now()},
	}
	if !ready {
		resp.Error = &models.APIError{Code: ErrCodeServiceUnavailable, Message: "Service not ready"}
	}
	respondJSON(w, status, resp)
}
