// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/caseledger/internal/ledger"
	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/models"
)

const ledgerDateTimeLayout = "2006-01-02 15:04:05"

// respondLedgerError maps ledger errors to HTTP.
func respondLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrCaseNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Case not found", nil)
	case errors.Is(err, ledger.ErrInvalidAddress):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid authority address", nil)
	case errors.Is(err, ledger.ErrUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeLedgerUnavailable, "Ledger temporarily unavailable", err)
	case errors.Is(err, ledger.ErrTxFailed):
		respondError(w, r, http.StatusUnprocessableEntity, ErrCodeTxFailed, "Transaction reverted", err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, ErrCodeLedger, "Timed out waiting for the ledger", err)
	default:
		respondError(w, r, http.StatusBadGateway, ErrCodeLedger, "Ledger error", err)
	}
}

// withCaseID parses {id} and answers 400 when it is not a number.
func withCaseID(fn func(w http.ResponseWriter, r *http.Request, id uint64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := caseIDParam(r)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Case id must be a non-negative integer", nil)
			return
		}
		fn(w, r, id)
	}
}

// CaseCount returns the number of cases on the ledger.
func (h *Handler) CaseCount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	total, err := h.deps.Ledger.GetTotalCases(r.Context())
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, map[string]uint64{"total_cases": total}, start)
}

// GetCase returns a case with its evidence, queries and authorities.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request, id uint64) {
	start := time.Now()
	ctx := r.Context()

	c, err := h.deps.Ledger.GetCase(ctx, id)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	detail := models.CaseDetail{Case: *c}
	if detail.Evidences, err = h.deps.Ledger.GetEvidences(ctx, id); err != nil {
		respondLedgerError(w, r, err)
		return
	}
	if detail.Queries, err = h.deps.Ledger.GetQueries(ctx, id); err != nil {
		respondLedgerError(w, r, err)
		return
	}
	if detail.Authorities, err = h.deps.Ledger.GetAuthorities(ctx, id); err != nil {
		respondLedgerError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, detail, start)
}

// GetEvidences lists a case's evidence.
func (h *Handler) GetEvidences(w http.ResponseWriter, r *http.Request, id uint64) {
	start := time.Now()
	out, err := h.deps.Ledger.GetEvidences(r.Context(), id)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, out, start)
}

// GetQueries lists a case's queries.
func (h *Handler) GetQueries(w http.ResponseWriter, r *http.Request, id uint64) {
	start := time.Now()
	out, err := h.deps.Ledger.GetQueries(r.Context(), id)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, out, start)
}

// GetAuthorities lists the addresses assigned to a case.
func (h *Handler) GetAuthorities(w http.ResponseWriter, r *http.Request, id uint64) {
	start := time.Now()
	out, err := h.deps.Ledger.GetAuthorities(r.Context(), id)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, out, start)
}

// submit runs a ledger write and answers once it is confirmed.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, caseID uint64, method string, fn func(context.Context) (ledger.TxHandle, error)) {
	start := time.Now()

	rcpt, err := ledger.SubmitAndWait(r.Context(), h.deps.Ledger, h.opts.ConfirmTimeout, fn)
	if err != nil {
		respondLedgerError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("method", method).
		Uint64("case_id", caseID).
		Str("tx_hash", rcpt.TxHash).
		Uint64("block", rcpt.BlockNumber).
		Msg("Ledger write confirmed")
	respondSuccess(w, r, http.StatusOK, models.TxResult{
		TxHash:      rcpt.TxHash,
		BlockNumber: rcpt.BlockNumber,
		CaseID:      caseID,
	}, start)
}

// AddEvidence appends evidence to a case. dateTime defaults to now (UTC).
func (h *Handler) AddEvidence(w http.ResponseWriter, r *http.Request, id uint64) {
	var req addEvidenceRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidation(w, apiErr)
		return
	}
	if req.DateTime == "" {
		req.DateTime = time.Now().UTC().Format(ledgerDateTimeLayout)
	}

	h.submit(w, r, id, ledger.MethodAddEvidence, func(ctx context.Context) (ledger.TxHandle, error) {
		return h.deps.Ledger.AddEvidence(ctx, id, req.MediaHash, req.Description, req.DateTime)
	})
}

// AddQuery records a question, and optionally its answer, on a case.
func (h *Handler) AddQuery(w http.ResponseWriter, r *http.Request, id uint64) {
	var req addQueryRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidation(w, apiErr)
		return
	}

	h.submit(w, r, id, ledger.MethodAddQuery, func(ctx context.Context) (ledger.TxHandle, error) {
		return h.deps.Ledger.AddQuery(ctx, id, req.Question, req.Answer)
	})
}

// CloseCase closes a case.
func (h *Handler) CloseCase(w http.ResponseWriter, r *http.Request, id uint64) {
	h.submit(w, r, id, ledger.MethodCloseCase, func(ctx context.Context) (ledger.TxHandle, error) {
		return h.deps.Ledger.CloseCase(ctx, id)
	})
}

// AssignAuthority grants an address access to a case.
func (h *Handler) AssignAuthority(w http.ResponseWriter, r *http.Request, id uint64) {
	var req assignAuthorityRequest
	if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidation(w, apiErr)
		return
	}

	h.submit(w, r, id, ledger.MethodAssignAuthority, func(ctx context.Context) (ledger.TxHandle, error) {
		return h.deps.Ledger.AssignAuthority(ctx, id, req.Authority)
	})
}
