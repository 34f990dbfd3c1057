// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/models"
	"github.com/tomtom215/caseledger/internal/notify"
)

// ListRecipients returns the mailing list of kind, sorted by name.
func (h *Handler) ListRecipients(kind models.RecipientKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		list, err := h.deps.Recipients.ListRecipients(r.Context(), kind)
		if err != nil {
			respondStoreError(w, r, err)
			return
		}
		respondSuccess(w, r, http.StatusOK, list, start)
	}
}

// AddRecipient adds a resident or authority to its mailing list.
func (h *Handler) AddRecipient(kind models.RecipientKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req addRecipientRequest
		if err := decodeJSON(w, r, maxJSONBytes, &req); err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
			return
		}
		if apiErr := validateRequest(&req); apiErr != nil {
			respondValidation(w, apiErr)
			return
		}

		rec := &models.Recipient{Kind: kind, Name: req.Name, Email: req.Email, Locality: req.Locality}
		id, err := h.deps.Recipients.AddRecipient(r.Context(), rec)
		if err != nil {
			respondStoreError(w, r, err)
			return
		}
		rec.ID = id

		logging.Ctx(r.Context()).Info().
			Str("kind", string(kind)).
			Str("email", logging.MaskEmail(req.Email)).
			Msg("Recipient added")
		respondSuccess(w, r, http.StatusCreated, rec, start)
	}
}

// Broadcast mails a notice to every recipient of kind. The body is either
// JSON or multipart/form-data with the same fields plus an optional
// "video" file sent as an attachment.
func (h *Handler) Broadcast(kind models.RecipientKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if h.deps.Broadcaster == nil {
			respondError(w, r, http.StatusServiceUnavailable, ErrCodeNotConfigured, "Mail is not configured", nil)
			return
		}

		var (
			req        mailRequest
			attachment *notify.Attachment
			err        error
		)
		if isMultipart(r) {
			attachment, err = h.parseMailForm(w, r, &req)
		} else {
			err = decodeJSON(w, r, maxJSONBytes, &req)
		}
		if err != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
			return
		}
		if apiErr := validateRequest(&req); apiErr != nil {
			respondValidation(w, apiErr)
			return
		}

		report, err := h.deps.Broadcaster.Broadcast(r.Context(), kind, notify.Notice{
			Subject:    req.Subject,
			Message:    req.Message,
			Location:   req.Location,
			Date:       req.Date,
			Attachment: attachment,
		})
		if err != nil {
			respondError(w, r, http.StatusInternalServerError, ErrCodeMail, "Broadcast failed", err)
			return
		}
		respondSuccess(w, r, http.StatusOK, report, start)
	}
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// parseMailForm fills req from form fields and returns the "video"
// attachment, or nil when none was sent.
func (h *Handler) parseMailForm(w http.ResponseWriter, r *http.Request, req *mailRequest) (*notify.Attachment, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		return nil, err
	}
	req.Subject = r.FormValue("subject")
	req.Message = r.FormValue("message")
	req.Location = r.FormValue("location")
	req.Date = r.FormValue("date")

	file, header, err := r.FormFile("video")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	ct := header.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &notify.Attachment{Filename: header.Filename, ContentType: ct, Data: data}, nil
}
