// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/caseledger/internal/ipfs"
	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/models"
)

// Upload pins the multipart "image" file to IPFS and returns its CID and
// gateway URL.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.deps.Pinner == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeNotConfigured, "IPFS upload is not configured", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "No file uploaded", nil)
		return
	}
	defer file.Close()

	res, err := h.deps.Pinner.PinFile(r.Context(), header.Filename, file)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ipfs.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		respondError(w, r, status, ErrCodeUpload, "Error uploading file to IPFS", err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("cid", res.CID).
		Int64("size", res.Size).
		Msg("File pinned to IPFS")
	respondSuccess(w, r, http.StatusOK, models.UploadResult{CID: res.CID, URL: res.URL, Size: res.Size}, start)
}
