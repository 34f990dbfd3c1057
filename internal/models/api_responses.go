// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package models

import "time"

// APIResponse is the envelope every HTTP endpoint returns.
//
//	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
//	{"status":"error","error":{"code":"NOT_FOUND","message":"..."},"metadata":{...}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Total       *int64    `json:"total,omitempty"`
}

// APIError carries a machine-readable code and a human message.
//
// Codes in use: VALIDATION_ERROR, NOT_FOUND, STORE_ERROR, LEDGER_ERROR,
// LEDGER_UNAVAILABLE, TX_FAILED, MAIL_ERROR, UPLOAD_ERROR, NOT_CONFIGURED.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// TxResult is returned by endpoints that submit and confirm a transaction.
type TxResult struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	CaseID      uint64 `json:"case_id,omitempty"`
}

// UploadResult is returned by the IPFS upload endpoint.
type UploadResult struct {
	CID  string `json:"cid"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// DashboardStats feeds the dashboard summary cards.
type DashboardStats struct {
	Alerts      AlertCounts `json:"alerts"`
	TotalCases  uint64      `json:"total_cases"`
	Residents   int         `json:"residents"`
	Authorities int         `json:"authorities"`
}
