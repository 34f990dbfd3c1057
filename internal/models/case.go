// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package models

// Case is the on-chain record created for an alert.
type Case struct {
	ID        uint64 `json:"id"`
	Location  string `json:"location"`
	VideoHash string `json:"video_hash"`
	DateTime  string `json:"date_time"`
	Closed    bool   `json:"closed"`
}

// Evidence is a media item attached to a case.
type Evidence struct {
	ID          uint64 `json:"id"`
	MediaHash   string `json:"media_hash"`
	Description string `json:"description"`
	DateTime    string `json:"date_time"`
}

// Query is a question/answer pair recorded against a case.
type Query struct {
	ID       uint64 `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CaseDetail bundles a case with its child records for the API.
type CaseDetail struct {
	Case        Case       `json:"case"`
	Evidences   []Evidence `json:"evidences"`
	Queries     []Query    `json:"queries"`
	Authorities []string   `json:"authorities"`
}
