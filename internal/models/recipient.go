// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package models

import "time"

// RecipientKind separates the two mailing lists.
type RecipientKind string

const (
	KindResident  RecipientKind = "resident"
	KindAuthority RecipientKind = "authority"
)

// Valid reports whether k is a known kind.
func (k RecipientKind) Valid() bool {
	return k == KindResident || k == KindAuthority
}

// Recipient is a resident or authority who receives alert emails.
type Recipient struct {
	ID        string        `json:"id"`
	Kind      RecipientKind `json:"kind"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Locality  string        `json:"locality"`
	CreatedAt time.Time     `json:"created_at"`
}
