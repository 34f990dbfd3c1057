// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package fingerprint derives the video hash recorded on a ledger case.
//
// The fingerprint is the SHA-256 of the footage URL string, not of the
// footage bytes, encoded as 64 lowercase hex characters.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

// Digest returns the lowercase hex SHA-256 of s.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Valid reports whether h has the shape of a Digest result.
func Valid(h string) bool {
	if len(h) != Size {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
