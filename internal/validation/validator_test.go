// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package validation

import (
	"strings"
	"testing"
)

type sample struct {
	FootageURL  string `json:"footageUrl" validate:"required,max=20"`
	Coordinates string `json:"coordinates" validate:"omitempty,coordinates"`
	Authority   string `json:"authority" validate:"omitempty,eth_addr"`
	Hash        string `json:"hash" validate:"omitempty,fingerprint"`
	Email       string `json:"email" validate:"omitempty,email"`
	Limit       int    `json:"limit" validate:"gte=0,lte=1000"`
}

func TestValidateStructValid(t *testing.T) {
	t.Parallel()

	s := sample{
		FootageURL:  "f1.mp4",
		Coordinates: "12.97, 77.59",
		Authority:   "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Hash:        strings.Repeat("ab", 32),
		Email:       "amy@example.com",
		Limit:       10,
	}
	if err := ValidateStruct(&s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStructMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    sample
		field string
		msg   string
	}{
		{"required", sample{}, "footageUrl", "footageUrl is required"},
		{"max", sample{FootageURL: strings.Repeat("x", 21)}, "footageUrl", "footageUrl must be at most 20 characters"},
		{"coordinates", sample{FootageURL: "a", Coordinates: "91,0"}, "coordinates", `coordinates must be "lat,lng" within range`},
		{"eth", sample{FootageURL: "a", Authority: "0x123"}, "authority", "authority must be a 0x-prefixed 20-byte hex address"},
		{"fingerprint", sample{FootageURL: "a", Hash: "ABC"}, "hash", "hash must be 64 lowercase hex characters"},
		{"lte", sample{FootageURL: "a", Limit: 5000}, "limit", "limit must be less than or equal to 1000"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			verr := ValidateStruct(&tt.in)
			if verr == nil {
				t.Fatal("expected error")
			}
			if len(verr.Fields) != 1 {
				t.Fatalf("fields = %+v", verr.Fields)
			}
			if verr.Fields[0].Field != tt.field || verr.Fields[0].Message != tt.msg {
				t.Errorf("got %s %q, want %s %q", verr.Fields[0].Field, verr.Fields[0].Message, tt.field, tt.msg)
			}
			apiErr := verr.ToAPIError()
			if apiErr.Code != "VALIDATION_ERROR" || apiErr.Details["field"] != tt.field {
				t.Errorf("api error = %+v", apiErr)
			}
		})
	}
}

func TestToAPIErrorMultiple(t *testing.T) {
	t.Parallel()

	verr := ValidateStruct(&sample{Coordinates: "nope"})
	if verr == nil || len(verr.Fields) != 2 {
		t.Fatalf("verr = %v", verr)
	}
	apiErr := verr.ToAPIError()
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Errorf("details = %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "footageUrl is required") {
		t.Errorf("message = %q", apiErr.Message)
	}
}
