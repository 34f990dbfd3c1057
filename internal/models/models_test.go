// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestAlertDateTime(t *testing.T) {
	t.Parallel()

	a := Alert{AnomalyDate: "2024-03-01", AnomalyTime: "14:22:05"}
	if got := a.DateTime(); got != "2024-03-01 14:22:05" {
		t.Errorf("DateTime() = %q", got)
	}
}

func TestAlertValidate(t *testing.T) {
	t.Parallel()

	full := Alert{
		FootageURL:  "https://ipfs.io/ipfs/QmX",
		Location:    "Gate 3",
		AnomalyDate: "2024-03-01",
		AnomalyTime: "14:22:05",
	}
	if err := full.Validate(); err != nil {
		t.Fatalf("complete alert: %v", err)
	}

	partial := full
	partial.FootageURL = " "
	partial.AnomalyTime = ""
	err := partial.Validate()
	if !errors.Is(err, ErrIncompleteAlert) {
		t.Fatalf("err = %v, want ErrIncompleteAlert", err)
	}
	if !strings.Contains(err.Error(), "footageUrl") || !strings.Contains(err.Error(), "anomalyTime") {
		t.Errorf("error should list missing fields: %v", err)
	}
}

func TestAlertWireNames(t *testing.T) {
	t.Parallel()

	body := `{"footageUrl":"u","location":"l","anomalyDate":"d","anomalyTime":"t","coordinates":"1,2","createdContract":true}`
	var a Alert
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		t.Fatal(err)
	}
	if a.FootageURL != "u" || a.Coordinates != "1,2" || !a.CreatedContract {
		t.Errorf("decoded %+v", a)
	}
}

func TestRecipientKindValid(t *testing.T) {
	t.Parallel()

	if !KindResident.Valid() || !KindAuthority.Valid() {
		t.Error("known kinds should be valid")
	}
	if RecipientKind("admin").Valid() {
		t.Error("admin should be invalid")
	}
}
