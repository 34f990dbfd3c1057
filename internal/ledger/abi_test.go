// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package ledger

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func TestParseABI(t *testing.T) {
	t.Parallel()

	parsed, err := parseABI()
	if err != nil {
		t.Fatalf("parseABI: %v", err)
	}
	for _, name := range []string{
		MethodCreateCase, MethodAddEvidence, MethodAddQuery, MethodCloseCase, MethodAssignAuthority,
		MethodGetCase, MethodGetEvidences, MethodGetQueries, MethodGetAuthorities, MethodGetTotalCases,
	} {
		if _, ok := parsed.Methods[name]; !ok {
			t.Errorf("method %s missing", name)
		}
	}

	if got := parsed.Methods[MethodCreateCase].Sig; got != "createCase(string,string,string)" {
		t.Errorf("createCase sig = %s", got)
	}
	if got := parsed.Methods[MethodAddEvidence].Sig; got != "addEvidence(string,string,string,uint256)" {
		t.Errorf("addEvidence sig = %s", got)
	}
}

func TestEvidenceTupleConversion(t *testing.T) {
	t.Parallel()

	parsed, err := parseABI()
	if err != nil {
		t.Fatal(err)
	}

	in := []evidenceTuple{
		{Id: big.NewInt(1), MediaHash: "QmA", Description: "front gate", DateTime: "2024-03-01 09:00:00"},
		{Id: big.NewInt(2), MediaHash: "QmB", Description: "side door", DateTime: "2024-03-01 09:05:00"},
	}
	data, err := parsed.Methods[MethodGetEvidences].Outputs.Pack(in)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	out, err := parsed.Unpack(MethodGetEvidences, data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	got := *abi.ConvertType(out[0], new([]evidenceTuple)).(*[]evidenceTuple)
	if len(got) != 2 || got[1].MediaHash != "QmB" || got[1].Id.Uint64() != 2 {
		t.Errorf("got %+v", got)
	}
}
