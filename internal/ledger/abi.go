// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package ledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// caseRegistryABI is the public surface of the deployed case contract.
// Tuple components carry names because go-ethereum refuses anonymous
// struct fields; names do not affect encoding.
const caseRegistryABI = `[
  {"type":"function","name":"createCase","stateMutability":"nonpayable",
   "inputs":[{"name":"location","type":"string"},{"name":"videoHash","type":"string"},{"name":"dateTime","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"addEvidence","stateMutability":"nonpayable",
   "inputs":[{"name":"mediaHash","type":"string"},{"name":"description","type":"string"},{"name":"dateTime","type":"string"},{"name":"caseId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"addQuery","stateMutability":"nonpayable",
   "inputs":[{"name":"question","type":"string"},{"name":"answer","type":"string"},{"name":"caseId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"closeCase","stateMutability":"nonpayable",
   "inputs":[{"name":"caseId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"assignAuthority","stateMutability":"nonpayable",
   "inputs":[{"name":"caseId","type":"uint256"},{"name":"authority","type":"address"}],
   "outputs":[]},
  {"type":"function","name":"getCase","stateMutability":"view",
   "inputs":[{"name":"caseId","type":"uint256"}],
   "outputs":[{"name":"id","type":"uint256"},{"name":"location","type":"string"},{"name":"videoHash","type":"string"},{"name":"dateTime","type":"string"},{"name":"closed","type":"bool"}]},
  {"type":"function","name":"getEvidences","stateMutability":"view",
   "inputs":[{"name":"caseId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"id","type":"uint256"},{"name":"mediaHash","type":"string"},{"name":"description","type":"string"},{"name":"dateTime","type":"string"}]}]},
  {"type":"function","name":"getQueries","stateMutability":"view",
   "inputs":[{"name":"caseId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"id","type":"uint256"},{"name":"question","type":"string"},{"name":"answer","type":"string"}]}]},
  {"type":"function","name":"getAuthorities","stateMutability":"view",
   "inputs":[{"name":"caseId","type":"uint256"}],
   "outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","name":"getTotalCases","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]}
]`

// evidenceTuple and queryTuple mirror the structs go-ethereum builds for
// the tuple outputs above so abi.ConvertType can convert them directly.
type evidenceTuple struct {
	Id          *big.Int //nolint:revive,stylecheck // must match abi.ToCamelCase("id")
	MediaHash   string
	Description string
	DateTime    string
}

type queryTuple struct {
	Id       *big.Int //nolint:revive,stylecheck // must match abi.ToCamelCase("id")
	Question string
	Answer   string
}

// parseABI parses caseRegistryABI. It only fails if the constant is broken.
func parseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(caseRegistryABI))
}
