// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package ledger talks to the case registry contract.
//
// Client is implemented by EthClient (JSON-RPC via go-ethereum), wrapped by
// BreakerClient for failure isolation, and by MemoryClient for tests and
// offline runs. Every mutating call returns a TxHandle as soon as the node
// accepts the transaction; AwaitConfirmation blocks until it is mined.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/caseledger/internal/models"
)

var (
	// ErrTxFailed means the transaction was mined but reverted.
	ErrTxFailed = errors.New("ledger: transaction reverted")

	// ErrRejected means the node refused the transaction because the
	// contract call reverts when simulated.
	ErrRejected = errors.New("ledger: transaction rejected")

	// ErrTxDropped means the node no longer knows a transaction that was
	// never mined, so it will never get a receipt.
	ErrTxDropped = errors.New("ledger: transaction dropped")

	// ErrUnavailable means the circuit breaker rejected the call.
	ErrUnavailable = errors.New("ledger: unavailable")

	// ErrCaseNotFound is returned by reads of an unknown case id.
	ErrCaseNotFound = errors.New("ledger: case not found")

	// ErrInvalidAddress is returned for malformed authority addresses.
	ErrInvalidAddress = errors.New("ledger: invalid address")
)

// Contract method names, used for metrics labels and ABI lookups.
const (
	MethodCreateCase      = "createCase"
	MethodAddEvidence     = "addEvidence"
	MethodAddQuery        = "addQuery"
	MethodCloseCase       = "closeCase"
	MethodAssignAuthority = "assignAuthority"
	MethodGetCase         = "getCase"
	MethodGetEvidences    = "getEvidences"
	MethodGetQueries      = "getQueries"
	MethodGetAuthorities  = "getAuthorities"
	MethodGetTotalCases   = "getTotalCases"
)

// TxHandle identifies a submitted transaction. Only the hash is kept so a
// handle can be rebuilt from the intent log after a restart.
type TxHandle struct {
	Hash string `json:"hash"`
}

// Receipt describes a successfully mined transaction.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
}

// Client is the case contract, bound to one signing identity.
type Client interface {
	CreateCase(ctx context.Context, location, videoHash, dateTime string) (TxHandle, error)
	AddEvidence(ctx context.Context, caseID uint64, mediaHash, description, dateTime string) (TxHandle, error)
	AddQuery(ctx context.Context, caseID uint64, question, answer string) (TxHandle, error)
	CloseCase(ctx context.Context, caseID uint64) (TxHandle, error)
	AssignAuthority(ctx context.Context, caseID uint64, authority string) (TxHandle, error)

	// AwaitConfirmation blocks until the transaction is mined or ctx ends.
	// A reverted transaction returns an error wrapping ErrTxFailed, and one
	// the node has forgotten returns ErrTxDropped.
	AwaitConfirmation(ctx context.Context, tx TxHandle) (*Receipt, error)

	GetCase(ctx context.Context, caseID uint64) (*models.Case, error)
	GetEvidences(ctx context.Context, caseID uint64) ([]models.Evidence, error)
	GetQueries(ctx context.Context, caseID uint64) ([]models.Query, error)
	GetAuthorities(ctx context.Context, caseID uint64) ([]string, error)
	GetTotalCases(ctx context.Context) (uint64, error)
}

// Permanent reports whether err is the contract refusing the call. The
// same call fails the same way when resubmitted; everything else (transport
// errors, timeouts, dropped transactions, an open breaker) may clear up.
func Permanent(err error) bool {
	return errors.Is(err, ErrTxFailed) || errors.Is(err, ErrRejected)
}

// SubmitAndWait runs submit and waits up to timeout for its receipt. The
// API uses it for writes that answer only after confirmation.
//
//	rcpt, err := ledger.SubmitAndWait(ctx, client, 2*time.Minute, func(ctx context.Context) (ledger.TxHandle, error) {
//	    return client.CloseCase(ctx, id)
//	})
func SubmitAndWait(ctx context.Context, c Client, timeout time.Duration, submit func(context.Context) (TxHandle, error)) (*Receipt, error) {
	tx, err := submit(ctx)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rcpt, err := c.AwaitConfirmation(waitCtx, tx)
	if err != nil {
		return nil, fmt.Errorf("tx %s: %w", tx.Hash, err)
	}
	return rcpt, nil
}
