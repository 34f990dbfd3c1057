// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tomtom215/caseledger/internal/models"
)

// MemoryClient is an in-process ledger with the contract's rules: case ids
// start at 1, mutations of a closed or unknown case revert, and every
// transaction is mined in its own block. Hashes it never mined are reported
// as dropped.
//
// The exported fields inject faults for tests and are read under the lock,
// so set them with Configure once goroutines are running.
type MemoryClient struct {
	mu     sync.Mutex
	cases  []*memCase
	txs    map[string]*memTx
	nonce  uint64
	block  uint64
	calls  map[string]int
	submit []SubmittedCase

	// SubmitErr is returned by every mutating call when set.
	SubmitErr error
	// ConfirmErr is returned by AwaitConfirmation when set.
	ConfirmErr error
	// RevertNext makes the next n submitted transactions revert.
	RevertNext int
	// DropNext makes the next n submitted transactions vanish from the
	// pool: they get a hash but are never mined.
	DropNext int
	// HoldConfirmations makes AwaitConfirmation block until ctx ends.
	HoldConfirmations bool
	// ReadErr is returned by every read when set.
	ReadErr error
}

type memCase struct {
	c           models.Case
	evidences   []models.Evidence
	queries     []models.Query
	authorities []string
}

type memTx struct {
	block    uint64
	reverted bool
}

// SubmittedCase records the arguments of one createCase call.
type SubmittedCase struct {
	Location, VideoHash, DateTime string
}

// NewMemoryClient returns an empty ledger.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		txs:   make(map[string]*memTx),
		calls: make(map[string]int),
	}
}

// Configure runs fn with the lock held so fault fields can be changed
// safely while the client is in use.
func (m *MemoryClient) Configure(fn func(*MemoryClient)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// Calls reports how many times method was invoked.
func (m *MemoryClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// CreatedCases returns the arguments of every accepted createCase call,
// including ones that reverted.
func (m *MemoryClient) CreatedCases() []SubmittedCase {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SubmittedCase, len(m.submit))
	copy(out, m.submit)
	return out
}

// mineLocked records a transaction and applies fn unless it reverts.
// fn returning false also reverts.
func (m *MemoryClient) mineLocked(method string, fn func() bool) (TxHandle, error) {
	m.calls[method]++
	if m.SubmitErr != nil {
		return TxHandle{}, fmt.Errorf("submit %s: %w", method, m.SubmitErr)
	}

	m.nonce++
	m.block++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], m.nonce)
	hash := common.BytesToHash(crypto.Keccak256([]byte(method), buf[:])).Hex()

	if m.DropNext > 0 {
		m.DropNext--
		m.block--
		return TxHandle{Hash: hash}, nil
	}

	tx := &memTx{block: m.block}
	if m.RevertNext > 0 {
		m.RevertNext--
		tx.reverted = true
	} else {
		tx.reverted = !fn()
	}
	m.txs[hash] = tx
	return TxHandle{Hash: hash}, nil
}

// openCaseLocked returns the case or nil when it is unknown or closed.
func (m *MemoryClient) openCaseLocked(caseID uint64) *memCase {
	if caseID == 0 || caseID > uint64(len(m.cases)) {
		return nil
	}
	c := m.cases[caseID-1]
	if c.c.Closed {
		return nil
	}
	return c
}

// CreateCase implements Client.
func (m *MemoryClient) CreateCase(_ context.Context, location, videoHash, dateTime string) (TxHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SubmitErr == nil {
		m.submit = append(m.submit, SubmittedCase{location, videoHash, dateTime})
	}
	return m.mineLocked(MethodCreateCase, func() bool {
		id := uint64(len(m.cases)) + 1
		m.cases = append(m.cases, &memCase{c: models.Case{
			ID:        id,
			Location:  location,
			VideoHash: videoHash,
			DateTime:  dateTime,
		}})
		return true
	})
}

// AddEvidence implements Client.
func (m *MemoryClient) AddEvidence(_ context.Context, caseID uint64, mediaHash, description, dateTime string) (TxHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mineLocked(MethodAddEvidence, func() bool {
		c := m.openCaseLocked(caseID)
		if c == nil {
			return false
		}
		c.evidences = append(c.evidences, models.Evidence{
			ID:          uint64(len(c.evidences)) + 1,
			MediaHash:   mediaHash,
			Description: description,
			DateTime:    dateTime,
		})
		return true
	})
}

// AddQuery implements Client.
func (m *MemoryClient) AddQuery(_ context.Context, caseID uint64, question, answer string) (TxHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mineLocked(MethodAddQuery, func() bool {
		c := m.openCaseLocked(caseID)
		if c == nil {
			return false
		}
		c.queries = append(c.queries, models.Query{
			ID:       uint64(len(c.queries)) + 1,
			Question: question,
			Answer:   answer,
		})
		return true
	})
}

// CloseCase implements Client.
func (m *MemoryClient) CloseCase(_ context.Context, caseID uint64) (TxHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mineLocked(MethodCloseCase, func() bool {
		c := m.openCaseLocked(caseID)
		if c == nil {
			return false
		}
		c.c.Closed = true
		return true
	})
}

// AssignAuthority implements Client.
func (m *MemoryClient) AssignAuthority(_ context.Context, caseID uint64, authority string) (TxHandle, error) {
	if !common.IsHexAddress(authority) {
		return TxHandle{}, fmt.Errorf("%w: %q", ErrInvalidAddress, authority)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.mineLocked(MethodAssignAuthority, func() bool {
		c := m.openCaseLocked(caseID)
		if c == nil {
			return false
		}
		c.authorities = append(c.authorities, common.HexToAddress(authority).Hex())
		return true
	})
}

// AwaitConfirmation implements Client.
func (m *MemoryClient) AwaitConfirmation(ctx context.Context, handle TxHandle) (*Receipt, error) {
	m.mu.Lock()
	hold := m.HoldConfirmations
	confirmErr := m.ConfirmErr
	tx, ok := m.txs[handle.Hash]
	m.calls["awaitConfirmation"]++
	m.mu.Unlock()

	if hold {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if confirmErr != nil {
		return nil, confirmErr
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTxDropped, handle.Hash)
	}
	if tx.reverted {
		return nil, fmt.Errorf("%w: block %d", ErrTxFailed, tx.block)
	}
	return &Receipt{TxHash: handle.Hash, BlockNumber: tx.block, GasUsed: 21000}, nil
}

func (m *MemoryClient) caseLocked(method string, caseID uint64) (*memCase, error) {
	m.calls[method]++
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if caseID == 0 || caseID > uint64(len(m.cases)) {
		return nil, fmt.Errorf("%s: %w", method, ErrCaseNotFound)
	}
	return m.cases[caseID-1], nil
}

// GetCase implements Client.
func (m *MemoryClient) GetCase(_ context.Context, caseID uint64) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.caseLocked(MethodGetCase, caseID)
	if err != nil {
		return nil, err
	}
	cp := c.c
	return &cp, nil
}

// GetEvidences implements Client.
func (m *MemoryClient) GetEvidences(_ context.Context, caseID uint64) ([]models.Evidence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.caseLocked(MethodGetEvidences, caseID)
	if err != nil {
		return nil, err
	}
	return append([]models.Evidence{}, c.evidences...), nil
}

// GetQueries implements Client.
func (m *MemoryClient) GetQueries(_ context.Context, caseID uint64) ([]models.Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.caseLocked(MethodGetQueries, caseID)
	if err != nil {
		return nil, err
	}
	return append([]models.Query{}, c.queries...), nil
}

// GetAuthorities implements Client.
func (m *MemoryClient) GetAuthorities(_ context.Context, caseID uint64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.caseLocked(MethodGetAuthorities, caseID)
	if err != nil {
		return nil, err
	}
	return append([]string{}, c.authorities...), nil
}

// GetTotalCases implements Client.
func (m *MemoryClient) GetTotalCases(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[MethodGetTotalCases]++
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	return uint64(len(m.cases)), nil
}

var _ Client = (*MemoryClient)(nil)
