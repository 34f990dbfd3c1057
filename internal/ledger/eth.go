// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/metrics"
	"github.com/tomtom215/caseledger/internal/models"
)

// EthClient binds the case contract over JSON-RPC and signs with a single
// private key.
type EthClient struct {
	rpc      *ethclient.Client
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	cfg      config.LedgerConfig

	// submitMu serializes transactions so nonces are assigned in order.
	submitMu sync.Mutex
}

// NewEthClient dials cfg.RPCURL and binds the contract. When cfg.ChainID
// is zero the chain id is read from the node.
func NewEthClient(ctx context.Context, cfg *config.LedgerConfig) (*EthClient, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("%w: contract %q", ErrInvalidAddress, cfg.ContractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	parsed, err := parseABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", logging.RedactURI(cfg.RPCURL), err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		chainID, err = rpc.ChainID(callCtx)
		cancel()
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("read chain id: %w", err)
		}
	}

	address := common.HexToAddress(cfg.ContractAddress)
	c := &EthClient{
		rpc:      rpc,
		contract: bind.NewBoundContract(address, parsed, rpc, rpc, rpc),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		cfg:      *cfg,
	}

	logging.Info().
		Str("contract", address.Hex()).
		Str("from", c.from.Hex()).
		Str("chain_id", chainID.String()).
		Msg("Ledger client connected")

	return c, nil
}

// From returns the signing address.
func (c *EthClient) From() string { return c.from.Hex() }

// Close releases the RPC connection.
func (c *EthClient) Close() { c.rpc.Close() }

// Ping checks the node answers by reading the latest block number.
func (c *EthClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	_, err := c.rpc.BlockNumber(ctx)
	return err
}

func (c *EthClient) transact(ctx context.Context, method string, args ...interface{}) (TxHandle, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return TxHandle{}, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = c.cfg.GasLimit

	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		if isExecutionReverted(err) {
			metrics.RecordTxFailure(method, "rejected")
			return TxHandle{}, fmt.Errorf("submit %s: %w: %v", method, ErrRejected, err)
		}
		metrics.RecordTxFailure(method, "submit")
		return TxHandle{}, fmt.Errorf("submit %s: %w", method, err)
	}

	metrics.RecordTxSubmitted(method)
	logging.Ctx(ctx).Debug().
		Str("method", method).
		Str("tx_hash", tx.Hash().Hex()).
		Uint64("nonce", tx.Nonce()).
		Msg("Transaction submitted")

	return TxHandle{Hash: tx.Hash().Hex()}, nil
}

// CreateCase submits createCase(location, videoHash, dateTime).
func (c *EthClient) CreateCase(ctx context.Context, location, videoHash, dateTime string) (TxHandle, error) {
	return c.transact(ctx, MethodCreateCase, location, videoHash, dateTime)
}

// AddEvidence submits addEvidence(mediaHash, description, dateTime, caseId).
func (c *EthClient) AddEvidence(ctx context.Context, caseID uint64, mediaHash, description, dateTime string) (TxHandle, error) {
	return c.transact(ctx, MethodAddEvidence, mediaHash, description, dateTime, new(big.Int).SetUint64(caseID))
}

// AddQuery submits addQuery(question, answer, caseId).
func (c *EthClient) AddQuery(ctx context.Context, caseID uint64, question, answer string) (TxHandle, error) {
	return c.transact(ctx, MethodAddQuery, question, answer, new(big.Int).SetUint64(caseID))
}

// CloseCase submits closeCase(caseId).
func (c *EthClient) CloseCase(ctx context.Context, caseID uint64) (TxHandle, error) {
	return c.transact(ctx, MethodCloseCase, new(big.Int).SetUint64(caseID))
}

// AssignAuthority submits assignAuthority(caseId, authority).
func (c *EthClient) AssignAuthority(ctx context.Context, caseID uint64, authority string) (TxHandle, error) {
	if !common.IsHexAddress(authority) {
		return TxHandle{}, fmt.Errorf("%w: %q", ErrInvalidAddress, authority)
	}
	return c.transact(ctx, MethodAssignAuthority, new(big.Int).SetUint64(caseID), common.HexToAddress(authority))
}

// isExecutionReverted matches the node's answer when gas estimation runs
// into a require() in the contract.
func isExecutionReverted(err error) bool {
	return strings.Contains(err.Error(), "execution reverted")
}

// AwaitConfirmation polls for the receipt every ReceiptPollInterval. A
// missing receipt means the transaction is still pending.
//
// When ctx times out the result depends on the last poll: a lookup error is
// returned as is, a transaction the node no longer has returns ErrTxDropped,
// and one still in the pool returns ctx.Err().
func (c *EthClient) AwaitConfirmation(ctx context.Context, handle TxHandle) (*Receipt, error) {
	hash := common.HexToHash(handle.Hash)
	start := time.Now()

	ticker := time.NewTicker(c.cfg.ReceiptPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		rcpt, err := c.rpc.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if rcpt.Status != types.ReceiptStatusSuccessful {
				metrics.RecordTxFailure("receipt", "reverted")
				return nil, fmt.Errorf("%w: block %d", ErrTxFailed, rcpt.BlockNumber.Uint64())
			}
			metrics.RecordTxConfirmed(time.Since(start))
			return &Receipt{
				TxHash:      hash.Hex(),
				BlockNumber: rcpt.BlockNumber.Uint64(),
				GasUsed:     rcpt.GasUsed,
			}, nil
		case errors.Is(err, ethereum.NotFound):
			lastErr = nil
		default:
			if ctx.Err() != nil {
				return nil, c.afterWait(ctx, hash, lastErr)
			}
			lastErr = err
			logging.Ctx(ctx).Warn().Err(err).Str("tx_hash", handle.Hash).Msg("Receipt lookup failed, retrying")
		}

		select {
		case <-ctx.Done():
			return nil, c.afterWait(ctx, hash, lastErr)
		case <-ticker.C:
		}
	}
}

// afterWait classifies a wait that ended without a receipt.
func (c *EthClient) afterWait(ctx context.Context, hash common.Hash, lastErr error) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	if lastErr != nil {
		metrics.RecordTxFailure("receipt", "lookup")
		return fmt.Errorf("receipt lookup: %w", lastErr)
	}

	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CallTimeout)
	defer cancel()

	_, pending, err := c.rpc.TransactionByHash(checkCtx, hash)
	switch {
	case errors.Is(err, ethereum.NotFound):
		metrics.RecordTxFailure("receipt", "dropped")
		return fmt.Errorf("%w: %s", ErrTxDropped, hash.Hex())
	case err != nil:
		metrics.RecordTxFailure("receipt", "lookup")
		return fmt.Errorf("transaction lookup: %w", err)
	}

	logging.Ctx(ctx).Debug().Str("tx_hash", hash.Hex()).Bool("pending", pending).Msg("Transaction still unconfirmed")
	metrics.RecordTxFailure("receipt", "timeout")
	return ctx.Err()
}

func (c *EthClient) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx, From: c.from}, &out, method, args...)
	metrics.RecordLedgerCall(method, time.Since(start))
	if err != nil {
		// The contract rejects unknown ids with a require().
		if isExecutionReverted(err) {
			return nil, fmt.Errorf("%s: %w", method, ErrCaseNotFound)
		}
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}

// GetCase reads a case record.
func (c *EthClient) GetCase(ctx context.Context, caseID uint64) (*models.Case, error) {
	out, err := c.call(ctx, MethodGetCase, new(big.Int).SetUint64(caseID))
	if err != nil {
		return nil, err
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("getCase: unexpected %d outputs", len(out))
	}
	return &models.Case{
		ID:        abi.ConvertType(out[0], new(big.Int)).(*big.Int).Uint64(),
		Location:  *abi.ConvertType(out[1], new(string)).(*string),
		VideoHash: *abi.ConvertType(out[2], new(string)).(*string),
		DateTime:  *abi.ConvertType(out[3], new(string)).(*string),
		Closed:    *abi.ConvertType(out[4], new(bool)).(*bool),
	}, nil
}

// GetEvidences reads the evidence attached to a case.
func (c *EthClient) GetEvidences(ctx context.Context, caseID uint64) ([]models.Evidence, error) {
	out, err := c.call(ctx, MethodGetEvidences, new(big.Int).SetUint64(caseID))
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getEvidences: unexpected %d outputs", len(out))
	}
	tuples := *abi.ConvertType(out[0], new([]evidenceTuple)).(*[]evidenceTuple)

	evidences := make([]models.Evidence, 0, len(tuples))
	for _, t := range tuples {
		evidences = append(evidences, models.Evidence{
			ID:          t.Id.Uint64(),
			MediaHash:   t.MediaHash,
			Description: t.Description,
			DateTime:    t.DateTime,
		})
	}
	return evidences, nil
}

// GetQueries reads the questions and answers recorded on a case.
func (c *EthClient) GetQueries(ctx context.Context, caseID uint64) ([]models.Query, error) {
	out, err := c.call(ctx, MethodGetQueries, new(big.Int).SetUint64(caseID))
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getQueries: unexpected %d outputs", len(out))
	}
	tuples := *abi.ConvertType(out[0], new([]queryTuple)).(*[]queryTuple)

	queries := make([]models.Query, 0, len(tuples))
	for _, t := range tuples {
		queries = append(queries, models.Query{
			ID:       t.Id.Uint64(),
			Question: t.Question,
			Answer:   t.Answer,
		})
	}
	return queries, nil
}

// GetAuthorities reads the addresses assigned to a case.
func (c *EthClient) GetAuthorities(ctx context.Context, caseID uint64) ([]string, error) {
	out, err := c.call(ctx, MethodGetAuthorities, new(big.Int).SetUint64(caseID))
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getAuthorities: unexpected %d outputs", len(out))
	}
	addrs := *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address)

	hexes := make([]string, 0, len(addrs))
	for _, a := range addrs {
		hexes = append(hexes, a.Hex())
	}
	return hexes, nil
}

// GetTotalCases reads the number of cases ever created.
func (c *EthClient) GetTotalCases(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, MethodGetTotalCases)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("getTotalCases: unexpected %d outputs", len(out))
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int).Uint64(), nil
}

var _ Client = (*EthClient)(nil)
