// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package ledger

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/metrics"
	"github.com/tomtom215/caseledger/internal/models"
)

// BreakerName labels the ledger breaker in metrics.
const BreakerName = "ledger-rpc"

// BreakerClient wraps a Client with a circuit breaker so an unreachable
// node fails fast. Rejected calls return an error wrapping ErrUnavailable.
//
// Reverts, rejections, dropped transactions, unknown case ids and bad
// addresses are answers from a healthy node and do not count against the
// breaker. Neither does a confirmation wait that times out while the node
// keeps answering "pending".
type BreakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker[interface{}]
	name string
}

// NewBreakerClient wraps next using cfg.
func NewBreakerClient(next Client, cfg *config.BreakerConfig) *BreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(BreakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(BreakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        BreakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			trip := ratio >= cfg.FailureRatio
			if trip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("[CIRCUIT BREAKER] Opening ledger circuit")
			}
			return trip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},

		IsSuccessful: isHealthyOutcome,
	})

	return &BreakerClient{next: next, cb: cb, name: BreakerName}
}

// isHealthyOutcome reports whether err still proves the node is reachable.
func isHealthyOutcome(err error) bool {
	var slow *slowConfirmation
	return err == nil ||
		errors.Is(err, ErrTxFailed) ||
		errors.Is(err, ErrRejected) ||
		errors.Is(err, ErrTxDropped) ||
		errors.Is(err, ErrCaseNotFound) ||
		errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, &slow)
}

// slowConfirmation marks a receipt wait that ran out of time. It unwraps to
// the deadline error so callers still see context.DeadlineExceeded.
type slowConfirmation struct{ err error }

func (e *slowConfirmation) Error() string { return e.err.Error() }
func (e *slowConfirmation) Unwrap() error { return e.err }

// State returns the breaker state as a string.
func (b *BreakerClient) State() string { return stateToString(b.cb.State()) }

func (b *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Ledger request rejected")
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

// castResult type-asserts a breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func (b *BreakerClient) submit(fn func() (TxHandle, error)) (TxHandle, error) {
	return castResult[TxHandle](b.execute(func() (interface{}, error) { return fn() }))
}

// CreateCase implements Client.
func (b *BreakerClient) CreateCase(ctx context.Context, location, videoHash, dateTime string) (TxHandle, error) {
	return b.submit(func() (TxHandle, error) { return b.next.CreateCase(ctx, location, videoHash, dateTime) })
}

// AddEvidence implements Client.
func (b *BreakerClient) AddEvidence(ctx context.Context, caseID uint64, mediaHash, description, dateTime string) (TxHandle, error) {
	return b.submit(func() (TxHandle, error) {
		return b.next.AddEvidence(ctx, caseID, mediaHash, description, dateTime)
	})
}

// AddQuery implements Client.
func (b *BreakerClient) AddQuery(ctx context.Context, caseID uint64, question, answer string) (TxHandle, error) {
	return b.submit(func() (TxHandle, error) { return b.next.AddQuery(ctx, caseID, question, answer) })
}

// CloseCase implements Client.
func (b *BreakerClient) CloseCase(ctx context.Context, caseID uint64) (TxHandle, error) {
	return b.submit(func() (TxHandle, error) { return b.next.CloseCase(ctx, caseID) })
}

// AssignAuthority implements Client.
func (b *BreakerClient) AssignAuthority(ctx context.Context, caseID uint64, authority string) (TxHandle, error) {
	return b.submit(func() (TxHandle, error) { return b.next.AssignAuthority(ctx, caseID, authority) })
}

// AwaitConfirmation implements Client. A deadline here only says the chain
// is slower than the caller's timeout.
func (b *BreakerClient) AwaitConfirmation(ctx context.Context, tx TxHandle) (*Receipt, error) {
	return castResult[*Receipt](b.execute(func() (interface{}, error) {
		rcpt, err := b.next.AwaitConfirmation(ctx, tx)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &slowConfirmation{err: err}
		}
		return rcpt, err
	}))
}

// GetCase implements Client.
func (b *BreakerClient) GetCase(ctx context.Context, caseID uint64) (*models.Case, error) {
	return castResult[*models.Case](b.execute(func() (interface{}, error) { return b.next.GetCase(ctx, caseID) }))
}

// GetEvidences implements Client.
func (b *BreakerClient) GetEvidences(ctx context.Context, caseID uint64) ([]models.Evidence, error) {
	return castResult[[]models.Evidence](b.execute(func() (interface{}, error) { return b.next.GetEvidences(ctx, caseID) }))
}

// GetQueries implements Client.
func (b *BreakerClient) GetQueries(ctx context.Context, caseID uint64) ([]models.Query, error) {
	return castResult[[]models.Query](b.execute(func() (interface{}, error) { return b.next.GetQueries(ctx, caseID) }))
}

// GetAuthorities implements Client.
func (b *BreakerClient) GetAuthorities(ctx context.Context, caseID uint64) ([]string, error) {
	return castResult[[]string](b.execute(func() (interface{}, error) { return b.next.GetAuthorities(ctx, caseID) }))
}

// GetTotalCases implements Client.
func (b *BreakerClient) GetTotalCases(ctx context.Context) (uint64, error) {
	return castResult[uint64](b.execute(func() (interface{}, error) { return b.next.GetTotalCases(ctx) }))
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var _ Client = (*BreakerClient)(nil)
