// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package intent is the durable record of case submissions.
//
// Before the sync loop waits on a createCase transaction it writes the
// transaction hash here, keyed by alert id. After a crash or a failed
// status write the next cycle finds the record and resumes from it
// (await the same hash, or only mark the alert) instead of submitting a
// second case for the same footage.
//
// Records move through:
//
//	submitted -> confirmed -> completed
//	    |
//	    +-> failed -> submitted (retry) ... -> dead_lettered
//
// completed and dead_lettered records are resolved: they are moved under a
// separate prefix with a TTL so BadgerDB expires them on its own.
package intent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/logging"
)

// State is the lifecycle position of a Record.
type State string

const (
	StateSubmitted    State = "submitted"
	StateConfirmed    State = "confirmed"
	StateFailed       State = "failed"
	StateCompleted    State = "completed"
	StateDeadLettered State = "dead_lettered"
)

// Resolved reports whether s is terminal.
func (s State) Resolved() bool {
	return s == StateCompleted || s == StateDeadLettered
}

// Record tracks one alert's case submission.
type Record struct {
	AlertID     string    `json:"alert_id"`
	Fingerprint string    `json:"fingerprint"`
	State       State     `json:"state"`
	TxHash      string    `json:"tx_hash,omitempty"`
	BlockNumber uint64    `json:"block_number,omitempty"`
	Attempts    int       `json:"attempts"`
	Rejections  int       `json:"rejections"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Log is the intent store used by the sync loop.
type Log interface {
	// Get returns the record for alertID or ErrRecordNotFound.
	Get(ctx context.Context, alertID string) (*Record, error)

	// RecordSubmitted stores txHash as the in-flight transaction.
	RecordSubmitted(ctx context.Context, alertID, fingerprint, txHash string) error

	// RecordConfirmed marks the in-flight transaction as mined.
	RecordConfirmed(ctx context.Context, alertID string, blockNumber uint64) error

	// RecordFailure counts a failed attempt and returns the updated
	// record. With KeepTx the in-flight hash survives so the next cycle
	// waits on it again; otherwise the record becomes failed and the next
	// cycle submits a new transaction.
	RecordFailure(ctx context.Context, alertID string, f Failure) (*Record, error)

	// Resolve moves the record to a terminal state.
	Resolve(ctx context.Context, alertID string, final State) error

	// Pending returns all unresolved records.
	Pending(ctx context.Context) ([]*Record, error)

	Stats() Stats
	Close() error
}

// Failure describes one failed attempt.
type Failure struct {
	Fingerprint string
	Reason      string

	// TxHash is the transaction the attempt was waiting on, if any. It is
	// stored when KeepTx is set even if RecordSubmitted never landed.
	TxHash string
	KeepTx bool

	// Permanent marks a rejection by the contract itself. Only these
	// count toward dead-lettering.
	Permanent bool
}

// Stats summarizes the log for monitoring.
type Stats struct {
	Unresolved  int64 `json:"unresolved"`
	Resolved    int64 `json:"resolved"`
	DBSizeBytes int64 `json:"db_size_bytes"`
}

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("intent log is closed")

	// ErrRecordNotFound is returned when no unresolved record exists.
	ErrRecordNotFound = errors.New("intent record not found")

	// ErrEmptyAlertID is returned for an empty alert id.
	ErrEmptyAlertID = errors.New("alert id cannot be empty")

	// ErrNotTerminal is returned when Resolve gets a non-terminal state.
	ErrNotTerminal = errors.New("state is not terminal")
)

const (
	prefixOpen     = "intent:"
	prefixResolved = "resolved:"
)

// BadgerLog implements Log on BadgerDB.
type BadgerLog struct {
	db  *badger.DB
	cfg config.IntentConfig

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the log at cfg.Path.
func Open(cfg *config.IntentConfig) (*BadgerLog, error) {
	if cfg.Path == "" {
		return nil, errors.New("intent log path is required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	return open(opts, cfg)
}

// OpenInMemory opens a log that is never written to disk. Tests use it.
func OpenInMemory(cfg *config.IntentConfig) (*BadgerLog, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, cfg)
}

func open(opts badger.Options, cfg *config.IntentConfig) (*BadgerLog, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	l := &BadgerLog{db: db, cfg: *cfg}
	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Bool("in_memory", opts.InMemory).
		Msg("Intent log opened")
	return l, nil
}

func (l *BadgerLog) checkOpen(alertID string) error {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if alertID == "" {
		return ErrEmptyAlertID
	}
	return nil
}

func readRecord(txn *badger.Txn, key []byte) (*Record, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

func writeRecord(txn *badger.Txn, key []byte, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	e := badger.NewEntry(key, data)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return txn.SetEntry(e)
}

// update loads (or creates) the open record for alertID and stores the
// result of fn.
func (l *BadgerLog) update(alertID string, fn func(rec *Record, existed bool) error) error {
	key := []byte(prefixOpen + alertID)
	return l.db.Update(func(txn *badger.Txn) error {
		rec, err := readRecord(txn, key)
		existed := true
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			now := time.Now().UTC()
			rec = &Record{AlertID: alertID, CreatedAt: now}
			existed = false
		case err != nil:
			return fmt.Errorf("get record: %w", err)
		}

		if err := fn(rec, existed); err != nil {
			return err
		}
		rec.UpdatedAt = time.Now().UTC()
		return writeRecord(txn, key, rec, 0)
	})
}

// Get implements Log.
func (l *BadgerLog) Get(_ context.Context, alertID string) (*Record, error) {
	if err := l.checkOpen(alertID); err != nil {
		return nil, err
	}

	var rec *Record
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, []byte(prefixOpen+alertID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// RecordSubmitted implements Log.
func (l *BadgerLog) RecordSubmitted(_ context.Context, alertID, fingerprint, txHash string) error {
	if err := l.checkOpen(alertID); err != nil {
		return err
	}
	err := l.update(alertID, func(rec *Record, _ bool) error {
		rec.Fingerprint = fingerprint
		rec.State = StateSubmitted
		rec.TxHash = txHash
		rec.BlockNumber = 0
		return nil
	})
	if err == nil {
		recordTransition(StateSubmitted)
	}
	return err
}

// RecordConfirmed implements Log.
func (l *BadgerLog) RecordConfirmed(_ context.Context, alertID string, blockNumber uint64) error {
	if err := l.checkOpen(alertID); err != nil {
		return err
	}
	err := l.update(alertID, func(rec *Record, existed bool) error {
		if !existed {
			return ErrRecordNotFound
		}
		rec.State = StateConfirmed
		rec.BlockNumber = blockNumber
		rec.LastError = ""
		return nil
	})
	if err == nil {
		recordTransition(StateConfirmed)
	}
	return err
}

// RecordFailure implements Log.
func (l *BadgerLog) RecordFailure(_ context.Context, alertID string, f Failure) (*Record, error) {
	if err := l.checkOpen(alertID); err != nil {
		return nil, err
	}

	var out Record
	err := l.update(alertID, func(rec *Record, _ bool) error {
		if rec.Fingerprint == "" {
			rec.Fingerprint = f.Fingerprint
		}
		rec.Attempts++
		if f.Permanent {
			rec.Rejections++
		}
		rec.LastError = f.Reason
		if f.KeepTx && f.TxHash != "" {
			rec.TxHash = f.TxHash
		}
		if f.KeepTx && rec.TxHash != "" {
			rec.State = StateSubmitted
		} else {
			rec.State = StateFailed
			rec.TxHash = ""
		}
		out = *rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	recordTransition(StateFailed)
	return &out, nil
}

// Resolve implements Log. Resolving an alert that has no open record
// stores a fresh terminal record so the outcome stays visible until the
// TTL expires.
func (l *BadgerLog) Resolve(_ context.Context, alertID string, final State) error {
	if err := l.checkOpen(alertID); err != nil {
		return err
	}
	if !final.Resolved() {
		return fmt.Errorf("%w: %s", ErrNotTerminal, final)
	}

	openKey := []byte(prefixOpen + alertID)
	resolvedKey := []byte(prefixResolved + alertID)

	err := l.db.Update(func(txn *badger.Txn) error {
		rec, err := readRecord(txn, openKey)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			rec = &Record{AlertID: alertID, CreatedAt: time.Now().UTC()}
		case err != nil:
			return fmt.Errorf("get record: %w", err)
		default:
			if err := txn.Delete(openKey); err != nil {
				return fmt.Errorf("delete open record: %w", err)
			}
		}

		rec.State = final
		rec.UpdatedAt = time.Now().UTC()
		return writeRecord(txn, resolvedKey, rec, l.cfg.CompletedTTL)
	})
	if err == nil {
		recordTransition(final)
	}
	return err
}

// Pending implements Log.
func (l *BadgerLog) Pending(ctx context.Context) ([]*Record, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, ErrClosed
	}
	l.mu.RUnlock()

	var records []*Record
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixOpen)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Intent log skipped malformed record")
				continue
			}
			records = append(records, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate open records: %w", err)
	}
	return records, nil
}

// Stats implements Log.
func (l *BadgerLog) Stats() Stats {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return Stats{}
	}

	var s Stats
	if err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for p, n := range map[string]*int64{prefixOpen: &s.Unresolved, prefixResolved: &s.Resolved} {
			prefix := []byte(p)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				*n++
			}
		}
		return nil
	}); err != nil {
		logging.Warn().Err(err).Msg("Intent log stats failed to count records")
	}

	lsm, vlog := l.db.Size()
	s.DBSizeBytes = lsm + vlog

	intentUnresolved.Set(float64(s.Unresolved))
	intentDBSize.Set(float64(s.DBSizeBytes))
	return s
}

// RunGC reclaims value log space until BadgerDB reports nothing to
// rewrite.
func (l *BadgerLog) RunGC() error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	l.mu.RUnlock()

	start := time.Now()
	defer func() { recordGC(time.Since(start)) }()

	ratio := l.cfg.GCRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	for {
		err := l.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the database. Further calls return ErrClosed.
func (l *BadgerLog) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Intent log closed")
	return nil
}

var _ Log = (*BadgerLog)(nil)
