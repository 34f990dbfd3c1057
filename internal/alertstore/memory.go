// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package alertstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tomtom215/caseledger/internal/models"
)

// MemoryStore is an in-process implementation of Store, Repository and
// Directory. Ids are ObjectID hex strings so they validate the same way
// as MongoStore ids.
type MemoryStore struct {
	mu         sync.RWMutex
	alerts     map[string]*memAlert
	seq        int64
	recipients map[models.RecipientKind][]models.Recipient

	// FailFind, FailMark and FailDeadLetter inject errors for tests.
	FailFind       error
	FailMark       error
	FailDeadLetter error

	markCalls int
}

type memAlert struct {
	alert models.Alert
	seq   int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts:     make(map[string]*memAlert),
		recipients: make(map[models.RecipientKind][]models.Recipient),
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close(context.Context) error { return nil }

// sortedLocked returns alerts newest first. Caller holds mu.
func (s *MemoryStore) sortedLocked() []*memAlert {
	out := make([]*memAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].alert.CreatedAt.Equal(out[j].alert.CreatedAt) {
			return out[i].alert.CreatedAt.After(out[j].alert.CreatedAt)
		}
		return out[i].seq > out[j].seq
	})
	return out
}

// FindNewestUnprocessed implements Store.
func (s *MemoryStore) FindNewestUnprocessed(context.Context) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailFind != nil {
		return nil, s.FailFind
	}
	for _, a := range s.sortedLocked() {
		if !a.alert.CreatedContract && !a.alert.DeadLettered {
			cp := a.alert
			return &cp, nil
		}
	}
	return nil, nil
}

// MarkProcessed implements Store.
func (s *MemoryStore) MarkProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markCalls++
	if s.FailMark != nil {
		return s.FailMark
	}
	a, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	a.alert.CreatedContract = true
	a.alert.SyncError = ""
	return nil
}

// MarkDeadLettered implements Store.
func (s *MemoryStore) MarkDeadLettered(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDeadLetter != nil {
		return s.FailDeadLetter
	}
	a, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	a.alert.DeadLettered = true
	a.alert.SyncError = reason
	return nil
}

// RequeueAlert implements Repository.
func (s *MemoryStore) RequeueAlert(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	if !a.alert.DeadLettered {
		return ErrNotDeadLettered
	}
	a.alert.DeadLettered = false
	a.alert.SyncError = ""
	return nil
}

// MarkCalls reports how many times MarkProcessed was called.
func (s *MemoryStore) MarkCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markCalls
}

func (s *MemoryStore) lookupLocked(id string) (*memAlert, error) {
	if _, err := parseID(id); err != nil {
		return nil, err
	}
	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// InsertAlert implements Repository.
func (s *MemoryStore) InsertAlert(_ context.Context, alert *models.Alert) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *alert
	cp.ID = primitive.NewObjectID().Hex()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.seq++
	s.alerts[cp.ID] = &memAlert{alert: cp, seq: s.seq}
	return cp.ID, nil
}

// GetAlert implements Repository.
func (s *MemoryStore) GetAlert(_ context.Context, id string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	cp := a.alert
	return &cp, nil
}

// ListAlerts implements Repository.
func (s *MemoryStore) ListAlerts(_ context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Alert, 0)
	skipped := 0
	limit := clampLimit(filter.Limit)
	for _, a := range s.sortedLocked() {
		if filter.Processed != nil && a.alert.CreatedContract != *filter.Processed {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, a.alert)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// DeleteAlert implements Repository.
func (s *MemoryStore) DeleteAlert(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookupLocked(id); err != nil {
		return err
	}
	delete(s.alerts, id)
	return nil
}

// CountAlerts implements Repository.
func (s *MemoryStore) CountAlerts(context.Context) (models.AlertCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c models.AlertCounts
	for _, a := range s.alerts {
		c.Total++
		switch {
		case a.alert.CreatedContract:
			c.Processed++
		case a.alert.DeadLettered:
			c.DeadLettered++
		default:
			c.Pending++
		}
	}
	return c, nil
}

// AddRecipient implements Directory.
func (s *MemoryStore) AddRecipient(_ context.Context, r *models.Recipient) (string, error) {
	if !r.Kind.Valid() {
		return "", fmt.Errorf("alertstore: unknown recipient kind %q", r.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	cp.ID = primitive.NewObjectID().Hex()
	cp.CreatedAt = time.Now().UTC()
	s.recipients[r.Kind] = append(s.recipients[r.Kind], cp)
	return cp.ID, nil
}

// ListRecipients implements Directory.
func (s *MemoryStore) ListRecipients(_ context.Context, kind models.RecipientKind) ([]models.Recipient, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("alertstore: unknown recipient kind %q", kind)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Recipient, len(s.recipients[kind]))
	copy(out, s.recipients[kind])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ Repository = (*MemoryStore)(nil)
	_ Directory  = (*MemoryStore)(nil)
)
