// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package intent

import (
	"context"
	"time"

	"github.com/tomtom215/caseledger/internal/logging"
)

// Compactor periodically runs value log GC and refreshes the gauges.
// It satisfies suture.Service.
type Compactor struct {
	log      *BadgerLog
	interval time.Duration
}

// NewCompactor returns a compactor for l. A non-positive interval falls
// back to ten minutes.
func NewCompactor(l *BadgerLog, interval time.Duration) *Compactor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Compactor{log: l, interval: interval}
}

// Serve runs until ctx is canceled.
func (c *Compactor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", c.interval).Msg("Intent compactor started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Intent compactor stopped")
			return ctx.Err()
		case <-ticker.C:
			c.compact()
		}
	}
}

func (c *Compactor) compact() {
	if err := c.log.RunGC(); err != nil {
		logging.Error().Err(err).Msg("Intent log GC failed")
		return
	}
	stats := c.log.Stats()
	logging.Debug().
		Int64("unresolved", stats.Unresolved).
		Int64("resolved", stats.Resolved).
		Int64("db_size_bytes", stats.DBSizeBytes).
		Msg("Intent log compacted")
}

// String implements fmt.Stringer for suture logs.
func (c *Compactor) String() string { return "intent-compactor" }
