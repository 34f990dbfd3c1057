// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSyncCycle(t *testing.T) {
	before := testutil.ToFloat64(SyncCycles.WithLabelValues("created"))

	RecordSyncCycle("created", 3*time.Second, nil)

	if got := testutil.ToFloat64(SyncCycles.WithLabelValues("created")); got != before+1 {
		t.Errorf("created cycles = %v, want %v", got, before+1)
	}
	if testutil.ToFloat64(SyncLastSuccess) == 0 {
		t.Error("last success timestamp not set")
	}
}

func TestRecordSyncCycleFailureKeepsLastSuccess(t *testing.T) {
	SyncLastSuccess.Set(42)

	RecordSyncCycle("failed", time.Second, errors.New("reverted"))

	if got := testutil.ToFloat64(SyncLastSuccess); got != 42 {
		t.Errorf("last success = %v, failed cycle must not move it", got)
	}
}

func TestRecordTxFailure(t *testing.T) {
	c := LedgerTxFailures.WithLabelValues("createCase", "reverted")
	before := testutil.ToFloat64(c)

	RecordTxFailure("createCase", "reverted")

	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("failures = %v, want %v", got, before+1)
	}
}

func TestRecordMailDelivery(t *testing.T) {
	ok := MailDeliveries.WithLabelValues("authority", "success")
	bad := MailDeliveries.WithLabelValues("authority", "failure")
	okBefore, badBefore := testutil.ToFloat64(ok), testutil.ToFloat64(bad)

	RecordMailDelivery("authority", nil)
	RecordMailDelivery("authority", errors.New("550 mailbox unavailable"))

	if testutil.ToFloat64(ok) != okBefore+1 || testutil.ToFloat64(bad) != badBefore+1 {
		t.Error("mail delivery counters not incremented")
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if testutil.ToFloat64(APIActiveRequests) != before+1 {
		t.Error("gauge not incremented")
	}
	TrackActiveRequest(false)
	if testutil.ToFloat64(APIActiveRequests) != before {
		t.Error("gauge not decremented")
	}
}
