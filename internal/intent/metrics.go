// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package intent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	intentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_transitions_total",
		Help: "Intent record writes by resulting state",
	}, []string{"state"})

	intentUnresolved = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intent_unresolved_records",
		Help: "Intent records not yet completed or dead-lettered",
	})

	intentDBSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intent_db_size_bytes",
		Help: "BadgerDB intent log size in bytes",
	})

	intentGCRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intent_gc_runs_total",
		Help: "Value log garbage collection runs",
	})

	intentGCLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intent_gc_latency_seconds",
		Help:    "Value log garbage collection latency in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

func recordTransition(s State) {
	intentTransitions.WithLabelValues(string(s)).Inc()
}

func recordGC(d time.Duration) {
	intentGCRuns.Inc()
	intentGCLatency.Observe(d.Seconds())
}
