// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync loop
	SyncCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseledger_sync_cycles_total",
			Help: "Sync cycles by outcome",
		},
		[]string{"outcome"}, // idle, created, recovered, failed, dead_lettered
	)

	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "caseledger_sync_cycle_duration_seconds",
			Help: "Wall time of one sync cycle, including confirmation wait",
			// Block times dominate: seconds to minutes.
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseledger_sync_errors_total",
			Help: "Sync errors by the step that failed",
		},
		[]string{"stage"}, // store_query, submit, confirm, store_update, intent, dead_letter, panic
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "caseledger_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last cycle that finished without error",
		},
	)

	// Ledger transactions
	LedgerTxSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseledger_ledger_tx_submitted_total",
			Help: "Transactions submitted to the case contract",
		},
		[]string{"method"},
	)

	LedgerTxFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseledger_ledger_tx_failures_total",
			Help: "Transactions that failed to submit or confirm",
		},
		[]string{"method", "reason"}, // reason: submit, reverted, timeout, error
	)

	LedgerConfirmDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caseledger_ledger_confirm_duration_seconds",
			Help:    "Time from submission until the receipt was observed",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		},
	)

	LedgerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caseledger_ledger_call_duration_seconds",
			Help:    "Duration of read-only contract calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Notifications and uploads
	MailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseledger_mail_deliveries_total",
			Help: "Alert emails by audience and result",
		},
		[]string{"audience", "result"},
	)

	IPFSUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseledger_ipfs_uploads_total",
			Help: "Files pinned to IPFS by result",
		},
		[]string{"result"},
	)

	IPFSUploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caseledger_ipfs_upload_bytes",
			Help:    "Size of pinned files",
			Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8), // 64KiB .. 1GiB
		},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 120},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordSyncCycle records one finished cycle.
func RecordSyncCycle(outcome string, duration time.Duration, err error) {
	SyncCycles.WithLabelValues(outcome).Inc()
	SyncCycleDuration.Observe(duration.Seconds())
	if err == nil {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordSyncError counts a failure at stage.
func RecordSyncError(stage string) {
	SyncErrors.WithLabelValues(stage).Inc()
}

// RecordTxSubmitted counts a submitted contract transaction.
func RecordTxSubmitted(method string) {
	LedgerTxSubmitted.WithLabelValues(method).Inc()
}

// RecordTxFailure counts a transaction failure.
func RecordTxFailure(method, reason string) {
	LedgerTxFailures.WithLabelValues(method, reason).Inc()
}

// RecordTxConfirmed observes the wait between submission and receipt.
func RecordTxConfirmed(wait time.Duration) {
	LedgerConfirmDuration.Observe(wait.Seconds())
}

// RecordLedgerCall observes a read-only contract call.
func RecordLedgerCall(method string, duration time.Duration) {
	LedgerCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordMailDelivery counts one email to audience.
func RecordMailDelivery(audience string, err error) {
	MailDeliveries.WithLabelValues(audience, resultLabel(err)).Inc()
}

// RecordIPFSUpload counts an upload and, on success, its size.
func RecordIPFSUpload(size int64, err error) {
	IPFSUploads.WithLabelValues(resultLabel(err)).Inc()
	if err == nil {
		IPFSUploadBytes.Observe(float64(size))
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
