// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package config loads CaseLedger configuration with koanf.
//
// Values are layered, lowest precedence first:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/caseledger/config.yaml)
//  3. Environment variables (see envTransformFunc for the full mapping)
package config

import "time"

// Backend modes shared by the store and ledger sections.
const (
	ModeMongo    = "mongo"
	ModeEthereum = "eth"
	ModeMemory   = "memory"
)

// Config is the complete application configuration.
type Config struct {
	Store      StoreConfig      `koanf:"store"`
	Ledger     LedgerConfig     `koanf:"ledger"`
	Sync       SyncConfig       `koanf:"sync"`
	Intent     IntentConfig     `koanf:"intent"`
	Breaker    BreakerConfig    `koanf:"breaker"`
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Mail       MailConfig       `koanf:"mail"`
	IPFS       IPFSConfig       `koanf:"ipfs"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// StoreConfig describes the alert document store written by the detectors.
type StoreConfig struct {
	Mode                  string        `koanf:"mode"` // mongo or memory
	URI                   string        `koanf:"uri"`
	Database              string        `koanf:"database"`
	AlertsCollection      string        `koanf:"alerts_collection"`
	ResidentsCollection   string        `koanf:"residents_collection"`
	AuthoritiesCollection string        `koanf:"authorities_collection"`
	ConnectTimeout        time.Duration `koanf:"connect_timeout"`
	OperationTimeout      time.Duration `koanf:"operation_timeout"`
}

// LedgerConfig describes the case contract and the signing identity.
type LedgerConfig struct {
	Mode            string `koanf:"mode"` // eth or memory
	RPCURL          string `koanf:"rpc_url"`
	ContractAddress string `koanf:"contract_address"`
	PrivateKey      string `koanf:"private_key"` // hex, with or without 0x
	ChainID         int64  `koanf:"chain_id"`    // 0 = ask the node

	// ConfirmTimeout bounds how long a cycle waits for one transaction.
	ConfirmTimeout      time.Duration `koanf:"confirm_timeout"`
	ReceiptPollInterval time.Duration `koanf:"receipt_poll_interval"`
	CallTimeout         time.Duration `koanf:"call_timeout"`
	GasLimit            uint64        `koanf:"gas_limit"` // 0 = estimate
}

// SyncConfig controls the alert-to-case loop.
type SyncConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Interval    time.Duration `koanf:"interval"`     // delay after each cycle completes
	MaxAttempts int           `koanf:"max_attempts"` // contract rejections before an alert is dead-lettered
}

// IntentConfig locates the BadgerDB intent log.
type IntentConfig struct {
	Path         string        `koanf:"path"`
	SyncWrites   bool          `koanf:"sync_writes"`
	CompletedTTL time.Duration `koanf:"completed_ttl"`
	GCInterval   time.Duration `koanf:"gc_interval"`
	GCRatio      float64       `koanf:"gc_ratio"`
}

// BreakerConfig tunes the circuit breakers around the ledger and IPFS.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"` // trial requests allowed while half-open
	Interval     time.Duration `koanf:"interval"`     // closed-state counter reset
	Timeout      time.Duration `koanf:"timeout"`      // open -> half-open
	FailureRatio float64       `koanf:"failure_ratio"`
	MinRequests  uint32        `koanf:"min_requests"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
}

// SecurityConfig holds CORS and rate limiting for the API.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// MailConfig holds SMTP settings for resident and authority broadcasts.
type MailConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	From         string        `koanf:"from"`
	FromName     string        `koanf:"from_name"`
	UseTLS       bool          `koanf:"use_tls"` // implicit TLS (465); STARTTLS is used otherwise when offered
	Timeout      time.Duration `koanf:"timeout"`
	SendRate     float64       `koanf:"send_rate"` // messages per second
	TemplatePath string        `koanf:"template_path"`
}

// IPFSConfig holds Pinata pinning credentials.
type IPFSConfig struct {
	Enabled    bool          `koanf:"enabled"`
	APIURL     string        `koanf:"api_url"`
	GatewayURL string        `koanf:"gateway_url"`
	JWT        string        `koanf:"jwt"`
	APIKey     string        `koanf:"api_key"`
	APISecret  string        `koanf:"api_secret"`
	Timeout    time.Duration `koanf:"timeout"`
}

// SupervisorConfig mirrors suture.Spec failure handling.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig is passed to logging.Init.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

// HasIPFSCredentials reports whether either JWT or key/secret auth is set.
func (c IPFSConfig) HasIPFSCredentials() bool {
	return c.JWT != "" || (c.APIKey != "" && c.APISecret != "")
}
