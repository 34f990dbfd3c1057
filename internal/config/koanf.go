// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/caseledger/config.yaml",
	"/etc/caseledger/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Mode:                  ModeMongo,
			URI:                   "mongodb://localhost:27017",
			Database:              "cctv",
			AlertsCollection:      "alerts",
			ResidentsCollection:   "residents",
			AuthoritiesCollection: "authorities",
			ConnectTimeout:        10 * time.Second,
			OperationTimeout:      10 * time.Second,
		},
		Ledger: LedgerConfig{
			Mode:                ModeEthereum,
			RPCURL:              "http://127.0.0.1:8545",
			ConfirmTimeout:      2 * time.Minute,
			ReceiptPollInterval: 2 * time.Second,
			CallTimeout:         15 * time.Second,
		},
		Sync: SyncConfig{
			Enabled:     true,
			Interval:    5 * time.Second,
			MaxAttempts: 5,
		},
		Intent: IntentConfig{
			Path:         "/data/intents",
			SyncWrites:   true,
			CompletedTTL: 30 * 24 * time.Hour,
			GCInterval:   10 * time.Minute,
			GCRatio:      0.5,
		},
		Breaker: BreakerConfig{
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			FailureRatio: 0.6,
			MinRequests:  10,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  100 << 20,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Mail: MailConfig{
			Port:     587,
			FromName: "CCTV Alert System",
			Timeout:  30 * time.Second,
			SendRate: 5,
		},
		IPFS: IPFSConfig{
			APIURL:     "https://api.pinata.cloud",
			GatewayURL: "https://ipfs.io/ipfs",
			Timeout:    2 * time.Minute,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the first config file found
// and the environment, then validates it.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path ("" skips the file layer).
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// MONGODB_URI -> store.uri, SYNC_INTERVAL -> sync.interval, ...
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			continue
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings is the complete list of recognised environment variables.
// Anything not listed is ignored so unrelated variables cannot leak in.
var envMappings = map[string]string{
	// Alert store
	"store_mode":                   "store.mode",
	"mongodb_uri":                  "store.uri",
	"mongodb_database":             "store.database",
	"mongodb_alerts_collection":    "store.alerts_collection",
	"mongodb_residents_collection": "store.residents_collection",
	"mongodb_authority_collection": "store.authorities_collection",
	"mongodb_connect_timeout":      "store.connect_timeout",
	"mongodb_operation_timeout":    "store.operation_timeout",

	// Ledger
	"ledger_mode":                  "ledger.mode",
	"ledger_rpc_url":               "ledger.rpc_url",
	"ledger_contract_address":      "ledger.contract_address",
	"ledger_private_key":           "ledger.private_key",
	"ledger_chain_id":              "ledger.chain_id",
	"ledger_confirm_timeout":       "ledger.confirm_timeout",
	"ledger_receipt_poll_interval": "ledger.receipt_poll_interval",
	"ledger_call_timeout":          "ledger.call_timeout",
	"ledger_gas_limit":             "ledger.gas_limit",

	// Sync loop
	"sync_enabled":      "sync.enabled",
	"sync_interval":     "sync.interval",
	"sync_max_attempts": "sync.max_attempts",

	// Intent log
	"intent_path":          "intent.path",
	"intent_sync_writes":   "intent.sync_writes",
	"intent_completed_ttl": "intent.completed_ttl",
	"intent_gc_interval":   "intent.gc_interval",
	"intent_gc_ratio":      "intent.gc_ratio",

	// Circuit breaker
	"breaker_max_requests":  "breaker.max_requests",
	"breaker_interval":      "breaker.interval",
	"breaker_timeout":       "breaker.timeout",
	"breaker_failure_ratio": "breaker.failure_ratio",
	"breaker_min_requests":  "breaker.min_requests",

	// HTTP server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"max_upload_bytes":      "server.max_upload_bytes",

	// API security
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Mail
	"smtp_enabled":       "mail.enabled",
	"smtp_host":          "mail.host",
	"smtp_port":          "mail.port",
	"smtp_username":      "mail.username",
	"smtp_password":      "mail.password",
	"smtp_from":          "mail.from",
	"smtp_from_name":     "mail.from_name",
	"smtp_use_tls":       "mail.use_tls",
	"smtp_timeout":       "mail.timeout",
	"mail_send_rate":     "mail.send_rate",
	"mail_template_path": "mail.template_path",

	// IPFS pinning
	"ipfs_enabled":       "ipfs.enabled",
	"pinata_api_url":     "ipfs.api_url",
	"ipfs_gateway_url":   "ipfs.gateway_url",
	"pinata_jwt":         "ipfs.jwt",
	"pinata_api_key":     "ipfs.api_key",
	"pinata_secret_key":  "ipfs.api_secret",
	"pinata_timeout":     "ipfs.timeout",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path, or
// "" to skip it.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
