// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	hexAddressPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hexPrivateKeyPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)
)

// Validate checks the whole configuration. The first problem found is
// returned, naming the environment variable that controls it.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateStore,
		c.validateLedger,
		c.validateSync,
		c.validateIntent,
		c.validateBreaker,
		c.validateServer,
		c.validateSecurity,
		c.validateMail,
		c.validateIPFS,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Mode {
	case ModeMemory:
		return nil
	case ModeMongo:
	default:
		return fmt.Errorf("STORE_MODE must be %q or %q, got %q", ModeMongo, ModeMemory, c.Store.Mode)
	}

	if !strings.HasPrefix(c.Store.URI, "mongodb://") && !strings.HasPrefix(c.Store.URI, "mongodb+srv://") {
		return fmt.Errorf("MONGODB_URI must start with mongodb:// or mongodb+srv://")
	}
	if c.Store.Database == "" {
		return fmt.Errorf("MONGODB_DATABASE is required")
	}
	if c.Store.AlertsCollection == "" || c.Store.ResidentsCollection == "" || c.Store.AuthoritiesCollection == "" {
		return fmt.Errorf("store collection names must not be empty")
	}
	if c.Store.OperationTimeout <= 0 {
		return fmt.Errorf("MONGODB_OPERATION_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateLedger() error {
	if c.Ledger.ConfirmTimeout <= 0 {
		return fmt.Errorf("LEDGER_CONFIRM_TIMEOUT must be positive")
	}

	switch c.Ledger.Mode {
	case ModeMemory:
		return nil
	case ModeEthereum:
	default:
		return fmt.Errorf("LEDGER_MODE must be %q or %q, got %q", ModeEthereum, ModeMemory, c.Ledger.Mode)
	}

	if err := validateHTTPURL("LEDGER_RPC_URL", c.Ledger.RPCURL, "ws", "wss"); err != nil {
		return err
	}
	if !hexAddressPattern.MatchString(c.Ledger.ContractAddress) {
		return fmt.Errorf("LEDGER_CONTRACT_ADDRESS must be a 0x-prefixed 20-byte hex address")
	}
	if !hexPrivateKeyPattern.MatchString(c.Ledger.PrivateKey) {
		return fmt.Errorf("LEDGER_PRIVATE_KEY must be a 32-byte hex key")
	}
	if c.Ledger.ReceiptPollInterval <= 0 {
		return fmt.Errorf("LEDGER_RECEIPT_POLL_INTERVAL must be positive")
	}
	if c.Ledger.ChainID < 0 {
		return fmt.Errorf("LEDGER_CHAIN_ID must not be negative")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.Interval < 100*time.Millisecond {
		return fmt.Errorf("SYNC_INTERVAL must be at least 100ms, got %v", c.Sync.Interval)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("SYNC_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func (c *Config) validateIntent() error {
	if c.Intent.Path == "" {
		return fmt.Errorf("INTENT_PATH is required")
	}
	if c.Intent.CompletedTTL < time.Hour {
		return fmt.Errorf("INTENT_COMPLETED_TTL must be at least 1h")
	}
	if c.Intent.GCRatio <= 0 || c.Intent.GCRatio >= 1 {
		return fmt.Errorf("INTENT_GC_RATIO must be between 0 and 1 (exclusive)")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	if c.Breaker.Timeout <= 0 {
		return fmt.Errorf("BREAKER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateMail() error {
	if !c.Mail.Enabled {
		return nil
	}
	if c.Mail.Host == "" {
		return fmt.Errorf("SMTP_HOST is required when SMTP_ENABLED=true")
	}
	if c.Mail.Port < 1 || c.Mail.Port > 65535 {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535")
	}
	if !strings.Contains(c.Mail.From, "@") {
		return fmt.Errorf("SMTP_FROM must be an email address")
	}
	if c.Mail.SendRate <= 0 {
		return fmt.Errorf("MAIL_SEND_RATE must be positive")
	}
	return nil
}

func (c *Config) validateIPFS() error {
	if !c.IPFS.Enabled {
		return nil
	}
	if !c.IPFS.HasIPFSCredentials() {
		return fmt.Errorf("PINATA_JWT or PINATA_API_KEY/PINATA_SECRET_KEY required when IPFS_ENABLED=true")
	}
	if err := validateHTTPURL("PINATA_API_URL", c.IPFS.APIURL); err != nil {
		return err
	}
	return validateHTTPURL("IPFS_GATEWAY_URL", c.IPFS.GatewayURL)
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

func validateHTTPURL(name, raw string, extraSchemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", name)
	}
	allowed := append([]string{"http", "https"}, extraSchemes...)
	for _, s := range allowed {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s scheme must be one of %s", name, strings.Join(allowed, ", "))
}
