// Package config loads the application configuration from a YAML file,
// overlaid by TRANSMAIL_-prefixed environment variables and an optional
// .env file.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ncastellanos/transmail/internal/classify"
	"github.com/ncastellanos/transmail/internal/normalize"
)

// Config holds all settings for one invocation.
type Config struct {
	DatabasePath string `mapstructure:"database_path"`
	LookbackDays int    `mapstructure:"lookback_days"`

	Gmail  GmailConfig  `mapstructure:"gmail"`
	Ledger LedgerConfig `mapstructure:"ledger"`

	// Accounts maps a bank instrument identifier (the last digits printed in
	// notification emails) to the ledger account it reconciles into.
	Accounts map[string]string `mapstructure:"accounts"`

	// Rules are payee normalization rules, applied in listed order.
	Rules []normalize.RuleSpec `mapstructure:"rules"`

	Retry RetryConfig `mapstructure:"retry"`
}

// GmailConfig locates the OAuth material for the mailbox.
type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
}

// LedgerConfig holds the budgeting ledger credentials. Token and BudgetID
// are required for reconciliation but not for ingestion.
type LedgerConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Token    string `mapstructure:"token"`
	BudgetID string `mapstructure:"budget_id"`
}

// RetryConfig bounds the backoff applied to ledger submissions.
type RetryConfig struct {
	MaxRetries      uint64        `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

// Policy converts the configured bounds into the classifier's retry policy.
func (r RetryConfig) Policy() classify.RetryConfig {
	return classify.RetryConfig{
		MaxRetries:      r.MaxRetries,
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
		Multiplier:      r.Multiplier,
	}
}

// MyInstruments returns the instrument identifiers the user has mapped,
// sorted for deterministic parser construction. Transfers between two of
// these are the user's own internal moves.
func (c *Config) MyInstruments() []string {
	instruments := make([]string, 0, len(c.Accounts))
	for instrument := range c.Accounts {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)
	return instruments
}

// ValidateLedger checks the settings reconciliation cannot run without.
// Ingestion intentionally skips this so a partial config still collects
// transactions.
func (c *Config) ValidateLedger() error {
	var missing []string
	if c.Ledger.Token == "" {
		missing = append(missing, "ledger.token")
	}
	if c.Ledger.BudgetID == "" {
		missing = append(missing, "ledger.budget_id")
	}
	if len(missing) > 0 {
		return classify.NewError(classify.KindConfiguration, "config.validate",
			fmt.Sprintf("missing required settings: %s", strings.Join(missing, ", ")))
	}
	return nil
}
