// Package config provides a reusable loader for the indexer's configuration,
// read once at process startup from the environment (and, for local
// development, a .env file). It mirrors the shape of the wider Synnergy
// codebase's pkg/config: a typed struct, loaded with viper, with
// environment variables always taking precedence.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/apestrong/amm-indexer/pkg/obserr"
)

// Database holds the relational-store connection settings.
type Database struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Solana holds the ledger RPC/WebSocket endpoints. The field name mirrors
// spec.md's SOLANA_RPC_URL / SOLANA_WS_URL environment variables; the
// indexer core itself treats the ledger as an opaque transport.
type Solana struct {
	RPCURL string `mapstructure:"rpc_url"`
	WSURL  string `mapstructure:"ws_url"`
}

// Reconnect holds the Subscription Client's exponential-backoff policy.
type Reconnect struct {
	MaxAttempts int           `mapstructure:"max_attempts"` // 0 = unlimited
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// Backfill holds the Backfill Client's pagination settings.
type Backfill struct {
	MaxSignaturesPerRequest int `mapstructure:"max_signatures_per_request"`
	// InitialBackfillSlots is informative metadata carried for operator
	// visibility; the underlying RPC pages by count, not by slot range, so
	// this value is never read by the fetch path. See SPEC_FULL.md.
	InitialBackfillSlots uint64 `mapstructure:"initial_backfill_slots"`
}

// Config is the unified, process-wide configuration for one indexer run.
type Config struct {
	Database  Database  `mapstructure:"database"`
	Solana    Solana    `mapstructure:"solana"`
	Reconnect Reconnect `mapstructure:"reconnect"`
	Backfill  Backfill  `mapstructure:"backfill"`
	LogLevel  string    `mapstructure:"log_level"`
}

// rawConfig is the shape viper actually unmarshals into: environment
// variables carry plain integers (milliseconds, seconds) rather than
// Go duration literals, so the millisecond/second fields are normalized
// into time.Duration after Unmarshal rather than via a decode hook.
type rawConfig struct {
	Database struct {
		URL                string `mapstructure:"url"`
		MaxConnections     int    `mapstructure:"max_connections"`
		ConnectTimeoutSecs int    `mapstructure:"connect_timeout_seconds"`
	} `mapstructure:"database"`
	Solana struct {
		RPCURL string `mapstructure:"rpc_url"`
		WSURL  string `mapstructure:"ws_url"`
	} `mapstructure:"solana"`
	Reconnect struct {
		MaxAttempts int `mapstructure:"max_attempts"`
		BaseDelayMS int `mapstructure:"base_delay_ms"`
		MaxDelayMS  int `mapstructure:"max_delay_ms"`
	} `mapstructure:"reconnect"`
	Backfill struct {
		MaxSignaturesPerRequest int    `mapstructure:"max_signatures_per_request"`
		InitialBackfillSlots    uint64 `mapstructure:"initial_backfill_slots"`
	} `mapstructure:"backfill"`
	LogLevel string `mapstructure:"log_level"`
}

// envBindings maps every mapstructure key viper unmarshals from to the
// literal environment variable spec.md §6 names for it. BindEnv is used
// instead of bare AutomaticEnv because the key names (dotted, lower-case)
// and the environment variable names (underscored, upper-case) don't
// auto-translate the way a flat config would.
var envBindings = map[string]string{
	"database.url":                        "DATABASE_URL",
	"database.max_connections":            "DATABASE_MAX_CONNECTIONS",
	"database.connect_timeout_seconds":    "DATABASE_CONNECT_TIMEOUT",
	"solana.rpc_url":                      "SOLANA_RPC_URL",
	"solana.ws_url":                       "SOLANA_WS_URL",
	"reconnect.max_attempts":              "RECONNECT_MAX_ATTEMPTS",
	"reconnect.base_delay_ms":             "RECONNECT_BASE_DELAY_MS",
	"reconnect.max_delay_ms":              "RECONNECT_MAX_DELAY_MS",
	"backfill.max_signatures_per_request": "BACKFILL_MAX_SIGNATURES",
	"backfill.initial_backfill_slots":     "BACKFILL_INITIAL_SLOTS",
	"log_level":                           "LOG_LEVEL",
}

// Load builds a Config from environment variables, applying the defaults
// spec.md §4.4–§6 call for. DATABASE_URL, SOLANA_RPC_URL, and SOLANA_WS_URL
// are required; their absence is a PermanentFatalStartup error.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.connect_timeout_seconds", 30)
	v.SetDefault("reconnect.max_attempts", 0)
	v.SetDefault("reconnect.base_delay_ms", 500)
	v.SetDefault("reconnect.max_delay_ms", 30000)
	v.SetDefault("backfill.max_signatures_per_request", 100)
	v.SetDefault("backfill.initial_backfill_slots", uint64(10_000))
	v.SetDefault("log_level", "info")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, obserr.Classify(obserr.KindFatalStartup, obserr.Wrap(err, fmt.Sprintf("config: bind %s", env)))
		}
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, obserr.Classify(obserr.KindFatalStartup, obserr.Wrap(err, "config: unmarshal"))
	}

	if raw.Database.URL == "" {
		return nil, obserr.New(obserr.KindFatalStartup, "DATABASE_URL is required")
	}
	if raw.Solana.RPCURL == "" {
		return nil, obserr.New(obserr.KindFatalStartup, "SOLANA_RPC_URL is required")
	}
	if raw.Solana.WSURL == "" {
		return nil, obserr.New(obserr.KindFatalStartup, "SOLANA_WS_URL is required")
	}

	cfg := &Config{
		Database: Database{
			URL:            raw.Database.URL,
			MaxConnections: raw.Database.MaxConnections,
			ConnectTimeout: time.Duration(raw.Database.ConnectTimeoutSecs) * time.Second,
		},
		Solana: Solana{
			RPCURL: raw.Solana.RPCURL,
			WSURL:  raw.Solana.WSURL,
		},
		Reconnect: Reconnect{
			MaxAttempts: raw.Reconnect.MaxAttempts,
			BaseDelay:   time.Duration(raw.Reconnect.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(raw.Reconnect.MaxDelayMS) * time.Millisecond,
		},
		Backfill: Backfill{
			MaxSignaturesPerRequest: raw.Backfill.MaxSignaturesPerRequest,
			InitialBackfillSlots:    raw.Backfill.InitialBackfillSlots,
		},
		LogLevel: raw.LogLevel,
	}

	if cfg.Database.MaxConnections < 5 {
		cfg.Database.MaxConnections = 5
	}

	return cfg, nil
}

// String renders the configuration with secrets redacted, safe for a
// startup log line.
func (c *Config) String() string {
	return fmt.Sprintf(
		"database{max_connections=%d connect_timeout=%s} solana{rpc=%s ws=%s} reconnect{base=%s max=%s attempts=%d} backfill{page=%d}",
		c.Database.MaxConnections, c.Database.ConnectTimeout,
		c.Solana.RPCURL, c.Solana.WSURL,
		c.Reconnect.BaseDelay, c.Reconnect.MaxDelay, c.Reconnect.MaxAttempts,
		c.Backfill.MaxSignaturesPerRequest,
	)
}
