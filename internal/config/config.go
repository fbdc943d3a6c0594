// Package config defines the top-level configuration for the arena daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARENA_* environment variables.
type Config struct {
	Arena    ArenaConfig    `toml:"arena"`
	Roster   RosterConfig   `toml:"roster"`
	Chain    ChainConfig    `toml:"chain"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ArenaConfig holds match-cycle timing and funding parameters.
type ArenaConfig struct {
	BettingWindow     duration `toml:"betting_window"`
	BettingExtension  duration `toml:"betting_extension"`
	PoolMinimum       float64  `toml:"pool_minimum"`
	PoolReadyGrace    duration `toml:"pool_ready_grace"`
	FightRounds       int      `toml:"fight_rounds"`
	RoundDuration     duration `toml:"round_duration"`
	RoundPause        duration `toml:"round_pause"`
	TickInterval      duration `toml:"tick_interval"`
	ResultDuration    duration `toml:"result_duration"`
	CooldownDuration  duration `toml:"cooldown_duration"`
	WaitingRetryDelay duration `toml:"waiting_retry_delay"`
	WinnerReward      float64  `toml:"winner_reward"`
}

// RosterConfig holds fighter selection parameters.
type RosterConfig struct {
	// RequireRealAgents selects the strict policy: never fall back to the
	// synthetic roster when no eligible registered agents exist.
	RequireRealAgents bool     `toml:"require_real_agents"`
	CacheTTL          duration `toml:"cache_ttl"`
}

// ChainConfig holds ledger contract and operator signer parameters.
type ChainConfig struct {
	Enabled          bool     `toml:"enabled"`
	RPCURL           string   `toml:"rpc_url"`
	ContractAddress  string   `toml:"contract_address"`
	ChainID          int64    `toml:"chain_id"`
	PrivateKey       string   `toml:"private_key"`
	EncryptedKeyPath string   `toml:"encrypted_key_path"`
	KeyPassword      string   `toml:"key_password"`
	MaxAttempts      int      `toml:"max_attempts"`
	RetryBackoff     duration `toml:"retry_backoff"`
	SendTimeout      duration `toml:"send_timeout"`
	ConfirmTimeout   duration `toml:"confirm_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// BetRateLimit bounds POST /api/bets requests per address per minute.
	BetRateLimit int `toml:"bet_rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Arena: ArenaConfig{
			BettingWindow:     duration{60 * time.Second},
			BettingExtension:  duration{30 * time.Second},
			PoolMinimum:       100,
			PoolReadyGrace:    duration{3 * time.Second},
			FightRounds:       3,
			RoundDuration:     duration{60 * time.Second},
			RoundPause:        duration{5 * time.Second},
			TickInterval:      duration{time.Second},
			ResultDuration:    duration{10 * time.Second},
			CooldownDuration:  duration{15 * time.Second},
			WaitingRetryDelay: duration{30 * time.Second},
			WinnerReward:      50,
		},
		Roster: RosterConfig{
			RequireRealAgents: true,
			CacheTTL:          duration{30 * time.Second},
		},
		Chain: ChainConfig{
			Enabled:        false,
			ChainID:        84532, // Base Sepolia
			MaxAttempts:    3,
			RetryBackoff:   duration{2 * time.Second},
			SendTimeout:    duration{15 * time.Second},
			ConfirmTimeout: duration{45 * time.Second},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arena",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arena-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:      true,
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			BetRateLimit: 30,
		},
		Notify: NotifyConfig{
			Events: []string{"match_started", "match_result", "chain_error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"arena":  true,
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: arena, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Arena timings
	if c.Arena.BettingWindow.Duration <= 0 {
		errs = append(errs, "arena: betting_window must be positive")
	}
	if c.Arena.BettingExtension.Duration <= 0 {
		errs = append(errs, "arena: betting_extension must be positive")
	}
	if c.Arena.PoolMinimum < 0 {
		errs = append(errs, "arena: pool_minimum must not be negative")
	}
	if c.Arena.FightRounds < 1 {
		errs = append(errs, "arena: fight_rounds must be >= 1")
	}
	if c.Arena.RoundDuration.Duration <= 0 {
		errs = append(errs, "arena: round_duration must be positive")
	}
	if c.Arena.TickInterval.Duration <= 0 {
		errs = append(errs, "arena: tick_interval must be positive")
	}

	// Chain: signer and endpoint are required when enabled.
	if c.Chain.Enabled {
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url is required when chain is enabled")
		}
		if c.Chain.ContractAddress == "" {
			errs = append(errs, "chain: contract_address is required when chain is enabled")
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, "chain: chain_id must be positive")
		}
		if c.Chain.PrivateKey == "" && c.Chain.EncryptedKeyPath == "" {
			errs = append(errs, "chain: either private_key or encrypted_key_path must be set")
		}
		if c.Chain.EncryptedKeyPath != "" && c.Chain.KeyPassword == "" {
			errs = append(errs, "chain: key_password is required when encrypted_key_path is set")
		}
		if c.Chain.MaxAttempts < 1 {
			errs = append(errs, "chain: max_attempts must be >= 1")
		}
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archive needs S3 when enabled.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
