package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARENA_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARENA_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Arena ──
	setDuration(&cfg.Arena.BettingWindow, "ARENA_BETTING_WINDOW")
	setDuration(&cfg.Arena.BettingExtension, "ARENA_BETTING_EXTENSION")
	setFloat64(&cfg.Arena.PoolMinimum, "ARENA_POOL_MINIMUM")
	setDuration(&cfg.Arena.PoolReadyGrace, "ARENA_POOL_READY_GRACE")
	setInt(&cfg.Arena.FightRounds, "ARENA_FIGHT_ROUNDS")
	setDuration(&cfg.Arena.RoundDuration, "ARENA_ROUND_DURATION")
	setDuration(&cfg.Arena.RoundPause, "ARENA_ROUND_PAUSE")
	setDuration(&cfg.Arena.TickInterval, "ARENA_TICK_INTERVAL")
	setDuration(&cfg.Arena.ResultDuration, "ARENA_RESULT_DURATION")
	setDuration(&cfg.Arena.CooldownDuration, "ARENA_COOLDOWN_DURATION")
	setDuration(&cfg.Arena.WaitingRetryDelay, "ARENA_WAITING_RETRY_DELAY")
	setFloat64(&cfg.Arena.WinnerReward, "ARENA_WINNER_REWARD")

	// ── Roster ──
	setBool(&cfg.Roster.RequireRealAgents, "ARENA_ROSTER_REQUIRE_REAL_AGENTS")
	setDuration(&cfg.Roster.CacheTTL, "ARENA_ROSTER_CACHE_TTL")

	// ── Chain ──
	setBool(&cfg.Chain.Enabled, "ARENA_CHAIN_ENABLED")
	setStr(&cfg.Chain.RPCURL, "ARENA_CHAIN_RPC_URL")
	setStr(&cfg.Chain.ContractAddress, "ARENA_CHAIN_CONTRACT_ADDRESS")
	setInt64(&cfg.Chain.ChainID, "ARENA_CHAIN_ID")
	setStr(&cfg.Chain.PrivateKey, "ARENA_CHAIN_PRIVATE_KEY")
	setStr(&cfg.Chain.EncryptedKeyPath, "ARENA_CHAIN_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Chain.KeyPassword, "ARENA_CHAIN_KEY_PASSWORD")
	setInt(&cfg.Chain.MaxAttempts, "ARENA_CHAIN_MAX_ATTEMPTS")
	setDuration(&cfg.Chain.RetryBackoff, "ARENA_CHAIN_RETRY_BACKOFF")
	setDuration(&cfg.Chain.SendTimeout, "ARENA_CHAIN_SEND_TIMEOUT")
	setDuration(&cfg.Chain.ConfirmTimeout, "ARENA_CHAIN_CONFIRM_TIMEOUT")

	// ── Database ──
	setStr(&cfg.Database.DSN, "ARENA_DATABASE_DSN")
	setStr(&cfg.Database.Host, "ARENA_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ARENA_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ARENA_DATABASE_NAME")
	setStr(&cfg.Database.User, "ARENA_DATABASE_USER")
	setStr(&cfg.Database.Password, "ARENA_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ARENA_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "ARENA_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ARENA_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ARENA_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARENA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARENA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARENA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARENA_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARENA_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARENA_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARENA_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARENA_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARENA_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARENA_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARENA_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARENA_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARENA_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ARENA_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "ARENA_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "ARENA_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARENA_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARENA_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARENA_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARENA_SERVER_API_KEY")
	setInt(&cfg.Server.BetRateLimit, "ARENA_SERVER_BET_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARENA_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARENA_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARENA_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARENA_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARENA_MODE")
	setStr(&cfg.LogLevel, "ARENA_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
