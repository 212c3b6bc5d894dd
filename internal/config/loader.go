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
// built-in defaults, applies MARKETSYNC_* environment variable overrides, and
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

// applyEnvOverrides reads well-known MARKETSYNC_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "MARKETSYNC_DATABASE_DSN")
	setStr(&cfg.Database.Host, "MARKETSYNC_DATABASE_HOST")
	setInt(&cfg.Database.Port, "MARKETSYNC_DATABASE_PORT")
	setStr(&cfg.Database.Database, "MARKETSYNC_DATABASE_NAME")
	setStr(&cfg.Database.User, "MARKETSYNC_DATABASE_USER")
	setStr(&cfg.Database.Password, "MARKETSYNC_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "MARKETSYNC_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "MARKETSYNC_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "MARKETSYNC_DATABASE_POOL_MIN_CONNS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MARKETSYNC_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETSYNC_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETSYNC_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARKETSYNC_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARKETSYNC_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARKETSYNC_REDIS_TLS_ENABLED")

	// ── Realtime ──
	setStr(&cfg.Realtime.WsURL, "MARKETSYNC_REALTIME_WS_URL")
	setStr(&cfg.Realtime.ApiKey, "MARKETSYNC_REALTIME_API_KEY")

	// ── External ──
	setStr(&cfg.External.BaseURL, "MARKETSYNC_EXTERNAL_BASE_URL")
	setDuration(&cfg.External.Timeout, "MARKETSYNC_EXTERNAL_TIMEOUT")

	// ── Analytics ──
	setStr(&cfg.Analytics.BaseURL, "MARKETSYNC_ANALYTICS_BASE_URL")
	setDuration(&cfg.Analytics.Timeout, "MARKETSYNC_ANALYTICS_TIMEOUT")
	setDuration(&cfg.Analytics.RefreshInterval, "MARKETSYNC_ANALYTICS_REFRESH_INTERVAL")
	setStr(&cfg.Analytics.Timeframe, "MARKETSYNC_ANALYTICS_TIMEFRAME")

	// ── Watch ──
	setStringSlice(&cfg.Watch.Listings, "MARKETSYNC_WATCH_LISTINGS")
	setStringSlice(&cfg.Watch.Auctions, "MARKETSYNC_WATCH_AUCTIONS")
	setStringSlice(&cfg.Watch.SignalListings, "MARKETSYNC_WATCH_SIGNAL_LISTINGS")
	setInt(&cfg.Watch.BookDepth, "MARKETSYNC_WATCH_BOOK_DEPTH")
	setInt(&cfg.Watch.TapeCapacity, "MARKETSYNC_WATCH_TAPE_CAPACITY")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MARKETSYNC_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MARKETSYNC_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MARKETSYNC_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MARKETSYNC_MODE")
	setStr(&cfg.LogLevel, "MARKETSYNC_LOG_LEVEL")
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
