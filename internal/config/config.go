// Package config defines the top-level configuration for the market sync
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETSYNC_* environment variables.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	Realtime  RealtimeConfig  `toml:"realtime"`
	External  ExternalConfig  `toml:"external"`
	Analytics AnalyticsConfig `toml:"analytics"`
	Watch     WatchConfig     `toml:"watch"`
	Server    ServerConfig    `toml:"server"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the read-only
// snapshot queries.
type DatabaseConfig struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis connection parameters for the view cache and the
// signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// RealtimeConfig holds the change-feed websocket parameters.
type RealtimeConfig struct {
	WsURL  string `toml:"ws_url"`
	ApiKey string `toml:"api_key"`
}

// ExternalConfig holds the external auction source proxy parameters.
type ExternalConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

// AnalyticsConfig holds the analytics API parameters and refresh cadence.
type AnalyticsConfig struct {
	BaseURL         string   `toml:"base_url"`
	Timeout         duration `toml:"timeout"`
	RefreshInterval duration `toml:"refresh_interval"`
	Timeframe       string   `toml:"timeframe"`
}

// WatchConfig selects the listings to watch and the per-listing view sizes.
type WatchConfig struct {
	// Listings get a market watcher each (book, quote, tape).
	Listings []string `toml:"listings"`
	// Auctions get an auction watcher each; a listing may appear in both.
	Auctions []string `toml:"auctions"`
	// SignalListings get an analytics fetcher each.
	SignalListings []string `toml:"signal_listings"`
	BookDepth      int      `toml:"book_depth"`
	TapeCapacity   int      `toml:"tape_capacity"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "postgres",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Realtime: RealtimeConfig{
			WsURL: "ws://localhost:4000/realtime/v1/websocket",
		},
		External: ExternalConfig{
			BaseURL: "http://localhost:8080/api/proxy",
			Timeout: duration{10 * time.Second},
		},
		Analytics: AnalyticsConfig{
			BaseURL:         "http://localhost:8080/api/analytics",
			Timeout:         duration{15 * time.Second},
			RefreshInterval: duration{60 * time.Second},
			Timeframe:       "1d",
		},
		Watch: WatchConfig{
			BookDepth:    10,
			TapeCapacity: 100,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"watch":   true,
	"auction": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validTimeframes enumerates the accepted analytics timeframes.
var validTimeframes = map[string]bool{
	"1h": true, "4h": true, "1d": true, "7d": true, "30d": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, auction, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
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

	// Realtime
	if c.Realtime.WsURL == "" {
		errs = append(errs, "realtime: ws_url must not be empty")
	}

	// External
	if c.External.Timeout.Duration <= 0 {
		errs = append(errs, "external: timeout must be > 0")
	}

	// Analytics
	if c.Analytics.RefreshInterval.Duration <= 0 {
		errs = append(errs, "analytics: refresh_interval must be > 0")
	}
	if !validTimeframes[c.Analytics.Timeframe] {
		errs = append(errs, fmt.Sprintf("analytics: unknown timeframe %q (valid: 1h, 4h, 1d, 7d, 30d)", c.Analytics.Timeframe))
	}

	// Watch
	if c.Watch.BookDepth < 1 {
		errs = append(errs, "watch: book_depth must be >= 1")
	}
	if c.Watch.TapeCapacity < 1 {
		errs = append(errs, "watch: tape_capacity must be >= 1")
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
