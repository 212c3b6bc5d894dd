package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paddockhq/marketsync/internal/analytics"
	"github.com/paddockhq/marketsync/internal/cache/redis"
	"github.com/paddockhq/marketsync/internal/config"
	"github.com/paddockhq/marketsync/internal/domain"
	"github.com/paddockhq/marketsync/internal/extsync"
	"github.com/paddockhq/marketsync/internal/feed"
	"github.com/paddockhq/marketsync/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores (read-only snapshot queries)
	Orders   domain.OrderSnapshotStore
	Trades   domain.TradeHistoryStore
	Quotes   domain.QuoteStore
	Listings domain.ListingStore

	// Cache and bus
	Views domain.ViewCache
	Bus   domain.SignalBus

	// Change-feed
	Feed *feed.RealtimeFeed

	// External clients
	Syncer    extsync.Syncer
	Analytics analytics.Source
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	store := postgres.NewReadStore(pgClient.Pool())
	deps.Orders = store
	deps.Trades = store
	deps.Quotes = store
	deps.Listings = store

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Views = redis.NewViewCache(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)

	// --- Change-feed ---
	deps.Feed = feed.NewRealtimeFeed(cfg.Realtime.WsURL, cfg.Realtime.ApiKey, logger)
	closers = append(closers, deps.Feed.Close)

	// --- External auction source proxy ---
	if cfg.External.BaseURL != "" {
		deps.Syncer = extsync.NewProxyClient(cfg.External.BaseURL, cfg.External.Timeout.Duration)
	}

	// --- Analytics API ---
	if cfg.Analytics.BaseURL != "" {
		deps.Analytics = analytics.NewClient(cfg.Analytics.BaseURL, cfg.Analytics.Timeout.Duration)
	}

	return deps, cleanup, nil
}
