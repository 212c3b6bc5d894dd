package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paddockhq/marketsync/internal/analytics"
	"github.com/paddockhq/marketsync/internal/domain"
	"github.com/paddockhq/marketsync/internal/server"
	"github.com/paddockhq/marketsync/internal/server/handler"
	"github.com/paddockhq/marketsync/internal/server/ws"
	"github.com/paddockhq/marketsync/internal/service"
)

// WatchMode runs the change-feed plus a market watcher per configured listing
// and an analytics fetcher per signal listing.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode",
		slog.Int("listings", len(a.cfg.Watch.Listings)),
	)

	g, ctx := errgroup.WithContext(ctx)

	a.startFeed(ctx, g, deps)
	if err := a.startMarketWatchers(ctx, g, deps); err != nil {
		return fmt.Errorf("watch mode: %w", err)
	}
	a.startFetchers(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// AuctionMode runs the change-feed plus an auction watcher per configured
// auction listing.
func (a *App) AuctionMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting auction mode",
		slog.Int("auctions", len(a.cfg.Watch.Auctions)),
	)

	g, ctx := errgroup.WithContext(ctx)

	a.startFeed(ctx, g, deps)
	if err := a.startAuctionWatchers(ctx, g, deps); err != nil {
		return fmt.Errorf("auction mode: %w", err)
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// ServerMode serves the view cache over HTTP and websocket without running
// any watchers. Useful when the watchers run in a separate process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs everything: the change-feed, market and auction watchers,
// analytics fetchers, and the HTTP server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startFeed(ctx, g, deps)
	if err := a.startMarketWatchers(ctx, g, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	if err := a.startAuctionWatchers(ctx, g, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	a.startFetchers(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// startFeed runs the realtime websocket connection loop.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		err := deps.Feed.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("realtime feed: %w", err)
	})
}

// startMarketWatchers starts one MarketWatcher per configured listing and
// stops them all when the context is cancelled.
func (a *App) startMarketWatchers(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	for _, listingID := range a.cfg.Watch.Listings {
		w := service.NewMarketWatcher(service.MarketWatcherConfig{
			ListingID:    listingID,
			BookDepth:    a.cfg.Watch.BookDepth,
			TapeCapacity: a.cfg.Watch.TapeCapacity,
			Orders:       deps.Orders,
			Trades:       deps.Trades,
			Quotes:       deps.Quotes,
			Feed:         deps.Feed,
			Views:        deps.Views,
			Bus:          deps.Bus,
			Logger:       a.logger,
		})
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start market watcher %s: %w", listingID, err)
		}
		g.Go(func() error {
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			w.Stop(stopCtx)
			return nil
		})
	}
	return nil
}

// startAuctionWatchers starts one AuctionWatcher per configured auction.
func (a *App) startAuctionWatchers(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	for _, listingID := range a.cfg.Watch.Auctions {
		w := service.NewAuctionWatcher(service.AuctionWatcherConfig{
			ListingID: listingID,
			Listings:  deps.Listings,
			Feed:      deps.Feed,
			Views:     deps.Views,
			Bus:       deps.Bus,
			Syncer:    deps.Syncer,
			Logger:    a.logger,
		})
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start auction watcher %s: %w", listingID, err)
		}
		g.Go(func() error {
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			w.Stop(stopCtx)
			return nil
		})
	}
	return nil
}

// startFetchers starts one analytics fetcher per signal listing. Derived
// signals land in the view cache and on the signal channel through the sink.
func (a *App) startFetchers(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Analytics == nil {
		if len(a.cfg.Watch.SignalListings) > 0 {
			a.logger.WarnContext(ctx, "analytics.base_url not set, signal fetchers disabled")
		}
		return
	}

	tf := domain.Timeframe(a.cfg.Analytics.Timeframe)
	sink := service.SignalSink(deps.Views, deps.Bus, a.logger)
	for _, listingID := range a.cfg.Watch.SignalListings {
		f := analytics.NewFetcher(
			deps.Analytics, listingID, tf,
			a.cfg.Analytics.RefreshInterval.Duration, sink, a.logger,
		)
		g.Go(func() error {
			err := f.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}
}

// startHTTPServer adds the HTTP server and websocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.Bus, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(a.logger),
			Markets:  handler.NewMarketHandler(deps.Views, a.logger),
			Auctions: handler.NewAuctionHandler(deps.Views, deps.Bus, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
