package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paddockhq/marketsync/internal/auction"
	"github.com/paddockhq/marketsync/internal/domain"
	"github.com/paddockhq/marketsync/internal/extsync"
	"github.com/paddockhq/marketsync/internal/feed"
)

// defaultTickInterval drives the live -> ended wall-clock check.
const defaultTickInterval = time.Second

// AuctionWatcherConfig bundles the collaborators for one auction watcher.
type AuctionWatcherConfig struct {
	ListingID    string
	TickInterval time.Duration

	Listings domain.ListingStore
	Feed     domain.ChangeFeed
	Views    domain.ViewCache
	Bus      domain.SignalBus
	Syncer   extsync.Syncer
	Logger   *slog.Logger
}

// visibilityPayload is the message clients publish on the visibility channel.
type visibilityPayload struct {
	Visible bool `json:"visible"`
}

// AuctionWatcher tracks one auction end to end: feed-driven bid and listing
// updates through the tracker, the adaptive external sync poller when the
// listing mirrors an external source, and the client visibility signal that
// suspends polling. The feed state and the external mirror are kept side by
// side in the published view; they are reconciled by last writer wins, never
// numerically merged.
type AuctionWatcher struct {
	cfg     AuctionWatcherConfig
	tracker *auction.Tracker
	logger  *slog.Logger

	mu         sync.Mutex
	poller     *extsync.Poller
	external   *domain.ExternalSyncResult
	subs       []domain.Subscription
	busCancel  func()
	done       chan struct{}
	dataWarned bool
	closed     bool
}

// NewAuctionWatcher creates a watcher for cfg.ListingID.
func NewAuctionWatcher(cfg AuctionWatcherConfig) *AuctionWatcher {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	logger := cfg.Logger.With(slog.String("component", "auction_watcher"), slog.String("listing_id", cfg.ListingID))
	return &AuctionWatcher{
		cfg:     cfg,
		tracker: auction.NewTracker(cfg.ListingID, cfg.Logger),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start loads the listing row, subscribes to bid and listing change-feeds,
// starts the external poller when the listing has an external mirror, and
// begins the end-time tick loop.
func (w *AuctionWatcher) Start(ctx context.Context) error {
	w.tracker.Begin()

	row, err := w.cfg.Listings.AuctionRow(ctx, w.cfg.ListingID)
	if err != nil {
		return fmt.Errorf("auction_watcher: load listing: %w", err)
	}
	w.tracker.Load(row)

	bidSub, err := w.cfg.Feed.Subscribe(ctx, "bids", "listing_id", w.cfg.ListingID, w.onBidEvent)
	if err != nil {
		return fmt.Errorf("auction_watcher: subscribe bids: %w", err)
	}
	listingSub, err := w.cfg.Feed.Subscribe(ctx, "listings", "id", w.cfg.ListingID, w.onListingEvent)
	if err != nil {
		_ = bidSub.Unsubscribe(ctx)
		return fmt.Errorf("auction_watcher: subscribe listings: %w", err)
	}

	w.mu.Lock()
	w.subs = []domain.Subscription{bidSub, listingSub}
	if w.cfg.Syncer != nil && row.ExternalID != "" {
		w.poller = extsync.NewPoller(w.cfg.Syncer, row.ExternalID, row.EndsAt, w.onSyncResult, w.cfg.Logger)
		w.poller.Start(ctx)
	}
	w.mu.Unlock()

	if w.cfg.Bus != nil {
		if err := w.watchVisibility(ctx); err != nil {
			w.logger.WarnContext(ctx, "visibility subscription failed", slog.String("error", err.Error()))
		}
	}

	go w.tickLoop(ctx)

	w.publishView(ctx)
	return nil
}

// Stop tears down the subscriptions, the poller, and the tick loop. Late
// sync results and events are discarded.
func (w *AuctionWatcher) Stop(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	subs := w.subs
	w.subs = nil
	poller := w.poller
	busCancel := w.busCancel
	w.busCancel = nil
	close(w.done)
	w.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
	if busCancel != nil {
		busCancel()
	}
	for _, s := range subs {
		if err := s.Unsubscribe(ctx); err != nil {
			w.logger.WarnContext(ctx, "unsubscribe failed", slog.String("error", err.Error()))
		}
	}
}

// View returns the current combined auction view.
func (w *AuctionWatcher) View() domain.AuctionView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *AuctionWatcher) viewLocked() domain.AuctionView {
	view := domain.AuctionView{Feed: w.tracker.State()}
	if w.external != nil {
		ext := *w.external
		view.External = &ext
	}
	return view
}

func (w *AuctionWatcher) onBidEvent(ctx context.Context, ev domain.ChangeEvent) {
	if ev.Type != domain.ChangeInsert {
		return
	}
	bid, err := feed.DecodeBid(ev.New)
	if err != nil {
		w.warnDataOnce(ctx, err)
		return
	}
	w.tracker.ApplyBid(bid)
	w.publishView(ctx)
}

func (w *AuctionWatcher) onListingEvent(ctx context.Context, ev domain.ChangeEvent) {
	row, err := feed.DecodeListing(ev.New)
	if err != nil {
		w.warnDataOnce(ctx, err)
		return
	}
	w.tracker.ApplyListingUpdate(row)

	w.mu.Lock()
	if w.poller != nil {
		// Soft-close extension: the poller recomputes its cadence against
		// the tracked (monotonic) end time, not the raw row.
		w.poller.SetEndTime(w.tracker.EndsAt())
	}
	w.mu.Unlock()

	w.publishView(ctx)
}

// onSyncResult stores the latest external mirror wholesale.
func (w *AuctionWatcher) onSyncResult(res domain.ExternalSyncResult) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.external = &res
	w.mu.Unlock()

	w.publishView(context.Background())
}

// watchVisibility subscribes to the per-listing visibility channel and
// forwards the flag to the poller. Visibility only gates the external poller;
// feed subscriptions stay live regardless.
func (w *AuctionWatcher) watchVisibility(ctx context.Context) error {
	msgs, cancel, err := w.cfg.Bus.Subscribe(ctx, VisibilityChannel(w.cfg.ListingID))
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		cancel()
		return nil
	}
	w.busCancel = cancel
	w.mu.Unlock()

	go func() {
		for msg := range msgs {
			var p visibilityPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				continue
			}
			w.mu.Lock()
			poller := w.poller
			w.mu.Unlock()
			if poller != nil {
				poller.SetVisible(p.Visible)
			}
		}
	}()
	return nil
}

// tickLoop transitions live -> ended on wall clock and publishes once on the
// transition.
func (w *AuctionWatcher) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			wasEnded := w.tracker.Phase() == domain.AuctionEnded
			if w.tracker.Tick() && !wasEnded {
				w.logger.Info("auction ended")
				w.publishView(ctx)
			}
		}
	}
}

func (w *AuctionWatcher) warnDataOnce(ctx context.Context, err error) {
	w.mu.Lock()
	warned := w.dataWarned
	w.dataWarned = true
	w.mu.Unlock()
	if !warned {
		w.logger.WarnContext(ctx, "malformed row skipped", slog.String("error", err.Error()))
	}
}

func (w *AuctionWatcher) publishView(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	view := w.viewLocked()
	w.mu.Unlock()

	if w.cfg.Views != nil {
		if err := w.cfg.Views.SetAuction(ctx, view); err != nil {
			w.logger.WarnContext(ctx, "cache auction failed", slog.String("error", err.Error()))
		}
	}
	if w.cfg.Bus != nil {
		payload, err := json.Marshal(view)
		if err != nil {
			return
		}
		if err := w.cfg.Bus.Publish(ctx, AuctionChannel(w.cfg.ListingID), payload); err != nil {
			w.logger.WarnContext(ctx, "publish failed", slog.String("error", err.Error()))
		}
	}
}
