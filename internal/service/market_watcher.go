package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paddockhq/marketsync/internal/book"
	"github.com/paddockhq/marketsync/internal/domain"
	"github.com/paddockhq/marketsync/internal/feed"
	"github.com/paddockhq/marketsync/internal/tape"
)

// MarketWatcherConfig bundles the collaborators and tuning for one watcher.
type MarketWatcherConfig struct {
	ListingID    string
	BookDepth    int
	TapeCapacity int

	Orders domain.OrderSnapshotStore
	Trades domain.TradeHistoryStore
	Quotes domain.QuoteStore
	Feed   domain.ChangeFeed
	Views  domain.ViewCache
	Bus    domain.SignalBus
	Logger *slog.Logger
}

// MarketWatcher keeps the order book, NBBO quote, and trade tape fresh for
// one listing. Change-feed events trigger a full resnapshot of the book
// (incremental deltas are an optimization elsewhere, not a substitute for
// refresh) and incremental prepends on the tape. On refresh failure the
// previous view is retained and a staleness timestamp exposed.
type MarketWatcher struct {
	cfg    MarketWatcherConfig
	agg    *book.Aggregator
	tape   *tape.Tape
	logger *slog.Logger

	mu         sync.Mutex
	book       domain.OrderBook
	quote      domain.Quote
	lastTrade  *domain.Trade
	lastUpdate time.Time
	lastErr    error
	dataWarned bool
	closed     bool
	subs       []domain.Subscription
}

// NewMarketWatcher creates a watcher for cfg.ListingID.
func NewMarketWatcher(cfg MarketWatcherConfig) *MarketWatcher {
	return &MarketWatcher{
		cfg:    cfg,
		agg:    book.NewAggregator(cfg.BookDepth),
		tape:   tape.New(cfg.TapeCapacity),
		logger: cfg.Logger.With(slog.String("component", "market_watcher"), slog.String("listing_id", cfg.ListingID)),
	}
}

// Start performs the initial book and tape refresh, then subscribes to the
// orders and trades change-feeds for the listing.
func (w *MarketWatcher) Start(ctx context.Context) error {
	if err := w.RefreshBook(ctx); err != nil {
		// Stale-but-consistent beats blank: the error is recorded and the
		// next event retries, but a dead feed subscription would be silent,
		// so subscription failures below are fatal.
		w.logger.WarnContext(ctx, "initial book refresh failed", slog.String("error", err.Error()))
	}
	if err := w.RefreshTape(ctx); err != nil {
		w.logger.WarnContext(ctx, "initial tape refresh failed", slog.String("error", err.Error()))
	}

	orderSub, err := w.cfg.Feed.Subscribe(ctx, "orders", "listing_id", w.cfg.ListingID, w.onOrderEvent)
	if err != nil {
		return fmt.Errorf("market_watcher: subscribe orders: %w", err)
	}
	tradeSub, err := w.cfg.Feed.Subscribe(ctx, "trades", "listing_id", w.cfg.ListingID, w.onTradeEvent)
	if err != nil {
		_ = orderSub.Unsubscribe(ctx)
		return fmt.Errorf("market_watcher: subscribe trades: %w", err)
	}

	w.mu.Lock()
	w.subs = []domain.Subscription{orderSub, tradeSub}
	w.mu.Unlock()
	return nil
}

// Stop releases the feed subscriptions. Results of any refresh still in
// flight are discarded, not applied.
func (w *MarketWatcher) Stop(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()

	for _, s := range subs {
		if err := s.Unsubscribe(ctx); err != nil {
			w.logger.WarnContext(ctx, "unsubscribe failed", slog.String("error", err.Error()))
		}
	}
}

// onOrderEvent handles any order change by re-deriving the book from a fresh
// snapshot. Replaying the full snapshot is cheap at this scale and eliminates
// drift from missed events.
func (w *MarketWatcher) onOrderEvent(ctx context.Context, _ domain.ChangeEvent) {
	if err := w.RefreshBook(ctx); err != nil {
		w.logger.WarnContext(ctx, "book refresh failed", slog.String("error", err.Error()))
	}
}

// onTradeEvent prepends inserted trades to the tape; anything else falls back
// to a full tape refresh.
func (w *MarketWatcher) onTradeEvent(ctx context.Context, ev domain.ChangeEvent) {
	if ev.Type != domain.ChangeInsert {
		if err := w.RefreshTape(ctx); err != nil {
			w.logger.WarnContext(ctx, "tape refresh failed", slog.String("error", err.Error()))
		}
		return
	}

	tr, err := feed.DecodeTrade(ev.New)
	if err != nil {
		w.warnDataOnce(ctx, err)
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.tape.Push(tr)
	w.lastTrade = &tr
	// Last-trade fields update immediately, independent of book state.
	w.quote.LastCents = &tr.PriceCents
	w.quote.LastSize = &tr.Quantity
	at := tr.ExecutedAt
	w.quote.LastTradeAt = &at
	w.quote.UpdatedAt = time.Now().UTC()
	w.lastUpdate = w.quote.UpdatedAt
	quote := w.quote
	trades := w.tape.Trades()
	w.mu.Unlock()

	w.publishQuote(ctx, quote)
	w.publishTape(ctx, trades)
}

// RefreshBook re-derives the book and quote from a fresh order snapshot. On
// snapshot failure the previous book is retained and the error recorded.
func (w *MarketWatcher) RefreshBook(ctx context.Context) error {
	orders, err := w.cfg.Orders.OpenOrders(ctx, w.cfg.ListingID)
	if err != nil {
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		return err
	}

	var cached *domain.QuoteRecord
	rec, err := w.cfg.Quotes.CachedQuote(ctx, w.cfg.ListingID)
	switch {
	case err == nil:
		cached = &rec
	case errors.Is(err, domain.ErrNotFound):
		// Derive from the book.
	default:
		w.logger.WarnContext(ctx, "cached quote fetch failed", slog.String("error", err.Error()))
	}

	now := time.Now().UTC()
	b := w.agg.Build(w.cfg.ListingID, orders, now)
	if b.Crossed {
		cerr := &domain.ConsistencyError{Detail: "crossed book for listing " + w.cfg.ListingID}
		w.logger.WarnContext(ctx, "crossed market detected", slog.String("error", cerr.Error()))
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return domain.ErrClosed
	}
	w.book = b
	w.quote = book.ComputeQuote(b, cached, w.lastTrade, now)
	w.lastErr = nil
	w.lastUpdate = now
	quote := w.quote
	w.mu.Unlock()

	w.publishBook(ctx, b)
	w.publishQuote(ctx, quote)
	return nil
}

// RefreshTape replaces the tape from the trade-history query.
func (w *MarketWatcher) RefreshTape(ctx context.Context) error {
	trades, err := w.cfg.Trades.RecentTrades(ctx, w.cfg.ListingID, w.tapeCapacity())
	if err != nil {
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return domain.ErrClosed
	}
	w.tape.Replace(trades)
	if len(trades) > 0 {
		tr := trades[0]
		w.lastTrade = &tr
	}
	w.lastUpdate = time.Now().UTC()
	snapshot := w.tape.Trades()
	w.mu.Unlock()

	w.publishTape(ctx, snapshot)
	return nil
}

// Book returns the current book view.
func (w *MarketWatcher) Book() domain.OrderBook {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.book
}

// Quote returns the current quote view.
func (w *MarketWatcher) Quote() domain.Quote {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.quote
}

// Tape returns the current tape, newest first.
func (w *MarketWatcher) Tape() []domain.Trade {
	return w.tape.Trades()
}

// LastUpdate returns the staleness timestamp of the views.
func (w *MarketWatcher) LastUpdate() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUpdate
}

// LastError returns the most recent refresh error, nil when the last refresh
// succeeded.
func (w *MarketWatcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// warnDataOnce surfaces a DataError once per subscription lifetime to avoid
// flooding logs when a misbehaving writer emits a stream of bad rows.
func (w *MarketWatcher) warnDataOnce(ctx context.Context, err error) {
	w.mu.Lock()
	warned := w.dataWarned
	w.dataWarned = true
	w.mu.Unlock()
	if !warned {
		w.logger.WarnContext(ctx, "malformed row skipped", slog.String("error", err.Error()))
	}
}

func (w *MarketWatcher) publishBook(ctx context.Context, b domain.OrderBook) {
	if err := w.cfg.Views.SetBook(ctx, b); err != nil {
		w.logger.WarnContext(ctx, "cache book failed", slog.String("error", err.Error()))
	}
	w.publish(ctx, BookChannel(w.cfg.ListingID), b)
}

func (w *MarketWatcher) publishQuote(ctx context.Context, q domain.Quote) {
	if err := w.cfg.Views.SetQuote(ctx, q); err != nil {
		w.logger.WarnContext(ctx, "cache quote failed", slog.String("error", err.Error()))
	}
	w.publish(ctx, QuoteChannel(w.cfg.ListingID), q)
}

func (w *MarketWatcher) publishTape(ctx context.Context, trades []domain.Trade) {
	if err := w.cfg.Views.SetTape(ctx, w.cfg.ListingID, trades); err != nil {
		w.logger.WarnContext(ctx, "cache tape failed", slog.String("error", err.Error()))
	}
	w.publish(ctx, TapeChannel(w.cfg.ListingID), trades)
}

func (w *MarketWatcher) publish(ctx context.Context, channel string, v any) {
	if w.cfg.Bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := w.cfg.Bus.Publish(ctx, channel, payload); err != nil {
		w.logger.WarnContext(ctx, "publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (w *MarketWatcher) tapeCapacity() int {
	if w.cfg.TapeCapacity > 0 {
		return w.cfg.TapeCapacity
	}
	return tape.DefaultCapacity
}
