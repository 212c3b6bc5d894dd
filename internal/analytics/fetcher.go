package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paddockhq/marketsync/internal/domain"
)

// DefaultRefreshInterval is the auto-refresh cadence. Fixed, independent of
// auction urgency.
const DefaultRefreshInterval = 60 * time.Second

// Source abstracts the analytics query collaborator so the fetcher can be
// tested without network access.
type Source interface {
	GetAnalytics(ctx context.Context, listingID string, tf domain.Timeframe) (domain.AnalyticsSnapshot, error)
}

// Fetcher keeps the latest analytics snapshot and derived signal for one
// (listing, timeframe) pair, refreshing on a fixed timer and on demand. On
// fetch failure the last-known-good snapshot is retained.
type Fetcher struct {
	source    Source
	listingID string
	timeframe domain.Timeframe
	interval  time.Duration
	onSignal  func(domain.TradeSignal)
	logger    *slog.Logger

	mu       sync.RWMutex
	snapshot *domain.AnalyticsSnapshot
	signal   *domain.TradeSignal
	lastErr  error
}

// NewFetcher creates a Fetcher. onSignal, when non-nil, receives every newly
// derived signal.
func NewFetcher(source Source, listingID string, tf domain.Timeframe, interval time.Duration, onSignal func(domain.TradeSignal), logger *slog.Logger) *Fetcher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Fetcher{
		source:    source,
		listingID: listingID,
		timeframe: tf,
		interval:  interval,
		onSignal:  onSignal,
		logger:    logger.With(slog.String("component", "analytics_fetcher"), slog.String("listing_id", listingID)),
	}
}

// Run refreshes immediately, then on every tick until ctx is cancelled.
// Call in a goroutine.
func (f *Fetcher) Run(ctx context.Context) error {
	if err := f.Refresh(ctx); err != nil {
		f.logger.WarnContext(ctx, "initial analytics fetch failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.Refresh(ctx); err != nil {
				f.logger.WarnContext(ctx, "analytics refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Refresh fetches a fresh snapshot and re-derives the signal. The previous
// snapshot survives a failed fetch so callers keep showing last-known-good
// state with its timestamp.
func (f *Fetcher) Refresh(ctx context.Context) error {
	snap, err := f.source.GetAnalytics(ctx, f.listingID, f.timeframe)
	if err != nil {
		f.mu.Lock()
		f.lastErr = err
		f.mu.Unlock()
		return err
	}

	sig := Derive(snap, time.Now().UTC())

	f.mu.Lock()
	f.snapshot = &snap
	f.signal = &sig
	f.lastErr = nil
	f.mu.Unlock()

	if f.onSignal != nil {
		f.onSignal(sig)
	}
	return nil
}

// Snapshot returns the last-known-good snapshot, or nil before the first
// successful fetch.
func (f *Fetcher) Snapshot() *domain.AnalyticsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.snapshot == nil {
		return nil
	}
	snap := *f.snapshot
	return &snap
}

// Signal returns the last derived signal, or nil before the first successful
// fetch.
func (f *Fetcher) Signal() *domain.TradeSignal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.signal == nil {
		return nil
	}
	sig := *f.signal
	return &sig
}

// LastError returns the error from the most recent refresh attempt, nil when
// it succeeded.
func (f *Fetcher) LastError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}
