package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddockhq/marketsync/internal/domain"
)

type fakeSyncer struct {
	mu     sync.Mutex
	calls  int
	result domain.ExternalSyncResult
	err    error
}

func (s *fakeSyncer) Sync(context.Context, string) (domain.ExternalSyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return domain.ExternalSyncResult{}, s.err
	}
	return s.result, nil
}

func (s *fakeSyncer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestAuctionWatcher(t *testing.T, row domain.AuctionRow, syncer *fakeSyncer) (*AuctionWatcher, *fakeFeed, *fakeStores, *memCache, *memBus) {
	t.Helper()
	feed := newFakeFeed()
	stores := &fakeStores{listing: row}
	cache := newMemCache()
	bus := newMemBus()
	cfg := AuctionWatcherConfig{
		ListingID: row.ListingID,
		Listings:  stores,
		Feed:      feed,
		Views:     cache,
		Bus:       bus,
		Logger:    testLogger(),
	}
	if syncer != nil {
		cfg.Syncer = syncer
	}
	return NewAuctionWatcher(cfg), feed, stores, cache, bus
}

func liveRow() domain.AuctionRow {
	return domain.AuctionRow{
		ListingID:    "lst-9",
		HighBidCents: 4_200_000,
		BidCount:     12,
		EndsAt:       time.Now().Add(30 * time.Minute),
		Status:       "live",
	}
}

func TestAuctionWatcherStartLoadsListing(t *testing.T) {
	w, _, _, cache, _ := newTestAuctionWatcher(t, liveRow(), nil)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	defer w.Stop(ctx)

	view := w.View()
	assert.Equal(t, domain.AuctionLive, view.Feed.Phase)
	assert.Equal(t, int64(4_200_000), view.Feed.HighBidCents)
	assert.Equal(t, 12, view.Feed.BidCount)
	assert.Nil(t, view.External)

	cached, err := cache.GetAuction(ctx, "lst-9")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionLive, cached.Feed.Phase)
}

func TestAuctionWatcherBidInsertUpdatesState(t *testing.T) {
	w, feed, _, _, bus := newTestAuctionWatcher(t, liveRow(), nil)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	defer w.Stop(ctx)

	row, _ := json.Marshal(map[string]any{
		"id": "b1", "listing_id": "lst-9", "amount_cents": 4_500_000,
		"placed_at": time.Now(),
	})
	feed.emit(ctx, "bids", domain.ChangeEvent{Type: domain.ChangeInsert, New: row})

	view := w.View()
	assert.Equal(t, int64(4_500_000), view.Feed.HighBidCents)
	assert.Equal(t, 13, view.Feed.BidCount)
	assert.Positive(t, bus.count(AuctionChannel("lst-9")))
}

func TestAuctionWatcherLowerBidKeepsHighBid(t *testing.T) {
	w, feed, _, _, _ := newTestAuctionWatcher(t, liveRow(), nil)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	defer w.Stop(ctx)

	row, _ := json.Marshal(map[string]any{"id": "b1", "listing_id": "lst-9", "amount_cents": 100})
	feed.emit(ctx, "bids", domain.ChangeEvent{Type: domain.ChangeInsert, New: row})

	view := w.View()
	assert.Equal(t, int64(4_200_000), view.Feed.HighBidCents)
	assert.Equal(t, 13, view.Feed.BidCount)
}

func TestAuctionWatcherListingUpdateIsAuthoritative(t *testing.T) {
	start := liveRow()
	w, feed, _, _, _ := newTestAuctionWatcher(t, start, nil)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	defer w.Stop(ctx)

	// Optimistic local bump first.
	bid, _ := json.Marshal(map[string]any{"id": "b1", "listing_id": "lst-9", "amount_cents": 9_000_000})
	feed.emit(ctx, "bids", domain.ChangeEvent{Type: domain.ChangeInsert, New: bid})
	require.Equal(t, 13, w.View().Feed.BidCount)

	extended := start.EndsAt.Add(2 * time.Minute)
	listing, _ := json.Marshal(map[string]any{
		"id": "lst-9", "high_bid_cents": 4_600_000, "bid_count": 14,
		"ends_at": extended, "status": "live",
	})
	feed.emit(ctx, "listings", domain.ChangeEvent{Type: domain.ChangeUpdate, New: listing})

	view := w.View()
	// Authoritative values replace, never add to, the optimistic ones.
	assert.Equal(t, int64(4_600_000), view.Feed.HighBidCents)
	assert.Equal(t, 14, view.Feed.BidCount)
	assert.True(t, view.Feed.Extended)
	assert.True(t, view.Feed.EndsAt.Equal(extended))
}

func TestAuctionWatcherEndTimeRegressionRetained(t *testing.T) {
	start := liveRow()
	w, feed, _, _, _ := newTestAuctionWatcher(t, start, nil)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	defer w.Stop(ctx)

	earlier := start.EndsAt.Add(-10 * time.Minute)
	listing, _ := json.Marshal(map[string]any{
		"id": "lst-9", "high_bid_cents": 4_200_000, "bid_count": 12,
		"ends_at": earlier, "status": "live",
	})
	feed.emit(ctx, "listings", domain.ChangeEvent{Type: domain.ChangeUpdate, New: listing})

	view := w.View()
	assert.True(t, view.Feed.EndsAt.Equal(start.EndsAt))
	assert.False(t, view.Feed.Extended)
}

func TestAuctionWatcherExternalSyncStoredSeparately(t *testing.T) {
	row := liveRow()
	row.ExternalID = "ext-77"
	syncer := &fakeSyncer{result: domain.ExternalSyncResult{
		ListingID:       "lst-9",
		CurrentBidCents: 9_999_999,
		BidCount:        50,
		Status:          "live",
		SyncedAt:        time.Now(),
	}}
	w, _, _, _, _ := newTestAuctionWatcher(t, row, syncer)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	defer w.Stop(ctx)

	require.Eventually(t, func() bool {
		return w.View().External != nil
	}, time.Second, 10*time.Millisecond)

	view := w.View()
	// The mirror never leaks into the feed-derived state.
	assert.Equal(t, int64(9_999_999), view.External.CurrentBidCents)
	assert.Equal(t, int64(4_200_000), view.Feed.HighBidCents)
	assert.Equal(t, 12, view.Feed.BidCount)
}

func TestAuctionWatcherVisibilityResyncsPoller(t *testing.T) {
	row := liveRow()
	row.ExternalID = "ext-77"
	syncer := &fakeSyncer{result: domain.ExternalSyncResult{ListingID: "lst-9", Status: "live"}}
	w, _, _, _, bus := newTestAuctionWatcher(t, row, syncer)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	defer w.Stop(ctx)

	require.Eventually(t, func() bool { return syncer.callCount() >= 1 }, time.Second, 10*time.Millisecond)
	base := syncer.callCount()

	bus.inject(VisibilityChannel("lst-9"), []byte(`{"visible":false}`))
	bus.inject(VisibilityChannel("lst-9"), []byte(`{"visible":true}`))

	// Visibility regain fires an immediate sync.
	require.Eventually(t, func() bool {
		return syncer.callCount() > base
	}, time.Second, 10*time.Millisecond)
}

func TestAuctionWatcherAlreadyEndedSkipsPolling(t *testing.T) {
	row := liveRow()
	row.Status = "ended"
	row.EndsAt = time.Now().Add(-time.Hour)
	row.ExternalID = "ext-77"
	syncer := &fakeSyncer{}
	w, _, _, _, _ := newTestAuctionWatcher(t, row, syncer)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	defer w.Stop(ctx)

	assert.Equal(t, domain.AuctionEnded, w.View().Feed.Phase)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, syncer.callCount())
}

func TestAuctionWatcherStopDiscardsLateSync(t *testing.T) {
	row := liveRow()
	row.ExternalID = "ext-77"
	syncer := &fakeSyncer{result: domain.ExternalSyncResult{ListingID: "lst-9"}}
	w, feed, _, _, _ := newTestAuctionWatcher(t, row, syncer)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))

	w.Stop(ctx)
	assert.ElementsMatch(t, []string{"bids", "listings"}, feed.unsubscribed())

	// A result arriving after teardown is dropped.
	w.onSyncResult(domain.ExternalSyncResult{ListingID: "lst-9", CurrentBidCents: 1})
	assert.Nil(t, w.View().External)

	w.Stop(ctx)
}

func TestSignalSinkCachesAndPublishes(t *testing.T) {
	cache := newMemCache()
	bus := newMemBus()
	sink := SignalSink(cache, bus, testLogger())

	sink(domain.TradeSignal{ListingID: "lst-1", Action: domain.SignalBuy, NetScore: 4})

	got, err := cache.GetSignal(context.Background(), "lst-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SignalBuy, got.Action)

	payload := bus.last(SignalChannel("lst-1"))
	require.NotNil(t, payload)
	var sig domain.TradeSignal
	require.NoError(t, json.Unmarshal(payload, &sig))
	assert.Equal(t, 4, sig.NetScore)
}
