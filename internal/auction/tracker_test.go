package auction

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddockhq/marketsync/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func liveTracker(t *testing.T, endsAt time.Time) *Tracker {
	t.Helper()
	tr := NewTracker("lst-1", discard())
	tr.Begin()
	tr.Load(domain.AuctionRow{
		ListingID:    "lst-1",
		HighBidCents: 250_000_00,
		BidCount:     12,
		EndsAt:       endsAt,
		Status:       "live",
	})
	require.Equal(t, domain.AuctionLive, tr.Phase())
	return tr
}

func TestLifecycleTransitions(t *testing.T) {
	tr := NewTracker("lst-1", discard())
	assert.Equal(t, domain.AuctionUnsubscribed, tr.Phase())

	tr.Begin()
	assert.Equal(t, domain.AuctionLoading, tr.Phase())

	tr.Load(domain.AuctionRow{ListingID: "lst-1", EndsAt: time.Now().Add(time.Hour), Status: "live"})
	assert.Equal(t, domain.AuctionLive, tr.Phase())
}

func TestLoadAlreadyEndedAuction(t *testing.T) {
	tr := NewTracker("lst-1", discard())
	tr.Begin()
	tr.Load(domain.AuctionRow{ListingID: "lst-1", EndsAt: time.Now().Add(-time.Minute), Status: "live"})
	assert.Equal(t, domain.AuctionEnded, tr.Phase())
}

func TestApplyBidUpdatesHighBidAndCount(t *testing.T) {
	tr := liveTracker(t, time.Now().Add(time.Hour))

	tr.ApplyBid(Bid{ID: "b-1", ListingID: "lst-1", AmountCents: 260_000_00})
	st := tr.State()
	assert.Equal(t, int64(260_000_00), st.HighBidCents)
	assert.Equal(t, 13, st.BidCount)

	// A lower bid never lowers the high bid but still counts.
	tr.ApplyBid(Bid{ID: "b-2", ListingID: "lst-1", AmountCents: 100_000_00})
	st = tr.State()
	assert.Equal(t, int64(260_000_00), st.HighBidCents)
	assert.Equal(t, 14, st.BidCount)
}

func TestListingUpdateReplacesOptimisticBidCount(t *testing.T) {
	tr := liveTracker(t, time.Now().Add(time.Hour))

	tr.ApplyBid(Bid{ID: "b-1", ListingID: "lst-1", AmountCents: 260_000_00})
	require.Equal(t, 13, tr.State().BidCount)

	// The authoritative refresh already includes that bid: replace, not add.
	tr.ApplyListingUpdate(domain.AuctionRow{
		ListingID:    "lst-1",
		HighBidCents: 260_000_00,
		BidCount:     13,
		EndsAt:       tr.EndsAt(),
		Status:       "live",
	})
	assert.Equal(t, 13, tr.State().BidCount)
}

func TestExtensionDetection(t *testing.T) {
	end := time.Date(2100, 6, 1, 18, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		newEnd   time.Time
		extended bool
	}{
		{"later end time extends", end.Add(2 * time.Minute), true},
		{"equal end time does not extend", end, false},
		{"earlier end time does not extend", end.Add(-2 * time.Minute), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := liveTracker(t, end)
			tr.ApplyListingUpdate(domain.AuctionRow{
				ListingID: "lst-1",
				EndsAt:    tc.newEnd,
				Status:    "live",
			})
			assert.Equal(t, tc.extended, tr.State().Extended)
		})
	}
}

func TestEndTimeRegressionRetainsPrevious(t *testing.T) {
	end := time.Date(2100, 6, 1, 18, 0, 0, 0, time.UTC)
	tr := liveTracker(t, end)

	tr.ApplyListingUpdate(domain.AuctionRow{
		ListingID: "lst-1",
		EndsAt:    end.Add(-time.Minute),
		Status:    "live",
	})

	assert.Equal(t, end, tr.EndsAt(), "regressed end time must not be adopted")
	assert.False(t, tr.State().Extended)
}

func TestExtendedFlagStickyUntilCleared(t *testing.T) {
	end := time.Date(2100, 6, 1, 18, 0, 0, 0, time.UTC)
	tr := liveTracker(t, end)

	tr.ApplyListingUpdate(domain.AuctionRow{ListingID: "lst-1", EndsAt: end.Add(time.Minute), Status: "live"})
	require.True(t, tr.State().Extended)

	// A subsequent non-extending update leaves the flag set.
	tr.ApplyListingUpdate(domain.AuctionRow{ListingID: "lst-1", EndsAt: end.Add(time.Minute), Status: "live"})
	assert.True(t, tr.State().Extended)

	tr.ClearExtended()
	assert.False(t, tr.State().Extended)
}

func TestTickEndsAuctionPastEndTime(t *testing.T) {
	tr := liveTracker(t, time.Now().Add(20*time.Millisecond))
	assert.False(t, tr.Tick())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, tr.Tick())
	assert.Equal(t, domain.AuctionEnded, tr.Phase())
}

func TestExplicitEndedStatus(t *testing.T) {
	tr := liveTracker(t, time.Now().Add(time.Hour))
	tr.ApplyListingUpdate(domain.AuctionRow{ListingID: "lst-1", EndsAt: tr.EndsAt(), Status: "ended"})
	assert.Equal(t, domain.AuctionEnded, tr.Phase())
}

func TestEventsIgnoredAfterEnd(t *testing.T) {
	tr := liveTracker(t, time.Now().Add(time.Hour))
	tr.ApplyListingUpdate(domain.AuctionRow{ListingID: "lst-1", EndsAt: tr.EndsAt(), Status: "ended"})

	before := tr.State()
	tr.ApplyBid(Bid{ID: "b-9", ListingID: "lst-1", AmountCents: 999_999_00})
	assert.Equal(t, before.HighBidCents, tr.State().HighBidCents)
	assert.Equal(t, before.BidCount, tr.State().BidCount)
}
