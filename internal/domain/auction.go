package domain

import "time"

// AuctionPhase is the lifecycle state of a tracked auction.
type AuctionPhase string

const (
	AuctionUnsubscribed AuctionPhase = "unsubscribed"
	AuctionLoading      AuctionPhase = "loading"
	AuctionLive         AuctionPhase = "live"
	AuctionEnded        AuctionPhase = "ended"
)

// AuctionRow is the listing row as read from the store or a listing-update
// change event.
type AuctionRow struct {
	ListingID    string
	HighBidCents int64
	BidCount     int
	EndsAt       time.Time
	Status       string // "live" or "ended"
	ExternalID   string // id at the external auction source, empty if none
}

// AuctionState is the tracked state of one auction. End time is monotonically
// non-decreasing; a decrease is a bug signal, not a valid transition.
type AuctionState struct {
	ListingID    string
	Phase        AuctionPhase
	HighBidCents int64
	BidCount     int
	EndsAt       time.Time
	// Extended is set when a listing update pushed the end time forward
	// (soft close). Sticky until explicitly cleared by the caller.
	Extended   bool
	LastUpdate time.Time
}

// ExternalSyncResult mirrors the bid state reported by the external auction
// source. Advisory: the authoritative bid state comes from the change-feed
// where available, and the two are reconciled by last writer wins on arrival
// time, never by numeric merge.
type ExternalSyncResult struct {
	ListingID       string
	CurrentBidCents int64
	BidCount        int
	WatcherCount    int
	ViewCount       int
	Status          string
	SyncedAt        time.Time
}

// AuctionView exposes the two read models side by side so callers (and tests)
// can assert on each independently.
type AuctionView struct {
	Feed     AuctionState
	External *ExternalSyncResult
}
