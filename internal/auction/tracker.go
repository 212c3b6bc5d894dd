// Package auction tracks live auction state for one listing: current high
// bid, bid count, end time, and soft-close extensions.
package auction

import (
	"log/slog"
	"sync"
	"time"

	"github.com/paddockhq/marketsync/internal/domain"
)

// Bid is a decoded bid-insert event. AmountCents is canonical integer minor
// units; the feed layer converts any legacy fractional input before it gets
// here.
type Bid struct {
	ID          string
	ListingID   string
	AmountCents int64
	PlacedAt    time.Time
}

// Tracker is the per-auction state machine:
// unsubscribed -> loading -> live -> ended.
type Tracker struct {
	mu        sync.RWMutex
	listingID string
	phase     domain.AuctionPhase
	state     domain.AuctionState
	logger    *slog.Logger
	now       func() time.Time
}

// NewTracker creates a Tracker in the unsubscribed phase.
func NewTracker(listingID string, logger *slog.Logger) *Tracker {
	return &Tracker{
		listingID: listingID,
		phase:     domain.AuctionUnsubscribed,
		state: domain.AuctionState{
			ListingID: listingID,
			Phase:     domain.AuctionUnsubscribed,
		},
		logger: logger.With(slog.String("component", "auction_tracker"), slog.String("listing_id", listingID)),
		now:    time.Now,
	}
}

// Begin moves unsubscribed -> loading. Called when the watcher subscribes.
func (t *Tracker) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != domain.AuctionUnsubscribed {
		return
	}
	t.setPhase(domain.AuctionLoading)
}

// Load applies the initial listing row, moving loading -> live (or straight
// to ended when the auction is already over).
func (t *Tracker) Load(row domain.AuctionRow) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != domain.AuctionLoading {
		return
	}

	t.state.HighBidCents = row.HighBidCents
	t.state.BidCount = row.BidCount
	t.state.EndsAt = row.EndsAt
	t.state.LastUpdate = t.now()

	if row.Status == "ended" || !row.EndsAt.After(t.now()) {
		t.setPhase(domain.AuctionEnded)
		return
	}
	t.setPhase(domain.AuctionLive)
}

// ApplyBid applies a bid-insert event. The high bid is replaced only when the
// incoming amount is higher; the bid count is an optimistic local increment
// that the next listing update replaces.
func (t *Tracker) ApplyBid(b Bid) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != domain.AuctionLive {
		return
	}

	if b.AmountCents > t.state.HighBidCents {
		t.state.HighBidCents = b.AmountCents
	}
	t.state.BidCount++
	t.state.LastUpdate = t.now()
}

// ApplyListingUpdate applies a listing-update event: the authoritative high
// bid and bid count replace (never add to) any optimistic local values, and a
// strictly later end time sets the sticky extended flag. An end time that
// moves backwards is a consistency violation: it is logged and the previous
// end time retained.
func (t *Tracker) ApplyListingUpdate(row domain.AuctionRow) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != domain.AuctionLive && t.phase != domain.AuctionLoading {
		return
	}

	t.state.HighBidCents = row.HighBidCents
	t.state.BidCount = row.BidCount
	t.state.LastUpdate = t.now()

	switch {
	case row.EndsAt.After(t.state.EndsAt):
		t.state.Extended = true
		t.state.EndsAt = row.EndsAt
	case row.EndsAt.Before(t.state.EndsAt):
		err := &domain.ConsistencyError{
			Detail: "auction end time moved backwards: " +
				t.state.EndsAt.UTC().Format(time.RFC3339) + " -> " + row.EndsAt.UTC().Format(time.RFC3339),
		}
		t.logger.Warn("rejecting end time regression", slog.String("error", err.Error()))
	}

	if row.Status == "ended" {
		t.setPhase(domain.AuctionEnded)
	}
}

// Tick transitions live -> ended once the end time passes wall-clock now.
// Returns true when the auction is over.
func (t *Tracker) Tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase == domain.AuctionLive && !t.state.EndsAt.After(t.now()) {
		t.setPhase(domain.AuctionEnded)
	}
	return t.phase == domain.AuctionEnded
}

// ClearExtended clears the sticky soft-close flag, e.g. on auction restart.
func (t *Tracker) ClearExtended() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Extended = false
}

// Phase returns the current lifecycle phase.
func (t *Tracker) Phase() domain.AuctionPhase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase
}

// State returns a copy of the tracked auction state.
func (t *Tracker) State() domain.AuctionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// EndsAt returns the tracked end time.
func (t *Tracker) EndsAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.EndsAt
}

// setPhase updates both the phase field and its copy in the state snapshot.
// The caller must hold t.mu.
func (t *Tracker) setPhase(p domain.AuctionPhase) {
	t.phase = p
	t.state.Phase = p
}
