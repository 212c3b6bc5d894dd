// Package service wires the aggregation components to the change-feed, the
// snapshot store, and the view cache. Each watcher owns the full subscription
// lifetime for exactly one listing: its feed subscriptions, timers, and
// in-flight flags are torn down before another listing can be watched by the
// same instance.
package service

// Pub/sub channel names shared by the watchers, the websocket hub, and the
// client-side visibility reporter.
const (
	chBookPrefix       = "ch:book:"
	chQuotePrefix      = "ch:quote:"
	chTapePrefix       = "ch:tape:"
	chAuctionPrefix    = "ch:auction:"
	chSignalPrefix     = "ch:signal:"
	chVisibilityPrefix = "ch:visibility:"
)

// BookChannel is the pub/sub channel carrying book updates for a listing.
func BookChannel(listingID string) string { return chBookPrefix + listingID }

// QuoteChannel is the pub/sub channel carrying quote updates for a listing.
func QuoteChannel(listingID string) string { return chQuotePrefix + listingID }

// TapeChannel is the pub/sub channel carrying tape updates for a listing.
func TapeChannel(listingID string) string { return chTapePrefix + listingID }

// AuctionChannel is the pub/sub channel carrying auction state for a listing.
func AuctionChannel(listingID string) string { return chAuctionPrefix + listingID }

// SignalChannel is the pub/sub channel carrying trading signals for a listing.
func SignalChannel(listingID string) string { return chSignalPrefix + listingID }

// VisibilityChannel carries the client's page visibility for a listing.
func VisibilityChannel(listingID string) string { return chVisibilityPrefix + listingID }
