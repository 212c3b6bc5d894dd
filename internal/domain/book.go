package domain

import "time"

// PriceLevel aggregates the quantity available at one price across all
// contributing orders on one side of the book.
type PriceLevel struct {
	PriceCents int64
	Quantity   int64
	Orders     int
}

// OrderBook is the two-sided, price-leveled view of the open orders for one
// listing. Bids are sorted descending by price, asks ascending, both
// truncated to the aggregator's configured depth.
type OrderBook struct {
	ListingID string
	Bids      []PriceLevel
	Asks      []PriceLevel
	// Crossed is set when the best bid meets or exceeds the best ask. A
	// crossed or locked book is surfaced, never silently resolved.
	Crossed bool
	AsOf    time.Time
}

// BestBid returns the top bid level, or nil if the bid side is empty.
func (b OrderBook) BestBid() *PriceLevel {
	if len(b.Bids) == 0 {
		return nil
	}
	return &b.Bids[0]
}

// BestAsk returns the top ask level, or nil if the ask side is empty.
func (b OrderBook) BestAsk() *PriceLevel {
	if len(b.Asks) == 0 {
		return nil
	}
	return &b.Asks[0]
}
