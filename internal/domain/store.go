package domain

import "context"

// OrderSnapshotStore reads point-in-time order snapshots.
type OrderSnapshotStore interface {
	// OpenOrders returns every order for the listing that could contribute
	// to the book. Filtering by InBook happens in the aggregator so the
	// query stays simple.
	OpenOrders(ctx context.Context, listingID string) ([]Order, error)
}

// TradeHistoryStore reads executed trades.
type TradeHistoryStore interface {
	// RecentTrades returns up to limit trades, newest first.
	RecentTrades(ctx context.Context, listingID string, limit int) ([]Trade, error)
}

// QuoteStore reads the cached quote record.
type QuoteStore interface {
	// CachedQuote returns ErrNotFound when no record exists, in which case
	// the quote is derived from the book.
	CachedQuote(ctx context.Context, listingID string) (QuoteRecord, error)
}

// ListingStore reads auction fields from the listing row.
type ListingStore interface {
	AuctionRow(ctx context.Context, listingID string) (AuctionRow, error)
}
