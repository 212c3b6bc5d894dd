package domain

import "time"

// QuoteRecord is a cached quote row from the store. When present, its fields
// are authoritative over the book-derived quote; it may encode adjustments
// (such as hidden size) that are not visible from the raw book.
type QuoteRecord struct {
	ListingID    string
	BidCents     *int64
	BidSize      *int64
	AskCents     *int64
	AskSize      *int64
	UpdatedAt    time.Time
}

// Quote is the best bid/offer view for one listing. Spread and mid are nil
// whenever either side is missing; they are never coerced to zero.
type Quote struct {
	ListingID    string
	BidCents     *int64
	BidSize      *int64
	AskCents     *int64
	AskSize      *int64
	SpreadCents  *int64
	MidCents     *float64
	LastCents    *int64
	LastSize     *int64
	LastTradeAt  *time.Time
	UpdatedAt    time.Time
}
