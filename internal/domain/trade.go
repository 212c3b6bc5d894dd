package domain

import "time"

// Trade is an executed trade. Immutable once created.
type Trade struct {
	ID         string
	ListingID  string
	PriceCents int64
	Quantity   int64
	Aggressor  Side
	BuyerID    string
	SellerID   string
	ExecutedAt time.Time
}
