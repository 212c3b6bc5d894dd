package feed

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/paddockhq/marketsync/internal/auction"
	"github.com/paddockhq/marketsync/internal/domain"
)

// Row decoding for the tables the watchers subscribe to. A row that fails to
// decode is skipped with a DataError; the watchers surface it once per
// subscription lifetime.

// orderRow is the wire shape of an orders row.
type orderRow struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	Side       string    `json:"side"`
	PriceCents int64     `json:"price_cents"`
	Quantity   int64     `json:"quantity"`
	Filled     int64     `json:"filled"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// tradeRow is the wire shape of a trades row.
type tradeRow struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	PriceCents int64     `json:"price_cents"`
	Quantity   int64     `json:"quantity"`
	Aggressor  string    `json:"aggressor"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	ExecutedAt time.Time `json:"executed_at"`
}

// bidRow is the wire shape of a bids row. AmountCents is canonical; Amount is
// the legacy fractional major-unit field still written by older call sites
// and is converted, never stored as-is.
type bidRow struct {
	ID          string    `json:"id"`
	ListingID   string    `json:"listing_id"`
	AmountCents *int64    `json:"amount_cents"`
	Amount      *float64  `json:"amount"`
	PlacedAt    time.Time `json:"placed_at"`
}

// listingRow is the wire shape of the auction fields on a listings row.
type listingRow struct {
	ID           string     `json:"id"`
	HighBidCents int64      `json:"high_bid_cents"`
	BidCount     int        `json:"bid_count"`
	EndsAt       *time.Time `json:"ends_at"`
	Status       string     `json:"status"`
	ExternalID   string     `json:"external_id"`
}

// DecodeTrade decodes a trades row from a change event record.
func DecodeTrade(record json.RawMessage) (domain.Trade, error) {
	var row tradeRow
	if err := json.Unmarshal(record, &row); err != nil {
		return domain.Trade{}, &domain.DataError{Table: "trades", Err: err}
	}
	if row.ID == "" || row.ListingID == "" {
		return domain.Trade{}, &domain.DataError{Table: "trades", Err: errors.New("missing id or listing_id")}
	}
	return domain.Trade{
		ID:         row.ID,
		ListingID:  row.ListingID,
		PriceCents: row.PriceCents,
		Quantity:   row.Quantity,
		Aggressor:  domain.Side(row.Aggressor),
		BuyerID:    row.BuyerID,
		SellerID:   row.SellerID,
		ExecutedAt: row.ExecutedAt,
	}, nil
}

// DecodeBid decodes a bids row, converting legacy fractional amounts to
// integer minor units.
func DecodeBid(record json.RawMessage) (auction.Bid, error) {
	var row bidRow
	if err := json.Unmarshal(record, &row); err != nil {
		return auction.Bid{}, &domain.DataError{Table: "bids", Err: err}
	}
	if row.ID == "" || row.ListingID == "" {
		return auction.Bid{}, &domain.DataError{Table: "bids", Err: errors.New("missing id or listing_id")}
	}

	var amount int64
	switch {
	case row.AmountCents != nil:
		amount = *row.AmountCents
	case row.Amount != nil:
		amount = domain.ToMinorUnits(*row.Amount)
	default:
		return auction.Bid{}, &domain.DataError{Table: "bids", Err: errors.New("missing amount")}
	}

	return auction.Bid{
		ID:          row.ID,
		ListingID:   row.ListingID,
		AmountCents: amount,
		PlacedAt:    row.PlacedAt,
	}, nil
}

// DecodeListing decodes the auction fields from a listings row.
func DecodeListing(record json.RawMessage) (domain.AuctionRow, error) {
	var row listingRow
	if err := json.Unmarshal(record, &row); err != nil {
		return domain.AuctionRow{}, &domain.DataError{Table: "listings", Err: err}
	}
	if row.ID == "" {
		return domain.AuctionRow{}, &domain.DataError{Table: "listings", Err: errors.New("missing id")}
	}
	if row.EndsAt == nil {
		return domain.AuctionRow{}, &domain.DataError{Table: "listings", Err: errors.New("missing ends_at")}
	}
	return domain.AuctionRow{
		ListingID:    row.ID,
		HighBidCents: row.HighBidCents,
		BidCount:     row.BidCount,
		EndsAt:       *row.EndsAt,
		Status:       row.Status,
		ExternalID:   row.ExternalID,
	}, nil
}
