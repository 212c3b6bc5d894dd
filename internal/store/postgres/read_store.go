package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddockhq/marketsync/internal/domain"
)

// ReadStore implements the point-in-time snapshot reads the watchers refresh
// from: open orders, recent trades, the cached quote record, and the auction
// fields of a listing.
type ReadStore struct {
	pool *pgxpool.Pool
}

// NewReadStore creates a ReadStore backed by the given connection pool.
func NewReadStore(pool *pgxpool.Pool) *ReadStore {
	return &ReadStore{pool: pool}
}

// OpenOrders returns every order for the listing that could still contribute
// to the book, ordered by creation time for a stable snapshot.
func (s *ReadStore) OpenOrders(ctx context.Context, listingID string) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, listing_id, side, price_cents, quantity, filled, status, created_at
		FROM orders
		WHERE listing_id = $1
		  AND status IN ('active', 'partially_filled')
		ORDER BY created_at`,
		listingID,
	)
	if err != nil {
		return nil, &domain.TransportError{Op: "open orders " + listingID, Err: err}
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.ListingID, &o.Side, &o.PriceCents,
			&o.Quantity, &o.Filled, &o.Status, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.TransportError{Op: "open orders " + listingID, Err: err}
	}
	return orders, nil
}

// RecentTrades returns up to limit trades for the listing, newest first, the
// ordering the tape relies on for full refreshes.
func (s *ReadStore) RecentTrades(ctx context.Context, listingID string, limit int) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, listing_id, price_cents, quantity, aggressor, buyer_id, seller_id, executed_at
		FROM trades
		WHERE listing_id = $1
		ORDER BY executed_at DESC
		LIMIT $2`,
		listingID, limit,
	)
	if err != nil {
		return nil, &domain.TransportError{Op: "recent trades " + listingID, Err: err}
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.ListingID, &t.PriceCents, &t.Quantity,
			&t.Aggressor, &t.BuyerID, &t.SellerID, &t.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.TransportError{Op: "recent trades " + listingID, Err: err}
	}
	return trades, nil
}

// CachedQuote returns the cached quote record, or ErrNotFound when the
// listing has none and the quote must be derived from the book.
func (s *ReadStore) CachedQuote(ctx context.Context, listingID string) (domain.QuoteRecord, error) {
	var q domain.QuoteRecord
	err := s.pool.QueryRow(ctx, `
		SELECT listing_id, bid_cents, bid_size, ask_cents, ask_size, updated_at
		FROM quotes
		WHERE listing_id = $1`,
		listingID,
	).Scan(&q.ListingID, &q.BidCents, &q.BidSize, &q.AskCents, &q.AskSize, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuoteRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.QuoteRecord{}, &domain.TransportError{Op: "cached quote " + listingID, Err: err}
	}
	return q, nil
}

// AuctionRow returns the auction fields of the listing row.
func (s *ReadStore) AuctionRow(ctx context.Context, listingID string) (domain.AuctionRow, error) {
	var row domain.AuctionRow
	var externalID *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, high_bid_cents, bid_count, ends_at, status, external_id
		FROM listings
		WHERE id = $1`,
		listingID,
	).Scan(&row.ListingID, &row.HighBidCents, &row.BidCount, &row.EndsAt, &row.Status, &externalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuctionRow{}, fmt.Errorf("postgres: listing %s: %w", listingID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.AuctionRow{}, &domain.TransportError{Op: "auction row " + listingID, Err: err}
	}
	if externalID != nil {
		row.ExternalID = *externalID
	}
	return row, nil
}
