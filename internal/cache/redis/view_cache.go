package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paddockhq/marketsync/internal/domain"
)

// viewTTL bounds how long a stale view survives after its watcher stops
// refreshing it. Generous: the UI shows last-known-good state with its
// timestamp rather than blanking on transient failure.
const viewTTL = 10 * time.Minute

// ViewCache implements domain.ViewCache storing each view as a JSON value.
//
// Key schema:
//
//	view:{listingID}:book
//	view:{listingID}:quote
//	view:{listingID}:tape
//	view:{listingID}:auction
//	view:{listingID}:signal
type ViewCache struct {
	rdb *redis.Client
}

// NewViewCache creates a ViewCache backed by the given Client.
func NewViewCache(c *Client) *ViewCache {
	return &ViewCache{rdb: c.Underlying()}
}

func viewKey(listingID, kind string) string {
	return "view:" + listingID + ":" + kind
}

func (vc *ViewCache) set(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}
	if err := vc.rdb.Set(ctx, key, payload, viewTTL).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (vc *ViewCache) get(ctx context.Context, key string, v any) error {
	payload, err := vc.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return nil
}

// SetBook stores the latest order book view.
func (vc *ViewCache) SetBook(ctx context.Context, book domain.OrderBook) error {
	return vc.set(ctx, viewKey(book.ListingID, "book"), book)
}

// GetBook returns the latest order book view.
func (vc *ViewCache) GetBook(ctx context.Context, listingID string) (domain.OrderBook, error) {
	var book domain.OrderBook
	err := vc.get(ctx, viewKey(listingID, "book"), &book)
	return book, err
}

// SetQuote stores the latest NBBO quote.
func (vc *ViewCache) SetQuote(ctx context.Context, quote domain.Quote) error {
	return vc.set(ctx, viewKey(quote.ListingID, "quote"), quote)
}

// GetQuote returns the latest NBBO quote.
func (vc *ViewCache) GetQuote(ctx context.Context, listingID string) (domain.Quote, error) {
	var quote domain.Quote
	err := vc.get(ctx, viewKey(listingID, "quote"), &quote)
	return quote, err
}

// SetTape stores the latest trade tape, newest first.
func (vc *ViewCache) SetTape(ctx context.Context, listingID string, trades []domain.Trade) error {
	return vc.set(ctx, viewKey(listingID, "tape"), trades)
}

// GetTape returns the latest trade tape.
func (vc *ViewCache) GetTape(ctx context.Context, listingID string) ([]domain.Trade, error) {
	var trades []domain.Trade
	err := vc.get(ctx, viewKey(listingID, "tape"), &trades)
	return trades, err
}

// SetAuction stores the latest auction view (feed state plus external mirror).
func (vc *ViewCache) SetAuction(ctx context.Context, view domain.AuctionView) error {
	return vc.set(ctx, viewKey(view.Feed.ListingID, "auction"), view)
}

// GetAuction returns the latest auction view.
func (vc *ViewCache) GetAuction(ctx context.Context, listingID string) (domain.AuctionView, error) {
	var view domain.AuctionView
	err := vc.get(ctx, viewKey(listingID, "auction"), &view)
	return view, err
}

// SetSignal stores the latest trading signal.
func (vc *ViewCache) SetSignal(ctx context.Context, sig domain.TradeSignal) error {
	return vc.set(ctx, viewKey(sig.ListingID, "signal"), sig)
}

// GetSignal returns the latest trading signal.
func (vc *ViewCache) GetSignal(ctx context.Context, listingID string) (domain.TradeSignal, error) {
	var sig domain.TradeSignal
	err := vc.get(ctx, viewKey(listingID, "signal"), &sig)
	return sig, err
}
