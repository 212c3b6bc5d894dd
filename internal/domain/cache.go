package domain

import "context"

// ViewCache holds the latest computed view per listing so the API can serve
// reads without touching the watchers. Values are ephemeral; the cache is
// never a system of record.
type ViewCache interface {
	SetBook(ctx context.Context, book OrderBook) error
	GetBook(ctx context.Context, listingID string) (OrderBook, error)

	SetQuote(ctx context.Context, quote Quote) error
	GetQuote(ctx context.Context, listingID string) (Quote, error)

	SetTape(ctx context.Context, listingID string, trades []Trade) error
	GetTape(ctx context.Context, listingID string) ([]Trade, error)

	SetAuction(ctx context.Context, view AuctionView) error
	GetAuction(ctx context.Context, listingID string) (AuctionView, error)

	SetSignal(ctx context.Context, sig TradeSignal) error
	GetSignal(ctx context.Context, listingID string) (TradeSignal, error)
}

// SignalBus provides pub/sub between the watchers, the poller's visibility
// signal, and the UI-facing websocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, func(), error)
}

// BusMessage is one pub/sub delivery.
type BusMessage struct {
	Channel string
	Payload []byte
}
