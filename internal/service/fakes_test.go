package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/paddockhq/marketsync/internal/domain"
)

// fakeFeed records subscriptions and lets tests fire events by table.
type fakeFeed struct {
	mu       sync.Mutex
	handlers map[string]domain.EventHandler
	unsubbed []string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: make(map[string]domain.EventHandler)}
}

func (f *fakeFeed) Subscribe(_ context.Context, table, _, _ string, h domain.EventHandler) (domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[table] = h
	return &fakeSub{id: uuid.NewString(), table: table, feed: f}, nil
}

func (f *fakeFeed) emit(ctx context.Context, table string, ev domain.ChangeEvent) {
	f.mu.Lock()
	h := f.handlers[table]
	f.mu.Unlock()
	if h != nil {
		h(ctx, ev)
	}
}

func (f *fakeFeed) unsubscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.unsubbed))
	copy(out, f.unsubbed)
	return out
}

type fakeSub struct {
	id    string
	table string
	feed  *fakeFeed
}

func (s *fakeSub) ID() string { return s.id }

func (s *fakeSub) Unsubscribe(context.Context) error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	s.feed.unsubbed = append(s.feed.unsubbed, s.table)
	delete(s.feed.handlers, s.table)
	return nil
}

// fakeStores implements all four read-store interfaces with settable state.
type fakeStores struct {
	mu      sync.Mutex
	orders  []domain.Order
	trades  []domain.Trade
	quote   *domain.QuoteRecord
	listing domain.AuctionRow

	ordersErr  error
	tradesErr  error
	listingErr error
}

func (s *fakeStores) OpenOrders(context.Context, string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ordersErr != nil {
		return nil, s.ordersErr
	}
	out := make([]domain.Order, len(s.orders))
	copy(out, s.orders)
	return out, nil
}

func (s *fakeStores) RecentTrades(_ context.Context, _ string, limit int) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tradesErr != nil {
		return nil, s.tradesErr
	}
	trades := s.trades
	if len(trades) > limit {
		trades = trades[:limit]
	}
	out := make([]domain.Trade, len(trades))
	copy(out, trades)
	return out, nil
}

func (s *fakeStores) CachedQuote(context.Context, string) (domain.QuoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quote == nil {
		return domain.QuoteRecord{}, domain.ErrNotFound
	}
	return *s.quote, nil
}

func (s *fakeStores) AuctionRow(context.Context, string) (domain.AuctionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listingErr != nil {
		return domain.AuctionRow{}, s.listingErr
	}
	return s.listing, nil
}

func (s *fakeStores) setOrders(orders []domain.Order, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = orders
	s.ordersErr = err
}

func (s *fakeStores) setTrades(trades []domain.Trade, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = trades
	s.tradesErr = err
}

// memCache is an in-memory domain.ViewCache.
type memCache struct {
	mu       sync.Mutex
	books    map[string]domain.OrderBook
	quotes   map[string]domain.Quote
	tapes    map[string][]domain.Trade
	auctions map[string]domain.AuctionView
	signals  map[string]domain.TradeSignal
}

func newMemCache() *memCache {
	return &memCache{
		books:    make(map[string]domain.OrderBook),
		quotes:   make(map[string]domain.Quote),
		tapes:    make(map[string][]domain.Trade),
		auctions: make(map[string]domain.AuctionView),
		signals:  make(map[string]domain.TradeSignal),
	}
}

func (c *memCache) SetBook(_ context.Context, b domain.OrderBook) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books[b.ListingID] = b
	return nil
}

func (c *memCache) GetBook(_ context.Context, id string) (domain.OrderBook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.books[id]
	if !ok {
		return domain.OrderBook{}, domain.ErrNotFound
	}
	return b, nil
}

func (c *memCache) SetQuote(_ context.Context, q domain.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[q.ListingID] = q
	return nil
}

func (c *memCache) GetQuote(_ context.Context, id string) (domain.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[id]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

func (c *memCache) SetTape(_ context.Context, id string, trades []domain.Trade) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tapes[id] = trades
	return nil
}

func (c *memCache) GetTape(_ context.Context, id string) ([]domain.Trade, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tapes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (c *memCache) SetAuction(_ context.Context, v domain.AuctionView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auctions[v.Feed.ListingID] = v
	return nil
}

func (c *memCache) GetAuction(_ context.Context, id string) (domain.AuctionView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.auctions[id]
	if !ok {
		return domain.AuctionView{}, domain.ErrNotFound
	}
	return v, nil
}

func (c *memCache) SetSignal(_ context.Context, s domain.TradeSignal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals[s.ListingID] = s
	return nil
}

func (c *memCache) GetSignal(_ context.Context, id string) (domain.TradeSignal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.signals[id]
	if !ok {
		return domain.TradeSignal{}, domain.ErrNotFound
	}
	return s, nil
}

// memBus records publishes and lets tests inject subscriber messages.
type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	subs      map[string]chan domain.BusMessage
}

func newMemBus() *memBus {
	return &memBus{
		published: make(map[string][][]byte),
		subs:      make(map[string]chan domain.BusMessage),
	}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	b.published[channel] = append(b.published[channel], cp)
	return nil
}

func (b *memBus) Subscribe(_ context.Context, channels ...string) (<-chan domain.BusMessage, func(), error) {
	ch := make(chan domain.BusMessage, 16)
	b.mu.Lock()
	for _, c := range channels {
		b.subs[c] = ch
	}
	b.mu.Unlock()
	var once sync.Once
	cancel := func() { once.Do(func() { close(ch) }) }
	return ch, cancel, nil
}

func (b *memBus) inject(channel string, payload []byte) {
	b.mu.Lock()
	ch := b.subs[channel]
	b.mu.Unlock()
	if ch != nil {
		ch <- domain.BusMessage{Channel: channel, Payload: payload}
	}
}

func (b *memBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

func (b *memBus) last(channel string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.published[channel]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}
